package patients

import (
	"context"
	"errors"
	"time"

	"github.com/cliniflow/platform/pkg/common/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var ErrPatientNotFound = errors.New("patient not found")

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

type patientModel struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name       string
	Age        int
	Gender     string
	Phone      string
	Address    string
	Complaint  string
	DoctorID   uuid.UUID  `gorm:"type:uuid;index"`
	HospitalID *uuid.UUID `gorm:"type:uuid"`

	RegistrationDay time.Time
	CreatedAt       time.Time `gorm:"index"`

	Doctor   *doctorRef   `gorm:"foreignKey:DoctorID"`
	Hospital *hospitalRef `gorm:"foreignKey:HospitalID"`
}

func (patientModel) TableName() string { return "patients" }

// Read-only views over tables owned by other packages, enough to shape the
// joined admin listing. A dangling reference preloads to nil instead of
// failing the query.
type doctorRef struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID         uuid.UUID `gorm:"type:uuid"`
	Specialization string
	Phone          string
	HospitalID     uuid.UUID `gorm:"type:uuid"`
	CreatedAt      time.Time

	User *userRef `gorm:"foreignKey:UserID"`
}

func (doctorRef) TableName() string { return "doctors" }

type userRef struct {
	ID    uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name  string
	Email string
	Role  string
}

func (userRef) TableName() string { return "users" }

type hospitalRef struct {
	ID      uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name    string
	Address string
	Phone   string
}

func (hospitalRef) TableName() string { return "hospitals" }

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&patientModel{})
}

type CreatePatientInput struct {
	Name            string
	Age             int
	Gender          string
	Phone           string
	Address         string
	Complaint       string
	DoctorID        uuid.UUID
	HospitalID      *uuid.UUID
	RegistrationDay time.Time
	CreatedAt       time.Time
}

func (r *Repository) Create(ctx context.Context, input CreatePatientInput) (models.Patient, error) {
	patient := patientModel{
		ID:              uuid.New(),
		Name:            input.Name,
		Age:             input.Age,
		Gender:          input.Gender,
		Phone:           input.Phone,
		Address:         input.Address,
		Complaint:       input.Complaint,
		DoctorID:        input.DoctorID,
		HospitalID:      input.HospitalID,
		RegistrationDay: input.RegistrationDay,
		CreatedAt:       input.CreatedAt,
	}

	if err := r.db.WithContext(ctx).Create(&patient).Error; err != nil {
		return models.Patient{}, err
	}
	return mapPatient(patient), nil
}

func (r *Repository) ListAll(ctx context.Context) ([]models.Patient, error) {
	var rows []patientModel
	err := r.db.WithContext(ctx).
		Preload("Doctor").
		Preload("Doctor.User").
		Preload("Hospital").
		Order("created_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return mapPatients(rows), nil
}

// ListByDoctorBetween returns a doctor's patients whose created_at falls in
// [from, to), newest first.
func (r *Repository) ListByDoctorBetween(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]models.Patient, error) {
	var rows []patientModel
	err := r.db.WithContext(ctx).
		Where("doctor_id = ? AND created_at >= ? AND created_at < ?", doctorID, from, to).
		Order("created_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return mapPatients(rows), nil
}

func (r *Repository) Get(ctx context.Context, id uuid.UUID) (models.Patient, error) {
	var patient patientModel
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&patient).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Patient{}, ErrPatientNotFound
	}
	if err != nil {
		return models.Patient{}, err
	}
	return mapPatient(patient), nil
}

func (r *Repository) PatientExists(ctx context.Context, id uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&patientModel{}).Where("id = ?", id).Count(&count).Error
	return count > 0, err
}

func mapPatients(rows []patientModel) []models.Patient {
	patients := make([]models.Patient, 0, len(rows))
	for _, row := range rows {
		patients = append(patients, mapPatient(row))
	}
	return patients
}

func mapPatient(patient patientModel) models.Patient {
	out := models.Patient{
		ID:              patient.ID,
		Name:            patient.Name,
		Age:             patient.Age,
		Gender:          patient.Gender,
		Phone:           patient.Phone,
		Address:         patient.Address,
		Complaint:       patient.Complaint,
		DoctorID:        patient.DoctorID,
		HospitalID:      patient.HospitalID,
		RegistrationDay: patient.RegistrationDay,
		CreatedAt:       patient.CreatedAt,
	}
	if patient.Doctor != nil {
		doctor := models.Doctor{
			ID:             patient.Doctor.ID,
			UserID:         patient.Doctor.UserID,
			Specialization: patient.Doctor.Specialization,
			Phone:          patient.Doctor.Phone,
			HospitalID:     patient.Doctor.HospitalID,
			CreatedAt:      patient.Doctor.CreatedAt,
		}
		if patient.Doctor.User != nil {
			doctor.User = &models.User{
				ID:    patient.Doctor.User.ID,
				Name:  patient.Doctor.User.Name,
				Email: patient.Doctor.User.Email,
				Role:  models.Role(patient.Doctor.User.Role),
			}
		}
		out.Doctor = &doctor
	}
	if patient.Hospital != nil {
		out.Hospital = &models.Hospital{
			ID:      patient.Hospital.ID,
			Name:    patient.Hospital.Name,
			Address: patient.Hospital.Address,
			Phone:   patient.Hospital.Phone,
		}
	}
	return out
}
