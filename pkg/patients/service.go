package patients

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/cliniflow/platform/pkg/common/apperrors"
	"github.com/cliniflow/platform/pkg/common/kafka"
	"github.com/cliniflow/platform/pkg/common/logger"
	"github.com/cliniflow/platform/pkg/common/models"
	"github.com/google/uuid"
)

// Store is what the service needs from persistence; *Repository satisfies it.
type Store interface {
	Create(ctx context.Context, input CreatePatientInput) (models.Patient, error)
	ListAll(ctx context.Context) ([]models.Patient, error)
	ListByDoctorBetween(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]models.Patient, error)
	Get(ctx context.Context, id uuid.UUID) (models.Patient, error)
}

type DoctorDirectory interface {
	DoctorExists(ctx context.Context, id uuid.UUID) (bool, error)
}

type HospitalDirectory interface {
	HospitalExists(ctx context.Context, id uuid.UUID) (bool, error)
}

// PrescriptionIndex answers which of the given patients have at least one
// prescription; the ledger package provides it. The flag is derived at read
// time, never stored on the patient row.
type PrescriptionIndex interface {
	PrescribedSet(ctx context.Context, patientIDs []uuid.UUID) (map[uuid.UUID]bool, error)
}

type Service struct {
	store         Store
	doctors       DoctorDirectory
	hospitals     HospitalDirectory
	prescriptions PrescriptionIndex
	events        *kafka.Producer
	clinicZone    *time.Location
	nowFunc       func() time.Time
}

func NewService(store Store, doctors DoctorDirectory, hospitals HospitalDirectory, prescriptions PrescriptionIndex, events *kafka.Producer, clinicZone *time.Location) *Service {
	return &Service{
		store:         store,
		doctors:       doctors,
		hospitals:     hospitals,
		prescriptions: prescriptions,
		events:        events,
		clinicZone:    clinicZone,
		nowFunc:       time.Now,
	}
}

// Register enrolls a patient against a doctor. The admin picks the doctor
// explicitly, so the target id is validated against the doctor table rather
// than trusted.
func (s *Service) Register(ctx context.Context, req models.RegisterPatientRequest) (models.Patient, error) {
	if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.Gender) == "" {
		return models.Patient{}, apperrors.E(apperrors.Validation, "name and gender are required")
	}
	if req.Age <= 0 {
		return models.Patient{}, apperrors.E(apperrors.Validation, "age must be positive")
	}
	if req.Doctor == uuid.Nil {
		return models.Patient{}, apperrors.E(apperrors.Validation, "doctor is required")
	}

	exists, err := s.doctors.DoctorExists(ctx, req.Doctor)
	if err != nil {
		return models.Patient{}, err
	}
	if !exists {
		return models.Patient{}, apperrors.E(apperrors.NotFound, "invalid doctor selected")
	}

	if req.Hospital != nil {
		exists, err := s.hospitals.HospitalExists(ctx, *req.Hospital)
		if err != nil {
			return models.Patient{}, err
		}
		if !exists {
			return models.Patient{}, apperrors.E(apperrors.NotFound, "invalid hospital selected")
		}
	}

	now := s.nowFunc()
	startOfDay, _ := DayWindow(now, s.clinicZone)

	patient, err := s.store.Create(ctx, CreatePatientInput{
		Name:            strings.TrimSpace(req.Name),
		Age:             req.Age,
		Gender:          req.Gender,
		Phone:           req.Phone,
		Address:         req.Address,
		Complaint:       req.Complaint,
		DoctorID:        req.Doctor,
		HospitalID:      req.Hospital,
		RegistrationDay: startOfDay,
		CreatedAt:       now,
	})
	if err != nil {
		return models.Patient{}, err
	}

	if err := s.events.PublishEvent(ctx, "patient.registered", "patients", map[string]interface{}{
		"patient_id": patient.ID.String(),
		"doctor_id":  patient.DoctorID.String(),
	}); err != nil {
		logger.Log.WithError(err).Warn("patient.registered event not published")
	}

	return patient, nil
}

// ListAll is the admin-wide view, joined and newest first.
func (s *Service) ListAll(ctx context.Context) ([]models.Patient, error) {
	patients, err := s.store.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.attachPrescribed(ctx, patients); err != nil {
		return nil, err
	}
	return patients, nil
}

// TodaysPatients returns the requesting doctor's patients registered inside
// the current clinic day. The filter reads created_at: registration_day is
// immutable once written, so created_at is the single source of truth for
// the window.
func (s *Service) TodaysPatients(ctx context.Context, doctorID uuid.UUID) (models.TodaysPatientsResponse, error) {
	from, to := DayWindow(s.nowFunc(), s.clinicZone)

	patients, err := s.store.ListByDoctorBetween(ctx, doctorID, from, to)
	if err != nil {
		return models.TodaysPatientsResponse{}, err
	}
	if err := s.attachPrescribed(ctx, patients); err != nil {
		return models.TodaysPatientsResponse{}, err
	}

	return models.TodaysPatientsResponse{Count: len(patients), Patients: patients}, nil
}

// GetByID fetches one patient for a doctor. Ownership is checked on every
// call: a doctor can only read patients assigned to them, regardless of who
// created the record.
func (s *Service) GetByID(ctx context.Context, patientID, requesterDoctorID uuid.UUID) (models.Patient, error) {
	patient, err := s.store.Get(ctx, patientID)
	if errors.Is(err, ErrPatientNotFound) {
		return models.Patient{}, apperrors.E(apperrors.NotFound, "Patient not found")
	}
	if err != nil {
		return models.Patient{}, err
	}

	if patient.DoctorID != requesterDoctorID {
		return models.Patient{}, apperrors.E(apperrors.Forbidden, "Access denied")
	}

	single := []models.Patient{patient}
	if err := s.attachPrescribed(ctx, single); err != nil {
		return models.Patient{}, err
	}
	return single[0], nil
}

func (s *Service) attachPrescribed(ctx context.Context, patients []models.Patient) error {
	if len(patients) == 0 {
		return nil
	}

	ids := make([]uuid.UUID, 0, len(patients))
	for _, p := range patients {
		ids = append(ids, p.ID)
	}

	prescribed, err := s.prescriptions.PrescribedSet(ctx, ids)
	if err != nil {
		return err
	}

	for i := range patients {
		patients[i].Prescribed = prescribed[patients[i].ID]
	}
	return nil
}
