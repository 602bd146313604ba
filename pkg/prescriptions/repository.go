package prescriptions

import (
	"context"
	"time"

	"github.com/cliniflow/platform/pkg/common/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

type prescriptionModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	PatientID uuid.UUID `gorm:"type:uuid;index"`
	DoctorID  uuid.UUID `gorm:"type:uuid;index"`
	IssuedAt  time.Time
	CreatedAt time.Time `gorm:"index"`

	Items   []prescriptionItemModel `gorm:"foreignKey:PrescriptionID"`
	Patient *patientRef             `gorm:"foreignKey:PatientID"`
}

func (prescriptionModel) TableName() string { return "prescriptions" }

type prescriptionItemModel struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey"`
	PrescriptionID uuid.UUID `gorm:"type:uuid;index"`
	Position       int
	MedicineID     uuid.UUID `gorm:"type:uuid"`
	Dosage         string
	Duration       string
	Notes          string

	Medicine *medicineRef `gorm:"foreignKey:MedicineID"`
}

func (prescriptionItemModel) TableName() string { return "prescription_items" }

// Read-only views over tables owned by other packages; a dangling reference
// preloads to nil instead of failing the listing.
type patientRef struct {
	ID     uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name   string
	Age    int
	Gender string
}

func (patientRef) TableName() string { return "patients" }

type medicineRef struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name        string
	GenericName string
	Strength    string
	Type        string
}

func (medicineRef) TableName() string { return "medicines" }

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&prescriptionModel{}, &prescriptionItemModel{})
}

type CreateItemInput struct {
	MedicineID uuid.UUID
	Dosage     string
	Duration   string
	Notes      string
}

type CreatePrescriptionInput struct {
	PatientID uuid.UUID
	DoctorID  uuid.UUID
	Items     []CreateItemInput
	IssuedAt  time.Time
}

// Create writes the prescription and its line items in one transaction. The
// ledger is append-only; there is no update or delete path.
func (r *Repository) Create(ctx context.Context, input CreatePrescriptionInput) (models.Prescription, error) {
	prescription := prescriptionModel{
		ID:        uuid.New(),
		PatientID: input.PatientID,
		DoctorID:  input.DoctorID,
		IssuedAt:  input.IssuedAt,
		CreatedAt: time.Now().UTC(),
	}

	items := make([]prescriptionItemModel, 0, len(input.Items))
	for i, item := range input.Items {
		items = append(items, prescriptionItemModel{
			ID:             uuid.New(),
			PrescriptionID: prescription.ID,
			Position:       i,
			MedicineID:     item.MedicineID,
			Dosage:         item.Dosage,
			Duration:       item.Duration,
			Notes:          item.Notes,
		})
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&prescription).Error; err != nil {
			return err
		}
		return tx.Create(&items).Error
	})
	if err != nil {
		return models.Prescription{}, err
	}

	prescription.Items = items
	return mapPrescription(prescription), nil
}

func (r *Repository) ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]models.Prescription, error) {
	var rows []prescriptionModel
	err := r.db.WithContext(ctx).
		Where("doctor_id = ?", doctorID).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		Preload("Items.Medicine").
		Preload("Patient").
		Order("created_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	prescriptions := make([]models.Prescription, 0, len(rows))
	for _, row := range rows {
		prescriptions = append(prescriptions, mapPrescription(row))
	}
	return prescriptions, nil
}

// PrescribedSet reports which of the given patients appear at least once in
// the ledger.
func (r *Repository) PrescribedSet(ctx context.Context, patientIDs []uuid.UUID) (map[uuid.UUID]bool, error) {
	out := make(map[uuid.UUID]bool, len(patientIDs))
	if len(patientIDs) == 0 {
		return out, nil
	}

	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&prescriptionModel{}).
		Distinct("patient_id").
		Where("patient_id IN ?", patientIDs).
		Pluck("patient_id", &ids).Error
	if err != nil {
		return nil, err
	}

	for _, id := range ids {
		out[id] = true
	}
	return out, nil
}

func mapPrescription(row prescriptionModel) models.Prescription {
	out := models.Prescription{
		ID:        row.ID,
		PatientID: row.PatientID,
		DoctorID:  row.DoctorID,
		IssuedAt:  row.IssuedAt,
		CreatedAt: row.CreatedAt,
		Medicines: make([]models.PrescriptionItem, 0, len(row.Items)),
	}

	for _, item := range row.Items {
		mapped := models.PrescriptionItem{
			MedicineID: item.MedicineID,
			Dosage:     item.Dosage,
			Duration:   item.Duration,
			Notes:      item.Notes,
		}
		if item.Medicine != nil {
			mapped.Medicine = &models.Medicine{
				ID:          item.Medicine.ID,
				Name:        item.Medicine.Name,
				GenericName: item.Medicine.GenericName,
				Strength:    item.Medicine.Strength,
				Type:        item.Medicine.Type,
			}
		}
		out.Medicines = append(out.Medicines, mapped)
	}

	if row.Patient != nil {
		out.Patient = &models.PatientSummary{
			ID:     row.Patient.ID,
			Name:   row.Patient.Name,
			Age:    row.Patient.Age,
			Gender: row.Patient.Gender,
		}
	}
	return out
}
