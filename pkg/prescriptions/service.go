package prescriptions

import (
	"context"
	"time"

	"github.com/cliniflow/platform/pkg/common/apperrors"
	"github.com/cliniflow/platform/pkg/common/kafka"
	"github.com/cliniflow/platform/pkg/common/logger"
	"github.com/cliniflow/platform/pkg/common/models"
	"github.com/google/uuid"
)

// Store is what the service needs from persistence; *Repository satisfies it.
type Store interface {
	Create(ctx context.Context, input CreatePrescriptionInput) (models.Prescription, error)
	ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]models.Prescription, error)
}

type MedicineDirectory interface {
	MedicineExists(ctx context.Context, id uuid.UUID) (bool, error)
}

type PatientDirectory interface {
	PatientExists(ctx context.Context, id uuid.UUID) (bool, error)
}

type Service struct {
	store     Store
	medicines MedicineDirectory
	patients  PatientDirectory
	events    *kafka.Producer
	nowFunc   func() time.Time
}

func NewService(store Store, medicines MedicineDirectory, patients PatientDirectory, events *kafka.Producer) *Service {
	return &Service{
		store:     store,
		medicines: medicines,
		patients:  patients,
		events:    events,
		nowFunc:   time.Now,
	}
}

// Create appends a prescription to the ledger. The doctor on the record is
// always resolvedDoctorID from the authenticated session; a doctor field in
// the payload carries no authority. The patient and every medicine are
// re-validated here: the prescribing doctor and the target patient are
// independent inputs at this call.
func (s *Service) Create(ctx context.Context, req models.CreatePrescriptionRequest, resolvedDoctorID uuid.UUID) (models.Prescription, error) {
	if req.Patient == uuid.Nil {
		return models.Prescription{}, apperrors.E(apperrors.Validation, "patient is required")
	}
	if len(req.Medicines) == 0 {
		return models.Prescription{}, apperrors.E(apperrors.Validation, "at least one medicine is required")
	}

	exists, err := s.patients.PatientExists(ctx, req.Patient)
	if err != nil {
		return models.Prescription{}, err
	}
	if !exists {
		return models.Prescription{}, apperrors.E(apperrors.NotFound, "invalid patient selected")
	}

	items := make([]CreateItemInput, 0, len(req.Medicines))
	for _, item := range req.Medicines {
		if item.Medicine == uuid.Nil {
			return models.Prescription{}, apperrors.E(apperrors.Validation, "medicine is required on every line")
		}
		exists, err := s.medicines.MedicineExists(ctx, item.Medicine)
		if err != nil {
			return models.Prescription{}, err
		}
		if !exists {
			return models.Prescription{}, apperrors.E(apperrors.NotFound, "invalid medicine selected")
		}
		items = append(items, CreateItemInput{
			MedicineID: item.Medicine,
			Dosage:     item.Dosage,
			Duration:   item.Duration,
			Notes:      item.Notes,
		})
	}

	issuedAt := s.nowFunc()
	if req.Date != nil {
		issuedAt = *req.Date
	}

	prescription, err := s.store.Create(ctx, CreatePrescriptionInput{
		PatientID: req.Patient,
		DoctorID:  resolvedDoctorID,
		Items:     items,
		IssuedAt:  issuedAt,
	})
	if err != nil {
		return models.Prescription{}, err
	}

	if err := s.events.PublishEvent(ctx, "prescription.issued", "prescriptions", map[string]interface{}{
		"prescription_id": prescription.ID.String(),
		"patient_id":      prescription.PatientID.String(),
		"doctor_id":       prescription.DoctorID.String(),
	}); err != nil {
		logger.Log.WithError(err).Warn("prescription.issued event not published")
	}

	return prescription, nil
}

// ListForDoctor returns the resolved doctor's prescriptions, joined with the
// patient summary and medicine names, newest first.
func (s *Service) ListForDoctor(ctx context.Context, resolvedDoctorID uuid.UUID) ([]models.Prescription, error) {
	return s.store.ListByDoctor(ctx, resolvedDoctorID)
}
