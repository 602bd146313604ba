package prescriptions

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/cliniflow/platform/pkg/common/apperrors"
	"github.com/cliniflow/platform/pkg/common/logger"
	"github.com/cliniflow/platform/pkg/common/models"
	"github.com/google/uuid"
)

func init() {
	logger.Init()
}

type fakeStore struct {
	created []CreatePrescriptionInput
	records []models.Prescription

	// Joined rows attached on reads, the way the repository preloads them.
	patientRows  map[uuid.UUID]models.PatientSummary
	medicineRows map[uuid.UUID]models.Medicine
}

func (f *fakeStore) Create(ctx context.Context, input CreatePrescriptionInput) (models.Prescription, error) {
	f.created = append(f.created, input)

	items := make([]models.PrescriptionItem, 0, len(input.Items))
	for _, item := range input.Items {
		items = append(items, models.PrescriptionItem{
			MedicineID: item.MedicineID,
			Dosage:     item.Dosage,
			Duration:   item.Duration,
			Notes:      item.Notes,
		})
	}
	record := models.Prescription{
		ID:        uuid.New(),
		PatientID: input.PatientID,
		DoctorID:  input.DoctorID,
		Medicines: items,
		IssuedAt:  input.IssuedAt,
		CreatedAt: time.Now().UTC(),
	}
	f.records = append(f.records, record)
	return record, nil
}

func (f *fakeStore) ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]models.Prescription, error) {
	var out []models.Prescription
	for _, r := range f.records {
		if r.DoctorID != doctorID {
			continue
		}
		if summary, ok := f.patientRows[r.PatientID]; ok {
			joined := summary
			r.Patient = &joined
		}
		items := append([]models.PrescriptionItem(nil), r.Medicines...)
		for i := range items {
			if detail, ok := f.medicineRows[items[i].MedicineID]; ok {
				joined := detail
				items[i].Medicine = &joined
			}
		}
		r.Medicines = items
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

type fakeMedicines struct{ known map[uuid.UUID]bool }

func (f *fakeMedicines) MedicineExists(ctx context.Context, id uuid.UUID) (bool, error) {
	return f.known[id], nil
}

type fakePatients struct{ known map[uuid.UUID]bool }

func (f *fakePatients) PatientExists(ctx context.Context, id uuid.UUID) (bool, error) {
	return f.known[id], nil
}

type fixture struct {
	svc        *Service
	store      *fakeStore
	medicines  *fakeMedicines
	patientID  uuid.UUID
	medicineID uuid.UUID
}

func newFixture() *fixture {
	store := &fakeStore{
		patientRows:  map[uuid.UUID]models.PatientSummary{},
		medicineRows: map[uuid.UUID]models.Medicine{},
	}
	patientID := uuid.New()
	medicineID := uuid.New()
	medicines := &fakeMedicines{known: map[uuid.UUID]bool{medicineID: true}}
	svc := NewService(
		store,
		medicines,
		&fakePatients{known: map[uuid.UUID]bool{patientID: true}},
		nil,
	)
	return &fixture{svc: svc, store: store, medicines: medicines, patientID: patientID, medicineID: medicineID}
}

func (fx *fixture) request() models.CreatePrescriptionRequest {
	return models.CreatePrescriptionRequest{
		Patient: fx.patientID,
		Medicines: []models.PrescriptionItemRequest{
			{Medicine: fx.medicineID, Dosage: "1-0-1", Duration: "5 days"},
		},
	}
}

func TestCreateUsesResolvedDoctor(t *testing.T) {
	fx := newFixture()
	resolved := uuid.New()
	spoofed := uuid.New()

	req := fx.request()
	req.Doctor = &spoofed // client-supplied doctor id must carry no authority

	prescription, err := fx.svc.Create(context.Background(), req, resolved)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if prescription.DoctorID != resolved {
		t.Fatalf("expected resolved doctor %s, got %s", resolved, prescription.DoctorID)
	}
	if fx.store.created[0].DoctorID != resolved {
		t.Fatalf("spoofed doctor id reached the store")
	}
}

func TestCreateRequiresLineItems(t *testing.T) {
	fx := newFixture()
	req := fx.request()
	req.Medicines = nil

	if _, err := fx.svc.Create(context.Background(), req, uuid.New()); apperrors.KindOf(err) != apperrors.Validation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCreateUnknownMedicine(t *testing.T) {
	fx := newFixture()
	req := fx.request()
	req.Medicines = append(req.Medicines, models.PrescriptionItemRequest{Medicine: uuid.New()})

	if _, err := fx.svc.Create(context.Background(), req, uuid.New()); apperrors.KindOf(err) != apperrors.NotFound {
		t.Fatalf("expected not-found, got %v", err)
	}
	if len(fx.store.created) != 0 {
		t.Fatal("nothing should be persisted when validation fails")
	}
}

func TestCreateUnknownPatient(t *testing.T) {
	fx := newFixture()
	req := fx.request()
	req.Patient = uuid.New()

	if _, err := fx.svc.Create(context.Background(), req, uuid.New()); apperrors.KindOf(err) != apperrors.NotFound {
		t.Fatalf("expected not-found, got %v", err)
	}
}

func TestCreateDefaultsIssuedAt(t *testing.T) {
	fx := newFixture()
	now := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	fx.svc.nowFunc = func() time.Time { return now }

	prescription, err := fx.svc.Create(context.Background(), fx.request(), uuid.New())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !prescription.IssuedAt.Equal(now) {
		t.Fatalf("expected issued_at default %v, got %v", now, prescription.IssuedAt)
	}

	explicit := time.Date(2024, 3, 14, 9, 0, 0, 0, time.UTC)
	req := fx.request()
	req.Date = &explicit
	prescription, err = fx.svc.Create(context.Background(), req, uuid.New())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !prescription.IssuedAt.Equal(explicit) {
		t.Fatalf("expected issued_at %v, got %v", explicit, prescription.IssuedAt)
	}
}

func TestCreateIsNotIdempotent(t *testing.T) {
	fx := newFixture()
	doctor := uuid.New()

	for i := 0; i < 2; i++ {
		if _, err := fx.svc.Create(context.Background(), fx.request(), doctor); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	listed, err := fx.svc.ListForDoctor(context.Background(), doctor)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(listed) != 2 {
		t.Fatalf("expected two ledger entries, got %d", len(listed))
	}
}

func TestListForDoctorScopes(t *testing.T) {
	fx := newFixture()
	mine := uuid.New()
	other := uuid.New()

	if _, err := fx.svc.Create(context.Background(), fx.request(), mine); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := fx.svc.Create(context.Background(), fx.request(), other); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	listed, err := fx.svc.ListForDoctor(context.Background(), mine)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(listed) != 1 || listed[0].DoctorID != mine {
		t.Fatalf("expected only my prescriptions, got %+v", listed)
	}
}

func TestListForDoctorJoinsPatientAndMedicines(t *testing.T) {
	fx := newFixture()
	doctor := uuid.New()
	secondID := uuid.New()
	fx.medicines.known[secondID] = true

	fx.store.patientRows[fx.patientID] = models.PatientSummary{ID: fx.patientID, Name: "John", Age: 30, Gender: "male"}
	fx.store.medicineRows[fx.medicineID] = models.Medicine{ID: fx.medicineID, Name: "Paracetamol", Type: "Tablet"}
	fx.store.medicineRows[secondID] = models.Medicine{ID: secondID, Name: "Azithromycin", Type: "Tablet"}

	req := fx.request()
	req.Medicines = append(req.Medicines, models.PrescriptionItemRequest{Medicine: secondID, Dosage: "0-0-1", Duration: "3 days"})

	if _, err := fx.svc.Create(context.Background(), req, doctor); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	listed, err := fx.svc.ListForDoctor(context.Background(), doctor)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(listed) != 1 {
		t.Fatalf("expected one prescription, got %d", len(listed))
	}

	got := listed[0]
	if got.Patient == nil || got.Patient.Name != "John" {
		t.Fatalf("expected joined patient John, got %+v", got.Patient)
	}
	if len(got.Medicines) != 2 {
		t.Fatalf("expected two line items, got %d", len(got.Medicines))
	}
	if got.Medicines[0].Medicine == nil || got.Medicines[0].Medicine.Name != "Paracetamol" {
		t.Fatalf("expected first line joined to Paracetamol, got %+v", got.Medicines[0].Medicine)
	}
	if got.Medicines[1].Medicine == nil || got.Medicines[1].Medicine.Name != "Azithromycin" {
		t.Fatalf("expected second line joined to Azithromycin, got %+v", got.Medicines[1].Medicine)
	}
	if got.Medicines[0].Dosage != "1-0-1" || got.Medicines[1].Dosage != "0-0-1" {
		t.Fatalf("line items out of request order: %+v", got.Medicines)
	}
}
