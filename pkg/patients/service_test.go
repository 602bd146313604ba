package patients

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
	patients []models.Patient
}

func (f *fakeStore) Create(ctx context.Context, input CreatePatientInput) (models.Patient, error) {
	patient := models.Patient{
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
	f.patients = append(f.patients, patient)
	return patient, nil
}

func (f *fakeStore) ListAll(ctx context.Context) ([]models.Patient, error) {
	out := append([]models.Patient(nil), f.patients...)
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeStore) ListByDoctorBetween(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]models.Patient, error) {
	var out []models.Patient
	for _, p := range f.patients {
		if p.DoctorID == doctorID && !p.CreatedAt.Before(from) && p.CreatedAt.Before(to) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeStore) Get(ctx context.Context, id uuid.UUID) (models.Patient, error) {
	for _, p := range f.patients {
		if p.ID == id {
			return p, nil
		}
	}
	return models.Patient{}, ErrPatientNotFound
}

type fakeDoctors struct{ known map[uuid.UUID]bool }

func (f *fakeDoctors) DoctorExists(ctx context.Context, id uuid.UUID) (bool, error) {
	return f.known[id], nil
}

type fakeHospitals struct{ known map[uuid.UUID]bool }

func (f *fakeHospitals) HospitalExists(ctx context.Context, id uuid.UUID) (bool, error) {
	return f.known[id], nil
}

type fakePrescriptions struct{ prescribed map[uuid.UUID]bool }

func (f *fakePrescriptions) PrescribedSet(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]bool, error) {
	out := map[uuid.UUID]bool{}
	for _, id := range ids {
		out[id] = f.prescribed[id]
	}
	return out, nil
}

type fixture struct {
	svc           *Service
	store         *fakeStore
	prescriptions *fakePrescriptions
	doctorID      uuid.UUID
	hospitalID    uuid.UUID
}

func newFixture() *fixture {
	store := &fakeStore{}
	doctorID := uuid.New()
	hospitalID := uuid.New()
	prescriptions := &fakePrescriptions{prescribed: map[uuid.UUID]bool{}}
	svc := NewService(
		store,
		&fakeDoctors{known: map[uuid.UUID]bool{doctorID: true}},
		&fakeHospitals{known: map[uuid.UUID]bool{hospitalID: true}},
		prescriptions,
		nil,
		time.UTC,
	)
	return &fixture{svc: svc, store: store, prescriptions: prescriptions, doctorID: doctorID, hospitalID: hospitalID}
}

func registration(doctorID uuid.UUID) models.RegisterPatientRequest {
	return models.RegisterPatientRequest{
		Name:      "John",
		Age:       30,
		Gender:    "male",
		Complaint: "fever",
		Doctor:    doctorID,
	}
}

func TestRegisterSetsDayFields(t *testing.T) {
	fx := newFixture()
	now := time.Date(2024, 3, 15, 14, 30, 0, 0, time.UTC)
	fx.svc.nowFunc = func() time.Time { return now }

	patient, err := fx.svc.Register(context.Background(), registration(fx.doctorID))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !patient.CreatedAt.Equal(now) {
		t.Fatalf("expected created_at %v, got %v", now, patient.CreatedAt)
	}
	if !patient.RegistrationDay.Equal(time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected day-truncated registration day, got %v", patient.RegistrationDay)
	}
}

func TestRegisterValidation(t *testing.T) {
	fx := newFixture()

	req := registration(fx.doctorID)
	req.Name = ""
	if _, err := fx.svc.Register(context.Background(), req); apperrors.KindOf(err) != apperrors.Validation {
		t.Fatalf("expected validation error, got %v", err)
	}

	req = registration(fx.doctorID)
	req.Age = 0
	if _, err := fx.svc.Register(context.Background(), req); apperrors.KindOf(err) != apperrors.Validation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestRegisterUnknownDoctor(t *testing.T) {
	fx := newFixture()
	_, err := fx.svc.Register(context.Background(), registration(uuid.New()))
	if apperrors.KindOf(err) != apperrors.NotFound {
		t.Fatalf("expected not-found, got %v", err)
	}
	if apperrors.Message(err) != "invalid doctor selected" {
		t.Fatalf("unexpected message: %q", apperrors.Message(err))
	}
}

func TestRegisterUnknownHospital(t *testing.T) {
	fx := newFixture()
	req := registration(fx.doctorID)
	bogus := uuid.New()
	req.Hospital = &bogus
	if _, err := fx.svc.Register(context.Background(), req); apperrors.KindOf(err) != apperrors.NotFound {
		t.Fatalf("expected not-found, got %v", err)
	}
}

func TestTodaysPatientsWindow(t *testing.T) {
	fx := newFixture()
	otherDoctor := uuid.New()
	today := time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC)
	fx.svc.nowFunc = func() time.Time { return today }

	seed := func(doctorID uuid.UUID, createdAt time.Time) uuid.UUID {
		start, _ := DayWindow(createdAt, time.UTC)
		p, err := fx.store.Create(context.Background(), CreatePatientInput{
			Name: "p", Age: 20, Gender: "female",
			DoctorID: doctorID, RegistrationDay: start, CreatedAt: createdAt,
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		return p.ID
	}

	wantEarly := seed(fx.doctorID, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC))  // inclusive start
	wantLate := seed(fx.doctorID, time.Date(2024, 3, 15, 23, 59, 59, 0, time.UTC)) // inside
	seed(fx.doctorID, time.Date(2024, 3, 14, 23, 59, 59, 0, time.UTC))             // yesterday
	seed(fx.doctorID, time.Date(2024, 3, 16, 0, 0, 0, 0, time.UTC))                // exclusive end
	seed(otherDoctor, time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC))                // other doctor, today

	resp, err := fx.svc.TodaysPatients(context.Background(), fx.doctorID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Count != 2 {
		t.Fatalf("expected 2 patients, got %d", resp.Count)
	}

	got := map[uuid.UUID]bool{}
	for _, p := range resp.Patients {
		got[p.ID] = true
	}
	if !got[wantEarly] || !got[wantLate] {
		t.Fatalf("window returned wrong set: %v", got)
	}
	// Newest first.
	if resp.Patients[0].ID != wantLate {
		t.Fatalf("expected newest patient first")
	}
}

func TestGetByIDOwnership(t *testing.T) {
	fx := newFixture()
	patient, err := fx.svc.Register(context.Background(), registration(fx.doctorID))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := fx.svc.GetByID(context.Background(), patient.ID, fx.doctorID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != patient.ID {
		t.Fatalf("expected patient %s, got %s", patient.ID, got.ID)
	}

	if _, err := fx.svc.GetByID(context.Background(), patient.ID, uuid.New()); apperrors.KindOf(err) != apperrors.Forbidden {
		t.Fatalf("expected forbidden for non-owning doctor, got %v", err)
	}

	if _, err := fx.svc.GetByID(context.Background(), uuid.New(), fx.doctorID); apperrors.KindOf(err) != apperrors.NotFound {
		t.Fatalf("expected not-found for unknown patient, got %v", err)
	}
}

func TestPrescribedIsDerived(t *testing.T) {
	fx := newFixture()
	first, err := fx.svc.Register(context.Background(), registration(fx.doctorID))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := fx.svc.Register(context.Background(), registration(fx.doctorID))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	fx.prescriptions.prescribed[first.ID] = true

	patients, err := fx.svc.ListAll(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, p := range patients {
		switch p.ID {
		case first.ID:
			if !p.Prescribed {
				t.Fatal("expected first patient to be flagged prescribed")
			}
		case second.ID:
			if p.Prescribed {
				t.Fatal("expected second patient to not be flagged")
			}
		}
	}
}
