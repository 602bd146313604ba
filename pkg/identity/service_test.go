package identity

import (
	"context"
	"testing"

	"github.com/cliniflow/platform/pkg/common/apperrors"
	"github.com/cliniflow/platform/pkg/common/logger"
	"github.com/cliniflow/platform/pkg/common/models"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

func init() {
	logger.Init()
}

type fakeStore struct {
	users   map[uuid.UUID]models.User
	byEmail map[string]uuid.UUID
	hashes  map[uuid.UUID]string
	doctors map[uuid.UUID]models.Doctor // keyed by user id
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:   map[uuid.UUID]models.User{},
		byEmail: map[string]uuid.UUID{},
		hashes:  map[uuid.UUID]string{},
		doctors: map[uuid.UUID]models.Doctor{},
	}
}

func (f *fakeStore) CreateUser(ctx context.Context, input CreateUserInput) (models.User, error) {
	if _, taken := f.byEmail[input.Email]; taken {
		return models.User{}, ErrEmailAlreadyExists
	}
	user := models.User{ID: uuid.New(), Name: input.Name, Email: input.Email, Role: input.Role}
	f.users[user.ID] = user
	f.byEmail[user.Email] = user.ID
	f.hashes[user.ID] = input.PasswordHash
	return user, nil
}

func (f *fakeStore) CreateDoctorAccount(ctx context.Context, account CreateUserInput, profile CreateProfileInput) (models.Doctor, error) {
	user, err := f.CreateUser(ctx, account)
	if err != nil {
		return models.Doctor{}, err
	}
	doctor := models.Doctor{
		ID:             uuid.New(),
		UserID:         user.ID,
		Specialization: profile.Specialization,
		Phone:          profile.Phone,
		HospitalID:     profile.HospitalID,
		User:           &user,
	}
	f.doctors[user.ID] = doctor
	return doctor, nil
}

func (f *fakeStore) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	id, ok := f.byEmail[email]
	if !ok {
		return models.User{}, ErrUserNotFound
	}
	return f.users[id], nil
}

func (f *fakeStore) GetUserByID(ctx context.Context, id uuid.UUID) (models.User, error) {
	user, ok := f.users[id]
	if !ok {
		return models.User{}, ErrUserNotFound
	}
	return user, nil
}

func (f *fakeStore) GetPasswordHash(ctx context.Context, id uuid.UUID) (string, error) {
	hash, ok := f.hashes[id]
	if !ok {
		return "", ErrUserNotFound
	}
	return hash, nil
}

func (f *fakeStore) CountUsers(ctx context.Context) (int64, error) {
	return int64(len(f.users)), nil
}

func (f *fakeStore) GetDoctorByUserID(ctx context.Context, userID uuid.UUID) (models.Doctor, error) {
	doctor, ok := f.doctors[userID]
	if !ok {
		return models.Doctor{}, ErrDoctorNotFound
	}
	return doctor, nil
}

func (f *fakeStore) ListDoctors(ctx context.Context) ([]models.Doctor, error) {
	out := make([]models.Doctor, 0, len(f.doctors))
	for _, d := range f.doctors {
		out = append(out, d)
	}
	return out, nil
}

type fakeHospitals struct {
	known map[uuid.UUID]bool
}

func (f *fakeHospitals) HospitalExists(ctx context.Context, id uuid.UUID) (bool, error) {
	return f.known[id], nil
}

func newTestService() (*Service, *fakeStore, uuid.UUID) {
	store := newFakeStore()
	hospitalID := uuid.New()
	hospitals := &fakeHospitals{known: map[uuid.UUID]bool{hospitalID: true}}
	return NewService(store, hospitals, nil), store, hospitalID
}

func doctorRequest(hospitalID uuid.UUID) models.CreateDoctorRequest {
	return models.CreateDoctorRequest{
		Name:           "Dr. A",
		Email:          "dra@clinic.test",
		Password:       "s3cret-pass",
		Specialization: "Cardiology",
		Phone:          "555-0100",
		Hospital:       hospitalID,
	}
}

func TestCreateDoctorHappyPath(t *testing.T) {
	svc, store, hospitalID := newTestService()

	doctor, err := svc.CreateDoctor(context.Background(), doctorRequest(hospitalID))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doctor.HospitalID != hospitalID {
		t.Fatalf("expected hospital %s, got %s", hospitalID, doctor.HospitalID)
	}
	if doctor.User == nil || doctor.User.Role != models.RoleDoctor {
		t.Fatalf("expected linked doctor-role account, got %+v", doctor.User)
	}

	// Password is stored hashed, never verbatim.
	hash := store.hashes[doctor.UserID]
	if hash == "s3cret-pass" {
		t.Fatal("password stored in clear")
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte("s3cret-pass")) != nil {
		t.Fatal("stored hash does not match password")
	}
}

func TestCreateDoctorValidation(t *testing.T) {
	svc, _, hospitalID := newTestService()

	req := doctorRequest(hospitalID)
	req.Email = ""
	if _, err := svc.CreateDoctor(context.Background(), req); apperrors.KindOf(err) != apperrors.Validation {
		t.Fatalf("expected validation error, got %v", err)
	}

	req = doctorRequest(hospitalID)
	req.Hospital = uuid.Nil
	if _, err := svc.CreateDoctor(context.Background(), req); apperrors.KindOf(err) != apperrors.Validation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCreateDoctorUnknownHospital(t *testing.T) {
	svc, _, _ := newTestService()
	req := doctorRequest(uuid.New())
	if _, err := svc.CreateDoctor(context.Background(), req); apperrors.KindOf(err) != apperrors.NotFound {
		t.Fatalf("expected not-found error, got %v", err)
	}
}

func TestCreateDoctorDuplicateEmail(t *testing.T) {
	svc, _, hospitalID := newTestService()
	if _, err := svc.CreateDoctor(context.Background(), doctorRequest(hospitalID)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.CreateDoctor(context.Background(), doctorRequest(hospitalID)); apperrors.KindOf(err) != apperrors.Conflict {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestAuthenticate(t *testing.T) {
	svc, _, hospitalID := newTestService()
	if _, err := svc.CreateDoctor(context.Background(), doctorRequest(hospitalID)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	user, err := svc.Authenticate(context.Background(), "dra@clinic.test", "s3cret-pass")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user.Role != models.RoleDoctor {
		t.Fatalf("expected doctor role, got %s", user.Role)
	}

	// Unknown email and wrong password fail identically.
	_, errUnknown := svc.Authenticate(context.Background(), "nobody@clinic.test", "s3cret-pass")
	_, errWrong := svc.Authenticate(context.Background(), "dra@clinic.test", "wrong")
	for _, err := range []error{errUnknown, errWrong} {
		if apperrors.KindOf(err) != apperrors.Auth {
			t.Fatalf("expected auth error, got %v", err)
		}
		if apperrors.Message(err) != "invalid credentials" {
			t.Fatalf("unexpected message: %q", apperrors.Message(err))
		}
	}
}

func TestResolveDoctor(t *testing.T) {
	svc, _, hospitalID := newTestService()
	doctor, err := svc.CreateDoctor(context.Background(), doctorRequest(hospitalID))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	resolved, err := svc.ResolveDoctor(context.Background(), doctor.UserID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resolved.ID != doctor.ID {
		t.Fatalf("expected doctor %s, got %s", doctor.ID, resolved.ID)
	}

	if _, err := svc.ResolveDoctor(context.Background(), uuid.New()); apperrors.KindOf(err) != apperrors.NotFound {
		t.Fatalf("expected not-found for unknown subject, got %v", err)
	}
}

func TestBootstrapOnlyOnce(t *testing.T) {
	svc, _, _ := newTestService()

	req := models.BootstrapRequest{AdminName: "Root", AdminEmail: "root@clinic.test", AdminPassword: "root-pass-123"}
	user, err := svc.Bootstrap(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user.Role != models.RoleAdmin {
		t.Fatalf("expected admin role, got %s", user.Role)
	}

	if _, err := svc.Bootstrap(context.Background(), req); apperrors.KindOf(err) != apperrors.Conflict {
		t.Fatalf("expected conflict on second bootstrap, got %v", err)
	}
}
