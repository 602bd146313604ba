package identity

import (
	"context"
	"errors"
	"strings"

	"github.com/cliniflow/platform/pkg/common/apperrors"
	"github.com/cliniflow/platform/pkg/common/kafka"
	"github.com/cliniflow/platform/pkg/common/logger"
	"github.com/cliniflow/platform/pkg/common/models"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Store is what the service needs from persistence; *Repository satisfies it.
type Store interface {
	CreateUser(ctx context.Context, input CreateUserInput) (models.User, error)
	CreateDoctorAccount(ctx context.Context, account CreateUserInput, profile CreateProfileInput) (models.Doctor, error)
	GetUserByEmail(ctx context.Context, email string) (models.User, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (models.User, error)
	GetPasswordHash(ctx context.Context, id uuid.UUID) (string, error)
	CountUsers(ctx context.Context) (int64, error)
	GetDoctorByUserID(ctx context.Context, userID uuid.UUID) (models.Doctor, error)
	ListDoctors(ctx context.Context) ([]models.Doctor, error)
}

// HospitalDirectory checks referenced hospitals; the registry package
// provides it.
type HospitalDirectory interface {
	HospitalExists(ctx context.Context, id uuid.UUID) (bool, error)
}

type Service struct {
	store     Store
	hospitals HospitalDirectory
	events    *kafka.Producer
}

func NewService(store Store, hospitals HospitalDirectory, events *kafka.Producer) *Service {
	return &Service{store: store, hospitals: hospitals, events: events}
}

// Bootstrap creates the initial admin account. Refused once any account
// exists, so it is only usable on an empty deployment.
func (s *Service) Bootstrap(ctx context.Context, req models.BootstrapRequest) (models.User, error) {
	count, err := s.store.CountUsers(ctx)
	if err != nil {
		return models.User{}, err
	}
	if count > 0 {
		return models.User{}, apperrors.E(apperrors.Conflict, "already bootstrapped")
	}
	if strings.TrimSpace(req.AdminEmail) == "" || req.AdminPassword == "" {
		return models.User{}, apperrors.E(apperrors.Validation, "email and password are required")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.AdminPassword), bcrypt.DefaultCost)
	if err != nil {
		return models.User{}, err
	}

	user, err := s.store.CreateUser(ctx, CreateUserInput{
		Name:         strings.TrimSpace(req.AdminName),
		Email:        req.AdminEmail,
		Role:         models.RoleAdmin,
		PasswordHash: string(hash),
	})
	if errors.Is(err, ErrEmailAlreadyExists) {
		return models.User{}, apperrors.E(apperrors.Conflict, "email already registered")
	}
	return user, err
}

// CreateDoctor provisions a doctor account plus its clinical profile. The
// account and profile are written atomically by the store.
func (s *Service) CreateDoctor(ctx context.Context, req models.CreateDoctorRequest) (models.Doctor, error) {
	if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.Email) == "" || req.Password == "" {
		return models.Doctor{}, apperrors.E(apperrors.Validation, "name, email and password are required")
	}
	if req.Hospital == uuid.Nil {
		return models.Doctor{}, apperrors.E(apperrors.Validation, "hospital is required")
	}

	exists, err := s.hospitals.HospitalExists(ctx, req.Hospital)
	if err != nil {
		return models.Doctor{}, err
	}
	if !exists {
		return models.Doctor{}, apperrors.E(apperrors.NotFound, "invalid hospital selected")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return models.Doctor{}, err
	}

	doctor, err := s.store.CreateDoctorAccount(ctx,
		CreateUserInput{
			Name:         strings.TrimSpace(req.Name),
			Email:        req.Email,
			Role:         models.RoleDoctor,
			PasswordHash: string(hash),
		},
		CreateProfileInput{
			Specialization: req.Specialization,
			Phone:          req.Phone,
			HospitalID:     req.Hospital,
		},
	)
	if errors.Is(err, ErrEmailAlreadyExists) {
		return models.Doctor{}, apperrors.E(apperrors.Conflict, "email already registered")
	}
	if err != nil {
		return models.Doctor{}, err
	}

	if err := s.events.PublishEvent(ctx, "doctor.created", "identity", map[string]interface{}{
		"doctor_id":   doctor.ID.String(),
		"hospital_id": doctor.HospitalID.String(),
	}); err != nil {
		logger.Log.WithError(err).Warn("doctor.created event not published")
	}

	return doctor, nil
}

func (s *Service) ListDoctors(ctx context.Context) ([]models.Doctor, error) {
	return s.store.ListDoctors(ctx)
}

// Authenticate verifies an email/password pair. Unknown email and wrong
// password produce the same failure.
func (s *Service) Authenticate(ctx context.Context, email, password string) (models.User, error) {
	invalid := apperrors.E(apperrors.Auth, "invalid credentials")

	if password == "" {
		return models.User{}, invalid
	}

	user, err := s.store.GetUserByEmail(ctx, email)
	if errors.Is(err, ErrUserNotFound) {
		return models.User{}, invalid
	}
	if err != nil {
		return models.User{}, err
	}

	hash, err := s.store.GetPasswordHash(ctx, user.ID)
	if err != nil {
		return models.User{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return models.User{}, invalid
	}

	return user, nil
}

func (s *Service) GetUser(ctx context.Context, id uuid.UUID) (models.User, error) {
	user, err := s.store.GetUserByID(ctx, id)
	if errors.Is(err, ErrUserNotFound) {
		return models.User{}, apperrors.E(apperrors.NotFound, "account not found")
	}
	return user, err
}

// ResolveDoctor maps an authenticated subject to its doctor profile. This is
// the only trusted source of the acting doctor on doctor-scoped operations.
func (s *Service) ResolveDoctor(ctx context.Context, userID uuid.UUID) (models.Doctor, error) {
	doctor, err := s.store.GetDoctorByUserID(ctx, userID)
	if errors.Is(err, ErrDoctorNotFound) {
		return models.Doctor{}, apperrors.E(apperrors.NotFound, "doctor profile not found")
	}
	return doctor, err
}
