package identity

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/cliniflow/platform/pkg/common/models"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrDoctorNotFound     = errors.New("doctor not found")
	ErrEmailAlreadyExists = errors.New("email already registered")
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

type userModel struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name         string
	Email        string `gorm:"uniqueIndex"`
	Role         string `gorm:"index"`
	PasswordHash string
	Metadata     datatypes.JSONMap `gorm:"type:jsonb"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (userModel) TableName() string { return "users" }

type doctorModel struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID         uuid.UUID `gorm:"type:uuid;uniqueIndex"`
	Specialization string
	Phone          string
	HospitalID     uuid.UUID `gorm:"type:uuid;index"`
	CreatedAt      time.Time

	User     *userModel   `gorm:"foreignKey:UserID"`
	Hospital *hospitalRef `gorm:"foreignKey:HospitalID"`
}

func (doctorModel) TableName() string { return "doctors" }

// hospitalRef is a read-only view over the registry's hospitals table, so
// doctor listings can join hospital fields without owning that schema.
type hospitalRef struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name      string
	Address   string
	Phone     string
	CreatedAt time.Time
}

func (hospitalRef) TableName() string { return "hospitals" }

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&userModel{}, &doctorModel{})
}

type CreateUserInput struct {
	Name         string
	Email        string
	Role         models.Role
	PasswordHash string
	Metadata     map[string]interface{}
}

type CreateProfileInput struct {
	Specialization string
	Phone          string
	HospitalID     uuid.UUID
}

func (r *Repository) CreateUser(ctx context.Context, input CreateUserInput) (models.User, error) {
	user, err := r.createUserTx(ctx, r.db, input)
	if err != nil {
		return models.User{}, err
	}
	return mapUser(user), nil
}

// CreateDoctorAccount creates the account and its doctor profile in a single
// transaction: a failed profile insert must not leave an orphaned account.
func (r *Repository) CreateDoctorAccount(ctx context.Context, account CreateUserInput, profile CreateProfileInput) (models.Doctor, error) {
	var user userModel
	var doctor doctorModel

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		created, err := r.createUserTx(ctx, tx, account)
		if err != nil {
			return err
		}
		user = created

		doctor = doctorModel{
			ID:             uuid.New(),
			UserID:         user.ID,
			Specialization: profile.Specialization,
			Phone:          profile.Phone,
			HospitalID:     profile.HospitalID,
			CreatedAt:      time.Now().UTC(),
		}
		return tx.Create(&doctor).Error
	})
	if err != nil {
		return models.Doctor{}, err
	}

	doctor.User = &user
	return mapDoctor(doctor), nil
}

func (r *Repository) createUserTx(ctx context.Context, tx *gorm.DB, input CreateUserInput) (userModel, error) {
	normalizedEmail := strings.ToLower(strings.TrimSpace(input.Email))

	var existing int64
	if err := tx.WithContext(ctx).Model(&userModel{}).Where("email = ?", normalizedEmail).Count(&existing).Error; err != nil {
		return userModel{}, err
	}
	if existing > 0 {
		return userModel{}, ErrEmailAlreadyExists
	}

	user := userModel{
		ID:           uuid.New(),
		Name:         input.Name,
		Email:        normalizedEmail,
		Role:         string(input.Role),
		PasswordHash: input.PasswordHash,
		Metadata:     datatypes.JSONMap(input.Metadata),
		CreatedAt:    time.Now().UTC(),
		UpdatedAt:    time.Now().UTC(),
	}

	if err := tx.WithContext(ctx).Create(&user).Error; err != nil {
		return userModel{}, err
	}
	return user, nil
}

func (r *Repository) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	var user userModel
	err := r.db.WithContext(ctx).Where("email = ?", strings.ToLower(strings.TrimSpace(email))).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.User{}, ErrUserNotFound
	}
	if err != nil {
		return models.User{}, err
	}
	return mapUser(user), nil
}

func (r *Repository) GetUserByID(ctx context.Context, id uuid.UUID) (models.User, error) {
	var user userModel
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.User{}, ErrUserNotFound
	}
	if err != nil {
		return models.User{}, err
	}
	return mapUser(user), nil
}

func (r *Repository) GetPasswordHash(ctx context.Context, id uuid.UUID) (string, error) {
	var user userModel
	err := r.db.WithContext(ctx).Select("password_hash").Where("id = ?", id).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrUserNotFound
	}
	if err != nil {
		return "", err
	}
	return user.PasswordHash, nil
}

func (r *Repository) CountUsers(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&userModel{}).Count(&count).Error
	return count, err
}

func (r *Repository) GetDoctorByUserID(ctx context.Context, userID uuid.UUID) (models.Doctor, error) {
	var doctor doctorModel
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&doctor).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Doctor{}, ErrDoctorNotFound
	}
	if err != nil {
		return models.Doctor{}, err
	}
	return mapDoctor(doctor), nil
}

func (r *Repository) DoctorExists(ctx context.Context, id uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&doctorModel{}).Where("id = ?", id).Count(&count).Error
	return count > 0, err
}

func (r *Repository) ListDoctors(ctx context.Context) ([]models.Doctor, error) {
	var rows []doctorModel
	err := r.db.WithContext(ctx).
		Preload("User").
		Preload("Hospital").
		Order("created_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	doctors := make([]models.Doctor, 0, len(rows))
	for _, row := range rows {
		doctors = append(doctors, mapDoctor(row))
	}
	return doctors, nil
}

func mapUser(user userModel) models.User {
	return models.User{
		ID:        user.ID,
		Name:      user.Name,
		Email:     user.Email,
		Role:      models.Role(user.Role),
		Metadata:  map[string]interface{}(user.Metadata),
		CreatedAt: user.CreatedAt,
		UpdatedAt: user.UpdatedAt,
	}
}

func mapDoctor(doctor doctorModel) models.Doctor {
	out := models.Doctor{
		ID:             doctor.ID,
		UserID:         doctor.UserID,
		Specialization: doctor.Specialization,
		Phone:          doctor.Phone,
		HospitalID:     doctor.HospitalID,
		CreatedAt:      doctor.CreatedAt,
	}
	if doctor.User != nil {
		user := mapUser(*doctor.User)
		out.User = &user
	}
	if doctor.Hospital != nil {
		out.Hospital = &models.Hospital{
			ID:        doctor.Hospital.ID,
			Name:      doctor.Hospital.Name,
			Address:   doctor.Hospital.Address,
			Phone:     doctor.Hospital.Phone,
			CreatedAt: doctor.Hospital.CreatedAt,
		}
	}
	return out
}
