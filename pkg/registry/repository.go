package registry

import (
	"context"
	"errors"
	"time"

	"github.com/cliniflow/platform/pkg/common/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var ErrHospitalExists = errors.New("hospital already exists")

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

type hospitalModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name      string    `gorm:"uniqueIndex"`
	Address   string
	Phone     string
	CreatedAt time.Time
}

func (hospitalModel) TableName() string { return "hospitals" }

type medicineModel struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name        string    `gorm:"index"`
	GenericName string
	Strength    string
	Type        string
	Company     string
	CreatedAt   time.Time
}

func (medicineModel) TableName() string { return "medicines" }

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&hospitalModel{}, &medicineModel{})
}

type CreateHospitalInput struct {
	Name    string
	Address string
	Phone   string
}

func (r *Repository) CreateHospital(ctx context.Context, input CreateHospitalInput) (models.Hospital, error) {
	var existing int64
	if err := r.db.WithContext(ctx).Model(&hospitalModel{}).Where("name = ?", input.Name).Count(&existing).Error; err != nil {
		return models.Hospital{}, err
	}
	if existing > 0 {
		return models.Hospital{}, ErrHospitalExists
	}

	hospital := hospitalModel{
		ID:        uuid.New(),
		Name:      input.Name,
		Address:   input.Address,
		Phone:     input.Phone,
		CreatedAt: time.Now().UTC(),
	}

	if err := r.db.WithContext(ctx).Create(&hospital).Error; err != nil {
		return models.Hospital{}, err
	}
	return mapHospital(hospital), nil
}

func (r *Repository) ListHospitals(ctx context.Context) ([]models.Hospital, error) {
	var rows []hospitalModel
	if err := r.db.WithContext(ctx).Order("name ASC").Find(&rows).Error; err != nil {
		return nil, err
	}

	hospitals := make([]models.Hospital, 0, len(rows))
	for _, row := range rows {
		hospitals = append(hospitals, mapHospital(row))
	}
	return hospitals, nil
}

func (r *Repository) HospitalExists(ctx context.Context, id uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&hospitalModel{}).Where("id = ?", id).Count(&count).Error
	return count > 0, err
}

type CreateMedicineInput struct {
	Name        string
	GenericName string
	Strength    string
	Type        string
	Company     string
}

func (r *Repository) CreateMedicine(ctx context.Context, input CreateMedicineInput) (models.Medicine, error) {
	medicine := medicineModel{
		ID:          uuid.New(),
		Name:        input.Name,
		GenericName: input.GenericName,
		Strength:    input.Strength,
		Type:        input.Type,
		Company:     input.Company,
		CreatedAt:   time.Now().UTC(),
	}

	if err := r.db.WithContext(ctx).Create(&medicine).Error; err != nil {
		return models.Medicine{}, err
	}
	return mapMedicine(medicine), nil
}

func (r *Repository) ListMedicines(ctx context.Context) ([]models.Medicine, error) {
	var rows []medicineModel
	if err := r.db.WithContext(ctx).Order("name ASC").Find(&rows).Error; err != nil {
		return nil, err
	}

	medicines := make([]models.Medicine, 0, len(rows))
	for _, row := range rows {
		medicines = append(medicines, mapMedicine(row))
	}
	return medicines, nil
}

func (r *Repository) MedicineExists(ctx context.Context, id uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&medicineModel{}).Where("id = ?", id).Count(&count).Error
	return count > 0, err
}

func (r *Repository) MedicineExistsByName(ctx context.Context, name string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&medicineModel{}).Where("name = ?", name).Count(&count).Error
	return count > 0, err
}

func mapHospital(hospital hospitalModel) models.Hospital {
	return models.Hospital{
		ID:        hospital.ID,
		Name:      hospital.Name,
		Address:   hospital.Address,
		Phone:     hospital.Phone,
		CreatedAt: hospital.CreatedAt,
	}
}

func mapMedicine(medicine medicineModel) models.Medicine {
	return models.Medicine{
		ID:          medicine.ID,
		Name:        medicine.Name,
		GenericName: medicine.GenericName,
		Strength:    medicine.Strength,
		Type:        medicine.Type,
		Company:     medicine.Company,
		CreatedAt:   medicine.CreatedAt,
	}
}
