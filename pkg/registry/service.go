package registry

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/cliniflow/platform/pkg/common/apperrors"
	"github.com/cliniflow/platform/pkg/common/logger"
	"github.com/cliniflow/platform/pkg/common/models"
	"github.com/redis/go-redis/v9"
)

const (
	hospitalsCacheKey = "registry:hospitals"
	medicinesCacheKey = "registry:medicines"
)

// Store is what the service needs from persistence; *Repository satisfies it.
type Store interface {
	CreateHospital(ctx context.Context, input CreateHospitalInput) (models.Hospital, error)
	ListHospitals(ctx context.Context) ([]models.Hospital, error)
	CreateMedicine(ctx context.Context, input CreateMedicineInput) (models.Medicine, error)
	ListMedicines(ctx context.Context) ([]models.Medicine, error)
}

// Service owns the reference data both admins and doctors look up. Lists are
// read-mostly, so they sit behind a small redis cache invalidated on write;
// the cache is strictly optional and every miss or cache error falls through
// to the store.
type Service struct {
	store    Store
	cache    *redis.Client
	cacheTTL time.Duration
}

func NewService(store Store, cache *redis.Client, cacheTTL time.Duration) *Service {
	return &Service{store: store, cache: cache, cacheTTL: cacheTTL}
}

func (s *Service) CreateHospital(ctx context.Context, req models.CreateHospitalRequest) (models.Hospital, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return models.Hospital{}, apperrors.E(apperrors.Validation, "Hospital name is required")
	}

	hospital, err := s.store.CreateHospital(ctx, CreateHospitalInput{
		Name:    name,
		Address: req.Address,
		Phone:   req.Phone,
	})
	if errors.Is(err, ErrHospitalExists) {
		return models.Hospital{}, apperrors.E(apperrors.Conflict, "Hospital already exists")
	}
	if err != nil {
		return models.Hospital{}, err
	}

	s.invalidate(ctx, hospitalsCacheKey)
	return hospital, nil
}

func (s *Service) ListHospitals(ctx context.Context) ([]models.Hospital, error) {
	var cached []models.Hospital
	if s.fromCache(ctx, hospitalsCacheKey, &cached) {
		return cached, nil
	}

	hospitals, err := s.store.ListHospitals(ctx)
	if err != nil {
		return nil, err
	}

	s.toCache(ctx, hospitalsCacheKey, hospitals)
	return hospitals, nil
}

func (s *Service) CreateMedicine(ctx context.Context, req models.CreateMedicineRequest) (models.Medicine, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" || req.Type == "" {
		return models.Medicine{}, apperrors.E(apperrors.Validation, "Name and type are required")
	}
	if !models.ValidMedicineType(req.Type) {
		return models.Medicine{}, apperrors.Ef(apperrors.Validation, "invalid medicine type %q", req.Type)
	}

	medicine, err := s.store.CreateMedicine(ctx, CreateMedicineInput{
		Name:        name,
		GenericName: req.GenericName,
		Strength:    req.Strength,
		Type:        req.Type,
		Company:     req.Company,
	})
	if err != nil {
		return models.Medicine{}, err
	}

	s.invalidate(ctx, medicinesCacheKey)
	return medicine, nil
}

func (s *Service) ListMedicines(ctx context.Context) ([]models.Medicine, error) {
	var cached []models.Medicine
	if s.fromCache(ctx, medicinesCacheKey, &cached) {
		return cached, nil
	}

	medicines, err := s.store.ListMedicines(ctx)
	if err != nil {
		return nil, err
	}

	s.toCache(ctx, medicinesCacheKey, medicines)
	return medicines, nil
}

func (s *Service) fromCache(ctx context.Context, key string, dst interface{}) bool {
	if s.cache == nil {
		return false
	}
	payload, err := s.cache.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logger.Log.WithError(err).WithField("key", key).Debug("cache read failed")
		}
		return false
	}
	if err := json.Unmarshal(payload, dst); err != nil {
		logger.Log.WithError(err).WithField("key", key).Debug("cache payload invalid")
		return false
	}
	return true
}

func (s *Service) toCache(ctx context.Context, key string, value interface{}) {
	if s.cache == nil {
		return
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, payload, s.cacheTTL).Err(); err != nil {
		logger.Log.WithError(err).WithField("key", key).Debug("cache write failed")
	}
}

func (s *Service) invalidate(ctx context.Context, key string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, key).Err(); err != nil {
		logger.Log.WithError(err).WithField("key", key).Warn("cache invalidation failed")
	}
}
