// Package seed loads reference data from a YAML file at startup: an optional
// first admin account plus hospital and medicine catalogs. Applying the same
// file twice is safe; rows that already exist are skipped.
package seed

import (
	"context"
	"os"
	"path/filepath"

	"github.com/cliniflow/platform/pkg/common/apperrors"
	"github.com/cliniflow/platform/pkg/common/logger"
	"github.com/cliniflow/platform/pkg/common/models"
	"gopkg.in/yaml.v3"
)

type AdminSeed struct {
	Name     string `yaml:"name"`
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
}

type HospitalSeed struct {
	Name    string `yaml:"name"`
	Address string `yaml:"address"`
	Phone   string `yaml:"phone"`
}

type MedicineSeed struct {
	Name        string `yaml:"name"`
	GenericName string `yaml:"genericName"`
	Strength    string `yaml:"strength"`
	Type        string `yaml:"type"`
	Company     string `yaml:"company"`
}

type File struct {
	Admin     *AdminSeed     `yaml:"admin"`
	Hospitals []HospitalSeed `yaml:"hospitals"`
	Medicines []MedicineSeed `yaml:"medicines"`
}

type Identity interface {
	Bootstrap(ctx context.Context, req models.BootstrapRequest) (models.User, error)
}

type Registry interface {
	CreateHospital(ctx context.Context, req models.CreateHospitalRequest) (models.Hospital, error)
	CreateMedicine(ctx context.Context, req models.CreateMedicineRequest) (models.Medicine, error)
}

// MedicineIndex answers whether a medicine name is already cataloged;
// medicines carry no uniqueness constraint, so the skip check is explicit.
type MedicineIndex interface {
	MedicineExistsByName(ctx context.Context, name string) (bool, error)
}

func Parse(data []byte) (File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return File{}, err
	}
	return f, nil
}

func Load(path string) (File, error) {
	content, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return File{}, err
	}
	return Parse(content)
}

// Apply provisions everything the file describes. Conflicts (already
// bootstrapped, hospital already present) are skipped, other errors abort.
func Apply(ctx context.Context, f File, identity Identity, registry Registry, medicines MedicineIndex) error {
	if f.Admin != nil {
		_, err := identity.Bootstrap(ctx, models.BootstrapRequest{
			AdminName:     f.Admin.Name,
			AdminEmail:    f.Admin.Email,
			AdminPassword: f.Admin.Password,
		})
		switch {
		case err == nil:
			logger.Log.WithField("email", f.Admin.Email).Info("Seeded admin account")
		case apperrors.KindOf(err) == apperrors.Conflict:
			// Already bootstrapped.
		default:
			return err
		}
	}

	for _, h := range f.Hospitals {
		_, err := registry.CreateHospital(ctx, models.CreateHospitalRequest{
			Name:    h.Name,
			Address: h.Address,
			Phone:   h.Phone,
		})
		if err != nil && apperrors.KindOf(err) != apperrors.Conflict {
			return err
		}
	}

	for _, m := range f.Medicines {
		exists, err := medicines.MedicineExistsByName(ctx, m.Name)
		if err != nil {
			return err
		}
		if exists {
			continue
		}
		if _, err := registry.CreateMedicine(ctx, models.CreateMedicineRequest{
			Name:        m.Name,
			GenericName: m.GenericName,
			Strength:    m.Strength,
			Type:        m.Type,
			Company:     m.Company,
		}); err != nil {
			return err
		}
	}

	logger.Log.WithFields(map[string]interface{}{
		"hospitals": len(f.Hospitals),
		"medicines": len(f.Medicines),
	}).Info("Seed file applied")
	return nil
}
