package repositories

import (
	"context"
	"github.com/maxaizer/talent-intake/internal/domain/models"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

type Statuses struct {
	db *gorm.DB
}

func NewStatusesRepository(db *gorm.DB) *Statuses {
	return &Statuses{db: db}
}

// GetLabel returns the canonical label of a status from the master list.
func (repo *Statuses) GetLabel(ctx context.Context, label string) (string, error) {
	var status models.PipelineStatus
	err := repo.db.WithContext(ctx).First(&status, "normalized_name = ?", models.NormalizeStatusLabel(label)).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", errors.Wrapf(ErrUnknownStatus, "%q", label)
		}
		return "", err
	}
	return status.Label, nil
}

func (repo *Statuses) GetAll(ctx context.Context) ([]models.PipelineStatus, error) {
	var statuses []models.PipelineStatus
	if err := repo.db.WithContext(ctx).Order("position").Find(&statuses).Error; err != nil {
		return nil, err
	}
	return statuses, nil
}
