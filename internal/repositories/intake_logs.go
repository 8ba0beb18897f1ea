package repositories

import (
	"context"
	"github.com/maxaizer/talent-intake/internal/domain/models"
	"gorm.io/gorm"
)

type IntakeLogs struct {
	db *gorm.DB
}

func NewIntakeLogsRepository(db *gorm.DB) *IntakeLogs {
	return &IntakeLogs{db: db}
}

func (repo *IntakeLogs) Add(ctx context.Context, entry models.IntakeLog) error {
	return repo.db.WithContext(ctx).Create(&entry).Error
}

func (repo *IntakeLogs) GetByCandidate(ctx context.Context, candidateID string) ([]models.IntakeLog, error) {
	var logs []models.IntakeLog
	if err := repo.db.WithContext(ctx).Find(&logs, "candidate_id = ?", candidateID).Error; err != nil {
		return nil, err
	}
	return logs, nil
}
