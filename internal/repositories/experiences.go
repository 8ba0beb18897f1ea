package repositories

import (
	"context"
	"github.com/maxaizer/talent-intake/internal/domain/models"
	"gorm.io/gorm"
)

type Experiences struct {
	db *gorm.DB
}

func NewExperiencesRepository(db *gorm.DB) *Experiences {
	return &Experiences{db: db}
}

func (repo *Experiences) GetByCandidate(ctx context.Context, candidateID string) ([]models.Experience, error) {
	var experiences []models.Experience
	if err := repo.db.WithContext(ctx).Order("id").Find(&experiences, "candidate_id = ?", candidateID).Error; err != nil {
		return nil, err
	}
	return experiences, nil
}
