package repositories

import (
	"context"
	"github.com/maxaizer/talent-intake/internal/domain/models"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

type Candidates struct {
	db *gorm.DB
}

func NewCandidatesRepository(db *gorm.DB) *Candidates {
	return &Candidates{db: db}
}

// Add inserts a candidate. A unique violation is reported as ErrDuplicateIdentity.
func (repo *Candidates) Add(ctx context.Context, candidate *models.Candidate) error {
	err := repo.db.WithContext(ctx).Create(candidate).Error
	if isUniqueViolation(err) {
		return errors.Wrap(ErrDuplicateIdentity, err.Error())
	}
	return err
}

// AddWithExperiences inserts a candidate together with its experience records.
func (repo *Candidates) AddWithExperiences(ctx context.Context, candidate *models.Candidate,
	experiences []models.Experience) error {

	err := repo.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(candidate).Error; err != nil {
			return err
		}
		if len(experiences) == 0 {
			return nil
		}
		return tx.Create(&experiences).Error
	})
	if isUniqueViolation(err) {
		return errors.Wrap(ErrDuplicateIdentity, err.Error())
	}
	return err
}

// FindByIdentity returns candidates sharing at least one non-empty identity
// field with the given identity, oldest first.
func (repo *Candidates) FindByIdentity(ctx context.Context, identity models.NormalizedIdentity) ([]models.Candidate, error) {

	query := repo.db.WithContext(ctx).Model(&models.Candidate{})
	conditions := 0
	addCondition := func(column, value string) {
		if value == "" {
			return
		}
		if conditions == 0 {
			query = query.Where(column+" = ?", value)
		} else {
			query = query.Or(column+" = ?", value)
		}
		conditions++
	}

	addCondition("normalized_name", identity.Name)
	addCondition("normalized_url", identity.URL)
	addCondition("email", identity.Email)

	if conditions == 0 {
		return []models.Candidate{}, nil
	}

	var candidates []models.Candidate
	if err := query.Order("id").Find(&candidates).Error; err != nil {
		return nil, err
	}
	return candidates, nil
}

func (repo *Candidates) GetByExternalID(ctx context.Context, externalID string) (*models.Candidate, error) {
	var candidate models.Candidate
	err := repo.db.WithContext(ctx).First(&candidate, "external_id = ?", externalID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &candidate, nil
}

// Page returns up to limit candidates with id greater than afterID.
func (repo *Candidates) Page(ctx context.Context, afterID int, limit int) ([]models.Candidate, error) {
	var candidates []models.Candidate
	if err := repo.db.WithContext(ctx).
		Where("id > ?", afterID).
		Order("id").
		Limit(limit).
		Find(&candidates).Error; err != nil {
		return nil, err
	}
	return candidates, nil
}

// ForEach walks every candidate page by page. Returning an error from fn stops the walk.
func (repo *Candidates) ForEach(ctx context.Context, pageSize int, fn func(models.Candidate) error) error {
	lastID := 0
	for {
		page, err := repo.Page(ctx, lastID, pageSize)
		if err != nil {
			return err
		}
		for _, candidate := range page {
			if err = fn(candidate); err != nil {
				return err
			}
		}
		if len(page) < pageSize {
			return nil
		}
		lastID = page[len(page)-1].ID
	}
}

func (repo *Candidates) Count(ctx context.Context) (int64, error) {
	var count int64
	err := repo.db.WithContext(ctx).Model(&models.Candidate{}).Count(&count).Error
	return count, err
}
