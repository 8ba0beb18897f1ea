package repositories

import (
	"context"
	"github.com/maxaizer/talent-intake/internal/domain/models"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"time"
)

type IntakeQueue struct {
	db *gorm.DB
}

func NewIntakeQueueRepository(db *gorm.DB) *IntakeQueue {
	return &IntakeQueue{db: db}
}

func (repo *IntakeQueue) Add(ctx context.Context, items ...models.IntakeQueueItem) error {
	if len(items) == 0 {
		return nil
	}
	return repo.db.WithContext(ctx).Create(&items).Error
}

func (repo *IntakeQueue) GetByID(ctx context.Context, id string) (*models.IntakeQueueItem, error) {
	var item models.IntakeQueueItem
	if err := repo.db.WithContext(ctx).First(&item, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &item, nil
}

// FindInProgress returns pending or processing items whose name or url matches,
// skipping the items listed in exclude.
func (repo *IntakeQueue) FindInProgress(ctx context.Context, identity models.NormalizedIdentity,
	exclude ...string) ([]models.IntakeQueueItem, error) {

	if identity.IsEmpty() {
		return []models.IntakeQueueItem{}, nil
	}

	var match *gorm.DB
	switch {
	case identity.Name != "" && identity.URL != "":
		match = repo.db.Where("normalized_name = ?", identity.Name).Or("normalized_url = ?", identity.URL)
	case identity.Name != "":
		match = repo.db.Where("normalized_name = ?", identity.Name)
	default:
		match = repo.db.Where("normalized_url = ?", identity.URL)
	}

	query := repo.db.WithContext(ctx).
		Where("status IN ?", models.InProgressStatuses).
		Where(match)
	if len(exclude) > 0 {
		query = query.Where("id NOT IN ?", exclude)
	}

	var items []models.IntakeQueueItem
	if err := query.Order("created_at").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// Claim moves an item from pending to processing. It reports false when
// another caller got there first or the item is no longer pending.
func (repo *IntakeQueue) Claim(ctx context.Context, id string) (bool, error) {
	res := repo.db.WithContext(ctx).Model(&models.IntakeQueueItem{}).
		Where("id = ? AND status = ?", id, models.QueuePending).
		Update("status", models.QueueProcessing)
	return res.RowsAffected == 1, res.Error
}

// Resolve records the final outcome of an item.
func (repo *IntakeQueue) Resolve(ctx context.Context, id string, status models.QueueStatus,
	candidateID string, reason string) error {

	return repo.db.WithContext(ctx).Model(&models.IntakeQueueItem{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":       status,
			"candidate_id": candidateID,
			"reason":       reason,
			"error":        "",
		}).Error
}

func (repo *IntakeQueue) Fail(ctx context.Context, id string, cause error) error {
	return repo.db.WithContext(ctx).Model(&models.IntakeQueueItem{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status": models.QueueFailed,
			"error":  cause.Error(),
		}).Error
}

// Reopen puts a failed item back to pending so a retried callback can claim it.
func (repo *IntakeQueue) Reopen(ctx context.Context, id string) (bool, error) {
	res := repo.db.WithContext(ctx).Model(&models.IntakeQueueItem{}).
		Where("id = ? AND status IN ?", id, []models.QueueStatus{models.QueueFailed, models.QueueExpired}).
		Update("status", models.QueuePending)
	return res.RowsAffected == 1, res.Error
}

// ExpireStale marks in-progress items not updated since before as expired.
func (repo *IntakeQueue) ExpireStale(ctx context.Context, before time.Time) (int64, error) {
	res := repo.db.WithContext(ctx).Model(&models.IntakeQueueItem{}).
		Where("status IN ? AND updated_at < ?", models.InProgressStatuses, before).
		Update("status", models.QueueExpired)
	return res.RowsAffected, res.Error
}
