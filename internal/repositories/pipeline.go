package repositories

import (
	"context"
	"github.com/maxaizer/talent-intake/internal/domain/models"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

type Pipeline struct {
	db *gorm.DB
}

func NewPipelineRepository(db *gorm.DB) *Pipeline {
	return &Pipeline{db: db}
}

func (repo *Pipeline) AddEntry(ctx context.Context, entry *models.PipelineEntry) error {
	return repo.db.WithContext(ctx).Create(entry).Error
}

func (repo *Pipeline) GetEntry(ctx context.Context, id int) (*models.PipelineEntry, error) {
	var entry models.PipelineEntry
	if err := repo.db.WithContext(ctx).First(&entry, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &entry, nil
}

func (repo *Pipeline) FindEntry(ctx context.Context, candidateID, requisitionID string) (*models.PipelineEntry, error) {
	var entries []models.PipelineEntry
	if err := repo.db.WithContext(ctx).
		Where("candidate_id = ? AND requisition_id = ?", candidateID, requisitionID).
		Limit(1).
		Find(&entries).Error; err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, nil
	}
	return &entries[0], nil
}

// EntriesByRequisition pages through the entries of a requisition ordered by id.
func (repo *Pipeline) EntriesByRequisition(ctx context.Context, requisitionID string, afterID int,
	limit int) ([]models.PipelineEntry, error) {

	var entries []models.PipelineEntry
	if err := repo.db.WithContext(ctx).
		Where("requisition_id = ? AND id > ?", requisitionID, afterID).
		Order("id").
		Limit(limit).
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

// Entries pages through all entries ordered by id.
func (repo *Pipeline) Entries(ctx context.Context, afterID int, limit int) ([]models.PipelineEntry, error) {
	var entries []models.PipelineEntry
	if err := repo.db.WithContext(ctx).
		Where("id > ?", afterID).
		Order("id").
		Limit(limit).
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

func (repo *Pipeline) AppendEvent(ctx context.Context, event *models.StatusEvent) error {
	return repo.db.WithContext(ctx).Create(event).Error
}

func (repo *Pipeline) EventsByEntry(ctx context.Context, entryID int) ([]models.StatusEvent, error) {
	var events []models.StatusEvent
	if err := repo.db.WithContext(ctx).Find(&events, "entry_id = ?", entryID).Error; err != nil {
		return nil, err
	}
	return events, nil
}

// EventsByEntries groups the events of several entries by entry id.
func (repo *Pipeline) EventsByEntries(ctx context.Context, entryIDs []int) (map[int][]models.StatusEvent, error) {
	result := make(map[int][]models.StatusEvent, len(entryIDs))
	if len(entryIDs) == 0 {
		return result, nil
	}

	var events []models.StatusEvent
	if err := repo.db.WithContext(ctx).Where("entry_id IN ?", entryIDs).Find(&events).Error; err != nil {
		return nil, err
	}
	for _, event := range events {
		result[event.EntryID] = append(result[event.EntryID], event)
	}
	return result, nil
}

func (repo *Pipeline) UpdateLastKnownStatus(ctx context.Context, entryID int, status string) error {
	return repo.db.WithContext(ctx).Model(&models.PipelineEntry{}).
		Where("id = ?", entryID).
		Update("last_known_status", status).Error
}
