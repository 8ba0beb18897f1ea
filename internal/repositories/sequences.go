package repositories

import (
	"context"
	"fmt"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

type Sequences struct {
	db *gorm.DB
}

func NewSequencesRepository(db *gorm.DB) *Sequences {
	return &Sequences{db: db}
}

// Reserve advances the named sequence by count in a single statement and
// returns the first value of the reserved block.
func (repo *Sequences) Reserve(ctx context.Context, name string, count int) (int64, error) {
	if count <= 0 {
		return 0, fmt.Errorf("reserve count must be positive, got %d", count)
	}

	var lastValues []int64
	err := repo.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Raw("UPDATE id_sequences SET last_value = last_value + ?, updated_at = CURRENT_TIMESTAMP "+
			"WHERE name = ? RETURNING last_value", count, name).
			Scan(&lastValues).Error
	})
	if err != nil {
		return 0, errors.Wrapf(ErrSequenceUnavailable, "sequence %s: %v", name, err)
	}

	if len(lastValues) == 0 {
		return 0, errors.Wrapf(ErrSequenceUnavailable, "sequence %s is not seeded", name)
	}

	return lastValues[0] - int64(count) + 1, nil
}

func (repo *Sequences) Current(ctx context.Context, name string) (int64, error) {
	var values []int64
	err := repo.db.WithContext(ctx).Raw("SELECT last_value FROM id_sequences WHERE name = ?", name).
		Scan(&values).Error
	if err != nil {
		return 0, err
	}
	if len(values) == 0 {
		return 0, errors.Wrapf(ErrSequenceUnavailable, "sequence %s is not seeded", name)
	}
	return values[0], nil
}
