package repositories

import (
	"context"
	"github.com/maxaizer/talent-intake/internal/domain/models"
	gocache "github.com/patrickmn/go-cache"
	"time"
)

type statusRepository interface {
	GetLabel(ctx context.Context, label string) (string, error)
}

type CachedStatuses struct {
	repo  statusRepository
	cache *gocache.Cache
}

func NewCachedStatuses(repo statusRepository) *CachedStatuses {
	return &CachedStatuses{repo: repo, cache: gocache.New(10*time.Minute, 20*time.Minute)}
}

func (c CachedStatuses) GetLabel(ctx context.Context, label string) (string, error) {
	key := models.NormalizeStatusLabel(label)
	if value, found := c.cache.Get(key); found {
		return value.(string), nil
	}

	canonical, err := c.repo.GetLabel(ctx, label)
	if err != nil {
		return "", err
	}

	c.cache.SetDefault(key, canonical)
	return canonical, nil
}
