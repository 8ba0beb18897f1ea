package services

import (
	"context"
	"github.com/maxaizer/talent-intake/internal/metrics"
	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
	"time"
)

type QueueCleanupRepository interface {
	ExpireStale(ctx context.Context, before time.Time) (int64, error)
}

// QueueCleaner expires intake queue items stuck in progress, so a crashed
// intake doesn't block the same person forever.
type QueueCleaner struct {
	queue   QueueCleanupRepository
	cron    *cron.Cron
	timeout time.Duration
	now     func() time.Time
}

func NewQueueCleaner(queue QueueCleanupRepository, timeout time.Duration) (*QueueCleaner, error) {

	if timeout <= 0 {
		return nil, errors.New("processing timeout must be greater than zero")
	}

	return &QueueCleaner{
		queue:   queue,
		cron:    cron.New(),
		timeout: timeout,
		now:     time.Now,
	}, nil
}

// Start runs ExpireStale on the given cron schedule.
func (qc *QueueCleaner) Start(schedule string) error {
	_, err := qc.cron.AddFunc(schedule, func() {
		_, _ = qc.ExpireStale(context.Background())
	})
	if err != nil {
		return err
	}

	qc.cron.Start()
	log.Infof("intake queue cleaner started, processing timeout: %v", qc.timeout)
	return nil
}

func (qc *QueueCleaner) Stop() {
	qc.cron.Stop()
}

func (qc *QueueCleaner) ExpireStale(ctx context.Context) (int64, error) {
	rowsAffected, err := qc.queue.ExpireStale(ctx, qc.now().Add(-qc.timeout))
	if err != nil {
		log.Errorf("Failed to expire stale intake queue items: %v", err)
		return 0, err
	}

	metrics.ExpiredQueueItems.Add(float64(rowsAffected))
	if rowsAffected > 0 {
		log.Infof("Stale intake queue items expired at %v, affected rows: %v", qc.now(), rowsAffected)
	}
	return rowsAffected, nil
}
