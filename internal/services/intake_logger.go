package services

import (
	"context"
	"github.com/asaskevich/EventBus"
	"github.com/maxaizer/talent-intake/internal/domain/events"
	"github.com/maxaizer/talent-intake/internal/domain/models"
	"github.com/maxaizer/talent-intake/internal/logger"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

type intakeLogRepository interface {
	Add(ctx context.Context, entry models.IntakeLog) error
}

// IntakeLogger keeps an audit row per created candidate.
type IntakeLogger struct {
	logs intakeLogRepository
}

func NewIntakeLogger(bus EventBus.Bus, logs intakeLogRepository) (*IntakeLogger, error) {
	if logs == nil {
		return nil, errors.New("intake log repository is nil")
	}

	l := &IntakeLogger{logs: logs}
	if err := bus.Subscribe(events.CandidateCreatedTopic, l.OnCandidateCreated); err != nil {
		return nil, errors.Wrap(err, "subscribe to candidate created")
	}
	return l, nil
}

func (l *IntakeLogger) OnCandidateCreated(event events.CandidateCreated) {
	entry := models.IntakeLog{
		CandidateID: event.Candidate.ExternalID,
		Source:      string(event.Source),
		BatchID:     event.BatchID,
		TrackingID:  event.TrackingID,
	}
	if err := l.logs.Add(context.Background(), entry); err != nil {
		log.WithField(logger.ErrorTypeField, logger.ErrorTypeDb).
			Errorf("failed to write intake log for %s: %v", entry.CandidateID, err)
	}
}
