package services

import (
	"context"
	"github.com/maxaizer/talent-intake/internal/domain/models"
	"github.com/maxaizer/talent-intake/internal/logger"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
	"strings"
	"time"
)

var (
	ErrCandidateNotFound = errors.New("candidate not found")
	ErrEntryNotFound     = errors.New("pipeline entry not found")
)

type pipelineRepository interface {
	AddEntry(ctx context.Context, entry *models.PipelineEntry) error
	GetEntry(ctx context.Context, id int) (*models.PipelineEntry, error)
	FindEntry(ctx context.Context, candidateID, requisitionID string) (*models.PipelineEntry, error)
	EntriesByRequisition(ctx context.Context, requisitionID string, afterID int, limit int) ([]models.PipelineEntry, error)
	Entries(ctx context.Context, afterID int, limit int) ([]models.PipelineEntry, error)
	AppendEvent(ctx context.Context, event *models.StatusEvent) error
	EventsByEntry(ctx context.Context, entryID int) ([]models.StatusEvent, error)
	EventsByEntries(ctx context.Context, entryIDs []int) (map[int][]models.StatusEvent, error)
	UpdateLastKnownStatus(ctx context.Context, entryID int, status string) error
}

type candidateLookup interface {
	GetByExternalID(ctx context.Context, externalID string) (*models.Candidate, error)
}

type statusLabels interface {
	GetLabel(ctx context.Context, label string) (string, error)
}

type AddToRequisitionRequest struct {
	CandidateID   string
	RequisitionID string
	ListType      string
	// Status, when set, is recorded as the first status event.
	Status     string
	OccurredAt string
}

// PipelineSummary is the derived status view of a set of pipeline entries.
type PipelineSummary struct {
	Snapshots      []StatusSnapshot
	Counts         map[string]int
	AverageAgeDays map[string]float64
}

type PipelineService struct {
	pipeline   pipelineRepository
	candidates candidateLookup
	statuses   statusLabels
	pageSize   int
	now        func() time.Time
}

func NewPipelineService(pipeline pipelineRepository, candidates candidateLookup, statuses statusLabels,
	pageSize int) (*PipelineService, error) {

	if pipeline == nil || candidates == nil || statuses == nil {
		return nil, errors.New("pipeline service dependencies must not be nil")
	}
	if pageSize <= 0 {
		return nil, errors.New("page size must be greater than zero")
	}

	return &PipelineService{
		pipeline:   pipeline,
		candidates: candidates,
		statuses:   statuses,
		pageSize:   pageSize,
		now:        time.Now,
	}, nil
}

// AddToRequisition links a candidate to a requisition. Adding the same pair
// twice returns the existing entry.
func (s *PipelineService) AddToRequisition(ctx context.Context, req AddToRequisitionRequest) (*models.PipelineEntry, error) {
	req.RequisitionID = strings.TrimSpace(req.RequisitionID)
	if req.RequisitionID == "" {
		return nil, errors.New("requisition id is required")
	}

	candidate, err := s.candidates.GetByExternalID(ctx, req.CandidateID)
	if err != nil {
		return nil, errors.Wrap(err, "get candidate")
	}
	if candidate == nil {
		return nil, errors.Wrapf(ErrCandidateNotFound, "%s", req.CandidateID)
	}

	entry, err := s.pipeline.FindEntry(ctx, req.CandidateID, req.RequisitionID)
	if err != nil {
		return nil, errors.Wrap(err, "find pipeline entry")
	}
	if entry != nil {
		return entry, nil
	}

	entry = &models.PipelineEntry{
		CandidateID:   req.CandidateID,
		RequisitionID: req.RequisitionID,
		ListType:      req.ListType,
	}
	if err = s.pipeline.AddEntry(ctx, entry); err != nil {
		log.WithField(logger.ErrorTypeField, logger.ErrorTypeDb).Errorf("failed to add pipeline entry: %v", err)
		return nil, errors.Wrap(err, "add pipeline entry")
	}

	if req.Status != "" {
		event, err := s.AppendStatus(ctx, entry.ID, req.Status, req.OccurredAt)
		if err != nil {
			return entry, err
		}
		entry.LastKnownStatus = event.Status
	}
	return entry, nil
}

// AppendStatus records a status change. The label must exist in the master
// status list. The entry's last known status is refreshed on a best-effort
// basis.
func (s *PipelineService) AppendStatus(ctx context.Context, entryID int, status string,
	occurredAt string) (models.StatusEvent, error) {

	label, err := s.statuses.GetLabel(ctx, status)
	if err != nil {
		return models.StatusEvent{}, err
	}

	entry, err := s.pipeline.GetEntry(ctx, entryID)
	if err != nil {
		return models.StatusEvent{}, errors.Wrap(err, "get pipeline entry")
	}
	if entry == nil {
		return models.StatusEvent{}, errors.Wrapf(ErrEntryNotFound, "%d", entryID)
	}

	event := models.StatusEvent{EntryID: entryID, Status: label, OccurredAt: strings.TrimSpace(occurredAt)}
	if err = s.pipeline.AppendEvent(ctx, &event); err != nil {
		log.WithField(logger.ErrorTypeField, logger.ErrorTypeDb).Errorf("failed to append status event: %v", err)
		return models.StatusEvent{}, errors.Wrap(err, "append status event")
	}

	s.refreshLastKnownStatus(ctx, *entry)
	return event, nil
}

func (s *PipelineService) refreshLastKnownStatus(ctx context.Context, entry models.PipelineEntry) {
	events, err := s.pipeline.EventsByEntry(ctx, entry.ID)
	if err != nil {
		log.WithField(logger.ErrorTypeField, logger.ErrorTypeDb).
			Warnf("failed to load events of entry %d for status cache: %v", entry.ID, err)
		return
	}

	status := ResolveStatus(events, entry.LastKnownStatus)
	if status == entry.LastKnownStatus {
		return
	}
	if err = s.pipeline.UpdateLastKnownStatus(ctx, entry.ID, status); err != nil {
		log.WithField(logger.ErrorTypeField, logger.ErrorTypeDb).
			Warnf("failed to update last known status of entry %d: %v", entry.ID, err)
	}
}

func (s *PipelineService) CurrentStatus(ctx context.Context, entryID int) (StatusSnapshot, error) {
	entry, err := s.pipeline.GetEntry(ctx, entryID)
	if err != nil {
		return StatusSnapshot{}, errors.Wrap(err, "get pipeline entry")
	}
	if entry == nil {
		return StatusSnapshot{}, errors.Wrapf(ErrEntryNotFound, "%d", entryID)
	}

	events, err := s.pipeline.EventsByEntry(ctx, entryID)
	if err != nil {
		return StatusSnapshot{}, errors.Wrap(err, "get status events")
	}
	return Snapshot(*entry, events), nil
}

// RequisitionSummary resolves the current status of every entry of a
// requisition and aggregates counts and average age per status.
func (s *PipelineService) RequisitionSummary(ctx context.Context, requisitionID string) (PipelineSummary, error) {
	return s.summarize(ctx, func(afterID int) ([]models.PipelineEntry, error) {
		return s.pipeline.EntriesByRequisition(ctx, requisitionID, afterID, s.pageSize)
	})
}

// Summary is RequisitionSummary over all entries.
func (s *PipelineService) Summary(ctx context.Context) (PipelineSummary, error) {
	return s.summarize(ctx, func(afterID int) ([]models.PipelineEntry, error) {
		return s.pipeline.Entries(ctx, afterID, s.pageSize)
	})
}

func (s *PipelineService) summarize(ctx context.Context,
	nextPage func(afterID int) ([]models.PipelineEntry, error)) (PipelineSummary, error) {

	var snapshots []StatusSnapshot
	lastID := 0
	for {
		entries, err := nextPage(lastID)
		if err != nil {
			return PipelineSummary{}, errors.Wrap(err, "get pipeline entries")
		}
		if len(entries) == 0 {
			break
		}

		ids := lo.Map(entries, func(e models.PipelineEntry, _ int) int { return e.ID })
		events, err := s.pipeline.EventsByEntries(ctx, ids)
		if err != nil {
			return PipelineSummary{}, errors.Wrap(err, "get status events")
		}
		for _, entry := range entries {
			snapshots = append(snapshots, Snapshot(entry, events[entry.ID]))
		}

		if len(entries) < s.pageSize {
			break
		}
		lastID = entries[len(entries)-1].ID
	}

	return PipelineSummary{
		Snapshots:      snapshots,
		Counts:         CountByStatus(snapshots),
		AverageAgeDays: AverageAgeByStatus(snapshots, s.now()),
	}, nil
}
