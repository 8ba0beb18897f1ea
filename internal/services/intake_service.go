package services

import (
	"context"
	"github.com/asaskevich/EventBus"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/maxaizer/talent-intake/internal/domain/events"
	"github.com/maxaizer/talent-intake/internal/domain/models"
	"github.com/maxaizer/talent-intake/internal/logger"
	"github.com/maxaizer/talent-intake/internal/metrics"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
	"strings"
)

var (
	ErrTrackingNotFound = errors.New("intake tracking id not found")
	ErrTrackingBusy     = errors.New("intake is being processed by another request")
)

type OutcomeStatus string

const (
	OutcomeSkippedInvalid OutcomeStatus = "skipped_invalid"
	OutcomeDuplicate      OutcomeStatus = "duplicate_found"
	OutcomeCreated        OutcomeStatus = "queued_new"
	OutcomePending        OutcomeStatus = "pending"
	OutcomeFailed         OutcomeStatus = "failed"
)

// Outcome is the result of one intake unit.
type Outcome struct {
	Row         int               `json:"row"`
	Status      OutcomeStatus     `json:"status"`
	CandidateID string            `json:"candidate_id,omitempty"`
	TrackingID  string            `json:"tracking_id,omitempty"`
	Reason      MatchReason       `json:"reason,omitempty"`
	Tier        MatchTier         `json:"tier,omitempty"`
	Error       string            `json:"error,omitempty"`
	Fields      map[string]string `json:"fields,omitempty"`
}

func duplicateOutcome(verdict Verdict) Outcome {
	outcome := Outcome{Status: OutcomeDuplicate, Reason: verdict.Reason, Tier: verdict.Tier}
	if verdict.Tier == TierProcessing {
		outcome.TrackingID = verdict.MatchedID
	} else {
		outcome.CandidateID = verdict.MatchedID
	}
	return outcome
}

type duplicateChecker interface {
	FindDuplicate(ctx context.Context, identity models.Identity) (Verdict, error)
	FindActiveProcessing(ctx context.Context, identity models.Identity, exclude ...string) (Verdict, error)
	HasProfileHost(normalizedURL string) bool
}

type idAllocator interface {
	ReserveIDs(ctx context.Context, ns Namespace, count int) (int64, error)
	Allocate(ctx context.Context, ns Namespace, count int) ([]string, error)
}

type candidateRepository interface {
	Add(ctx context.Context, candidate *models.Candidate) error
	AddWithExperiences(ctx context.Context, candidate *models.Candidate, experiences []models.Experience) error
}

type intakeQueueRepository interface {
	Add(ctx context.Context, items ...models.IntakeQueueItem) error
	GetByID(ctx context.Context, id string) (*models.IntakeQueueItem, error)
	Claim(ctx context.Context, id string) (bool, error)
	Reopen(ctx context.Context, id string) (bool, error)
	Resolve(ctx context.Context, id string, status models.QueueStatus, candidateID string, reason string) error
	Fail(ctx context.Context, id string, cause error) error
}

type identityLocker interface {
	Lock(ctx context.Context, key string) (func(), error)
}

// IntakeService sequences duplicate checks, id allocation and storage writes
// for the manual, batch and callback entry paths. It holds no shared mutable
// state; concurrent safety comes from storage.
type IntakeService struct {
	matcher    duplicateChecker
	allocator  idAllocator
	candidates candidateRepository
	queue      intakeQueueRepository
	bus        EventBus.Bus
	locker     identityLocker
	limiter    *rate.Limiter
	validate   *validator.Validate
	newID      func() string
}

func NewIntakeService(matcher duplicateChecker, allocator idAllocator, candidates candidateRepository,
	queue intakeQueueRepository, bus EventBus.Bus) (*IntakeService, error) {

	if matcher == nil || allocator == nil || candidates == nil || queue == nil {
		return nil, errors.New("intake service dependencies must not be nil")
	}
	if bus == nil {
		return nil, errors.New("bus is nil")
	}

	return &IntakeService{
		matcher:    matcher,
		allocator:  allocator,
		candidates: candidates,
		queue:      queue,
		bus:        bus,
		validate:   validator.New(),
		newID:      newTrackingID,
	}, nil
}

// WithIdentityLocker enables cross-process identity locking for manual and
// callback intake.
func (s *IntakeService) WithIdentityLocker(locker identityLocker) *IntakeService {
	s.locker = locker
	return s
}

// WithBatchRateLimit paces batch rows. Zero disables pacing.
func (s *IntakeService) WithBatchRateLimit(rowsPerSecond float64) *IntakeService {
	if rowsPerSecond > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(rowsPerSecond), 1)
	} else {
		s.limiter = nil
	}
	return s
}

// sanitize trims the identity and drops an invalid email. It reports false
// when there is nothing to identify the person by.
func (s *IntakeService) sanitize(identity models.Identity) (models.Identity, bool) {
	identity.Name = strings.TrimSpace(identity.Name)
	identity.ProfileURL = strings.TrimSpace(identity.ProfileURL)
	identity.Email = strings.TrimSpace(identity.Email)

	if identity.Email != "" {
		if err := s.validate.Var(identity.Email, "email"); err != nil {
			log.Warnf("dropping malformed email %q from intake of %q", identity.Email, identity.Name)
			identity.Email = ""
		}
	}

	if err := s.validate.Struct(identity); err != nil {
		return identity, false
	}
	return identity, !identity.Normalize().IsEmpty()
}

// checkDuplicates runs the in-progress and permanent checks in that order.
func (s *IntakeService) checkDuplicates(ctx context.Context, identity models.Identity, exclude ...string) (Verdict, error) {
	verdict, err := s.matcher.FindActiveProcessing(ctx, identity, exclude...)
	if err != nil || verdict.IsDuplicate {
		return verdict, err
	}
	return s.matcher.FindDuplicate(ctx, identity)
}

// conflictVerdict explains a unique-constraint rejection on insert.
func (s *IntakeService) conflictVerdict(ctx context.Context, identity models.Identity) Verdict {
	verdict, err := s.matcher.FindDuplicate(ctx, identity)
	if err == nil && verdict.IsDuplicate {
		return verdict
	}
	return Verdict{IsDuplicate: true, Reason: ReasonConstraint, Tier: TierStored}
}

func (s *IntakeService) lockIdentity(ctx context.Context, identity models.Identity) (func(), error) {
	if s.locker == nil {
		return func() {}, nil
	}
	key := s.lockKey(identity)
	if key == "" {
		return func() {}, nil
	}
	return s.locker.Lock(ctx, key)
}

// lockKey keys on the profile url only when it is trusted, like matching does.
func (s *IntakeService) lockKey(identity models.Identity) string {
	normalized := identity.Normalize()
	if !s.matcher.HasProfileHost(normalized.URL) {
		normalized.URL = ""
	}
	return normalized.Key()
}

func (s *IntakeService) publishCreated(candidate models.Candidate, source models.IntakeSource, batchID, trackingID string) {
	s.bus.Publish(events.CandidateCreatedTopic, events.CandidateCreated{
		Candidate:  candidate,
		Source:     source,
		BatchID:    batchID,
		TrackingID: trackingID,
	})
}

// resolveQueue records bookkeeping after the candidate outcome is settled.
// Failures here don't undo the outcome.
func (s *IntakeService) resolveQueue(ctx context.Context, trackingID string, status models.QueueStatus,
	candidateID string, reason MatchReason) {

	if err := s.queue.Resolve(ctx, trackingID, status, candidateID, string(reason)); err != nil {
		log.WithField(logger.ErrorTypeField, logger.ErrorTypeDb).
			Errorf("failed to resolve intake queue item %s: %v", trackingID, err)
	}
}

func (s *IntakeService) failQueue(ctx context.Context, trackingID string, cause error) {
	if err := s.queue.Fail(ctx, trackingID, cause); err != nil {
		log.WithField(logger.ErrorTypeField, logger.ErrorTypeDb).
			Errorf("failed to mark intake queue item %s as failed: %v", trackingID, err)
	}
}

func newTrackingID() string {
	return uuid.NewString()
}

func recordOutcome(source models.IntakeSource, outcome Outcome) {
	metrics.IntakeOutcomes.WithLabelValues(string(source), string(outcome.Status)).Inc()
}
