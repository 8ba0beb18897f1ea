package services

import (
	"context"
	"fmt"
	"github.com/maxaizer/talent-intake/internal/domain/models"
	"github.com/maxaizer/talent-intake/internal/logger"
	"github.com/maxaizer/talent-intake/internal/metrics"
	"github.com/maxaizer/talent-intake/internal/normalize"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"time"
)

// ErrDuplicateCheckFailed means storage could not answer a duplicate check.
// Intake refuses to proceed; callers may retry.
var ErrDuplicateCheckFailed = errors.New("duplicate check failed")

type MatchReason string

const (
	ReasonName       MatchReason = "name"
	ReasonLinkedIn   MatchReason = "linkedin"
	ReasonEmail      MatchReason = "email"
	ReasonConstraint MatchReason = "constraint"
	ReasonLocked     MatchReason = "locked"
)

// MatchTier tells which population the duplicate was found in.
type MatchTier string

const (
	TierBatch      MatchTier = "in_batch"
	TierProcessing MatchTier = "in_progress"
	TierStored     MatchTier = "stored"
)

type Verdict struct {
	IsDuplicate bool
	// MatchedID is a candidate external id, or a tracking id for TierProcessing.
	MatchedID string
	Reason    MatchReason
	Tier      MatchTier
}

var notDuplicate = Verdict{}

type candidateFinder interface {
	FindByIdentity(ctx context.Context, identity models.NormalizedIdentity) ([]models.Candidate, error)
}

type queueFinder interface {
	FindInProgress(ctx context.Context, identity models.NormalizedIdentity, exclude ...string) ([]models.IntakeQueueItem, error)
}

type IdentityMatcher struct {
	candidates         candidateFinder
	queue              queueFinder
	profileHostMarkers []string
}

func NewIdentityMatcher(candidates candidateFinder, queue queueFinder, profileHostMarkers []string) *IdentityMatcher {
	return &IdentityMatcher{
		candidates:         candidates,
		queue:              queue,
		profileHostMarkers: profileHostMarkers,
	}
}

// HasProfileHost reports whether a normalized url points at a recognized
// profile host. Only such urls take part in matching.
func (m *IdentityMatcher) HasProfileHost(normalizedURL string) bool {
	return normalizedURL != "" && normalize.ContainsAny(normalizedURL, m.profileHostMarkers)
}

// FindDuplicate checks the permanent candidate store.
func (m *IdentityMatcher) FindDuplicate(ctx context.Context, identity models.Identity) (Verdict, error) {
	normalized := identity.Normalize()
	if normalized.IsEmpty() {
		return notDuplicate, nil
	}

	start := time.Now()
	candidates, err := m.candidates.FindByIdentity(ctx, m.searchable(normalized))
	metrics.DuplicateCheckDuration.WithLabelValues(string(TierStored)).Observe(time.Since(start).Seconds())
	if err != nil {
		log.WithField(logger.ErrorTypeField, logger.ErrorTypeDb).Errorf("failed to look up candidates: %v", err)
		return notDuplicate, fmt.Errorf("%w: %w", ErrDuplicateCheckFailed, err)
	}

	for _, candidate := range candidates {
		if reason, ok := m.compare(normalized, candidate.NormalizedName, candidate.NormalizedURL, candidate.Email); ok {
			return Verdict{IsDuplicate: true, MatchedID: candidate.ExternalID, Reason: reason, Tier: TierStored}, nil
		}
	}

	return notDuplicate, nil
}

// FindActiveProcessing checks intake units that are still mid-pipeline, so two
// concurrent intakes of one person don't both pass before either commits.
func (m *IdentityMatcher) FindActiveProcessing(ctx context.Context, identity models.Identity,
	exclude ...string) (Verdict, error) {

	normalized := identity.Normalize()
	if normalized.IsEmpty() {
		return notDuplicate, nil
	}

	start := time.Now()
	items, err := m.queue.FindInProgress(ctx, m.searchable(normalized), exclude...)
	metrics.DuplicateCheckDuration.WithLabelValues(string(TierProcessing)).Observe(time.Since(start).Seconds())
	if err != nil {
		log.WithField(logger.ErrorTypeField, logger.ErrorTypeDb).Errorf("failed to look up intake queue: %v", err)
		return notDuplicate, fmt.Errorf("%w: %w", ErrDuplicateCheckFailed, err)
	}

	nameAndURL := models.NormalizedIdentity{Name: normalized.Name, URL: normalized.URL}
	for _, item := range items {
		if reason, ok := m.compare(nameAndURL, item.NormalizedName, item.NormalizedURL, ""); ok {
			return Verdict{IsDuplicate: true, MatchedID: item.ID, Reason: reason, Tier: TierProcessing}, nil
		}
	}

	return notDuplicate, nil
}

// searchable drops the url from a storage lookup when it isn't trusted.
func (m *IdentityMatcher) searchable(identity models.NormalizedIdentity) models.NormalizedIdentity {
	if !m.HasProfileHost(identity.URL) {
		identity.URL = ""
	}
	return identity
}

func (m *IdentityMatcher) compare(input models.NormalizedIdentity, name, url, email string) (MatchReason, bool) {
	switch {
	case input.Name != "" && input.Name == name:
		return ReasonName, true
	case input.URL != "" && input.URL == url && m.HasProfileHost(input.URL):
		return ReasonLinkedIn, true
	case input.Email != "" && input.Email == email:
		return ReasonEmail, true
	default:
		return "", false
	}
}
