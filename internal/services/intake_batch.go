package services

import (
	"context"
	"fmt"
	"github.com/maxaizer/talent-intake/internal/domain/models"
	"github.com/maxaizer/talent-intake/internal/logger"
	"github.com/maxaizer/talent-intake/internal/metrics"
	"github.com/maxaizer/talent-intake/internal/repositories"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

type BatchRow struct {
	Identity models.Identity
	Profile  models.Profile
	// Fields are passed back untouched in the row outcome.
	Fields map[string]string
}

type BatchResult struct {
	BatchID  string
	Outcomes []Outcome
}

// Count returns how many rows ended with the given status.
func (r BatchResult) Count(status OutcomeStatus) int {
	count := 0
	for _, outcome := range r.Outcomes {
		if outcome.Status == status {
			count++
		}
	}
	return count
}

// batchSeen is the within-batch accumulator. It maps identity keys to the
// index of the first row that carried them.
type batchSeen struct {
	names  map[string]int
	urls   map[string]int
	emails map[string]int
}

func newBatchSeen() *batchSeen {
	return &batchSeen{names: map[string]int{}, urls: map[string]int{}, emails: map[string]int{}}
}

func (b *batchSeen) find(identity models.NormalizedIdentity, trustedURL bool) (int, MatchReason, bool) {
	if idx, ok := b.names[identity.Name]; ok && identity.Name != "" {
		return idx, ReasonName, true
	}
	if idx, ok := b.urls[identity.URL]; ok && trustedURL {
		return idx, ReasonLinkedIn, true
	}
	if idx, ok := b.emails[identity.Email]; ok && identity.Email != "" {
		return idx, ReasonEmail, true
	}
	return 0, "", false
}

func (b *batchSeen) add(identity models.NormalizedIdentity, trustedURL bool, idx int) {
	if identity.Name != "" {
		b.names[identity.Name] = idx
	}
	if trustedURL {
		b.urls[identity.URL] = idx
	}
	if identity.Email != "" {
		b.emails[identity.Email] = idx
	}
}

type pendingRow struct {
	idx        int
	identity   models.Identity
	profile    models.Profile
	trackingID string
}

// Batch runs a bulk upload. Every row gets an outcome. Ids for all new rows
// are reserved in one block before anything is written, so an allocation
// failure leaves storage untouched and is returned as an error.
func (s *IntakeService) Batch(ctx context.Context, rows []BatchRow) (BatchResult, error) {
	result := BatchResult{BatchID: s.newID(), Outcomes: make([]Outcome, len(rows))}
	metrics.BatchSize.Observe(float64(len(rows)))

	seen := newBatchSeen()
	inBatch := map[int]int{}
	var pending []pendingRow

	for i, row := range rows {
		if s.limiter != nil {
			if err := s.limiter.Wait(ctx); err != nil {
				return BatchResult{}, errors.Wrap(err, "batch interrupted")
			}
		}

		outcome := Outcome{Row: i + 1, Fields: row.Fields}

		identity, ok := s.sanitize(row.Identity)
		if !ok {
			outcome.Status = OutcomeSkippedInvalid
			outcome.Error = "name or profile url is required"
			result.Outcomes[i] = outcome
			continue
		}

		normalized := identity.Normalize()
		trustedURL := s.matcher.HasProfileHost(normalized.URL)

		if first, reason, found := seen.find(normalized, trustedURL); found {
			outcome.Status = OutcomeDuplicate
			outcome.Reason = reason
			outcome.Tier = TierBatch
			result.Outcomes[i] = outcome
			inBatch[i] = first
			continue
		}
		seen.add(normalized, trustedURL, i)

		verdict, err := s.checkDuplicates(ctx, identity)
		if err != nil {
			outcome.Status = OutcomeFailed
			outcome.Error = err.Error()
			result.Outcomes[i] = outcome
			continue
		}
		if verdict.IsDuplicate {
			duplicate := duplicateOutcome(verdict)
			duplicate.Row, duplicate.Fields = outcome.Row, outcome.Fields
			result.Outcomes[i] = duplicate
			continue
		}

		result.Outcomes[i] = outcome
		pending = append(pending, pendingRow{idx: i, identity: identity, profile: row.Profile, trackingID: s.newID()})
	}

	if len(pending) > 0 {
		if err := s.commitBatch(ctx, result.BatchID, pending, result.Outcomes); err != nil {
			return BatchResult{}, err
		}
	}

	for dup, first := range inBatch {
		settleInBatchDuplicate(&result.Outcomes[dup], result.Outcomes[first])
	}

	for _, outcome := range result.Outcomes {
		recordOutcome(models.SourceBatch, outcome)
	}

	log.Infof("batch %s processed: %d rows, %d new, %d duplicates, %d skipped, %d failed",
		result.BatchID, len(rows), result.Count(OutcomeCreated), result.Count(OutcomeDuplicate),
		result.Count(OutcomeSkippedInvalid), result.Count(OutcomeFailed))

	return result, nil
}

func (s *IntakeService) commitBatch(ctx context.Context, batchID string, pending []pendingRow, outcomes []Outcome) error {
	start, err := s.allocator.ReserveIDs(ctx, CandidateNamespace, len(pending))
	if err != nil {
		return err
	}
	ids, err := FormatRange(CandidateNamespace, start, len(pending))
	if err != nil {
		return err
	}

	items := make([]models.IntakeQueueItem, 0, len(pending))
	for _, row := range pending {
		items = append(items, models.NewIntakeQueueItem(row.trackingID, batchID, row.identity,
			models.SourceBatch, models.QueueProcessing))
	}
	tracked := true
	if err = s.queue.Add(ctx, items...); err != nil {
		tracked = false
		log.WithField(logger.ErrorTypeField, logger.ErrorTypeDb).
			Warnf("failed to register batch %s in intake queue: %v", batchID, err)
	}

	for i, row := range pending {
		outcome := &outcomes[row.idx]
		if tracked {
			outcome.TrackingID = row.trackingID
		}

		candidate := models.NewCandidate(ids[i], row.identity, row.profile, models.SourceBatch)
		err = s.candidates.Add(ctx, &candidate)
		switch {
		case err == nil:
			outcome.Status = OutcomeCreated
			outcome.CandidateID = candidate.ExternalID
			if tracked {
				s.resolveQueue(ctx, row.trackingID, models.QueueCompleted, candidate.ExternalID, "")
			}
			s.publishCreated(candidate, models.SourceBatch, batchID, row.trackingID)
		case errors.Is(err, repositories.ErrDuplicateIdentity):
			verdict := s.conflictVerdict(ctx, row.identity)
			outcome.Status = OutcomeDuplicate
			outcome.CandidateID = verdict.MatchedID
			outcome.Reason = verdict.Reason
			outcome.Tier = verdict.Tier
			if tracked {
				s.resolveQueue(ctx, row.trackingID, models.QueueDuplicate, verdict.MatchedID, verdict.Reason)
			}
		default:
			log.WithField(logger.ErrorTypeField, logger.ErrorTypeDb).
				Errorf("failed to create candidate for batch %s row %d: %v", batchID, outcome.Row, err)
			outcome.Status = OutcomeFailed
			outcome.Error = err.Error()
			if tracked {
				s.failQueue(ctx, row.trackingID, err)
			}
		}
	}
	return nil
}

// settleInBatchDuplicate points a repeated row at whatever its first
// occurrence ended as. A first row that failed leaves nothing to point at, so
// the repeat fails with it.
func settleInBatchDuplicate(dup *Outcome, first Outcome) {
	switch {
	case first.Status == OutcomeFailed:
		dup.Status = OutcomeFailed
		dup.Reason, dup.Tier = "", ""
		dup.Error = fmt.Sprintf("same person as row %d, which failed: %s", first.Row, first.Error)
	case first.Status == OutcomeDuplicate && first.Tier == TierProcessing:
		dup.TrackingID = first.TrackingID
		dup.Tier = TierProcessing
	default:
		dup.CandidateID = first.CandidateID
	}
}
