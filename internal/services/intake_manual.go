package services

import (
	"context"
	"github.com/maxaizer/talent-intake/internal/domain/models"
	"github.com/maxaizer/talent-intake/internal/logger"
	"github.com/maxaizer/talent-intake/internal/repositories"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

type ManualRequest struct {
	Identity models.Identity
	Profile  models.Profile
}

// Manual creates one candidate from the manual entry form, or reports the
// existing candidate it duplicates.
func (s *IntakeService) Manual(ctx context.Context, req ManualRequest) (Outcome, error) {
	outcome, err := s.manual(ctx, req)
	if err == nil {
		recordOutcome(models.SourceManual, outcome)
	}
	return outcome, err
}

func (s *IntakeService) manual(ctx context.Context, req ManualRequest) (Outcome, error) {
	identity, ok := s.sanitize(req.Identity)
	if !ok {
		return Outcome{Status: OutcomeSkippedInvalid, Error: "name or profile url is required"}, nil
	}

	unlock, err := s.lockIdentity(ctx, identity)
	if errors.Is(err, ErrIdentityBusy) {
		return Outcome{Status: OutcomeDuplicate, Reason: ReasonLocked, Tier: TierProcessing}, nil
	}
	if err != nil {
		return Outcome{}, err
	}
	defer unlock()

	verdict, err := s.checkDuplicates(ctx, identity)
	if err != nil {
		return Outcome{}, err
	}
	if verdict.IsDuplicate {
		return duplicateOutcome(verdict), nil
	}

	trackingID := s.newID()
	item := models.NewIntakeQueueItem(trackingID, "", identity, models.SourceManual, models.QueueProcessing)
	if err = s.queue.Add(ctx, item); err != nil {
		log.WithField(logger.ErrorTypeField, logger.ErrorTypeDb).Errorf("failed to register manual intake: %v", err)
		return Outcome{}, errors.Wrap(err, "register manual intake")
	}

	ids, err := s.allocator.Allocate(ctx, CandidateNamespace, 1)
	if err != nil {
		s.failQueue(ctx, trackingID, err)
		return Outcome{}, err
	}

	candidate := models.NewCandidate(ids[0], identity, req.Profile, models.SourceManual)
	if err = s.candidates.Add(ctx, &candidate); err != nil {
		if errors.Is(err, repositories.ErrDuplicateIdentity) {
			verdict = s.conflictVerdict(ctx, identity)
			s.resolveQueue(ctx, trackingID, models.QueueDuplicate, verdict.MatchedID, verdict.Reason)
			return duplicateOutcome(verdict), nil
		}
		s.failQueue(ctx, trackingID, err)
		log.WithField(logger.ErrorTypeField, logger.ErrorTypeDb).Errorf("failed to create candidate: %v", err)
		return Outcome{}, errors.Wrap(err, "create candidate")
	}

	s.resolveQueue(ctx, trackingID, models.QueueCompleted, candidate.ExternalID, "")
	s.publishCreated(candidate, models.SourceManual, "", trackingID)

	return Outcome{Status: OutcomeCreated, CandidateID: candidate.ExternalID, TrackingID: trackingID}, nil
}
