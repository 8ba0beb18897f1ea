package services

import (
	"context"
	"github.com/maxaizer/talent-intake/internal/domain/models"
	"github.com/maxaizer/talent-intake/internal/logger"
	"github.com/maxaizer/talent-intake/internal/repositories"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

type CallbackRequest struct {
	TrackingID  string
	Identity    models.Identity
	Profile     models.Profile
	Experiences []models.RawExperience
}

// Track registers a profile that an external service will enrich later. The
// returned tracking id must be passed back with the callback.
func (s *IntakeService) Track(ctx context.Context, identity models.Identity) (Outcome, error) {
	outcome, err := s.track(ctx, identity)
	if err == nil {
		recordOutcome(models.SourceCallback, outcome)
	}
	return outcome, err
}

func (s *IntakeService) track(ctx context.Context, identity models.Identity) (Outcome, error) {
	identity, ok := s.sanitize(identity)
	if !ok {
		return Outcome{Status: OutcomeSkippedInvalid, Error: "name or profile url is required"}, nil
	}

	verdict, err := s.checkDuplicates(ctx, identity)
	if err != nil {
		return Outcome{}, err
	}
	if verdict.IsDuplicate {
		return duplicateOutcome(verdict), nil
	}

	item := models.NewIntakeQueueItem(s.newID(), "", identity, models.SourceCallback, models.QueuePending)
	if err = s.queue.Add(ctx, item); err != nil {
		log.WithField(logger.ErrorTypeField, logger.ErrorTypeDb).Errorf("failed to register tracked intake: %v", err)
		return Outcome{}, errors.Wrap(err, "register tracked intake")
	}

	return Outcome{Status: OutcomePending, TrackingID: item.ID}, nil
}

// Callback completes a tracked intake. Retrying with the same tracking id
// after it has been settled returns the settled outcome and writes nothing.
func (s *IntakeService) Callback(ctx context.Context, req CallbackRequest) (Outcome, error) {
	outcome, err := s.callback(ctx, req)
	if err == nil {
		recordOutcome(models.SourceCallback, outcome)
	}
	return outcome, err
}

func (s *IntakeService) callback(ctx context.Context, req CallbackRequest) (Outcome, error) {
	item, err := s.queue.GetByID(ctx, req.TrackingID)
	if err != nil {
		log.WithField(logger.ErrorTypeField, logger.ErrorTypeDb).Errorf("failed to get intake %s: %v", req.TrackingID, err)
		return Outcome{}, errors.Wrap(err, "get tracked intake")
	}
	if item == nil {
		return Outcome{}, ErrTrackingNotFound
	}
	if item.Status.IsTerminal() {
		return settledOutcome(*item), nil
	}

	if item.Status == models.QueueFailed || item.Status == models.QueueExpired {
		if _, err = s.queue.Reopen(ctx, item.ID); err != nil {
			return Outcome{}, errors.Wrap(err, "reopen tracked intake")
		}
	}

	claimed, err := s.queue.Claim(ctx, item.ID)
	if err != nil {
		return Outcome{}, errors.Wrap(err, "claim tracked intake")
	}
	if !claimed {
		current, err := s.queue.GetByID(ctx, item.ID)
		if err == nil && current != nil && current.Status.IsTerminal() {
			return settledOutcome(*current), nil
		}
		return Outcome{}, ErrTrackingBusy
	}

	identity := mergeIdentity(req.Identity, item.Identity())
	identity, ok := s.sanitize(identity)
	if !ok {
		s.failQueue(ctx, item.ID, errors.New("callback carries no identity"))
		return Outcome{Status: OutcomeSkippedInvalid, TrackingID: item.ID, Error: "name or profile url is required"}, nil
	}

	unlock, err := s.lockIdentity(ctx, identity)
	if errors.Is(err, ErrIdentityBusy) {
		s.failQueue(ctx, item.ID, err)
		return Outcome{Status: OutcomeDuplicate, TrackingID: item.ID, Reason: ReasonLocked, Tier: TierProcessing}, nil
	}
	if err != nil {
		s.failQueue(ctx, item.ID, err)
		return Outcome{}, err
	}
	defer unlock()

	verdict, err := s.checkDuplicates(ctx, identity, item.ID)
	if err != nil {
		s.failQueue(ctx, item.ID, err)
		return Outcome{}, err
	}
	if verdict.IsDuplicate {
		outcome := duplicateOutcome(verdict)
		outcome.TrackingID = item.ID
		s.resolveQueue(ctx, item.ID, models.QueueDuplicate, outcome.CandidateID, verdict.Reason)
		return outcome, nil
	}

	candidate, experiences, err := s.buildCallbackRecords(ctx, identity, req)
	if err != nil {
		s.failQueue(ctx, item.ID, err)
		return Outcome{}, err
	}

	if err = s.candidates.AddWithExperiences(ctx, &candidate, experiences); err != nil {
		if errors.Is(err, repositories.ErrDuplicateIdentity) {
			verdict = s.conflictVerdict(ctx, identity)
			s.resolveQueue(ctx, item.ID, models.QueueDuplicate, verdict.MatchedID, verdict.Reason)
			return Outcome{Status: OutcomeDuplicate, CandidateID: verdict.MatchedID, TrackingID: item.ID,
				Reason: verdict.Reason, Tier: verdict.Tier}, nil
		}
		s.failQueue(ctx, item.ID, err)
		log.WithField(logger.ErrorTypeField, logger.ErrorTypeDb).Errorf("failed to create candidate from callback: %v", err)
		return Outcome{}, errors.Wrap(err, "create candidate")
	}

	s.resolveQueue(ctx, item.ID, models.QueueCompleted, candidate.ExternalID, "")
	s.publishCreated(candidate, models.SourceCallback, item.BatchID, item.ID)

	return Outcome{Status: OutcomeCreated, CandidateID: candidate.ExternalID, TrackingID: item.ID}, nil
}

func (s *IntakeService) buildCallbackRecords(ctx context.Context, identity models.Identity,
	req CallbackRequest) (models.Candidate, []models.Experience, error) {

	ids, err := s.allocator.Allocate(ctx, CandidateNamespace, 1)
	if err != nil {
		return models.Candidate{}, nil, err
	}
	candidate := models.NewCandidate(ids[0], identity, req.Profile, models.SourceCallback)

	if len(req.Experiences) == 0 {
		return candidate, nil, nil
	}

	recordIDs, err := s.allocator.Allocate(ctx, EmploymentRecordNamespace, len(req.Experiences))
	if err != nil {
		return models.Candidate{}, nil, err
	}
	experiences := make([]models.Experience, 0, len(req.Experiences))
	for i, raw := range req.Experiences {
		experiences = append(experiences, models.NewExperience(recordIDs[i], candidate.ExternalID, raw))
	}
	return candidate, experiences, nil
}

// mergeIdentity fills fields the callback left empty from the tracked request.
func mergeIdentity(callback, tracked models.Identity) models.Identity {
	if callback.Name == "" {
		callback.Name = tracked.Name
	}
	if callback.ProfileURL == "" {
		callback.ProfileURL = tracked.ProfileURL
	}
	if callback.Email == "" {
		callback.Email = tracked.Email
	}
	return callback
}

func settledOutcome(item models.IntakeQueueItem) Outcome {
	outcome := Outcome{TrackingID: item.ID, CandidateID: item.CandidateID}
	if item.Status == models.QueueCompleted {
		outcome.Status = OutcomeCreated
		return outcome
	}
	outcome.Status = OutcomeDuplicate
	outcome.Reason = MatchReason(item.Reason)
	if item.CandidateID != "" {
		outcome.Tier = TierStored
	}
	return outcome
}
