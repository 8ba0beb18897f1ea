package events

import (
	"github.com/maxaizer/talent-intake/internal/domain/models"
)

var CandidateCreatedTopic = "CandidateCreatedEvent"

type CandidateCreated struct {
	Candidate  models.Candidate
	Source     models.IntakeSource
	BatchID    string
	TrackingID string
}
