package models

import (
	"time"
)

type QueueStatus string

const (
	QueuePending    QueueStatus = "pending"
	QueueProcessing QueueStatus = "processing"
	QueueCompleted  QueueStatus = "completed"
	QueueDuplicate  QueueStatus = "duplicate"
	QueueFailed     QueueStatus = "failed"
	QueueExpired    QueueStatus = "expired"
)

// InProgressStatuses are the queue states that block a second intake of the same person.
var InProgressStatuses = []QueueStatus{QueuePending, QueueProcessing}

func (s QueueStatus) IsTerminal() bool {
	return s == QueueCompleted || s == QueueDuplicate
}

// IntakeQueueItem tracks one intake unit while it is mid-pipeline. ID is the
// tracking id handed to external callers.
type IntakeQueueItem struct {
	ID             string `gorm:"primaryKey;size:36"`
	BatchID        string `gorm:"index;size:36"`
	Source         string
	Name           string
	NormalizedName string `gorm:"index"`
	ProfileURL     string
	NormalizedURL  string `gorm:"index"`
	Email          string
	Status         QueueStatus `gorm:"index;size:16"`
	CandidateID    string
	Reason         string
	Error          string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func NewIntakeQueueItem(id, batchID string, identity Identity, source IntakeSource, status QueueStatus) IntakeQueueItem {
	normalized := identity.Normalize()
	return IntakeQueueItem{
		ID:             id,
		BatchID:        batchID,
		Source:         string(source),
		Name:           identity.Name,
		NormalizedName: normalized.Name,
		ProfileURL:     identity.ProfileURL,
		NormalizedURL:  normalized.URL,
		Email:          normalized.Email,
		Status:         status,
	}
}

func (i IntakeQueueItem) Identity() Identity {
	return Identity{Name: i.Name, ProfileURL: i.ProfileURL, Email: i.Email}
}

const (
	CandidateSequence        = "candidate"
	EmploymentRecordSequence = "employment_record"
)

var KnownSequences = []string{CandidateSequence, EmploymentRecordSequence}

// IdSequence backs the atomic id reservation of one namespace.
type IdSequence struct {
	Name      string `gorm:"primaryKey;size:32"`
	LastValue int64  `gorm:"not null;default:0"`
	UpdatedAt time.Time
}

type IntakeLog struct {
	ID          int
	CandidateID string `gorm:"index"`
	Source      string
	BatchID     string
	TrackingID  string
	CreatedAt   time.Time
}
