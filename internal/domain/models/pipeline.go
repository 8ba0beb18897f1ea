package models

import (
	"strings"
	"time"
)

// PipelineEntry links a candidate to a job requisition. LastKnownStatus is a
// best-effort cache; the current status is resolved from StatusEvents.
type PipelineEntry struct {
	ID              int
	CandidateID     string `gorm:"index;not null"`
	RequisitionID   string `gorm:"index;not null"`
	ListType        string
	Rank            int
	LastKnownStatus string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// StatusEvent is append-only. ID is assigned by storage on insert and is the
// tie-break anchor when timestamps are missing or collide.
type StatusEvent struct {
	ID         int64  `gorm:"primaryKey;autoIncrement"`
	EntryID    int    `gorm:"index;not null"`
	Status     string `gorm:"not null"`
	OccurredAt string
	CreatedAt  time.Time
}

func (e StatusEvent) Seq() int64 {
	return e.ID
}

// PipelineStatus is an entry of the master status list.
type PipelineStatus struct {
	ID             int
	Label          string
	NormalizedName string `gorm:"uniqueIndex"`
	Position       int
}

func NewPipelineStatus(label string, position int) PipelineStatus {
	return PipelineStatus{
		Label:          label,
		NormalizedName: NormalizeStatusLabel(label),
		Position:       position,
	}
}

func NormalizeStatusLabel(label string) string {
	return strings.Join(strings.Fields(strings.ToLower(label)), " ")
}

var DefaultStatuses = []string{
	"Sourced",
	"Contacted",
	"Screening",
	"Submitted",
	"Interview",
	"Offer",
	"Hired",
	"Rejected",
	"Withdrawn",
	"On Hold",
}
