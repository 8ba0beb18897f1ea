package models

import (
	"github.com/araddon/dateparse"
	"strings"
	"time"
)

type CurrentMarker string

const (
	MarkerCurrent CurrentMarker = "current"
	MarkerPast    CurrentMarker = "past"
	MarkerUnknown CurrentMarker = "unknown"
)

// ParseCurrentMarker maps the free-text "is current job" values seen in
// external data to a CurrentMarker.
func ParseCurrentMarker(s string) CurrentMarker {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "current", "currently", "present", "yes", "y", "true", "1", "active", "ongoing":
		return MarkerCurrent
	case "past", "previous", "former", "no", "n", "false", "0", "ended", "inactive":
		return MarkerPast
	default:
		return MarkerUnknown
	}
}

type Experience struct {
	ID          int
	ExternalID  string `gorm:"uniqueIndex;size:8;not null"`
	CandidateID string `gorm:"index;not null"`
	Company     string
	Position    string
	Country     string
	StartDate   *time.Time
	EndDate     *time.Time
	Current     CurrentMarker `gorm:"size:16;default:unknown"`
	CreatedAt   time.Time
}

// RawExperience is an experience entry as received from an external source.
type RawExperience struct {
	Company   string `json:"company"`
	Position  string `json:"position"`
	Country   string `json:"country"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Current   string `json:"current"`
}

func NewExperience(externalID, candidateID string, raw RawExperience) Experience {
	return Experience{
		ExternalID:  externalID,
		CandidateID: candidateID,
		Company:     strings.TrimSpace(raw.Company),
		Position:    strings.TrimSpace(raw.Position),
		Country:     strings.TrimSpace(raw.Country),
		StartDate:   ParseDate(raw.StartDate),
		EndDate:     ParseDate(raw.EndDate),
		Current:     ParseCurrentMarker(raw.Current),
	}
}

// ParseDate returns nil for empty or unparsable input.
func ParseDate(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parsed, err := dateparse.ParseAny(raw)
	if err != nil {
		return nil
	}
	return &parsed
}
