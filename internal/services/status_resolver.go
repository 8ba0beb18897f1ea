package services

import (
	"github.com/araddon/dateparse"
	"github.com/maxaizer/talent-intake/internal/domain/models"
	"sort"
	"strings"
	"time"
)

type parsedEvent struct {
	event models.StatusEvent
	at    time.Time
	valid bool
}

// ParseEventTime parses a client supplied timestamp. Zone-less values are
// read as UTC.
func ParseEventTime(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	parsed, err := dateparse.ParseIn(raw, time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return parsed, true
}

// SortEvents returns the events ordered most recent first: by timestamp when
// both sides parse and differ, otherwise by sequence number. The input is
// first put in sequence order, so any permutation of the same events sorts
// the same way.
func SortEvents(events []models.StatusEvent) []models.StatusEvent {
	parsed := make([]parsedEvent, len(events))
	for i, event := range events {
		at, valid := ParseEventTime(event.OccurredAt)
		parsed[i] = parsedEvent{event: event, at: at, valid: valid}
	}

	sort.SliceStable(parsed, func(i, j int) bool {
		return parsed[i].event.Seq() > parsed[j].event.Seq()
	})
	sort.SliceStable(parsed, func(i, j int) bool {
		a, b := parsed[i], parsed[j]
		if a.valid && b.valid && !a.at.Equal(b.at) {
			return a.at.After(b.at)
		}
		return a.event.Seq() > b.event.Seq()
	})

	sorted := make([]models.StatusEvent, len(parsed))
	for i, p := range parsed {
		sorted[i] = p.event
	}
	return sorted
}

// ResolveCurrentEvent returns the event that defines the current status.
func ResolveCurrentEvent(events []models.StatusEvent) (models.StatusEvent, bool) {
	if len(events) == 0 {
		return models.StatusEvent{}, false
	}
	return SortEvents(events)[0], true
}

// ResolveStatus derives the current status from the append-only event list,
// falling back to the entry's last known status when there are no events.
func ResolveStatus(events []models.StatusEvent, fallback string) string {
	event, ok := ResolveCurrentEvent(events)
	if !ok {
		return fallback
	}
	return event.Status
}
