package services

import (
	"github.com/maxaizer/talent-intake/internal/domain/models"
	"github.com/samber/lo"
	"time"
)

// StatusSnapshot is the resolved status of one pipeline entry.
type StatusSnapshot struct {
	EntryID     int
	CandidateID string
	Status      string
	// Since is when the winning event happened; nil when the status came
	// from the fallback field.
	Since *time.Time
}

func Snapshot(entry models.PipelineEntry, events []models.StatusEvent) StatusSnapshot {
	snapshot := StatusSnapshot{EntryID: entry.ID, CandidateID: entry.CandidateID, Status: entry.LastKnownStatus}

	event, ok := ResolveCurrentEvent(events)
	if !ok {
		return snapshot
	}

	snapshot.Status = event.Status
	if at, valid := ParseEventTime(event.OccurredAt); valid {
		snapshot.Since = &at
	} else if !event.CreatedAt.IsZero() {
		since := event.CreatedAt
		snapshot.Since = &since
	}
	return snapshot
}

// AgeDays is the number of whole days the entry has held its status.
func (s StatusSnapshot) AgeDays(now time.Time) (int, bool) {
	if s.Since == nil {
		return 0, false
	}
	days := int(now.Sub(*s.Since).Hours() / 24)
	if days < 0 {
		days = 0
	}
	return days, true
}

func CountByStatus(snapshots []StatusSnapshot) map[string]int {
	withStatus := lo.Filter(snapshots, func(s StatusSnapshot, _ int) bool { return s.Status != "" })
	return lo.CountValuesBy(withStatus, func(s StatusSnapshot) string { return s.Status })
}

// AverageAgeByStatus averages AgeDays per status over snapshots with a known age.
func AverageAgeByStatus(snapshots []StatusSnapshot, now time.Time) map[string]float64 {
	aged := lo.Filter(snapshots, func(s StatusSnapshot, _ int) bool { return s.Status != "" && s.Since != nil })
	grouped := lo.GroupBy(aged, func(s StatusSnapshot) string { return s.Status })

	return lo.MapValues(grouped, func(group []StatusSnapshot, _ string) float64 {
		total := lo.SumBy(group, func(s StatusSnapshot) int {
			days, _ := s.AgeDays(now)
			return days
		})
		return float64(total) / float64(len(group))
	})
}
