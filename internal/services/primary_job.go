package services

import (
	"github.com/maxaizer/talent-intake/internal/domain/models"
	"time"
)

// SelectPrimary picks the experience that represents a candidate's current
// employment. A job marked current beats any past job, the latest start date
// winning among current jobs. Without current jobs, the record with the latest
// end date (or start date when it has none) wins. Nil for no experiences.
func SelectPrimary(experiences []models.Experience) *models.Experience {
	if len(experiences) == 0 {
		return nil
	}

	var primary *models.Experience
	var primaryKey time.Time
	for i := range experiences {
		if experiences[i].Current != models.MarkerCurrent {
			continue
		}
		key := dateOrZero(experiences[i].StartDate)
		if primary == nil || key.After(primaryKey) {
			primary, primaryKey = &experiences[i], key
		}
	}
	if primary != nil {
		selected := *primary
		return &selected
	}

	for i := range experiences {
		key := dateOrZero(experiences[i].EndDate)
		if experiences[i].EndDate == nil {
			key = dateOrZero(experiences[i].StartDate)
		}
		if primary == nil || key.After(primaryKey) {
			primary, primaryKey = &experiences[i], key
		}
	}
	selected := *primary
	return &selected
}

func dateOrZero(date *time.Time) time.Time {
	if date == nil {
		return time.Time{}
	}
	return *date
}
