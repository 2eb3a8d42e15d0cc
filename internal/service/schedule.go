package service

import (
	"fmt"
	"time"

	appErrors "github.com/unclebandit/outreach-backend/internal/errors"
)

// startDateSkew is how far in the past a launch start date may be and still
// count as "now".
const startDateSkew = time.Minute

// ScheduleFor returns start + sendDay calendar days in loc, as UTC. The local
// time of day of start is kept even when a DST change falls in between.
func ScheduleFor(start time.Time, sendDay int, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return start.In(loc).AddDate(0, 0, sendDay).UTC()
}

// resolveLocation picks the first non-empty zone name and loads it.
func resolveLocation(names ...string) (*time.Location, error) {
	for _, name := range names {
		if name == "" {
			continue
		}
		loc, err := time.LoadLocation(name)
		if err != nil {
			return nil, appErrors.NewValidationFailed("timezone", fmt.Sprintf("unknown timezone %q", name))
		}
		return loc, nil
	}
	return time.UTC, nil
}

// ParseStartDate accepts RFC3339, or a local "2006-01-02T15:04" wall-clock
// time interpreted in loc.
func ParseStartDate(raw string, loc *time.Location) (time.Time, error) {
	if raw == "" {
		return time.Time{}, appErrors.NewValidationFailed("start_date", "is required")
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	for _, layout := range []string{"2006-01-02T15:04:05", "2006-01-02T15:04", "2006-01-02 15:04"} {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, appErrors.NewValidationFailed("start_date", fmt.Sprintf("cannot parse %q as RFC3339", raw))
}
