package service

import (
	"fmt"
	"time"

	"woodslot/internal/models"
)

// ListDateWindow returns days consecutive day keys starting on the Monday of
// the week containing now, in now's location. Sunday belongs to the week that
// started six days earlier.
func ListDateWindow(now time.Time, days int) []string {
	y, m, d := now.Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	offset := (int(today.Weekday()) + 6) % 7
	monday := today.AddDate(0, 0, -offset)

	out := make([]string, days)
	for i := range out {
		out[i] = monday.AddDate(0, 0, i).Format(models.DayLayout)
	}
	return out
}

// DefaultSelectable is the opening rule applied when a day has no override:
// Thursdays, Fridays and Saturdays, except the first Saturday of the month.
func DefaultSelectable(day time.Time) bool {
	switch day.Weekday() {
	case time.Thursday, time.Friday:
		return true
	case time.Saturday:
		return day.Day() > 7
	default:
		return false
	}
}

// ParseDay validates a YYYY-MM-DD day key.
func ParseDay(day string) (time.Time, error) {
	if day == "" {
		return time.Time{}, fmt.Errorf("%w: day is required", ErrValidation)
	}
	t, err := time.Parse(models.DayLayout, day)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: day %q must be YYYY-MM-DD", ErrValidation, day)
	}
	return t, nil
}
