package models

import "time"

// AvailabilityOverride is an admin-set open/closed status for a day.
type AvailabilityOverride struct {
	ID        int64     `json:"id"`
	Day       string    `json:"date"`
	Status    bool      `json:"status"`
	Comment   string    `json:"comment"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// CalendarDay is the client-facing state of a day tile.
type CalendarDay struct {
	Day           string `json:"day"`
	Selectable    bool   `json:"selectable"`
	IsFullyBooked bool   `json:"isFullyBooked"`
	Comment       string `json:"comment,omitempty"`
}
