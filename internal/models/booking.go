package models

import "time"

// DayLayout is the format of day keys shared by bookings, subscriptions and
// overrides.
const DayLayout = "2006-01-02"

type Booking struct {
	ID          int64     `json:"id"`
	PhoneNumber string    `json:"phoneNumber"`
	FirstName   string    `json:"firstName"`
	LastName    string    `json:"lastName"`
	Day         string    `json:"day"`
	StartHour   int       `json:"startHour"`
	EndHour     int       `json:"endHour"`
	Role        string    `json:"role"`
	CreatedAt   time.Time `json:"createdAt"`
}

// BookingRequest is the payload accepted by POST /api/book.
type BookingRequest struct {
	PhoneNumber string `json:"phoneNumber"`
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	Day         string `json:"day"`
	StartHour   int    `json:"startHour"`
	EndHour     int    `json:"endHour"`
}

// Availability is the quota view of a single day.
type Availability struct {
	Day           string `json:"day"`
	Booked        int    `json:"booked"`
	Quota         int    `json:"quota"`
	IsFullyBooked bool   `json:"isFullyBooked"`
}
