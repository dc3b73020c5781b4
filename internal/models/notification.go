package models

import "time"

type NotificationSubscription struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	Day       string    `json:"day"`
	CreatedAt time.Time `json:"createdAt"`
}

// DispatchResult is the outcome of one email in a fan-out.
type DispatchResult struct {
	Email string `json:"email"`
	Err   error  `json:"-"`
}

// FanOutReport lists what happened to every subscriber of a day.
type FanOutReport struct {
	Day     string           `json:"day"`
	Results []DispatchResult `json:"results"`
}

func (r FanOutReport) Sent() int {
	n := 0
	for _, res := range r.Results {
		if res.Err == nil {
			n++
		}
	}
	return n
}

func (r FanOutReport) Failed() int {
	return len(r.Results) - r.Sent()
}
