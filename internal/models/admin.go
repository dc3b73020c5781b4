package models

import "time"

type Admin struct {
	ID           int64     `json:"id"`
	FirstName    string    `json:"firstName"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Session is an authenticated administrator session.
type Session struct {
	ID        string    `json:"-"`
	AdminID   int64     `json:"adminId"`
	FirstName string    `json:"firstName"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}
