package models

import "time"

const (
	RoleUser = "user"
)

const (
	// DefaultDailyQuota maximum number of bookings accepted per day
	DefaultDailyQuota = 10

	// DefaultWindowDays length of the bookable calendar window
	DefaultWindowDays = 14

	// DefaultSessionTTL lifetime of an admin session
	DefaultSessionTTL = 12 * time.Hour

	// DefaultPurgeSpec weekly bookings purge, Monday 00:00
	DefaultPurgeSpec = "0 0 * * 1"

	// DefaultRefreshSpec hourly notification refresh for today
	DefaultRefreshSpec = "0 * * * *"

	DefaultNotificationSubject = "Une place s'est libérée !"

	// SessionCookieName cookie carrying the admin session token
	SessionCookieName = "admin_session"
)
