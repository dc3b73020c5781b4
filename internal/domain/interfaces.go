package domain

import (
	"context"
	"time"

	"woodslot/internal/models"
)

type BookingRepository interface {
	CountBookings(ctx context.Context, day string) (int, error)
	CountBookingsBetween(ctx context.Context, from, to string) (map[string]int, error)
	CreateBookingWithQuota(ctx context.Context, booking *models.Booking, quota int) error
	DeleteBooking(ctx context.Context, id int64) (day string, found bool, err error)
	DeleteAllBookings(ctx context.Context) ([]string, error)
	ListBookingsByDay(ctx context.Context, day string) ([]*models.Booking, error)
}

type SubscriptionRepository interface {
	CreateSubscription(ctx context.Context, sub *models.NotificationSubscription) error
	ListSubscriptions(ctx context.Context, day string) ([]*models.NotificationSubscription, error)
	DeleteSubscription(ctx context.Context, email, day string) error
	DeleteSubscriptionsBefore(ctx context.Context, day string) (int64, error)
}

type OverrideRepository interface {
	UpsertOverride(ctx context.Context, override *models.AvailabilityOverride) error
	GetOverride(ctx context.Context, day string) (*models.AvailabilityOverride, error)
	ListOverridesBetween(ctx context.Context, from, to string) (map[string]*models.AvailabilityOverride, error)
}

type AdminRepository interface {
	UpsertAdmin(ctx context.Context, admin *models.Admin) error
	GetAdminByFirstName(ctx context.Context, firstName string) (*models.Admin, error)
	GetAdminByID(ctx context.Context, id int64) (*models.Admin, error)
}

// SessionRepository stores admin sessions by id with a TTL. GetSession
// returns nil, nil for an unknown or expired id. The rate limit methods keep a
// fixed-window hit counter per key: CheckRateLimit records a hit,
// AttemptCount reads the counter without recording one.
type SessionRepository interface {
	GetSession(ctx context.Context, id string) (*models.Session, error)
	SetSession(ctx context.Context, session *models.Session, ttl time.Duration) error
	DeleteSession(ctx context.Context, id string) error
	CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
	AttemptCount(ctx context.Context, key string) (int, error)
	ResetRateLimit(ctx context.Context, key string) error
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

type EmailSender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// Notifier fans a freed slot out to the subscribers of a day.
type Notifier interface {
	NotifyAndClear(ctx context.Context, day string) (models.FanOutReport, error)
}

type BookingService interface {
	ListDateWindow(now time.Time) []string
	CheckAvailability(ctx context.Context, day string) (*models.Availability, error)
	Book(ctx context.Context, req models.BookingRequest) (int64, error)
	DeleteBooking(ctx context.Context, id int64) (models.FanOutReport, error)
	ListBookings(ctx context.Context, day string) ([]*models.Booking, error)
	PurgeAll(ctx context.Context) ([]string, error)
}

type NotificationService interface {
	Notifier
	Subscribe(ctx context.Context, email, day string) (string, error)
	PurgeBefore(ctx context.Context, day string) (int64, error)
}

type AvailabilityService interface {
	SetOverride(ctx context.Context, day string, status bool, comment string) (*models.AvailabilityOverride, error)
	GetOverride(ctx context.Context, day string) (*models.AvailabilityOverride, error)
	Calendar(ctx context.Context, now time.Time) ([]models.CalendarDay, error)
}

type AuthService interface {
	Authenticate(ctx context.Context, firstName, password string) (*models.Session, error)
	Validate(ctx context.Context, token string) (*models.Session, error)
	Logout(ctx context.Context, token string) error
	AdminName(ctx context.Context, token string) (string, error)
}
