package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"woodslot/internal/database"
	"woodslot/internal/events"
	"woodslot/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.NewDB(":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func nopLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) NotifyAndClear(ctx context.Context, day string) (models.FanOutReport, error) {
	args := m.Called(ctx, day)
	return args.Get(0).(models.FanOutReport), args.Error(1)
}

type mockSender struct {
	mock.Mock
}

func (m *mockSender) Send(ctx context.Context, to, subject, body string) error {
	return m.Called(ctx, to, subject, body).Error(0)
}

// recorder captures events published on a bus.
type recorder struct {
	mu     sync.Mutex
	events []*events.Event
}

func newRecordingBus() (*events.EventBus, *recorder) {
	bus := events.NewEventBus()
	rec := &recorder{}
	bus.SubscribeAll(func(e *events.Event) error {
		rec.mu.Lock()
		defer rec.mu.Unlock()
		rec.events = append(rec.events, e)
		return nil
	})
	return bus, rec
}

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

var errStore = errors.New("store unavailable")

// failingSubscriptions fails every read.
type failingSubscriptions struct{}

func (failingSubscriptions) CreateSubscription(context.Context, *models.NotificationSubscription) error {
	return errStore
}

func (failingSubscriptions) ListSubscriptions(context.Context, string) ([]*models.NotificationSubscription, error) {
	return nil, errStore
}

func (failingSubscriptions) DeleteSubscription(context.Context, string, string) error {
	return errStore
}

func (failingSubscriptions) DeleteSubscriptionsBefore(context.Context, string) (int64, error) {
	return 0, errStore
}
