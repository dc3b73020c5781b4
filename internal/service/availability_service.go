package service

import (
	"context"
	"time"

	"woodslot/internal/config"
	"woodslot/internal/domain"
	"woodslot/internal/events"
	"woodslot/internal/models"

	"github.com/rs/zerolog"
)

type AvailabilityService struct {
	overrides  domain.OverrideRepository
	bookings   domain.BookingRepository
	eventBus   domain.EventPublisher
	quota      int
	windowDays int
	logger     *zerolog.Logger
}

func NewAvailabilityService(
	overrides domain.OverrideRepository,
	bookings domain.BookingRepository,
	eventBus domain.EventPublisher,
	cfg config.BookingConfig,
	logger *zerolog.Logger,
) *AvailabilityService {
	if cfg.DailyQuota <= 0 {
		cfg.DailyQuota = models.DefaultDailyQuota
	}
	if cfg.WindowDays <= 0 {
		cfg.WindowDays = models.DefaultWindowDays
	}
	return &AvailabilityService{
		overrides:  overrides,
		bookings:   bookings,
		eventBus:   eventBus,
		quota:      cfg.DailyQuota,
		windowDays: cfg.WindowDays,
		logger:     logger,
	}
}

// SetOverride creates or replaces the override of day. The comment is stored
// verbatim.
func (s *AvailabilityService) SetOverride(ctx context.Context, day string, status bool, comment string) (*models.AvailabilityOverride, error) {
	if _, err := ParseDay(day); err != nil {
		return nil, err
	}

	override := &models.AvailabilityOverride{Day: day, Status: status, Comment: comment}
	if err := s.overrides.UpsertOverride(ctx, override); err != nil {
		return nil, err
	}

	s.logger.Info().Str("day", day).Bool("status", status).Msg("availability override saved")
	if s.eventBus != nil {
		if err := s.eventBus.PublishJSON(events.EventOverrideChanged, events.OverridePayload{
			Day:     day,
			Status:  status,
			Comment: comment,
		}); err != nil {
			s.logger.Warn().Err(err).Str("event", events.EventOverrideChanged).Msg("failed to publish event")
		}
	}
	return override, nil
}

// GetOverride returns nil, nil when day has no override.
func (s *AvailabilityService) GetOverride(ctx context.Context, day string) (*models.AvailabilityOverride, error) {
	if _, err := ParseDay(day); err != nil {
		return nil, err
	}
	return s.overrides.GetOverride(ctx, day)
}

// Calendar returns the state of every day in the window around now. An
// override's status replaces the default weekday rule.
func (s *AvailabilityService) Calendar(ctx context.Context, now time.Time) ([]models.CalendarDay, error) {
	days := ListDateWindow(now, s.windowDays)
	if len(days) == 0 {
		return []models.CalendarDay{}, nil
	}
	from, to := days[0], days[len(days)-1]

	counts, err := s.bookings.CountBookingsBetween(ctx, from, to)
	if err != nil {
		return nil, err
	}
	overrides, err := s.overrides.ListOverridesBetween(ctx, from, to)
	if err != nil {
		return nil, err
	}

	out := make([]models.CalendarDay, 0, len(days))
	for _, day := range days {
		t, err := ParseDay(day)
		if err != nil {
			return nil, err
		}

		entry := models.CalendarDay{
			Day:           day,
			Selectable:    DefaultSelectable(t),
			IsFullyBooked: counts[day] >= s.quota,
		}
		if o, ok := overrides[day]; ok {
			entry.Selectable = o.Status
			entry.Comment = o.Comment
		}
		out = append(out, entry)
	}
	return out, nil
}
