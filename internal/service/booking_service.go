package service

import (
	"context"
	"errors"
	"time"

	"woodslot/internal/config"
	"woodslot/internal/database"
	"woodslot/internal/domain"
	"woodslot/internal/events"
	"woodslot/internal/metrics"
	"woodslot/internal/models"

	"github.com/rs/zerolog"
)

type BookingService struct {
	repo       domain.BookingRepository
	notifier   domain.Notifier
	eventBus   domain.EventPublisher
	quota      int
	windowDays int
	logger     *zerolog.Logger
}

func NewBookingService(
	repo domain.BookingRepository,
	notifier domain.Notifier,
	eventBus domain.EventPublisher,
	cfg config.BookingConfig,
	logger *zerolog.Logger,
) *BookingService {
	if cfg.DailyQuota <= 0 {
		cfg.DailyQuota = models.DefaultDailyQuota
	}
	if cfg.WindowDays <= 0 {
		cfg.WindowDays = models.DefaultWindowDays
	}
	return &BookingService{
		repo:       repo,
		notifier:   notifier,
		eventBus:   eventBus,
		quota:      cfg.DailyQuota,
		windowDays: cfg.WindowDays,
		logger:     logger,
	}
}

func (s *BookingService) ListDateWindow(now time.Time) []string {
	return ListDateWindow(now, s.windowDays)
}

func (s *BookingService) CheckAvailability(ctx context.Context, day string) (*models.Availability, error) {
	if _, err := ParseDay(day); err != nil {
		return nil, err
	}

	count, err := s.repo.CountBookings(ctx, day)
	if err != nil {
		return nil, err
	}

	return &models.Availability{
		Day:           day,
		Booked:        count,
		Quota:         s.quota,
		IsFullyBooked: count >= s.quota,
	}, nil
}

// Book stores the request if the day is below quota and returns the new id.
// A full day yields database.ErrCapacityExceeded and nothing is written.
func (s *BookingService) Book(ctx context.Context, req models.BookingRequest) (int64, error) {
	if _, err := ParseDay(req.Day); err != nil {
		return 0, err
	}

	booking := &models.Booking{
		PhoneNumber: req.PhoneNumber,
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		Day:         req.Day,
		StartHour:   req.StartHour,
		EndHour:     req.EndHour,
	}

	if err := s.repo.CreateBookingWithQuota(ctx, booking, s.quota); err != nil {
		if errors.Is(err, database.ErrCapacityExceeded) {
			metrics.IncBooking("rejected")
			s.logger.Info().Str("day", req.Day).Msg("booking rejected, day is full")
		}
		return 0, err
	}

	metrics.IncBooking("created")
	s.publishEvent(events.EventBookingCreated, events.BookingEventPayload{
		BookingID: booking.ID,
		Day:       booking.Day,
		StartHour: booking.StartHour,
		EndHour:   booking.EndHour,
	})

	return booking.ID, nil
}

// DeleteBooking removes a booking and notifies the subscribers of its day.
// An unknown id succeeds with an empty report. A failure to read subscribers
// is logged but does not undo or fail the deletion.
func (s *BookingService) DeleteBooking(ctx context.Context, id int64) (models.FanOutReport, error) {
	day, found, err := s.repo.DeleteBooking(ctx, id)
	if err != nil {
		return models.FanOutReport{}, err
	}
	if !found {
		return models.FanOutReport{}, nil
	}

	metrics.IncBooking("deleted")
	s.publishEvent(events.EventBookingDeleted, events.BookingEventPayload{BookingID: id, Day: day})

	report, err := s.notifier.NotifyAndClear(ctx, day)
	if err != nil {
		s.logger.Error().Err(err).Int64("booking_id", id).Str("day", day).Msg("failed to notify subscribers after deletion")
		return models.FanOutReport{Day: day}, nil
	}

	return report, nil
}

func (s *BookingService) ListBookings(ctx context.Context, day string) ([]*models.Booking, error) {
	if _, err := ParseDay(day); err != nil {
		return nil, err
	}
	return s.repo.ListBookingsByDay(ctx, day)
}

// PurgeAll deletes every booking and returns the days that had any.
func (s *BookingService) PurgeAll(ctx context.Context) ([]string, error) {
	days, err := s.repo.DeleteAllBookings(ctx)
	if err != nil {
		return nil, err
	}

	s.logger.Info().Strs("days", days).Msg("all bookings purged")
	s.publishEvent(events.EventBookingsPurged, events.PurgePayload{Days: days})
	return days, nil
}

func (s *BookingService) publishEvent(eventType string, payload interface{}) {
	if s.eventBus == nil {
		return
	}
	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Warn().Err(err).Str("event", eventType).Msg("failed to publish event")
	}
}
