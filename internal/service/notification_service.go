package service

import (
	"context"
	"fmt"
	"strings"

	"woodslot/internal/domain"
	"woodslot/internal/events"
	"woodslot/internal/mailer"
	"woodslot/internal/metrics"
	"woodslot/internal/models"

	"github.com/rs/zerolog"
)

const subscribedMessage = "You will be notified when this date becomes available."

type NotificationService struct {
	repo     domain.SubscriptionRepository
	sender   domain.EmailSender
	eventBus domain.EventPublisher
	subject  string
	logger   *zerolog.Logger
}

func NewNotificationService(
	repo domain.SubscriptionRepository,
	sender domain.EmailSender,
	eventBus domain.EventPublisher,
	subject string,
	logger *zerolog.Logger,
) *NotificationService {
	if subject == "" {
		subject = models.DefaultNotificationSubject
	}
	return &NotificationService{
		repo:     repo,
		sender:   sender,
		eventBus: eventBus,
		subject:  subject,
		logger:   logger,
	}
}

// Subscribe records interest in day for email. Subscribing twice to the same
// day returns database.ErrDuplicateSubscription.
func (s *NotificationService) Subscribe(ctx context.Context, email, day string) (string, error) {
	email = strings.TrimSpace(email)
	if email == "" || !strings.Contains(email, "@") || strings.ContainsAny(email, " \r\n") {
		return "", fmt.Errorf("%w: a valid email is required", ErrValidation)
	}
	if _, err := ParseDay(day); err != nil {
		return "", err
	}

	if err := s.repo.CreateSubscription(ctx, &models.NotificationSubscription{Email: email, Day: day}); err != nil {
		return "", err
	}

	return subscribedMessage, nil
}

// NotifyAndClear emails every subscriber of day, one at a time. A delivered
// subscription is removed; a failed one is logged and kept so a later run can
// retry it. Only a failure to read the subscribers is returned as an error.
func (s *NotificationService) NotifyAndClear(ctx context.Context, day string) (models.FanOutReport, error) {
	report := models.FanOutReport{Day: day, Results: []models.DispatchResult{}}

	subs, err := s.repo.ListSubscriptions(ctx, day)
	if err != nil {
		return report, fmt.Errorf("list subscribers for %s: %w", day, err)
	}
	if len(subs) == 0 {
		return report, nil
	}

	body := mailer.SlotFreedBody(day)
	for _, sub := range subs {
		result := models.DispatchResult{Email: sub.Email}

		if err := s.sender.Send(ctx, sub.Email, s.subject, body); err != nil {
			result.Err = err
			s.logger.Warn().Err(err).Str("email", sub.Email).Str("day", day).Msg("failed to send slot notification")
			report.Results = append(report.Results, result)
			continue
		}

		if err := s.repo.DeleteSubscription(ctx, sub.Email, day); err != nil {
			s.logger.Error().Err(err).Str("email", sub.Email).Str("day", day).Msg("failed to delete notified subscription")
		}
		report.Results = append(report.Results, result)
	}

	metrics.AddNotifications(report.Sent(), report.Failed())
	s.logger.Info().
		Str("day", day).
		Int("sent", report.Sent()).
		Int("failed", report.Failed()).
		Msg("subscribers notified")

	if s.eventBus != nil {
		if err := s.eventBus.PublishJSON(events.EventSlotFreed, events.SlotFreedPayload{
			Day:      day,
			Notified: report.Sent(),
			Failed:   report.Failed(),
		}); err != nil {
			s.logger.Warn().Err(err).Msg("failed to publish slot freed event")
		}
	}

	return report, nil
}

// PurgeBefore drops subscriptions for days strictly before day.
func (s *NotificationService) PurgeBefore(ctx context.Context, day string) (int64, error) {
	if _, err := ParseDay(day); err != nil {
		return 0, err
	}
	n, err := s.repo.DeleteSubscriptionsBefore(ctx, day)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Info().Int64("removed", n).Str("before", day).Msg("stale subscriptions removed")
	}
	return n, nil
}
