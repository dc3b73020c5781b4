package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"woodslot/internal/config"
	"woodslot/internal/metrics"
	"woodslot/internal/models"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

type bookingPurger interface {
	PurgeAll(ctx context.Context) ([]string, error)
}

type subscriberNotifier interface {
	NotifyAndClear(ctx context.Context, day string) (models.FanOutReport, error)
	PurgeBefore(ctx context.Context, day string) (int64, error)
}

// Sweeper runs the weekly bookings purge and the hourly notification refresh.
type Sweeper struct {
	bookings      bookingPurger
	notifications subscriberNotifier
	cfg           config.SchedulerConfig
	loc           *time.Location
	now           func() time.Time
	logger        *zerolog.Logger

	mu     sync.Mutex
	cron   *cron.Cron
	cancel context.CancelFunc
}

func NewSweeper(
	bookings bookingPurger,
	notifications subscriberNotifier,
	cfg config.SchedulerConfig,
	loc *time.Location,
	logger *zerolog.Logger,
) *Sweeper {
	if loc == nil {
		loc = time.Local
	}
	if cfg.PurgeSpec == "" {
		cfg.PurgeSpec = models.DefaultPurgeSpec
	}
	if cfg.RefreshSpec == "" {
		cfg.RefreshSpec = models.DefaultRefreshSpec
	}
	return &Sweeper{
		bookings:      bookings,
		notifications: notifications,
		cfg:           cfg,
		loc:           loc,
		now:           time.Now,
		logger:        logger,
	}
}

func (s *Sweeper) today() string {
	return s.now().In(s.loc).Format(models.DayLayout)
}

// RunPurge deletes every booking, notifies subscribers of purged days that are
// today or later, then drops subscriptions for days already past.
func (s *Sweeper) RunPurge(ctx context.Context) error {
	days, err := s.bookings.PurgeAll(ctx)
	if err != nil {
		return fmt.Errorf("purge bookings: %w", err)
	}

	today := s.today()
	for _, day := range days {
		if day < today {
			continue
		}
		if _, err := s.notifications.NotifyAndClear(ctx, day); err != nil {
			s.logger.Error().Err(err).Str("day", day).Msg("failed to notify subscribers after purge")
		}
	}

	if _, err := s.notifications.PurgeBefore(ctx, today); err != nil {
		return fmt.Errorf("purge stale subscriptions: %w", err)
	}

	s.logger.Info().Int("days", len(days)).Msg("weekly purge completed")
	return nil
}

// RunRefresh notifies the subscribers of today.
func (s *Sweeper) RunRefresh(ctx context.Context) error {
	report, err := s.notifications.NotifyAndClear(ctx, s.today())
	if err != nil {
		return err
	}
	s.logger.Debug().Str("day", report.Day).Int("sent", report.Sent()).Msg("hourly refresh completed")
	return nil
}

// Start schedules both jobs in the configured location. Jobs run with a
// context that is canceled when Stop gives up waiting.
func (s *Sweeper) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil {
		return fmt.Errorf("sweeper already started")
	}

	runCtx, cancel := context.WithCancel(context.Background())
	c := cron.New(cron.WithLocation(s.loc))

	if _, err := c.AddFunc(s.cfg.PurgeSpec, s.job(runCtx, "purge", s.RunPurge)); err != nil {
		cancel()
		return fmt.Errorf("invalid purge spec %q: %w", s.cfg.PurgeSpec, err)
	}
	if _, err := c.AddFunc(s.cfg.RefreshSpec, s.job(runCtx, "refresh", s.RunRefresh)); err != nil {
		cancel()
		return fmt.Errorf("invalid refresh spec %q: %w", s.cfg.RefreshSpec, err)
	}

	c.Start()
	s.cron = c
	s.cancel = cancel

	s.logger.Info().
		Str("purge_spec", s.cfg.PurgeSpec).
		Str("refresh_spec", s.cfg.RefreshSpec).
		Str("location", s.loc.String()).
		Msg("sweeper started")
	return nil
}

func (s *Sweeper) job(ctx context.Context, name string, fn func(context.Context) error) func() {
	return func() {
		err := fn(ctx)
		metrics.IncSweeperRun(name, err)
		if err != nil {
			s.logger.Error().Err(err).Str("job", name).Msg("sweeper job failed")
		}
	}
}

// Stop prevents new runs and waits for running jobs until ctx ends, at which
// point their context is canceled.
func (s *Sweeper) Stop(ctx context.Context) error {
	s.mu.Lock()
	c, cancel := s.cron, s.cancel
	s.cron, s.cancel = nil, nil
	s.mu.Unlock()

	if c == nil {
		return nil
	}
	defer cancel()

	select {
	case <-c.Stop().Done():
		s.logger.Info().Msg("sweeper stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
