// Package notify delivers best-effort break reminders a fixed lead time
// before each reservation starts. Delivery failures never affect
// scheduling correctness; an unsent reminder is retried on the next
// scan until the break has started.
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"descansos/internal/metrics"
	"descansos/internal/models"
)

// ReservationSource provides upcoming reservations needing reminders.
type ReservationSource interface {
	ListUpcomingUnreminded(ctx context.Context, within time.Duration) ([]models.Reservation, error)
	MarkReminderSent(ctx context.Context, id int64) error
}

// Notifier sends one reminder message.
type Notifier interface {
	SendReminder(ctx context.Context, r models.Reservation) error
}

// Config holds reminder loop settings.
type Config struct {
	// Lead is how long before the break start the reminder fires.
	Lead time.Duration
	// CheckInterval is how often the loop scans for due reminders.
	CheckInterval time.Duration
	// RatePerSecond and Burst bound outbound sends.
	RatePerSecond float64
	Burst         int
	// MaxConcurrent limits parallel notification sends.
	MaxConcurrent int
}

// DefaultConfig returns sensible defaults: 5 minutes lead, 30 second
// scans.
func DefaultConfig() Config {
	return Config{
		Lead:          5 * time.Minute,
		CheckInterval: 30 * time.Second,
		RatePerSecond: 20,
		Burst:         30,
		MaxConcurrent: 10,
	}
}

// Service runs the reminder scan loop.
type Service struct {
	config   Config
	source   ReservationSource
	notifier Notifier
	limiter  *rate.Limiter
	logger   zerolog.Logger
	stopCh   chan struct{}
	wg       sync.WaitGroup
	mu       sync.Mutex
	running  bool
}

// NewService creates a reminder service.
func NewService(config Config, source ReservationSource, notifier Notifier, logger zerolog.Logger) *Service {
	if config.Lead <= 0 {
		config.Lead = 5 * time.Minute
	}
	if config.CheckInterval <= 0 {
		config.CheckInterval = 30 * time.Second
	}
	if config.RatePerSecond <= 0 {
		config.RatePerSecond = 20
	}
	if config.Burst <= 0 {
		config.Burst = 30
	}
	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = 10
	}

	return &Service{
		config:   config,
		source:   source,
		notifier: notifier,
		limiter:  rate.NewLimiter(rate.Limit(config.RatePerSecond), config.Burst),
		logger:   logger.With().Str("component", "notify").Logger(),
		stopCh:   make(chan struct{}),
	}
}

// Start begins the scan loop.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	s.wg.Add(1)
	go s.loop(ctx)

	s.logger.Info().
		Dur("lead", s.config.Lead).
		Dur("check_interval", s.config.CheckInterval).
		Msg("reminder service started")
}

// Stop waits for the loop to exit.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	close(s.stopCh)
	s.wg.Wait()
	s.logger.Info().Msg("reminder service stopped")
}

func (s *Service) loop(ctx context.Context) {
	defer s.wg.Done()

	s.CheckNow(ctx)

	ticker := time.NewTicker(s.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.CheckNow(ctx)
		}
	}
}

// CheckNow scans once for reservations whose reminder is due: those
// starting within the lead window. Exposed for tests.
func (s *Service) CheckNow(ctx context.Context) {
	reservations, err := s.source.ListUpcomingUnreminded(ctx, s.config.Lead)
	if err != nil {
		s.logger.Error().Err(err).Msg("list upcoming reservations")
		return
	}
	if len(reservations) == 0 {
		return
	}

	sem := make(chan struct{}, s.config.MaxConcurrent)
	var wg sync.WaitGroup

	for _, r := range reservations {
		wg.Add(1)
		sem <- struct{}{}

		go func(r models.Reservation) {
			defer wg.Done()
			defer func() { <-sem }()

			if err := s.limiter.Wait(ctx); err != nil {
				return
			}
			if err := s.notifier.SendReminder(ctx, r); err != nil {
				s.logger.Error().Err(err).Int64("id", r.ID).Msg("send reminder")
				return
			}
			if err := s.source.MarkReminderSent(ctx, r.ID); err != nil {
				// Notification went out; the flag catches up later.
				s.logger.Error().Err(err).Int64("id", r.ID).Msg("mark reminder sent")
			}
			metrics.IncReminderSent()
			s.logger.Info().Int64("id", r.ID).Str("owner", r.OwnerName).Msg("reminder sent")
		}(r)
	}

	wg.Wait()
}
