// Package audit keeps the reservations table small and the history
// inspectable: a daily sweep exports reservations older than the
// retention window to an Excel workbook (optionally mirrored to Google
// Sheets) and then deletes them.
package audit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"descansos/internal/models"
)

// Config holds audit settings.
type Config struct {
	// RetentionDays is how many days of reservations to keep.
	RetentionDays int
	// SweepInterval is how often the sweep runs. Default: 24h.
	SweepInterval time.Duration
	// SweepOnStart runs one sweep immediately at startup.
	SweepOnStart bool
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		RetentionDays: 31,
		SweepInterval: 24 * time.Hour,
	}
}

// Store is the reservation storage the sweep needs.
type Store interface {
	ListReservationsBetween(ctx context.Context, start, end time.Time) ([]models.Reservation, error)
	DeleteReservationsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Exporter writes a batch of swept reservations somewhere durable.
type Exporter interface {
	Export(ctx context.Context, reservations []models.Reservation, label string) error
}

// Service runs the retention sweep loop.
type Service struct {
	config    Config
	store     Store
	exporters []Exporter
	logger    zerolog.Logger
	stopCh    chan struct{}
	wg        sync.WaitGroup
	mu        sync.Mutex
	running   bool
}

// NewService creates the audit service. Exporters run in order; an
// exporter failure aborts the sweep so no data is deleted unexported.
func NewService(config Config, store Store, exporters []Exporter, logger zerolog.Logger) *Service {
	if config.RetentionDays <= 0 {
		config.RetentionDays = 31
	}
	if config.SweepInterval <= 0 {
		config.SweepInterval = 24 * time.Hour
	}
	return &Service{
		config:    config,
		store:     store,
		exporters: exporters,
		logger:    logger.With().Str("component", "audit").Logger(),
		stopCh:    make(chan struct{}),
	}
}

// Start begins the sweep loop.
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
		Int("retention_days", s.config.RetentionDays).
		Dur("interval", s.config.SweepInterval).
		Msg("audit service started")
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
}

func (s *Service) loop(ctx context.Context) {
	defer s.wg.Done()

	if s.config.SweepOnStart {
		if err := s.SweepNow(ctx); err != nil {
			s.logger.Error().Err(err).Msg("initial sweep failed")
		}
	}

	ticker := time.NewTicker(s.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			if err := s.SweepNow(ctx); err != nil {
				s.logger.Error().Err(err).Msg("sweep failed")
			}
		}
	}
}

// SweepNow exports and deletes reservations past retention. Exposed for
// tests and manual runs.
func (s *Service) SweepNow(ctx context.Context) error {
	cutoff := time.Now().Add(-time.Duration(s.config.RetentionDays) * 24 * time.Hour)

	old, err := s.store.ListReservationsBetween(ctx, time.Time{}, cutoff)
	if err != nil {
		return fmt.Errorf("list old reservations: %w", err)
	}
	if len(old) == 0 {
		return nil
	}

	label := cutoff.Format("2006-01-02")
	for _, exp := range s.exporters {
		if err := exp.Export(ctx, old, label); err != nil {
			return fmt.Errorf("export before sweep: %w", err)
		}
	}

	deleted, err := s.store.DeleteReservationsBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("delete swept reservations: %w", err)
	}

	s.logger.Info().
		Int("exported", len(old)).
		Int64("deleted", deleted).
		Str("cutoff", label).
		Msg("retention sweep complete")
	return nil
}
