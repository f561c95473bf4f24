// Package service orchestrates break scheduling: it reads a snapshot of
// the target occurrence, runs admission, persists on success, and
// publishes a change event so other sessions refresh.
//
// Admission runs against the snapshot this session holds; there is no
// cross-session locking. A write that races another session can produce
// a double-booking, which ConflictReport surfaces after the next
// refresh. Storage write failures are returned as-is with no retry.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"descansos/internal/events"
	"descansos/internal/identity"
	"descansos/internal/metrics"
	"descansos/internal/models"
	"descansos/internal/schedule"
	"descansos/internal/shift"
)

var (
	// ErrNotFound means the reservation does not exist.
	ErrNotFound = errors.New("reservation not found")
	// ErrNotOwner means the caller does not own the reservation.
	ErrNotOwner = errors.New("reservation owned by someone else")
	// ErrUnknownShift means the shift id is not in the configured set.
	ErrUnknownShift = errors.New("unknown shift")
)

// Store is the reservation storage the service needs.
type Store interface {
	CreateReservation(ctx context.Context, r *models.Reservation) error
	GetReservation(ctx context.Context, id int64) (*models.Reservation, error)
	DeleteReservation(ctx context.Context, id int64, ownerKey string) (bool, error)
	ListReservationsBetween(ctx context.Context, start, end time.Time) ([]models.Reservation, error)
	ListOwnerReservationsBetween(ctx context.Context, ownerKey string, start, end time.Time) ([]models.Reservation, error)
}

// BreakService wires the resolver, engine, and planner to storage and
// the change feed.
type BreakService struct {
	store   Store
	cal     *shift.Calendar
	engine  *schedule.Engine
	planner *schedule.Planner
	feed    *events.Feed
	ceiling int
	logger  zerolog.Logger
}

// New creates the break service.
func New(store Store, cal *shift.Calendar, engine *schedule.Engine, feed *events.Feed, budgetCeiling int, logger zerolog.Logger) *BreakService {
	return &BreakService{
		store:   store,
		cal:     cal,
		engine:  engine,
		planner: schedule.NewPlanner(engine),
		feed:    feed,
		ceiling: budgetCeiling,
		logger:  logger.With().Str("component", "breaks").Logger(),
	}
}

// Calendar exposes the shift calendar for callers that need raw
// occurrence math.
func (s *BreakService) Calendar() *shift.Calendar {
	return s.cal
}

// BudgetCeiling returns the per-owner per-occurrence minute ceiling.
func (s *BreakService) BudgetCeiling() int {
	return s.ceiling
}

// ActiveShift classifies ref into the current shift, logging the
// defensive fallback should the shift windows ever fail to partition
// the day.
func (s *BreakService) ActiveShift(ref time.Time) shift.Shift {
	active, ok := s.cal.Active(ref)
	if !ok {
		s.logger.Error().Time("ref", ref).Msg("no shift window contains instant; falling back to first shift")
	}
	return active
}

// Snapshot resolves the shift occurrence for ref and loads every
// reservation inside it, across all owners.
func (s *BreakService) Snapshot(ctx context.Context, shiftID string, ref time.Time) (shift.Occurrence, []models.Reservation, error) {
	sh, ok := s.cal.ByID(shiftID)
	if !ok {
		return shift.Occurrence{}, nil, fmt.Errorf("%w: %q", ErrUnknownShift, shiftID)
	}
	occ := s.cal.OccurrenceOf(sh, ref)
	existing, err := s.store.ListReservationsBetween(ctx, occ.Start, occ.End)
	if err != nil {
		return shift.Occurrence{}, nil, fmt.Errorf("load snapshot: %w", err)
	}
	return occ, existing, nil
}

// Create validates one candidate against the occurrence snapshot and
// persists it when admitted. The decision always reports the outcome;
// err is non-nil only for storage or lookup failures.
func (s *BreakService) Create(ctx context.Context, ident identity.Identity, shiftID string, start time.Time, durationMinutes int, notes string) (*models.Reservation, schedule.Decision, error) {
	sh, ok := s.cal.ByID(shiftID)
	if !ok {
		return nil, schedule.Decision{}, fmt.Errorf("%w: %q", ErrUnknownShift, shiftID)
	}

	occ, existing, err := s.Snapshot(ctx, shiftID, start)
	if err != nil {
		return nil, schedule.Decision{}, err
	}

	cand := schedule.Candidate{
		OwnerKey:        ident.Key,
		OwnerName:       ident.Name,
		Start:           start.In(s.cal.Location()),
		DurationMinutes: durationMinutes,
		Notes:           notes,
	}
	decision := s.engine.TryAdmit(cand, occ, existing, s.ceiling)
	if !decision.Admitted {
		metrics.IncReservationRejected(string(decision.Reason))
		return nil, decision, nil
	}

	res := cand.Reservation(sh.Label)
	if err := s.store.CreateReservation(ctx, &res); err != nil {
		return nil, decision, err
	}

	metrics.IncReservationCreated(sh.ID)
	s.feed.Publish(ctx, events.Change{Kind: events.KindCreated, Reservation: res})
	s.logger.Info().
		Int64("id", res.ID).
		Str("owner", ident.Name).
		Str("shift", sh.ID).
		Time("start", res.StartTime).
		Int("minutes", res.DurationMinutes).
		Msg("reservation created")
	return &res, decision, nil
}

// SlotResult pairs one coalesced block with its outcome.
type SlotResult struct {
	Block       schedule.Block      `json:"block"`
	Decision    schedule.Decision   `json:"decision"`
	Reservation *models.Reservation `json:"reservation,omitempty"`
}

// CreateFromSlots coalesces the picked grid cells into contiguous
// blocks and admits each block as one reservation. Blocks are written
// sequentially; an admitted block joins the snapshot used for the next.
func (s *BreakService) CreateFromSlots(ctx context.Context, ident identity.Identity, shiftID string, picks []time.Time, slotMinutes int) ([]SlotResult, error) {
	blocks := schedule.CoalesceSlots(picks, slotMinutes)
	results := make([]SlotResult, 0, len(blocks))

	for _, b := range blocks {
		res, decision, err := s.Create(ctx, ident, shiftID, b.Start, b.DurationMinutes, "")
		if err != nil {
			return results, err
		}
		results = append(results, SlotResult{Block: b, Decision: decision, Reservation: res})
	}
	return results, nil
}

// Delete removes a reservation owned by ident. Guests delete by name
// equality, so a same-named guest can remove another guest's break.
func (s *BreakService) Delete(ctx context.Context, ident identity.Identity, id int64) error {
	existing, err := s.store.GetReservation(ctx, id)
	if err != nil {
		return fmt.Errorf("load reservation: %w", err)
	}
	if existing == nil {
		return ErrNotFound
	}
	if existing.OwnerKey != ident.Key {
		return ErrNotOwner
	}

	deleted, err := s.store.DeleteReservation(ctx, id, ident.Key)
	if err != nil {
		return err
	}
	if !deleted {
		return ErrNotFound
	}

	metrics.IncReservationDeleted()
	s.feed.Publish(ctx, events.Change{Kind: events.KindDeleted, Reservation: *existing})
	s.logger.Info().Int64("id", id).Str("owner", ident.Name).Msg("reservation deleted")
	return nil
}

// RepeatDay projects ident's reservations from the source day's
// occurrence of the shift onto the target day's occurrence. Admitted
// projections are persisted sequentially; a write failure stops the
// batch but leaves earlier writes in place, matching the no-rollback
// model.
func (s *BreakService) RepeatDay(ctx context.Context, ident identity.Identity, shiftID string, sourceRef, targetRef time.Time) (schedule.ReplicationReport, error) {
	sh, ok := s.cal.ByID(shiftID)
	if !ok {
		return schedule.ReplicationReport{}, fmt.Errorf("%w: %q", ErrUnknownShift, shiftID)
	}

	sourceOcc := s.cal.OccurrenceOf(sh, sourceRef)
	source, err := s.store.ListOwnerReservationsBetween(ctx, ident.Key, sourceOcc.Start, sourceOcc.End)
	if err != nil {
		return schedule.ReplicationReport{}, fmt.Errorf("load source day: %w", err)
	}

	targetOcc, existing, err := s.Snapshot(ctx, shiftID, targetRef)
	if err != nil {
		return schedule.ReplicationReport{}, err
	}

	report := s.planner.Replicate(source, targetOcc, existing, s.ceiling)

	persisted := make([]models.Reservation, 0, len(report.Admitted))
	for _, r := range report.Admitted {
		if err := s.store.CreateReservation(ctx, &r); err != nil {
			report.Admitted = persisted
			metrics.IncReplication("write_failed")
			return report, fmt.Errorf("persist projected reservation: %w", err)
		}
		persisted = append(persisted, r)
		s.feed.Publish(ctx, events.Change{Kind: events.KindCreated, Reservation: r})
	}
	report.Admitted = persisted

	for range report.Admitted {
		metrics.IncReplication("admitted")
	}
	for range report.Rejected {
		metrics.IncReplication("rejected")
	}

	s.logger.Info().
		Str("owner", ident.Name).
		Str("shift", sh.ID).
		Int("admitted", len(report.Admitted)).
		Int("rejected", len(report.Rejected)).
		Msg("repeat day projected")
	return report, nil
}

// ConflictReport loads a fresh snapshot of the occurrence and flags
// double-bookings that slipped past concurrent admissions.
func (s *BreakService) ConflictReport(ctx context.Context, shiftID string, ref time.Time) ([]schedule.Conflict, error) {
	_, existing, err := s.Snapshot(ctx, shiftID, ref)
	if err != nil {
		return nil, err
	}
	return schedule.DetectOverlaps(existing), nil
}

// Grid lays out the occurrence's atomic slot cells with occupancy.
func (s *BreakService) Grid(ctx context.Context, shiftID string, ref time.Time, slotMinutes int) ([]schedule.SlotCell, error) {
	occ, existing, err := s.Snapshot(ctx, shiftID, ref)
	if err != nil {
		return nil, err
	}
	return schedule.BuildGrid(occ.Start, occ.End, slotMinutes, existing), nil
}

// RemainingBudget reports how many break minutes ident still has inside
// the occurrence containing ref.
func (s *BreakService) RemainingBudget(ctx context.Context, ident identity.Identity, shiftID string, ref time.Time) (int, error) {
	occ, existing, err := s.Snapshot(ctx, shiftID, ref)
	if err != nil {
		return 0, err
	}
	used := s.engine.UsedMinutes(ident.Key, occ, existing)
	remaining := s.ceiling - used
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}
