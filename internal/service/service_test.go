package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"descansos/internal/events"
	"descansos/internal/identity"
	"descansos/internal/models"
	"descansos/internal/schedule"
	"descansos/internal/shift"
)

// memStore is an in-memory Store for tests.
type memStore struct {
	mu      sync.Mutex
	nextID  int64
	rows    map[int64]models.Reservation
	failput bool
}

func newMemStore() *memStore {
	return &memStore{rows: make(map[int64]models.Reservation)}
}

func (m *memStore) CreateReservation(_ context.Context, r *models.Reservation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failput {
		return errors.New("disk full")
	}
	m.nextID++
	r.ID = m.nextID
	r.CreatedAt = time.Now().UTC()
	m.rows[r.ID] = *r
	return nil
}

func (m *memStore) GetReservation(_ context.Context, id int64) (*models.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[id]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (m *memStore) DeleteReservation(_ context.Context, id int64, ownerKey string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[id]
	if !ok || r.OwnerKey != ownerKey {
		return false, nil
	}
	delete(m.rows, id)
	return true, nil
}

func (m *memStore) ListReservationsBetween(_ context.Context, start, end time.Time) ([]models.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Reservation
	for _, r := range m.rows {
		if !r.StartTime.Before(start) && r.StartTime.Before(end) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memStore) ListOwnerReservationsBetween(ctx context.Context, ownerKey string, start, end time.Time) ([]models.Reservation, error) {
	all, err := m.ListReservationsBetween(ctx, start, end)
	if err != nil {
		return nil, err
	}
	var out []models.Reservation
	for _, r := range all {
		if r.OwnerKey == ownerKey {
			out = append(out, r)
		}
	}
	return out, nil
}

func newTestService(t *testing.T, store Store) *BreakService {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Madrid")
	require.NoError(t, err)
	cal := shift.NewCalendar(shift.DefaultShifts(), loc)
	engine := schedule.NewEngine(nil)
	feed := events.NewFeed(nil, zerolog.Nop())
	return New(store, cal, engine, feed, 30, zerolog.Nop())
}

func madrid(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Madrid")
	require.NoError(t, err)
	return loc
}

func TestCreateAdmitsAndPersists(t *testing.T) {
	store := newMemStore()
	svc := newTestService(t, store)
	loc := madrid(t)

	ana, err := identity.Guest("Ana")
	require.NoError(t, err)

	start := time.Date(2025, 3, 12, 9, 0, 0, 0, loc)
	res, decision, err := svc.Create(context.Background(), ana, "morning", start, 15, "coffee")

	require.NoError(t, err)
	assert.True(t, decision.Admitted)
	require.NotNil(t, res)
	assert.NotZero(t, res.ID)
	assert.Equal(t, "guest:Ana", res.OwnerKey)
	assert.Equal(t, "Mañana", res.ShiftLabel)
	assert.Equal(t, "coffee", res.Notes)

	stored, err := store.GetReservation(context.Background(), res.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
}

func TestCreatePublishesChangeEvent(t *testing.T) {
	store := newMemStore()
	svc := newTestService(t, store)
	loc := madrid(t)

	id, ch := svc.feed.Subscribe(4)
	defer svc.feed.Unsubscribe(id)

	ana, _ := identity.Guest("Ana")
	start := time.Date(2025, 3, 12, 9, 0, 0, 0, loc)
	res, _, err := svc.Create(context.Background(), ana, "morning", start, 15, "")
	require.NoError(t, err)

	select {
	case ev := <-ch:
		assert.Equal(t, events.KindCreated, ev.Kind)
		assert.Equal(t, res.ID, ev.Reservation.ID)
	case <-time.After(time.Second):
		t.Fatal("no change event published")
	}
}

func TestCreateRejectionDoesNotPersist(t *testing.T) {
	store := newMemStore()
	svc := newTestService(t, store)
	loc := madrid(t)

	ana, _ := identity.Guest("Ana")
	start := time.Date(2025, 3, 12, 9, 0, 0, 0, loc)

	res, decision, err := svc.Create(context.Background(), ana, "morning", start, 7, "")

	require.NoError(t, err)
	assert.Nil(t, res)
	assert.Equal(t, schedule.ReasonInvalidDuration, decision.Reason)
	assert.Empty(t, store.rows)
}

func TestCreateUnknownShift(t *testing.T) {
	svc := newTestService(t, newMemStore())
	ana, _ := identity.Guest("Ana")

	_, _, err := svc.Create(context.Background(), ana, "siesta", time.Now(), 15, "")

	assert.ErrorIs(t, err, ErrUnknownShift)
}

func TestCreateOverlapAcrossOwners(t *testing.T) {
	store := newMemStore()
	svc := newTestService(t, store)
	loc := madrid(t)
	ctx := context.Background()

	luis, _ := identity.Guest("Luis")
	ana, _ := identity.Guest("Ana")
	start := time.Date(2025, 3, 12, 9, 0, 0, 0, loc)

	_, decision, err := svc.Create(ctx, luis, "morning", start, 20, "")
	require.NoError(t, err)
	require.True(t, decision.Admitted)

	_, decision, err = svc.Create(ctx, ana, "morning", start.Add(10*time.Minute), 15, "")
	require.NoError(t, err)
	assert.Equal(t, schedule.ReasonOverlap, decision.Reason)
	require.NotNil(t, decision.Conflict)
	assert.Equal(t, "Luis", decision.Conflict.OwnerName)
}

func TestGuestsSharingNameShareBudget(t *testing.T) {
	store := newMemStore()
	svc := newTestService(t, store)
	loc := madrid(t)
	ctx := context.Background()

	// Two sessions, same display name: same owner key, one budget.
	first, _ := identity.Guest("Ana")
	second, _ := identity.Guest("Ana")
	start := time.Date(2025, 3, 12, 9, 0, 0, 0, loc)

	_, decision, err := svc.Create(ctx, first, "morning", start, 30, "")
	require.NoError(t, err)
	require.True(t, decision.Admitted)

	_, decision, err = svc.Create(ctx, second, "morning", start.Add(2*time.Hour), 5, "")
	require.NoError(t, err)
	assert.Equal(t, schedule.ReasonBudgetExceeded, decision.Reason)
	assert.Equal(t, 0, decision.RemainingMinutes)
}

func TestCreateFromSlotsCoalescesIntoOneReservation(t *testing.T) {
	store := newMemStore()
	svc := newTestService(t, store)
	loc := madrid(t)

	ana, _ := identity.Guest("Ana")
	base := time.Date(2025, 3, 12, 9, 0, 0, 0, loc)
	picks := []time.Time{base, base.Add(10 * time.Minute), base.Add(20 * time.Minute)}

	results, err := svc.CreateFromSlots(context.Background(), ana, "morning", picks, 10)

	require.NoError(t, err)
	require.Len(t, results, 1, "three contiguous cells become one block")
	assert.True(t, results[0].Decision.Admitted)
	require.NotNil(t, results[0].Reservation)
	assert.Equal(t, 30, results[0].Reservation.DurationMinutes)
	assert.Len(t, store.rows, 1)
}

func TestCreateFromSlotsEarlierBlockJoinsSnapshot(t *testing.T) {
	store := newMemStore()
	svc := newTestService(t, store)
	loc := madrid(t)

	ana, _ := identity.Guest("Ana")
	base := time.Date(2025, 3, 12, 9, 0, 0, 0, loc)
	// Two separate blocks totalling 40 minutes: the second must be
	// refused on budget because the first already consumed 30.
	picks := []time.Time{
		base, base.Add(10 * time.Minute), base.Add(20 * time.Minute),
		base.Add(2 * time.Hour),
	}

	results, err := svc.CreateFromSlots(context.Background(), ana, "morning", picks, 10)

	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.True(t, results[0].Decision.Admitted)
	assert.Equal(t, schedule.ReasonBudgetExceeded, results[1].Decision.Reason)
	assert.Len(t, store.rows, 1)
}

func TestDeleteRequiresOwnership(t *testing.T) {
	store := newMemStore()
	svc := newTestService(t, store)
	loc := madrid(t)
	ctx := context.Background()

	ana, _ := identity.Guest("Ana")
	luis, _ := identity.Guest("Luis")
	start := time.Date(2025, 3, 12, 9, 0, 0, 0, loc)
	res, _, err := svc.Create(ctx, ana, "morning", start, 15, "")
	require.NoError(t, err)

	err = svc.Delete(ctx, luis, res.ID)
	assert.ErrorIs(t, err, ErrNotOwner)

	err = svc.Delete(ctx, ana, res.ID)
	assert.NoError(t, err)
	assert.Empty(t, store.rows)

	err = svc.Delete(ctx, ana, res.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeletePublishesChangeEvent(t *testing.T) {
	store := newMemStore()
	svc := newTestService(t, store)
	loc := madrid(t)
	ctx := context.Background()

	ana, _ := identity.Guest("Ana")
	res, _, err := svc.Create(ctx, ana, "morning", time.Date(2025, 3, 12, 9, 0, 0, 0, loc), 15, "")
	require.NoError(t, err)

	id, ch := svc.feed.Subscribe(4)
	defer svc.feed.Unsubscribe(id)

	require.NoError(t, svc.Delete(ctx, ana, res.ID))

	select {
	case ev := <-ch:
		assert.Equal(t, events.KindDeleted, ev.Kind)
		assert.Equal(t, res.ID, ev.Reservation.ID)
	case <-time.After(time.Second):
		t.Fatal("no change event published")
	}
}

func TestRepeatDayProjectsOntoTarget(t *testing.T) {
	store := newMemStore()
	svc := newTestService(t, store)
	loc := madrid(t)
	ctx := context.Background()

	ana, _ := identity.Guest("Ana")
	src := time.Date(2025, 3, 11, 9, 0, 0, 0, loc)
	_, decision, err := svc.Create(ctx, ana, "morning", src, 15, "")
	require.NoError(t, err)
	require.True(t, decision.Admitted)

	report, err := svc.RepeatDay(ctx, ana, "morning", src, src.AddDate(0, 0, 1))

	require.NoError(t, err)
	require.Len(t, report.Admitted, 1)
	assert.Empty(t, report.Rejected)
	got := report.Admitted[0]
	assert.NotZero(t, got.ID, "admitted projections are persisted")
	assert.True(t, got.StartTime.Equal(time.Date(2025, 3, 12, 9, 0, 0, 0, loc)))
	assert.Len(t, store.rows, 2)
}

func TestRepeatDayPartialSuccess(t *testing.T) {
	store := newMemStore()
	svc := newTestService(t, store)
	loc := madrid(t)
	ctx := context.Background()

	ana, _ := identity.Guest("Ana")
	luis, _ := identity.Guest("Luis")

	srcDay := time.Date(2025, 3, 11, 9, 0, 0, 0, loc)
	_, _, err := svc.Create(ctx, ana, "morning", srcDay, 10, "")
	require.NoError(t, err)
	_, _, err = svc.Create(ctx, ana, "morning", srcDay.Add(2*time.Hour), 10, "")
	require.NoError(t, err)

	// Luis blocks 11:00 on the target day, so only Ana's 09:00
	// projection lands.
	target := time.Date(2025, 3, 12, 11, 0, 0, 0, loc)
	_, decision, err := svc.Create(ctx, luis, "morning", target, 15, "")
	require.NoError(t, err)
	require.True(t, decision.Admitted)

	report, err := svc.RepeatDay(ctx, ana, "morning", srcDay, srcDay.AddDate(0, 0, 1))

	require.NoError(t, err)
	assert.Len(t, report.Admitted, 1)
	require.Len(t, report.Rejected, 1)
	assert.Equal(t, schedule.ReasonOverlap, report.Rejected[0].Decision.Reason)
}

func TestRepeatDayWriteFailureKeepsEarlierWrites(t *testing.T) {
	store := newMemStore()
	svc := newTestService(t, store)
	loc := madrid(t)
	ctx := context.Background()

	ana, _ := identity.Guest("Ana")
	srcDay := time.Date(2025, 3, 11, 9, 0, 0, 0, loc)
	_, _, err := svc.Create(ctx, ana, "morning", srcDay, 10, "")
	require.NoError(t, err)

	store.failput = true
	report, err := svc.RepeatDay(ctx, ana, "morning", srcDay, srcDay.AddDate(0, 0, 1))

	assert.Error(t, err)
	assert.Empty(t, report.Admitted, "the report only lists what was actually written")
}

func TestConflictReportFlagsRacedWrites(t *testing.T) {
	store := newMemStore()
	svc := newTestService(t, store)
	loc := madrid(t)
	ctx := context.Background()

	// Simulate two sessions that both passed admission against stale
	// snapshots by writing overlapping rows directly.
	a := models.Reservation{
		OwnerKey: "guest:Ana", OwnerName: "Ana", ShiftLabel: "Mañana",
		StartTime:       time.Date(2025, 3, 12, 9, 0, 0, 0, loc),
		EndTime:         time.Date(2025, 3, 12, 9, 20, 0, 0, loc),
		DurationMinutes: 20,
	}
	b := models.Reservation{
		OwnerKey: "guest:Luis", OwnerName: "Luis", ShiftLabel: "Mañana",
		StartTime:       time.Date(2025, 3, 12, 9, 10, 0, 0, loc),
		EndTime:         time.Date(2025, 3, 12, 9, 25, 0, 0, loc),
		DurationMinutes: 15,
	}
	require.NoError(t, store.CreateReservation(ctx, &a))
	require.NoError(t, store.CreateReservation(ctx, &b))

	conflicts, err := svc.ConflictReport(ctx, "morning", a.StartTime)

	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	assert.Equal(t, a.ID, conflicts[0].A.ID)
	assert.Equal(t, b.ID, conflicts[0].B.ID)
}

func TestRemainingBudget(t *testing.T) {
	store := newMemStore()
	svc := newTestService(t, store)
	loc := madrid(t)
	ctx := context.Background()

	ana, _ := identity.Guest("Ana")
	ref := time.Date(2025, 3, 12, 9, 0, 0, 0, loc)

	remaining, err := svc.RemainingBudget(ctx, ana, "morning", ref)
	require.NoError(t, err)
	assert.Equal(t, 30, remaining)

	_, _, err = svc.Create(ctx, ana, "morning", ref, 20, "")
	require.NoError(t, err)

	remaining, err = svc.RemainingBudget(ctx, ana, "morning", ref)
	require.NoError(t, err)
	assert.Equal(t, 10, remaining)
}

func TestActiveShiftFallsBackOnPartitionFailure(t *testing.T) {
	loc := madrid(t)
	// A deliberately broken shift set that leaves a hole in the day.
	broken := [3]shift.Shift{{ID: "only", Label: "Only", StartHour: 8, EndHour: 10}}
	cal := shift.NewCalendar(broken, loc)
	svc := New(newMemStore(), cal, schedule.NewEngine(nil), events.NewFeed(nil, zerolog.Nop()), 30, zerolog.Nop())

	active := svc.ActiveShift(time.Date(2025, 3, 12, 12, 0, 0, 0, loc))
	assert.Equal(t, "only", active.ID)
}
