package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"descansos/internal/models"
)

type mockSource struct {
	mu       sync.Mutex
	upcoming []models.Reservation
	listErr  error
	marked   []int64
	markErr  error
}

func (m *mockSource) ListUpcomingUnreminded(_ context.Context, _ time.Duration) ([]models.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.upcoming, m.listErr
}

func (m *mockSource) MarkReminderSent(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.markErr != nil {
		return m.markErr
	}
	m.marked = append(m.marked, id)
	return nil
}

func (m *mockSource) markedIDs() []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int64(nil), m.marked...)
}

type mockNotifier struct {
	mu      sync.Mutex
	sent    []int64
	sendErr error
}

func (m *mockNotifier) SendReminder(_ context.Context, r models.Reservation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return m.sendErr
	}
	m.sent = append(m.sent, r.ID)
	return nil
}

func (m *mockNotifier) sentIDs() []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int64(nil), m.sent...)
}

func upcoming(id int64, in time.Duration) models.Reservation {
	start := time.Now().Add(in)
	return models.Reservation{
		ID: id, OwnerKey: "guest:Ana", OwnerName: "Ana", ShiftLabel: "Mañana",
		StartTime: start, EndTime: start.Add(15 * time.Minute), DurationMinutes: 15,
	}
}

func TestCheckNowSendsAndMarks(t *testing.T) {
	source := &mockSource{upcoming: []models.Reservation{
		upcoming(1, 2*time.Minute),
		upcoming(2, 4*time.Minute),
	}}
	notifier := &mockNotifier{}
	svc := NewService(DefaultConfig(), source, notifier, zerolog.Nop())

	svc.CheckNow(context.Background())

	assert.ElementsMatch(t, []int64{1, 2}, notifier.sentIDs())
	assert.ElementsMatch(t, []int64{1, 2}, source.markedIDs())
}

func TestCheckNowSendFailureLeavesUnmarked(t *testing.T) {
	source := &mockSource{upcoming: []models.Reservation{upcoming(1, 2 * time.Minute)}}
	notifier := &mockNotifier{sendErr: errors.New("telegram down")}
	svc := NewService(DefaultConfig(), source, notifier, zerolog.Nop())

	svc.CheckNow(context.Background())

	assert.Empty(t, source.markedIDs(), "failed sends stay eligible for the next scan")
}

func TestCheckNowMarkFailureStillSends(t *testing.T) {
	source := &mockSource{
		upcoming: []models.Reservation{upcoming(1, 2 * time.Minute)},
		markErr:  errors.New("db busy"),
	}
	notifier := &mockNotifier{}
	svc := NewService(DefaultConfig(), source, notifier, zerolog.Nop())

	svc.CheckNow(context.Background())

	assert.Equal(t, []int64{1}, notifier.sentIDs())
}

func TestCheckNowListFailure(t *testing.T) {
	source := &mockSource{listErr: errors.New("db gone")}
	notifier := &mockNotifier{}
	svc := NewService(DefaultConfig(), source, notifier, zerolog.Nop())

	svc.CheckNow(context.Background())

	assert.Empty(t, notifier.sentIDs())
}

func TestStartStop(t *testing.T) {
	source := &mockSource{upcoming: []models.Reservation{upcoming(1, 2 * time.Minute)}}
	notifier := &mockNotifier{}
	cfg := DefaultConfig()
	cfg.CheckInterval = 10 * time.Millisecond
	svc := NewService(cfg, source, notifier, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	svc.Start(ctx)
	// Second start is a no-op.
	svc.Start(ctx)

	require.Eventually(t, func() bool {
		return len(notifier.sentIDs()) > 0
	}, time.Second, 5*time.Millisecond)

	svc.Stop()
	svc.Stop()
}

func TestConfigDefaults(t *testing.T) {
	svc := NewService(Config{}, &mockSource{}, &mockNotifier{}, zerolog.Nop())

	assert.Equal(t, 5*time.Minute, svc.config.Lead)
	assert.Equal(t, 30*time.Second, svc.config.CheckInterval)
	assert.Equal(t, 10, svc.config.MaxConcurrent)
}
