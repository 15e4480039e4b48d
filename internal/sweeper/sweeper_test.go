package sweeper

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"driverpay.service/internal/core/model"
	"driverpay.service/internal/ports/repository"
)

const (
	driverID = int64(1001)
	adminID  = int64(9999)
)

var loc = time.FixedZone("UTC+3", 3*3600)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type countingSender struct {
	mu   sync.Mutex
	sent map[int64][]string
}

func newCountingSender() *countingSender { return &countingSender{sent: make(map[int64][]string)} }

func (s *countingSender) SendMessage(_ context.Context, chatID int64, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent[chatID] = append(s.sent[chatID], text)
	return nil
}

func (s *countingSender) Reply(context.Context, int64, int, string) error { return nil }

func (s *countingSender) SendCorrectionPrompt(context.Context, int64, int, string) (int, error) {
	return 0, nil
}

func (s *countingSender) DeleteMessage(context.Context, int64, int) error { return nil }

func (s *countingSender) to(chatID int64) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.sent[chatID]...)
}

func setup(t *testing.T, start time.Time) (*repository.FileStore, *fakeClock, *countingSender, *Sweeper) {
	t.Helper()
	store, err := repository.NewFileStore("")
	require.NoError(t, err)
	clock := &fakeClock{now: start}
	sender := newCountingSender()
	sw := New(store, sender, clock, loc, adminID,
		time.Minute, 3*time.Hour, 4*time.Hour, 23)
	return store, clock, sender, sw
}

func openDriver(t *testing.T, store *repository.FileStore, at time.Time) {
	t.Helper()
	opened := at
	require.NoError(t, store.PutDriver(context.Background(), &model.DriverState{
		DriverID:       driverID,
		OnShift:        true,
		ShiftOpenedAt:  &opened,
		LastActivityAt: &opened,
	}))
}

func TestSweep_RemindsOnceAfterWarnThreshold(t *testing.T) {
	start := time.Date(2025, 6, 2, 10, 0, 0, 0, loc)
	store, clock, sender, sw := setup(t, start)
	openDriver(t, store, start)
	ctx := context.Background()

	clock.Advance(2 * time.Hour)
	sw.Sweep(ctx)
	assert.Empty(t, sender.to(driverID), "no reminder before the threshold")

	clock.Advance(90 * time.Minute) // 3h30m idle
	sw.Sweep(ctx)
	sw.Sweep(ctx)
	assert.Len(t, sender.to(driverID), 1, "single reminder until the repeat threshold")
	assert.Equal(t, msgInactive, sender.to(driverID)[0])

	d, err := store.GetDriver(ctx, driverID)
	require.NoError(t, err)
	assert.True(t, d.ReminderSent)
}

func TestSweep_RepeatsReminderPastSecondThreshold(t *testing.T) {
	start := time.Date(2025, 6, 2, 10, 0, 0, 0, loc)
	store, clock, sender, sw := setup(t, start)
	openDriver(t, store, start)
	ctx := context.Background()

	clock.Advance(3*time.Hour + 30*time.Minute)
	sw.Sweep(ctx) // first reminder

	clock.Advance(time.Hour) // 4h30m idle
	sw.Sweep(ctx)
	sw.Sweep(ctx)
	assert.Len(t, sender.to(driverID), 3, "every sweep reminds past the repeat threshold")
}

func TestSweep_ActivityResetsNothingForClosedShift(t *testing.T) {
	start := time.Date(2025, 6, 2, 10, 0, 0, 0, loc)
	store, clock, sender, sw := setup(t, start)
	openDriver(t, store, start)
	ctx := context.Background()

	d, err := store.GetDriver(ctx, driverID)
	require.NoError(t, err)
	d.OnShift = false
	require.NoError(t, store.PutDriver(ctx, d))

	clock.Advance(5 * time.Hour)
	sw.Sweep(ctx)
	assert.Empty(t, sender.to(driverID))
}

func TestSweep_ForceClosesAtEndOfDay(t *testing.T) {
	start := time.Date(2025, 6, 2, 22, 30, 0, 0, loc)
	store, clock, sender, sw := setup(t, start)
	openDriver(t, store, start)
	ctx := context.Background()

	clock.Set(time.Date(2025, 6, 2, 23, 0, 0, 0, loc))
	sw.Sweep(ctx)

	d, err := store.GetDriver(ctx, driverID)
	require.NoError(t, err)
	assert.False(t, d.OnShift)
	require.NotNil(t, d.ShiftClosedAt)
	assert.True(t, d.ReadyForReport, "force-close flags readiness without generating a report")

	notices := sender.to(adminID)
	require.Len(t, notices, 1)
	assert.Contains(t, notices[0], "не закрыл смену")
}

func TestSweep_NoForceCloseOutsideTheHour(t *testing.T) {
	start := time.Date(2025, 6, 2, 23, 1, 0, 0, loc)
	store, _, _, sw := setup(t, start)
	openDriver(t, store, start)
	ctx := context.Background()

	sw.Sweep(ctx)

	d, err := store.GetDriver(ctx, driverID)
	require.NoError(t, err)
	assert.True(t, d.OnShift)
}
