package core

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"driverpay.service/internal/core/model"
	"driverpay.service/internal/core/pricing"
	"driverpay.service/internal/ports/repository"
	"driverpay.service/internal/scheduler"
)

const (
	testDriver  = int64(1001)
	testAdmin   = int64(9999)
	testChat    = int64(-1002079167705)
	testThread  = int64(48)
	otherThread = int64(7)
)

var (
	testLoc      = time.FixedZone("UTC+3", 3*3600)
	testChannels = map[int64]int64{testChat: testThread}
	testNames    = map[int64]string{testChat: "A. Mousse Art Bakery - Белинского, 23"}
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(t time.Time) *fakeClock { return &fakeClock{now: t} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type sentMessage struct {
	ChatID int64
	Text   string
}

type deletedMessage struct {
	ChatID    int64
	MessageID int
}

// fakeSender records every outbound call so tests can assert on side effects.
type fakeSender struct {
	mu           sync.Mutex
	sent         []sentMessage
	replies      []sentMessage
	prompts      []sentMessage
	deleted      []deletedMessage
	nextPromptID int
}

func newFakeSender() *fakeSender { return &fakeSender{nextPromptID: 500} }

func (f *fakeSender) SendMessage(_ context.Context, chatID int64, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMessage{chatID, text})
	return nil
}

func (f *fakeSender) Reply(_ context.Context, chatID int64, _ int, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies = append(f.replies, sentMessage{chatID, text})
	return nil
}

func (f *fakeSender) SendCorrectionPrompt(_ context.Context, chatID int64, _ int, text string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, sentMessage{chatID, text})
	f.nextPromptID++
	return f.nextPromptID, nil
}

func (f *fakeSender) DeleteMessage(_ context.Context, chatID int64, messageID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, deletedMessage{chatID, messageID})
	return nil
}

func (f *fakeSender) sentTo(chatID int64) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, m := range f.sent {
		if m.ChatID == chatID {
			out = append(out, m.Text)
		}
	}
	return out
}

type fixture struct {
	store  *repository.FileStore
	clock  *fakeClock
	sched  *scheduler.Scheduler
	sender *fakeSender
	shifts *ShiftService
	intake *IntakeService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store, err := repository.NewFileStore("")
	require.NoError(t, err)

	clock := newFakeClock(time.Date(2025, 6, 2, 10, 0, 0, 0, testLoc))
	sched := scheduler.New(clock)
	sender := newFakeSender()

	shifts := NewShiftService(store, sched, sender, nil, clock, testLoc,
		testAdmin, 5*time.Minute, testNames)
	intake := NewIntakeService(store, sched, sender, clock, testLoc, pricing.DefaultTable(),
		testChannels, testNames, 5*time.Minute, 3*time.Minute)

	return &fixture{store: store, clock: clock, sched: sched, sender: sender, shifts: shifts, intake: intake}
}

func TestShiftService_OpenIsOnlyEffectiveFromClosed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	d, err := f.shifts.Open(ctx, testDriver)
	require.NoError(t, err)
	assert.True(t, d.OnShift)
	assert.False(t, d.OffLine)
	assert.False(t, d.ReadyForReport)
	assert.Equal(t, model.ModeSummary, d.Mode)

	_, err = f.shifts.Open(ctx, testDriver)
	assert.ErrorIs(t, err, ErrShiftAlreadyOpen)
}

func TestShiftService_OpenPreservesMode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.shifts.SetMode(ctx, testDriver, model.ModeDetailed))
	d, err := f.shifts.Open(ctx, testDriver)
	require.NoError(t, err)
	assert.Equal(t, model.ModeDetailed, d.Mode)
}

func TestShiftService_CloseRequiresOpenShift(t *testing.T) {
	f := newFixture(t)
	assert.ErrorIs(t, f.shifts.Close(context.Background(), testDriver), ErrShiftNotOpen)
}

func TestShiftService_ReportGates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.shifts.Open(ctx, testDriver)
	require.NoError(t, err)

	_, err = f.shifts.Report(ctx, testDriver, "Иван")
	assert.ErrorIs(t, err, ErrShiftStillOpen)

	require.NoError(t, f.shifts.Close(ctx, testDriver))

	// Delay not elapsed yet.
	_, err = f.shifts.Report(ctx, testDriver, "Иван")
	assert.ErrorIs(t, err, ErrReportNotReady)

	f.clock.Advance(5 * time.Minute)
	f.sched.RunDue(ctx)

	// Still on line.
	_, err = f.shifts.Report(ctx, testDriver, "Иван")
	assert.ErrorIs(t, err, ErrStillOnLine)

	require.NoError(t, f.shifts.GoOffline(ctx, testDriver))

	text, err := f.shifts.Report(ctx, testDriver, "Иван")
	require.NoError(t, err)
	assert.Contains(t, text, "Иван (id:1001)")
	assert.Contains(t, text, "Количество: 0")

	// The admin chat got a copy.
	adminCopies := f.sender.sentTo(testAdmin)
	require.Len(t, adminCopies, 1)
	assert.Contains(t, adminCopies[0], "[Отчёт водителя]")
}

func TestShiftService_ReportIsNotRepeatable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.shifts.Open(ctx, testDriver)
	require.NoError(t, err)
	require.NoError(t, f.shifts.Close(ctx, testDriver))
	f.clock.Advance(5 * time.Minute)
	f.sched.RunDue(ctx)
	require.NoError(t, f.shifts.GoOffline(ctx, testDriver))

	_, err = f.shifts.Report(ctx, testDriver, "Иван")
	require.NoError(t, err)

	// Readiness was consumed by the first successful report.
	_, err = f.shifts.Report(ctx, testDriver, "Иван")
	assert.ErrorIs(t, err, ErrReportNotReady)
}

func TestShiftService_ReopenClearsReadiness(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.shifts.Open(ctx, testDriver)
	require.NoError(t, err)
	require.NoError(t, f.shifts.Close(ctx, testDriver))
	f.clock.Advance(5 * time.Minute)
	f.sched.RunDue(ctx)

	_, err = f.shifts.Open(ctx, testDriver)
	require.NoError(t, err)

	d, err := f.store.GetDriver(ctx, testDriver)
	require.NoError(t, err)
	assert.False(t, d.ReadyForReport, "readiness may only hold while the shift is closed")
}

func TestShiftService_ReadyTimerSkipsReopenedShift(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.shifts.Open(ctx, testDriver)
	require.NoError(t, err)
	require.NoError(t, f.shifts.Close(ctx, testDriver))

	// Reopen before the ready timer fires.
	_, err = f.shifts.Open(ctx, testDriver)
	require.NoError(t, err)

	f.clock.Advance(5 * time.Minute)
	f.sched.RunDue(ctx)

	d, err := f.store.GetDriver(ctx, testDriver)
	require.NoError(t, err)
	assert.False(t, d.ReadyForReport)
}
