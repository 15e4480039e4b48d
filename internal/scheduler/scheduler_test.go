package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func TestScheduler_FiresAfterDelay(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	s := New(clock)

	fired := 0
	s.Schedule("commit:1", 5*time.Minute, func(context.Context) { fired++ })

	s.RunDue(context.Background())
	assert.Equal(t, 0, fired, "must not fire before the delay elapses")

	clock.Advance(4 * time.Minute)
	s.RunDue(context.Background())
	assert.Equal(t, 0, fired)

	clock.Advance(time.Minute)
	s.RunDue(context.Background())
	assert.Equal(t, 1, fired)
	assert.Equal(t, 0, s.Pending())
}

func TestScheduler_AtMostOneTaskPerKey(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	s := New(clock)

	fired := 0
	assert.True(t, s.Schedule("commit:7", time.Minute, func(context.Context) { fired++ }))
	assert.False(t, s.Schedule("commit:7", time.Minute, func(context.Context) { fired += 100 }),
		"second schedule for a live key must be rejected")
	assert.Equal(t, 1, s.Pending())

	clock.Advance(2 * time.Minute)
	s.RunDue(context.Background())
	assert.Equal(t, 1, fired)

	// Once fired, the key is free again.
	assert.True(t, s.Schedule("commit:7", time.Minute, func(context.Context) { fired++ }))
}

func TestScheduler_IndependentKeys(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	s := New(clock)

	var order []string
	s.Schedule("cleanup:1", time.Minute, func(context.Context) { order = append(order, "cleanup") })
	s.Schedule("commit:2", 2*time.Minute, func(context.Context) { order = append(order, "commit") })

	clock.Advance(time.Minute)
	s.RunDue(context.Background())
	assert.Equal(t, []string{"cleanup"}, order)

	clock.Advance(time.Minute)
	s.RunDue(context.Background())
	assert.Equal(t, []string{"cleanup", "commit"}, order)
}
