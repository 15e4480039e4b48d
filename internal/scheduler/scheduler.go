// Package scheduler runs deferred one-shot tasks keyed by a caller-chosen id.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Clock abstracts time.Now so tests can drive the scheduler deterministically.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock returns the wall clock.
func SystemClock() Clock { return systemClock{} }

// Task is the deferred action. It runs to completion once due; there is no
// cancel API and no mid-flight timeout override.
type Task func(ctx context.Context)

type pending struct {
	due time.Time
	fn  Task
}

// Scheduler holds pending tasks and fires them from a polling loop once their
// delay elapses. At most one task may be live per key: scheduling a key that
// is already pending is a no-op.
type Scheduler struct {
	clock Clock

	mu    sync.Mutex
	tasks map[string]pending
}

// New creates a scheduler. A nil clock means the wall clock.
func New(clock Clock) *Scheduler {
	if clock == nil {
		clock = systemClock{}
	}
	return &Scheduler{
		clock: clock,
		tasks: make(map[string]pending),
	}
}

// Schedule registers fn to run after delay. Returns false when a task with the
// same key is already pending; the existing task is kept untouched.
func (s *Scheduler) Schedule(key string, delay time.Duration, fn Task) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.tasks[key]; exists {
		return false
	}
	s.tasks[key] = pending{due: s.clock.Now().Add(delay), fn: fn}
	return true
}

// Pending reports how many tasks are waiting to fire.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// Start kicks off the polling loop. It runs until the context is canceled.
func (s *Scheduler) Start(ctx context.Context) {
	log.Info().Msg("Task scheduler started")
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Task scheduler shutting down...")
			return
		case <-ticker.C:
			s.RunDue(ctx)
		}
	}
}

// RunDue pops every due task and runs it to completion, one after another.
// Exposed so tests can advance a fake clock and fire tasks synchronously.
func (s *Scheduler) RunDue(ctx context.Context) {
	now := s.clock.Now()

	s.mu.Lock()
	var due []Task
	for key, p := range s.tasks {
		if !p.due.After(now) {
			due = append(due, p.fn)
			delete(s.tasks, key)
		}
	}
	s.mu.Unlock()

	for _, fn := range due {
		fn(ctx)
	}
}
