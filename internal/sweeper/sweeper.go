// Package sweeper runs the periodic shift housekeeping scan.
package sweeper

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"driverpay.service/internal/ports"
	"driverpay.service/internal/ports/repository"
	"driverpay.service/internal/scheduler"
)

const msgInactive = "Активности нет длительное время. Пожалуйста, закройте смену и сформируйте отчет!"

// Sweeper scans all drivers on a fixed cadence: long-inactive drivers with an
// open shift get reminders, and any shift still open at the end-of-day hour
// is force-closed and flagged ready for its report.
type Sweeper struct {
	store  repository.Store
	sender ports.ChatSender
	clock  scheduler.Clock
	loc    *time.Location

	adminChatID      int64
	interval         time.Duration
	inactivityWarn   time.Duration
	inactivityRepeat time.Duration
	forceCloseHour   int
}

// New creates a sweeper. A nil clock means the wall clock.
func New(store repository.Store, sender ports.ChatSender, clock scheduler.Clock, loc *time.Location,
	adminChatID int64, interval, inactivityWarn, inactivityRepeat time.Duration, forceCloseHour int) *Sweeper {
	if clock == nil {
		clock = scheduler.SystemClock()
	}
	return &Sweeper{
		store:            store,
		sender:           sender,
		clock:            clock,
		loc:              loc,
		adminChatID:      adminChatID,
		interval:         interval,
		inactivityWarn:   inactivityWarn,
		inactivityRepeat: inactivityRepeat,
		forceCloseHour:   forceCloseHour,
	}
}

// Start runs the sweep loop for the process lifetime.
func (w *Sweeper) Start(ctx context.Context) {
	log.Info().Dur("interval", w.interval).Msg("Sweeper started")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Sweeper shutting down...")
			return
		case <-ticker.C:
			w.Sweep(ctx)
		}
	}
}

// Sweep performs one scan over all drivers. Exposed for tests.
func (w *Sweeper) Sweep(ctx context.Context) {
	now := w.clock.Now().In(w.loc)

	drivers, err := w.store.ListDrivers(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Sweeper failed to list drivers")
		return
	}

	endOfDay := now.Hour() == w.forceCloseHour && now.Minute() == 0

	for _, d := range drivers {
		if !d.OnShift {
			continue
		}

		if d.LastActivityAt != nil {
			idle := now.Sub(*d.LastActivityAt)
			if idle > w.inactivityWarn && !d.ReminderSent {
				if err := w.sender.SendMessage(ctx, d.DriverID, msgInactive); err != nil {
					log.Warn().Err(err).Int64("driver_id", d.DriverID).Msg("Failed to send inactivity reminder")
				} else {
					d.ReminderSent = true
					if err := w.store.PutDriver(ctx, d); err != nil {
						log.Warn().Err(err).Int64("driver_id", d.DriverID).Msg("Failed to persist reminder flag")
					}
				}
			} else if d.ReminderSent && idle > w.inactivityRepeat {
				// Past the second threshold the reminder repeats every sweep.
				if err := w.sender.SendMessage(ctx, d.DriverID, msgInactive); err != nil {
					log.Warn().Err(err).Int64("driver_id", d.DriverID).Msg("Failed to repeat inactivity reminder")
				}
			}
		}

		if endOfDay {
			w.forceClose(ctx, d.DriverID, now)
		}
	}
}

// forceClose ends a shift the driver never closed. It only flags report
// readiness; generating the report stays up to the driver.
func (w *Sweeper) forceClose(ctx context.Context, driverID int64, now time.Time) {
	d, err := w.store.GetDriver(ctx, driverID)
	if err != nil || d == nil || !d.OnShift {
		return
	}
	closed := now
	d.OnShift = false
	d.ShiftClosedAt = &closed
	d.ReadyForReport = true
	if err := w.store.PutDriver(ctx, d); err != nil {
		log.Warn().Err(err).Int64("driver_id", driverID).Msg("Failed to force-close shift")
		return
	}
	log.Info().Int64("driver_id", driverID).Msg("Shift force-closed at end of day")

	notice := fmt.Sprintf("Водитель %d не закрыл смену — бот закрыл автоматически и сформировал отчёт.", driverID)
	if err := w.sender.SendMessage(ctx, w.adminChatID, notice); err != nil {
		log.Warn().Err(err).Msg("Failed to notify admin about force-close")
	}
}
