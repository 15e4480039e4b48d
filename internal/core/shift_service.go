package core

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"driverpay.service/internal/core/model"
	"driverpay.service/internal/ports"
	"driverpay.service/internal/ports/repository"
	"driverpay.service/internal/scheduler"
)

// ShiftService is the per-driver shift state machine: open, close, mode
// switches, the off-line flag and end-of-shift reporting.
type ShiftService struct {
	store  repository.Store
	sched  *scheduler.Scheduler
	sender ports.ChatSender
	mailer ReportMailer
	clock  scheduler.Clock
	loc    *time.Location

	adminChatID int64
	readyDelay  time.Duration
	chatNames   map[int64]string
}

// NewShiftService wires up the shift state machine. mailer may be nil, in
// which case report copies go to the admin chat only.
func NewShiftService(store repository.Store, sched *scheduler.Scheduler, sender ports.ChatSender,
	mailer ReportMailer, clock scheduler.Clock, loc *time.Location,
	adminChatID int64, readyDelay time.Duration, chatNames map[int64]string) *ShiftService {
	if clock == nil {
		clock = scheduler.SystemClock()
	}
	return &ShiftService{
		store:       store,
		sched:       sched,
		sender:      sender,
		mailer:      mailer,
		clock:       clock,
		loc:         loc,
		adminChatID: adminChatID,
		readyDelay:  readyDelay,
		chatNames:   chatNames,
	}
}

func (s *ShiftService) now() time.Time { return s.clock.Now().In(s.loc) }

// getOrCreate returns the driver record, materializing a fresh one with the
// default notification mode for a driver never seen before.
func (s *ShiftService) getOrCreate(ctx context.Context, driverID int64) (*model.DriverState, error) {
	d, err := s.store.GetDriver(ctx, driverID)
	if err != nil {
		return nil, fmt.Errorf("loading driver %d: %w", driverID, err)
	}
	if d == nil {
		d = &model.DriverState{DriverID: driverID, Mode: model.ModeSummary}
	}
	return d, nil
}

// Open starts a shift. Only effective from the closed state; the notification
// mode survives, the off-line flag and report readiness are reset.
func (s *ShiftService) Open(ctx context.Context, driverID int64) (*model.DriverState, error) {
	d, err := s.getOrCreate(ctx, driverID)
	if err != nil {
		return nil, err
	}
	if d.OnShift {
		return nil, ErrShiftAlreadyOpen
	}
	now := s.now()
	d.OnShift = true
	d.ShiftOpenedAt = &now
	d.ShiftClosedAt = nil
	d.OffLine = false
	d.ReadyForReport = false
	d.ReminderSent = false
	d.LastActivityAt = &now
	if err := s.store.PutDriver(ctx, d); err != nil {
		return nil, fmt.Errorf("saving driver %d: %w", driverID, err)
	}
	log.Ctx(ctx).Info().Int64("driver_id", driverID).Msg("Shift opened")
	return d, nil
}

// SetMode switches the notification mode. Valid in any state, idempotent.
func (s *ShiftService) SetMode(ctx context.Context, driverID int64, mode model.NotificationMode) error {
	d, err := s.getOrCreate(ctx, driverID)
	if err != nil {
		return err
	}
	d.Mode = mode
	return s.store.PutDriver(ctx, d)
}

// GoOffline sets the off-line flag. It does not open or close anything; it is
// one of the three gates on /report.
func (s *ShiftService) GoOffline(ctx context.Context, driverID int64) error {
	d, err := s.getOrCreate(ctx, driverID)
	if err != nil {
		return err
	}
	d.OffLine = true
	return s.store.PutDriver(ctx, d)
}

// Close ends the shift and schedules the one-shot timer that makes the report
// available after the fixed delay.
func (s *ShiftService) Close(ctx context.Context, driverID int64) error {
	d, err := s.getOrCreate(ctx, driverID)
	if err != nil {
		return err
	}
	if !d.OnShift {
		return ErrShiftNotOpen
	}
	now := s.now()
	d.OnShift = false
	d.ShiftClosedAt = &now
	if err := s.store.PutDriver(ctx, d); err != nil {
		return fmt.Errorf("saving driver %d: %w", driverID, err)
	}

	s.sched.Schedule(fmt.Sprintf("ready:%d", driverID), s.readyDelay, func(taskCtx context.Context) {
		s.markReady(taskCtx, driverID)
	})
	log.Ctx(ctx).Info().Int64("driver_id", driverID).Msg("Shift closed")
	return nil
}

// markReady is the deferred half of Close. A driver deleted or reopened in
// the meantime aborts silently: readiness may only be set on a closed shift.
func (s *ShiftService) markReady(ctx context.Context, driverID int64) {
	d, err := s.store.GetDriver(ctx, driverID)
	if err != nil || d == nil || d.OnShift {
		return
	}
	d.ReadyForReport = true
	if err := s.store.PutDriver(ctx, d); err != nil {
		log.Warn().Err(err).Int64("driver_id", driverID).Msg("Failed to flag report readiness")
	}
}

// Report builds the end-of-shift report. Three gates, each with its own
// refusal: the shift must be closed, the post-close delay elapsed, and the
// driver off line. A successful report resets readiness, so a second call is
// refused until another open/close cycle completes.
func (s *ShiftService) Report(ctx context.Context, driverID int64, driverName string) (string, error) {
	d, err := s.store.GetDriver(ctx, driverID)
	if err != nil {
		return "", fmt.Errorf("loading driver %d: %w", driverID, err)
	}
	if d == nil {
		return "", ErrReportNotReady
	}
	if d.OnShift {
		return "", ErrShiftStillOpen
	}
	if !d.ReadyForReport {
		return "", ErrReportNotReady
	}
	if !d.OffLine {
		return "", ErrStillOnLine
	}

	var entries []*model.Entry
	if d.ShiftOpenedAt != nil && d.ShiftClosedAt != nil {
		entries, err = s.store.EntriesInRange(ctx, driverID, *d.ShiftOpenedAt, *d.ShiftClosedAt)
		if err != nil {
			return "", fmt.Errorf("loading shift entries: %w", err)
		}
	}

	text := s.buildReport(driverID, driverName, entries)

	// Copies to the administrator are best effort: the driver's own copy and
	// the state reset must not depend on them.
	if err := s.sender.SendMessage(ctx, s.adminChatID, "[Отчёт водителя] "+text); err != nil {
		log.Ctx(ctx).Warn().Err(err).Int64("driver_id", driverID).Msg("Failed to copy report to admin chat")
	}
	if s.mailer != nil {
		if err := s.mailer.SendReportCopy(ctx, driverName, text); err != nil {
			log.Ctx(ctx).Warn().Err(err).Int64("driver_id", driverID).Msg("Failed to e-mail report copy")
		}
	}

	d.ReadyForReport = false
	if err := s.store.PutDriver(ctx, d); err != nil {
		return "", fmt.Errorf("saving driver %d: %w", driverID, err)
	}
	return text, nil
}
