package core

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"driverpay.service/internal/core/model"
	"driverpay.service/internal/core/pricing"
	"driverpay.service/internal/ports"
	"driverpay.service/internal/ports/repository"
	"driverpay.service/internal/scheduler"
)

// User-facing texts produced by the intake flow itself.
const (
	MsgEntryAccepted = "Отметка принята. Данные будут зафиксированы через 5 минут (можно исправить)."
	MsgMissingPlus   = "Ошибка. Отсутствует основной триггер. Пожалуйста, нажмите кнопку «повторная запись отметки» и введите данные корректно"
)

// InboundMessage is what the chat transport hands to the core for each
// message event.
type InboundMessage struct {
	DriverID  int64
	ChatID    int64
	ThreadID  int64
	MessageID int
	Text      string
	SentAt    time.Time
}

// CorrectionOutcome tells the transport what to answer to a private message.
type CorrectionOutcome int

const (
	// CorrectionNone: no correction pending for this driver, ignore.
	CorrectionNone CorrectionOutcome = iota
	// CorrectionRejected: the resubmission still lacks "+", ask again.
	CorrectionRejected
	// CorrectionAccepted: a corrected entry was recorded.
	CorrectionAccepted
)

// IntakeService accepts delivery notifications from allowed channels, runs
// the delayed commit per entry and drives the correction flow for malformed
// submissions.
type IntakeService struct {
	store  repository.Store
	sched  *scheduler.Scheduler
	sender ports.ChatSender
	clock  scheduler.Clock
	loc    *time.Location
	prices *pricing.Table

	allowed   map[int64]int64 // chat id -> required thread id
	chatNames map[int64]string

	commitDelay  time.Duration
	cleanupDelay time.Duration

	// In-flight corrections, keyed by driver. Process memory only: a restart
	// drops them, which matches the original behavior.
	mu          sync.Mutex
	corrections map[int64]*model.PendingCorrection
}

// NewIntakeService wires up the intake flow.
func NewIntakeService(store repository.Store, sched *scheduler.Scheduler, sender ports.ChatSender,
	clock scheduler.Clock, loc *time.Location, prices *pricing.Table,
	allowed map[int64]int64, chatNames map[int64]string,
	commitDelay, cleanupDelay time.Duration) *IntakeService {
	if clock == nil {
		clock = scheduler.SystemClock()
	}
	return &IntakeService{
		store:        store,
		sched:        sched,
		sender:       sender,
		clock:        clock,
		loc:          loc,
		prices:       prices,
		allowed:      allowed,
		chatNames:    chatNames,
		commitDelay:  commitDelay,
		cleanupDelay: cleanupDelay,
		corrections:  make(map[int64]*model.PendingCorrection),
	}
}

func (s *IntakeService) now() time.Time { return s.clock.Now().In(s.loc) }

// HandleChannelMessage processes one message from a group channel. Messages
// outside the allow-list or its required thread are ignored, as are messages
// from drivers without an open shift. A message without "+" starts the
// correction flow instead of creating an entry.
func (s *IntakeService) HandleChannelMessage(ctx context.Context, msg InboundMessage) error {
	thread, ok := s.allowed[msg.ChatID]
	if !ok || thread != msg.ThreadID {
		return nil
	}

	d, err := s.store.GetDriver(ctx, msg.DriverID)
	if err != nil {
		return fmt.Errorf("loading driver %d: %w", msg.DriverID, err)
	}
	if d == nil || !d.OnShift {
		return nil
	}

	if !strings.Contains(msg.Text, "+") {
		promptID, err := s.sender.SendCorrectionPrompt(ctx, msg.ChatID, msg.MessageID, MsgMissingPlus)
		if err != nil {
			log.Ctx(ctx).Warn().Err(err).Int64("chat_id", msg.ChatID).Msg("Failed to send correction prompt")
			return nil
		}
		s.mu.Lock()
		s.corrections[msg.DriverID] = &model.PendingCorrection{
			OriginChatID:    msg.ChatID,
			OriginMessageID: msg.MessageID,
			PromptMessageID: promptID,
		}
		s.mu.Unlock()
		return nil
	}

	entry := &model.Entry{
		DriverID:    msg.DriverID,
		ChatID:      msg.ChatID,
		ThreadID:    msg.ThreadID,
		Text:        msg.Text,
		SubmittedAt: msg.SentAt.In(s.loc),
		Earned:      decimal.Zero,
		Cash:        decimal.Zero,
	}
	id, err := s.store.CreateEntry(ctx, entry)
	if err != nil {
		return fmt.Errorf("creating entry: %w", err)
	}

	// Exactly one deferred commit per entry; there is no way to retract a
	// pending entry, only to add a corrected one.
	s.sched.Schedule(fmt.Sprintf("commit:%d", id), s.commitDelay, func(taskCtx context.Context) {
		s.commitEntry(taskCtx, id)
	})

	if err := s.sender.Reply(ctx, msg.ChatID, msg.MessageID, MsgEntryAccepted); err != nil {
		log.Ctx(ctx).Warn().Err(err).Int64("chat_id", msg.ChatID).Msg("Failed to ack entry")
	}
	log.Ctx(ctx).Info().Int64("entry_id", id).Int64("driver_id", msg.DriverID).Msg("Entry accepted")
	return nil
}

// commitEntry is the deferred action: compute the amounts and finalize the
// entry. An entry or driver that vanished since scheduling aborts silently.
func (s *IntakeService) commitEntry(ctx context.Context, entryID int64) {
	e, err := s.store.GetEntry(ctx, entryID)
	if err != nil || e == nil || e.Processed {
		return
	}

	earned, triggers := s.prices.ParseEarnings(e.Text)
	now := s.now()
	e.Earned = earned
	e.Cash = pricing.ParseCash(e.Text)
	e.Processed = true
	e.CommittedAt = &now
	if err := s.store.UpdateEntry(ctx, e); err != nil {
		log.Warn().Err(err).Int64("entry_id", entryID).Msg("Failed to commit entry")
		return
	}

	d, err := s.store.GetDriver(ctx, e.DriverID)
	if err != nil || d == nil {
		return
	}
	d.LastActivityAt = &now
	if err := s.store.PutDriver(ctx, d); err != nil {
		log.Warn().Err(err).Int64("driver_id", d.DriverID).Msg("Failed to stamp driver activity")
	}

	log.Info().Int64("entry_id", entryID).Str("earned", earned.StringFixed(2)).
		Strs("triggers", triggers).Msg("Entry committed")

	if d.Mode == model.ModeDetailed {
		s.pushSummary(ctx, e, triggers)
	}
}

// pushSummary sends the immediate per-entry summary for DETAILED mode.
// Delivery is best effort.
func (s *IntakeService) pushSummary(ctx context.Context, e *model.Entry, triggers []string) {
	income, cash, err := s.store.DriverTotals(ctx, e.DriverID)
	if err != nil {
		log.Warn().Err(err).Int64("driver_id", e.DriverID).Msg("Failed to compute driver totals")
		return
	}
	balance := cash.Sub(income).Round(2)

	name, ok := s.chatNames[e.ChatID]
	if !ok {
		name = fmt.Sprintf("%d", e.ChatID)
	}
	address := strings.TrimSpace(strings.SplitN(e.Text, "+", 2)[0])

	summary := fmt.Sprintf("+%s BYN • %s BYN\n%s\n%s\n\nАдрес: %s\nТриггеры: %s\n\nДоход за смену: %s BYN\nБаланс за смену: %s BYN",
		e.Earned.StringFixed(2), e.Cash.StringFixed(2),
		name,
		e.SubmittedAt.Format(time.RFC3339),
		address,
		strings.Join(triggers, ", "),
		income.StringFixed(2), balance.StringFixed(2))

	if err := s.sender.SendMessage(ctx, e.DriverID, summary); err != nil {
		log.Warn().Err(err).Int64("driver_id", e.DriverID).Msg("Failed to push commit summary")
	}
}

// HandleRetryCallback reacts to the retry affordance under a rejected
// message. Returns false when nothing is pending for this driver.
func (s *IntakeService) HandleRetryCallback(_ context.Context, driverID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.corrections[driverID]
	if !ok {
		return false
	}
	c.AwaitingPrivateReply = true
	return true
}

// HandlePrivateMessage consumes the driver's private resubmission. A still
// malformed text is rejected with no retry limit. A valid one is recorded as
// an immediately committed entry, bypassing the delayed scheduler, and a
// deferred cleanup removes the three originating messages best effort.
func (s *IntakeService) HandlePrivateMessage(ctx context.Context, msg InboundMessage) (CorrectionOutcome, error) {
	s.mu.Lock()
	c, ok := s.corrections[msg.DriverID]
	if !ok || !c.AwaitingPrivateReply {
		s.mu.Unlock()
		return CorrectionNone, nil
	}
	s.mu.Unlock()

	if !strings.Contains(msg.Text, "+") {
		return CorrectionRejected, nil
	}

	now := s.now()
	earned, triggers := s.prices.ParseEarnings(msg.Text)
	entry := &model.Entry{
		DriverID:    msg.DriverID,
		ChatID:      c.OriginChatID,
		ThreadID:    s.allowed[c.OriginChatID],
		Text:        msg.Text,
		SubmittedAt: now,
		Processed:   true,
		CommittedAt: &now,
		Earned:      earned,
		Cash:        pricing.ParseCash(msg.Text),
	}
	id, err := s.store.CreateEntry(ctx, entry)
	if err != nil {
		return CorrectionNone, fmt.Errorf("creating corrected entry: %w", err)
	}

	originChat, originMsg, promptMsg := c.OriginChatID, c.OriginMessageID, c.PromptMessageID
	privateMsg := msg.MessageID
	driverID := msg.DriverID
	s.sched.Schedule(fmt.Sprintf("cleanup:%d", id), s.cleanupDelay, func(taskCtx context.Context) {
		// Each deletion fails independently; a message already gone is fine.
		if err := s.sender.DeleteMessage(taskCtx, originChat, originMsg); err != nil {
			log.Warn().Err(err).Msg("Failed to delete origin message")
		}
		if err := s.sender.DeleteMessage(taskCtx, originChat, promptMsg); err != nil {
			log.Warn().Err(err).Msg("Failed to delete prompt message")
		}
		if err := s.sender.DeleteMessage(taskCtx, driverID, privateMsg); err != nil {
			log.Warn().Err(err).Msg("Failed to delete private correction message")
		}
	})

	d, err := s.store.GetDriver(ctx, msg.DriverID)
	if err == nil && d != nil && d.Mode == model.ModeDetailed {
		s.pushSummary(ctx, entry, triggers)
	}

	s.mu.Lock()
	delete(s.corrections, msg.DriverID)
	s.mu.Unlock()

	log.Ctx(ctx).Info().Int64("entry_id", id).Int64("driver_id", msg.DriverID).Msg("Corrected entry recorded")
	return CorrectionAccepted, nil
}
