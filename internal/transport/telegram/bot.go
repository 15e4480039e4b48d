// Package telegram is the chat transport adapter: it turns Telegram updates
// into core calls and core results back into Russian-language replies.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"driverpay.service/internal/core"
	"driverpay.service/internal/core/model"
)

const helpText = "Привет! Я фиксирую отметки по доставкам.\n\nДоступные команды:\n" +
	"/open - открыть смену\n/close - закрыть смену\n/max - подробный режим (уведомления сразу)\n" +
	"/min - итоговый режим (уведомления в конце)\n/report - сформировать отчет (после /close, через 5 мин)\n" +
	"/off - выйти с линии (нужно перед /report)"

// Bot is the Telegram dispatch loop. It owns no shift or entry state: every
// decision is delegated to the core services.
type Bot struct {
	bot      *tele.Bot
	sender   *Sender
	btnRetry tele.Btn
	shifts   *core.ShiftService
	intake   *core.IntakeService
}

// New builds the bot and its circuit-broken sender. The core services are
// constructed against the sender first and then attached with Bind.
func New(token string) (*Bot, error) {
	b, err := tele.NewBot(tele.Settings{
		Token:  token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	})
	if err != nil {
		return nil, fmt.Errorf("creating telegram bot: %w", err)
	}

	markup := &tele.ReplyMarkup{}
	btnRetry := markup.Data("Повторная запись отметки", "repeat")
	markup.Inline(markup.Row(btnRetry))

	return &Bot{bot: b, sender: NewSender(b, markup), btnRetry: btnRetry}, nil
}

// Sender exposes the outbound side for wiring into the core services.
func (t *Bot) Sender() *Sender { return t.sender }

// Bind attaches the core services and registers all update routes.
func (t *Bot) Bind(shifts *core.ShiftService, intake *core.IntakeService) {
	t.shifts = shifts
	t.intake = intake
	t.route(t.btnRetry)
}

// Start runs the long-poll loop until the context is canceled.
func (t *Bot) Start(ctx context.Context) {
	go func() {
		<-ctx.Done()
		t.bot.Stop()
	}()
	log.Info().Msg("Telegram dispatch loop started")
	t.bot.Start()
}

func (t *Bot) route(btnRetry tele.Btn) {
	t.bot.Handle("/start", t.handleStart)
	t.bot.Handle("/open", t.handleOpen)
	t.bot.Handle("/close", t.handleClose)
	t.bot.Handle("/max", t.handleMax)
	t.bot.Handle("/min", t.handleMin)
	t.bot.Handle("/off", t.handleOff)
	t.bot.Handle("/report", t.handleReport)
	t.bot.Handle(&btnRetry, t.handleRetryCallback)
	t.bot.Handle(tele.OnText, t.handleText)
}

func (t *Bot) handleStart(c tele.Context) error {
	menu := &tele.ReplyMarkup{}
	menu.Inline(
		menu.Row(menu.Data("/open - открыть смену", "noop")),
		menu.Row(menu.Data("/close - закрыть смену", "noop")),
		menu.Row(menu.Data("/report - сформировать отчет", "noop")),
	)
	return c.Reply(helpText, menu)
}

func (t *Bot) handleOpen(c tele.Context) error {
	d, err := t.shifts.Open(context.Background(), c.Sender().ID)
	if errors.Is(err, core.ErrShiftAlreadyOpen) {
		return c.Reply("Смена уже открыта.")
	}
	if err != nil {
		log.Error().Err(err).Int64("driver_id", c.Sender().ID).Msg("Open failed")
		return c.Reply("Не получилось открыть смену, попробуйте ещё раз.")
	}
	return c.Reply(fmt.Sprintf("Вы на линии с %s! Режим: %s (по умолчанию /min)",
		d.ShiftOpenedAt.Format("15:04:05"), modeLabel(d.Mode)))
}

func (t *Bot) handleClose(c tele.Context) error {
	err := t.shifts.Close(context.Background(), c.Sender().ID)
	if errors.Is(err, core.ErrShiftNotOpen) {
		return c.Reply("Смена не была открыта.")
	}
	if err != nil {
		log.Error().Err(err).Int64("driver_id", c.Sender().ID).Msg("Close failed")
		return c.Reply("Не получилось закрыть смену, попробуйте ещё раз.")
	}
	return c.Reply("Смена закрыта. Через 5 минут можно формировать /report.")
}

func (t *Bot) handleMax(c tele.Context) error {
	if err := t.shifts.SetMode(context.Background(), c.Sender().ID, model.ModeDetailed); err != nil {
		log.Error().Err(err).Int64("driver_id", c.Sender().ID).Msg("SetMode failed")
	}
	return c.Reply("Режим оповещений: подробный (/max). После каждой отметки бот будет присылать начисления.")
}

func (t *Bot) handleMin(c tele.Context) error {
	if err := t.shifts.SetMode(context.Background(), c.Sender().ID, model.ModeSummary); err != nil {
		log.Error().Err(err).Int64("driver_id", c.Sender().ID).Msg("SetMode failed")
	}
	return c.Reply("Режим оповещений: в конце дня (/min). Бот будет накапливать отметки.")
}

func (t *Bot) handleOff(c tele.Context) error {
	if err := t.shifts.GoOffline(context.Background(), c.Sender().ID); err != nil {
		log.Error().Err(err).Int64("driver_id", c.Sender().ID).Msg("GoOffline failed")
	}
	return c.Reply("Вы ушли с линии. Теперь можно формировать отчет после /close.")
}

func (t *Bot) handleReport(c tele.Context) error {
	text, err := t.shifts.Report(context.Background(), c.Sender().ID, senderName(c.Sender()))
	switch {
	case errors.Is(err, core.ErrShiftStillOpen):
		return c.Reply("Сначала закрой смену командой /close.")
	case errors.Is(err, core.ErrReportNotReady):
		return c.Reply("Отчёт будет доступен через 5 минут после /close.")
	case errors.Is(err, core.ErrStillOnLine):
		return c.Reply("Перед формированием отчёта войдите с линии командой /off.")
	case err != nil:
		log.Error().Err(err).Int64("driver_id", c.Sender().ID).Msg("Report failed")
		return c.Reply("Не получилось сформировать отчёт, попробуйте ещё раз.")
	}
	return c.Reply(text)
}

// handleText receives every non-command message: group-channel delivery
// notifications and private correction resubmissions.
func (t *Bot) handleText(c tele.Context) error {
	msg := core.InboundMessage{
		DriverID:  c.Sender().ID,
		ChatID:    c.Chat().ID,
		ThreadID:  int64(c.Message().ThreadID),
		MessageID: c.Message().ID,
		Text:      c.Text(),
		SentAt:    c.Message().Time(),
	}

	if c.Chat().Type == tele.ChatPrivate {
		outcome, err := t.intake.HandlePrivateMessage(context.Background(), msg)
		if err != nil {
			log.Error().Err(err).Int64("driver_id", msg.DriverID).Msg("Private correction failed")
			return nil
		}
		switch outcome {
		case core.CorrectionRejected:
			return c.Reply("Ошибка. В корректной отметке отсутствует '+'. Попробуйте ещё раз.")
		case core.CorrectionAccepted:
			return c.Reply("Отметка принята! Старые пометки записи будут удалены в автоматическом режиме через некоторое время")
		}
		return nil
	}

	if err := t.intake.HandleChannelMessage(context.Background(), msg); err != nil {
		log.Error().Err(err).Int64("chat_id", msg.ChatID).Msg("Channel message failed")
	}
	return nil
}

func (t *Bot) handleRetryCallback(c tele.Context) error {
	if !t.intake.HandleRetryCallback(context.Background(), c.Sender().ID) {
		return c.Respond(&tele.CallbackResponse{Text: "Нет ожидающих исправлений."})
	}
	if err := c.Send("Правильная отметка:"); err != nil {
		log.Warn().Err(err).Msg("Failed to ask for the corrected entry")
	}
	return c.Respond()
}

func modeLabel(mode model.NotificationMode) string {
	if mode == model.ModeDetailed {
		return "max"
	}
	return "min"
}

func senderName(u *tele.User) string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		name = u.Username
	}
	return name
}
