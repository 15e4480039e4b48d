package telegram

import (
	"context"
	"strconv"
	"time"

	"github.com/sony/gobreaker"
	tele "gopkg.in/telebot.v3"

	"driverpay.service/internal/ports"
)

// Sender implements ports.ChatSender on top of the Telegram Bot API. Every
// call goes through a circuit breaker so a flapping Telegram backend does not
// get hammered by the scheduler and the sweeper.
type Sender struct {
	bot          *tele.Bot
	cb           *gobreaker.CircuitBreaker
	promptMarkup *tele.ReplyMarkup
}

// NewSender wraps the bot with a circuit breaker. Trip when the failure rate
// passes 50% over at least 10 calls.
func NewSender(bot *tele.Bot, promptMarkup *tele.ReplyMarkup) *Sender {
	settings := gobreaker.Settings{
		Name:        "Telegram-API",
		MaxRequests: 5,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 10 && failureRatio >= 0.5
		},
	}

	return &Sender{
		bot:          bot,
		cb:           gobreaker.NewCircuitBreaker(settings),
		promptMarkup: promptMarkup,
	}
}

var _ ports.ChatSender = (*Sender)(nil)

func (s *Sender) SendMessage(_ context.Context, chatID int64, text string) error {
	_, err := s.cb.Execute(func() (interface{}, error) {
		return s.bot.Send(tele.ChatID(chatID), text)
	})
	return err
}

func (s *Sender) Reply(_ context.Context, chatID int64, replyToID int, text string) error {
	_, err := s.cb.Execute(func() (interface{}, error) {
		return s.bot.Send(tele.ChatID(chatID), text, &tele.SendOptions{
			ReplyTo: &tele.Message{ID: replyToID, Chat: &tele.Chat{ID: chatID}},
		})
	})
	return err
}

func (s *Sender) SendCorrectionPrompt(_ context.Context, chatID int64, replyToID int, text string) (int, error) {
	sent, err := s.cb.Execute(func() (interface{}, error) {
		return s.bot.Send(tele.ChatID(chatID), text, &tele.SendOptions{
			ReplyTo:     &tele.Message{ID: replyToID, Chat: &tele.Chat{ID: chatID}},
			ReplyMarkup: s.promptMarkup,
		})
	})
	if err != nil {
		return 0, err
	}
	return sent.(*tele.Message).ID, nil
}

func (s *Sender) DeleteMessage(_ context.Context, chatID int64, messageID int) error {
	_, err := s.cb.Execute(func() (interface{}, error) {
		return nil, s.bot.Delete(tele.StoredMessage{
			MessageID: strconv.Itoa(messageID),
			ChatID:    chatID,
		})
	})
	return err
}
