package ports

import "context"

// ChatSender defines the output port to the chat transport. Every call is a
// best-effort side effect: callers either swallow the error or log it, data
// correctness never depends on delivery.
type ChatSender interface {
	// SendMessage posts text to a chat (a driver's private chat or a group).
	SendMessage(ctx context.Context, chatID int64, text string) error
	// Reply posts text as a reply to an existing message.
	Reply(ctx context.Context, chatID int64, replyToID int, text string) error
	// SendCorrectionPrompt replies with the retry affordance attached and
	// returns the id of the prompt message so it can be deleted later.
	SendCorrectionPrompt(ctx context.Context, chatID int64, replyToID int, text string) (int, error)
	// DeleteMessage removes a message. Failures (already gone, no rights)
	// are ordinary errors for the caller to swallow.
	DeleteMessage(ctx context.Context, chatID int64, messageID int) error
}
