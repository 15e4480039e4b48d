package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// NotificationMode defines how eagerly a driver is told about committed entries.
type NotificationMode string

const (
	// ModeSummary keeps the bot quiet until the end-of-shift report.
	ModeSummary NotificationMode = "SUMMARY"
	// ModeDetailed pushes a summary message right after each entry commits.
	ModeDetailed NotificationMode = "DETAILED"
)

// DriverState is the per-driver shift record. ReadyForReport may only be true
// while OnShift is false; a report requires OnShift=false, ReadyForReport=true
// and OffLine=true all at once.
type DriverState struct {
	DriverID       int64            `json:"driverId"`
	OnShift        bool             `json:"onShift"`
	ShiftOpenedAt  *time.Time       `json:"shiftOpenedAt,omitempty"`
	ShiftClosedAt  *time.Time       `json:"shiftClosedAt,omitempty"`
	Mode           NotificationMode `json:"mode"`
	OffLine        bool             `json:"offLine"`
	ReadyForReport bool             `json:"readyForReport"`
	LastActivityAt *time.Time       `json:"lastActivityAt,omitempty"`
	ReminderSent   bool             `json:"reminderSent"`
}

// Entry is one accepted delivery notification. Entries are append-only:
// corrections add a new entry, they never mutate or delete an old one.
// Earned and Cash are zero and meaningless until Processed is true.
type Entry struct {
	ID          int64           `json:"id"`
	DriverID    int64           `json:"driverId"`
	ChatID      int64           `json:"chatId"`
	ThreadID    int64           `json:"threadId"`
	Text        string          `json:"text"`
	SubmittedAt time.Time       `json:"submittedAt"`
	Processed   bool            `json:"processed"`
	CommittedAt *time.Time      `json:"committedAt,omitempty"`
	Earned      decimal.Decimal `json:"earned"`
	Cash        decimal.Decimal `json:"cash"`
}

// PendingCorrection tracks a driver whose channel message failed validation and
// who still owes a corrected resubmission. Held in process memory only; a
// restart drops in-flight corrections.
type PendingCorrection struct {
	OriginChatID         int64
	OriginMessageID      int
	PromptMessageID      int
	AwaitingPrivateReply bool
}
