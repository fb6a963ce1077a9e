package domain

import (
	"context"
	"time"
)

// TranscriptStore persists conversations and their user/assistant entries so
// sessions survive restarts. Intermediate tool traffic is not persisted.
type TranscriptStore interface {
	CreateConversation(ctx context.Context, conv Conversation) error
	GetConversation(ctx context.Context, id string) (*Conversation, error)
	DeleteConversation(ctx context.Context, id string) error

	AddMessage(ctx context.Context, convID string, msg MessageRecord) error
	GetMessages(ctx context.Context, convID string, limit int) ([]MessageRecord, error)

	Close() error
}

type Conversation struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type MessageRecord struct {
	ID             int64     `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}

// ReminderStore persists scheduled reminders for the reminders capability.
type ReminderStore interface {
	SaveReminder(ctx context.Context, rem Reminder) error
	ListReminders(ctx context.Context) ([]Reminder, error)
	DeleteReminder(ctx context.Context, id string) error
}

// Reminder is one scheduled delivery. Exactly one of CronExpr and FireAt is
// set: CronExpr for recurring reminders, FireAt for one-shot.
type Reminder struct {
	ID        string     `json:"id"`
	Channel   string     `json:"channel"`
	ChatID    string     `json:"chat_id"`
	Message   string     `json:"message"`
	CronExpr  string     `json:"cron_expr,omitempty"`
	FireAt    *time.Time `json:"fire_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// ContactStore persists the contact book for the contacts capability.
type ContactStore interface {
	SaveContact(ctx context.Context, c Contact) error
	FindContacts(ctx context.Context, query string, limit int) ([]Contact, error)
}

type Contact struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
