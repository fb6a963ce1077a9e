// Package memory is the SQLite persistence layer: conversation transcripts,
// scheduled reminders, and the contact book live in one database file.
package memory

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"factotum/internal/domain"

	_ "modernc.org/sqlite"
)

// Store implements domain.TranscriptStore, domain.ReminderStore, and
// domain.ContactStore on a single SQLite database.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewStore(dbPath string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create database directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("cannot open database: %w", err)
	}

	// SQLite writes are serialized anyway; a single connection avoids
	// SQLITE_BUSY under concurrent sessions.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &Store{db: db, logger: logger}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database migration failed: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS conversations (
		id          TEXT PRIMARY KEY,
		title       TEXT,
		created_at  DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at  DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS messages (
		id              INTEGER PRIMARY KEY AUTOINCREMENT,
		conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
		role            TEXT NOT NULL,
		content         TEXT,
		created_at      DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_messages_conv ON messages(conversation_id, id);

	CREATE TABLE IF NOT EXISTS reminders (
		id          TEXT PRIMARY KEY,
		channel     TEXT NOT NULL,
		chat_id     TEXT NOT NULL,
		message     TEXT NOT NULL,
		cron_expr   TEXT,
		fire_at     DATETIME,
		created_at  DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS contacts (
		id          TEXT PRIMARY KEY,
		name        TEXT NOT NULL,
		email       TEXT,
		phone       TEXT,
		notes       TEXT,
		created_at  DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_contacts_name ON contacts(name);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *Store) CreateConversation(ctx context.Context, conv domain.Conversation) error {
	now := time.Now()
	if conv.CreatedAt.IsZero() {
		conv.CreatedAt = now
	}
	if conv.UpdatedAt.IsZero() {
		conv.UpdatedAt = now
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO conversations (id, title, created_at, updated_at)
		 VALUES (?, ?, ?, ?)`,
		conv.ID, conv.Title, conv.CreatedAt, conv.UpdatedAt,
	)
	return err
}

func (s *Store) GetConversation(ctx context.Context, id string) (*domain.Conversation, error) {
	var conv domain.Conversation
	var title sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT id, title, created_at, updated_at FROM conversations WHERE id = ?`, id,
	).Scan(&conv.ID, &title, &conv.CreatedAt, &conv.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	conv.Title = title.String
	return &conv, nil
}

func (s *Store) DeleteConversation(ctx context.Context, id string) error {
	// CASCADE is not always enforced without the pragma; delete children
	// explicitly.
	if _, err := s.db.ExecContext(ctx, `DELETE FROM messages WHERE conversation_id = ?`, id); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM conversations WHERE id = ?`, id)
	return err
}

func (s *Store) AddMessage(ctx context.Context, convID string, msg domain.MessageRecord) error {
	now := time.Now()
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = now
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (conversation_id, role, content, created_at)
		 VALUES (?, ?, ?, ?)`,
		convID, msg.Role, msg.Content, msg.CreatedAt,
	)
	if err != nil {
		return err
	}
	_, _ = s.db.ExecContext(ctx, `UPDATE conversations SET updated_at = ? WHERE id = ?`, now, convID)
	return nil
}

// GetMessages returns the last limit messages in chronological order.
func (s *Store) GetMessages(ctx context.Context, convID string, limit int) ([]domain.MessageRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, conversation_id, role, content, created_at
		 FROM messages WHERE conversation_id = ?
		 ORDER BY id DESC LIMIT ?`, convID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []domain.MessageRecord
	for rows.Next() {
		var m domain.MessageRecord
		var content sql.NullString
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &content, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.Content = content.String
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

func (s *Store) SaveReminder(ctx context.Context, rem domain.Reminder) error {
	if rem.CreatedAt.IsZero() {
		rem.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO reminders (id, channel, chat_id, message, cron_expr, fire_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rem.ID, rem.Channel, rem.ChatID, rem.Message, rem.CronExpr, rem.FireAt, rem.CreatedAt,
	)
	return err
}

func (s *Store) ListReminders(ctx context.Context) ([]domain.Reminder, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, channel, chat_id, message, cron_expr, fire_at, created_at
		 FROM reminders ORDER BY created_at`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rems []domain.Reminder
	for rows.Next() {
		var r domain.Reminder
		var cronExpr sql.NullString
		var fireAt sql.NullTime
		if err := rows.Scan(&r.ID, &r.Channel, &r.ChatID, &r.Message, &cronExpr, &fireAt, &r.CreatedAt); err != nil {
			return nil, err
		}
		r.CronExpr = cronExpr.String
		if fireAt.Valid {
			t := fireAt.Time
			r.FireAt = &t
		}
		rems = append(rems, r)
	}
	return rems, rows.Err()
}

func (s *Store) DeleteReminder(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM reminders WHERE id = ?`, id)
	return err
}

func (s *Store) SaveContact(ctx context.Context, c domain.Contact) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO contacts (id, name, email, phone, notes, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		c.ID, c.Name, c.Email, c.Phone, c.Notes, c.CreatedAt,
	)
	return err
}

func (s *Store) FindContacts(ctx context.Context, query string, limit int) ([]domain.Contact, error) {
	if limit <= 0 {
		limit = 10
	}
	pattern := "%" + query + "%"
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, email, phone, notes, created_at
		 FROM contacts
		 WHERE name LIKE ? COLLATE NOCASE
		 ORDER BY name LIMIT ?`, pattern, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var contacts []domain.Contact
	for rows.Next() {
		var c domain.Contact
		var email, phone, notes sql.NullString
		if err := rows.Scan(&c.ID, &c.Name, &email, &phone, &notes, &c.CreatedAt); err != nil {
			return nil, err
		}
		c.Email = email.String
		c.Phone = phone.String
		c.Notes = notes.String
		contacts = append(contacts, c)
	}
	return contacts, rows.Err()
}

func (s *Store) Close() error {
	return s.db.Close()
}
