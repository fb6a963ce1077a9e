package assistant

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"factotum/internal/domain"
)

// session holds one conversation's persistent entries. entries[0] is always
// the system entry; the rest are alternating user/assistant pairs. Tool-call
// traffic from intermediate iterations never lands here.
//
// The mutex is held for the whole turn, so turns within one session are
// strictly serialized while distinct sessions proceed in parallel.
type session struct {
	key      string
	maxTurns int

	mu      sync.Mutex
	entries []domain.Message
}

func newSession(key, systemPrompt string, maxTurns int) *session {
	return &session{
		key:      key,
		maxTurns: maxTurns,
		entries:  []domain.Message{{Role: "system", Content: systemPrompt}},
	}
}

// history returns a copy of the persistent entries; callers mutate the copy
// freely while building the working transcript for a turn.
func (s *session) history() []domain.Message {
	out := make([]domain.Message, len(s.entries))
	copy(out, s.entries)
	return out
}

func (s *session) append(role, content string) {
	s.entries = append(s.entries, domain.Message{Role: role, Content: content})
}

// evict drops the oldest user/assistant pairs until the session holds at most
// maxTurns turns. The system entry is never evicted.
func (s *session) evict() {
	if s.maxTurns <= 0 {
		return
	}
	for len(s.entries)-1 > s.maxTurns*2 {
		s.entries = append(s.entries[:1], s.entries[3:]...)
	}
}

// clear resets the session to just its system entry.
func (s *session) clear() {
	s.entries = s.entries[:1]
}

// sessionManager creates sessions on demand and rehydrates them from the
// transcript store so conversations survive restarts.
type sessionManager struct {
	store        domain.TranscriptStore
	systemPrompt string
	maxTurns     int
	logger       *slog.Logger

	mu       sync.Mutex
	sessions map[string]*session
}

func newSessionManager(store domain.TranscriptStore, systemPrompt string, maxTurns int, logger *slog.Logger) *sessionManager {
	return &sessionManager{
		store:        store,
		systemPrompt: systemPrompt,
		maxTurns:     maxTurns,
		logger:       logger,
		sessions:     make(map[string]*session),
	}
}

// get returns the live session for key, loading persisted history on first
// access. A store failure degrades to an empty session rather than blocking
// the conversation.
func (m *sessionManager) get(ctx context.Context, key string) *session {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[key]; ok {
		return s
	}

	s := newSession(key, m.systemPrompt, m.maxTurns)
	if m.store != nil {
		if err := m.load(ctx, s); err != nil {
			m.logger.Warn("failed to load session history, starting fresh", "session", key, "error", err)
		}
	}
	m.sessions[key] = s
	return s
}

func (m *sessionManager) load(ctx context.Context, s *session) error {
	conv, err := m.store.GetConversation(ctx, s.key)
	if err != nil {
		return fmt.Errorf("get conversation: %w", err)
	}
	if conv == nil {
		if err := m.store.CreateConversation(ctx, domain.Conversation{
			ID:        s.key,
			CreatedAt: time.Now(),
			UpdatedAt: time.Now(),
		}); err != nil {
			return fmt.Errorf("create conversation: %w", err)
		}
		return nil
	}

	records, err := m.store.GetMessages(ctx, s.key, m.maxTurns*2)
	if err != nil {
		return fmt.Errorf("get messages: %w", err)
	}
	for _, rec := range records {
		s.append(rec.Role, rec.Content)
	}
	s.evict()
	return nil
}

// persist appends one entry to the durable transcript. Failures are logged,
// not fatal: the in-memory session stays authoritative for this process.
func (m *sessionManager) persist(ctx context.Context, key, role, content string) {
	if m.store == nil {
		return
	}
	err := m.store.AddMessage(ctx, key, domain.MessageRecord{
		ConversationID: key,
		Role:           role,
		Content:        content,
		CreatedAt:      time.Now(),
	})
	if err != nil {
		m.logger.Warn("failed to persist message", "session", key, "role", role, "error", err)
	}
}

// clear wipes a session's entries in memory and in the store.
func (m *sessionManager) clear(ctx context.Context, key string) error {
	m.mu.Lock()
	s, ok := m.sessions[key]
	m.mu.Unlock()

	if ok {
		s.mu.Lock()
		s.clear()
		s.mu.Unlock()
	}
	if m.store != nil {
		if err := m.store.DeleteConversation(ctx, key); err != nil {
			return fmt.Errorf("delete conversation: %w", err)
		}
		if err := m.store.CreateConversation(ctx, domain.Conversation{
			ID:        key,
			CreatedAt: time.Now(),
			UpdatedAt: time.Now(),
		}); err != nil {
			return fmt.Errorf("recreate conversation: %w", err)
		}
	}
	return nil
}
