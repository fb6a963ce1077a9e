package assistant

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"factotum/internal/domain"
)

const defaultConcurrency = 3

const oracleDownReply = "Sorry, I can't reach my reasoning service right now. Please try again in a moment."

// Service connects the assistant to the message bus: it consumes inbound
// messages with bounded concurrency and publishes replies back to the
// originating channel.
type Service struct {
	assistant   *Assistant
	bus         domain.MessageBus
	logger      *slog.Logger
	concurrency int
}

func NewService(a *Assistant, bus domain.MessageBus, logger *slog.Logger, concurrency int) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	return &Service{assistant: a, bus: bus, logger: logger, concurrency: concurrency}
}

// Run blocks consuming inbound messages until the context is cancelled or the
// bus closes.
func (s *Service) Run(ctx context.Context) {
	s.logger.Info("assistant service started", "concurrency", s.concurrency)

	sem := make(chan struct{}, s.concurrency)
	inbound := s.bus.Subscribe()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("assistant service stopping")
			return
		case msg, ok := <-inbound:
			if !ok {
				s.logger.Info("inbound channel closed, assistant service stopping")
				return
			}
			sem <- struct{}{}
			go func(m domain.InboundMessage) {
				defer func() { <-sem }()
				s.handle(ctx, m)
			}(msg)
		}
	}
}

func (s *Service) handle(ctx context.Context, msg domain.InboundMessage) {
	start := time.Now()
	key := SessionKey(msg.Channel, msg.ChatID)

	s.logger.Info("handling message",
		"session", key, "sender", msg.SenderID, "content_len", len(msg.Content))

	reply := s.reply(ctx, key, msg.Content)

	s.bus.SendOutbound(domain.OutboundMessage{
		Channel: msg.Channel,
		ChatID:  msg.ChatID,
		Content: reply,
		Format:  "markdown",
	})
	s.logger.Info("handled message", "session", key, "duration", time.Since(start))
}

func (s *Service) reply(ctx context.Context, key, content string) string {
	if strings.TrimSpace(content) == "/clear" {
		if err := s.assistant.ClearSession(ctx, key); err != nil {
			s.logger.Error("failed to clear session", "session", key, "error", err)
			return "Sorry, I couldn't clear the conversation."
		}
		return "Conversation cleared."
	}

	reply, err := s.assistant.Respond(ctx, key, content)
	if err != nil {
		s.logger.Error("turn failed", "session", key, "error", err)
		return oracleDownReply
	}
	return reply
}

// SessionKey derives the conversation identity from where a message arrived.
func SessionKey(channel, chatID string) string {
	return fmt.Sprintf("%s:%s", channel, chatID)
}
