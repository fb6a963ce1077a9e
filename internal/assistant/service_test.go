package assistant

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"factotum/internal/domain"
)

type captureBus struct {
	mu       sync.Mutex
	inbound  chan domain.InboundMessage
	outbound []domain.OutboundMessage
	sent     chan struct{}
}

func newCaptureBus() *captureBus {
	return &captureBus{
		inbound: make(chan domain.InboundMessage, 16),
		sent:    make(chan struct{}, 16),
	}
}

func (b *captureBus) Publish(msg domain.InboundMessage)                          { b.inbound <- msg }
func (b *captureBus) Subscribe() <-chan domain.InboundMessage                    { return b.inbound }
func (b *captureBus) OnOutbound(channel string, fn func(domain.OutboundMessage)) {}
func (b *captureBus) Close()                                                     { close(b.inbound) }

func (b *captureBus) SendOutbound(msg domain.OutboundMessage) {
	b.mu.Lock()
	b.outbound = append(b.outbound, msg)
	b.mu.Unlock()
	b.sent <- struct{}{}
}

func (b *captureBus) waitForReply(t *testing.T) domain.OutboundMessage {
	t.Helper()
	select {
	case <-b.sent:
	case <-time.After(2 * time.Second):
		t.Fatal("no outbound message")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.outbound[len(b.outbound)-1]
}

func runService(t *testing.T, a *Assistant, bus *captureBus) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	svc := NewService(a, bus, discardLogger(), 2)
	go svc.Run(ctx)
	return cancel
}

func TestServiceRepliesOnOriginatingChannel(t *testing.T) {
	oracle := &scriptedOracle{script: []func(domain.ChatRequest) (*domain.ChatResponse, error){
		textReply("hello back"),
	}}
	bus := newCaptureBus()
	cancel := runService(t, newTestAssistant(t, oracle), bus)
	defer cancel()

	bus.Publish(domain.InboundMessage{Channel: "telegram", ChatID: "7", Content: "hello"})

	out := bus.waitForReply(t)
	if out.Channel != "telegram" || out.ChatID != "7" {
		t.Errorf("reply routed to %s/%s", out.Channel, out.ChatID)
	}
	if out.Content != "hello back" {
		t.Errorf("reply = %q", out.Content)
	}
}

func TestServiceClearCommand(t *testing.T) {
	oracle := &scriptedOracle{script: []func(domain.ChatRequest) (*domain.ChatResponse, error){
		textReply("ok"),
	}}
	a := newTestAssistant(t, oracle)
	bus := newCaptureBus()
	cancel := runService(t, a, bus)
	defer cancel()

	bus.Publish(domain.InboundMessage{Channel: "cli", ChatID: "local", Content: "remember this"})
	bus.waitForReply(t)

	bus.Publish(domain.InboundMessage{Channel: "cli", ChatID: "local", Content: " /clear "})
	out := bus.waitForReply(t)
	if out.Content != "Conversation cleared." {
		t.Errorf("clear reply = %q", out.Content)
	}
	// The /clear command never reaches the oracle.
	if oracle.calls != 1 {
		t.Errorf("oracle called %d times, want 1", oracle.calls)
	}

	sess := a.sessions.get(context.Background(), "cli:local")
	sess.mu.Lock()
	n := len(sess.entries)
	sess.mu.Unlock()
	if n != 1 {
		t.Errorf("session has %d entries after clear, want 1", n)
	}
}

func TestServiceOracleDownFallback(t *testing.T) {
	oracle := &scriptedOracle{script: []func(domain.ChatRequest) (*domain.ChatResponse, error){
		oracleError(errors.New("boom")),
	}}
	bus := newCaptureBus()
	cancel := runService(t, newTestAssistant(t, oracle), bus)
	defer cancel()

	bus.Publish(domain.InboundMessage{Channel: "cli", ChatID: "local", Content: "hi"})
	out := bus.waitForReply(t)
	if !strings.Contains(out.Content, "try again") {
		t.Errorf("fallback reply = %q", out.Content)
	}
	if strings.Contains(out.Content, "boom") {
		t.Error("fallback reply leaks the underlying error")
	}
}

func TestSessionKey(t *testing.T) {
	if got := SessionKey("slack", "C123"); got != "slack:C123" {
		t.Errorf("SessionKey = %q", got)
	}
}
