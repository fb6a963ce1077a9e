// Package bus carries messages between transport channels and the assistant
// service inside one process.
package bus

import (
	"log/slog"
	"sync"
	"time"

	"factotum/internal/domain"
)

const publishTimeout = 10 * time.Second

// Bus is a Go-channel message bus. Inbound messages fan into a single
// buffered channel consumed by the assistant service; outbound messages are
// routed to the handler registered for their channel name.
type Bus struct {
	inbound  chan domain.InboundMessage
	handlers map[string]func(domain.OutboundMessage)
	mu       sync.RWMutex
	closed   bool
	logger   *slog.Logger
}

func New(bufferSize int, logger *slog.Logger) *Bus {
	if bufferSize <= 0 {
		bufferSize = 100
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		inbound:  make(chan domain.InboundMessage, bufferSize),
		handlers: make(map[string]func(domain.OutboundMessage)),
		logger:   logger,
	}
}

// Publish queues an inbound message. When the buffer is full it waits up to
// publishTimeout before dropping, so a slow assistant backpressures the
// transports instead of silently losing messages.
func (b *Bus) Publish(msg domain.InboundMessage) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		b.logger.Warn("publish to closed bus", "channel", msg.Channel)
		return
	}

	select {
	case b.inbound <- msg:
		return
	default:
	}

	b.logger.Warn("inbound bus full, waiting", "channel", msg.Channel, "sender", msg.SenderID)
	timer := time.NewTimer(publishTimeout)
	defer timer.Stop()
	select {
	case b.inbound <- msg:
	case <-timer.C:
		b.logger.Error("message dropped, bus full", "channel", msg.Channel, "sender", msg.SenderID)
	}
}

func (b *Bus) Subscribe() <-chan domain.InboundMessage {
	return b.inbound
}

// SendOutbound routes a reply to the channel it belongs to. A message for a
// channel with no registered handler is dropped with a warning; that happens
// when a reminder fires for a transport that is not running.
func (b *Bus) SendOutbound(msg domain.OutboundMessage) {
	b.mu.RLock()
	handler, ok := b.handlers[msg.Channel]
	b.mu.RUnlock()

	if !ok {
		b.logger.Warn("no handler for outbound channel", "channel", msg.Channel)
		return
	}
	handler(msg)
}

func (b *Bus) OnOutbound(channelName string, handler func(domain.OutboundMessage)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[channelName] = handler
}

func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.closed {
		b.closed = true
		close(b.inbound)
	}
}
