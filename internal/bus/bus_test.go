package bus

import (
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"factotum/internal/domain"
)

func testBus(buffer int) *Bus {
	return New(buffer, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestPublishSubscribe(t *testing.T) {
	b := testBus(4)
	defer b.Close()

	b.Publish(domain.InboundMessage{Channel: "cli", Content: "hello"})

	select {
	case msg := <-b.Subscribe():
		if msg.Content != "hello" {
			t.Errorf("content = %q", msg.Content)
		}
	case <-time.After(time.Second):
		t.Fatal("message never arrived")
	}
}

func TestOutboundRouting(t *testing.T) {
	b := testBus(4)
	defer b.Close()

	var mu sync.Mutex
	got := map[string]string{}
	b.OnOutbound("telegram", func(m domain.OutboundMessage) {
		mu.Lock()
		got["telegram"] = m.Content
		mu.Unlock()
	})
	b.OnOutbound("slack", func(m domain.OutboundMessage) {
		mu.Lock()
		got["slack"] = m.Content
		mu.Unlock()
	})

	b.SendOutbound(domain.OutboundMessage{Channel: "telegram", Content: "for tg"})
	b.SendOutbound(domain.OutboundMessage{Channel: "slack", Content: "for slack"})
	// No handler: dropped, no panic.
	b.SendOutbound(domain.OutboundMessage{Channel: "discord", Content: "nowhere"})

	mu.Lock()
	defer mu.Unlock()
	if got["telegram"] != "for tg" || got["slack"] != "for slack" {
		t.Errorf("routing = %v", got)
	}
}

func TestCloseStopsDelivery(t *testing.T) {
	b := testBus(4)
	b.Close()
	// Publishing after close must not panic.
	b.Publish(domain.InboundMessage{Channel: "cli", Content: "late"})
	// Double close must not panic either.
	b.Close()

	if _, ok := <-b.Subscribe(); ok {
		t.Error("subscribe channel should be closed")
	}
}

func TestPublishDoesNotBlockWithBufferSpace(t *testing.T) {
	b := testBus(2)
	defer b.Close()

	done := make(chan struct{})
	go func() {
		b.Publish(domain.InboundMessage{Content: "1"})
		b.Publish(domain.InboundMessage{Content: "2"})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked despite buffer space")
	}
}
