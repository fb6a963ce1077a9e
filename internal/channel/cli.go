package channel

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"factotum/internal/domain"
)

// CLI is the interactive terminal transport.
type CLI struct {
	bus    domain.MessageBus
	logger *slog.Logger
	in     io.Reader
	out    io.Writer
	done   chan struct{} // signals a reply arrived for the pending prompt
}

type CLIConfig struct {
	Logger *slog.Logger
	In     io.Reader
	Out    io.Writer
}

func NewCLI(cfg CLIConfig) *CLI {
	if cfg.In == nil {
		cfg.In = os.Stdin
	}
	if cfg.Out == nil {
		cfg.Out = os.Stdout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &CLI{
		logger: cfg.Logger,
		in:     cfg.In,
		out:    cfg.Out,
		done:   make(chan struct{}, 1),
	}
}

func (c *CLI) Name() string { return "cli" }

// Start runs the read/reply loop until EOF, /quit, or context cancellation.
func (c *CLI) Start(ctx context.Context, bus domain.MessageBus) error {
	c.bus = bus

	bus.OnOutbound("cli", func(msg domain.OutboundMessage) {
		fmt.Fprintf(c.out, "\n%s\n\n", msg.Content)
		select {
		case c.done <- struct{}{}:
		default:
		}
	})

	fmt.Fprintln(c.out, "Factotum. Type a message and press Enter; /clear resets the conversation, /quit exits.")

	scanner := bufio.NewScanner(c.in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		fmt.Fprint(c.out, "you> ")
		if !scanner.Scan() {
			return scanner.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "/quit" || line == "/exit" {
			return nil
		}

		c.bus.Publish(domain.InboundMessage{
			Channel:   "cli",
			ChatID:    "local",
			SenderID:  "user",
			Content:   line,
			Timestamp: time.Now(),
		})

		// Block until the assistant replies so the prompt and the answer
		// don't interleave.
		select {
		case <-c.done:
		case <-ctx.Done():
			return nil
		}
	}
}

func (c *CLI) Stop() error { return nil }
