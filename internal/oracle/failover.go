package oracle

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"factotum/internal/domain"
)

// Failover tries a chain of oracles in order, falling through to the next
// when one fails. The chain itself satisfies domain.Oracle.
type Failover struct {
	chain  []domain.Oracle
	logger *slog.Logger
}

func NewFailover(chain []domain.Oracle, logger *slog.Logger) *Failover {
	if logger == nil {
		logger = slog.Default()
	}
	return &Failover{chain: chain, logger: logger}
}

func (f *Failover) Name() string {
	names := make([]string, len(f.chain))
	for i, o := range f.chain {
		names[i] = o.Name()
	}
	return "failover(" + strings.Join(names, ",") + ")"
}

// Healthy reports success if any oracle in the chain is healthy.
func (f *Failover) Healthy(ctx context.Context) error {
	var lastErr error
	for _, o := range f.chain {
		if err := o.Healthy(ctx); err == nil {
			return nil
		} else {
			lastErr = err
		}
	}
	if lastErr == nil {
		return fmt.Errorf("empty failover chain")
	}
	return fmt.Errorf("no healthy oracle in chain: %w", lastErr)
}

// Chat returns the first successful response in chain order.
func (f *Failover) Chat(ctx context.Context, req domain.ChatRequest) (*domain.ChatResponse, error) {
	if len(f.chain) == 0 {
		return nil, fmt.Errorf("empty failover chain")
	}
	var lastErr error
	for i, o := range f.chain {
		resp, err := o.Chat(ctx, req)
		if err == nil {
			if i > 0 {
				f.logger.Info("failover: used fallback oracle", "oracle", o.Name(), "position", i+1)
			}
			return resp, nil
		}
		lastErr = err
		f.logger.Warn("failover: oracle failed, trying next",
			"oracle", o.Name(), "position", i+1, "error", err)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	return nil, fmt.Errorf("all oracles in failover chain failed: %w", lastErr)
}
