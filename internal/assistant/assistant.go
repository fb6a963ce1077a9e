// Package assistant is the single conversational entry point: it owns the
// merged tool catalog of every capability agent, drives the oracle's
// tool-call loop, and keeps per-session conversation state.
package assistant

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"factotum/internal/capability"
	"factotum/internal/domain"
	"factotum/internal/tool"
)

const (
	defaultMaxIterations    = 10
	defaultMaxTurns         = 25
	defaultMaxTokens        = 4096
	defaultTemperature      = 0.7
	defaultMaxParallelTools = 5
)

// Config holds the assistant's dependencies and tuning parameters.
type Config struct {
	Name         string
	Instructions string
	Oracle       domain.Oracle
	Agents       []*capability.Agent
	Store        domain.TranscriptStore
	Logger       *slog.Logger

	Model            string
	MaxTokens        int
	Temperature      float64
	MaxIterations    int // oracle round-trips per turn
	MaxTurns         int // user/assistant pairs retained per session
	MaxParallelTools int
	TurnTimeout      time.Duration
}

// Assistant coordinates the capability agents behind one conversation.
type Assistant struct {
	name          string
	oracle        domain.Oracle
	registry      *tool.Registry
	agents        []*capability.Agent
	sessions      *sessionManager
	logger        *slog.Logger
	systemPrompt  string
	model         string
	maxTokens     int
	temperature   float64
	maxIterations int
	turnTimeout   time.Duration
	toolSem       chan struct{}
}

// New wires every agent's tools into one registry. A duplicate tool name
// across agents is a configuration error and fails construction
// deterministically.
func New(cfg Config) (*Assistant, error) {
	if cfg.Oracle == nil {
		return nil, fmt.Errorf("assistant requires an oracle")
	}
	if cfg.Name == "" {
		cfg.Name = "Factotum"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = defaultMaxIterations
	}
	if cfg.MaxTurns <= 0 {
		cfg.MaxTurns = defaultMaxTurns
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = defaultTemperature
	}
	if cfg.MaxParallelTools <= 0 {
		cfg.MaxParallelTools = defaultMaxParallelTools
	}

	registry := tool.NewRegistry(cfg.Logger)
	for _, agent := range cfg.Agents {
		for _, d := range agent.Tools() {
			if err := registry.Register(d); err != nil {
				return nil, fmt.Errorf("agent %s: %w", agent.Name(), err)
			}
		}
	}

	systemPrompt := buildSystemPrompt(cfg.Name, cfg.Instructions, cfg.Agents)

	return &Assistant{
		name:          cfg.Name,
		oracle:        cfg.Oracle,
		registry:      registry,
		agents:        cfg.Agents,
		sessions:      newSessionManager(cfg.Store, systemPrompt, cfg.MaxTurns, cfg.Logger),
		logger:        cfg.Logger,
		systemPrompt:  systemPrompt,
		model:         cfg.Model,
		maxTokens:     cfg.MaxTokens,
		temperature:   cfg.Temperature,
		maxIterations: cfg.MaxIterations,
		turnTimeout:   cfg.TurnTimeout,
		toolSem:       make(chan struct{}, cfg.MaxParallelTools),
	}, nil
}

// Respond runs one full turn for the session: append the user entry, loop the
// oracle over tool calls until it produces text, append and return that text.
// Turns within a session are serialized; distinct sessions run concurrently.
func (a *Assistant) Respond(ctx context.Context, sessionKey, content string) (string, error) {
	sess := a.sessions.get(ctx, sessionKey)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if a.turnTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.turnTimeout)
		defer cancel()
	}

	// The user entry lands before the oracle is consulted; a failed turn
	// still leaves the question on record.
	sess.append("user", content)
	a.sessions.persist(ctx, sessionKey, "user", content)

	reply, err := a.runTurn(ctx, sess, sessionKey)
	if err != nil {
		return "", err
	}

	sess.append("assistant", reply)
	a.sessions.persist(ctx, sessionKey, "assistant", reply)
	sess.evict()
	return reply, nil
}

// runTurn drives the oracle loop over a working transcript. The working copy
// accumulates tool-call traffic; only the final text survives into the
// session.
func (a *Assistant) runTurn(ctx context.Context, sess *session, sessionKey string) (string, error) {
	working := sess.history()

	channel, chatID, found := strings.Cut(sessionKey, ":")
	if found {
		working = append(working, domain.Message{Role: "system", Content: sessionHint(channel, chatID)})
	}

	toolDefs := a.registry.Definitions()

	for iteration := 0; iteration < a.maxIterations; iteration++ {
		a.logger.Debug("assistant iteration",
			"session", sessionKey, "iteration", iteration+1, "messages", len(working))

		resp, err := a.oracle.Chat(ctx, domain.ChatRequest{
			Messages:    working,
			Tools:       toolDefs,
			Model:       a.model,
			MaxTokens:   a.maxTokens,
			Temperature: a.temperature,
		})
		if err != nil {
			a.logger.Error("oracle call failed", "session", sessionKey, "error", err)
			return "", &tool.Error{Kind: domain.KindOracleUnavailable, Message: "oracle call failed", Cause: err}
		}

		if !resp.HasToolCalls() {
			if resp.Content == "" {
				return "Done.", nil
			}
			return resp.Content, nil
		}

		working = append(working, domain.Message{
			Role:      "assistant",
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})
		working = append(working, a.dispatchAll(ctx, resp.ToolCalls)...)
	}

	a.logger.Warn("iteration cap reached", "session", sessionKey, "max", a.maxIterations)
	return "I started working on that but couldn't finish within my step limit. Try breaking the request into smaller pieces.", nil
}

// dispatchAll executes a batch of tool calls with bounded parallelism and
// returns their result messages in the oracle's original call order. Tool
// failures are reported back to the oracle as results, never as turn errors.
func (a *Assistant) dispatchAll(ctx context.Context, calls []domain.ToolCall) []domain.Message {
	results := make([]tool.Result, len(calls))
	var wg sync.WaitGroup

	for i, tc := range calls {
		wg.Add(1)
		go func(idx int, tc domain.ToolCall) {
			defer wg.Done()
			a.toolSem <- struct{}{}
			defer func() { <-a.toolSem }()
			results[idx] = a.registry.Dispatch(ctx, tc.Name, tc.Arguments)
		}(i, tc)
	}
	wg.Wait()

	out := make([]domain.Message, 0, len(calls))
	for i, tc := range calls {
		out = append(out, domain.Message{
			Role:       "tool",
			Content:    results[i].Text(),
			ToolCallID: tc.ID,
			ToolName:   tc.Name,
		})
	}
	return out
}

// ClearSession wipes a session back to its system entry.
func (a *Assistant) ClearSession(ctx context.Context, sessionKey string) error {
	return a.sessions.clear(ctx, sessionKey)
}

// Summaries advertises every composed agent without invoking anything.
func (a *Assistant) Summaries() []capability.Summary {
	out := make([]capability.Summary, 0, len(a.agents))
	for _, agent := range a.agents {
		out = append(out, agent.Summary())
	}
	return out
}

// Profile presents the assistant itself as an agent: its composed identity
// with zero directly-exposed tools.
func (a *Assistant) Profile() *capability.Agent {
	names := make([]string, 0, len(a.agents))
	for _, agent := range a.agents {
		names = append(names, agent.Name())
	}
	desc := "Conversational assistant"
	if len(names) > 0 {
		desc += " composed of: " + strings.Join(names, ", ")
	}
	return capability.New(a.name, desc, a.systemPrompt)
}
