package oracle

import (
	"context"
	"testing"

	"factotum/internal/domain"
)

func TestBuildAnthropicRequestMapping(t *testing.T) {
	req := domain.ChatRequest{
		Messages: []domain.Message{
			{Role: "system", Content: "identity"},
			{Role: "system", Content: "session hint"},
			{Role: "user", Content: "weather?"},
			{Role: "assistant", Content: "checking", ToolCalls: []domain.ToolCall{
				{ID: "t1", Name: "weather_current", Arguments: map[string]any{"city": "Hanoi"}},
			}},
			{Role: "tool", Content: "28C sunny", ToolCallID: "t1", ToolName: "weather_current"},
		},
		Tools: []domain.ToolDefinition{{
			Name:        "weather_current",
			Description: "current weather",
			Parameters:  map[string]any{"type": "object"},
		}},
	}

	body := buildAnthropicRequest(req, "claude-sonnet-4-5", 1024)

	// Both system entries merge into the top-level system field.
	if body.System != "identity\n\nsession hint" {
		t.Errorf("system = %q", body.System)
	}
	if body.Model != "claude-sonnet-4-5" || body.MaxTokens != 1024 {
		t.Errorf("model/max_tokens = %s/%d", body.Model, body.MaxTokens)
	}

	if len(body.Messages) != 3 {
		t.Fatalf("messages = %d, want 3 (user, assistant, tool-result)", len(body.Messages))
	}
	if body.Messages[0].Role != "user" || body.Messages[0].Content != "weather?" {
		t.Errorf("first message = %+v", body.Messages[0])
	}

	blocks, ok := body.Messages[1].Content.([]anthropicContent)
	if !ok {
		t.Fatalf("assistant content is %T, want blocks", body.Messages[1].Content)
	}
	if len(blocks) != 2 || blocks[0].Type != "text" || blocks[1].Type != "tool_use" {
		t.Errorf("assistant blocks = %+v", blocks)
	}
	if blocks[1].ID != "t1" || blocks[1].Name != "weather_current" {
		t.Errorf("tool_use block = %+v", blocks[1])
	}

	resultBlocks, ok := body.Messages[2].Content.([]anthropicContent)
	if !ok || body.Messages[2].Role != "user" {
		t.Fatalf("tool result message = %+v", body.Messages[2])
	}
	if resultBlocks[0].Type != "tool_result" || resultBlocks[0].ToolUseID != "t1" {
		t.Errorf("tool_result block = %+v", resultBlocks[0])
	}
	if resultBlocks[0].Content != "28C sunny" {
		t.Errorf("tool_result content = %q", resultBlocks[0].Content)
	}

	if len(body.Tools) != 1 || body.Tools[0].InputSchema == nil {
		t.Errorf("tools = %+v", body.Tools)
	}
}

func TestAnthropicHealthyRequiresKey(t *testing.T) {
	a := NewAnthropic(AnthropicConfig{})
	if err := a.Healthy(context.Background()); err == nil {
		t.Fatal("expected error without API key")
	}
	a = NewAnthropic(AnthropicConfig{APIKey: "sk-ant"})
	if err := a.Healthy(context.Background()); err != nil {
		t.Fatalf("Healthy with key: %v", err)
	}
}
