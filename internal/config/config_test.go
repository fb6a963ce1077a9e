package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
oracle:
  chain: [openai]
  providers:
    openai:
      api_key: sk-test
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Assistant.Name != "Factotum" {
		t.Errorf("default name = %q", cfg.Assistant.Name)
	}
	if cfg.Assistant.MaxIterations != 10 {
		t.Errorf("default max_iterations = %d", cfg.Assistant.MaxIterations)
	}
	if cfg.Oracle.Providers["openai"].APIKey != "sk-test" {
		t.Errorf("api key not overlaid: %q", cfg.Oracle.Providers["openai"].APIKey)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("default log level = %q", cfg.Logging.Level)
	}
}

func TestLoadExpandsEnvVars(t *testing.T) {
	t.Setenv("FACTOTUM_TEST_KEY", "sk-from-env")
	path := writeConfig(t, `
oracle:
  chain: [openai]
  providers:
    openai:
      api_key: ${FACTOTUM_TEST_KEY}
      model: ${FACTOTUM_TEST_MODEL:-gpt-4o}
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	pc := cfg.Oracle.Providers["openai"]
	if pc.APIKey != "sk-from-env" {
		t.Errorf("api_key = %q, want sk-from-env", pc.APIKey)
	}
	if pc.Model != "gpt-4o" {
		t.Errorf("model = %q, want default gpt-4o", pc.Model)
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("FACTOTUM_SET", "value")
	os.Unsetenv("FACTOTUM_UNSET")

	tests := []struct {
		in, want string
	}{
		{"${FACTOTUM_SET}", "value"},
		{"${FACTOTUM_UNSET:-fallback}", "fallback"},
		{"${FACTOTUM_SET:-fallback}", "value"},
		{"${FACTOTUM_UNSET}", "${FACTOTUM_UNSET}"},
		{"plain text", "plain text"},
		{"pre-${FACTOTUM_SET}-post", "pre-value-post"},
	}
	for _, tt := range tests {
		if got := ExpandEnvVars(tt.in); got != tt.want {
			t.Errorf("ExpandEnvVars(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestValidateRejectsUnknownChainProvider(t *testing.T) {
	path := writeConfig(t, `
oracle:
  chain: [openai, nonexistent]
  providers:
    openai:
      api_key: sk-test
`)
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "unknown provider: nonexistent") {
		t.Errorf("error = %v", err)
	}
}

func TestValidateRequiresChain(t *testing.T) {
	cfg := Defaults()
	cfg.Oracle.Chain = nil
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for empty oracle chain")
	}
}

func TestValidateEnabledChannelNeedsToken(t *testing.T) {
	cfg := Defaults()
	cfg.Channels.Telegram.Enabled = true
	err := Validate(cfg)
	if err == nil || !strings.Contains(err.Error(), "telegram.token") {
		t.Errorf("expected telegram token error, got %v", err)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sub", "config.yaml")

	cfg := Defaults()
	cfg.Assistant.Name = "Custom"
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load after Save: %v", err)
	}
	if loaded.Assistant.Name != "Custom" {
		t.Errorf("round-tripped name = %q", loaded.Assistant.Name)
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home dir")
	}
	if got := ExpandPath("~/x"); got != filepath.Join(home, "x") {
		t.Errorf("ExpandPath(~/x) = %q", got)
	}
	if got := ExpandPath("/abs/path"); got != "/abs/path" {
		t.Errorf("ExpandPath(/abs/path) = %q", got)
	}
}
