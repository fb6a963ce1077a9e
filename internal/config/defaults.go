package config

// Defaults returns a config with sensible defaults; Load overlays the file on
// top of it.
func Defaults() *Config {
	return &Config{
		Assistant: AssistantConfig{
			Name:          "Factotum",
			MaxIterations: 10,
			MaxTurns:      25,
			Concurrency:   3,
			MaxTokens:     4096,
			Temperature:   0.7,
			TurnTimeout:   "2m",
		},
		Oracle: OracleConfig{
			Chain: []string{"openai"},
			Providers: map[string]ProviderConfig{
				"openai": {
					APIKey: "${OPENAI_API_KEY}",
					Model:  "gpt-4o-mini",
				},
			},
		},
		Workspace: "~/.factotum/workspace",
		Database:  "~/.factotum/factotum.db",
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}
