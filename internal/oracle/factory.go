package oracle

import (
	"fmt"
	"log/slog"

	"factotum/internal/config"
	"factotum/internal/domain"
)

// Build assembles the oracle from config: one client per chain entry, wrapped
// in a Failover when the chain has more than one.
func Build(cfg config.OracleConfig, logger *slog.Logger) (domain.Oracle, error) {
	if len(cfg.Chain) == 0 {
		return nil, fmt.Errorf("oracle chain is empty")
	}

	chain := make([]domain.Oracle, 0, len(cfg.Chain))
	for _, name := range cfg.Chain {
		pc, ok := cfg.Providers[name]
		if !ok {
			return nil, fmt.Errorf("oracle chain references unknown provider: %s", name)
		}
		o, err := newClient(name, pc, logger)
		if err != nil {
			return nil, err
		}
		chain = append(chain, o)
	}

	if len(chain) == 1 {
		return chain[0], nil
	}
	return NewFailover(chain, logger), nil
}

func newClient(name string, pc config.ProviderConfig, logger *slog.Logger) (domain.Oracle, error) {
	switch name {
	case "openai":
		return NewOpenAI(OpenAIConfig{APIKey: pc.APIKey, APIBase: pc.APIBase, Model: pc.Model, Logger: logger}), nil
	case "anthropic":
		return NewAnthropic(AnthropicConfig{APIKey: pc.APIKey, Model: pc.Model, Logger: logger}), nil
	default:
		// Unknown names with an API base are treated as OpenAI-compatible;
		// most hosted and local model servers speak that dialect.
		if pc.APIBase != "" {
			return NewOpenAI(OpenAIConfig{APIKey: pc.APIKey, APIBase: pc.APIBase, Model: pc.Model, Logger: logger}), nil
		}
		return nil, fmt.Errorf("provider %s: not a known provider and no api_base configured", name)
	}
}
