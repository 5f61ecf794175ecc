// Package llm hides the model providers behind one completion call.
package llm

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/ahricool/raise/internal/config"
)

// Gateway completes one prompt. image may be nil; providers that cannot read
// images ignore it.
type Gateway interface {
	Name() string
	Complete(ctx context.Context, system, content string, image []byte) (string, error)
}

// FromConfig builds the configured gateways in preference order. Providers
// without an API key, or that fail to initialize, are left out.
func FromConfig(ctx context.Context, cfg config.LLMConfig, logger *zap.Logger) []Gateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	out := make([]Gateway, 0, len(cfg.Providers))
	for _, name := range cfg.Providers {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "gemini":
			if strings.TrimSpace(cfg.Gemini.APIKey) == "" {
				continue
			}
			g, err := NewGemini(ctx, cfg.Gemini)
			if err != nil {
				logger.Warn("gemini init failed", zap.Error(err))
				continue
			}
			out = append(out, g)
		case "openai":
			if strings.TrimSpace(cfg.OpenAI.APIKey) == "" {
				continue
			}
			out = append(out, NewOpenAI(cfg.OpenAI))
		default:
			logger.Warn("unknown llm provider", zap.String("provider", name))
		}
	}
	return out
}
