package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/rfp-intake/internal/ai/gemini"
	"github.com/spigell/rfp-intake/internal/ai/openai"
)

const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// Config selects and tunes the model backend.
type Config struct {
	Provider   string
	APIKey     string
	Model      string
	BaseURL    string
	MaxRetries int
	Timeout    time.Duration
	RPS        float64
	Burst      int
}

// NewGenerator builds the configured backend. An empty provider or an empty
// API key means the model paths are disabled and (nil, nil) is returned.
func NewGenerator(ctx context.Context, cfg Config, logger *zap.Logger) (Generator, error) {
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if provider == "" || strings.TrimSpace(cfg.APIKey) == "" {
		return nil, nil
	}

	var (
		gen Generator
		err error
	)

	switch provider {
	case ProviderGemini:
		gen, err = gemini.NewGenerator(ctx, gemini.Options{
			APIKey:     cfg.APIKey,
			Model:      cfg.Model,
			MaxRetries: cfg.MaxRetries,
			Timeout:    cfg.Timeout,
		}, logger)
	case ProviderOpenAI:
		gen, err = openai.NewGenerator(openai.Options{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			Timeout: cfg.Timeout,
		})
	default:
		return nil, fmt.Errorf("unknown ai provider: %s (supported: %s, %s)", cfg.Provider, ProviderGemini, ProviderOpenAI)
	}
	if err != nil {
		return nil, err
	}

	return WithRateLimit(gen, cfg.RPS, cfg.Burst), nil
}
