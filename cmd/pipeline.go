package cmd

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/spigell/rfp-intake/internal/ai"
	"github.com/spigell/rfp-intake/internal/intake"
	"github.com/spigell/rfp-intake/internal/logger"
	"github.com/spigell/rfp-intake/internal/proposal"
	"github.com/spigell/rfp-intake/internal/store"
)

func loadConfig(log *zap.Logger) *Config {
	config, err := getConfig()
	if err != nil {
		log.Fatal("getting a config", zap.Error(err))
	}
	if config == nil {
		log.Fatal("config is required")
	}

	warnings, err := config.Validate()
	if err != nil {
		log.Fatal("invalid config", zap.Error(err))
	}
	for _, w := range warnings {
		log.Warn(w)
	}

	return config
}

func openStore(ctx context.Context, config *Config) (*store.Store, error) {
	if config.Database.URL == "" {
		return nil, errors.New("database url is not configured (set database.url or DATABASE_URL)")
	}
	return store.Connect(ctx, config.Database.URL)
}

// newPipeline wires the intake service. Without an AI key the model paths stay
// off and every proposal goes through the heuristic parser.
func newPipeline(ctx context.Context, config *Config, st intake.Store, log *zap.Logger) (*intake.Service, error) {
	key, err := config.AIKey()
	if err != nil {
		return nil, err
	}

	aiLogger := logger.WithCommonFields(log, config.AI.Provider, config.AI.Model)
	generator, err := ai.NewGenerator(ctx, config.aiConfig(key), aiLogger)
	if err != nil {
		return nil, fmt.Errorf("creating ai generator: %w", err)
	}
	if generator != nil {
		log.Info("ai enabled",
			zap.String(logger.FieldProvider, config.AI.Provider),
			zap.String(logger.FieldModel, generator.Model()),
		)
	}

	extractor, comparator := proposal.Build(generator, aiLogger, proposal.Options{
		MaxLogLength: config.AI.MaxLogLength,
		CacheTTL:     config.AI.CacheTTL,
	})

	return intake.NewService(st, extractor, comparator, log, intake.Options{
		MinBodyLength: config.Webhook.MinBodyLength,
	}), nil
}
