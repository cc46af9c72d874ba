// Package app wires configuration, the tool registry, the decision
// engine, and Genkit into a runnable application.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/firebase/genkit/go/plugins/ollama"

	"github.com/parleyhq/parley/internal/config"
	"github.com/parleyhq/parley/internal/engine"
	"github.com/parleyhq/parley/internal/log"
	"github.com/parleyhq/parley/internal/tools"
	"github.com/parleyhq/parley/internal/turn"
)

// ErrMissingAPIKey indicates the Google AI provider is selected but no
// API key is available in the environment.
var ErrMissingAPIKey = errors.New("GEMINI_API_KEY not set")

// App holds the assembled application components.
type App struct {
	Config       *config.Config
	Logger       log.Logger
	Genkit       *genkit.Genkit
	Registry     *tools.Registry
	Engine       *engine.Engine
	Orchestrator *turn.Orchestrator
	Flow         *turn.Flow
	PromptFlow   *turn.PromptFlow
}

// Setup assembles the application from configuration. Components are
// built bottom-up: registry, generator, engine, orchestrator, flow.
func Setup(ctx context.Context, cfg *config.Config) (*App, error) {
	logger := log.New(log.Config{
		Level: log.ParseLevel(cfg.LogLevel),
		JSON:  cfg.LogJSON,
	})

	g, err := provideGenkit(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	registry := tools.NewRegistry(logger)
	if err := tools.RegisterBuiltins(registry); err != nil {
		return nil, fmt.Errorf("registering builtin tools: %w", err)
	}

	gen, err := engine.NewGenkitGenerator(g, registry, cfg.FullModelName(), logger)
	if err != nil {
		return nil, fmt.Errorf("creating generator: %w", err)
	}

	eng, err := engine.New(engine.Config{
		Generator: gen,
		Registry:  registry,
		Logger:    logger,
		MaxTurns:  cfg.MaxTurns,
	})
	if err != nil {
		return nil, fmt.Errorf("creating engine: %w", err)
	}

	orchestrator := turn.New(eng, logger)
	flow := turn.NewFlow(g, orchestrator)
	promptFlow := turn.NewPromptFlow(g, orchestrator)

	logger.Info("application ready",
		"provider", cfg.Provider,
		"model", cfg.FullModelName(),
		"tools", len(registry.Catalog()),
	)

	return &App{
		Config:       cfg,
		Logger:       logger,
		Genkit:       g,
		Registry:     registry,
		Engine:       eng,
		Orchestrator: orchestrator,
		Flow:         flow,
		PromptFlow:   promptFlow,
	}, nil
}

// provideGenkit initializes Genkit with the configured AI provider.
func provideGenkit(ctx context.Context, cfg *config.Config, logger log.Logger) (*genkit.Genkit, error) {
	switch cfg.Provider {
	case config.ProviderOllama:
		ollamaPlugin := &ollama.Ollama{ServerAddress: cfg.OllamaHost}
		g := genkit.Init(ctx, genkit.WithPlugins(ollamaPlugin))
		if g == nil {
			return nil, errors.New("initializing genkit with ollama provider")
		}
		// Ollama requires explicit model registration (no auto-discovery)
		ollamaPlugin.DefineModel(g, ollama.ModelDefinition{
			Name: cfg.ModelName,
			Type: "chat",
		}, nil)
		logger.Info("initialized genkit with ollama provider",
			"model", cfg.ModelName, "host", cfg.OllamaHost)
		return g, nil

	default: // googleai
		if os.Getenv("GEMINI_API_KEY") == "" {
			return nil, ErrMissingAPIKey
		}
		g := genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
		if g == nil {
			return nil, errors.New("initializing genkit with googleai provider")
		}
		logger.Info("initialized genkit with googleai provider", "model", cfg.ModelName)
		return g, nil
	}
}
