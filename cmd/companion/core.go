package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"

	"github.com/aiox-platform/companion/internal/api"
	"github.com/aiox-platform/companion/internal/artifacts"
	"github.com/aiox-platform/companion/internal/checkpoint"
	"github.com/aiox-platform/companion/internal/classifier"
	"github.com/aiox-platform/companion/internal/config"
	"github.com/aiox-platform/companion/internal/database"
	"github.com/aiox-platform/companion/internal/generation"
	"github.com/aiox-platform/companion/internal/image"
	"github.com/aiox-platform/companion/internal/intake"
	"github.com/aiox-platform/companion/internal/llm"
	"github.com/aiox-platform/companion/internal/memory"
	"github.com/aiox-platform/companion/internal/prompts"
	iredis "github.com/aiox-platform/companion/internal/redis"
	"github.com/aiox-platform/companion/internal/schedule"
	"github.com/aiox-platform/companion/internal/speech"
	"github.com/aiox-platform/companion/internal/summarizer"
	"github.com/aiox-platform/companion/internal/workflow"
)

const defaultOpenAIEmbeddingModel = "text-embedding-3-small"

// core is the workflow and its collaborators, shared by serve and chat.
type core struct {
	pool        *pgxpool.Pool
	redis       *goredis.Client
	checkpoints checkpoint.Store
	artifacts   *artifacts.Store
	schedule    *schedule.Provider
	memories    *memory.Service
	intake      *intake.Intake
	engine      *workflow.Engine
	closers     []func()
}

func buildCore(ctx context.Context, cfg *config.Config) (_ *core, err error) {
	c := &core{}
	defer func() {
		if err != nil {
			c.Close()
		}
	}()

	// PostgreSQL
	if cfg.Memory.Backend == "postgres" {
		if c.pool, err = database.NewPostgresPool(ctx, cfg.DB); err != nil {
			return nil, fmt.Errorf("connecting to postgres: %w", err)
		}
		c.closers = append(c.closers, c.pool.Close)
	}

	// Redis
	if cfg.Checkpoint.Backend == "redis" || cfg.RateLimit.Enabled {
		if c.redis, err = iredis.NewClient(ctx, cfg.Redis); err != nil {
			return nil, fmt.Errorf("connecting to redis: %w", err)
		}
		c.closers = append(c.closers, func() { _ = c.redis.Close() })
	}

	// Checkpoints
	switch cfg.Checkpoint.Backend {
	case "redis":
		c.checkpoints = checkpoint.NewRedisStore(c.redis, cfg.Checkpoint.TTL)
	case "sqlite":
		store, err := checkpoint.OpenSQLite(cfg.Checkpoint.SQLitePath)
		if err != nil {
			return nil, err
		}
		c.closers = append(c.closers, func() { _ = store.Close() })
		c.checkpoints = store
	default:
		c.checkpoints = checkpoint.NewMemoryStore()
	}

	// Language models
	mainLLM := llm.NewOpenAIClient(llm.OpenAIConfig{
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		Structured:  llm.StructuredMode(cfg.LLM.Structured),
	})
	smallLLM := llm.NewOpenAIClient(llm.OpenAIConfig{
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.SmallModel,
		Temperature: cfg.LLM.Temperature,
		Structured:  llm.StructuredMode(cfg.LLM.Structured),
	})

	// Long-term memory
	embedder, err := newEmbedder(ctx, cfg)
	if err != nil {
		return nil, err
	}
	var repo memory.Repository = memory.NewInMemoryRepository()
	if c.pool != nil {
		repo = memory.NewPostgresRepository(c.pool)
	}
	c.memories = memory.NewService(repo, embedder, memory.NewLLMAnalyzer(smallLLM), memory.Config{
		Enabled:             cfg.Memory.Enabled && embedder != nil,
		MaxResults:          cfg.Memory.MaxResults,
		SimilarityThreshold: cfg.Memory.SimilarityThreshold,
		DuplicateThreshold:  cfg.Memory.DuplicateThreshold,
	})

	// Schedule
	table, err := schedule.Load(cfg.Schedule.Path)
	if err != nil {
		return nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	c.schedule = schedule.NewProvider(table, loc)

	// Media
	if c.artifacts, err = artifacts.NewStore(cfg.Artifacts.Dir, cfg.Artifacts.BaseURL); err != nil {
		return nil, err
	}
	var images image.Generator
	if cfg.Gemini.APIKey != "" {
		t2i, err := image.NewTextToImage(ctx, cfg.Gemini.APIKey, cfg.Gemini.ImageModel, cfg.Gemini.AspectRatio)
		if err != nil {
			return nil, fmt.Errorf("creating image generator: %w", err)
		}
		images = t2i
	}
	synth := speech.NewTextToSpeech(cfg.Speech.APIKey, cfg.Speech.BaseURL, cfg.Speech.TTSModel, cfg.Speech.TTSVoice)
	transcriber := speech.NewSpeechToText(cfg.Speech.APIKey, cfg.Speech.BaseURL, cfg.Speech.STTModel)
	vision := image.NewImageToText(cfg.LLM.APIKey, cfg.LLM.BaseURL, cfg.LLM.VisionModel)

	// Workflow
	persona := prompts.Persona{Name: cfg.Persona.Name, Occupation: cfg.Persona.Occupation, City: cfg.Persona.City}
	dispatcher := generation.NewDispatcher(mainLLM, images, synth, c.artifacts, generation.Config{
		Persona:       persona,
		ImageHistory:  cfg.Workflow.ImageHistory,
		EnhancePrompt: cfg.Workflow.EnhancePrompt,
	})
	c.engine = workflow.NewEngine(
		c.checkpoints,
		classifier.New(smallLLM, cfg.Workflow.ClassifierWindow),
		workflow.NewInjector(c.schedule, c.memories, cfg.Memory.MaxResults),
		dispatcher,
		summarizer.New(mainLLM, persona.Name),
		c.memories,
		workflow.Config{
			SummaryTrigger:   cfg.Workflow.SummaryTrigger,
			KeepAfterSummary: cfg.Workflow.KeepAfterSummary,
			MaxQueuedTurns:   cfg.Workflow.MaxQueuedTurns,
		},
	)
	c.intake = intake.New(vision, transcriber)

	slog.Info("workflow ready",
		"checkpoints", cfg.Checkpoint.Backend,
		"memory", cfg.Memory.Enabled && embedder != nil,
		"memory_backend", cfg.Memory.Backend,
		"images", images != nil,
	)
	return c, nil
}

func newEmbedder(ctx context.Context, cfg *config.Config) (llm.Embedder, error) {
	if !cfg.Memory.Enabled {
		return nil, nil
	}
	switch cfg.Memory.Embedder {
	case "gemini":
		key := cfg.Memory.EmbeddingAPIKey
		if key == "" {
			key = cfg.Gemini.APIKey
		}
		if key == "" {
			slog.Warn("no Gemini key for embeddings; long-term memory is disabled")
			return nil, nil
		}
		e, err := llm.NewGeminiEmbedder(ctx, key, cfg.Memory.EmbeddingModel, cfg.Memory.Dimensions)
		if err != nil {
			return nil, fmt.Errorf("creating embedder: %w", err)
		}
		return e, nil
	default:
		key, baseURL, model := cfg.Memory.EmbeddingAPIKey, cfg.Memory.EmbeddingBaseURL, cfg.Memory.EmbeddingModel
		if key == "" {
			key = cfg.LLM.APIKey
		}
		if model == "" {
			model = defaultOpenAIEmbeddingModel
		}
		return llm.NewOpenAIEmbedder(key, baseURL, model, cfg.Memory.Dimensions), nil
	}
}

// readinessChecks lists the dependencies this process actually uses.
func (c *core) readinessChecks() []api.ReadinessCheck {
	checks := []api.ReadinessCheck{{Name: "checkpoints", Pinger: c.checkpoints}}
	if c.pool != nil {
		checks = append(checks, api.ReadinessCheck{Name: "database", Pinger: database.Pinger{Pool: c.pool}})
	}
	if c.redis != nil {
		checks = append(checks, api.ReadinessCheck{Name: "redis", Pinger: iredis.Pinger{Client: c.redis}})
	}
	return checks
}

// Close releases connections in reverse order of creation.
func (c *core) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
}
