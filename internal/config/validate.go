package config

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"
)

// Validate checks Config for production-critical problems.
// It collects all errors into a single joined error.
func (c *Config) Validate() error {
	var errs []string

	if c.LLM.APIKey == "" {
		errs = append(errs, "LLM_API_KEY is required")
	}
	if !slices.Contains([]string{"json_schema", "json_object"}, c.LLM.Structured) {
		errs = append(errs, fmt.Sprintf("LLM_STRUCTURED must be json_schema or json_object, got %q", c.LLM.Structured))
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		errs = append(errs, fmt.Sprintf("LLM_TEMPERATURE must be 0–2, got %g", c.LLM.Temperature))
	}

	// Port ranges
	for _, p := range []struct {
		name string
		port int
	}{
		{"SERVER_PORT", c.Server.Port},
		{"DB_PORT", c.DB.Port},
		{"REDIS_PORT", c.Redis.Port},
		{"GRPC_PORT", c.GRPC.Port},
		{"XMPP_COMPONENT_PORT", c.XMPP.ComponentPort},
	} {
		if p.port < 1 || p.port > 65535 {
			errs = append(errs, fmt.Sprintf("%s must be 1–65535, got %d", p.name, p.port))
		}
	}

	if !slices.Contains([]string{"debug", "info", "warn", "error"}, c.Log.Level) {
		errs = append(errs, fmt.Sprintf("LOG_LEVEL must be debug, info, warn or error, got %q", c.Log.Level))
	}
	if !slices.Contains([]string{"text", "json"}, c.Log.Format) {
		errs = append(errs, fmt.Sprintf("LOG_FORMAT must be text or json, got %q", c.Log.Format))
	}

	// Memory
	if !slices.Contains([]string{"postgres", "memory"}, c.Memory.Backend) {
		errs = append(errs, fmt.Sprintf("MEMORY_BACKEND must be postgres or memory, got %q", c.Memory.Backend))
	}
	if c.Memory.Enabled && c.Memory.Backend == "postgres" && c.DB.Password == "" {
		errs = append(errs, "DB_PASSWORD is required when MEMORY_BACKEND=postgres")
	}
	if !slices.Contains([]string{"openai", "gemini"}, c.Memory.Embedder) {
		errs = append(errs, fmt.Sprintf("MEMORY_EMBEDDER must be openai or gemini, got %q", c.Memory.Embedder))
	}
	if c.Memory.Enabled && c.Memory.Embedder == "gemini" && c.Gemini.APIKey == "" {
		errs = append(errs, "GEMINI_API_KEY is required when MEMORY_EMBEDDER=gemini")
	}
	if c.Memory.SimilarityThreshold < 0 || c.Memory.SimilarityThreshold > 1 {
		errs = append(errs, "MEMORY_SIMILARITY_THRESHOLD must be between 0 and 1")
	}
	if c.Memory.DuplicateThreshold < 0 || c.Memory.DuplicateThreshold > 1 {
		errs = append(errs, "MEMORY_DUPLICATE_THRESHOLD must be between 0 and 1")
	}

	if !slices.Contains([]string{"redis", "sqlite", "memory"}, c.Checkpoint.Backend) {
		errs = append(errs, fmt.Sprintf("CHECKPOINT_BACKEND must be redis, sqlite or memory, got %q", c.Checkpoint.Backend))
	}

	// Workflow
	if c.Workflow.KeepAfterSummary >= c.Workflow.SummaryTrigger {
		errs = append(errs, fmt.Sprintf("WORKFLOW_KEEP_AFTER_SUMMARY (%d) must be less than WORKFLOW_SUMMARY_TRIGGER (%d)",
			c.Workflow.KeepAfterSummary, c.Workflow.SummaryTrigger))
	}
	if c.Workflow.MaxQueuedTurns < 0 {
		errs = append(errs, "WORKFLOW_MAX_QUEUED_TURNS must not be negative")
	}

	if _, err := c.Location(); err != nil {
		errs = append(errs, fmt.Sprintf("SCHEDULE_TIMEZONE: %v", err))
	}

	if c.XMPP.Enabled && c.XMPP.ComponentSecret == "" {
		errs = append(errs, "XMPP_COMPONENT_SECRET is required when XMPP_ENABLED=true")
	}
	if c.XMPP.Enabled && !c.Orchestrator.Enabled {
		errs = append(errs, "ORCHESTRATOR_ENABLED must be true when XMPP_ENABLED=true")
	}
	if c.Orchestrator.Concurrency < 1 {
		errs = append(errs, "ORCHESTRATOR_CONCURRENCY must be at least 1")
	}

	// Image generation key: warn only, image turns fail without it
	if c.Gemini.APIKey == "" {
		slog.Warn("GEMINI_API_KEY is empty; image responses are disabled")
	}
	// gRPC API key: warn only
	if c.GRPC.Enabled && c.GRPC.APIKey == "" {
		slog.Warn("GRPC_API_KEY is empty; gRPC server has no authentication")
	}

	if len(errs) > 0 {
		return errors.New("config validation failed:\n  " + strings.Join(errs, "\n  "))
	}
	return nil
}

// Location resolves the schedule timezone.
func (c *Config) Location() (*time.Location, error) {
	if c.Schedule.Timezone == "" || c.Schedule.Timezone == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Schedule.Timezone)
}
