package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/dotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Server       ServerConfig
	DB           DBConfig
	Redis        RedisConfig
	NATS         NATSConfig
	XMPP         XMPPConfig
	GRPC         GRPCConfig
	Log          LogConfig
	LLM          LLMConfig
	Gemini       GeminiConfig
	Speech       SpeechConfig
	Memory       MemoryConfig
	Checkpoint   CheckpointConfig
	Workflow     WorkflowConfig
	Schedule     ScheduleConfig
	Artifacts    ArtifactsConfig
	Persona      PersonaConfig
	RateLimit    RateLimitConfig
	Orchestrator OrchestratorConfig
}

type ServerConfig struct {
	Host        string
	Port        int
	CORSOrigins []string
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
	MaxConns int32
	// MigrationsPath is the directory holding the golang-migrate files.
	MigrationsPath string
}

func (c DBConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode)
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type NATSConfig struct {
	URL string
}

type XMPPConfig struct {
	Enabled         bool
	ComponentHost   string
	ComponentPort   int
	ComponentName   string
	ComponentSecret string
}

func (c XMPPConfig) ComponentAddr() string {
	return fmt.Sprintf("%s:%d", c.ComponentHost, c.ComponentPort)
}

type GRPCConfig struct {
	Enabled bool
	Host    string
	Port    int
	APIKey  string
}

func (c GRPCConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type LogConfig struct {
	Level  string
	Format string
}

// LLMConfig configures the OpenAI-compatible chat endpoint (Groq by default).
type LLMConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	SmallModel  string
	VisionModel string
	Temperature float64
	// Structured is json_schema or json_object.
	Structured string
}

type GeminiConfig struct {
	APIKey      string
	ImageModel  string
	AspectRatio string
}

type SpeechConfig struct {
	APIKey   string
	BaseURL  string
	TTSModel string
	TTSVoice string
	STTModel string
}

type MemoryConfig struct {
	Enabled bool
	// Backend is postgres or memory.
	Backend string
	// Embedder is openai or gemini.
	Embedder            string
	EmbeddingModel      string
	EmbeddingAPIKey     string
	EmbeddingBaseURL    string
	Dimensions          int
	MaxResults          int
	SimilarityThreshold float64
	DuplicateThreshold  float64
}

type CheckpointConfig struct {
	// Backend is redis, sqlite or memory.
	Backend    string
	SQLitePath string
	TTL        time.Duration
}

type WorkflowConfig struct {
	SummaryTrigger   int
	KeepAfterSummary int
	MaxQueuedTurns   int
	ClassifierWindow int
	ImageHistory     int
	EnhancePrompt    bool
}

type ScheduleConfig struct {
	Path     string
	Timezone string
}

type ArtifactsConfig struct {
	Dir           string
	BaseURL       string
	Retention     time.Duration
	SweepSchedule string
}

type PersonaConfig struct {
	Name       string
	Occupation string
	City       string
}

type RateLimitConfig struct {
	Enabled  bool
	Requests int
	Window   time.Duration
}

type OrchestratorConfig struct {
	Enabled     bool
	Concurrency int
	// AllowedDomains restricts which sender domains get a reply. Empty
	// allows all.
	AllowedDomains []string
}

func Load() (*Config, error) {
	return LoadFile(".env")
}

// LoadFile reads the dotenv file at path, if present, then the environment.
func LoadFile(path string) (*Config, error) {
	k := koanf.New(".")

	// Load .env file if it exists (ignore error if missing)
	_ = k.Load(file.Provider(path), dotenv.ParserEnv("", ".", envKey))

	// Load environment variables (override .env)
	err := k.Load(env.Provider("", ".", envKey), nil)
	if err != nil {
		return nil, fmt.Errorf("loading env vars: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:        k.String("server.host"),
			Port:        k.Int("server.port"),
			CORSOrigins: splitList(k.String("server.cors.origins")),
		},
		DB: DBConfig{
			Host:     k.String("db.host"),
			Port:     k.Int("db.port"),
			User:     k.String("db.user"),
			Password: k.String("db.password"),
			Name:     k.String("db.name"),
			SSLMode:  k.String("db.sslmode"),
			MaxConns: int32(k.Int("db.max.conns")),

			MigrationsPath: k.String("db.migrations.path"),
		},
		Redis: RedisConfig{
			Host:     k.String("redis.host"),
			Port:     k.Int("redis.port"),
			Password: k.String("redis.password"),
			DB:       k.Int("redis.db"),
		},
		NATS: NATSConfig{
			URL: k.String("nats.url"),
		},
		XMPP: XMPPConfig{
			Enabled:         k.Bool("xmpp.enabled"),
			ComponentHost:   k.String("xmpp.component.host"),
			ComponentPort:   k.Int("xmpp.component.port"),
			ComponentName:   k.String("xmpp.component.name"),
			ComponentSecret: k.String("xmpp.component.secret"),
		},
		GRPC: GRPCConfig{
			Enabled: k.Bool("grpc.enabled"),
			Host:    k.String("grpc.host"),
			Port:    k.Int("grpc.port"),
			APIKey:  k.String("grpc.api.key"),
		},
		Log: LogConfig{
			Level:  k.String("log.level"),
			Format: k.String("log.format"),
		},
		LLM: LLMConfig{
			APIKey:      k.String("llm.api.key"),
			BaseURL:     k.String("llm.base.url"),
			Model:       k.String("llm.model"),
			SmallModel:  k.String("llm.small.model"),
			VisionModel: k.String("llm.vision.model"),
			Temperature: k.Float64("llm.temperature"),
			Structured:  k.String("llm.structured"),
		},
		Gemini: GeminiConfig{
			APIKey:      k.String("gemini.api.key"),
			ImageModel:  k.String("gemini.image.model"),
			AspectRatio: k.String("gemini.aspect.ratio"),
		},
		Speech: SpeechConfig{
			APIKey:   k.String("speech.api.key"),
			BaseURL:  k.String("speech.base.url"),
			TTSModel: k.String("speech.tts.model"),
			TTSVoice: k.String("speech.tts.voice"),
			STTModel: k.String("speech.stt.model"),
		},
		Memory: MemoryConfig{
			Enabled:             !k.Exists("memory.enabled") || k.Bool("memory.enabled"),
			Backend:             k.String("memory.backend"),
			Embedder:            k.String("memory.embedder"),
			EmbeddingModel:      k.String("memory.embedding.model"),
			EmbeddingAPIKey:     k.String("memory.embedding.api.key"),
			EmbeddingBaseURL:    k.String("memory.embedding.base.url"),
			Dimensions:          k.Int("memory.dimensions"),
			MaxResults:          k.Int("memory.max.results"),
			SimilarityThreshold: k.Float64("memory.similarity.threshold"),
			DuplicateThreshold:  k.Float64("memory.duplicate.threshold"),
		},
		Checkpoint: CheckpointConfig{
			Backend:    k.String("checkpoint.backend"),
			SQLitePath: k.String("checkpoint.sqlite.path"),
		},
		Workflow: WorkflowConfig{
			SummaryTrigger:   k.Int("workflow.summary.trigger"),
			KeepAfterSummary: k.Int("workflow.keep.after.summary"),
			MaxQueuedTurns:   k.Int("workflow.max.queued.turns"),
			ClassifierWindow: k.Int("workflow.classifier.window"),
			ImageHistory:     k.Int("workflow.image.history"),
			EnhancePrompt:    k.Bool("image.enhance.prompt"),
		},
		Schedule: ScheduleConfig{
			Path:     k.String("schedule.path"),
			Timezone: k.String("schedule.timezone"),
		},
		Artifacts: ArtifactsConfig{
			Dir:           k.String("artifacts.dir"),
			BaseURL:       k.String("artifacts.base.url"),
			SweepSchedule: k.String("artifacts.sweep.schedule"),
		},
		Persona: PersonaConfig{
			Name:       k.String("persona.name"),
			Occupation: k.String("persona.occupation"),
			City:       k.String("persona.city"),
		},
		RateLimit: RateLimitConfig{
			Enabled:  !k.Exists("ratelimit.enabled") || k.Bool("ratelimit.enabled"),
			Requests: k.Int("ratelimit.requests"),
		},
		Orchestrator: OrchestratorConfig{
			Enabled:        k.Bool("orchestrator.enabled"),
			Concurrency:    k.Int("orchestrator.concurrency"),
			AllowedDomains: splitList(k.String("orchestrator.allowed.domains")),
		},
	}

	applyDefaults(cfg)

	// Parse durations
	if cfg.Checkpoint.TTL, err = duration(k, "checkpoint.ttl", "720h"); err != nil {
		return nil, err
	}
	if cfg.Artifacts.Retention, err = duration(k, "artifacts.retention", "168h"); err != nil {
		return nil, err
	}
	if cfg.RateLimit.Window, err = duration(k, "ratelimit.window", "1m"); err != nil {
		return nil, err
	}

	return cfg, nil
}

// envKey maps A_B_C to a.b.c.
func envKey(s string) string {
	return strings.ToLower(strings.ReplaceAll(s, "_", "."))
}

func duration(k *koanf.Koanf, key, fallback string) (time.Duration, error) {
	s := k.String(key)
	if s == "" {
		s = fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w", strings.ToUpper(strings.ReplaceAll(key, ".", "_")), err)
	}
	return d, nil
}

func applyDefaults(cfg *Config) {
	setString(&cfg.Server.Host, "0.0.0.0")
	setInt(&cfg.Server.Port, 8080)

	setString(&cfg.DB.Host, "localhost")
	setInt(&cfg.DB.Port, 5432)
	setString(&cfg.DB.User, "companion")
	setString(&cfg.DB.Name, "companion")
	setString(&cfg.DB.SSLMode, "disable")
	if cfg.DB.MaxConns == 0 {
		cfg.DB.MaxConns = 25
	}
	setString(&cfg.DB.MigrationsPath, "migrations")

	setString(&cfg.Redis.Host, "localhost")
	setInt(&cfg.Redis.Port, 6379)

	setString(&cfg.NATS.URL, "nats://localhost:4222")

	setString(&cfg.XMPP.ComponentHost, "localhost")
	setInt(&cfg.XMPP.ComponentPort, 5275)
	setString(&cfg.XMPP.ComponentName, "tela.companion.local")

	setString(&cfg.GRPC.Host, "0.0.0.0")
	setInt(&cfg.GRPC.Port, 50051)

	setString(&cfg.Log.Level, "debug")
	setString(&cfg.Log.Format, "text")

	setString(&cfg.LLM.BaseURL, "https://api.groq.com/openai/v1")
	setString(&cfg.LLM.Model, "llama-3.3-70b-versatile")
	setString(&cfg.LLM.SmallModel, "llama-3.1-8b-instant")
	setString(&cfg.LLM.VisionModel, "meta-llama/llama-4-scout-17b-16e-instruct")
	if cfg.LLM.Temperature == 0 {
		cfg.LLM.Temperature = 0.7
	}
	setString(&cfg.LLM.Structured, "json_object")

	setString(&cfg.Gemini.ImageModel, "imagen-4.0-generate-001")
	setString(&cfg.Gemini.AspectRatio, "1:1")

	setString(&cfg.Speech.APIKey, cfg.LLM.APIKey)
	setString(&cfg.Speech.BaseURL, cfg.LLM.BaseURL)
	setString(&cfg.Speech.TTSModel, "playai-tts")
	setString(&cfg.Speech.TTSVoice, "Celeste-PlayAI")
	setString(&cfg.Speech.STTModel, "whisper-large-v3-turbo")

	setString(&cfg.Memory.Backend, "postgres")
	setString(&cfg.Memory.Embedder, "gemini")
	setInt(&cfg.Memory.Dimensions, 768)
	setInt(&cfg.Memory.MaxResults, 5)
	if cfg.Memory.SimilarityThreshold == 0 {
		cfg.Memory.SimilarityThreshold = 0.3
	}
	if cfg.Memory.DuplicateThreshold == 0 {
		cfg.Memory.DuplicateThreshold = 0.9
	}

	setString(&cfg.Checkpoint.Backend, "redis")
	setString(&cfg.Checkpoint.SQLitePath, "./data/checkpoints.db")

	setInt(&cfg.Workflow.SummaryTrigger, 20)
	setInt(&cfg.Workflow.KeepAfterSummary, 5)
	setInt(&cfg.Workflow.MaxQueuedTurns, 8)
	setInt(&cfg.Workflow.ClassifierWindow, 6)
	setInt(&cfg.Workflow.ImageHistory, 5)

	setString(&cfg.Schedule.Timezone, "Local")

	setString(&cfg.Artifacts.Dir, "./data/artifacts")
	setString(&cfg.Artifacts.BaseURL, "/api/v1/artifacts")
	setString(&cfg.Artifacts.SweepSchedule, "@hourly")

	setString(&cfg.Persona.Name, "Tela")
	setString(&cfg.Persona.Occupation, "Machine Learning Engineer at Groq")
	setString(&cfg.Persona.City, "San Francisco")

	setInt(&cfg.RateLimit.Requests, 30)

	setInt(&cfg.Orchestrator.Concurrency, 8)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func setString(v *string, def string) {
	if *v == "" {
		*v = def
	}
}

func setInt(v *int, def int) {
	if *v == 0 {
		*v = def
	}
}
