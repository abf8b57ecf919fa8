// Package workflow runs a conversational turn through its stages:
// memory extraction, response-mode classification, context and memory
// injection, exactly one generation path, and an optional summarization.
package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/aiox-platform/companion/internal/checkpoint"
	"github.com/aiox-platform/companion/internal/errs"
	"github.com/aiox-platform/companion/internal/generation"
	"github.com/aiox-platform/companion/internal/memory"
	"github.com/aiox-platform/companion/internal/metrics"
	"github.com/aiox-platform/companion/internal/state"
)

// Stage names a checkpointed step of the pipeline.
type Stage string

const (
	StageMemoryExtraction Stage = "memory_extraction"
	StageClassify         Stage = "classify"
	StageContextInjection Stage = "context_injection"
	StageMemoryInjection  Stage = "memory_injection"
	StageGeneration       Stage = "generation"
	StageSummarize        Stage = "summarize"
)

var stages = []Stage{
	StageMemoryExtraction,
	StageClassify,
	StageContextInjection,
	StageMemoryInjection,
	StageGeneration,
	StageSummarize,
}

func stageIndex(s string) int {
	for i, st := range stages {
		if string(st) == s {
			return i
		}
	}
	return -1
}

type Classifier interface {
	Classify(ctx context.Context, history []state.Message) (state.Workflow, error)
}

type Generator interface {
	Generate(ctx context.Context, st *state.TurnState, onToken func(string)) (*generation.Result, error)
}

type Summarizer interface {
	Summarize(ctx context.Context, messages []state.Message, prior string) (string, error)
}

type MemoryExtractor interface {
	Extract(ctx context.Context, threadID string, msg state.Message) ([]memory.Record, error)
}

type Config struct {
	// SummaryTrigger is the history length above which a turn summarizes.
	SummaryTrigger int
	// KeepAfterSummary is how many recent messages survive a summary.
	KeepAfterSummary int
	// MaxQueuedTurns bounds the turns waiting per thread.
	MaxQueuedTurns int
}

func DefaultConfig() Config {
	return Config{SummaryTrigger: 20, KeepAfterSummary: 5, MaxQueuedTurns: 8}
}

type RunOptions struct {
	// OnToken receives conversational output as it streams.
	OnToken func(string)
}

// Engine executes turns. Turns on the same thread run one at a time in
// arrival order; turns on different threads run concurrently.
type Engine struct {
	store      checkpoint.Store
	classifier Classifier
	injector   *Injector
	generator  Generator
	summarizer Summarizer
	memories   MemoryExtractor
	locks      *ThreadLocks
	cfg        Config
	now        func() time.Time
}

func NewEngine(
	store checkpoint.Store,
	classifier Classifier,
	injector *Injector,
	generator Generator,
	summarizer Summarizer,
	memories MemoryExtractor,
	cfg Config,
) *Engine {
	d := DefaultConfig()
	if cfg.SummaryTrigger <= 0 {
		cfg.SummaryTrigger = d.SummaryTrigger
	}
	if cfg.KeepAfterSummary <= 0 {
		cfg.KeepAfterSummary = d.KeepAfterSummary
	}
	return &Engine{
		store:      store,
		classifier: classifier,
		injector:   injector,
		generator:  generator,
		summarizer: summarizer,
		memories:   memories,
		locks:      NewThreadLocks(cfg.MaxQueuedTurns),
		cfg:        cfg,
		now:        time.Now,
	}
}

// State returns the last saved state of a thread, or nil.
func (e *Engine) State(ctx context.Context, threadID string) (*state.TurnState, error) {
	cp, err := e.store.Load(ctx, threadID)
	if err != nil {
		return nil, fmt.Errorf("loading checkpoint: %w", err)
	}
	if cp == nil {
		return nil, nil
	}
	return cp.State, nil
}

// Run processes one inbound user message and returns the resulting state.
//
// A message whose id matches an unfinished checkpoint resumes after the last
// completed stage; one matching a finished checkpoint, or already in the
// history, returns the stored state with Replayed set. Any other message
// starts a fresh turn. Generation errors abort the
// turn without saving the partial result.
func (e *Engine) Run(ctx context.Context, threadID string, incoming state.Message, opts RunOptions) (*state.TurnState, error) {
	if strings.TrimSpace(threadID) == "" {
		return nil, errs.NewValidation(errs.Generation, "thread id is required")
	}
	if incoming.ID == "" {
		incoming.ID = uuid.New().String()
	}
	if incoming.CreatedAt.IsZero() {
		incoming.CreatedAt = e.now()
	}
	incoming.Role = state.RoleUser

	release, err := e.locks.Acquire(ctx, threadID)
	if err != nil {
		return nil, err
	}
	defer release()

	metrics.InflightTurns.Inc()
	defer metrics.InflightTurns.Dec()

	cp, err := e.store.Load(ctx, threadID)
	if err != nil {
		return nil, fmt.Errorf("loading checkpoint: %w", err)
	}

	var (
		st   *state.TurnState
		next int
	)
	switch {
	case cp != nil && cp.MessageID == incoming.ID && cp.Done:
		slog.Debug("workflow: turn already completed", "thread_id", threadID, "message_id", incoming.ID)
		cp.State.Replayed = true
		return cp.State, nil
	case cp != nil && cp.MessageID != incoming.ID && cp.State != nil && cp.State.HasMessage(incoming.ID):
		// An earlier turn redelivered after later ones finished. Its media
		// belong to the latest turn, so only the history is returned.
		slog.Info("workflow: ignoring redelivered message", "thread_id", threadID, "message_id", incoming.ID)
		st = cp.State
		st.ResetTransient()
		st.Replayed = true
		return st, nil
	case cp != nil && cp.MessageID == incoming.ID:
		st = cp.State
		next = stageIndex(cp.Stage) + 1
		slog.Info("workflow: resuming turn", "thread_id", threadID, "message_id", incoming.ID, "after", cp.Stage)
	default:
		if cp != nil && cp.State != nil {
			st = cp.State
			if !cp.Done {
				slog.Warn("workflow: abandoning unfinished turn", "thread_id", threadID, "message_id", cp.MessageID, "stage", cp.Stage)
			}
		} else {
			st = state.New(threadID)
		}
		st.ResetTransient()
		st.Append(incoming)
	}

	for i := next; i < len(stages); i++ {
		stage := stages[i]
		start := time.Now()

		switch stage {
		case StageMemoryExtraction:
			e.extractMemories(ctx, st, incoming)
		case StageClassify:
			e.classify(ctx, st)
		case StageContextInjection:
			if i+1 < len(stages) && stages[i+1] == StageMemoryInjection {
				e.injector.Inject(ctx, st)
				i++
				stage = StageMemoryInjection
			} else {
				e.injector.InjectActivity(st)
			}
		case StageMemoryInjection:
			e.injector.InjectMemory(ctx, st)
		case StageGeneration:
			if err := e.generate(ctx, st, opts.OnToken); err != nil {
				metrics.TurnsTotal.WithLabelValues(st.Workflow.String(), "error").Inc()
				return nil, err
			}
		case StageSummarize:
			e.summarize(ctx, st)
		}

		metrics.StageDuration.WithLabelValues(string(stage)).Observe(time.Since(start).Seconds())
		if err := e.save(ctx, st, incoming.ID, stage, i == len(stages)-1); err != nil {
			return nil, err
		}
	}

	metrics.TurnsTotal.WithLabelValues(st.Workflow.String(), "success").Inc()
	return st, nil
}

func (e *Engine) save(ctx context.Context, st *state.TurnState, messageID string, stage Stage, done bool) error {
	err := e.store.Save(ctx, st.ThreadID, &checkpoint.Checkpoint{
		State:     st,
		MessageID: messageID,
		Stage:     string(stage),
		Done:      done,
		UpdatedAt: e.now(),
	})
	if err != nil {
		return fmt.Errorf("saving checkpoint after %s: %w", stage, err)
	}
	return nil
}

func (e *Engine) extractMemories(ctx context.Context, st *state.TurnState, msg state.Message) {
	if e.memories == nil {
		return
	}
	records, err := e.memories.Extract(ctx, st.ThreadID, msg)
	if err != nil {
		softFailure(st.ThreadID, errs.Memory, "extracting memories", err)
		return
	}
	if len(records) > 0 {
		slog.Debug("workflow: memories stored", "thread_id", st.ThreadID, "count", len(records))
	}
}

func (e *Engine) classify(ctx context.Context, st *state.TurnState) {
	wf, err := e.classifier.Classify(ctx, st.Messages)
	if err != nil {
		softFailure(st.ThreadID, errs.Classifier, "classification failed, defaulting to conversation", err)
		wf = state.Conversation
	}
	st.Workflow = wf
}

func (e *Engine) generate(ctx context.Context, st *state.TurnState, onToken func(string)) error {
	var tokens func(string)
	if st.Workflow == state.Conversation {
		tokens = onToken
	}
	res, err := e.generator.Generate(ctx, st, tokens)
	if err != nil {
		slog.Error("workflow: generation failed", "thread_id", st.ThreadID, "workflow", st.Workflow.String(), "error", err)
		return err
	}
	st.Append(res.Reply)
	st.ImageRef = res.ImageRef
	st.AudioBuffer = res.Audio
	return nil
}

// ShouldSummarize reports whether a history of n messages is compacted.
func (e *Engine) ShouldSummarize(n int) bool {
	return n > 1 && n > e.cfg.SummaryTrigger
}

func (e *Engine) summarize(ctx context.Context, st *state.TurnState) {
	n := len(st.Messages)
	if !e.ShouldSummarize(n) || n <= e.cfg.KeepAfterSummary {
		return
	}
	cut := n - e.cfg.KeepAfterSummary
	summary, err := e.summarizer.Summarize(ctx, st.Messages[:cut], st.Summary)
	if err != nil {
		metrics.SummarizationsTotal.WithLabelValues("error").Inc()
		softFailure(st.ThreadID, errs.Summarization, "summarization failed, keeping full history", err)
		return
	}
	metrics.SummarizationsTotal.WithLabelValues("success").Inc()
	st.Summary = summary
	st.Messages = append([]state.Message(nil), st.Messages[cut:]...)
}
