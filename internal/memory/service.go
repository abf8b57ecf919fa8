package memory

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/aiox-platform/companion/internal/errs"
	"github.com/aiox-platform/companion/internal/llm"
	"github.com/aiox-platform/companion/internal/metrics"
	"github.com/aiox-platform/companion/internal/prompts"
	"github.com/aiox-platform/companion/internal/state"
)

// Service extracts long-term memories from user messages and retrieves
// them for prompt injection.
type Service struct {
	repo     Repository
	embedder llm.Embedder
	analyzer Analyzer
	cfg      Config
}

// NewService creates a new memory service.
func NewService(repo Repository, embedder llm.Embedder, analyzer Analyzer, cfg Config) *Service {
	return &Service{
		repo:     repo,
		embedder: embedder,
		analyzer: analyzer,
		cfg:      cfg.withDefaults(),
	}
}

// Extract stores the new facts found in msg. Only user messages are
// considered; anything else yields no records. Facts that duplicate an
// existing memory are skipped.
func (s *Service) Extract(ctx context.Context, threadID string, msg state.Message) ([]Record, error) {
	if !s.cfg.Enabled || msg.Role != state.RoleUser || strings.TrimSpace(msg.Content) == "" {
		return nil, nil
	}

	facts, err := s.analyzer.Analyze(ctx, msg.Content)
	if err != nil {
		return nil, errs.NewCollaborator(errs.Memory, "analyzing message", err)
	}
	if len(facts) == 0 {
		return nil, nil
	}

	vectors, err := s.embedder.Embed(ctx, facts)
	if err != nil {
		return nil, errs.NewCollaborator(errs.Memory, "embedding facts", err)
	}
	if len(vectors) != len(facts) {
		return nil, errs.NewCollaborator(errs.Memory, fmt.Sprintf("embedder returned %d vectors for %d facts", len(vectors), len(facts)), nil)
	}

	stored := make([]*Record, len(facts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)
	for i := range facts {
		g.Go(func() error {
			dup, err := s.repo.SearchSimilar(gctx, threadID, vectors[i], 1, s.cfg.DuplicateThreshold)
			if err != nil {
				return fmt.Errorf("checking duplicates: %w", err)
			}
			if len(dup) > 0 {
				slog.Debug("memory: skipping known fact", "thread_id", threadID, "similarity", dup[0].Similarity)
				return nil
			}
			rec := &Record{
				ThreadID:        threadID,
				Content:         facts[i],
				SourceMessageID: msg.ID,
				Embedding:       vectors[i],
			}
			if err := s.repo.Create(gctx, rec); err != nil {
				return err
			}
			stored[i] = rec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, errs.NewCollaborator(errs.Memory, "storing memories", err)
	}

	out := make([]Record, 0, len(stored))
	for _, rec := range stored {
		if rec != nil {
			out = append(out, *rec)
		}
	}
	metrics.MemoriesExtracted.Add(float64(len(out)))
	return out, nil
}

// Retrieve returns up to limit memories relevant to query, most similar
// first. A non-positive limit uses the configured maximum.
func (s *Service) Retrieve(ctx context.Context, threadID, query string, limit int) ([]Record, error) {
	results, err := s.Search(ctx, threadID, query, limit)
	if err != nil {
		return nil, err
	}
	out := make([]Record, len(results))
	for i, r := range results {
		out[i] = r.Record
	}
	return out, nil
}

// Search is Retrieve with similarity scores.
func (s *Service) Search(ctx context.Context, threadID, query string, limit int) ([]SearchResult, error) {
	if !s.cfg.Enabled || strings.TrimSpace(query) == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = s.cfg.MaxResults
	}
	vectors, err := s.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, errs.NewCollaborator(errs.Memory, "embedding query", err)
	}
	if len(vectors) != 1 {
		return nil, errs.NewCollaborator(errs.Memory, "embedder returned no vector", nil)
	}
	results, err := s.repo.SearchSimilar(ctx, threadID, vectors[0], limit, s.cfg.SimilarityThreshold)
	if err != nil {
		return nil, errs.NewCollaborator(errs.Memory, "searching memories", err)
	}
	return results, nil
}

// List returns paginated memories for a thread, newest first.
func (s *Service) List(ctx context.Context, threadID string, page, pageSize int) ([]Record, int64, error) {
	records, err := s.repo.ListByThread(ctx, threadID, page, pageSize)
	if err != nil {
		return nil, 0, err
	}
	count, err := s.repo.CountByThread(ctx, threadID)
	if err != nil {
		return nil, 0, err
	}
	return records, count, nil
}

// Format renders records as the memory context block.
func Format(records []Record) string {
	contents := make([]string, 0, len(records))
	for _, r := range records {
		if c := strings.TrimSpace(r.Content); c != "" {
			contents = append(contents, c)
		}
	}
	return prompts.Memories(contents)
}
