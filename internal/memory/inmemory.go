package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/floats"
)

// InMemoryRepository is a brute-force Repository for local runs and tests.
type InMemoryRepository struct {
	mu      sync.RWMutex
	records map[string][]Record
	now     func() time.Time
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{records: make(map[string][]Record), now: time.Now}
}

func (r *InMemoryRepository) Create(_ context.Context, rec *Record) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = r.now()
	}
	stored := *rec
	stored.Embedding = append([]float32(nil), rec.Embedding...)

	r.mu.Lock()
	r.records[rec.ThreadID] = append(r.records[rec.ThreadID], stored)
	r.mu.Unlock()
	return nil
}

func (r *InMemoryRepository) SearchSimilar(_ context.Context, threadID string, embedding []float32, limit int, threshold float64) ([]SearchResult, error) {
	q := toFloat64(embedding)

	r.mu.RLock()
	var results []SearchResult
	for _, rec := range r.records[threadID] {
		if len(rec.Embedding) != len(q) {
			continue
		}
		sim := cosine(q, toFloat64(rec.Embedding))
		if sim >= threshold {
			results = append(results, SearchResult{Record: rec, Similarity: sim})
		}
	}
	r.mu.RUnlock()

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Similarity > results[j].Similarity
	})
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (r *InMemoryRepository) ListByThread(_ context.Context, threadID string, page, pageSize int) ([]Record, error) {
	r.mu.RLock()
	all := r.records[threadID]
	out := make([]Record, 0, len(all))
	for i := len(all) - 1; i >= 0; i-- {
		out = append(out, all[i])
	}
	r.mu.RUnlock()

	start := (page - 1) * pageSize
	if start >= len(out) || start < 0 {
		return nil, nil
	}
	end := start + pageSize
	if end > len(out) {
		end = len(out)
	}
	return out[start:end], nil
}

func (r *InMemoryRepository) CountByThread(_ context.Context, threadID string) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.records[threadID])), nil
}

func toFloat64(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, f := range v {
		out[i] = float64(f)
	}
	return out
}

func cosine(a, b []float64) float64 {
	na, nb := floats.Norm(a, 2), floats.Norm(b, 2)
	if na == 0 || nb == 0 {
		return 0
	}
	return floats.Dot(a, b) / (na * nb)
}
