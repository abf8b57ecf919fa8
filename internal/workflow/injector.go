package workflow

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/aiox-platform/companion/internal/errs"
	"github.com/aiox-platform/companion/internal/memory"
	"github.com/aiox-platform/companion/internal/metrics"
	"github.com/aiox-platform/companion/internal/state"
)

// ActivityProvider reports what the character is doing at a given time.
type ActivityProvider interface {
	CurrentActivity(now time.Time) (string, bool)
}

// MemoryRetriever looks up long-term memories relevant to a query.
type MemoryRetriever interface {
	Retrieve(ctx context.Context, threadID, query string, limit int) ([]memory.Record, error)
}

// Injector fills the per-turn context fields of a turn state.
type Injector struct {
	activity ActivityProvider
	memories MemoryRetriever
	limit    int
	now      func() time.Time
}

func NewInjector(activity ActivityProvider, memories MemoryRetriever, limit int) *Injector {
	return &Injector{activity: activity, memories: memories, limit: limit, now: time.Now}
}

// InjectActivity sets CurrentActivity, and ApplyActivity iff one is scheduled.
func (i *Injector) InjectActivity(st *state.TurnState) {
	st.CurrentActivity, st.ApplyActivity = "", false
	if i.activity == nil {
		return
	}
	if label, ok := i.activity.CurrentActivity(i.now()); ok {
		st.CurrentActivity, st.ApplyActivity = label, true
	}
}

// InjectMemory sets MemoryContext from memories relevant to the latest user
// message. Retrieval failures leave it empty.
func (i *Injector) InjectMemory(ctx context.Context, st *state.TurnState) {
	st.MemoryContext = ""
	if i.memories == nil {
		return
	}
	last, ok := st.LastUser()
	if !ok {
		return
	}
	records, err := i.memories.Retrieve(ctx, st.ThreadID, last.Content, i.limit)
	if err != nil {
		softFailure(st.ThreadID, errs.Memory, "retrieving memories", err)
		return
	}
	st.MemoryContext = memory.Format(records)
}

// Inject runs both injections concurrently. They write disjoint fields.
func (i *Injector) Inject(ctx context.Context, st *state.TurnState) {
	var g errgroup.Group
	g.Go(func() error {
		i.InjectActivity(st)
		return nil
	})
	g.Go(func() error {
		i.InjectMemory(ctx, st)
		return nil
	})
	_ = g.Wait()
}

func softFailure(threadID string, c errs.Component, msg string, err error) {
	metrics.SoftFailuresTotal.WithLabelValues(string(c)).Inc()
	slog.Warn("workflow: "+msg, "thread_id", threadID, "component", string(c), "error", err)
}
