// Package summarizer folds conversation history into a rolling summary.
package summarizer

import (
	"context"
	"strings"

	"github.com/aiox-platform/companion/internal/errs"
	"github.com/aiox-platform/companion/internal/llm"
	"github.com/aiox-platform/companion/internal/prompts"
	"github.com/aiox-platform/companion/internal/state"
)

type Summarizer struct {
	client  llm.Client
	persona string
}

func New(client llm.Client, persona string) *Summarizer {
	return &Summarizer{client: client, persona: persona}
}

// Summarize returns a summary covering prior and messages. The prior
// summary is extended, never discarded.
func (s *Summarizer) Summarize(ctx context.Context, messages []state.Message, prior string) (string, error) {
	if len(messages) == 0 {
		return prior, nil
	}
	msgs := llm.History(messages)
	msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: prompts.Summary(s.persona, prior)})

	out, err := s.client.Complete(ctx, llm.Request{Messages: msgs, Temperature: 0.3})
	if err != nil {
		return "", errs.NewCollaborator(errs.Summarization, "summary call failed", err)
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", errs.NewCollaborator(errs.Summarization, "summary is empty", nil)
	}
	return out, nil
}
