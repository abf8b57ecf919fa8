// Package classifier picks the response mode for a turn.
package classifier

import (
	"context"
	"strings"

	"github.com/aiox-platform/companion/internal/errs"
	"github.com/aiox-platform/companion/internal/llm"
	"github.com/aiox-platform/companion/internal/prompts"
	"github.com/aiox-platform/companion/internal/state"
)

const temperature = 0.3

var schema = llm.EnumSchema("response_router", "response_type", state.Labels())

// Classifier asks a chat model which of the three response modes fits the
// latest message. It never falls back: every failure is a classification
// error for the caller to handle.
type Classifier struct {
	client llm.Client
	window int
}

// New returns a classifier that considers the last window messages, or the
// whole history when window is zero.
func New(client llm.Client, window int) *Classifier {
	return &Classifier{client: client, window: window}
}

func (c *Classifier) Classify(ctx context.Context, history []state.Message) (state.Workflow, error) {
	if len(history) == 0 {
		return state.Conversation, errs.NewClassification("empty history", nil)
	}
	if c.window > 0 && len(history) > c.window {
		history = history[len(history)-c.window:]
	}

	var out struct {
		ResponseType *string `json:"response_type"`
	}
	err := c.client.CompleteJSON(ctx, llm.Request{
		System:      prompts.Router,
		Messages:    llm.History(history),
		Temperature: temperature,
	}, schema, &out)
	if err != nil {
		return state.Conversation, errs.NewClassification("router call failed", err)
	}
	if out.ResponseType == nil {
		return state.Conversation, errs.NewClassification("response_type missing", nil)
	}

	w, err := state.ParseWorkflow(strings.ToLower(strings.TrimSpace(*out.ResponseType)))
	if err != nil {
		return state.Conversation, errs.NewClassification("unknown response type", err)
	}
	return w, nil
}
