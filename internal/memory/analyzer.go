package memory

import (
	"context"
	"strings"

	"github.com/aiox-platform/companion/internal/llm"
	"github.com/aiox-platform/companion/internal/prompts"
)

// Analyzer finds durable personal facts in a user message.
type Analyzer interface {
	Analyze(ctx context.Context, text string) ([]string, error)
}

var analysisSchema = llm.ObjectSchema("memory_analysis",
	"Personal facts about the user found in the message",
	map[string]string{"memories": "Third-person facts about the user; empty when there are none"},
	"memories",
)

// LLMAnalyzer asks a chat model for facts using structured output.
type LLMAnalyzer struct {
	client llm.Client
}

func NewLLMAnalyzer(client llm.Client) *LLMAnalyzer {
	return &LLMAnalyzer{client: client}
}

func (a *LLMAnalyzer) Analyze(ctx context.Context, text string) ([]string, error) {
	var out struct {
		Memories []string `json:"memories"`
	}
	err := a.client.CompleteJSON(ctx, llm.Request{
		System:      prompts.MemoryAnalysis,
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: text}},
		Temperature: 0.1,
	}, analysisSchema, &out)
	if err != nil {
		return nil, err
	}

	facts := make([]string, 0, len(out.Memories))
	seen := make(map[string]bool, len(out.Memories))
	for _, m := range out.Memories {
		m = strings.TrimSpace(m)
		key := strings.ToLower(m)
		if m == "" || seen[key] {
			continue
		}
		seen[key] = true
		facts = append(facts, m)
	}
	return facts, nil
}
