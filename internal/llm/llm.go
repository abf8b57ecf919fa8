// Package llm wraps the hosted chat completion and embedding backends.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/aiox-platform/companion/internal/state"
)

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	Role    Role
	Content string
}

// Request is a single chat completion call.
type Request struct {
	System      string
	Messages    []Message
	Temperature float64
	MaxTokens   int
}

// Schema constrains structured output to a JSON schema.
type Schema struct {
	Name        string
	Description string
	Definition  map[string]any
}

// Client is the text generation backend.
type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
	// Stream delivers content deltas to onToken and returns the full text.
	Stream(ctx context.Context, req Request, onToken func(string)) (string, error)
	// CompleteJSON decodes a schema-constrained reply into out.
	CompleteJSON(ctx context.Context, req Request, schema Schema, out any) error
}

// Embedder turns texts into vectors of a fixed dimension.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
}

// ObjectSchema builds a strict object schema whose properties are all
// required strings, except those listed in arrays which are string arrays.
func ObjectSchema(name, description string, props map[string]string, arrays ...string) Schema {
	isArray := make(map[string]bool, len(arrays))
	for _, a := range arrays {
		isArray[a] = true
	}
	properties := make(map[string]any, len(props))
	required := make([]string, 0, len(props))
	for k, desc := range props {
		if isArray[k] {
			properties[k] = map[string]any{
				"type":        "array",
				"description": desc,
				"items":       map[string]any{"type": "string"},
			}
		} else {
			properties[k] = map[string]any{"type": "string", "description": desc}
		}
		required = append(required, k)
	}
	slices.Sort(required)
	return Schema{
		Name:        name,
		Description: description,
		Definition: map[string]any{
			"type":                 "object",
			"properties":           properties,
			"required":             required,
			"additionalProperties": false,
		},
	}
}

// EnumSchema builds a schema with a single required string property
// restricted to values.
func EnumSchema(name, property string, values []string) Schema {
	return Schema{
		Name: name,
		Definition: map[string]any{
			"type": "object",
			"properties": map[string]any{
				property: map[string]any{"type": "string", "enum": values},
			},
			"required":             []string{property},
			"additionalProperties": false,
		},
	}
}

// decodeJSON tolerates models that wrap JSON in a markdown fence.
func decodeJSON(raw string, out any) error {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	if err := json.Unmarshal([]byte(s), out); err != nil {
		return fmt.Errorf("decoding structured output: %w", err)
	}
	return nil
}

// History converts conversation messages into chat messages.
func History(msgs []state.Message) []Message {
	out := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		role := RoleUser
		if m.Role == state.RoleAssistant {
			role = RoleAssistant
		}
		out = append(out, Message{Role: role, Content: m.Content})
	}
	return out
}
