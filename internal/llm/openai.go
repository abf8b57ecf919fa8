package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

// StructuredMode selects how CompleteJSON constrains the reply.
type StructuredMode string

const (
	// StructuredSchema sends a strict json_schema response format.
	StructuredSchema StructuredMode = "json_schema"
	// StructuredObject sends json_object and describes the schema in the
	// system prompt, for OpenAI-compatible backends without schema support.
	StructuredObject StructuredMode = "json_object"
)

type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	Structured  StructuredMode
}

// NewSDKClient builds an OpenAI SDK client. BaseURL points it at any
// OpenAI-compatible API such as Groq.
func NewSDKClient(apiKey, baseURL string) openai.Client {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return openai.NewClient(opts...)
}

// OpenAIClient implements Client against the chat completions API.
type OpenAIClient struct {
	client      openai.Client
	model       string
	temperature float64
	structured  StructuredMode
}

func NewOpenAIClient(cfg OpenAIConfig) *OpenAIClient {
	mode := cfg.Structured
	if mode == "" {
		mode = StructuredSchema
	}
	return &OpenAIClient{
		client:      NewSDKClient(cfg.APIKey, cfg.BaseURL),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		structured:  mode,
	}
}

func (c *OpenAIClient) params(req Request) openai.ChatCompletionNewParams {
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages)+1)
	if req.System != "" {
		msgs = append(msgs, openai.SystemMessage(req.System))
	}
	for _, m := range req.Messages {
		switch m.Role {
		case RoleUser:
			msgs = append(msgs, openai.UserMessage(m.Content))
		case RoleAssistant:
			msgs = append(msgs, openai.AssistantMessage(m.Content))
		case RoleSystem:
			msgs = append(msgs, openai.SystemMessage(m.Content))
		}
	}

	temp := req.Temperature
	if temp == 0 {
		temp = c.temperature
	}
	p := openai.ChatCompletionNewParams{
		Model:       shared.ChatModel(c.model),
		Messages:    msgs,
		Temperature: openai.Float(temp),
	}
	if req.MaxTokens > 0 {
		p.MaxCompletionTokens = openai.Int(int64(req.MaxTokens))
	}
	return p
}

func (c *OpenAIClient) Complete(ctx context.Context, req Request) (string, error) {
	resp, err := c.client.Chat.Completions.New(ctx, c.params(req))
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

func (c *OpenAIClient) Stream(ctx context.Context, req Request, onToken func(string)) (string, error) {
	stream := c.client.Chat.Completions.NewStreaming(ctx, c.params(req))
	defer stream.Close()

	var b strings.Builder
	for stream.Next() {
		chunk := stream.Current()
		if len(chunk.Choices) == 0 || chunk.Choices[0].Delta.Content == "" {
			continue
		}
		delta := chunk.Choices[0].Delta.Content
		b.WriteString(delta)
		if onToken != nil {
			onToken(delta)
		}
	}
	if err := stream.Err(); err != nil {
		return "", fmt.Errorf("chat stream: %w", err)
	}
	return b.String(), nil
}

func (c *OpenAIClient) CompleteJSON(ctx context.Context, req Request, schema Schema, out any) error {
	p := c.params(req)
	switch c.structured {
	case StructuredObject:
		def, err := json.Marshal(schema.Definition)
		if err != nil {
			return fmt.Errorf("encoding schema: %w", err)
		}
		hint := "Respond only with a JSON object matching this JSON schema:\n" + string(def)
		p.Messages = append([]openai.ChatCompletionMessageParamUnion{openai.SystemMessage(hint)}, p.Messages...)
		p.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		}
	default:
		js := shared.ResponseFormatJSONSchemaJSONSchemaParam{
			Name:   schema.Name,
			Schema: schema.Definition,
			Strict: openai.Bool(true),
		}
		if schema.Description != "" {
			js.Description = openai.String(schema.Description)
		}
		p.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &shared.ResponseFormatJSONSchemaParam{JSONSchema: js},
		}
	}

	resp, err := c.client.Chat.Completions.New(ctx, p)
	if err != nil {
		return fmt.Errorf("structured completion %s: %w", schema.Name, err)
	}
	if len(resp.Choices) == 0 {
		return fmt.Errorf("structured completion %s returned no choices", schema.Name)
	}
	raw := resp.Choices[0].Message.Content
	if err := decodeJSON(raw, out); err != nil {
		slog.Debug("llm: undecodable structured output", "schema", schema.Name, "raw", raw)
		return err
	}
	return nil
}
