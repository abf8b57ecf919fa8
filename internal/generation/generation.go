// Package generation produces the assistant reply for each response mode.
package generation

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/aiox-platform/companion/internal/artifacts"
	"github.com/aiox-platform/companion/internal/errs"
	"github.com/aiox-platform/companion/internal/image"
	"github.com/aiox-platform/companion/internal/llm"
	"github.com/aiox-platform/companion/internal/prompts"
	"github.com/aiox-platform/companion/internal/speech"
	"github.com/aiox-platform/companion/internal/state"
)

// ArtifactSaver persists generated media and returns its reference.
type ArtifactSaver interface {
	Save(kind artifacts.Kind, ext string, data []byte) (string, error)
}

type Config struct {
	Persona prompts.Persona
	// ImageHistory is how many recent messages feed the image scenario.
	ImageHistory int
	// EnhancePrompt runs an extra pass that enriches the image prompt.
	EnhancePrompt bool
}

// Result is the outcome of one generation stage. It is applied to the turn
// state only when the stage succeeds.
type Result struct {
	Reply    state.Message
	ImageRef string
	Audio    []byte
}

// Dispatcher runs the generation stage selected by the turn's workflow.
type Dispatcher struct {
	client    llm.Client
	images    image.Generator
	speech    speech.Synthesizer
	artifacts ArtifactSaver
	cfg       Config
	now       func() time.Time
}

func NewDispatcher(client llm.Client, images image.Generator, synth speech.Synthesizer, store ArtifactSaver, cfg Config) *Dispatcher {
	if cfg.ImageHistory <= 0 {
		cfg.ImageHistory = 5
	}
	return &Dispatcher{
		client:    client,
		images:    images,
		speech:    synth,
		artifacts: store,
		cfg:       cfg,
		now:       time.Now,
	}
}

// Generate dispatches on st.Workflow. onToken receives conversational
// output as it streams and may be nil.
func (d *Dispatcher) Generate(ctx context.Context, st *state.TurnState, onToken func(string)) (*Result, error) {
	switch st.Workflow {
	case state.Conversation:
		return d.conversation(ctx, st, onToken)
	case state.Image:
		return d.image(ctx, st)
	case state.Audio:
		return d.audio(ctx, st)
	default:
		return nil, errs.NewValidation(errs.Generation, fmt.Sprintf("unsupported workflow %s", st.Workflow))
	}
}

var stageDirection = regexp.MustCompile(`\*.*?\*`)

// StripStageDirections removes *...* spans and surrounding whitespace.
func StripStageDirections(s string) string {
	return strings.TrimSpace(stageDirection.ReplaceAllString(s, ""))
}

// SystemPrompt assembles the character card with the turn's context.
func (d *Dispatcher) SystemPrompt(st *state.TurnState) (string, error) {
	card, err := prompts.CharacterCard(d.cfg.Persona)
	if err != nil {
		return "", err
	}
	name := d.cfg.Persona.Name
	var b strings.Builder
	b.WriteString(card)
	if st.Summary != "" {
		fmt.Fprintf(&b, "\n\nSummary of conversation earlier between %s and the user: %s", name, st.Summary)
	}
	if st.MemoryContext != "" {
		fmt.Fprintf(&b, "\n\n## User Background\n\nHere's what you know about the user from previous conversations:\n%s", st.MemoryContext)
	}
	if st.ApplyActivity && st.CurrentActivity != "" {
		fmt.Fprintf(&b, "\n\n## %s's Current Activity\n\nAs %s, you're involved in the following activity: %s", name, name, st.CurrentActivity)
	}
	return b.String(), nil
}

func (d *Dispatcher) reply(ctx context.Context, st *state.TurnState, onToken func(string)) (string, error) {
	system, err := d.SystemPrompt(st)
	if err != nil {
		return "", err
	}
	req := llm.Request{System: system, Messages: llm.History(st.Messages)}
	var raw string
	if onToken != nil {
		raw, err = d.client.Stream(ctx, req, onToken)
	} else {
		raw, err = d.client.Complete(ctx, req)
	}
	if err != nil {
		return "", errs.NewCollaborator(errs.Generation, "reply call failed", err)
	}
	return StripStageDirections(raw), nil
}

func (d *Dispatcher) message(content string) state.Message {
	return state.Message{
		ID:        uuid.New().String(),
		Role:      state.RoleAssistant,
		Content:   content,
		CreatedAt: d.now(),
	}
}

func (d *Dispatcher) conversation(ctx context.Context, st *state.TurnState, onToken func(string)) (*Result, error) {
	text, err := d.reply(ctx, st, onToken)
	if err != nil {
		return nil, err
	}
	if text == "" {
		return nil, errs.NewCollaborator(errs.Generation, "reply is empty", nil)
	}
	return &Result{Reply: d.message(text)}, nil
}

func (d *Dispatcher) audio(ctx context.Context, st *state.TurnState) (*Result, error) {
	text, err := d.reply(ctx, st, nil)
	if err != nil {
		return nil, err
	}
	if err := speech.ValidateInput(text); err != nil {
		return nil, err
	}
	if d.speech == nil {
		return nil, errs.NewValidation(errs.TextToSpeech, "voice replies are not configured")
	}
	audio, err := d.speech.Synthesize(ctx, text)
	if err != nil {
		return nil, asComponent(errs.TextToSpeech, err)
	}
	return &Result{Reply: d.message(text), Audio: audio}, nil
}

// Scenario is the narrative reply and image prompt for an image turn.
type Scenario struct {
	Narrative   string `json:"narrative"`
	ImagePrompt string `json:"image_prompt"`
}

var scenarioSchema = llm.ObjectSchema("image_scenario", "A first-person narrative and a visual prompt", map[string]string{
	"narrative":    "AI's response to the user, in first person, describing the scene",
	"image_prompt": "Detailed visual prompt for generating the image of the scene",
})

var enhanceSchema = llm.ObjectSchema("enhanced_prompt", "An improved image generation prompt", map[string]string{
	"content": "The enhanced prompt",
})

func formatChatHistory(msgs []state.Message) string {
	lines := make([]string, len(msgs))
	for i, m := range msgs {
		role := "Human"
		if m.Role == state.RoleAssistant {
			role = "Ai"
		}
		lines[i] = role + ": " + m.Content
	}
	return strings.Join(lines, "\n")
}

// CreateScenario builds the image scenario from recent history.
func (d *Dispatcher) CreateScenario(ctx context.Context, history []state.Message) (*Scenario, error) {
	var sc Scenario
	err := d.client.CompleteJSON(ctx, llm.Request{
		System:      prompts.ImageScenario,
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: "# Recent Conversation\n" + formatChatHistory(history)}},
		Temperature: 0.4,
	}, scenarioSchema, &sc)
	if err != nil {
		return nil, errs.NewCollaborator(errs.TextToImage, "failed to create scenario", err)
	}
	return &sc, nil
}

func (d *Dispatcher) enhance(ctx context.Context, prompt string) (string, error) {
	var out struct {
		Content string `json:"content"`
	}
	err := d.client.CompleteJSON(ctx, llm.Request{
		System:      prompts.ImageEnhance,
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: prompt}},
		Temperature: 0.25,
	}, enhanceSchema, &out)
	if err != nil {
		return "", errs.NewCollaborator(errs.TextToImage, "failed to enhance prompt", err)
	}
	if strings.TrimSpace(out.Content) == "" {
		return prompt, nil
	}
	return out.Content, nil
}

func (d *Dispatcher) image(ctx context.Context, st *state.TurnState) (*Result, error) {
	if d.images == nil {
		return nil, errs.NewValidation(errs.TextToImage, "image generation is not configured")
	}
	sc, err := d.CreateScenario(ctx, st.Tail(d.cfg.ImageHistory))
	if err != nil {
		return nil, err
	}
	prompt := strings.TrimSpace(sc.ImagePrompt)
	if prompt == "" {
		return nil, errs.NewValidation(errs.TextToImage, "prompt cannot be empty")
	}
	if d.cfg.EnhancePrompt {
		if prompt, err = d.enhance(ctx, prompt); err != nil {
			return nil, err
		}
	}

	img, err := d.images.Generate(ctx, prompt)
	if err != nil {
		return nil, asComponent(errs.TextToImage, err)
	}
	ref, err := d.artifacts.Save(artifacts.KindImage, imageExt(img), img)
	if err != nil {
		return nil, errs.NewCollaborator(errs.TextToImage, "storing image", err)
	}

	narrative := StripStageDirections(sc.Narrative)
	if narrative == "" {
		narrative = StripStageDirections(sc.ImagePrompt)
	}
	return &Result{Reply: d.message(narrative), ImageRef: ref}, nil
}

func imageExt(b []byte) string {
	switch http.DetectContentType(b) {
	case "image/jpeg":
		return "jpg"
	case "image/webp":
		return "webp"
	default:
		return "png"
	}
}

// asComponent keeps typed errors and wraps anything else as a collaborator
// failure of component c.
func asComponent(c errs.Component, err error) error {
	var de *errs.Error
	if errors.As(err, &de) {
		if de.Component == c {
			return err
		}
		return &errs.Error{Kind: de.Kind, Component: c, Msg: de.Msg, Err: de.Err}
	}
	return errs.NewCollaborator(c, "call failed", err)
}
