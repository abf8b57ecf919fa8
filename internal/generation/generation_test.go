package generation

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aiox-platform/companion/internal/artifacts"
	"github.com/aiox-platform/companion/internal/errs"
	"github.com/aiox-platform/companion/internal/llm/llmtest"
	"github.com/aiox-platform/companion/internal/prompts"
	"github.com/aiox-platform/companion/internal/speech"
	"github.com/aiox-platform/companion/internal/state"
)

type fakeImages struct {
	calls   int
	prompts []string
	err     error
}

func (f *fakeImages) Generate(_ context.Context, prompt string) ([]byte, error) {
	f.calls++
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return nil, f.err
	}
	return []byte("\x89PNG\r\n\x1a\nimage"), nil
}

type fakeSpeech struct {
	calls int
	err   error
}

func (f *fakeSpeech) Synthesize(_ context.Context, text string) ([]byte, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return []byte("mp3:" + text), nil
}

type fixture struct {
	client *llmtest.Client
	images *fakeImages
	speech *fakeSpeech
	store  *artifacts.Store
	d      *Dispatcher
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	store, err := artifacts.NewStore(t.TempDir(), "")
	require.NoError(t, err)
	f := &fixture{
		client: &llmtest.Client{},
		images: &fakeImages{},
		speech: &fakeSpeech{},
		store:  store,
	}
	if cfg.Persona.Name == "" {
		cfg.Persona = prompts.Persona{Name: "Tela", Occupation: "engineer", City: "Porto"}
	}
	f.d = NewDispatcher(f.client, f.images, f.speech, store, cfg)
	return f
}

func turn(workflow state.Workflow, contents ...string) *state.TurnState {
	st := state.New("t1")
	for i, c := range contents {
		role := state.RoleUser
		if i%2 == 1 {
			role = state.RoleAssistant
		}
		st.Append(state.Message{ID: string(rune('a' + i)), Role: role, Content: c})
	}
	st.Workflow = workflow
	return st
}

func TestStripStageDirections(t *testing.T) {
	tests := []struct{ in, want string }{
		{"*smiles* Hello there", "Hello there"},
		{"Hi *waves* friend", "Hi  friend"},
		{"*laughs*", ""},
		{"no directions", "no directions"},
		{"a *b* c *d* e", "a  c  e"},
		{"unclosed *star", "unclosed *star"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StripStageDirections(tt.in), tt.in)
	}
}

func systemPrompt(t *testing.T, d *Dispatcher, st *state.TurnState) string {
	t.Helper()
	prompt, err := d.SystemPrompt(st)
	require.NoError(t, err)
	return prompt
}

func TestSystemPrompt(t *testing.T) {
	f := newFixture(t, Config{})
	st := turn(state.Conversation, "hi")

	base := systemPrompt(t, f.d, st)
	assert.NotContains(t, base, "Summary of conversation")
	assert.NotContains(t, base, "User Background")
	assert.NotContains(t, base, "Current Activity")

	st.Summary = "They discussed cats."
	st.MemoryContext = "- Has a cat named Miso"
	st.CurrentActivity = "Climbing at the gym"
	st.ApplyActivity = true
	full := systemPrompt(t, f.d, st)
	assert.Contains(t, full, "They discussed cats.")
	assert.Contains(t, full, "- Has a cat named Miso")
	assert.Contains(t, full, "Climbing at the gym")

	st.ApplyActivity = false
	assert.NotContains(t, systemPrompt(t, f.d, st), "Climbing at the gym")
}

func TestGenerate_Conversation(t *testing.T) {
	f := newFixture(t, Config{})
	f.client.Replies = []string{"*grins* Not much, just got back from climbing."}

	res, err := f.d.Generate(context.Background(), turn(state.Conversation, "what's up?"), nil)
	require.NoError(t, err)
	assert.Equal(t, "Not much, just got back from climbing.", res.Reply.Content)
	assert.Equal(t, state.RoleAssistant, res.Reply.Role)
	assert.NotEmpty(t, res.Reply.ID)
	assert.Empty(t, res.ImageRef)
	assert.Nil(t, res.Audio)
	assert.Zero(t, f.images.calls)
	assert.Zero(t, f.speech.calls)
}

func TestGenerate_ConversationStreams(t *testing.T) {
	f := newFixture(t, Config{})
	f.client.Replies = []string{"hello there friend"}

	var streamed strings.Builder
	res, err := f.d.Generate(context.Background(), turn(state.Conversation, "hi"), func(s string) { streamed.WriteString(s) })
	require.NoError(t, err)
	assert.Equal(t, "hello there friend", streamed.String())
	assert.Equal(t, "hello there friend", res.Reply.Content)
}

func TestGenerate_ConversationEmptyIsGenerationError(t *testing.T) {
	f := newFixture(t, Config{})
	f.client.Replies = []string{"*only a stage direction*"}

	_, err := f.d.Generate(context.Background(), turn(state.Conversation, "hi"), nil)
	assert.ErrorIs(t, err, errs.ErrGeneration)

	f.client.Err = errors.New("timeout")
	_, err = f.d.Generate(context.Background(), turn(state.Conversation, "hi"), nil)
	assert.ErrorIs(t, err, errs.ErrGeneration)
	assert.ErrorIs(t, err, errs.ErrCollaborator)
}

func TestGenerate_Image(t *testing.T) {
	f := newFixture(t, Config{})
	f.client.JSON = map[string]string{
		"image_scenario": `{"narrative":"*snaps a photo* Here's my lab right now!","image_prompt":"A bright robotics lab at noon"}`,
	}

	res, err := f.d.Generate(context.Background(), turn(state.Image, "1", "2", "3", "4", "5", "6", "show me your lab"), nil)
	require.NoError(t, err)
	assert.Equal(t, "Here's my lab right now!", res.Reply.Content)
	require.NotEmpty(t, res.ImageRef)
	assert.True(t, strings.HasSuffix(res.ImageRef, ".png"))
	assert.Equal(t, []string{"A bright robotics lab at noon"}, f.images.prompts)

	stored, err := f.store.Read(res.ImageRef)
	require.NoError(t, err)
	assert.NotEmpty(t, stored)

	// Only the last five messages feed the scenario.
	content := f.client.LastRequest().Messages[0].Content
	assert.NotContains(t, content, "Human: 1\n")
	assert.Contains(t, content, "Human: 3")
	assert.Contains(t, content, "Human: show me your lab")
}

func TestGenerate_ImageBlankPromptRejectedBeforeGeneration(t *testing.T) {
	f := newFixture(t, Config{})
	f.client.JSON = map[string]string{"image_scenario": `{"narrative":"here","image_prompt":"   "}`}

	_, err := f.d.Generate(context.Background(), turn(state.Image, "draw"), nil)
	assert.ErrorIs(t, err, errs.ErrValidation)
	assert.ErrorIs(t, err, errs.ErrTextToImage)
	assert.Zero(t, f.images.calls)
}

func TestGenerate_ImageFailuresAreTextToImageErrors(t *testing.T) {
	f := newFixture(t, Config{})
	f.client.JSON = map[string]string{"image_scenario": `{"narrative":"n","image_prompt":"p"}`}
	f.images.err = errors.New("quota exceeded")

	_, err := f.d.Generate(context.Background(), turn(state.Image, "draw"), nil)
	assert.ErrorIs(t, err, errs.ErrTextToImage)
	assert.ErrorIs(t, err, errs.ErrCollaborator)

	f.client.JSON = nil
	_, err = f.d.Generate(context.Background(), turn(state.Image, "draw"), nil)
	assert.ErrorIs(t, err, errs.ErrTextToImage)
}

func TestGenerate_ImageEnhancePrompt(t *testing.T) {
	f := newFixture(t, Config{EnhancePrompt: true})
	f.client.JSON = map[string]string{
		"image_scenario":  `{"narrative":"n","image_prompt":"a lab"}`,
		"enhanced_prompt": `{"content":"a sunlit robotics lab, 35mm, soft light"}`,
	}

	_, err := f.d.Generate(context.Background(), turn(state.Image, "draw"), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"a sunlit robotics lab, 35mm, soft light"}, f.images.prompts)
}

func TestGenerate_Audio(t *testing.T) {
	f := newFixture(t, Config{})
	f.client.Replies = []string{"Hey, it's me!"}

	res, err := f.d.Generate(context.Background(), turn(state.Audio, "send me a voice note"), nil)
	require.NoError(t, err)
	assert.Equal(t, "Hey, it's me!", res.Reply.Content)
	assert.Equal(t, []byte("mp3:Hey, it's me!"), res.Audio)
	assert.Equal(t, 1, f.speech.calls)
}

func TestGenerate_AudioValidation(t *testing.T) {
	tests := []struct {
		name  string
		reply string
	}{
		{"empty reply", "*sighs*"},
		{"too long", strings.Repeat("a", speech.MaxInputChars+1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, Config{})
			f.client.Replies = []string{tt.reply}

			_, err := f.d.Generate(context.Background(), turn(state.Audio, "talk to me"), nil)
			assert.ErrorIs(t, err, errs.ErrValidation)
			assert.ErrorIs(t, err, errs.ErrTextToSpeech)
			assert.Zero(t, f.speech.calls)
		})
	}
}

func TestGenerate_AudioSynthesisFailure(t *testing.T) {
	f := newFixture(t, Config{})
	f.client.Replies = []string{"hello"}
	f.speech.err = errors.New("503")

	_, err := f.d.Generate(context.Background(), turn(state.Audio, "talk"), nil)
	assert.ErrorIs(t, err, errs.ErrTextToSpeech)
	assert.ErrorIs(t, err, errs.ErrCollaborator)
}

func TestGenerate_UnconfiguredBackends(t *testing.T) {
	store, err := artifacts.NewStore(t.TempDir(), "")
	require.NoError(t, err)
	client := &llmtest.Client{Replies: []string{"hello"}}
	d := NewDispatcher(client, nil, nil, store, Config{})

	_, err = d.Generate(context.Background(), turn(state.Image, "draw me"), nil)
	assert.ErrorIs(t, err, errs.ErrValidation)
	assert.ErrorIs(t, err, errs.ErrTextToImage)
	assert.Zero(t, client.CallsFor("image_scenario"))

	_, err = d.Generate(context.Background(), turn(state.Audio, "talk"), nil)
	assert.ErrorIs(t, err, errs.ErrValidation)
	assert.ErrorIs(t, err, errs.ErrTextToSpeech)
}
