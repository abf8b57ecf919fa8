package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aiox-platform/companion/internal/artifacts"
	"github.com/aiox-platform/companion/internal/errs"
	"github.com/aiox-platform/companion/internal/intake"
	"github.com/aiox-platform/companion/internal/state"
	"github.com/aiox-platform/companion/internal/workflow"
)

type echoPreparer struct{}

func (echoPreparer) Prepare(_ context.Context, in intake.Input) (state.Message, error) {
	if len(in.Audio) > 0 {
		return state.Message{Role: state.RoleUser, Content: "transcribed " + string(in.Audio)}, nil
	}
	return state.Message{Role: state.RoleUser, Content: in.Text}, nil
}

type scriptedEngine struct {
	threads []string
	run     func(state.Message, workflow.RunOptions) (*state.TurnState, error)
}

func (e *scriptedEngine) Run(_ context.Context, threadID string, msg state.Message, opts workflow.RunOptions) (*state.TurnState, error) {
	e.threads = append(e.threads, threadID)
	return e.run(msg, opts)
}

func newSession(t *testing.T, engine *scriptedEngine) (*chatSession, *bytes.Buffer) {
	t.Helper()
	store, err := artifacts.NewStore(t.TempDir(), "/api/v1/artifacts")
	require.NoError(t, err)
	out := &bytes.Buffer{}
	return &chatSession{
		thread:    "local",
		intake:    echoPreparer{},
		engine:    engine,
		artifacts: store,
		readFile: func(path string) ([]byte, error) {
			if path == "missing.png" {
				return nil, os.ErrNotExist
			}
			return []byte("data:" + path), nil
		},
		out: out,
	}, out
}

func TestChatSession_ParseLine(t *testing.T) {
	s, _ := newSession(t, &scriptedEngine{})

	tests := []struct {
		name    string
		line    string
		want    *intake.Input
		wantErr error
	}{
		{"blank", "   ", nil, nil},
		{"text", "  hi there ", &intake.Input{Text: "hi there"}, nil},
		{"image with caption", "/image cat.png what is this?", &intake.Input{Text: "what is this?", Image: []byte("data:cat.png")}, nil},
		{"image only", "/image cat.png", &intake.Input{Image: []byte("data:cat.png")}, nil},
		{"voice", "/voice note.ogg", &intake.Input{Audio: []byte("data:note.ogg")}, nil},
		{"quit", "/quit", nil, errQuit},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.parseLine(tt.line)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestChatSession_ParseLineErrors(t *testing.T) {
	s, _ := newSession(t, &scriptedEngine{})

	_, err := s.parseLine("/image")
	assert.ErrorContains(t, err, "usage")

	_, err = s.parseLine("/image missing.png")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestChatSession_LoopStreamsAndPrintsMedia(t *testing.T) {
	engine := &scriptedEngine{run: func(msg state.Message, opts workflow.RunOptions) (*state.TurnState, error) {
		st := state.New("local")
		st.Append(msg)
		switch msg.Content {
		case "hi":
			opts.OnToken("Hey ")
			opts.OnToken("you!")
			st.Append(state.Message{Role: state.RoleAssistant, Content: "Hey you!"})
		case "transcribed data:note.ogg":
			st.Workflow = state.Audio
			st.Append(state.Message{Role: state.RoleAssistant, Content: "Here you go"})
			st.AudioBuffer = []byte("ID3")
		}
		return st, nil
	}}
	s, out := newSession(t, engine)

	err := s.loop(context.Background(), strings.NewReader("hi\n\n/voice note.ogg\n/quit\nignored\n"))
	require.NoError(t, err)

	text := out.String()
	assert.Contains(t, text, "Hey you!\n")
	assert.Equal(t, 1, strings.Count(text, "Hey you!"))
	assert.Contains(t, text, "Here you go\n")
	assert.Contains(t, text, "[audio] ")
	assert.Equal(t, []string{"local", "local"}, engine.threads)
}

func TestChatSession_LoopApologizesAndContinues(t *testing.T) {
	calls := 0
	engine := &scriptedEngine{run: func(msg state.Message, _ workflow.RunOptions) (*state.TurnState, error) {
		calls++
		if calls == 1 {
			return nil, errs.NewValidation(errs.TextToImage, "image generation is not configured")
		}
		if calls == 2 {
			return nil, errors.New("upstream down")
		}
		st := state.New("local")
		st.Append(state.Message{Role: state.RoleAssistant, Content: "ok"})
		return st, nil
	}}
	s, out := newSession(t, engine)

	require.NoError(t, s.loop(context.Background(), strings.NewReader("draw me\nagain\nthird\n")))
	text := out.String()
	assert.Contains(t, text, "Sorry, I can't do that: image generation is not configured.")
	assert.Contains(t, text, "something went wrong")
	assert.Contains(t, text, "ok\n")
}

func TestStageFilter(t *testing.T) {
	tests := []struct {
		name   string
		tokens []string
		want   string
	}{
		{"plain", []string{"Hey ", "you!"}, "Hey you!"},
		{"leading direction", []string{"*smi", "les* Hey", " there"}, "Hey there"},
		{"inline direction", []string{"I was *laughs* ", "out"}, "I was  out"},
		{"unclosed", []string{"ok *wink"}, "ok "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &stageFilter{}
			var got strings.Builder
			for _, tok := range tt.tokens {
				got.WriteString(f.Write(tok))
			}
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestChatSession_StreamHidesStageDirections(t *testing.T) {
	engine := &scriptedEngine{run: func(msg state.Message, opts workflow.RunOptions) (*state.TurnState, error) {
		opts.OnToken("*smiles* ")
		opts.OnToken("Hi!")
		st := state.New("local")
		st.Append(msg)
		st.Append(state.Message{Role: state.RoleAssistant, Content: "Hi!"})
		return st, nil
	}}
	s, out := newSession(t, engine)

	require.NoError(t, s.loop(context.Background(), strings.NewReader("hello\n")))
	assert.Equal(t, "> Hi!\n> ", out.String())
}

func TestChatSession_RenderImage(t *testing.T) {
	s, out := newSession(t, &scriptedEngine{})
	st := state.New("local")
	st.Append(state.Message{Role: state.RoleAssistant, Content: "look"})
	st.ImageRef = "image-1.png"

	s.render(st, false)
	assert.Equal(t, "look\n[image] "+s.artifacts.Path("image-1.png")+"\n", out.String())
}
