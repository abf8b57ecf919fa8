package intake

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aiox-platform/companion/internal/errs"
	"github.com/aiox-platform/companion/internal/state"
)

type stubDescriber struct {
	desc  string
	err   error
	calls int
}

func (s *stubDescriber) Describe(context.Context, []byte, string) (string, error) {
	s.calls++
	return s.desc, s.err
}

type stubTranscriber struct {
	text string
	err  error
}

func (s *stubTranscriber) Transcribe(context.Context, []byte) (string, error) {
	return s.text, s.err
}

func TestPrepare(t *testing.T) {
	tests := []struct {
		name        string
		in          Input
		describer   *stubDescriber
		transcriber *stubTranscriber
		want        string
		wantErr     error
	}{
		{
			name: "text only",
			in:   Input{MessageID: "m1", Text: "  hello  "},
			want: "hello",
		},
		{
			name:      "text and image",
			in:        Input{Text: "look at this", Image: []byte("img")},
			describer: &stubDescriber{desc: "A cat on a sofa"},
			want:      "look at this\n[Image Analysis: A cat on a sofa]",
		},
		{
			name:      "image only",
			in:        Input{Image: []byte("img")},
			describer: &stubDescriber{desc: "A sunset"},
			want:      "[Image Analysis: A sunset]",
		},
		{
			name:      "image analysis failure keeps text",
			in:        Input{Text: "look", Image: []byte("img")},
			describer: &stubDescriber{err: errors.New("vision down")},
			want:      "look",
		},
		{
			name:      "image analysis failure without text",
			in:        Input{Image: []byte("img")},
			describer: &stubDescriber{err: errors.New("vision down")},
			wantErr:   errs.ErrValidation,
		},
		{
			name:        "audio replaces text",
			in:          Input{Text: "ignored", Audio: []byte("ogg")},
			transcriber: &stubTranscriber{text: "what are you doing today?"},
			want:        "what are you doing today?",
		},
		{
			name:        "transcription failure",
			in:          Input{Audio: []byte("ogg")},
			transcriber: &stubTranscriber{err: errs.NewCollaborator(errs.SpeechToText, "call failed", errors.New("503"))},
			wantErr:     errs.ErrSpeechToText,
		},
		{
			name:    "audio without transcriber",
			in:      Input{Audio: []byte("ogg")},
			wantErr: errs.ErrSpeechToText,
		},
		{
			name:    "empty",
			in:      Input{Text: "   "},
			wantErr: errs.ErrValidation,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var it *Intake
			switch {
			case tt.describer != nil && tt.transcriber != nil:
				it = New(tt.describer, tt.transcriber)
			case tt.describer != nil:
				it = New(tt.describer, nil)
			case tt.transcriber != nil:
				it = New(nil, tt.transcriber)
			default:
				it = New(nil, nil)
			}

			msg, err := it.Prepare(context.Background(), tt.in)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, msg.Content)
			assert.Equal(t, state.RoleUser, msg.Role)
			assert.Equal(t, tt.in.MessageID, msg.ID)
			assert.False(t, msg.CreatedAt.IsZero())
		})
	}
}
