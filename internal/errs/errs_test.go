package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_IsMatchesKindAndComponent(t *testing.T) {
	err := NewValidation(TextToSpeech, "input text cannot be empty")

	assert.ErrorIs(t, err, ErrValidation)
	assert.ErrorIs(t, err, ErrTextToSpeech)
	assert.NotErrorIs(t, err, ErrCollaborator)
	assert.NotErrorIs(t, err, ErrTextToImage)
	assert.ErrorIs(t, err, &Error{Kind: Validation, Component: TextToSpeech})
	assert.NotErrorIs(t, err, &Error{Kind: Collaborator, Component: TextToSpeech})
}

func TestError_IsThroughWrapping(t *testing.T) {
	cause := errors.New("connection reset")
	err := fmt.Errorf("generating image: %w", NewCollaborator(TextToImage, "failed to generate image", cause))

	assert.ErrorIs(t, err, ErrCollaborator)
	assert.ErrorIs(t, err, ErrTextToImage)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, Collaborator, KindOf(err))
	assert.Equal(t, TextToImage, ComponentOf(err))
}

func TestError_Message(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{"component and msg", NewValidation(TextToImage, "prompt cannot be empty"), "text_to_image: prompt cannot be empty"},
		{"with cause", NewCollaborator(SpeechToText, "transcription failed", errors.New("timeout")), "speech_to_text: transcription failed: timeout"},
		{"cause only", &Error{Kind: Collaborator, Err: errors.New("boom")}, "boom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestKindOf_NonDomainError(t *testing.T) {
	assert.Equal(t, "unknown", KindOf(errors.New("plain")).String())
	assert.Equal(t, Component(""), ComponentOf(errors.New("plain")))
}
