// Package speech converts between text and audio.
package speech

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/openai/openai-go"

	"github.com/aiox-platform/companion/internal/errs"
	"github.com/aiox-platform/companion/internal/llm"
)

// MaxInputChars is the longest text accepted for synthesis.
const MaxInputChars = 5000

// Synthesizer turns text into audio bytes.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// Transcriber turns audio bytes into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte) (string, error)
}

// ValidateInput checks text before any synthesis call.
func ValidateInput(text string) error {
	if strings.TrimSpace(text) == "" {
		return errs.NewValidation(errs.TextToSpeech, "input text cannot be empty")
	}
	if utf8.RuneCountInString(text) > MaxInputChars {
		return errs.NewValidation(errs.TextToSpeech, fmt.Sprintf("input text exceeds maximum length of %d characters", MaxInputChars))
	}
	return nil
}

// TextToSpeech synthesizes MP3 audio with the speech API.
type TextToSpeech struct {
	client openai.Client
	model  string
	voice  string
}

func NewTextToSpeech(apiKey, baseURL, model, voice string) *TextToSpeech {
	return &TextToSpeech{client: llm.NewSDKClient(apiKey, baseURL), model: model, voice: voice}
}

func (s *TextToSpeech) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if err := ValidateInput(text); err != nil {
		return nil, err
	}
	resp, err := s.client.Audio.Speech.New(ctx, openai.AudioSpeechNewParams{
		Input:          text,
		Model:          openai.SpeechModel(s.model),
		Voice:          openai.AudioSpeechNewParamsVoice(s.voice),
		ResponseFormat: openai.AudioSpeechNewParamsResponseFormatMP3,
	})
	if err != nil {
		return nil, errs.NewCollaborator(errs.TextToSpeech, "text-to-speech conversion failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errs.NewCollaborator(errs.TextToSpeech, fmt.Sprintf("unexpected status %d", resp.StatusCode), nil)
	}
	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errs.NewCollaborator(errs.TextToSpeech, "reading audio", err)
	}
	if len(audio) == 0 {
		return nil, errs.NewCollaborator(errs.TextToSpeech, "generated audio is empty", nil)
	}
	return audio, nil
}

// SpeechToText transcribes audio with a Whisper-compatible endpoint.
type SpeechToText struct {
	client openai.Client
	model  string
}

func NewSpeechToText(apiKey, baseURL, model string) *SpeechToText {
	return &SpeechToText{client: llm.NewSDKClient(apiKey, baseURL), model: model}
}

func (s *SpeechToText) Transcribe(ctx context.Context, audio []byte) (string, error) {
	if len(audio) == 0 {
		return "", errs.NewValidation(errs.SpeechToText, "audio data cannot be empty")
	}
	name, mime := sniffAudio(audio)
	resp, err := s.client.Audio.Transcriptions.New(ctx, openai.AudioTranscriptionNewParams{
		File:  openai.File(bytes.NewReader(audio), name, mime),
		Model: openai.AudioModel(s.model),
	})
	if err != nil {
		return "", errs.NewCollaborator(errs.SpeechToText, "speech-to-text conversion failed", err)
	}
	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return "", errs.NewCollaborator(errs.SpeechToText, "transcription result is empty", nil)
	}
	return text, nil
}

func sniffAudio(b []byte) (name, mime string) {
	switch {
	case bytes.HasPrefix(b, []byte("RIFF")):
		return "audio.wav", "audio/wav"
	case bytes.HasPrefix(b, []byte("OggS")):
		return "audio.ogg", "audio/ogg"
	case bytes.HasPrefix(b, []byte("fLaC")):
		return "audio.flac", "audio/flac"
	case len(b) > 8 && string(b[4:8]) == "ftyp":
		return "audio.m4a", "audio/mp4"
	default:
		return "audio.mp3", "audio/mpeg"
	}
}
