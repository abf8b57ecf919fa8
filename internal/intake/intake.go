// Package intake turns an inbound user message with optional media into the
// plain-text message the workflow consumes.
package intake

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/aiox-platform/companion/internal/errs"
	"github.com/aiox-platform/companion/internal/image"
	"github.com/aiox-platform/companion/internal/metrics"
	"github.com/aiox-platform/companion/internal/prompts"
	"github.com/aiox-platform/companion/internal/speech"
	"github.com/aiox-platform/companion/internal/state"
)

// Input is a raw inbound message. Audio, when present, replaces Text.
type Input struct {
	MessageID string
	Text      string
	Image     []byte
	Audio     []byte
}

type Intake struct {
	describer   image.Describer
	transcriber speech.Transcriber
	now         func() time.Time
}

// New creates an Intake. Either collaborator may be nil, in which case the
// corresponding media is rejected.
func New(describer image.Describer, transcriber speech.Transcriber) *Intake {
	return &Intake{describer: describer, transcriber: transcriber, now: time.Now}
}

// Prepare converts in into a user message.
func (i *Intake) Prepare(ctx context.Context, in Input) (state.Message, error) {
	text := strings.TrimSpace(in.Text)

	if len(in.Audio) > 0 {
		if i.transcriber == nil {
			return state.Message{}, errs.NewValidation(errs.SpeechToText, "voice messages are not supported")
		}
		transcript, err := i.transcriber.Transcribe(ctx, in.Audio)
		if err != nil {
			return state.Message{}, err
		}
		text = strings.TrimSpace(transcript)
	}

	if len(in.Image) > 0 {
		if desc, ok := i.describe(ctx, in.Image); ok {
			if text != "" {
				text += "\n"
			}
			text += "[Image Analysis: " + desc + "]"
		}
	}

	if text == "" {
		return state.Message{}, errs.NewValidation(errs.Generation, "message is empty")
	}
	return state.Message{
		ID:        in.MessageID,
		Role:      state.RoleUser,
		Content:   text,
		CreatedAt: i.now(),
	}, nil
}

func (i *Intake) describe(ctx context.Context, img []byte) (string, bool) {
	if i.describer == nil {
		return "", false
	}
	desc, err := i.describer.Describe(ctx, img, prompts.ImageAnalysis)
	if err != nil {
		metrics.SoftFailuresTotal.WithLabelValues(string(errs.ImageToText)).Inc()
		slog.Warn("intake: image analysis failed", "error", err)
		return "", false
	}
	desc = strings.TrimSpace(desc)
	return desc, desc != ""
}
