// Package thread serves the HTTP surface of a conversation thread.
package thread

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/aiox-platform/companion/internal/api"
	"github.com/aiox-platform/companion/internal/intake"
	"github.com/aiox-platform/companion/internal/state"
	"github.com/aiox-platform/companion/internal/workflow"
)

// MaxBodyBytes bounds a message request; base64 inflates media by a third.
const MaxBodyBytes = 48 << 20

// Engine runs turns and exposes persisted thread state.
type Engine interface {
	Run(ctx context.Context, threadID string, incoming state.Message, opts workflow.RunOptions) (*state.TurnState, error)
	State(ctx context.Context, threadID string) (*state.TurnState, error)
}

// Preparer converts request media into a user message.
type Preparer interface {
	Prepare(ctx context.Context, in intake.Input) (state.Message, error)
}

// ArtifactLinker resolves an artifact name to its public URL.
type ArtifactLinker interface {
	URL(name string) string
}

// Handler handles thread HTTP endpoints.
type Handler struct {
	engine    Engine
	intake    Preparer
	artifacts ArtifactLinker
	validate  *validator.Validate
}

// NewHandler creates a new thread handler.
func NewHandler(engine Engine, preparer Preparer, artifacts ArtifactLinker) *Handler {
	return &Handler{
		engine:    engine,
		intake:    preparer,
		artifacts: artifacts,
		validate:  validator.New(),
	}
}

// MessageRequest is the body of POST /threads/{threadID}/messages.
type MessageRequest struct {
	MessageID   string `json:"message_id" validate:"omitempty,max=128"`
	Text        string `json:"text" validate:"max=20000"`
	ImageBase64 string `json:"image_base64"`
	AudioBase64 string `json:"audio_base64"`
}

// MessageResponse is the outcome of one turn.
type MessageResponse struct {
	ThreadID    string `json:"thread_id"`
	MessageID   string `json:"message_id"`
	Workflow    string `json:"workflow"`
	Reply       string `json:"reply"`
	ImageURL    string `json:"image_url,omitempty"`
	AudioBase64 string `json:"audio_base64,omitempty"`
}

// ThreadResponse is the persisted view of a thread.
type ThreadResponse struct {
	ThreadID string          `json:"thread_id"`
	Summary  string          `json:"summary,omitempty"`
	Workflow string          `json:"workflow"`
	Messages []state.Message `json:"messages"`
	ImageURL string          `json:"image_url,omitempty"`
}

// PostMessage runs one turn synchronously and returns the reply.
func (h *Handler) PostMessage(w http.ResponseWriter, r *http.Request) {
	threadID := strings.TrimSpace(chi.URLParam(r, "threadID"))
	if threadID == "" {
		api.HandleError(w, api.NewBadRequestError("thread id is required"))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	var req MessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			api.HandleError(w, &api.AppError{Code: http.StatusRequestEntityTooLarge, Message: "request body too large"})
			return
		}
		api.HandleError(w, api.ErrBadRequest)
		return
	}

	if err := h.validate.Struct(req); err != nil {
		api.HandleError(w, api.NewValidationError(err.Error()))
		return
	}

	in := intake.Input{MessageID: req.MessageID, Text: req.Text}
	var err error
	if in.Image, err = decodeMedia(req.ImageBase64); err != nil {
		api.HandleError(w, api.NewBadRequestError("image_base64 is not valid base64"))
		return
	}
	if in.Audio, err = decodeMedia(req.AudioBase64); err != nil {
		api.HandleError(w, api.NewBadRequestError("audio_base64 is not valid base64"))
		return
	}

	msg, err := h.intake.Prepare(r.Context(), in)
	if err != nil {
		slog.Warn("preparing message", "error", err, "thread_id", threadID)
		api.HandleError(w, api.FromDomainError(err))
		return
	}

	st, err := h.engine.Run(r.Context(), threadID, msg, workflow.RunOptions{})
	if err != nil {
		if errors.Is(err, workflow.ErrThreadBusy) {
			api.HandleError(w, api.ErrThreadBusy)
			return
		}
		slog.Error("running turn", "error", err, "thread_id", threadID)
		api.HandleError(w, api.FromDomainError(err))
		return
	}

	resp := MessageResponse{
		ThreadID: threadID,
		Workflow: st.Workflow.String(),
	}
	if st.Replayed {
		resp.MessageID = msg.ID
		if reply, ok := st.ReplyTo(msg.ID); ok {
			resp.Reply = reply.Content
		}
	} else {
		if user, ok := st.LastUser(); ok {
			resp.MessageID = user.ID
		}
		if reply, ok := st.LastAssistant(); ok {
			resp.Reply = reply.Content
		}
	}
	if st.ImageRef != "" {
		resp.ImageURL = h.artifacts.URL(st.ImageRef)
	}
	if len(st.AudioBuffer) > 0 {
		resp.AudioBase64 = base64.StdEncoding.EncodeToString(st.AudioBuffer)
	}

	api.JSON(w, http.StatusOK, resp)
}

// Get returns the stored summary and recent messages of a thread.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	threadID := chi.URLParam(r, "threadID")

	st, err := h.engine.State(r.Context(), threadID)
	if err != nil {
		slog.Error("loading thread", "error", err, "thread_id", threadID)
		api.HandleError(w, api.ErrInternalServer)
		return
	}
	if st == nil {
		api.HandleError(w, api.NewNotFoundError("thread not found"))
		return
	}

	resp := ThreadResponse{
		ThreadID: st.ThreadID,
		Summary:  st.Summary,
		Workflow: st.Workflow.String(),
		Messages: st.Messages,
	}
	if resp.Messages == nil {
		resp.Messages = []state.Message{}
	}
	if st.ImageRef != "" {
		resp.ImageURL = h.artifacts.URL(st.ImageRef)
	}

	api.JSON(w, http.StatusOK, resp)
}

func decodeMedia(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	// Accept data URLs as sent by browsers.
	if strings.HasPrefix(s, "data:") {
		if _, payload, ok := strings.Cut(s, ","); ok {
			s = payload
		}
	}
	return base64.StdEncoding.DecodeString(s)
}
