// Package image generates images from prompts and describes images as text.
package image

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/shared"
	"google.golang.org/genai"

	"github.com/aiox-platform/companion/internal/errs"
	"github.com/aiox-platform/companion/internal/llm"
	"github.com/aiox-platform/companion/internal/prompts"
)

// Generator renders a prompt into image bytes.
type Generator interface {
	Generate(ctx context.Context, prompt string) ([]byte, error)
}

// Describer analyses an image and returns a text description.
type Describer interface {
	Describe(ctx context.Context, img []byte, prompt string) (string, error)
}

// TextToImage generates images with the Gemini Imagen models.
type TextToImage struct {
	client      *genai.Client
	model       string
	aspectRatio string
}

func NewTextToImage(ctx context.Context, apiKey, model, aspectRatio string) (*TextToImage, error) {
	if apiKey == "" {
		return nil, errs.NewValidation(errs.TextToImage, "gemini API key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, errs.NewCollaborator(errs.TextToImage, "creating genai client", err)
	}
	return &TextToImage{client: client, model: model, aspectRatio: aspectRatio}, nil
}

// Generate rejects a blank prompt before calling the backend.
func (t *TextToImage) Generate(ctx context.Context, prompt string) ([]byte, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, errs.NewValidation(errs.TextToImage, "prompt cannot be empty")
	}
	cfg := &genai.GenerateImagesConfig{NumberOfImages: 1}
	if t.aspectRatio != "" {
		cfg.AspectRatio = t.aspectRatio
	}
	resp, err := t.client.Models.GenerateImages(ctx, t.model, prompt, cfg)
	if err != nil {
		return nil, errs.NewCollaborator(errs.TextToImage, "failed to generate image", err)
	}
	if len(resp.GeneratedImages) == 0 || resp.GeneratedImages[0].Image == nil || len(resp.GeneratedImages[0].Image.ImageBytes) == 0 {
		return nil, errs.NewCollaborator(errs.TextToImage, "no image returned", nil)
	}
	return resp.GeneratedImages[0].Image.ImageBytes, nil
}

// ImageToText describes images with a vision-capable chat model.
type ImageToText struct {
	client openai.Client
	model  string
}

func NewImageToText(apiKey, baseURL, model string) *ImageToText {
	return &ImageToText{client: llm.NewSDKClient(apiKey, baseURL), model: model}
}

func (d *ImageToText) Describe(ctx context.Context, img []byte, prompt string) (string, error) {
	if len(img) == 0 {
		return "", errs.NewValidation(errs.ImageToText, "image data cannot be empty")
	}
	if prompt == "" {
		prompt = prompts.ImageAnalysis
	}
	parts := []openai.ChatCompletionContentPartUnionParam{
		openai.TextContentPart(prompt),
		openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{URL: DataURL(img)}),
	}
	resp, err := d.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:     shared.ChatModel(d.model),
		Messages:  []openai.ChatCompletionMessageParamUnion{openai.UserMessage(parts)},
		MaxTokens: openai.Int(1000),
	})
	if err != nil {
		return "", errs.NewCollaborator(errs.ImageToText, "failed to analyze image", err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", errs.NewCollaborator(errs.ImageToText, "no response received from the vision model", nil)
	}
	return resp.Choices[0].Message.Content, nil
}

// DataURL encodes image bytes as a base64 data URL, sniffing the MIME type.
func DataURL(img []byte) string {
	mime := http.DetectContentType(img)
	if !strings.HasPrefix(mime, "image/") {
		mime = "image/jpeg"
	}
	return fmt.Sprintf("data:%s;base64,%s", mime, base64.StdEncoding.EncodeToString(img))
}
