package vision

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
	"tour-video-backend/internal/media"
)

// FallbackPrompt is used whenever a caption cannot be derived.
const FallbackPrompt = "Short, cinematic shot with warm lighting and smooth, elegant camera movement."

const deriveInstructions = "You write short, reliable camera-movement prompts for an image-to-video model from real estate photos. " +
	"Prefer one primary movement such as push in, pull back, orbit or slide. " +
	"Interiors use dolly or steadicam movement; exteriors may use simple drone movement. " +
	"Reference only what is clearly visible and never invent unseen rooms or objects. " +
	"Keep the prompt short, literal and precise."

const improveInstructions = "You improve prompts for an image-to-video model. Rewrite the prompt concisely in at most two sentences, " +
	"keep the original intent, strictly integrate the feedback and avoid filler."

var errNotConfigured = errors.New("vision client is not configured")

type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

type Config struct {
	APIKey       string
	BaseURL      string
	Model        string
	ImproveModel string
	Timeout      time.Duration
	Logger       *zap.Logger
}

// Deriver produces generation prompts from images and folds feedback into
// existing prompts. Neither operation ever fails; errors degrade to fixed text.
type Deriver struct {
	client       chatCompleter
	model        string
	improveModel string
	timeout      time.Duration
	logger       *zap.Logger
}

func NewDeriver(cfg Config) *Deriver {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	d := &Deriver{
		model:        cfg.Model,
		improveModel: cfg.ImproveModel,
		timeout:      timeout,
		logger:       logger,
	}
	if d.improveModel == "" {
		d.improveModel = d.model
	}
	if cfg.APIKey != "" {
		clientConfig := openai.DefaultConfig(cfg.APIKey)
		if cfg.BaseURL != "" {
			clientConfig.BaseURL = cfg.BaseURL
		}
		clientConfig.HTTPClient = &http.Client{Timeout: timeout}
		d.client = openai.NewClientWithConfig(clientConfig)
	}
	return d
}

// withClient swaps the completion backend.
func (d *Deriver) withClient(client chatCompleter) *Deriver {
	d.client = client
	return d
}

// Derive returns a prompt describing camera movement for the image.
func (d *Deriver) Derive(ctx context.Context, image []byte) string {
	prompt, err := d.derive(ctx, image)
	if err != nil {
		d.logger.Warn("prompt derivation failed, using fallback", zap.Error(err))
		return FallbackPrompt
	}
	return prompt
}

func (d *Deriver) derive(ctx context.Context, image []byte) (string, error) {
	if d.client == nil {
		return "", errNotConfigured
	}
	if len(image) == 0 {
		return "", fmt.Errorf("empty image")
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	resp, err := d.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       d.model,
		Temperature: 0.8,
		MaxTokens:   120,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: deriveInstructions},
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: "Analyze this image and output the video prompt."},
					{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{
						URL:    media.DataURL(image),
						Detail: openai.ImageURLDetailLow,
					}},
				},
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	return firstChoice(resp)
}

// Improve rewrites original to incorporate feedback.
func (d *Deriver) Improve(ctx context.Context, original, feedback string) string {
	improved, err := d.improve(ctx, original, feedback)
	if err != nil {
		d.logger.Warn("prompt improvement failed, merging feedback", zap.Error(err))
		return MergeFeedback(original, feedback)
	}
	return improved
}

func (d *Deriver) improve(ctx context.Context, original, feedback string) (string, error) {
	if d.client == nil {
		return "", errNotConfigured
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	resp, err := d.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       d.improveModel,
		Temperature: 0.6,
		MaxTokens:   160,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: improveInstructions},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: fmt.Sprintf("Original prompt: %s\nUser feedback: %s\nRewrite the prompt.", original, feedback),
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	return firstChoice(resp)
}

// MergeFeedback is the deterministic fallback for Improve.
func MergeFeedback(original, feedback string) string {
	return strings.TrimSpace(fmt.Sprintf("%s Incorporate this revision: %s.", original, feedback))
}

func firstChoice(resp openai.ChatCompletionResponse) (string, error) {
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices returned")
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", fmt.Errorf("empty completion")
	}
	return text, nil
}
