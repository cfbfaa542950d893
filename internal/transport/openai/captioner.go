package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/cardex/internal/domain"
	"github.com/kailas-cloud/cardex/internal/logger"
	"github.com/kailas-cloud/cardex/internal/metrics"
)

const (
	captionCapability = "caption"

	// DefaultCaptionAPIVersion is the Azure OpenAI API version for chat completions.
	DefaultCaptionAPIVersion = "2024-10-21"
	// DefaultCaptionDeployment is the vision-language deployment name.
	DefaultCaptionDeployment = "gpt-4o-card-descriptions"
	// DefaultCaptionTemperature is the sampling temperature for captions.
	DefaultCaptionTemperature = 0.6
	// DefaultCaptionMaxTokens caps the completion length.
	DefaultCaptionMaxTokens = 6553
)

const captionSystemPrompt = "Describe Pokémon TCG card artwork for semantic search. " +
	"Describe the scene in the card artwork, mentioning the Pokémon, what they are doing, " +
	"their interactions and the location they are in. " +
	`ONLY return a JSON object with a single key "description": {"description": "..."}. ` +
	"Describe the elements of the card a person could remember, in simple language, " +
	"to allow effective semantic search. " +
	`Return an empty description {"description": ""} if the image is not Pokémon TCG card artwork ` +
	"or you cannot access the image. " +
	"Return an empty description for simple items, energy cards, or cards without full artwork " +
	"(the artwork does not cover the entire card)."

// CaptionConfig extends Config with sampling settings.
type CaptionConfig struct {
	Config
	Temperature float32
	MaxTokens   int
}

// Captioner describes card artwork through an Azure OpenAI chat deployment.
type Captioner struct {
	client      *openai.Client
	deployment  string
	temperature float32
	maxTokens   int
	logger      *zap.Logger
}

// NewCaptioner creates a captioner. Missing endpoint or key yields a
// captioner whose calls fail with domain.ErrNotConfigured.
func NewCaptioner(cfg *CaptionConfig) *Captioner {
	c := cfg.Config
	if c.Deployment == "" {
		c.Deployment = DefaultCaptionDeployment
	}
	cp := &Captioner{
		client:      newAzureClient(&c, DefaultCaptionAPIVersion),
		deployment:  c.Deployment,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		logger:      loggerOrNop(cfg.Logger),
	}
	if cp.temperature <= 0 {
		cp.temperature = DefaultCaptionTemperature
	}
	if cp.maxTokens <= 0 {
		cp.maxTokens = DefaultCaptionMaxTokens
	}
	return cp
}

// Caption implements domain.Captioner.
func (c *Captioner) Caption(ctx context.Context, imageURL string) (string, error) {
	log := logger.FromContextOr(ctx, c.logger)

	if c.client == nil {
		metrics.ObserveGateway(captionCapability, metrics.OutcomeNotConfigured, 0)
		log.Error("caption model not configured (endpoint/key)")
		return "", fmt.Errorf("caption: %w: %w", domain.ErrUnavailable, domain.ErrNotConfigured)
	}

	req := openai.ChatCompletionRequest{
		Model: c.deployment,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: captionSystemPrompt},
			{Role: openai.ChatMessageRoleUser, MultiContent: []openai.ChatMessagePart{{
				Type:     openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{URL: imageURL},
			}}},
		},
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	}

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, req)
	duration := time.Since(start)

	if err != nil {
		err = parseAPIError("caption", err)
		metrics.ObserveGateway(captionCapability, metrics.OutcomeUnavailable, duration)
		log.Warn("caption request failed", zap.Error(err), zap.Duration("duration", duration))
		return "", err
	}
	if len(resp.Choices) == 0 {
		metrics.ObserveGateway(captionCapability, metrics.OutcomeUnavailable, duration)
		log.Warn("caption response has no choices")
		return "", fmt.Errorf("caption: no choices: %w", domain.ErrUnavailable)
	}

	description, ok := parseDescription(resp.Choices[0].Message.Content)
	if !ok {
		metrics.ObserveGateway(captionCapability, metrics.OutcomeNotApplicable, duration)
		log.Info("caption not applicable", zap.String("image", imageURL))
		return "", fmt.Errorf("caption: %w", domain.ErrNotApplicable)
	}

	metrics.ObserveGateway(captionCapability, metrics.OutcomeSuccess, duration)
	return description, nil
}

// HealthCheck verifies configuration and API reachability via ListModels.
func (c *Captioner) HealthCheck(ctx context.Context) error {
	return healthCheck(ctx, c.client, "caption")
}

// parseDescription reads {"description": "..."} strictly. Parse failures,
// empty strings and placeholder values report false.
func parseDescription(content string) (string, bool) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", false
	}
	var payload struct {
		Description *string `json:"description"`
	}
	if err := json.Unmarshal([]byte(content), &payload); err != nil {
		return "", false
	}
	if payload.Description == nil {
		return "", false
	}
	d := strings.TrimSpace(*payload.Description)
	switch strings.ToLower(d) {
	case "", "null", "none", "n/a":
		return "", false
	}
	return d, true
}
