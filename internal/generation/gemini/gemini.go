// Package gemini calls Google's Gemini models through the genai SDK.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"neurodoc/internal/domain"
)

const (
	DefaultBaseURL    = "https://generativelanguage.googleapis.com/"
	DefaultAPIVersion = "v1beta"
	DefaultModel      = "gemini-1.5-pro"
)

// Config configures the Gemini client.
type Config struct {
	BaseURL    string
	APIVersion string
	APIKeyEnv  string
	Model      string
	Timeout    time.Duration
}

// Client implements domain.Generator against the Gemini API.
type Client struct {
	client *genai.Client
	model  string
	log    *zap.Logger
}

func NewClient(ctx context.Context, cfg Config, log *zap.Logger) (*Client, error) {
	if cfg.APIKeyEnv == "" {
		cfg.APIKeyEnv = "GEMINI_API_KEY"
	}
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" {
		return nil, fmt.Errorf("%w: missing API key in env %s", domain.ErrConfiguration, cfg.APIKeyEnv)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = DefaultAPIVersion
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	timeout := cfg.Timeout
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     key,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{},
		HTTPOptions: genai.HTTPOptions{
			BaseURL:    cfg.BaseURL,
			APIVersion: cfg.APIVersion,
			Timeout:    &timeout,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: gemini client: %v", domain.ErrConfiguration, err)
	}
	return &Client{client: client, model: cfg.Model, log: log}, nil
}

func (c *Client) Name() string { return "gemini" }

// Generate sends every prompt part as a text part of one user turn and returns the trimmed reply.
func (c *Client) Generate(ctx context.Context, parts ...string) (string, error) {
	if len(parts) == 0 {
		return "", fmt.Errorf("%w: empty prompt", domain.ErrGeneration)
	}
	texts := make([]*genai.Part, len(parts))
	for i, p := range parts {
		texts[i] = genai.NewPartFromText(p)
	}
	contents := []*genai.Content{genai.NewContentFromParts(texts, genai.RoleUser)}

	start := time.Now()
	resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, nil)
	if err != nil {
		var apiErr genai.APIError
		if errors.As(err, &apiErr) {
			return "", fmt.Errorf("%w: gemini %d %s: %s", domain.ErrGeneration, apiErr.Code, apiErr.Status, apiErr.Message)
		}
		return "", fmt.Errorf("%w: %v", domain.ErrGeneration, err)
	}
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return "", fmt.Errorf("%w: prompt blocked: %s", domain.ErrGeneration, resp.PromptFeedback.BlockReason)
	}
	if len(resp.Candidates) == 0 {
		return "", fmt.Errorf("%w: no candidates returned", domain.ErrGeneration)
	}

	c.log.Debug("gemini generate",
		zap.String("model", c.model),
		zap.Int("parts", len(parts)),
		zap.Duration("took", time.Since(start)),
		zap.String("finish_reason", string(resp.Candidates[0].FinishReason)))
	return strings.TrimSpace(resp.Text()), nil
}
