package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/applyflow/applyflow/internal/logger"
)

const (
	defaultModel      = "gemini-2.5-flash"
	defaultMaxRetries = 2
	retryBaseDelay    = 2 * time.Second
)

// Client wraps the Google GenAI client to provide simple prompt-based
// completions with bounded retries.
type Client struct {
	client     *genai.Client
	modelName  string
	maxRetries int
	maxLogLen  int
	logger     *zap.Logger
}

// New creates a Client configured for the Gemini API backend.
func New(ctx context.Context, apiKey, model string, maxRetries, maxLogLength int, log *zap.Logger) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	cfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	if model = strings.TrimSpace(model); model == "" {
		model = defaultModel
	}

	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}

	if maxLogLength <= 0 {
		maxLogLength = 200
	}

	return &Client{
		client:     client,
		modelName:  model,
		maxRetries: maxRetries,
		maxLogLen:  maxLogLength,
		logger:     logger.WithAIFields(log, "gemini", model),
	}, nil
}

// Complete sends the prompt to Gemini and returns the first textual response.
// Transient errors are retried with a linear delay up to the configured cap.
// The caller bounds the overall latency through ctx.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	if c == nil || c.client == nil {
		return "", errors.New("gemini client is not initialized")
	}

	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", errors.New("prompt must not be empty")
	}

	c.logger.Debug("gemini generate content request",
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", logger.TruncateForLog(prompt, c.maxLogLen)),
	)

	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		output, err := c.generate(ctx, prompt)
		if err == nil {
			c.logger.Debug("gemini generate content response",
				zap.Int("response_length", utf8.RuneCountInString(output)),
				zap.String("response_preview", logger.TruncateForLog(output, c.maxLogLen)),
			)
			return output, nil
		}

		lastErr = err
		if ctx.Err() != nil {
			return "", ctx.Err()
		}

		c.logger.Warn("gemini request failed",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", c.maxRetries),
			zap.Error(err),
		)

		if attempt < c.maxRetries {
			timer := time.NewTimer(retryBaseDelay * time.Duration(attempt))
			select {
			case <-ctx.Done():
				timer.Stop()
				return "", ctx.Err()
			case <-timer.C:
			}
		}
	}

	return "", lastErr
}

func (c *Client) generate(ctx context.Context, prompt string) (string, error) {
	resp, err := c.client.Models.GenerateContent(ctx, c.modelName, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}

	var builder strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil {
				continue
			}
			text := strings.TrimSpace(part.Text)
			if text == "" {
				continue
			}
			if builder.Len() > 0 {
				builder.WriteString("\n")
			}
			builder.WriteString(text)
		}
	}

	output := strings.TrimSpace(builder.String())
	if output == "" {
		return "", errors.New("gemini api returned empty response")
	}

	return output, nil
}

// Model returns the configured model identifier.
func (c *Client) Model() string {
	if c == nil {
		return ""
	}
	return c.modelName
}
