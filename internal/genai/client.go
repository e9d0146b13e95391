package genai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gemini-1.5-flash"

// geminiClient implements the LLMClient interface using the Google Gemini API.
type geminiClient struct {
	client *genai.Client
	cfg    Config
}

// LLMClient defines the interface for interacting with a generative AI model.
type LLMClient interface {
	// GenerateText sends prompt to the model and returns the first text part of the reply.
	// Quota and rate-limit failures are returned as *CapacityError.
	GenerateText(ctx context.Context, prompt string) (string, error)

	// IsAPIKeyValid checks if the configured API key is functional.
	IsAPIKeyValid(ctx context.Context) error

	// Close cleans up any resources used by the client.
	Close() error
}

// Config holds configuration for the GenAI client.
type Config struct {
	APIKey      string
	Model       string
	Temperature float32
}

// CapacityError marks a generation failure caused by exhausted quota or rate limiting.
// Callers may retry it after a delay.
type CapacityError struct {
	Msg string
	Err error
}

func (e *CapacityError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *CapacityError) Unwrap() error {
	return e.Err
}

// IsCapacityError reports whether err is, or wraps, a *CapacityError.
func IsCapacityError(err error) bool {
	var capErr *CapacityError
	return errors.As(err, &capErr)
}

// NewClient creates a new Gemini client.
func NewClient(ctx context.Context, cfg Config) (LLMClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("cannot create Gemini client: API key is missing")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	if cfg.Model == "" {
		cfg.Model = DefaultModel
		zap.S().Infof("Gemini model not specified, defaulting to %s", cfg.Model)
	}

	return &geminiClient{
		client: client,
		cfg:    cfg,
	}, nil
}

// Close cleans up the underlying Gemini client.
func (c *geminiClient) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// IsAPIKeyValid checks if the Gemini API key is valid by listing models.
func (c *geminiClient) IsAPIKeyValid(ctx context.Context) error {
	if c.client == nil {
		return fmt.Errorf("gemini client not initialized (likely missing API key)")
	}

	modelIterator := c.client.ListModels(ctx)
	_, err := modelIterator.Next() // Attempt to list one model
	if err != nil {
		if st, ok := status.FromError(err); ok {
			if st.Code() == codes.Unauthenticated || st.Code() == codes.PermissionDenied {
				return fmt.Errorf("invalid Gemini API key or insufficient permissions: %w", err)
			}
		}
		return fmt.Errorf("failed to verify Gemini API key by listing models: %w", err)
	}
	return nil
}

// GenerateText generates text for prompt using the Gemini API.
func (c *geminiClient) GenerateText(ctx context.Context, prompt string) (string, error) {
	if c.client == nil {
		return "", fmt.Errorf("gemini client not initialized")
	}

	model := c.client.GenerativeModel(c.cfg.Model)
	if c.cfg.Temperature > 0 {
		model.SetTemperature(c.cfg.Temperature)
	}

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", classifyError(err)
	}

	text, err := getFirstTextPart(resp)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// classifyError wraps quota and rate-limit failures in a CapacityError.
func classifyError(err error) error {
	if st, ok := status.FromError(err); ok && st.Code() == codes.ResourceExhausted {
		return &CapacityError{Msg: "Gemini API capacity exceeded", Err: err}
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusTooManyRequests {
		return &CapacityError{Msg: "Gemini API rate limit reached", Err: err}
	}
	return fmt.Errorf("Gemini API call failed: %w", err)
}

// getFirstTextPart extracts the first text part from a Gemini response.
func getFirstTextPart(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		finishReason := "unknown"
		safetyRatings := "none"
		if resp != nil && len(resp.Candidates) > 0 {
			finishReason = resp.Candidates[0].FinishReason.String()
			if resp.Candidates[0].SafetyRatings != nil {
				safetyRatings = fmt.Sprintf("%v", resp.Candidates[0].SafetyRatings)
			}
		}
		return "", fmt.Errorf("empty or incomplete response from Gemini API. FinishReason: %s, SafetyRatings: %s", finishReason, safetyRatings)
	}
	part := resp.Candidates[0].Content.Parts[0]
	text, ok := part.(genai.Text)
	if !ok {
		return "", fmt.Errorf("unexpected response part type: %T", part)
	}
	return string(text), nil
}
