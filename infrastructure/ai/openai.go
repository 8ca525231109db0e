package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"signalwatcher/domain/core/entities"
	"signalwatcher/domain/core/valueobjects"
	"signalwatcher/pkg/observability"

	"github.com/xeipuuv/gojsonschema"
	"go.uber.org/zap"
)

// OpenAIProviderName identifies the OpenAI analyzer in logs and metrics
const OpenAIProviderName = "openai"

const (
	defaultOpenAIBaseURL = "https://api.openai.com/v1"
	defaultOpenAIModel   = "gpt-4o-mini"
	openAITemperature    = 0.3
	openAIMaxTokens      = 300

	defaultSummary  = "Analysis completed"
	defaultSeverity = valueobjects.SeverityMedium
	defaultAction   = "Monitor the situation"
)

const analysisSchema = `{
	"type": "object",
	"properties": {
		"summary":  {"type": "string"},
		"severity": {"type": "string", "enum": ["", "LOW", "MEDIUM", "HIGH", "CRITICAL"]},
		"action":   {"type": "string"}
	}
}`

const promptTemplate = `
Analyze the following system event and provide:
1. A concise summary (1-2 sentences)
2. Severity assessment (LOW, MEDIUM, HIGH, CRITICAL)
3. Recommended next action (1-2 sentences)

Event:
Title: %s
Description: %s
Current Severity: %s

Respond in JSON format:
{
  "summary": "string",
  "severity": "LOW|MEDIUM|HIGH|CRITICAL",
  "action": "string"
}
`

// OpenAIConfig configures the OpenAI analyzer
type OpenAIConfig struct {
	APIKey     string
	Model      string
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// OpenAIAnalyzer calls the chat completions API and expects a JSON object
// with summary, severity and action
type OpenAIAnalyzer struct {
	apiKey  string
	model   string
	url     string
	client  *http.Client
	schema  *gojsonschema.Schema
	logger  *zap.Logger
	metrics *observability.Registry
}

// NewOpenAIAnalyzer creates the OpenAI analyzer
func NewOpenAIAnalyzer(cfg OpenAIConfig, logger *zap.Logger, metrics *observability.Registry) (*OpenAIAnalyzer, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}
	if cfg.Model == "" {
		cfg.Model = defaultOpenAIModel
	}

	client := cfg.HTTPClient
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}

	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(analysisSchema))
	if err != nil {
		return nil, fmt.Errorf("failed to load analysis schema: %w", err)
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	return &OpenAIAnalyzer{
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		url:     buildURL(cfg.BaseURL),
		client:  client,
		schema:  schema,
		logger:  logger.With(zap.String("component", "openai")),
		metrics: metrics,
	}, nil
}

// buildURL constructs the chat completions endpoint
func buildURL(baseURL string) string {
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	baseURL = strings.TrimSuffix(baseURL, "/")
	if strings.HasSuffix(baseURL, "/chat/completions") {
		return baseURL
	}
	return baseURL + "/chat/completions"
}

// Name implements ports.Analyzer
func (a *OpenAIAnalyzer) Name() string { return OpenAIProviderName }

type chatRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	Temperature    float64           `json:"temperature"`
	MaxTokens      int               `json:"max_tokens"`
	ResponseFormat map[string]string `json:"response_format"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

type analysisPayload struct {
	Summary  string `json:"summary"`
	Severity string `json:"severity"`
	Action   string `json:"action"`
}

// AnalyzeEvent implements ports.Analyzer
func (a *OpenAIAnalyzer) AnalyzeEvent(ctx context.Context, event entities.EventSnapshot) (*entities.AnalysisResult, error) {
	body, err := json.Marshal(chatRequest{
		Model: a.model,
		Messages: []chatMessage{{
			Role:    "user",
			Content: fmt.Sprintf(promptTemplate, event.Title, event.Description, event.Severity),
		}},
		Temperature:    openAITemperature,
		MaxTokens:      openAIMaxTokens,
		ResponseFormat: map[string]string{"type": "json_object"},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal openai request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create openai request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.apiKey)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, NewTransientError(fmt.Errorf("openai request failed: %w", err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, NewTransientError(fmt.Errorf("read openai response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		statusErr := fmt.Errorf("openai returned status %d: %s", resp.StatusCode, truncate(string(respBody), 200))
		a.logger.Error("OpenAI API error", zap.Int("status", resp.StatusCode), zap.Error(statusErr))
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return nil, NewTransientError(statusErr)
		}
		return nil, statusErr
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("parse openai response: %w", err)
	}

	if a.metrics != nil && parsed.Usage.TotalTokens > 0 {
		a.metrics.Increment(observability.AITokensUsed, float64(parsed.Usage.TotalTokens),
			observability.Labels{"provider": OpenAIProviderName, "model": a.model})
	}

	if len(parsed.Choices) == 0 || strings.TrimSpace(parsed.Choices[0].Message.Content) == "" {
		return nil, errors.New("no response from OpenAI")
	}

	return a.decodeAnalysis(parsed.Choices[0].Message.Content)
}

func (a *OpenAIAnalyzer) decodeAnalysis(content string) (*entities.AnalysisResult, error) {
	result, err := a.schema.Validate(gojsonschema.NewStringLoader(content))
	if err != nil {
		return nil, fmt.Errorf("openai content is not valid JSON: %w", err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return nil, fmt.Errorf("openai content violates schema: %s", strings.Join(msgs, "; "))
	}

	var payload analysisPayload
	if err := json.Unmarshal([]byte(content), &payload); err != nil {
		return nil, fmt.Errorf("decode openai content: %w", err)
	}

	out := &entities.AnalysisResult{
		Summary:  payload.Summary,
		Severity: valueobjects.Severity(payload.Severity),
		Action:   payload.Action,
	}
	if out.Summary == "" {
		out.Summary = defaultSummary
	}
	if out.Severity == "" {
		out.Severity = defaultSeverity
	}
	if out.Action == "" {
		out.Action = defaultAction
	}
	return out, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
