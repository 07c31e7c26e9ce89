package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/greg-hellings/greencode/pkg/language"
	"github.com/greg-hellings/greencode/pkg/report"
)

const (
	DefaultOpenAIModel    = "gpt-4.1-mini"
	DefaultOpenAIEndpoint = "https://api.openai.com/v1/chat/completions"

	maxResponseBytes = 8 << 20
)

const openAISystemPrompt = "You are a green software engineering expert who reviews source code for energy efficiency."

type httpClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// OpenAI analyzes code through any OpenAI-compatible chat completions
// endpoint using JSON response mode.
type OpenAI struct {
	model    string
	endpoint string
	key      KeyFunc
	client   httpClient
	logger   *slog.Logger
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIResponseFormat struct {
	Type string `json:"type"`
}

type openAIChatRequest struct {
	Model          string               `json:"model"`
	Messages       []openAIMessage      `json:"messages"`
	Temperature    float64              `json:"temperature"`
	ResponseFormat openAIResponseFormat `json:"response_format"`
}

// NewOpenAI builds an OpenAI-compatible analyzer.
func NewOpenAI(cfg Config, key KeyFunc) *OpenAI {
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = DefaultOpenAIModel
	}
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		endpoint = DefaultOpenAIEndpoint
	}
	var client httpClient = http.DefaultClient
	if cfg.HTTPClient != nil {
		client = cfg.HTTPClient
	}
	return &OpenAI{
		model:    model,
		endpoint: endpoint,
		key:      key,
		client:   client,
		logger:   loggerOrDefault(cfg.Logger),
	}
}

// Model returns the configured model name.
func (o *OpenAI) Model() string { return o.model }

// Analyze implements Analyzer.
func (o *OpenAI) Analyze(ctx context.Context, code string, lang language.Language) (*report.Report, error) {
	apiKey, err := requireKey(ProviderOpenAI, o.key)
	if err != nil {
		return nil, err
	}

	reqBody := openAIChatRequest{
		Model: o.model,
		Messages: []openAIMessage{
			{Role: "system", Content: openAISystemPrompt + "\n\n" + schemaInstructions()},
			{Role: "user", Content: BuildPrompt(code, lang)},
		},
		Temperature:    0.2,
		ResponseFormat: openAIResponseFormat{Type: "json_object"},
	}
	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, &ConfigurationError{Provider: ProviderOpenAI, Reason: fmt.Sprintf("invalid endpoint %q: %v", o.endpoint, err), Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("Content-Type", "application/json")

	o.logger.Debug("Requesting analysis", "provider", ProviderOpenAI, "model", o.model, "language", string(lang), "bytes", len(code))

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, providerFailure(ProviderOpenAI, 0, err)
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, providerFailure(ProviderOpenAI, resp.StatusCode, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := gjson.GetBytes(respBytes, "error.message").String()
		if msg == "" {
			msg = strings.TrimSpace(string(respBytes))
		}
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, &ProviderError{Provider: ProviderOpenAI, StatusCode: resp.StatusCode, Err: errors.New(msg)}
	}

	if !gjson.ValidBytes(respBytes) {
		return nil, &MalformedResponseError{Provider: ProviderOpenAI, Err: errors.New("completion envelope is not valid JSON")}
	}
	content := gjson.GetBytes(respBytes, "choices.0.message.content").String()
	o.logger.Debug("Received analysis", "provider", ProviderOpenAI, "model", o.model, "bytes", len(content))
	return decodePayload(ProviderOpenAI, content)
}
