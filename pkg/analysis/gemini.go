package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"github.com/greg-hellings/greencode/pkg/language"
	"github.com/greg-hellings/greencode/pkg/report"
)

// DefaultGeminiModel is the model used when Config.Model is empty.
const DefaultGeminiModel = "gemini-3-pro-preview"

// contentGenerator is the subset of genai.Models used by the analyzer.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

type generatorFactory func(ctx context.Context, apiKey string, httpClient *http.Client) (contentGenerator, error)

func newGenAIGenerator(ctx context.Context, apiKey string, httpClient *http.Client) (contentGenerator, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: httpClient,
	})
	if err != nil {
		return nil, err
	}
	return client.Models, nil
}

// Gemini analyzes code with the Google GenAI SDK, asking for a JSON response
// constrained by the report schema.
type Gemini struct {
	model        string
	key          KeyFunc
	httpClient   *http.Client
	newGenerator generatorFactory
	logger       *slog.Logger
}

// NewGemini builds a Gemini analyzer. The SDK client is created per call,
// after the key has been resolved.
func NewGemini(cfg Config, key KeyFunc) *Gemini {
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = DefaultGeminiModel
	}
	return &Gemini{
		model:        model,
		key:          key,
		httpClient:   cfg.HTTPClient,
		newGenerator: newGenAIGenerator,
		logger:       loggerOrDefault(cfg.Logger),
	}
}

// Model returns the configured model name.
func (g *Gemini) Model() string { return g.model }

// Analyze implements Analyzer.
func (g *Gemini) Analyze(ctx context.Context, code string, lang language.Language) (*report.Report, error) {
	apiKey, err := requireKey(ProviderGemini, g.key)
	if err != nil {
		return nil, err
	}

	gen, err := g.newGenerator(ctx, apiKey, g.httpClient)
	if err != nil {
		return nil, &ConfigurationError{Provider: ProviderGemini, Reason: fmt.Sprintf("failed to create GenAI client: %v", err), Err: err}
	}

	g.logger.Debug("Requesting analysis", "provider", ProviderGemini, "model", g.model, "language", string(lang), "bytes", len(code))

	resp, err := gen.GenerateContent(ctx, g.model, genai.Text(BuildPrompt(code, lang)), geminiConfig())
	if err != nil {
		return nil, providerFailure(ProviderGemini, geminiStatus(err), err)
	}
	if resp == nil {
		return nil, &MalformedResponseError{Provider: ProviderGemini, Err: errors.New("no response received from Gemini")}
	}

	text := resp.Text()
	g.logger.Debug("Received analysis", "provider", ProviderGemini, "model", g.model, "bytes", len(text))
	return decodePayload(ProviderGemini, text)
}

// geminiStatus extracts the HTTP status carried by a genai.APIError.
func geminiStatus(err error) int {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return apiErrPtr.Code
	}
	return 0
}

func geminiConfig() *genai.GenerateContentConfig {
	impacts := make([]string, 0, 3)
	for _, imp := range report.Impacts() {
		impacts = append(impacts, string(imp))
	}

	return &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				report.FieldCarbonScore: {
					Type:        genai.TypeInteger,
					Description: "A score from 0 to 100 representing carbon efficiency.",
				},
				report.FieldEnergyEstimate: {
					Type:        genai.TypeString,
					Description: "Estimated energy usage (e.g., '0.45 kWh per 1M executions').",
				},
				report.FieldCO2Emissions: {
					Type:        genai.TypeString,
					Description: "Estimated CO2 emissions (e.g., '180 g CO2').",
				},
				report.FieldHotspots: {
					Type: genai.TypeArray,
					Items: &genai.Schema{
						Type: genai.TypeObject,
						Properties: map[string]*genai.Schema{
							"issue":      {Type: genai.TypeString},
							"impact":     {Type: genai.TypeString, Enum: impacts},
							"suggestion": {Type: genai.TypeString},
						},
						Required: []string{"issue", "impact", "suggestion"},
					},
				},
				report.FieldOptimizedCode: {
					Type:        genai.TypeString,
					Description: "The full refined, optimized source code.",
				},
				report.FieldCarbonReductionEstimate: {
					Type:        genai.TypeString,
					Description: "Estimated % reduction (e.g., '35%').",
				},
				report.FieldExplanation: {
					Type:        genai.TypeString,
					Description: "Detailed explanation of the changes and why they save energy.",
				},
			},
			Required: report.RequiredFields(),
		},
	}
}
