// Package assistant turns farmer questions and crop photos into prompts for a
// hosted Gemini model and returns the generated text.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

var (
	ErrGateway       = errors.New("ai gateway failure")
	ErrMissingAPIKey = errors.New("gemini api key is required")
	ErrInvalidInput  = errors.New("invalid input")
)

const (
	DefaultModel   = "gemini-2.0-flash"
	DefaultTimeout = 60 * time.Second
)

// Generator is the subset of *genai.Models used by the gateway.
type Generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Config configures the model client.
type Config struct {
	APIKey  string        `yaml:"api_key"`
	Model   string        `yaml:"model"`
	Timeout time.Duration `yaml:"timeout"`
}

// Gateway issues prompts to the model. It is safe for concurrent use.
type Gateway struct {
	gen     Generator
	model   string
	timeout time.Duration
	logger  *zap.SugaredLogger
}

// NewGateway builds a Gemini API client from cfg.
func NewGateway(ctx context.Context, cfg Config, logger *zap.SugaredLogger) (*Gateway, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{},
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return NewGatewayWithGenerator(client.Models, cfg, logger), nil
}

// NewGatewayWithGenerator wraps an existing Generator.
func NewGatewayWithGenerator(gen Generator, cfg Config, logger *zap.SugaredLogger) *Gateway {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Gateway{gen: gen, model: cfg.Model, timeout: cfg.Timeout, logger: logger}
}

// DetectLanguage asks the model for the language of text. It never fails:
// blank text, transport errors and unrecognized answers all yield English.
func (g *Gateway) DetectLanguage(ctx context.Context, text string) Language {
	if strings.TrimSpace(text) == "" {
		return English
	}
	out, err := g.generate(ctx, []*genai.Content{genai.NewContentFromText(detectPrompt(text), genai.RoleUser)}, nil)
	if err != nil {
		g.logger.Debugw("language detection failed", "err", err)
		return English
	}
	code := strings.ToLower(strings.TrimSpace(out))
	if len(code) > 2 {
		code = code[:2]
	}
	if l, ok := ParseLanguage(code); ok {
		return l
	}
	return English
}

// AnswerFarmingQuestion answers query in lang.
func (g *Gateway) AnswerFarmingQuestion(ctx context.Context, query string, lang Language) (string, error) {
	if strings.TrimSpace(query) == "" {
		return "", fmt.Errorf("%w: question is empty", ErrInvalidInput)
	}
	return g.generateText(ctx, farmingPrompt(query, lang.orEnglish()))
}

// AnalyzeCropImage sends the image with an optional farmer caption and returns
// a diagnosis covering identification, health, pests and treatment.
func (g *Gateway) AnalyzeCropImage(ctx context.Context, image []byte, mimeType, contextText string, lang Language) (string, error) {
	if len(image) == 0 {
		return "", fmt.Errorf("%w: image is empty", ErrInvalidInput)
	}
	if mimeType == "" {
		mimeType = http.DetectContentType(image)
	}
	parts := []*genai.Part{
		genai.NewPartFromText(diagnosisPrompt(strings.TrimSpace(contextText), lang.orEnglish())),
		genai.NewPartFromBytes(image, mimeType),
	}
	return g.generate(ctx, []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}, g.withSystem())
}

// GenerateCropKnowledge describes a crop's lifecycle, calendar and economics.
func (g *Gateway) GenerateCropKnowledge(ctx context.Context, cropName string, lang Language) (string, error) {
	if strings.TrimSpace(cropName) == "" {
		return "", fmt.Errorf("%w: crop name is empty", ErrInvalidInput)
	}
	return g.generateText(ctx, cropKnowledgePrompt(cropName, lang.orEnglish()))
}

// GetSchemeInfo explains a government scheme named or described by query.
func (g *Gateway) GetSchemeInfo(ctx context.Context, query string, lang Language) (string, error) {
	if strings.TrimSpace(query) == "" {
		return "", fmt.Errorf("%w: scheme query is empty", ErrInvalidInput)
	}
	return g.generateText(ctx, schemePrompt(query, lang.orEnglish()))
}

func (g *Gateway) withSystem() *genai.GenerateContentConfig {
	return &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemInstruction, genai.RoleUser),
	}
}

func (g *Gateway) generateText(ctx context.Context, prompt string) (string, error) {
	return g.generate(ctx, []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}, g.withSystem())
}

func (g *Gateway) generate(ctx context.Context, contents []*genai.Content, cfg *genai.GenerateContentConfig) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()
	resp, err := g.gen.GenerateContent(ctx, g.model, contents, cfg)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrGateway, err)
	}
	text := ""
	if resp != nil {
		text = strings.TrimSpace(resp.Text())
	}
	if text == "" {
		return "", fmt.Errorf("%w: empty response from %s", ErrGateway, g.model)
	}
	g.logger.Debugw("model call", "model", g.model, "duration_ms", time.Since(start).Milliseconds(), "chars", len(text))
	return text, nil
}
