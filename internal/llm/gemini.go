package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

const geminiProvider = "gemini"

// GeminiConfig Gemini API 配置
type GeminiConfig struct {
	APIKey         string `yaml:"api_key"`
	Models         Models `yaml:"models"` // alias -> model name
	EmbeddingModel string `yaml:"embedding_model"`
}

// geminiModels is the subset of *genai.Models used here.
type geminiModels interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
	EmbedContent(ctx context.Context, model string, contents []*genai.Content, config *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error)
}

type GeminiClient struct {
	models    geminiModels
	aliases   Models
	embedding string
}

func NewGeminiClient(ctx context.Context, cfg GeminiConfig) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini: api key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return newGeminiClient(client.Models, cfg), nil
}

func newGeminiClient(models geminiModels, cfg GeminiConfig) *GeminiClient {
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = "gemini-embedding-001"
	}
	return &GeminiClient{models: models, aliases: cfg.Models, embedding: cfg.EmbeddingModel}
}

func (c *GeminiClient) Name() string { return geminiProvider }

func (c *GeminiClient) Resolve(alias string) (string, error) {
	return c.aliases.Resolve(alias)
}

func (c *GeminiClient) Complete(ctx context.Context, model, prompt string) (string, Usage, error) {
	return c.generate(ctx, model, prompt, nil)
}

func (c *GeminiClient) CompleteJSON(ctx context.Context, model, prompt string, schema *Schema, out any) (Usage, error) {
	cfg := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   toGenaiSchema(schema),
	}
	text, usage, err := c.generate(ctx, model, prompt, cfg)
	if err != nil {
		return usage, err
	}
	if err := json.Unmarshal([]byte(text), out); err != nil {
		return usage, fmt.Errorf("decode structured output: %w", err)
	}
	return usage, nil
}

func (c *GeminiClient) generate(ctx context.Context, model, prompt string, cfg *genai.GenerateContentConfig) (string, Usage, error) {
	resp, err := c.models.GenerateContent(ctx, model, genai.Text(prompt), cfg)
	if err != nil {
		return "", Usage{}, err
	}

	usage := Usage{Requests: 1}
	if md := resp.UsageMetadata; md != nil {
		usage.PromptTokens = int(md.PromptTokenCount)
		usage.CompletionTokens = int(md.CandidatesTokenCount)
		usage.TotalTokens = int(md.TotalTokenCount)
	}

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", usage, ErrEmptyResponse
	}
	return text, usage, nil
}

func (c *GeminiClient) Embed(ctx context.Context, text string) ([]float64, error) {
	result, err := c.models.EmbedContent(ctx, c.embedding, genai.Text(text), nil)
	if err != nil {
		return nil, err
	}
	if len(result.Embeddings) == 0 || len(result.Embeddings[0].Values) == 0 {
		return nil, ErrEmptyResponse
	}

	values := result.Embeddings[0].Values
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = float64(v)
	}
	return out, nil
}

// toGenaiSchema 转换为 Gemini 的 schema；Gemini 不支持 additionalProperties
func toGenaiSchema(s *Schema) *genai.Schema {
	if s == nil {
		return nil
	}
	out := &genai.Schema{
		Type:        genai.Type(strings.ToUpper(s.Type)),
		Description: s.Description,
		Required:    s.Required,
		Items:       toGenaiSchema(s.Items),
	}
	if len(s.Properties) > 0 {
		out.Properties = make(map[string]*genai.Schema, len(s.Properties))
		for name, p := range s.Properties {
			out.Properties[name] = toGenaiSchema(p)
		}
	}
	return out
}
