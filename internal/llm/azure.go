package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const azureProvider = "azure"

// AzureConfig Azure OpenAI 配置
type AzureConfig struct {
	Endpoint            string        `yaml:"endpoint"`
	APIKey              string        `yaml:"api_key"`
	APIVersion          string        `yaml:"api_version"`
	ChatDeployments     Models        `yaml:"chat_deployments"` // alias -> deployment
	EmbeddingDeployment string        `yaml:"embedding_deployment"`
	Timeout             time.Duration `yaml:"timeout"`
}

type AzureClient struct {
	endpoint   string
	apiKey     string
	apiVersion string
	models     Models
	embedding  string
	do         func(*http.Request) (*http.Response, error)
}

func NewAzureClient(cfg AzureConfig) (*AzureClient, error) {
	if cfg.Endpoint == "" || cfg.APIKey == "" {
		return nil, fmt.Errorf("azure: endpoint and api key are required")
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = "2024-08-01-preview"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	hc := &http.Client{Timeout: cfg.Timeout}
	return &AzureClient{
		endpoint:   strings.TrimRight(cfg.Endpoint, "/"),
		apiKey:     cfg.APIKey,
		apiVersion: cfg.APIVersion,
		models:     cfg.ChatDeployments,
		embedding:  cfg.EmbeddingDeployment,
		do:         hc.Do,
	}, nil
}

func (c *AzureClient) Name() string { return azureProvider }

func (c *AzureClient) Resolve(alias string) (string, error) {
	return c.models.Resolve(alias)
}

type azMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type azResponseFormat struct {
	Type       string        `json:"type"`
	JSONSchema *azJSONSchema `json:"json_schema,omitempty"`
}

type azJSONSchema struct {
	Name   string  `json:"name"`
	Schema *Schema `json:"schema"`
	Strict bool    `json:"strict"`
}

type azChatReq struct {
	Messages       []azMessage       `json:"messages"`
	ResponseFormat *azResponseFormat `json:"response_format,omitempty"`
}

type azChatResp struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

type azEmbedReq struct {
	Input string `json:"input"`
}

type azEmbedResp struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
}

// upstreamError 携带上游 HTTP 状态码，供错误分类使用
type upstreamError struct {
	status int
	msg    string
}

func (e upstreamError) Error() string       { return fmt.Sprintf("azure upstream %d: %s", e.status, e.msg) }
func (e upstreamError) UpstreamStatus() int { return e.status }

func (c *AzureClient) Complete(ctx context.Context, model, prompt string) (string, Usage, error) {
	return c.chat(ctx, model, azChatReq{Messages: []azMessage{{Role: "user", Content: prompt}}})
}

func (c *AzureClient) CompleteJSON(ctx context.Context, model, prompt string, schema *Schema, out any) (Usage, error) {
	req := azChatReq{
		Messages: []azMessage{{Role: "user", Content: prompt}},
		ResponseFormat: &azResponseFormat{
			Type:       "json_schema",
			JSONSchema: &azJSONSchema{Name: "list_of_milestones", Schema: schema, Strict: true},
		},
	}
	text, usage, err := c.chat(ctx, model, req)
	if err != nil {
		return usage, err
	}
	if err := json.Unmarshal([]byte(text), out); err != nil {
		return usage, fmt.Errorf("decode structured output: %w", err)
	}
	return usage, nil
}

func (c *AzureClient) chat(ctx context.Context, deployment string, body azChatReq) (string, Usage, error) {
	var resp azChatResp
	if err := c.post(ctx, deployment, "chat/completions", body, &resp); err != nil {
		return "", Usage{}, err
	}
	usage := Usage{
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
		Requests:         1,
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", usage, ErrEmptyResponse
	}
	return resp.Choices[0].Message.Content, usage, nil
}

func (c *AzureClient) Embed(ctx context.Context, text string) ([]float64, error) {
	if c.embedding == "" {
		return nil, fmt.Errorf("azure: no embedding deployment configured")
	}
	var resp azEmbedResp
	if err := c.post(ctx, c.embedding, "embeddings", azEmbedReq{Input: text}, &resp); err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, ErrEmptyResponse
	}
	return resp.Data[0].Embedding, nil
}

func (c *AzureClient) post(ctx context.Context, deployment, op string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	u := fmt.Sprintf("%s/openai/deployments/%s/%s?api-version=%s",
		c.endpoint, url.PathEscape(deployment), op, url.QueryEscape(c.apiVersion))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("api-key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode/100 != 2 {
		msg := strings.TrimSpace(string(data))
		if len(msg) > 512 {
			msg = msg[:512]
		}
		return upstreamError{status: resp.StatusCode, msg: msg}
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
