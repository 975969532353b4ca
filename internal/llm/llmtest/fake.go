// Package llmtest provides an in-memory llm.Provider for tests.
package llmtest

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"milestonez/internal/llm"
	"milestonez/internal/model"
)

// Provider answers from canned data and records every prompt it receives.
type Provider struct {
	mu sync.Mutex

	Summary string
	// Plans are returned by successive CompleteJSON calls; the last one repeats.
	Plans []model.Plan
	// Embeddings by exact input text; Default is used otherwise.
	Embeddings map[string][]float64
	Default    []float64

	CompleteErr error
	JSONErr     error
	EmbedErr    error

	Models llm.Models

	Prompts     []string
	JSONPrompts []string
	EmbedInputs []string
}

func New() *Provider {
	return &Provider{
		Summary: "summary",
		Default: []float64{1, 0},
		Models:  llm.Models{"GPT 4o": "gpt-4o", "GPT 3.5 Turbo": "gpt-35-turbo"},
	}
}

func (p *Provider) Name() string { return "fake" }

func (p *Provider) Resolve(alias string) (string, error) { return p.Models.Resolve(alias) }

func (p *Provider) Complete(_ context.Context, _, prompt string) (string, llm.Usage, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Prompts = append(p.Prompts, prompt)
	if p.CompleteErr != nil {
		return "", llm.Usage{}, p.CompleteErr
	}
	return p.Summary, llm.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15, Requests: 1}, nil
}

func (p *Provider) CompleteJSON(_ context.Context, _, prompt string, _ *llm.Schema, out any) (llm.Usage, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.JSONPrompts = append(p.JSONPrompts, prompt)
	if p.JSONErr != nil {
		return llm.Usage{}, p.JSONErr
	}
	if len(p.Plans) == 0 {
		return llm.Usage{}, errors.New("llmtest: no plan configured")
	}
	plan := p.Plans[0]
	if len(p.Plans) > 1 {
		p.Plans = p.Plans[1:]
	}

	data, err := json.Marshal(plan)
	if err != nil {
		return llm.Usage{}, err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return llm.Usage{}, err
	}
	return llm.Usage{PromptTokens: 100, CompletionTokens: 50, TotalTokens: 150, Requests: 1}, nil
}

func (p *Provider) Embed(_ context.Context, text string) ([]float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.EmbedInputs = append(p.EmbedInputs, text)
	if p.EmbedErr != nil {
		return nil, p.EmbedErr
	}
	if v, ok := p.Embeddings[text]; ok {
		return v, nil
	}
	return p.Default, nil
}

// LastJSONPrompt returns the most recent structured prompt, "" if none.
func (p *Provider) LastJSONPrompt() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.JSONPrompts) == 0 {
		return ""
	}
	return p.JSONPrompts[len(p.JSONPrompts)-1]
}
