// Package llm defines the language-model contracts the planner depends on
// and the provider clients behind them.
package llm

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrUnknownModel  = errors.New("unknown model")
	ErrEmptyResponse = errors.New("empty model response")
)

// Usage 累计的 token 用量
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
	Requests         int `json:"successful_requests"`
}

func (u *Usage) Add(o Usage) {
	u.PromptTokens += o.PromptTokens
	u.CompletionTokens += o.CompletionTokens
	u.TotalTokens += o.TotalTokens
	u.Requests += o.Requests
}

func (u Usage) String() string {
	return fmt.Sprintf("Tokens Used: %d\n\tPrompt Tokens: %d\n\tCompletion Tokens: %d\nSuccessful Requests: %d",
		u.TotalTokens, u.PromptTokens, u.CompletionTokens, u.Requests)
}

// Completer produces free text or schema-constrained JSON.
// model is a provider model name, see Provider.Resolve.
type Completer interface {
	Complete(ctx context.Context, model, prompt string) (string, Usage, error)
	// CompleteJSON decodes the structured answer into out.
	CompleteJSON(ctx context.Context, model, prompt string, schema *Schema, out any) (Usage, error)
}

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

type Provider interface {
	Completer
	Embedder
	Name() string
	// Resolve maps a client-facing alias such as "GPT 4o" to a model name.
	Resolve(alias string) (string, error)
}

// ProviderError wraps every failure raised by a model provider.
type ProviderError struct {
	Provider string
	Op       string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Provider, e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// UpstreamStatus exposes the HTTP status of the wrapped error, 0 when unknown.
func (e *ProviderError) UpstreamStatus() int {
	var us interface{ UpstreamStatus() int }
	if errors.As(e.Err, &us) {
		return us.UpstreamStatus()
	}
	return 0
}

// Models 别名到模型名的映射
type Models map[string]string

func (m Models) Resolve(alias string) (string, error) {
	if name, ok := m[alias]; ok && name != "" {
		return name, nil
	}
	return "", fmt.Errorf("%w: %q (known: %s)", ErrUnknownModel, alias, strings.Join(m.Aliases(), ", "))
}

func (m Models) Aliases() []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
