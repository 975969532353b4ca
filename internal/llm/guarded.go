package llm

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"milestonez/pkg/circuitbreaker"
	"milestonez/pkg/logger"
	"milestonez/pkg/metrics"
	"milestonez/pkg/otel"
)

// Guarded wraps a Provider with a circuit breaker, latency metrics and spans.
// Every error it returns is a *ProviderError.
type Guarded struct {
	inner   Provider
	breaker *circuitbreaker.CircuitBreaker
	logger  *zap.Logger
}

func NewGuarded(inner Provider, cfg circuitbreaker.Config, logger *zap.Logger) *Guarded {
	if cfg.IsExcluded == nil {
		cfg.IsExcluded = func(err error) bool {
			return errors.Is(err, context.Canceled)
		}
	}
	return &Guarded{
		inner:   inner,
		breaker: circuitbreaker.NewCircuitBreaker(cfg),
		logger:  logger,
	}
}

func (g *Guarded) Name() string { return g.inner.Name() }

func (g *Guarded) Resolve(alias string) (string, error) { return g.inner.Resolve(alias) }

// BreakerState 返回当前熔断器状态
func (g *Guarded) BreakerState() circuitbreaker.State { return g.breaker.GetState() }

func (g *Guarded) Complete(ctx context.Context, model, prompt string) (text string, usage Usage, err error) {
	err = g.call(ctx, "complete", model, func(ctx context.Context) error {
		var cerr error
		text, usage, cerr = g.inner.Complete(ctx, model, prompt)
		return cerr
	})
	return text, usage, err
}

func (g *Guarded) CompleteJSON(ctx context.Context, model, prompt string, schema *Schema, out any) (usage Usage, err error) {
	err = g.call(ctx, "complete_json", model, func(ctx context.Context) error {
		var cerr error
		usage, cerr = g.inner.CompleteJSON(ctx, model, prompt, schema, out)
		return cerr
	})
	return usage, err
}

func (g *Guarded) Embed(ctx context.Context, text string) (vec []float64, err error) {
	err = g.call(ctx, "embed", "", func(ctx context.Context) error {
		var cerr error
		vec, cerr = g.inner.Embed(ctx, text)
		return cerr
	})
	return vec, err
}

func (g *Guarded) call(ctx context.Context, op, model string, fn func(context.Context) error) error {
	ctx, span := otel.LLMSpan(ctx, g.inner.Name(), op, model)
	start := time.Now()

	err := g.breaker.Execute(func() error { return fn(ctx) })

	status := "success"
	if err != nil {
		status = "error"
		if errors.Is(err, circuitbreaker.ErrCircuitBreakerOpen) {
			status = "circuit_open"
		}
		err = &ProviderError{Provider: g.inner.Name(), Op: op, Err: err}
		logger.WithTrace(ctx, g.logger).Warn("LLM call failed",
			zap.String("provider", g.inner.Name()),
			zap.String("operation", op),
			zap.String("model", model),
			zap.Duration("latency", time.Since(start)),
			zap.Error(err),
		)
	}
	metrics.RecordLLMCallLatency(g.inner.Name(), op, status, time.Since(start))
	otel.End(span, err)
	return err
}
