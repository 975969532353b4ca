// Package similarity scores how close two texts are in embedding space.
package similarity

import (
	"context"
	"errors"
	"fmt"
	"math"

	"golang.org/x/sync/errgroup"

	"milestonez/internal/llm"
)

var (
	ErrZeroVector        = errors.New("zero-magnitude embedding")
	ErrDimensionMismatch = errors.New("embedding dimensions differ")
	ErrNonFinite         = errors.New("embedding contains NaN or Inf")
)

type Scorer struct {
	embedder llm.Embedder
}

func NewScorer(embedder llm.Embedder) *Scorer {
	return &Scorer{embedder: embedder}
}

// Score embeds a and b concurrently and returns their cosine similarity.
func (s *Scorer) Score(ctx context.Context, a, b string) (float64, error) {
	var va, vb []float64

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		v, err := s.embedder.Embed(gctx, a)
		va = v
		return err
	})
	g.Go(func() error {
		v, err := s.embedder.Embed(gctx, b)
		vb = v
		return err
	})
	if err := g.Wait(); err != nil {
		return 0, err
	}
	return Cosine(va, vb)
}

// Cosine returns dot(a, b) / (|a| |b|) clamped to [-1, 1].
func Cosine(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d", ErrDimensionMismatch, len(a), len(b))
	}

	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0, ErrZeroVector
	}

	sim := dot / (math.Sqrt(na) * math.Sqrt(nb))
	if math.IsNaN(sim) || math.IsInf(na, 0) || math.IsInf(nb, 0) {
		return 0, ErrNonFinite
	}
	return math.Max(-1, math.Min(1, sim)), nil
}
