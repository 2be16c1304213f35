package embedding

import (
	"context"
	"errors"
	"fmt"

	"neurodoc/internal/domain"
)

// DefaultDimension matches sentence-transformers/all-MiniLM-L6-v2.
const DefaultDimension = 384

// Checked wraps an Embedder and enforces the contract shared by every model:
// non-empty input, a vector of the expected dimension, and failures tagged as ErrEmbedding.
type Checked struct {
	inner     domain.Embedder
	dimension int
}

func NewChecked(inner domain.Embedder, dimension int) *Checked {
	if dimension <= 0 {
		dimension = DefaultDimension
	}
	return &Checked{inner: inner, dimension: dimension}
}

func (c *Checked) Name() string { return c.inner.Name() }

func (c *Checked) Dimension() int { return c.dimension }

func (c *Checked) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, domain.Classify(domain.ErrEmbedding, errors.New("empty text"))
	}
	vec, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, domain.Classify(domain.ErrEmbedding, fmt.Errorf("%s embed: %w", c.inner.Name(), err))
	}
	if len(vec) != c.dimension {
		return nil, domain.Classify(domain.ErrEmbedding,
			fmt.Errorf("%s returned %d dimensions, want %d", c.inner.Name(), len(vec), c.dimension))
	}
	return vec, nil
}
