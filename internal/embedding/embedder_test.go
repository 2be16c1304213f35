package embedding

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"neurodoc/internal/domain"
)

type stubEmbedder struct {
	vec []float32
	err error
}

func (s *stubEmbedder) Name() string   { return "stub" }
func (s *stubEmbedder) Dimension() int { return len(s.vec) }
func (s *stubEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	return s.vec, s.err
}

func TestChecked_PassesThrough(t *testing.T) {
	c := NewChecked(&stubEmbedder{vec: []float32{1, 0, 0}}, 3)
	v, err := c.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0, 0}, v)
	assert.Equal(t, 3, c.Dimension())
	assert.Equal(t, "stub", c.Name())
}

func TestChecked_EmptyText(t *testing.T) {
	c := NewChecked(&stubEmbedder{vec: []float32{1}}, 1)
	_, err := c.Embed(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrEmbedding)
}

func TestChecked_WrongDimension(t *testing.T) {
	c := NewChecked(&stubEmbedder{vec: []float32{1, 2}}, 384)
	_, err := c.Embed(context.Background(), "hello")
	assert.ErrorIs(t, err, domain.ErrEmbedding)
	assert.Contains(t, err.Error(), "2 dimensions, want 384")
}

func TestChecked_ModelFailure(t *testing.T) {
	c := NewChecked(&stubEmbedder{err: errors.New("model unavailable")}, 384)
	_, err := c.Embed(context.Background(), "hello")
	assert.ErrorIs(t, err, domain.ErrEmbedding)
	assert.Contains(t, err.Error(), "model unavailable")
}

func TestNewChecked_DefaultDimension(t *testing.T) {
	assert.Equal(t, DefaultDimension, NewChecked(&stubEmbedder{}, 0).Dimension())
}
