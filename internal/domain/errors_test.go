package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify_KeepsMessage(t *testing.T) {
	err := Classify(ErrGeneration, errors.New("quota exceeded"))

	assert.Equal(t, "quota exceeded", err.Error())
	assert.ErrorIs(t, err, ErrGeneration)
	assert.Equal(t, "generation", KindName(err))
}

func TestClassify_Nil(t *testing.T) {
	assert.NoError(t, Classify(ErrEmbedding, nil))
}

func TestClassify_DoesNotReclassify(t *testing.T) {
	inner := fmt.Errorf("%w: index missing", ErrNamespaceNotFound)
	err := Classify(ErrStoreUnavailable, inner)

	assert.ErrorIs(t, err, ErrNamespaceNotFound)
	assert.NotErrorIs(t, err, ErrStoreUnavailable)
}

func TestKindName(t *testing.T) {
	assert.Equal(t, "", KindName(nil))
	assert.Equal(t, "unknown", KindName(errors.New("boom")))
	assert.Equal(t, "store_unavailable", KindName(fmt.Errorf("upsert: %w", ErrStoreUnavailable)))
	assert.Equal(t, "configuration", KindName(ErrConfiguration))
}
