package mock

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockEmbedder_Deterministic(t *testing.T) {
	m := NewMockEmbedder()
	ctx := context.Background()

	v1, err := m.EmbedText(ctx, "restart the service")
	require.NoError(t, err)
	v2, err := m.EmbedText(ctx, "restart the service")
	require.NoError(t, err)
	other, err := m.EmbedText(ctx, "rotate credentials")
	require.NoError(t, err)

	assert.Equal(t, v1, v2)
	assert.NotEqual(t, v1, other)
	assert.Len(t, v1, DefaultDimensions)
	assert.Equal(t, 3, m.CallCount())
}

func TestMockEmbedder_UnitLength(t *testing.T) {
	v := DeterministicVector("any text", 64)
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	assert.InDelta(t, 1.0, math.Sqrt(sum), 1e-5)
}

func TestMockEmbedder_Batch(t *testing.T) {
	m := NewMockEmbedder()
	vectors, err := m.EmbedTexts(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.Equal(t, DeterministicVector("a", DefaultDimensions), vectors[0])
}

func TestMockEmbedder_InjectedFailure(t *testing.T) {
	m := NewMockEmbedder()
	m.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		return nil, errors.New("service unavailable")
	}

	_, err := m.EmbedTexts(context.Background(), []string{"a"})
	assert.EqualError(t, err, "service unavailable")

	m.Reset()
	assert.Zero(t, m.CallCount())
	_, err = m.EmbedTexts(context.Background(), []string{"a"})
	assert.NoError(t, err)
}

func TestMockProvider(t *testing.T) {
	p := NewMockProvider()
	mp, ok := p.(*MockProvider)
	require.True(t, ok)
	assert.Same(t, mp.GetMockEmbedder(), p.Embedder())
	assert.NoError(t, p.Close())
}
