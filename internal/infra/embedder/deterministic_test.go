package embedder

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDeterministicEmbedder_IsStablePerText(t *testing.T) {
	e := NewDeterministicEmbedder(16)
	v1, err := e.Embed(context.Background(), "any-model", []string{"hello world"})
	require.NoError(t, err)
	v2, err := e.Embed(context.Background(), "any-model", []string{"hello world"})
	require.NoError(t, err)
	require.Equal(t, v1, v2)
}

func TestDeterministicEmbedder_DiffersByText(t *testing.T) {
	e := NewDeterministicEmbedder(16)
	out, err := e.Embed(context.Background(), "any-model", []string{"hello", "world"})
	require.NoError(t, err)
	require.Len(t, out, 2)
	require.NotEqual(t, out[0], out[1])
}

func TestDeterministicEmbedder_IgnoresModelName(t *testing.T) {
	e := NewDeterministicEmbedder(8)
	v1, err := e.Embed(context.Background(), "model-a", []string{"same text"})
	require.NoError(t, err)
	v2, err := e.Embed(context.Background(), "model-b", []string{"same text"})
	require.NoError(t, err)
	require.Equal(t, v1, v2)
}

func TestDeterministicEmbedder_DefaultsNonPositiveDimension(t *testing.T) {
	e := NewDeterministicEmbedder(0)
	out, err := e.Embed(context.Background(), "any-model", []string{"x"})
	require.NoError(t, err)
	require.Len(t, out[0], 1536)
}

func TestDeterministicEmbedder_ReturnsRequestedDimension(t *testing.T) {
	e := NewDeterministicEmbedder(32)
	out, err := e.Embed(context.Background(), "any-model", []string{"x"})
	require.NoError(t, err)
	require.Len(t, out[0], 32)
}
