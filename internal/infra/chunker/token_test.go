package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTokenChunker_EmptyTextProducesNoChunks(t *testing.T) {
	c := NewTokenChunker()
	require.Empty(t, c.Chunk("   ", 100, 10))
}

func TestTokenChunker_SplitsLongTextIntoMultipleChunks(t *testing.T) {
	c := NewTokenChunker()
	text := strings.Repeat("word ", 2000)

	chunks := c.Chunk(text, 200, 20)
	require.Greater(t, len(chunks), 1)
	for i, chunk := range chunks {
		require.Equal(t, i, chunk.Index)
		require.NotEmpty(t, chunk.Content)
	}
}

func TestTokenChunker_ShortTextProducesOneChunk(t *testing.T) {
	c := NewTokenChunker()
	chunks := c.Chunk("a short paragraph about mnemosyne", 800, 80)
	require.Len(t, chunks, 1)
	require.Equal(t, "a short paragraph about mnemosyne", chunks[0].Content)
}

func TestTokenChunker_OverlapCarriesTailIntoNextChunk(t *testing.T) {
	c := NewTokenChunker()
	text := strings.Repeat("alpha ", 500) + strings.Repeat("beta ", 500)

	chunks := c.Chunk(text, 100, 20)
	require.Greater(t, len(chunks), 1)
	// the second chunk should start with tail tokens carried from the first
	require.True(t, strings.HasPrefix(strings.TrimSpace(chunks[1].Content), "alpha") ||
		strings.Contains(chunks[1].Content, "alpha"))
}

func TestTokenChunker_DefaultsNonPositiveTargetTokens(t *testing.T) {
	c := NewTokenChunker()
	chunks := c.Chunk("hello world", 0, -1)
	require.Len(t, chunks, 1)
}
