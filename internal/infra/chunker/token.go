// Package chunker implements the token-budgeted chunking collaborator:
// paragraph and word-greedy fill against a tiktoken-counted budget, with
// tail-token overlap carried into the next chunk. Chunk size and overlap
// are passed per call from the calling collection's config rather than
// fixed as constructor fields.
package chunker

import (
	"strings"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"

	"github.com/raghavpatnecha/mnemosyne/internal/domain/ingestion"
)

// TokenChunker splits text using a cl100k_base token count.
type TokenChunker struct {
	encoder *tiktoken.Tiktoken
}

// NewTokenChunker constructs the chunker, falling back to a word-count
// heuristic if the encoder cannot be loaded.
func NewTokenChunker() *TokenChunker {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		enc = nil
	}
	return &TokenChunker{encoder: enc}
}

func (c *TokenChunker) Chunk(text string, targetTokens, overlap int) []ingestion.ChunkCandidate {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if targetTokens <= 0 {
		targetTokens = 800
	}
	if overlap < 0 {
		overlap = 0
	}
	maxRunes := targetTokens * 5
	parts := strings.FieldsFunc(text, func(r rune) bool { return r == '\n' || r == '\r' })

	var (
		current      strings.Builder
		currentRunes int
		index        int
		out          []ingestion.ChunkCandidate
	)

	flush := func() {
		content := strings.TrimSpace(current.String())
		if content == "" {
			current.Reset()
			currentRunes = 0
			return
		}
		out = append(out, ingestion.ChunkCandidate{Index: index, Content: content, TokenCount: c.countTokens(content)})
		index++
		current.Reset()
		currentRunes = 0
	}

	for _, part := range parts {
		for _, word := range strings.Fields(part) {
			wordRunes := utf8.RuneCountInString(word)
			if wordRunes > maxRunes {
				pieces := splitLongWord(word, maxRunes)
				for i, piece := range pieces {
					if currentRunes+utf8.RuneCountInString(piece) > maxRunes {
						flush()
					}
					current.WriteString(piece)
					current.WriteString(" ")
					currentRunes += utf8.RuneCountInString(piece) + 1
					if i < len(pieces)-1 {
						flush()
					}
				}
				continue
			}

			if currentRunes+wordRunes > maxRunes || c.countTokens(current.String()+word) >= targetTokens {
				flush()
				if overlap > 0 && len(out) > 0 {
					tail := c.tailTokens(out[len(out)-1].Content, overlap)
					current.WriteString(tail)
					currentRunes = utf8.RuneCountInString(tail)
				}
			}
			current.WriteString(word)
			current.WriteString(" ")
			currentRunes += wordRunes + 1
		}
		current.WriteString("\n")
		currentRunes++
	}
	if current.Len() > 0 {
		flush()
	}
	return out
}

func (c *TokenChunker) countTokens(text string) int {
	if text == "" {
		return 0
	}
	if c.encoder != nil {
		return len(c.encoder.Encode(text, nil, nil))
	}
	return len(strings.Fields(text))
}

func (c *TokenChunker) tailTokens(text string, limit int) string {
	if limit <= 0 || text == "" {
		return ""
	}
	if c.encoder != nil {
		ids := c.encoder.Encode(text, nil, nil)
		if len(ids) <= limit {
			return text + " "
		}
		return c.encoder.Decode(ids[len(ids)-limit:]) + " "
	}
	words := strings.Fields(text)
	if len(words) <= limit {
		return text + " "
	}
	return strings.Join(words[len(words)-limit:], " ") + " "
}

func splitLongWord(word string, maxRunes int) []string {
	if maxRunes <= 0 || utf8.RuneCountInString(word) <= maxRunes {
		return []string{word}
	}
	runes := []rune(word)
	var parts []string
	for i := 0; i < len(runes); i += maxRunes {
		end := i + maxRunes
		if end > len(runes) {
			end = len(runes)
		}
		parts = append(parts, string(runes[i:end]))
	}
	return parts
}

var _ ingestion.Chunker = (*TokenChunker)(nil)
