// Package parser implements ingestion.Parser/Registry: a plain-text parser
// (the always-present fallback) and a PDF parser wired to ledongthuc/pdf.
package parser

import (
	"bytes"
	"context"
	"strings"
	"unicode/utf8"

	"github.com/raghavpatnecha/mnemosyne/internal/domain/ingestion"
)

// TextParser treats input as UTF-8 plain text, stripping a BOM if present.
type TextParser struct{}

func (TextParser) Parse(_ context.Context, data []byte) (ingestion.ParsedDocument, error) {
	data = bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})
	text := string(data)
	if !utf8.ValidString(text) {
		text = strings.ToValidUTF8(text, "")
	}
	return ingestion.ParsedDocument{Text: text, Pages: 1}, nil
}

var _ ingestion.Parser = TextParser{}
