package parser

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/raghavpatnecha/mnemosyne/internal/domain/ingestion"
)

// PDFParser extracts plain text from a PDF page by page. Extraction is
// intentionally flat (no section structure) since chunking downstream
// operates on a token budget rather than document sections.
type PDFParser struct{}

func (PDFParser) Parse(_ context.Context, data []byte) (ingestion.ParsedDocument, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return ingestion.ParsedDocument{}, fmt.Errorf("open pdf: %w", err)
	}

	var builder strings.Builder
	pages := reader.NumPage()
	for i := 1; i <= pages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue // skip pages that fail to extract rather than aborting the whole document
		}
		builder.WriteString(text)
		builder.WriteString("\n\n")
	}
	return ingestion.ParsedDocument{Text: strings.TrimSpace(builder.String()), Pages: pages}, nil
}

var _ ingestion.Parser = PDFParser{}
