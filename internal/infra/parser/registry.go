package parser

import (
	"strings"

	"github.com/raghavpatnecha/mnemosyne/internal/domain/ingestion"
)

// StaticRegistry selects a Parser by exact MIME match, then MIME prefix,
// falling back to plain text — selection is total, per the Registry
// contract.
type StaticRegistry struct {
	exact    map[string]ingestion.Parser
	fallback ingestion.Parser
}

// NewStaticRegistry constructs the default registry: PDF for
// application/pdf, plain text for everything else.
func NewStaticRegistry() *StaticRegistry {
	return &StaticRegistry{
		exact: map[string]ingestion.Parser{
			"application/pdf": PDFParser{},
		},
		fallback: TextParser{},
	}
}

func (r *StaticRegistry) Select(mimeType string) ingestion.Parser {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	if p, ok := r.exact[mimeType]; ok {
		return p
	}
	for prefix, p := range r.exact {
		if strings.HasPrefix(mimeType, prefix) {
			return p
		}
	}
	return r.fallback
}

var _ ingestion.Registry = (*StaticRegistry)(nil)
