package view

import (
	"strings"

	"github.com/xenking/cocktail-catalog/internal/domain/product"
)

// labelSeparator splits the sub-labels some sources pack into a category.
const labelSeparator = "•"

// Label is a category string split into its parts.
type Label struct {
	Category  string
	GlassHint string
}

// ParseLabel splits a raw category such as "Cocktail • Alcoholic • Highball
// glass". With fewer than two parts the trimmed input is the category and
// there is no hint. Otherwise the first part is the category and the hint is
// the first part mentioning "glass", falling back to the third part, or empty
// when there is none.
func ParseLabel(raw string) Label {
	raw = strings.TrimSpace(raw)

	var parts []string
	for _, p := range strings.Split(raw, labelSeparator) {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) < 2 {
		return Label{Category: raw}
	}

	l := Label{Category: parts[0]}
	for _, p := range parts {
		if strings.Contains(strings.ToLower(p), "glass") {
			l.GlassHint = p
			return l
		}
	}
	if len(parts) > 2 {
		l.GlassHint = parts[2]
	}
	return l
}

// ResolveGlass prefers the glass reported by a detail lookup and falls back to
// the hint packed into the category label.
func ResolveGlass(p product.Product) string {
	if p.Glass != "" {
		return p.Glass
	}
	return ParseLabel(p.Category).GlassHint
}
