package catalog

import (
	"strings"

	"github.com/go-faster/errors"
)

// AllCategories is the category filter value that disables filtering.
const AllCategories = "all"

// DefaultPageSize is the number of cards shown per page.
const DefaultPageSize = 8

// SortMode orders the displayed page locally.
type SortMode string

// Supported sort modes.
const (
	SortRelevance SortMode = "relevance"
	SortTitleAsc  SortMode = "title-asc"
	SortTitleDesc SortMode = "title-desc"
)

// ErrInvalidSort is returned for unknown sort modes.
var ErrInvalidSort = errors.New("invalid sort mode")

// ParseSortMode validates s.
func ParseSortMode(s string) (SortMode, error) {
	switch m := SortMode(s); m {
	case SortRelevance, SortTitleAsc, SortTitleDesc:
		return m, nil
	default:
		return "", errors.Wrapf(ErrInvalidSort, "%q", s)
	}
}

// Query is the catalog query state.
type Query struct {
	SearchText string
	// Category is AllCategories or a specific category label.
	Category string
	Sort     SortMode
	Page     int
	PageSize int
}

func initialQuery(pageSize int) Query {
	return Query{
		Category: AllCategories,
		Sort:     SortRelevance,
		Page:     1,
		PageSize: pageSize,
	}
}

// Signature determines which remote query is active. The page is not part
// of it.
type Signature struct {
	SearchText string
	Category   string
}

// Signature returns the query signature with the search text trimmed.
func (q Query) Signature() Signature {
	return Signature{
		SearchText: strings.TrimSpace(q.SearchText),
		Category:   q.Category,
	}
}

// Source is the kind of remote query a signature resolves to.
type Source int

const (
	SourceDefault Source = iota
	SourceSearch
	SourceCategory
)

func (s Source) String() string {
	switch s {
	case SourceSearch:
		return "search"
	case SourceCategory:
		return "category"
	default:
		return "default"
	}
}

// Source resolves the query source: search text wins over the category
// filter, which wins over the default listing.
func (s Signature) Source() Source {
	switch {
	case s.SearchText != "":
		return SourceSearch
	case s.Category != AllCategories && strings.TrimSpace(s.Category) != "":
		return SourceCategory
	default:
		return SourceDefault
	}
}
