package catalog

import (
	"slices"

	"github.com/xenking/cocktail-catalog/internal/domain/product"
	"github.com/xenking/cocktail-catalog/internal/view"
)

// Snapshot is a consistent copy of the controller state.
type Snapshot struct {
	Query   Query
	Loading bool
	// Error is ErrorMessage after a failed query, empty otherwise.
	Error string
	// Items is the displayed page in sort order.
	Items      []product.Product
	Total      int
	Empty      bool
	Categories []string
	Selection  Selection
	Pagination view.Pagination
}

// View returns the current state. Title sorting applies to the displayed
// page only.
func (c *Controller) View() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	items := slices.Clone(c.items)
	c.sortLocked(items, c.query.Sort)

	s := Snapshot{
		Query:      c.query,
		Loading:    c.loading,
		Error:      c.errMsg,
		Items:      items,
		Total:      c.total,
		Empty:      !c.loading && c.errMsg == "" && len(items) == 0,
		Categories: slices.Clone(c.categories),
		Selection:  c.selection,
		Pagination: view.NewPagination(c.query.Page, c.query.PageSize, c.total),
	}
	if p := c.selection.Product; p != nil {
		cp := *p
		s.Selection.Product = &cp
	}
	return s
}

// sortLocked orders items by title. The collator is not safe for concurrent
// use, hence the lock.
func (c *Controller) sortLocked(items []product.Product, mode SortMode) {
	var dir int
	switch mode {
	case SortTitleAsc:
		dir = 1
	case SortTitleDesc:
		dir = -1
	default:
		return
	}
	slices.SortStableFunc(items, func(a, b product.Product) int {
		return dir * c.collator.CompareString(a.Title, b.Title)
	})
}
