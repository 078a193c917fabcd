// Package view derives display models from catalog state: the pagination
// summary and page list, and the category/glass label of a product.
package view

import "github.com/xenking/cocktail-catalog/internal/domain/product"

// Ellipsis marks a gap in Pagination.Pages.
const Ellipsis = 0

// pageDelta is how many neighbours of the current page are listed.
const pageDelta = 1

// Pagination describes the pager for one page of a result set.
type Pagination struct {
	Page       int
	PerPage    int
	Total      int
	TotalPages int
	// Start and End are the 1-indexed bounds of the displayed items, both
	// zero when the result set is empty.
	Start   int
	End     int
	CanPrev bool
	CanNext bool
	// Pages lists the page buttons to render; Ellipsis marks skipped ranges.
	Pages []int
}

// NewPagination builds the pager for page of a result set of total items.
func NewPagination(page, perPage, total int) Pagination {
	totalPages := product.TotalPages(total, perPage)
	page = Clamp(page, totalPages)

	p := Pagination{
		Page:       page,
		PerPage:    perPage,
		Total:      total,
		TotalPages: totalPages,
		CanPrev:    page > 1,
		CanNext:    page < totalPages,
		Pages:      pageList(page, totalPages),
	}
	if total > 0 {
		p.Start = (page-1)*perPage + 1
		p.End = min(total, page*perPage)
	}
	return p
}

// Clamp restricts page to [1, totalPages].
func Clamp(page, totalPages int) int {
	if page > totalPages {
		page = totalPages
	}
	if page < 1 {
		page = 1
	}
	return page
}

func pageList(page, totalPages int) []int {
	left := max(2, page-pageDelta)
	right := min(totalPages-1, page+pageDelta)

	pages := []int{1}
	if left > 2 {
		pages = append(pages, Ellipsis)
	}
	for p := left; p <= right; p++ {
		pages = append(pages, p)
	}
	if right < totalPages-1 {
		pages = append(pages, Ellipsis)
	}
	if totalPages > 1 {
		pages = append(pages, totalPages)
	}
	return pages
}
