package product

import "github.com/shopspring/decimal"

// Product represents a catalog item. Values are never mutated after
// construction; state transitions replace whole products.
//
// A product produced by a list style query is a summary and only carries ID,
// Title and Image. A product produced by a lookup is a detail and additionally
// carries Description, Category, Glass and Alcoholic.
type Product struct {
	ID          string
	Title       string
	Image       string
	Category    string
	Description string
	Price       decimal.NullDecimal
	Rating      *float64
	Glass       string
	Alcoholic   string

	// Detail reports whether the product came from a lookup by id.
	Detail bool
}

// Summary returns a copy of p reduced to the fields a list query guarantees.
func (p Product) Summary() Product {
	return Product{
		ID:     p.ID,
		Title:  p.Title,
		Image:  p.Image,
		Price:  p.Price,
		Rating: p.Rating,
	}
}

// Page returns the 1-indexed page of items for the given page size, i.e. the
// items at offsets [(page-1)*size, min(page*size, len(items))). Out of range
// pages yield an empty slice. A non-positive size returns every item.
func Page(items []Product, page, size int) []Product {
	if size <= 0 {
		return items
	}
	if page < 1 {
		page = 1
	}
	start := (page - 1) * size
	if start >= len(items) {
		return []Product{}
	}
	end := min(start+size, len(items))
	return items[start:end]
}

// TotalPages returns the number of pages needed to show total items, which is
// never less than one so an empty result still renders a single page.
func TotalPages(total, size int) int {
	if size <= 0 || total <= 0 {
		return 1
	}
	return (total + size - 1) / size
}
