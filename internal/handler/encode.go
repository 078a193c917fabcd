package handler

import (
	"github.com/go-faster/jx"

	"github.com/xenking/cocktail-catalog/internal/catalog"
	"github.com/xenking/cocktail-catalog/internal/domain/product"
	"github.com/xenking/cocktail-catalog/internal/view"
)

func encodeSnapshot(e *jx.Encoder, s catalog.Snapshot) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("query", func(e *jx.Encoder) { encodeQuery(e, s.Query) })
		e.Field("loading", func(e *jx.Encoder) { e.Bool(s.Loading) })
		e.Field("error", func(e *jx.Encoder) {
			if s.Error == "" {
				e.Null()
				return
			}
			e.Str(s.Error)
		})
		e.Field("empty", func(e *jx.Encoder) { e.Bool(s.Empty) })
		e.Field("total", func(e *jx.Encoder) { e.Int(s.Total) })
		e.Field("items", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, p := range s.Items {
					encodeProduct(e, p)
				}
			})
		})
		e.Field("categories", func(e *jx.Encoder) { encodeStrings(e, s.Categories) })
		e.Field("selection", func(e *jx.Encoder) { encodeSelection(e, s.Selection) })
		e.Field("pagination", func(e *jx.Encoder) { encodePagination(e, s.Pagination) })
	})
}

func encodeQuery(e *jx.Encoder, q catalog.Query) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("search", func(e *jx.Encoder) { e.Str(q.SearchText) })
		e.Field("category", func(e *jx.Encoder) { e.Str(q.Category) })
		e.Field("sort", func(e *jx.Encoder) { e.Str(string(q.Sort)) })
		e.Field("page", func(e *jx.Encoder) { e.Int(q.Page) })
		e.Field("page_size", func(e *jx.Encoder) { e.Int(q.PageSize) })
	})
}

// encodeProduct writes a product. Absent optional fields are omitted; detail
// fields only appear on lookups.
func encodeProduct(e *jx.Encoder, p product.Product) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(p.ID) })
		e.Field("title", func(e *jx.Encoder) { e.Str(p.Title) })
		if p.Image != "" {
			e.Field("image", func(e *jx.Encoder) { e.Str(p.Image) })
		}
		if p.Price.Valid {
			e.Field("price", func(e *jx.Encoder) { e.Str(p.Price.Decimal.StringFixed(2)) })
		}
		if p.Rating != nil {
			e.Field("rating", func(e *jx.Encoder) { e.Float64(*p.Rating) })
		}
		e.Field("detail", func(e *jx.Encoder) { e.Bool(p.Detail) })
		if !p.Detail {
			return
		}

		label := view.ParseLabel(p.Category)
		optional := []struct{ key, value string }{
			{"description", p.Description},
			{"category", label.Category},
			{"glass", view.ResolveGlass(p)},
			{"alcoholic", p.Alcoholic},
		}
		for _, f := range optional {
			if f.value != "" {
				e.Field(f.key, func(e *jx.Encoder) { e.Str(f.value) })
			}
		}
	})
}

func encodeSelection(e *jx.Encoder, s catalog.Selection) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("state", func(e *jx.Encoder) { e.Str(s.State.String()) })
		e.Field("product", func(e *jx.Encoder) {
			if s.Product == nil {
				e.Null()
				return
			}
			encodeProduct(e, *s.Product)
		})
	})
}

func encodePagination(e *jx.Encoder, p view.Pagination) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("page", func(e *jx.Encoder) { e.Int(p.Page) })
		e.Field("per_page", func(e *jx.Encoder) { e.Int(p.PerPage) })
		e.Field("total", func(e *jx.Encoder) { e.Int(p.Total) })
		e.Field("total_pages", func(e *jx.Encoder) { e.Int(p.TotalPages) })
		e.Field("start", func(e *jx.Encoder) { e.Int(p.Start) })
		e.Field("end", func(e *jx.Encoder) { e.Int(p.End) })
		e.Field("can_prev", func(e *jx.Encoder) { e.Bool(p.CanPrev) })
		e.Field("can_next", func(e *jx.Encoder) { e.Bool(p.CanNext) })
		// Ellipsis entries are encoded as null.
		e.Field("pages", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, n := range p.Pages {
					if n == view.Ellipsis {
						e.Null()
						continue
					}
					e.Int(n)
				}
			})
		})
	})
}

func encodeStrings(e *jx.Encoder, ss []string) {
	e.Arr(func(e *jx.Encoder) {
		for _, s := range ss {
			e.Str(s)
		}
	})
}
