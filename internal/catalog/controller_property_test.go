package catalog

import (
	"strings"
	"testing"

	"github.com/go-faster/errors"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/xenking/cocktail-catalog/internal/domain/product"
)

var errTest = errors.New("remote unavailable")

var categoryGen = gen.OneConstOf(AllCategories, "Cocktail", "Shot", "Ordinary Drink")

func searchableGateway() *fakeGateway {
	gw := newFakeGateway().set("default:", result{items: makeProducts("d", 40)})
	gw.fallback["search"] = result{items: makeProducts("s", 12)}
	gw.fallback["filter"] = result{items: makeProducts("f", 12)}
	return gw
}

// Search text always wins over the category filter.
func TestProperty_SearchBeatsCategory(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("non-empty search never issues a category filter", prop.ForAll(
		func(text, category string) bool {
			gw := searchableGateway()
			c := started(t, gw, 8)

			c.SetSearchText(text)
			c.SetCategory(category)
			waitIdle(t, c)

			return gw.count("filter") == 0 &&
				gw.count("search") > 0 &&
				strings.HasPrefix(c.View().Items[0].ID, "s-")
		},
		gen.Identifier(),
		categoryGen,
	))

	properties.TestingRun(t)
}

// Changing the search text or category resets the page before fetching.
func TestProperty_PageResetOnSignatureChange(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("page returns to 1", prop.ForAll(
		func(page int, text string, bySearch bool) bool {
			gw := searchableGateway()
			c := started(t, gw, 8)
			if c.SetPage(page) != page {
				return false
			}

			if bySearch {
				c.SetSearchText(text)
			} else {
				c.SetCategory("Shot")
			}
			ok := c.View().Query.Page == 1
			waitIdle(t, c)

			v := c.View()
			return ok && v.Query.Page == 1 && v.Pagination.Page == 1 && strings.HasSuffix(v.Items[0].ID, "-1")
		},
		gen.IntRange(2, 5),
		gen.Identifier(),
		gen.Bool(),
	))

	properties.TestingRun(t)
}

// Slicing a full set of size total into pages of size yields contiguous
// windows and a remainder on the last page.
func TestProperty_PaginationSlicing(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("page k holds [(k-1)*P, min(k*P, T))", prop.ForAll(
		func(total, size int) bool {
			all := makeProducts("d", total)
			gw := newFakeGateway().set("default:", result{items: all})
			c := started(t, gw, size)

			pages := product.TotalPages(total, size)
			seen := 0
			for k := 1; k <= pages; k++ {
				c.SetPage(k)
				items := c.View().Items
				want := min(k*size, total) - (k-1)*size
				if total == 0 {
					want = 0
				}
				if len(items) != want {
					return false
				}
				for i, p := range items {
					if p.ID != all[(k-1)*size+i].ID {
						return false
					}
				}
				seen += len(items)
			}
			return seen == total && gw.count("default") == 1
		},
		gen.IntRange(0, 50),
		gen.IntRange(1, 12),
	))

	properties.TestingRun(t)
}

// A superseded selection never shows its detail, whatever order the lookups
// resolve in.
func TestProperty_SelectionDiscardOnSupersede(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("only the latest selection is enriched", prop.ForAll(
		func(firstResolvesFirst bool) bool {
			gw := newFakeGateway().
				set("default:", result{items: makeProducts("d", 4)}).
				set("lookup:d-1", result{detail: &product.Product{ID: "d-1", Title: "d 01", Description: "A", Detail: true}}).
				set("lookup:d-2", result{detail: &product.Product{ID: "d-2", Title: "d 02", Description: "B", Detail: true}})
			c := started(t, gw, 8)

			releaseA := gw.gate("lookup:d-1")
			releaseB := gw.gate("lookup:d-2")
			if _, err := c.Select("d-1"); err != nil {
				return false
			}
			if _, err := c.Select("d-2"); err != nil {
				return false
			}

			if firstResolvesFirst {
				releaseA()
				releaseB()
			} else {
				releaseB()
				releaseA()
			}
			waitIdle(t, c)

			sel := c.View().Selection
			return sel.State == SelectionDetail &&
				sel.Product.ID == "d-2" &&
				sel.Product.Description == "B"
		},
		gen.Bool(),
	))

	properties.TestingRun(t)
}

// Error and empty states are exclusive.
func TestProperty_ErrorVersusEmpty(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("failed fetch is error, zero results is empty", prop.ForAll(
		func(fail bool, category string) bool {
			gw := newFakeGateway().set("default:", result{items: []product.Product{}})
			if fail {
				gw.set("default:", result{err: errTest})
			}
			gw.fallback["filter"] = gw.results["default:"]

			c := started(t, gw, 8)
			c.SetCategory(category)
			waitIdle(t, c)

			v := c.View()
			if v.Empty && v.Error != "" {
				return false
			}
			if fail {
				return v.Error == ErrorMessage && len(v.Items) == 0 && !v.Empty
			}
			return v.Empty && v.Error == "" && v.Pagination.TotalPages == 1
		},
		gen.Bool(),
		categoryGen,
	))

	properties.TestingRun(t)
}
