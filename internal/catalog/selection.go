package catalog

import (
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/xenking/cocktail-catalog/internal/domain/product"
)

// SelectionState is the phase of the product detail panel.
type SelectionState int

const (
	SelectionClosed SelectionState = iota
	// SelectionSummary shows the summary while the detail lookup runs.
	SelectionSummary
	SelectionDetail
)

func (s SelectionState) String() string {
	switch s {
	case SelectionSummary:
		return "summary"
	case SelectionDetail:
		return "detail"
	default:
		return "closed"
	}
}

// Selection is the selected product, if any.
type Selection struct {
	State   SelectionState
	Product *product.Product
}

// Select opens the panel for the product with id on the displayed page. The
// summary is shown at once and replaced by the detail when the lookup
// succeeds; a failed or empty lookup leaves the summary in place.
func (c *Controller) Select(id string) (product.Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	idx := -1
	for i, p := range c.items {
		if p.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return product.Product{}, ErrNotOnPage
	}

	p := c.items[idx]
	c.selection = Selection{State: SelectionSummary, Product: &p}
	c.pending++
	c.notifyLocked()

	go c.enrich(id)
	return p, nil
}

// Dismiss closes the panel. A lookup still in flight is ignored when it
// resolves.
func (c *Controller) Dismiss() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.selection.State == SelectionClosed {
		return
	}
	c.selection = Selection{}
	c.notifyLocked()
}

func (c *Controller) enrich(id string) {
	lg := zctx.From(c.ctx).With(zap.String("product_id", id))
	detail, err := c.gw.Lookup(c.ctx, id)

	c.mu.Lock()
	defer c.mu.Unlock()
	defer c.notifyLocked()

	c.pending--
	switch {
	case err != nil:
		lg.Debug("Detail lookup failed", zap.Error(err))
		return
	case detail == nil:
		lg.Debug("Detail not found")
		return
	case c.selection.State == SelectionClosed || c.selection.Product.ID != id:
		c.stale.Add(c.ctx, 1, metric.WithAttributes(attribute.String("kind", "detail")))
		lg.Debug("Discarding stale detail")
		return
	}

	d := *detail
	c.selection = Selection{State: SelectionDetail, Product: &d}
}
