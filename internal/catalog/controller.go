// Package catalog implements the catalog controller: the state machine that
// turns query changes into gateway calls, keeps the visible page consistent
// with the latest query and drives the two-phase product selection.
package catalog

import (
	"context"
	"slices"
	"sync"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/xenking/cocktail-catalog/internal/domain/product"
	"github.com/xenking/cocktail-catalog/internal/gateway"
	"github.com/xenking/cocktail-catalog/internal/view"
)

// ErrorMessage is shown in place of the catalog when a query fails.
const ErrorMessage = "catalog could not be loaded"

// ErrNotOnPage is returned by Select for ids that are not displayed.
var ErrNotOnPage = errors.New("product is not on the current page")

// cacheLimit bounds how many full result sets are kept per controller.
const cacheLimit = 16

// Config holds controller settings.
type Config struct {
	PageSize int
	// Locale drives the title collation used by the title sort modes.
	Locale language.Tag
}

// Option configures optional Controller dependencies.
type Option func(*Controller)

// WithMeterProvider sets the meter provider for controller counters.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(c *Controller) { c.meterProvider = mp }
}

// Controller owns the catalog state of one viewer.
//
// Mutations are serialized by a single mutex. Gateway calls run in their own
// goroutines and apply their results under the same mutex, so every change
// happens atomically with respect to View.
type Controller struct {
	gw            gateway.Gateway
	ctx           context.Context
	meterProvider metric.MeterProvider
	stale         metric.Int64Counter

	mu         sync.Mutex
	query      Query
	loading    bool
	errMsg     string
	items      []product.Product
	total      int
	categories []string
	selection  Selection
	collator   *collate.Collator

	// token identifies the latest primary fetch; results carrying an older
	// token are discarded.
	token    uint64
	inflight Signature
	cache    *resultCache

	pending int
	changed chan struct{}
}

// New creates a controller. ctx is the parent of every gateway call the
// controller issues and carries its logger.
func New(ctx context.Context, gw gateway.Gateway, cfg Config, opts ...Option) (*Controller, error) {
	if gw == nil {
		return nil, errors.New("gateway is required")
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	c := &Controller{
		gw:            gw,
		ctx:           ctx,
		meterProvider: metricnoop.NewMeterProvider(),
		query:         initialQuery(cfg.PageSize),
		collator:      collate.New(cfg.Locale),
		cache:         newResultCache(cacheLimit),
		changed:       make(chan struct{}),
	}
	for _, o := range opts {
		o(c)
	}

	var err error
	c.stale, err = c.meterProvider.Meter("github.com/xenking/cocktail-catalog/internal/catalog").
		Int64Counter("catalog.controller.stale_results",
			metric.WithDescription("Gateway results discarded because a newer request superseded them"),
		)
	if err != nil {
		return nil, errors.Wrap(err, "create stale counter")
	}
	return c, nil
}

// Start issues the initial listing fetch and loads the category list.
func (c *Controller) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.fetchLocked(c.query.Signature())
	c.loadCategoriesLocked()
}

// SetSearchText changes the search text and resets the page.
func (c *Controller) SetSearchText(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if text == c.query.SearchText {
		return
	}
	c.query.SearchText = text
	c.query.Page = 1
	c.refreshLocked()
}

// SetCategory changes the category filter and resets the page. An empty
// category selects AllCategories.
func (c *Controller) SetCategory(category string) {
	if category == "" {
		category = AllCategories
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if category == c.query.Category {
		return
	}
	c.query.Category = category
	c.query.Page = 1
	c.refreshLocked()
}

// SetSort changes the local ordering of the displayed page. It never
// contacts the gateway.
func (c *Controller) SetSort(mode SortMode) error {
	if _, err := ParseSortMode(string(mode)); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.query.Sort != mode {
		c.query.Sort = mode
		c.notifyLocked()
	}
	return nil
}

// SetPage moves to page, clamped to the known page range. Pages of a cached
// result set are sliced locally. While a fetch is in flight the range is
// unknown; the page is clamped when the result lands.
func (c *Controller) SetPage(page int) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.loading {
		page = max(page, 1)
	} else {
		page = view.Clamp(page, product.TotalPages(c.total, c.query.PageSize))
	}
	if page == c.query.Page {
		return page
	}
	c.query.Page = page
	c.refreshLocked()
	return page
}

// ClearFilters restores the initial query.
func (c *Controller) ClearFilters() {
	c.mu.Lock()
	defer c.mu.Unlock()

	q := initialQuery(c.query.PageSize)
	if q == c.query {
		return
	}
	c.query = q
	c.refreshLocked()
}

// Retry discards any cached result for the current query and fetches it
// again.
func (c *Controller) Retry() {
	c.mu.Lock()
	defer c.mu.Unlock()

	sig := c.query.Signature()
	c.cache.drop(sig)
	c.fetchLocked(sig)
}

// Categories returns the loaded category labels.
func (c *Controller) Categories() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.categories)
}

// Updates returns a channel that is closed on the next state change.
func (c *Controller) Updates() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.changed
}

// Idle blocks until no gateway call is outstanding.
func (c *Controller) Idle(ctx context.Context) error {
	for {
		c.mu.Lock()
		pending, ch := c.pending, c.changed
		c.mu.Unlock()

		if pending == 0 {
			return nil
		}
		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// refreshLocked brings the displayed items in line with the query, using the
// cache when it can.
func (c *Controller) refreshLocked() {
	sig := c.query.Signature()

	// The in-flight fetch already targets this signature and slices at the
	// current page when it resolves.
	if c.loading && c.inflight == sig {
		c.notifyLocked()
		return
	}
	if all, ok := c.cache.get(sig); ok {
		c.token++
		c.loading = false
		c.errMsg = ""
		c.applyLocked(all)
		c.notifyLocked()
		return
	}
	c.fetchLocked(sig)
}

func (c *Controller) fetchLocked(sig Signature) {
	c.token++
	token := c.token

	// Nothing from the previous query is displayed while loading.
	c.loading = true
	c.errMsg = ""
	c.items = nil
	c.total = 0
	c.inflight = sig
	c.pending++
	c.notifyLocked()

	zctx.From(c.ctx).Debug("Fetching catalog",
		zap.Stringer("source", sig.Source()),
		zap.String("search", sig.SearchText),
		zap.String("category", sig.Category),
		zap.Uint64("token", token),
	)
	go c.runFetch(token, sig)
}

func (c *Controller) runFetch(token uint64, sig Signature) {
	all, err := c.resolve(c.ctx, sig)

	c.mu.Lock()
	defer c.mu.Unlock()
	defer c.notifyLocked()

	c.pending--
	if token != c.token {
		c.stale.Add(c.ctx, 1, metric.WithAttributes(attribute.String("kind", "listing")))
		zctx.From(c.ctx).Debug("Discarding stale catalog result", zap.Uint64("token", token))
		return
	}

	c.loading = false
	if err != nil {
		zctx.From(c.ctx).Warn("Catalog query failed",
			zap.Stringer("source", sig.Source()),
			zap.Error(err),
		)
		c.errMsg = ErrorMessage
		c.items = nil
		c.total = 0
		return
	}
	c.cache.put(sig, all)
	c.applyLocked(all)
}

// resolve runs the gateway query for sig and returns the full result set.
func (c *Controller) resolve(ctx context.Context, sig Signature) ([]product.Product, error) {
	switch sig.Source() {
	case SourceSearch:
		return c.gw.SearchByName(ctx, sig.SearchText)
	case SourceCategory:
		return c.gw.FilterByCategory(ctx, sig.Category)
	default:
		l, err := c.gw.ListDefault(ctx, 1, 0)
		if err != nil {
			return nil, err
		}
		return l.Items, nil
	}
}

// applyLocked slices the current page out of the full result set.
func (c *Controller) applyLocked(all []product.Product) {
	c.total = len(all)
	c.query.Page = view.Clamp(c.query.Page, product.TotalPages(c.total, c.query.PageSize))
	c.items = slices.Clone(product.Page(all, c.query.Page, c.query.PageSize))
}

func (c *Controller) loadCategoriesLocked() {
	c.pending++
	go func() {
		labels, err := c.gw.ListCategories(c.ctx)

		c.mu.Lock()
		defer c.mu.Unlock()
		defer c.notifyLocked()

		c.pending--
		if err != nil {
			zctx.From(c.ctx).Warn("Category list unavailable", zap.Error(err))
			return
		}
		c.categories = labels
	}()
}

// notifyLocked wakes every Updates and Idle waiter.
func (c *Controller) notifyLocked() {
	close(c.changed)
	c.changed = make(chan struct{})
}

// resultCache keeps full result sets by signature, evicting the oldest entry
// once full.
type resultCache struct {
	limit   int
	order   []Signature
	entries map[Signature][]product.Product
}

func newResultCache(limit int) *resultCache {
	return &resultCache{
		limit:   limit,
		entries: make(map[Signature][]product.Product, limit),
	}
}

func (rc *resultCache) get(sig Signature) ([]product.Product, bool) {
	all, ok := rc.entries[sig]
	return all, ok
}

func (rc *resultCache) put(sig Signature, all []product.Product) {
	if _, ok := rc.entries[sig]; !ok {
		rc.order = append(rc.order, sig)
	}
	rc.entries[sig] = all
	for len(rc.order) > rc.limit {
		delete(rc.entries, rc.order[0])
		rc.order = rc.order[1:]
	}
}

func (rc *resultCache) drop(sig Signature) {
	if _, ok := rc.entries[sig]; !ok {
		return
	}
	delete(rc.entries, sig)
	rc.order = slices.DeleteFunc(rc.order, func(s Signature) bool { return s == sig })
}
