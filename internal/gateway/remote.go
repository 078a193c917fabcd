package gateway

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/xenking/cocktail-catalog/internal/domain/product"
)

// Remote endpoint paths of the cocktail API contract.
const (
	DefaultProductsPath = "/api/json/v1/1/filter.php?c=Cocktail"

	lookupPath     = "/api/json/v1/1/lookup.php"
	searchPath     = "/api/json/v1/1/search.php"
	filterPath     = "/api/json/v1/1/filter.php"
	categoriesPath = "/api/json/v1/1/list.php"
)

// maxBodySize bounds how much of a remote response is read.
const maxBodySize = 8 << 20

var _ Gateway = (*Remote)(nil)

// RemoteConfig holds the non-dependency settings of a Remote gateway.
type RemoteConfig struct {
	// BaseURL is the scheme and host of the remote API.
	BaseURL string
	// ProductsPath is the default listing endpoint, resolved against BaseURL.
	// It may carry a query string. Defaults to DefaultProductsPath.
	ProductsPath string
	// Locale drives the collation of category labels.
	Locale language.Tag
}

// Option configures optional Remote dependencies.
type Option func(*Remote)

// WithHTTPClient sets the client used for remote calls. Its transport is
// wrapped with OpenTelemetry instrumentation.
func WithHTTPClient(c *http.Client) Option {
	return func(r *Remote) { r.client = c }
}

// WithTracerProvider sets the tracer provider for spans and client telemetry.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(r *Remote) { r.tracerProvider = tp }
}

// WithMeterProvider sets the meter provider for request counters.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(r *Remote) { r.meterProvider = mp }
}

// Remote implements Gateway against the cocktail JSON API.
//
// Identical requests that are in flight at the same time share a single
// remote call.
type Remote struct {
	base         *url.URL
	productsPath string
	locale       language.Tag

	client         *http.Client
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider

	tracer   trace.Tracer
	requests metric.Int64Counter
	group    singleflight.Group
}

// NewRemote validates cfg and builds a Remote gateway.
func NewRemote(cfg RemoteConfig, opts ...Option) (*Remote, error) {
	base, err := url.Parse(strings.TrimSpace(cfg.BaseURL))
	if err != nil {
		return nil, errors.Wrap(err, "parse base url")
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, errors.Errorf("base url %q must be absolute", cfg.BaseURL)
	}

	r := &Remote{
		base:           base,
		productsPath:   cfg.ProductsPath,
		locale:         cfg.Locale,
		client:         &http.Client{},
		tracerProvider: tracenoop.NewTracerProvider(),
		meterProvider:  metricnoop.NewMeterProvider(),
	}
	if r.productsPath == "" {
		r.productsPath = DefaultProductsPath
	}
	for _, o := range opts {
		o(r)
	}

	transport := r.client.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	client := *r.client
	client.Transport = otelhttp.NewTransport(transport,
		otelhttp.WithTracerProvider(r.tracerProvider),
		otelhttp.WithMeterProvider(r.meterProvider),
	)
	r.client = &client

	r.tracer = r.tracerProvider.Tracer("github.com/xenking/cocktail-catalog/internal/gateway")
	r.requests, err = r.meterProvider.Meter("github.com/xenking/cocktail-catalog/internal/gateway").
		Int64Counter("catalog.gateway.requests",
			metric.WithDescription("Remote catalog requests by operation and outcome"),
		)
	if err != nil {
		return nil, errors.Wrap(err, "create request counter")
	}

	return r, nil
}

// ListDefault fetches the default listing and paginates it locally.
func (r *Remote) ListDefault(ctx context.Context, page, pageSize int) (Listing, error) {
	rows, err := r.drinks(ctx, "list_default", r.productsPath, nil)
	if err != nil {
		return Listing{}, err
	}
	all := summaries(rows)
	return Listing{
		Items: product.Page(all, page, pageSize),
		Total: len(all),
	}, nil
}

// Lookup fetches the detail product for id. It returns nil, nil when the remote
// API has no drink with that id.
func (r *Remote) Lookup(ctx context.Context, id string) (*product.Product, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, nil
	}
	rows, err := r.drinks(ctx, "lookup", lookupPath, url.Values{"i": {id}})
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		if row.valid() {
			p := row.detail()
			return &p, nil
		}
	}
	return nil, nil
}

// SearchByName returns every drink whose name matches text.
func (r *Remote) SearchByName(ctx context.Context, text string) ([]product.Product, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return []product.Product{}, nil
	}
	rows, err := r.drinks(ctx, "search", searchPath, url.Values{"s": {text}})
	if err != nil {
		return nil, err
	}
	return summaries(rows), nil
}

// FilterByCategory returns every drink of the given category.
func (r *Remote) FilterByCategory(ctx context.Context, category string) ([]product.Product, error) {
	category = strings.TrimSpace(category)
	if category == "" {
		return []product.Product{}, nil
	}
	rows, err := r.drinks(ctx, "filter", filterPath, url.Values{"c": {category}})
	if err != nil {
		return nil, err
	}
	return summaries(rows), nil
}

// ListCategories returns the distinct category labels in collation order.
func (r *Remote) ListCategories(ctx context.Context) ([]string, error) {
	body, err := r.get(ctx, "categories", categoriesPath, url.Values{"c": {"list"}})
	if err != nil {
		return nil, err
	}
	labels, err := decodeCategories(body)
	if err != nil {
		return nil, err
	}
	return SortLabels(labels, r.locale), nil
}

// SortLabels de-duplicates labels and sorts them with the collation rules of
// locale.
func SortLabels(labels []string, locale language.Tag) []string {
	out := make([]string, 0, len(labels))
	seen := make(map[string]struct{}, len(labels))
	for _, l := range labels {
		if _, ok := seen[l]; ok {
			continue
		}
		seen[l] = struct{}{}
		out = append(out, l)
	}
	collate.New(locale).SortStrings(out)
	return out
}

func (r *Remote) drinks(ctx context.Context, op, path string, params url.Values) ([]drink, error) {
	body, err := r.get(ctx, op, path, params)
	if err != nil {
		return nil, err
	}
	rows, err := decodeDrinks(body)
	if err != nil {
		zctx.From(ctx).Warn("Malformed remote response",
			zap.String("op", op),
			zap.Error(err),
		)
		return nil, &RemoteError{Op: op, Err: err}
	}
	return rows, nil
}

// get performs a GET against path (resolved against the base URL) and returns
// the body of a 2xx response.
func (r *Remote) get(ctx context.Context, op, path string, params url.Values) ([]byte, error) {
	ctx, span := r.tracer.Start(ctx, "gateway."+op)
	defer span.End()

	u, err := r.base.Parse(path)
	if err != nil {
		return nil, errors.Wrapf(err, "resolve %s", path)
	}
	if len(params) > 0 {
		q := u.Query()
		for k, vs := range params {
			q[k] = slices.Clone(vs)
		}
		u.RawQuery = q.Encode()
	}
	target := u.String()
	span.SetAttributes(attribute.String("url.full", target))

	v, err, shared := r.group.Do(target, func() (any, error) {
		return r.fetch(ctx, op, target)
	})

	outcome := "ok"
	if err != nil {
		outcome = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	r.requests.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", op),
		attribute.String("outcome", outcome),
		attribute.Bool("shared", shared),
	))
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

func (r *Remote) fetch(ctx context.Context, op, target string) ([]byte, error) {
	lg := zctx.From(ctx)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, errors.Wrap(err, "create request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		lg.Debug("Remote request failed", zap.String("op", op), zap.Error(err))
		return nil, &RemoteError{Op: op, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		lg.Debug("Remote request rejected", zap.String("op", op), zap.Int("status", resp.StatusCode))
		return nil, &RemoteError{Op: op, Status: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, &RemoteError{Op: op, Err: errors.Wrap(err, "read body")}
	}
	return body, nil
}

func summaries(rows []drink) []product.Product {
	out := make([]product.Product, 0, len(rows))
	for _, row := range rows {
		if row.valid() {
			out = append(out, row.summary())
		}
	}
	return out
}
