// Command catalog-snapshot captures the remote catalog into a dataset file
// that the server can serve when no remote is configured.
package main

import (
	"context"
	"flag"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/language"

	"github.com/xenking/cocktail-catalog/internal/domain/product"
	"github.com/xenking/cocktail-catalog/internal/gateway"
)

type options struct {
	baseURL     string
	out         string
	categories  string
	concurrency int
	timeout     time.Duration
}

func main() {
	var opts options
	flag.StringVar(&opts.baseURL, "base-url", "https://www.thecocktaildb.com", "remote cocktail API base URL")
	flag.StringVar(&opts.out, "out", "products.json.gz", "output dataset path (.json or .json.gz)")
	flag.StringVar(&opts.categories, "categories", "", "comma-separated categories to capture; empty captures all")
	flag.IntVar(&opts.concurrency, "concurrency", 4, "parallel category requests")
	flag.DurationVar(&opts.timeout, "timeout", 10*time.Second, "per-request timeout")
	flag.Parse()

	app.Run(func(ctx context.Context, lg *zap.Logger, m *app.Telemetry) error {
		gw, err := gateway.NewRemote(gateway.RemoteConfig{
			BaseURL: strings.TrimRight(opts.baseURL, "/"),
			Locale:  language.English,
		},
			gateway.WithHTTPClient(&http.Client{Timeout: opts.timeout}),
			gateway.WithTracerProvider(m.TracerProvider()),
			gateway.WithMeterProvider(m.MeterProvider()),
		)
		if err != nil {
			return errors.Wrap(err, "create gateway")
		}
		return run(ctx, lg, gw, opts)
	})
}

func run(ctx context.Context, lg *zap.Logger, gw gateway.Gateway, opts options) error {
	categories, err := selectCategories(ctx, gw, opts.categories)
	if err != nil {
		return err
	}
	lg.Info("Capturing catalog", zap.Strings("categories", categories))

	var (
		mu      sync.Mutex
		results = make([][]product.Product, len(categories))
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(opts.concurrency, 1))
	for i, category := range categories {
		g.Go(func() error {
			items, err := gw.FilterByCategory(gctx, category)
			if err != nil {
				return errors.Wrapf(err, "filter %q", category)
			}
			lg.Debug("Category captured", zap.String("category", category), zap.Int("count", len(items)))

			mu.Lock()
			results[i] = items
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	items := merge(results)
	if err := gateway.SaveDataset(opts.out, items); err != nil {
		return err
	}
	lg.Info("Snapshot written", zap.String("path", opts.out), zap.Int("count", len(items)))
	return nil
}

func selectCategories(ctx context.Context, gw gateway.Gateway, list string) ([]string, error) {
	var out []string
	for _, c := range strings.Split(list, ",") {
		if c = strings.TrimSpace(c); c != "" {
			out = append(out, c)
		}
	}
	if len(out) > 0 {
		return out, nil
	}
	out, err := gw.ListCategories(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list categories")
	}
	if len(out) == 0 {
		return nil, errors.New("remote reported no categories")
	}
	return out, nil
}

// merge flattens per-category results in category order, keeping the first
// occurrence of each id.
func merge(results [][]product.Product) []product.Product {
	seen := make(map[string]struct{})
	var out []product.Product
	for _, items := range results {
		for _, p := range items {
			if _, ok := seen[p.ID]; ok {
				continue
			}
			seen[p.ID] = struct{}{}
			out = append(out, p)
		}
	}
	return out
}
