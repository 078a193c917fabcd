package gateway

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"slices"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/klauspost/pgzip"

	"github.com/xenking/cocktail-catalog/dataset"
	"github.com/xenking/cocktail-catalog/internal/domain/product"
)

var _ Gateway = (*Static)(nil)

// Static implements Gateway over a fixed local dataset. It is used when no
// remote base URL is configured and mirrors what an unconfigured remote
// would answer: the default listing comes from the dataset, lookups find
// nothing and search, filter and category queries are empty.
type Static struct {
	items []product.Product
}

// NewStatic returns a Static gateway serving the summaries of items.
func NewStatic(items []product.Product) *Static {
	out := make([]product.Product, len(items))
	for i, p := range items {
		out[i] = p.Summary()
	}
	return &Static{items: out}
}

// ListDefault paginates the dataset.
func (s *Static) ListDefault(_ context.Context, page, pageSize int) (Listing, error) {
	return Listing{
		Items: slices.Clone(product.Page(s.items, page, pageSize)),
		Total: len(s.items),
	}, nil
}

func (s *Static) Lookup(context.Context, string) (*product.Product, error) {
	return nil, nil
}

func (s *Static) SearchByName(context.Context, string) ([]product.Product, error) {
	return []product.Product{}, nil
}

func (s *Static) ListCategories(context.Context) ([]string, error) {
	return []string{}, nil
}

func (s *Static) FilterByCategory(context.Context, string) ([]product.Product, error) {
	return []product.Product{}, nil
}

// LoadDataset reads the fallback dataset. An empty path selects the dataset
// embedded in the binary; paths ending in .gz are decompressed.
func LoadDataset(path string) ([]product.Product, error) {
	if path == "" {
		return decodeDataset(dataset.Products)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open dataset")
	}
	defer func() { _ = f.Close() }()

	var r io.Reader = f
	if filepath.Ext(path) == ".gz" {
		zr, err := pgzip.NewReader(f)
		if err != nil {
			return nil, errors.Wrap(err, "open gzip dataset")
		}
		defer func() { _ = zr.Close() }()
		r = zr
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrapf(err, "read dataset %s", path)
	}
	return decodeDataset(data)
}

// SaveDataset writes items in the format LoadDataset reads. Paths ending in
// .gz are compressed.
func SaveDataset(path string, items []product.Product) (rerr error) {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "create dataset")
	}
	defer func() {
		if err := f.Close(); err != nil && rerr == nil {
			rerr = errors.Wrap(err, "close dataset")
		}
	}()

	var w io.Writer = f
	if filepath.Ext(path) == ".gz" {
		zw := pgzip.NewWriter(f)
		defer func() {
			if err := zw.Close(); err != nil && rerr == nil {
				rerr = errors.Wrap(err, "close gzip dataset")
			}
		}()
		w = zw
	}

	if _, err := w.Write(encodeDataset(items)); err != nil {
		return errors.Wrapf(err, "write dataset %s", path)
	}
	return nil
}

func encodeDataset(items []product.Product) []byte {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)
	e.SetIdent(2)

	e.Arr(func(e *jx.Encoder) {
		for _, p := range items {
			e.Obj(func(e *jx.Encoder) {
				e.Field("id", func(e *jx.Encoder) { e.Str(p.ID) })
				e.Field("title", func(e *jx.Encoder) { e.Str(p.Title) })
				if p.Image != "" {
					e.Field("image", func(e *jx.Encoder) { e.Str(p.Image) })
				}
				if p.Price.Valid {
					e.Field("price", func(e *jx.Encoder) { e.Num(jx.Num(p.Price.Decimal.String())) })
				}
				if p.Rating != nil {
					e.Field("rating", func(e *jx.Encoder) { e.Float64(*p.Rating) })
				}
			})
		}
	})
	return append([]byte(nil), e.Bytes()...)
}
