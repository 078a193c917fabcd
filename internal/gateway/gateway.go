// Package gateway provides read access to the remote cocktail catalog and to
// the bundled offline dataset. All mapping from the remote schema to
// product.Product happens here; callers never see remote field names.
package gateway

import (
	"context"
	"fmt"

	"github.com/xenking/cocktail-catalog/internal/domain/product"
)

// Gateway is the set of read-only catalog queries the controller relies on.
//
// List style operations return summaries and the complete matching set: the
// remote API has no offset/limit support. Empty or whitespace-only search text
// and categories short-circuit to an empty result without a network call.
type Gateway interface {
	// ListDefault returns the baseline listing. Pagination is performed on the
	// full set; a non-positive pageSize returns every item.
	ListDefault(ctx context.Context, page, pageSize int) (Listing, error)
	// Lookup returns the detail product for id, or nil when the remote source
	// does not know it.
	Lookup(ctx context.Context, id string) (*product.Product, error)
	SearchByName(ctx context.Context, text string) ([]product.Product, error)
	// ListCategories returns category labels sorted for display.
	ListCategories(ctx context.Context) ([]string, error)
	FilterByCategory(ctx context.Context, category string) ([]product.Product, error)
}

// Listing is the result of the default listing query.
type Listing struct {
	Items []product.Product
	Total int
	// ServerPaginated is kept for contract compatibility; no source in this
	// repository paginates server side, so it is always false.
	ServerPaginated bool
}

// RemoteError reports a transport failure or a non-2xx response.
type RemoteError struct {
	Op     string
	Status int // zero for transport failures
	Err    error
}

func (e *RemoteError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("remote %s: unexpected status %d", e.Op, e.Status)
	}
	return fmt.Sprintf("remote %s: %v", e.Op, e.Err)
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}
