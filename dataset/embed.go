// Package dataset embeds the offline fallback catalog served when no remote
// API is configured.
package dataset

import _ "embed"

// Products is a JSON array of summary products (id, title, image and the
// optional price and rating).
//
//go:embed products.json
var Products []byte
