// Package pagination implements the opaque cursor tokens shared by every
// list endpoint.
package pagination

import "errors"

const (
	// DefaultPageSize is the fallback window when the client omits pageSize.
	DefaultPageSize = 20
	// DefaultMaxPageSize caps pageSize to prevent unbounded queries.
	DefaultMaxPageSize = 100
)

// ErrInvalidPageToken is returned when a page token cannot be decoded.
var ErrInvalidPageToken = errors.New("pagination: invalid pageToken")

// Cursor represents the Firestore pagination cursor payload.
type Cursor struct {
	StartAfter []any `json:"startAfter,omitempty"`
	StartAt    []any `json:"startAt,omitempty"`
}

// ClampPageSize normalises a requested page size into the allowed window.
func ClampPageSize(size int) int {
	if size <= 0 {
		return DefaultPageSize
	}
	if size > DefaultMaxPageSize {
		return DefaultMaxPageSize
	}
	return size
}
