// Package pagination implements keyset cursors for newest-first listings.
package pagination

import (
	"encoding/base64"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultLimit = 20
	MaxLimit     = 50
)

var ErrInvalidCursor = errors.New("invalid cursor")

// Params is a page request as it arrives from the query string.
type Params struct {
	Limit  int
	Cursor string
}

// Size is the clamped page size.
func (p Params) Size() int {
	switch {
	case p.Limit <= 0:
		return DefaultLimit
	case p.Limit > MaxLimit:
		return MaxLimit
	default:
		return p.Limit
	}
}

// Fetch is the row count to query: one past Size so a next page can be detected.
func (p Params) Fetch() int {
	return p.Size() + 1
}

// Decode returns nil for the first page.
func (p Params) Decode() (*Cursor, error) {
	raw := strings.TrimSpace(p.Cursor)
	if raw == "" {
		return nil, nil
	}
	b, err := base64.RawURLEncoding.DecodeString(raw)
	if err != nil {
		return nil, ErrInvalidCursor
	}
	nanos, id, ok := strings.Cut(string(b), ":")
	if !ok {
		return nil, ErrInvalidCursor
	}
	n, err := strconv.ParseInt(nanos, 10, 64)
	if err != nil {
		return nil, ErrInvalidCursor
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, ErrInvalidCursor
	}
	return &Cursor{CreatedAt: time.Unix(0, n).UTC(), ID: parsed}, nil
}

// Cursor is the last row of a page. The next page holds rows strictly older
// than it, with ID breaking ties on equal timestamps.
type Cursor struct {
	CreatedAt time.Time
	ID        uuid.UUID
}

func (c Cursor) Encode() string {
	raw := strconv.FormatInt(c.CreatedAt.UnixNano(), 10) + ":" + c.ID.String()
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// Trim cuts rows fetched with Params.Fetch down to size and reports whether
// another page follows.
func Trim[T any](rows []T, size int) ([]T, bool) {
	if len(rows) > size {
		return rows[:size], true
	}
	return rows, false
}
