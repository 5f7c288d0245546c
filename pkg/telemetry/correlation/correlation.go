// Package correlation carries the id that ties a request to the events it emits.
package correlation

import (
	"context"
	"strings"

	"github.com/oklog/ulid/v2"
)

// Header carries the correlation id across service hops.
const Header = "X-Correlation-Id"

const maxIDLength = 64

type correlationKey struct{}

func ExtractCorrelationID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(correlationKey{}).(string)
	return id
}

// ContextWithCorrelationID stores id after Sanitize. Rejected ids leave ctx unchanged.
func ContextWithCorrelationID(ctx context.Context, id string) context.Context {
	if id = Sanitize(id); id == "" {
		return ctx
	}
	return context.WithValue(ctx, correlationKey{}, id)
}

// EnsureCorrelationID returns ctx with a correlation id, minting a ULID when none is set.
func EnsureCorrelationID(ctx context.Context) (context.Context, string) {
	if id := ExtractCorrelationID(ctx); id != "" {
		return ctx, id
	}
	id := NewID()
	return context.WithValue(ctx, correlationKey{}, id), id
}

// Sanitize accepts caller-supplied ids only when short and limited to
// letters, digits, '-', '_' and '.'. Anything else returns "".
func Sanitize(id string) string {
	id = strings.TrimSpace(id)
	if id == "" || len(id) > maxIDLength {
		return ""
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
		default:
			return ""
		}
	}
	return id
}

// NewID returns a lexically sortable identifier.
func NewID() string {
	return ulid.Make().String()
}
