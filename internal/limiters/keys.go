package limiters

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/babymilooo/webster-backend/internal/rate"
)

func normalizeIdentifier(identifier string) string {
	return strings.ToLower(strings.TrimSpace(identifier))
}

// hitAll counts one event on every window; windows[i] keys on keys[i]. All
// windows are hit even when an earlier one is exhausted so that counters stay
// comparable across keys.
func hitAll(ctx context.Context, windows []*rate.Window, keys []string) error {
	var first error
	for i, w := range windows {
		if err := w.Hit(ctx, keys[i]); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func mapWindowErr(err, limited, unavailable error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, rate.ErrRateLimited):
		return limited
	default:
		return fmt.Errorf("%w: %v", unavailable, err)
	}
}
