// Package venue adapts each exchange's candle-history endpoint to a common
// Source contract over the shared HTTP client.
package venue

import (
	"context"

	"candle-diff/internal/candle"
	"candle-diff/internal/reconcile"
)

// Source fetches one venue's close series for a window. Implementations
// return whatever minutes the venue reported; gap handling belongs to the
// reconciler.
type Source interface {
	Name() string
	Fetch(ctx context.Context, w reconcile.Window) (candle.Series, error)
}

// fetchLimit over-requests so the window edges survive venues that trim or
// pad their responses.
func fetchLimit(rows int) int {
	if limit := rows + 60; limit > 1500 {
		return limit
	}
	return 1500
}
