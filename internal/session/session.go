// Package session holds the stateful, per-form interaction flows built on
// the geocoding client: address autocomplete and map pin placement. Both are
// plain structs owned by their caller, with an injectable clock so tests can
// drive debounce and backoff deterministically.
package session

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
)

// sleepCtx waits d on the injected clock, returning false if ctx is
// cancelled first.
func sleepCtx(ctx context.Context, clock clockwork.Clock, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := clock.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.Chan():
		return true
	}
}
