// Package clock provides an injectable time abstraction so the TTL
// countdown and session expiry logic can be tested deterministically.
//
// Production code accepts a Clock parameter instead of calling time.Now or
// time.NewTicker directly. Real() provides standard library behavior;
// Fake() provides a clock that advances only when Advance is called.
package clock

import "time"

// Clock abstracts the time operations the auth core needs: reading the
// current time and running periodic tickers.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// NewTicker returns a Ticker that delivers ticks on its C channel at
	// the specified interval. Panics if d <= 0, matching time.NewTicker.
	NewTicker(d time.Duration) *Ticker
}

// Ticker wraps a periodic timer. Read ticks from C. Call Stop when the
// Ticker is no longer needed to release resources.
//
// The C channel has capacity 1, matching time.Ticker: if the consumer
// falls behind, ticks are dropped rather than queued.
type Ticker struct {
	// C delivers ticks. Buffered with capacity 1.
	C <-chan time.Time

	stopFunc func()
}

// Stop turns off the ticker. No more ticks will be sent on C after Stop
// returns. Stop does not close C.
func (t *Ticker) Stop() { t.stopFunc() }
