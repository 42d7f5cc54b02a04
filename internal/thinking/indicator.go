// ABOUTME: Thinking indicator that times the in-flight request
// ABOUTME: Exposes a ticker channel for live re-rendering and the elapsed time on stop

package thinking

import (
	"fmt"
	"time"
)

// DefaultTick is how often the placeholder timer is re-rendered.
const DefaultTick = 100 * time.Millisecond

// Indicator tracks IDLE -> THINKING -> IDLE for one request at a time.
// It is owned by a single goroutine and is not safe for concurrent use.
type Indicator struct {
	tick time.Duration
	now  func() time.Time

	active  bool
	started time.Time
	ticker  *time.Ticker
}

// New creates an idle Indicator. A nil clock uses time.Now.
func New(tick time.Duration, now func() time.Time) *Indicator {
	if tick <= 0 {
		tick = DefaultTick
	}
	if now == nil {
		now = time.Now
	}
	return &Indicator{tick: tick, now: now}
}

// Start enters THINKING. Starting while already thinking restarts the clock.
func (i *Indicator) Start() {
	if i.ticker != nil {
		i.ticker.Stop()
	}
	i.active = true
	i.started = i.now()
	i.ticker = time.NewTicker(i.tick)
}

// Stop leaves THINKING and returns the elapsed time. The second return is
// false when the indicator was already idle.
func (i *Indicator) Stop() (time.Duration, bool) {
	if !i.active {
		return 0, false
	}
	elapsed := i.Elapsed()
	i.active = false
	if i.ticker != nil {
		i.ticker.Stop()
		i.ticker = nil
	}
	return elapsed, true
}

// Active reports whether a request is being timed.
func (i *Indicator) Active() bool {
	return i.active
}

// Elapsed returns the time since Start, or zero when idle.
func (i *Indicator) Elapsed() time.Duration {
	if !i.active {
		return 0
	}
	return i.now().Sub(i.started)
}

// C returns the re-render tick channel. It is nil while idle, so a select
// on it blocks forever.
func (i *Indicator) C() <-chan time.Time {
	if i.ticker == nil {
		return nil
	}
	return i.ticker.C
}

// Format renders an elapsed duration the way the placeholder shows it.
func Format(d time.Duration) string {
	return fmt.Sprintf("%.2fs", d.Seconds())
}
