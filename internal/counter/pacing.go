package counter

import (
	"context"
	"sync/atomic"
	"time"
)

// Pacing constants. One session stays comfortably under the flood
// budget at 2ms per message; ranges past ~3000 messages get the wider
// 5ms step because throttling becomes likely around that volume.
const (
	shortRangeDelay = 2 * time.Millisecond
	longRangeDelay  = 5 * time.Millisecond
	longRangeSpan   = 3000

	watchdogTick     = 500 * time.Millisecond
	stallBandLow     = 500 * time.Millisecond
	stallBandHigh    = 1050 * time.Millisecond
	watchdogIdleStop = 60 * time.Second
)

// Governor paces one job's message fetches and watches for stalls
// that look like the platform throttling us.
type Governor struct {
	// lastActivity is the unix-nano timestamp of the job's last
	// processed message. 0 means cleared (job done). Written by the
	// worker, read by the watchdog goroutine.
	lastActivity atomic.Int64
}

// NewGovernor creates a governor with a fresh activity mark so the
// watchdog does not fire before the first message.
func NewGovernor() *Governor {
	g := &Governor{}
	g.Touch()
	return g
}

// Delay returns the inter-fetch delay for a range of the given span.
func Delay(span int) time.Duration {
	if span > longRangeSpan {
		return longRangeDelay
	}
	return shortRangeDelay
}

// Pace sleeps the pacing delay for the given span, or returns early
// when the context is cancelled.
func (g *Governor) Pace(ctx context.Context, span int) error {
	select {
	case <-time.After(Delay(span)):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Touch re-arms the activity timestamp after a message was processed.
func (g *Governor) Touch() {
	g.lastActivity.Store(time.Now().UnixNano())
}

// Clear marks the job finished; the watchdog stops on the next tick.
func (g *Governor) Clear() {
	g.lastActivity.Store(0)
}

// Watch polls the activity timestamp and calls onStall once per stall
// episode: when the elapsed time since the last activity falls inside
// the band that means "a fetch is hanging longer than a pace step but
// the job is not dead". Blocks until Clear or a long idle; run it on
// its own goroutine.
func (g *Governor) Watch(onStall func()) {
	fired := false

	for {
		time.Sleep(watchdogTick)

		last := g.lastActivity.Load()
		if last == 0 {
			return
		}

		elapsed := time.Since(time.Unix(0, last))
		if elapsed > stallBandLow && elapsed < stallBandHigh {
			if !fired {
				fired = true
				onStall()
			}
		} else if elapsed <= stallBandLow {
			// activity resumed, a new stall may fire again
			fired = false
		}

		// no activity for a minute, assume the job is gone
		if elapsed > watchdogIdleStop {
			return
		}
	}
}
