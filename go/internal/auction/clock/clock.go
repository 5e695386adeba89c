package clock

import (
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/live-auction/go/internal/models"
	"github.com/rs/zerolog/log"
)

// TickInterval is the period of the local countdown.
const TickInterval = time.Second

// Signal is what the clock reports after the engine applied a tick.
type Signal int

const (
	SignalNone Signal = iota
	SignalExpired
)

// LocalClock proposes one-second decrements while the known auction is ACTIVE.
// It never holds the snapshot itself, only the id and status it is ticking for.
// All methods must be called from the dashboard loop goroutine.
type LocalClock struct {
	clock     clockwork.Clock
	ticker    clockwork.Ticker
	auctionID string
	expired   bool
}

// New creates a stopped LocalClock. In production, use clockwork.NewRealClock().
func New(clock clockwork.Clock) *LocalClock {
	return &LocalClock{clock: clock}
}

// C returns the tick channel, or nil while the clock is stopped so a select on it blocks.
func (c *LocalClock) C() <-chan time.Time {
	if c.ticker == nil {
		return nil
	}
	return c.ticker.Chan()
}

// Running reports whether ticks are being produced.
func (c *LocalClock) Running() bool {
	return c.ticker != nil
}

// AuctionID returns the auction the clock is currently bound to.
func (c *LocalClock) AuctionID() string {
	return c.auctionID
}

// Sync binds the clock to the latest authoritative snapshot.
// A different auction id discards all state for the previous one.
func (c *LocalClock) Sync(snapshot *models.AuctionSnapshot) {
	if snapshot == nil {
		c.Stop()
		c.auctionID = ""
		c.expired = false
		return
	}

	if snapshot.ID != c.auctionID {
		c.Stop()
		log.Debug().
			Str("previous_auction_id", c.auctionID).
			Str("auction_id", snapshot.ID).
			Msg("local clock bound to new auction")
		c.auctionID = snapshot.ID
		c.expired = false
	}

	if !snapshot.IsActive() {
		c.Stop()
		return
	}

	if c.expired {
		// Only fresh authoritative time re-arms an expired countdown.
		if snapshot.TimeRemaining <= 0 {
			return
		}
		c.expired = false
	}

	// An ACTIVE snapshot at zero still ticks once so expiry is reported through Observe.
	c.start()
}

// Observe is called after the engine applied a tick. When the displayed countdown
// reached zero it reports SignalExpired exactly once per auction id and stops ticking.
func (c *LocalClock) Observe(remaining int) Signal {
	if remaining > 0 || c.expired || c.auctionID == "" {
		return SignalNone
	}
	c.expired = true
	c.Stop()
	log.Info().Str("auction_id", c.auctionID).Msg("local countdown expired")
	return SignalExpired
}

// Realign drops a tick that is already due and restarts the one-second phase.
// Called whenever remote state was applied so a same-instant tick becomes a no-op.
func (c *LocalClock) Realign() {
	if c.ticker == nil {
		return
	}
	drain(c.ticker)
	c.ticker.Reset(TickInterval)
}

// Stop halts ticking and discards any pending tick.
func (c *LocalClock) Stop() {
	if c.ticker == nil {
		return
	}
	c.ticker.Stop()
	drain(c.ticker)
	c.ticker = nil
}

func (c *LocalClock) start() {
	if c.ticker != nil {
		return
	}
	c.ticker = c.clock.NewTicker(TickInterval)
}

// drain empties the ticker channel without blocking.
func drain(t clockwork.Ticker) {
	select {
	case <-t.Chan():
	default:
	}
}
