package engine

import (
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/live-auction/go/internal/models"
	"github.com/rs/zerolog/log"
)

// ViewState is the engine's externally visible output
type ViewState struct {
	Snapshot               *models.AuctionSnapshot `json:"auction,omitempty"`
	DisplayedTimeRemaining int                     `json:"displayed_time_remaining"`
	Notifications          []Notification          `json:"notifications"`
	FetchError             string                  `json:"fetch_error,omitempty"`
}

// Outcome tells the caller what a remote update changed
type Outcome struct {
	// Applied is true when lastSnapshot was replaced or cleared.
	Applied bool
	// AuctionChanged is true when the auction identity differs from before.
	AuctionChanged bool
	// Extended is true when an extension notification was raised.
	Extended bool
	// NeedsResync asks for a forced pull because the update could not be reconciled locally.
	NeedsResync bool
}

// Engine merges pulled snapshots, pushed events and local ticks into one ViewState.
// It is not safe for concurrent use; the dashboard loop is its only caller.
type Engine struct {
	clock clockwork.Clock

	lastSnapshot           *models.AuctionSnapshot
	displayedTimeRemaining int
	previousTimeRemaining  int

	notifications *NotificationSet
	fetchError    string

	// Auctions we have moved past. Late events for them are dropped.
	retired map[string]struct{}
}

// Option configures an Engine
type Option func(*Engine)

// WithNotificationTTL overrides the 3 second notification lifetime
func WithNotificationTTL(ttl time.Duration) Option {
	return func(e *Engine) {
		e.notifications = NewNotificationSet(ttl)
	}
}

// New creates an engine with no known auction
func New(clock clockwork.Clock, opts ...Option) *Engine {
	e := &Engine{
		clock:         clock,
		notifications: NewNotificationSet(DefaultNotificationTTL),
		retired:       make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// DetectExtension reports whether a snapshot update represents a server-side time
// extension: the countdown went up on a BID_PLACED event instead of going down.
func DetectExtension(eventType models.EventType, oldTime, newTime int) bool {
	return eventType == models.EventTypeBidPlaced && newTime > oldTime
}

// ApplySnapshot reconciles a pulled snapshot. A nil snapshot means the server has
// no active auction.
func (e *Engine) ApplySnapshot(snapshot *models.AuctionSnapshot) Outcome {
	e.fetchError = ""
	if snapshot == nil {
		if e.lastSnapshot == nil {
			return Outcome{}
		}
		e.retire(e.lastSnapshot.ID)
		log.Info().Str("auction_id", e.lastSnapshot.ID).Msg("server reports no active auction")
		e.lastSnapshot = nil
		e.displayedTimeRemaining = 0
		e.previousTimeRemaining = 0
		return Outcome{Applied: true, AuctionChanged: true}
	}
	return e.reconcile("", snapshot.Normalize())
}

// ApplyEvent reconciles a pushed event.
func (e *Engine) ApplyEvent(event models.AuctionEvent) Outcome {
	if event.IsError() {
		log.Warn().Str("error", *event.Error).Msg("auction event stream reported an error")
		return Outcome{}
	}
	if !event.HasSnapshot() {
		log.Debug().Str("event_type", string(event.Type)).Msg("ignoring event without auction state")
		return Outcome{}
	}

	partial := *event.Auction
	if _, stale := e.retired[partial.ID]; stale {
		log.Debug().
			Str("auction_id", partial.ID).
			Str("event_type", string(event.Type)).
			Msg("dropping event for retired auction")
		return Outcome{}
	}

	var snapshot models.AuctionSnapshot
	switch {
	case e.lastSnapshot != nil && e.lastSnapshot.ID == partial.ID:
		snapshot = partial.MergeOnto(*e.lastSnapshot)
	default:
		full, ok := partial.ToSnapshot()
		if !ok {
			// A new auction we only know partially; only the pull query has the full shape.
			log.Info().
				Str("auction_id", partial.ID).
				Str("event_type", string(event.Type)).
				Msg("event for unknown auction, requesting resync")
			return Outcome{NeedsResync: true}
		}
		snapshot = full
	}

	return e.reconcile(event.Type, snapshot)
}

// reconcile is the single commit point for remote state.
func (e *Engine) reconcile(eventType models.EventType, snapshot models.AuctionSnapshot) Outcome {
	newTime := snapshot.TimeRemaining
	oldTime := e.previousTimeRemaining

	out := Outcome{Applied: true}
	if e.lastSnapshot == nil || e.lastSnapshot.ID != snapshot.ID {
		out.AuctionChanged = true
		if e.lastSnapshot != nil {
			e.retire(e.lastSnapshot.ID)
		}
	}

	delete(e.retired, snapshot.ID)
	e.lastSnapshot = &snapshot
	e.displayedTimeRemaining = newTime

	if !out.AuctionChanged && DetectExtension(eventType, oldTime, newTime) {
		e.notifications.Add(NotificationExtended, extensionMessage(newTime), e.clock.Now())
		out.Extended = true
		log.Info().
			Str("auction_id", snapshot.ID).
			Int("old_time_remaining", oldTime).
			Int("new_time_remaining", newTime).
			Msg("auction extended")
	}

	e.previousTimeRemaining = newTime

	log.Debug().
		Str("auction_id", snapshot.ID).
		Str("event_type", string(eventType)).
		Str("status", string(snapshot.Status)).
		Int("time_remaining", newTime).
		Float64("current_bid", snapshot.CurrentBid).
		Msg("snapshot reconciled")

	return out
}

// Tick applies one local second. Remote state and previousTimeRemaining are untouched.
// Returns the new displayed countdown.
func (e *Engine) Tick() int {
	if e.lastSnapshot == nil || !e.lastSnapshot.IsActive() {
		return e.displayedTimeRemaining
	}
	if e.displayedTimeRemaining > 0 {
		e.displayedTimeRemaining--
	}
	return e.displayedTimeRemaining
}

// SetFetchError records a failed pull so the renderer can show it.
// The last-known snapshot stays in place.
func (e *Engine) SetFetchError(err error) {
	if err == nil {
		e.fetchError = ""
		return
	}
	e.fetchError = err.Error()
}

// Notify registers a transient notification of the given kind.
func (e *Engine) Notify(kind NotificationKind, message string) {
	e.notifications.Add(kind, message, e.clock.Now())
}

// ExpireNotifications removes notifications whose window has passed.
func (e *Engine) ExpireNotifications() bool {
	return e.notifications.Expire(e.clock.Now())
}

// NextExpiry returns when the next notification will lapse.
func (e *Engine) NextExpiry() (time.Time, bool) {
	return e.notifications.NextExpiry()
}

// HasNotification reports whether a notification of the given kind is showing.
func (e *Engine) HasNotification(kind NotificationKind) bool {
	return e.notifications.Has(kind)
}

// Snapshot returns a copy of the last authoritative snapshot, nil if none.
func (e *Engine) Snapshot() *models.AuctionSnapshot {
	if e.lastSnapshot == nil {
		return nil
	}
	s := *e.lastSnapshot
	return &s
}

// DisplayedTimeRemaining returns the locally ticking countdown.
func (e *Engine) DisplayedTimeRemaining() int {
	return e.displayedTimeRemaining
}

// PreviousTimeRemaining returns the countdown committed by the last remote update.
func (e *Engine) PreviousTimeRemaining() int {
	return e.previousTimeRemaining
}

// View returns an immutable copy of the current state.
func (e *Engine) View() ViewState {
	return ViewState{
		Snapshot:               e.Snapshot(),
		DisplayedTimeRemaining: e.displayedTimeRemaining,
		Notifications:          e.notifications.Active(),
		FetchError:             e.fetchError,
	}
}

// Reset drops all state on teardown.
func (e *Engine) Reset() {
	e.lastSnapshot = nil
	e.displayedTimeRemaining = 0
	e.previousTimeRemaining = 0
	e.fetchError = ""
	e.notifications.Clear()
}

func (e *Engine) retire(id string) {
	if id == "" {
		return
	}
	e.retired[id] = struct{}{}
}

func extensionMessage(remaining int) string {
	return fmt.Sprintf("Auction extended! %d:%02d remaining", remaining/60, remaining%60)
}
