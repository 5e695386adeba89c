package bidding

import (
	"context"
	"math"
	"sync"

	"github.com/mcdev12/live-auction/go/internal/auction/engine"
	"github.com/mcdev12/live-auction/go/internal/models"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// monetaryPrecision is the number of decimal places kept on submitted amounts.
const monetaryPrecision int32 = 2

const successMessage = "Bid placed successfully!"

// State of the most recent user-initiated bid attempt
type State int

const (
	StateIdle State = iota
	StateInFlight
	StateSucceeded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateInFlight:
		return "in_flight"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// MarshalText renders the state by name in JSON frames.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Status is the SubmissionState exposed to renderers
type Status struct {
	State  State             `json:"state"`
	Reason string            `json:"reason,omitempty"`
	Bid    *models.BidRecord `json:"bid,omitempty"`
}

// Placer issues the placeBid mutation
type Placer interface {
	PlaceBid(ctx context.Context, userID string, amount float64) (*models.BidRecord, error)
}

// Notifier registers transient notifications with the engine
type Notifier interface {
	Notify(kind engine.NotificationKind, message string)
}

// Resyncer requests a forced pull of authoritative state
type Resyncer interface {
	RequestResync()
}

// Coordinator serializes bid submissions. Exclusion is by state: a submission
// attempted while another is InFlight is rejected, never queued.
type Coordinator struct {
	placer   Placer
	notifier Notifier
	resyncer Resyncer

	mu     sync.Mutex
	status Status
}

// NewCoordinator creates an idle coordinator
func NewCoordinator(placer Placer, notifier Notifier, resyncer Resyncer) *Coordinator {
	return &Coordinator{
		placer:   placer,
		notifier: notifier,
		resyncer: resyncer,
	}
}

// Status returns the current submission state
func (c *Coordinator) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Submit places a bid for userID. It fails fast, without a network call, when a
// submission is already in flight or the amount is not a finite number. On success
// the authoritative snapshot is re-pulled; the post-bid price is never guessed here.
func (c *Coordinator) Submit(ctx context.Context, userID string, amount float64) (*models.BidRecord, error) {
	amount, err := c.begin(amount)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("user_id", userID).
		Float64("amount", amount).
		Msg("submitting bid")

	bid, err := c.placer.PlaceBid(ctx, userID, amount)
	if err != nil {
		return nil, c.fail(err)
	}
	c.succeed(bid)
	return bid, nil
}

func (c *Coordinator) begin(amount float64) (float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.status.State == StateInFlight {
		return 0, models.ErrSubmissionInFlight
	}

	// A new user-initiated attempt clears the previous outcome.
	c.status = Status{State: StateIdle}

	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return 0, models.NewValidationError("amount", "Please enter a valid bid amount")
	}

	c.status = Status{State: StateInFlight}
	return NormalizeAmount(amount), nil
}

func (c *Coordinator) fail(err error) error {
	reason := models.ReasonOf(err)

	c.mu.Lock()
	c.status = Status{State: StateFailed, Reason: reason}
	c.mu.Unlock()

	log.Warn().Err(err).Str("reason", reason).Msg("bid rejected")
	c.notifier.Notify(engine.NotificationBidError, reason)

	return &models.SubmissionError{Reason: reason, Err: err}
}

func (c *Coordinator) succeed(bid *models.BidRecord) {
	c.mu.Lock()
	c.status = Status{State: StateSucceeded, Bid: bid}
	c.mu.Unlock()

	if bid != nil {
		log.Info().
			Str("bid_id", bid.ID).
			Str("user_id", bid.UserID).
			Float64("amount", bid.Amount).
			Msg("bid accepted")
	}
	c.notifier.Notify(engine.NotificationBidSuccess, successMessage)
	c.resyncer.RequestResync()
}

// NormalizeAmount rounds a finite amount to cents.
func NormalizeAmount(amount float64) float64 {
	return decimal.NewFromFloat(amount).Round(monetaryPrecision).InexactFloat64()
}

// SuggestedAmount returns the server-provided minimum next bid for the snapshot.
func SuggestedAmount(snapshot *models.AuctionSnapshot) (float64, bool) {
	if snapshot == nil || !snapshot.IsActive() {
		return 0, false
	}
	return snapshot.NextBid, true
}
