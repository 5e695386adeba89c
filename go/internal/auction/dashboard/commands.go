package dashboard

import (
	"context"
	"errors"

	"github.com/mcdev12/live-auction/go/internal/auction/bidding"
	"github.com/mcdev12/live-auction/go/internal/auction/engine"
	"github.com/mcdev12/live-auction/go/internal/auction/lifecycle"
	"github.com/mcdev12/live-auction/go/internal/models"
	"github.com/rs/zerolog/log"
)

// PlaceBid submits a bid for the dashboard's user. A nil amount bids the
// server-provided next minimum. The network call runs on the caller's goroutine.
func (d *Dashboard) PlaceBid(ctx context.Context, amount *float64) (*models.BidRecord, error) {
	var value float64
	if amount != nil {
		value = *amount
	} else {
		suggested, ok := bidding.SuggestedAmount(d.Frame().View.Snapshot)
		if !ok {
			return nil, models.ErrNoAuction
		}
		value = suggested
	}

	bid, err := d.bids.Submit(ctx, d.userID, value)
	switch {
	case err == nil:
	case models.IsValidation(err):
		msg := err.Error()
		d.post(func() { d.engine.Notify(engine.NotificationBidError, msg) })
	case errors.Is(err, models.ErrSubmissionInFlight):
		log.Debug().Msg("bid ignored, another submission is in flight")
	default:
		// The coordinator already raised the bidError notification.
		d.post(func() {})
	}
	return bid, err
}

// CreateAuction validates the pending form and creates a new auction from it.
// Only one creation may be outstanding.
func (d *Dashboard) CreateAuction(ctx context.Context) (*models.AuctionSnapshot, error) {
	var req lifecycle.CreateRequest
	err := d.call(ctx, func() error {
		var err error
		req, err = d.lifecycle.BeginCreate()
		if err != nil {
			if models.IsValidation(err) {
				d.createError = err.Error()
			}
			return err
		}
		d.createError = ""
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Float64("starting_bid", req.StartingBid).
		Int("duration", req.Duration).
		Bool("extended_bidding", req.ExtendedBidding).
		Msg("creating auction")

	snapshot, createErr := d.creator.CreateAuction(ctx, req.StartingBid, req.Duration, req.ExtendedBidding)

	// Settle on the loop even when ctx is done so the creating flag is released.
	settle := func() error {
		if createErr != nil {
			d.lifecycle.CreateFailed()
			d.createError = models.ReasonOf(createErr)
			return nil
		}
		d.afterRemote(d.engine.ApplySnapshot(snapshot))
		d.lifecycle.CreateSucceeded(snapshot)
		d.createError = ""
		return nil
	}
	if err := d.call(context.WithoutCancel(ctx), settle); err != nil {
		return nil, err
	}

	if createErr != nil {
		log.Error().Err(createErr).Msg("failed to create auction")
		return nil, createErr
	}
	log.Info().Str("auction_id", snapshot.ID).Msg("auction created")
	return snapshot, nil
}

// UpdateForm edits the pending creation form
func (d *Dashboard) UpdateForm(ctx context.Context, u lifecycle.FormUpdate) (lifecycle.FormState, error) {
	var form lifecycle.FormState
	err := d.call(ctx, func() error {
		form = d.lifecycle.UpdateForm(u)
		return nil
	})
	return form, err
}

// RequestCreate switches to the creation surface once the current auction has ended
func (d *Dashboard) RequestCreate(ctx context.Context) error {
	return d.call(ctx, func() error {
		if err := d.lifecycle.RequestCreate(); err != nil {
			return err
		}
		d.createError = ""
		return nil
	})
}

// DismissCreate returns to the live surface, discarding the form
func (d *Dashboard) DismissCreate(ctx context.Context) error {
	return d.call(ctx, func() error {
		if err := d.lifecycle.Dismiss(); err != nil {
			return err
		}
		d.createError = ""
		return nil
	})
}
