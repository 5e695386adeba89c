package lifecycle

import (
	"math"
	"strconv"
	"strings"

	"github.com/mcdev12/live-auction/go/internal/models"
)

const (
	MinDuration = 10
	MaxDuration = 3600

	defaultStartingBid     = "100"
	defaultDuration        = "30"
	defaultExtendedBidding = true
)

// CreateRequest holds validated createAuction arguments
type CreateRequest struct {
	StartingBid     float64 `json:"startingBid"`
	Duration        int     `json:"duration"`
	ExtendedBidding bool    `json:"extendedBidding"`
}

// FormState holds the raw creation inputs as the user typed them
type FormState struct {
	StartingBid     string `json:"starting_bid"`
	Duration        string `json:"duration"`
	ExtendedBidding bool   `json:"extended_bidding"`
}

// DefaultForm returns the form pre-filled with 100 / 30s / extended bidding on
func DefaultForm() FormState {
	return FormState{
		StartingBid:     defaultStartingBid,
		Duration:        defaultDuration,
		ExtendedBidding: defaultExtendedBidding,
	}
}

// Validate checks the inputs locally. Nothing invalid is ever sent to the server.
func (f FormState) Validate() (CreateRequest, error) {
	startingBid, err := strconv.ParseFloat(strings.TrimSpace(f.StartingBid), 64)
	if err != nil || math.IsNaN(startingBid) || math.IsInf(startingBid, 0) || startingBid <= 0 {
		return CreateRequest{}, models.NewValidationError("startingBid", "Starting bid must be a positive number")
	}

	duration, err := strconv.Atoi(strings.TrimSpace(f.Duration))
	if err != nil || duration < MinDuration || duration > MaxDuration {
		return CreateRequest{}, models.NewValidationError("duration", "Duration must be between 10 and 3600 seconds")
	}

	return CreateRequest{
		StartingBid:     startingBid,
		Duration:        duration,
		ExtendedBidding: f.ExtendedBidding,
	}, nil
}

// FormUpdate carries optional field edits; nil fields are left unchanged
type FormUpdate struct {
	StartingBid     *string `json:"starting_bid,omitempty"`
	Duration        *string `json:"duration,omitempty"`
	ExtendedBidding *bool   `json:"extended_bidding,omitempty"`
}

// Apply returns the form with the update applied
func (f FormState) Apply(u FormUpdate) FormState {
	if u.StartingBid != nil {
		f.StartingBid = *u.StartingBid
	}
	if u.Duration != nil {
		f.Duration = *u.Duration
	}
	if u.ExtendedBidding != nil {
		f.ExtendedBidding = *u.ExtendedBidding
	}
	return f
}
