package models

import (
	"encoding/json"
	"fmt"
)

// AuctionStatus defines the status of an auction as reported by the server.
type AuctionStatus string

const (
	AuctionStatusActive AuctionStatus = "ACTIVE"
	AuctionStatusEnded  AuctionStatus = "ENDED"
)

// ParseAuctionStatus converts a wire value into an AuctionStatus.
func ParseAuctionStatus(s string) (AuctionStatus, error) {
	switch AuctionStatus(s) {
	case AuctionStatusActive, AuctionStatusEnded:
		return AuctionStatus(s), nil
	default:
		return "", fmt.Errorf("unknown auction status %q", s)
	}
}

// UnmarshalJSON rejects statuses outside the known set.
func (s *AuctionStatus) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseAuctionStatus(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// AuctionSnapshot is the authoritative point-in-time auction state from the server.
// TimeRemaining is in whole seconds as of receipt.
type AuctionSnapshot struct {
	ID              string        `json:"id"`
	StartingBid     float64       `json:"startingBid"`
	CurrentBid      float64       `json:"currentBid"`
	CurrentWinner   *string       `json:"currentWinner"`
	Duration        int           `json:"duration"`
	ExtendedBidding bool          `json:"extendedBidding"`
	Status          AuctionStatus `json:"status"`
	NextBid         float64       `json:"nextBid"`
	TimeRemaining   int           `json:"timeRemaining"`
}

// IsActive reports whether the server considers the auction open for bids.
func (a AuctionSnapshot) IsActive() bool {
	return a.Status == AuctionStatusActive
}

// HasWinner returns true once at least one bid has been accepted.
func (a AuctionSnapshot) HasWinner() bool {
	return a.CurrentWinner != nil && *a.CurrentWinner != ""
}

// Normalize clamps TimeRemaining at zero.
func (a AuctionSnapshot) Normalize() AuctionSnapshot {
	if a.TimeRemaining < 0 {
		a.TimeRemaining = 0
	}
	return a
}

// PartialSnapshot is the reduced auction shape carried by push events.
// Nil fields were not present in the payload.
type PartialSnapshot struct {
	ID            string         `json:"id"`
	StartingBid   *float64       `json:"startingBid,omitempty"`
	CurrentBid    *float64       `json:"currentBid,omitempty"`
	CurrentWinner *string        `json:"currentWinner,omitempty"`
	Duration      *int           `json:"duration,omitempty"`
	Extended      *bool          `json:"extendedBidding,omitempty"`
	Status        *AuctionStatus `json:"status,omitempty"`
	NextBid       *float64       `json:"nextBid,omitempty"`
	TimeRemaining *int           `json:"timeRemaining,omitempty"`
}

// IsComplete reports whether the partial carries every field of a full snapshot,
// which is the case for AUCTION_CREATED payloads that echo the whole auction.
func (p PartialSnapshot) IsComplete() bool {
	return p.ID != "" && p.StartingBid != nil && p.CurrentBid != nil && p.Duration != nil &&
		p.Extended != nil && p.Status != nil && p.NextBid != nil && p.TimeRemaining != nil
}

// MergeOnto overlays the fields present in p onto base. The caller is responsible
// for checking that base describes the same auction.
func (p PartialSnapshot) MergeOnto(base AuctionSnapshot) AuctionSnapshot {
	merged := base
	merged.ID = p.ID
	if p.StartingBid != nil {
		merged.StartingBid = *p.StartingBid
	}
	if p.CurrentBid != nil {
		merged.CurrentBid = *p.CurrentBid
	}
	// currentWinner is always selected by the subscription, so an absent value means no winner.
	merged.CurrentWinner = p.CurrentWinner
	if p.Duration != nil {
		merged.Duration = *p.Duration
	}
	if p.Extended != nil {
		merged.ExtendedBidding = *p.Extended
	}
	if p.Status != nil {
		merged.Status = *p.Status
	}
	if p.NextBid != nil {
		merged.NextBid = *p.NextBid
	}
	if p.TimeRemaining != nil {
		merged.TimeRemaining = *p.TimeRemaining
	}
	return merged.Normalize()
}

// ToSnapshot converts a complete partial into a full snapshot.
func (p PartialSnapshot) ToSnapshot() (AuctionSnapshot, bool) {
	if !p.IsComplete() {
		return AuctionSnapshot{}, false
	}
	return p.MergeOnto(AuctionSnapshot{}), true
}
