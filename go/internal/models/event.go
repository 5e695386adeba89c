package models

import (
	"encoding/json"
	"fmt"
)

// EventType represents the type of auction push event
type EventType string

const (
	EventTypeBidPlaced      EventType = "BID_PLACED"
	EventTypeAuctionEnded   EventType = "AUCTION_ENDED"
	EventTypeAuctionCreated EventType = "AUCTION_CREATED"

	// eventTypeAuctionStarted is what the auction server actually emits for a new auction.
	eventTypeAuctionStarted = "AUCTION_STARTED"
)

// ParseEventType converts a wire value into an EventType.
func ParseEventType(s string) (EventType, error) {
	switch s {
	case string(EventTypeBidPlaced), string(EventTypeAuctionEnded), string(EventTypeAuctionCreated):
		return EventType(s), nil
	case eventTypeAuctionStarted:
		return EventTypeAuctionCreated, nil
	default:
		return "", fmt.Errorf("unknown event type %q", s)
	}
}

// UnmarshalJSON accepts the known event types plus the server's AUCTION_STARTED alias.
// An empty type is allowed because error-only events carry none.
func (t *EventType) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == "" {
		*t = ""
		return nil
	}
	parsed, err := ParseEventType(raw)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// AuctionEvent is a single delivery from the auctionEvents subscription
type AuctionEvent struct {
	Type    EventType        `json:"type"`
	Auction *PartialSnapshot `json:"auction,omitempty"`
	Bid     *BidRecord       `json:"bid,omitempty"`
	Error   *string          `json:"error,omitempty"`
}

// IsError checks if this event only reports a server-side error
func (e AuctionEvent) IsError() bool {
	return e.Error != nil && *e.Error != ""
}

// HasSnapshot reports whether the event embeds auction state.
func (e AuctionEvent) HasSnapshot() bool {
	return e.Auction != nil && e.Auction.ID != ""
}
