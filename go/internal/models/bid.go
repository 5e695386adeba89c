package models

import "time"

// BidRecord represents a bid accepted by the server
type BidRecord struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Amount    float64   `json:"amount"`
	Timestamp time.Time `json:"timestamp"`
}

// IsPlacedBy checks if this bid was placed by the given user
func (b *BidRecord) IsPlacedBy(userID string) bool {
	return b.UserID == userID
}
