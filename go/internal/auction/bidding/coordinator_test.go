package bidding

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/mcdev12/live-auction/go/internal/auction/engine"
	"github.com/mcdev12/live-auction/go/internal/models"
	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
)

type fakePlacer struct {
	mu      sync.Mutex
	calls   []float64
	started chan struct{}
	release chan struct{}
	err     error
}

func (p *fakePlacer) PlaceBid(ctx context.Context, userID string, amount float64) (*models.BidRecord, error) {
	p.mu.Lock()
	p.calls = append(p.calls, amount)
	p.mu.Unlock()

	if p.started != nil {
		p.started <- struct{}{}
	}
	if p.release != nil {
		select {
		case <-p.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if p.err != nil {
		return nil, p.err
	}
	return &models.BidRecord{ID: "bid-1", UserID: userID, Amount: amount, Timestamp: time.Now()}, nil
}

func (p *fakePlacer) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

type notification struct {
	Kind    engine.NotificationKind
	Message string
}

type recorder struct {
	mu            sync.Mutex
	notifications []notification
	resyncs       int
}

func (r *recorder) Notify(kind engine.NotificationKind, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notifications = append(r.notifications, notification{Kind: kind, Message: message})
}

func (r *recorder) RequestResync() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resyncs++
}

func TestSubmit_Success(t *testing.T) {
	placer := &fakePlacer{}
	rec := &recorder{}
	c := NewCoordinator(placer, rec, rec)

	bid, err := c.Submit(context.Background(), "User7", 105)
	assert.NoError(t, err)
	check.Equal(t, "bid-1", bid.ID)
	check.Equal(t, 105.0, bid.Amount)

	status := c.Status()
	check.Equal(t, StateSucceeded, status.State)
	check.Equal(t, "bid-1", status.Bid.ID)
	check.Equal(t, []notification{{Kind: engine.NotificationBidSuccess, Message: "Bid placed successfully!"}}, rec.notifications)
	check.Equal(t, 1, rec.resyncs)
}

func TestSubmit_ServerRejection(t *testing.T) {
	placer := &fakePlacer{err: &models.GraphQLError{Messages: []string{"Bid must be at least $110.00"}}}
	rec := &recorder{}
	c := NewCoordinator(placer, rec, rec)

	_, err := c.Submit(context.Background(), "User7", 105)
	var se *models.SubmissionError
	assert.True(t, errors.As(err, &se))
	check.Equal(t, "Bid must be at least $110.00", se.Reason)

	status := c.Status()
	check.Equal(t, StateFailed, status.State)
	check.Equal(t, "Bid must be at least $110.00", status.Reason)
	check.Equal(t, []notification{{Kind: engine.NotificationBidError, Message: "Bid must be at least $110.00"}}, rec.notifications)
	check.Equal(t, 0, rec.resyncs)
}

func TestSubmit_RejectedWhileInFlight(t *testing.T) {
	placer := &fakePlacer{started: make(chan struct{}, 1), release: make(chan struct{})}
	rec := &recorder{}
	c := NewCoordinator(placer, rec, rec)

	done := make(chan error, 1)
	go func() {
		_, err := c.Submit(context.Background(), "User7", 105)
		done <- err
	}()
	<-placer.started
	check.Equal(t, StateInFlight, c.Status().State)

	_, err := c.Submit(context.Background(), "User7", 110)
	check.True(t, errors.Is(err, models.ErrSubmissionInFlight))
	check.Equal(t, 1, placer.callCount())

	close(placer.release)
	assert.NoError(t, <-done)
	check.Equal(t, StateSucceeded, c.Status().State)

	// A fresh attempt is accepted once the first resolves.
	placer.started = nil
	_, err = c.Submit(context.Background(), "User7", 110)
	check.NoError(t, err)
	check.Equal(t, 2, placer.callCount())
}

func TestSubmit_InvalidAmount(t *testing.T) {
	placer := &fakePlacer{}
	rec := &recorder{}
	c := NewCoordinator(placer, rec, rec)

	for _, amount := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		_, err := c.Submit(context.Background(), "User7", amount)
		check.True(t, models.IsValidation(err))
	}
	check.Equal(t, 0, placer.callCount())
	check.Equal(t, StateIdle, c.Status().State)
	check.Equal(t, 0, len(rec.notifications))
}

func TestSubmit_NewAttemptClearsPreviousOutcome(t *testing.T) {
	placer := &fakePlacer{err: errors.New("boom")}
	rec := &recorder{}
	c := NewCoordinator(placer, rec, rec)

	_, err := c.Submit(context.Background(), "User7", 105)
	check.Error(t, err)
	check.Equal(t, StateFailed, c.Status().State)

	_, err = c.Submit(context.Background(), "User7", math.NaN())
	check.Error(t, err)
	check.Equal(t, StateIdle, c.Status().State)
	check.Equal(t, "", c.Status().Reason)
}

func TestNormalizeAmount(t *testing.T) {
	check.Equal(t, 105.0, NormalizeAmount(105))
	check.Equal(t, 105.13, NormalizeAmount(105.125))
	check.Equal(t, 0.3, NormalizeAmount(0.1+0.2))
}

func TestSuggestedAmount(t *testing.T) {
	_, ok := SuggestedAmount(nil)
	check.False(t, ok)

	snapshot := &models.AuctionSnapshot{ID: "a1", Status: models.AuctionStatusActive, NextBid: 115}
	amount, ok := SuggestedAmount(snapshot)
	assert.True(t, ok)
	check.Equal(t, 115.0, amount)

	snapshot.Status = models.AuctionStatusEnded
	_, ok = SuggestedAmount(snapshot)
	check.False(t, ok)
}

func TestState_MarshalText(t *testing.T) {
	text, err := StateInFlight.MarshalText()
	assert.NoError(t, err)
	check.Equal(t, "in_flight", string(text))
}
