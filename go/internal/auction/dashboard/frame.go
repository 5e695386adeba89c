package dashboard

import (
	"github.com/mcdev12/live-auction/go/internal/auction/bidding"
	"github.com/mcdev12/live-auction/go/internal/auction/engine"
	"github.com/mcdev12/live-auction/go/internal/auction/lifecycle"
)

// Frame is everything a renderer needs after one loop step. Frames are never
// mutated after publication.
type Frame struct {
	Seq          uint64               `json:"seq"`
	View         engine.ViewState     `json:"view"`
	Surface      lifecycle.Surface    `json:"surface"`
	Form         *lifecycle.FormState `json:"form,omitempty"`
	Creating     bool                 `json:"creating"`
	CreateError  string               `json:"create_error,omitempty"`
	Submission   bidding.Status       `json:"submission"`
	UserID       string               `json:"user_id"`
	SuggestedBid *float64             `json:"suggested_bid,omitempty"`
	Ending       bool                 `json:"ending"`
}

// Subscribe registers for frames. The channel holds only the latest frame; a slow
// reader skips intermediate ones. The returned func unsubscribes.
func (d *Dashboard) Subscribe() (<-chan Frame, func()) {
	ch := make(chan Frame, 1)

	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	d.subscribers[ch] = struct{}{}
	if d.seq > 0 {
		ch <- d.frame
	}
	d.mu.Unlock()

	return ch, func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		if _, ok := d.subscribers[ch]; ok {
			delete(d.subscribers, ch)
			close(ch)
		}
	}
}

// Frame returns the most recently published frame
func (d *Dashboard) Frame() Frame {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.frame
}

func (d *Dashboard) publish() {
	view := d.engine.View()

	frame := Frame{
		View:        view,
		Surface:     d.lifecycle.Surface(),
		Form:        d.lifecycle.Form(),
		Creating:    d.lifecycle.Creating(),
		CreateError: d.createError,
		Submission:  d.bids.Status(),
		UserID:      d.userID,
	}
	if amount, ok := bidding.SuggestedAmount(view.Snapshot); ok {
		frame.SuggestedBid = &amount
		frame.Ending = IsEnding(view.DisplayedTimeRemaining)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.seq++
	frame.Seq = d.seq
	d.frame = frame

	for ch := range d.subscribers {
		select {
		case ch <- frame:
		default:
			// Replace the stale frame nobody has read yet.
			select {
			case <-ch:
			default:
			}
			ch <- frame
		}
	}
}

func (d *Dashboard) closeSubscribers() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	for ch := range d.subscribers {
		delete(d.subscribers, ch)
		close(ch)
	}
}
