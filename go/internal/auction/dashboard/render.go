package dashboard

import (
	"fmt"
	"strings"

	"github.com/mcdev12/live-auction/go/internal/auction/bidding"
	"github.com/mcdev12/live-auction/go/internal/auction/engine"
	"github.com/mcdev12/live-auction/go/internal/auction/lifecycle"
)

// Render formats a frame as plain text for terminal output
func Render(f Frame) string {
	var b strings.Builder

	fmt.Fprintf(&b, "== Live Auction ==  bidding as %s\n", f.UserID)
	if f.View.FetchError != "" {
		fmt.Fprintf(&b, "! could not refresh auction: %s\n", f.View.FetchError)
	}

	if f.Surface == lifecycle.ShowCreate {
		renderCreate(&b, f)
	} else {
		renderLive(&b, f)
	}

	for _, n := range f.View.Notifications {
		switch n.Kind {
		case engine.NotificationBidError:
			fmt.Fprintf(&b, "[error] %s\n", n.Message)
		default:
			fmt.Fprintf(&b, "[%s] %s\n", n.Kind, n.Message)
		}
	}
	return b.String()
}

func renderCreate(b *strings.Builder, f Frame) {
	b.WriteString("Create New Auction\n")
	if f.Form != nil {
		extended := "off"
		if f.Form.ExtendedBidding {
			extended = "on"
		}
		fmt.Fprintf(b, "  starting bid: %s\n", f.Form.StartingBid)
		fmt.Fprintf(b, "  duration (s): %s\n", f.Form.Duration)
		fmt.Fprintf(b, "  extended bidding: %s\n", extended)
	}
	if f.CreateError != "" {
		fmt.Fprintf(b, "  ! %s\n", f.CreateError)
	}
	if f.Creating {
		b.WriteString("  creating...\n")
	}
}

func renderLive(b *strings.Builder, f Frame) {
	snapshot := f.View.Snapshot
	if snapshot == nil {
		b.WriteString("Loading auction...\n")
		return
	}

	status := string(snapshot.Status)
	if f.Ending {
		status += "  Ending Soon!"
	}
	fmt.Fprintf(b, "Auction %s  %s\n", snapshot.ID, status)
	fmt.Fprintf(b, "  time remaining: %s\n", FormatClock(f.View.DisplayedTimeRemaining))
	fmt.Fprintf(b, "  current bid:    %s\n", FormatMoney(snapshot.CurrentBid))

	winner := "no bids yet"
	if snapshot.HasWinner() {
		winner = *snapshot.CurrentWinner
		if winner == f.UserID {
			winner += " (you)"
		}
	}
	fmt.Fprintf(b, "  leader:         %s\n", winner)

	if snapshot.IsActive() {
		fmt.Fprintf(b, "  next minimum:   %s\n", FormatMoney(snapshot.NextBid))
		if snapshot.ExtendedBidding {
			b.WriteString("  extended bidding is on\n")
		}
	} else {
		b.WriteString("  auction ended\n")
	}

	switch f.Submission.State {
	case bidding.StateInFlight:
		b.WriteString("  placing bid...\n")
	case bidding.StateFailed:
		fmt.Fprintf(b, "  last bid failed: %s\n", f.Submission.Reason)
	}
}
