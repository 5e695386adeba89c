package dashboard

import (
	"strings"
	"testing"

	"github.com/mcdev12/live-auction/go/internal/auction/engine"
	"github.com/mcdev12/live-auction/go/internal/auction/lifecycle"
	"github.com/mcdev12/live-auction/go/internal/models"
	"github.com/peterldowns/testy/check"
)

func TestFormatClock(t *testing.T) {
	tests := []struct {
		seconds int
		want    string
	}{
		{0, "0:00"},
		{9, "0:09"},
		{60, "1:00"},
		{185, "3:05"},
		{-4, "0:00"},
	}
	for _, tt := range tests {
		check.Equal(t, tt.want, FormatClock(tt.seconds))
	}
}

func TestFormatMoney(t *testing.T) {
	check.Equal(t, "$100.00", FormatMoney(100))
	check.Equal(t, "$105.50", FormatMoney(105.5))
	check.Equal(t, "$0.10", FormatMoney(0.1))
}

func TestIsEnding(t *testing.T) {
	check.True(t, IsEnding(10))
	check.True(t, IsEnding(0))
	check.False(t, IsEnding(11))
}

func TestRenderLive(t *testing.T) {
	snapshot := activeSnapshot("auction-1", 8)
	snapshot.CurrentWinner = ptr("User7")

	out := Render(Frame{
		View: engine.ViewState{
			Snapshot:               snapshot,
			DisplayedTimeRemaining: 8,
			Notifications: []engine.Notification{
				{Kind: engine.NotificationExtended, Message: "Auction extended! 0:18 remaining"},
			},
		},
		Surface: lifecycle.ShowLive,
		UserID:  "User7",
		Ending:  true,
	})

	check.True(t, strings.Contains(out, "0:08"))
	check.True(t, strings.Contains(out, "Ending Soon!"))
	check.True(t, strings.Contains(out, "User7 (you)"))
	check.True(t, strings.Contains(out, "$105.00"))
	check.True(t, strings.Contains(out, "Auction extended!"))
}

func TestRenderCreate(t *testing.T) {
	form := lifecycle.DefaultForm()
	out := Render(Frame{
		Surface:     lifecycle.ShowCreate,
		Form:        &form,
		CreateError: "Starting bid must be a positive number",
		UserID:      "User1",
	})

	check.True(t, strings.Contains(out, "Create New Auction"))
	check.True(t, strings.Contains(out, "starting bid: 100"))
	check.True(t, strings.Contains(out, "Starting bid must be a positive number"))
}

func TestRenderEnded(t *testing.T) {
	snapshot := activeSnapshot("auction-1", 0)
	snapshot.Status = models.AuctionStatusEnded

	out := Render(Frame{
		View:    engine.ViewState{Snapshot: snapshot},
		Surface: lifecycle.ShowLive,
		UserID:  "User1",
	})
	check.True(t, strings.Contains(out, "auction ended"))
	check.True(t, strings.Contains(out, "no bids yet"))
}
