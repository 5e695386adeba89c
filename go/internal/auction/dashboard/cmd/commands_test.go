package main

import (
	"context"
	"strings"
	"testing"

	"github.com/mcdev12/live-auction/go/internal/auction/lifecycle"
	"github.com/mcdev12/live-auction/go/internal/models"
	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
)

func TestParseCommand(t *testing.T) {
	cmd, err := parseCommand("bid")
	assert.NoError(t, err)
	check.Equal(t, cmdBid, cmd.kind)
	check.Nil(t, cmd.amount)

	cmd, err = parseCommand("  BID $125.50 ")
	assert.NoError(t, err)
	assert.NotNil(t, cmd.amount)
	check.Equal(t, 125.5, *cmd.amount)

	cmd, err = parseCommand("set duration 60")
	assert.NoError(t, err)
	check.Equal(t, cmdSetForm, cmd.kind)
	assert.NotNil(t, cmd.form.Duration)
	check.Equal(t, "60", *cmd.form.Duration)

	cmd, err = parseCommand("set extended off")
	assert.NoError(t, err)
	assert.NotNil(t, cmd.form.ExtendedBidding)
	check.False(t, *cmd.form.ExtendedBidding)

	cmd, err = parseCommand("quit")
	assert.NoError(t, err)
	check.Equal(t, cmdQuit, cmd.kind)
}

func TestParseCommand_Errors(t *testing.T) {
	_, err := parseCommand("bid abc")
	check.True(t, models.IsValidation(err))

	_, err = parseCommand("set colour red")
	check.Error(t, err)

	_, err = parseCommand("dance")
	check.Error(t, err)

	_, err = parseCommand("")
	check.Error(t, err)
}

type recordingController struct {
	bids    []*float64
	creates int
	forms   []lifecycle.FormUpdate
	opened  int
}

func (c *recordingController) PlaceBid(_ context.Context, amount *float64) (*models.BidRecord, error) {
	c.bids = append(c.bids, amount)
	return &models.BidRecord{ID: "bid-1"}, nil
}

func (c *recordingController) CreateAuction(context.Context) (*models.AuctionSnapshot, error) {
	c.creates++
	return &models.AuctionSnapshot{ID: "auction-1"}, nil
}

func (c *recordingController) UpdateForm(_ context.Context, u lifecycle.FormUpdate) (lifecycle.FormState, error) {
	c.forms = append(c.forms, u)
	return lifecycle.DefaultForm().Apply(u), nil
}

func (c *recordingController) RequestCreate(context.Context) error {
	c.opened++
	return nil
}

func (c *recordingController) DismissCreate(context.Context) error { return nil }

func TestReadCommands_StopsOnQuit(t *testing.T) {
	ctrl := &recordingController{}
	quitCalled := false

	input := strings.NewReader("set bid 250\ncreate\nbid\nnew\nquit\nbid 300\n")
	readCommands(context.Background(), input, ctrl, func() { quitCalled = true })

	check.True(t, quitCalled)
	check.Equal(t, 1, len(ctrl.forms))
	check.Equal(t, 1, ctrl.creates)
	check.Equal(t, 1, len(ctrl.bids))
	check.Nil(t, ctrl.bids[0])
	check.Equal(t, 1, ctrl.opened)
}
