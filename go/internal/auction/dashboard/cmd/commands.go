package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/mcdev12/live-auction/go/internal/auction/lifecycle"
	"github.com/mcdev12/live-auction/go/internal/models"
	"github.com/rs/zerolog/log"
)

const helpText = `commands:
  bid [amount]            place a bid (defaults to the next minimum)
  create                  create an auction from the form
  set bid <amount>        set the starting bid
  set duration <seconds>  set the duration
  set extended on|off     toggle extended bidding
  new                     open the creation form once the auction has ended
  cancel                  close the creation form
  quit                    exit
`

type commandKind int

const (
	cmdHelp commandKind = iota
	cmdBid
	cmdCreate
	cmdSetForm
	cmdNew
	cmdCancel
	cmdQuit
)

type command struct {
	kind   commandKind
	amount *float64
	form   lifecycle.FormUpdate
}

var errUnknownCommand = errors.New("unknown command, type help")

func parseCommand(line string) (command, error) {
	fields := strings.Fields(strings.ToLower(strings.TrimSpace(line)))
	if len(fields) == 0 {
		return command{}, errUnknownCommand
	}

	switch fields[0] {
	case "help", "?":
		return command{kind: cmdHelp}, nil

	case "bid", "b":
		cmd := command{kind: cmdBid}
		if len(fields) > 1 {
			amount, err := strconv.ParseFloat(strings.TrimPrefix(fields[1], "$"), 64)
			if err != nil {
				return command{}, models.NewValidationError("amount", "Please enter a valid bid amount")
			}
			cmd.amount = &amount
		}
		return cmd, nil

	case "create":
		return command{kind: cmdCreate}, nil

	case "set":
		if len(fields) != 3 {
			return command{}, fmt.Errorf("usage: set bid|duration|extended <value>")
		}
		value := fields[2]
		var update lifecycle.FormUpdate
		switch fields[1] {
		case "bid":
			update.StartingBid = &value
		case "duration":
			update.Duration = &value
		case "extended":
			on := value == "on" || value == "true" || value == "yes"
			update.ExtendedBidding = &on
		default:
			return command{}, fmt.Errorf("unknown form field %q", fields[1])
		}
		return command{kind: cmdSetForm, form: update}, nil

	case "new":
		return command{kind: cmdNew}, nil
	case "cancel":
		return command{kind: cmdCancel}, nil
	case "quit", "exit", "q":
		return command{kind: cmdQuit}, nil
	}
	return command{}, errUnknownCommand
}

// Controller is the subset of the dashboard driven from the terminal
type Controller interface {
	PlaceBid(ctx context.Context, amount *float64) (*models.BidRecord, error)
	CreateAuction(ctx context.Context) (*models.AuctionSnapshot, error)
	UpdateForm(ctx context.Context, u lifecycle.FormUpdate) (lifecycle.FormState, error)
	RequestCreate(ctx context.Context) error
	DismissCreate(ctx context.Context) error
}

// readCommands executes one command per input line until quit, EOF or cancellation.
func readCommands(ctx context.Context, in io.Reader, ctrl Controller, quit func()) {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		cmd, err := parseCommand(scanner.Text())
		if err != nil {
			fmt.Fprintln(os.Stdout, err)
			continue
		}
		if cmd.kind == cmdQuit {
			quit()
			return
		}
		if err := execute(ctx, ctrl, cmd); err != nil {
			fmt.Fprintln(os.Stdout, models.ReasonOf(err))
		}
	}
	if err := scanner.Err(); err != nil {
		log.Error().Err(err).Msg("failed to read commands")
	}
}

func execute(ctx context.Context, ctrl Controller, cmd command) error {
	switch cmd.kind {
	case cmdHelp:
		fmt.Fprint(os.Stdout, helpText)
		return nil
	case cmdBid:
		_, err := ctrl.PlaceBid(ctx, cmd.amount)
		return err
	case cmdCreate:
		_, err := ctrl.CreateAuction(ctx)
		return err
	case cmdSetForm:
		_, err := ctrl.UpdateForm(ctx, cmd.form)
		return err
	case cmdNew:
		return ctrl.RequestCreate(ctx)
	case cmdCancel:
		return ctrl.DismissCreate(ctx)
	}
	return nil
}
