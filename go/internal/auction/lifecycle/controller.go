package lifecycle

import (
	"errors"

	"github.com/mcdev12/live-auction/go/internal/models"
	"github.com/rs/zerolog/log"
)

// Surface is the top-level view the renderer should show
type Surface int

const (
	ShowCreate Surface = iota
	ShowLive
)

func (s Surface) String() string {
	if s == ShowLive {
		return "live"
	}
	return "create"
}

// MarshalText renders the surface by name in JSON frames.
func (s Surface) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

var (
	ErrAuctionStillActive = errors.New("cannot start a new auction while the current one is active")
	ErrNothingToShow      = errors.New("no auction to return to")
)

// Controller gates which surface is rendered. It holds no countdown or bid logic.
type Controller struct {
	hasAuction bool
	status     models.AuctionStatus

	// requested is set when the user asked for the creation surface explicitly.
	requested bool
	form      *FormState
	creating  bool
}

// NewController starts on the creation surface since no snapshot is known yet
func NewController() *Controller {
	form := DefaultForm()
	return &Controller{form: &form}
}

// Surface returns the surface to render
func (c *Controller) Surface() Surface {
	if !c.hasAuction || c.requested {
		return ShowCreate
	}
	return ShowLive
}

// Form returns the pending creation form, nil when the creation surface is not in use
func (c *Controller) Form() *FormState {
	if c.form == nil {
		return nil
	}
	f := *c.form
	return &f
}

// Creating reports whether a createAuction call is outstanding
func (c *Controller) Creating() bool {
	return c.creating
}

// Observe tracks the reconciled snapshot. An absent snapshot forces the creation surface.
func (c *Controller) Observe(snapshot *models.AuctionSnapshot) {
	if snapshot == nil {
		if c.hasAuction {
			log.Info().Msg("auction no longer known, showing creation surface")
		}
		c.hasAuction = false
		c.status = ""
		c.ensureForm()
		return
	}
	c.hasAuction = true
	c.status = snapshot.Status
	if !c.requested && !c.creating {
		// The live surface is showing; no form is pending.
		c.form = nil
	}
}

// UpdateForm edits the pending creation fields
func (c *Controller) UpdateForm(u FormUpdate) FormState {
	c.ensureForm()
	*c.form = c.form.Apply(u)
	return *c.form
}

// RequestCreate switches from the live surface back to the creation surface.
// Only permitted once the current auction is no longer ACTIVE.
func (c *Controller) RequestCreate() error {
	if c.hasAuction && c.status == models.AuctionStatusActive {
		return ErrAuctionStillActive
	}
	c.requested = true
	form := DefaultForm()
	c.form = &form
	return nil
}

// Dismiss closes the creation surface and discards the form. Only possible while
// an auction exists to fall back to.
func (c *Controller) Dismiss() error {
	if !c.hasAuction {
		return ErrNothingToShow
	}
	c.requested = false
	c.form = nil
	return nil
}

// BeginCreate validates the form and marks a creation as in flight.
func (c *Controller) BeginCreate() (CreateRequest, error) {
	if c.creating {
		return CreateRequest{}, models.ErrCreationInFlight
	}
	c.ensureForm()
	req, err := c.form.Validate()
	if err != nil {
		return CreateRequest{}, err
	}
	c.creating = true
	return req, nil
}

// CreateSucceeded moves to the live surface and discards the form.
// The caller applies the returned snapshot before calling this.
func (c *Controller) CreateSucceeded(snapshot *models.AuctionSnapshot) {
	c.creating = false
	c.requested = false
	c.form = nil
	if snapshot != nil {
		c.hasAuction = true
		c.status = snapshot.Status
	}
}

// CreateFailed keeps the form so the user can correct and retry.
func (c *Controller) CreateFailed() {
	c.creating = false
	c.ensureForm()
}

func (c *Controller) ensureForm() {
	if c.form == nil {
		form := DefaultForm()
		c.form = &form
	}
}
