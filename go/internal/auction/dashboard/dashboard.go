package dashboard

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/live-auction/go/internal/auction/bidding"
	"github.com/mcdev12/live-auction/go/internal/auction/clock"
	"github.com/mcdev12/live-auction/go/internal/auction/engine"
	"github.com/mcdev12/live-auction/go/internal/auction/lifecycle"
	"github.com/mcdev12/live-auction/go/internal/auction/remote"
	"github.com/mcdev12/live-auction/go/internal/models"
	"github.com/rs/zerolog/log"
)

// ErrStopped is returned by commands issued after the loop has exited.
var ErrStopped = errors.New("dashboard stopped")

// Source is the remote side the loop consumes. *remote.Source implements it.
type Source interface {
	Updates() <-chan remote.Update
	RequestResync()
}

// Creator issues the createAuction mutation
type Creator interface {
	CreateAuction(ctx context.Context, startingBid float64, duration int, extendedBidding bool) (*models.AuctionSnapshot, error)
}

// Config holds dashboard options
type Config struct {
	// UserID is the bidder label; a random User<n> is generated when empty.
	UserID          string
	NotificationTTL time.Duration
}

// Dashboard owns the engine, the local clock and the lifecycle controller and
// drives them from a single goroutine. Remote updates, ticks, notification expiry
// and user commands are processed one at a time, each to completion.
type Dashboard struct {
	clock   clockwork.Clock
	source  Source
	creator Creator

	engine    *engine.Engine
	countdown *clock.LocalClock
	lifecycle *lifecycle.Controller
	bids      *bidding.Coordinator
	userID    string

	createError string

	inbox chan func()
	done  chan struct{}

	expiry   clockwork.Timer
	expiryAt time.Time

	mu          sync.RWMutex
	frame       Frame
	seq         uint64
	subscribers map[chan Frame]struct{}
	stopped     bool
}

// New wires a dashboard. In production, use clockwork.NewRealClock().
func New(clk clockwork.Clock, source Source, placer bidding.Placer, creator Creator, config Config) *Dashboard {
	userID := config.UserID
	if userID == "" {
		userID = RandomUserID()
	}

	var opts []engine.Option
	if config.NotificationTTL > 0 {
		opts = append(opts, engine.WithNotificationTTL(config.NotificationTTL))
	}

	d := &Dashboard{
		clock:       clk,
		source:      source,
		creator:     creator,
		engine:      engine.New(clk, opts...),
		countdown:   clock.New(clk),
		lifecycle:   lifecycle.NewController(),
		userID:      userID,
		inbox:       make(chan func(), 64),
		done:        make(chan struct{}),
		subscribers: make(map[chan Frame]struct{}),
	}
	d.bids = bidding.NewCoordinator(&observedPlacer{d: d, inner: placer}, loopNotifier{d: d}, source)
	return d
}

// RandomUserID returns an ephemeral bidder label such as User417
func RandomUserID() string {
	return fmt.Sprintf("User%d", rand.Intn(1000))
}

// UserID returns the bidder label used for submissions
func (d *Dashboard) UserID() string {
	return d.userID
}

// Run processes events until ctx is cancelled, then tears everything down.
func (d *Dashboard) Run(ctx context.Context) error {
	log.Info().Str("user_id", d.userID).Msg("auction dashboard started")
	defer d.teardown()

	updates := d.source.Updates()
	d.publish()

	for {
		// Remote state is applied before anything else that is ready in this step.
		if d.drainRemote(updates) {
			d.endStep()
			continue
		}

		select {
		case <-ctx.Done():
			log.Info().Msg("auction dashboard stopping")
			return nil

		case u := <-updates:
			d.handleUpdate(u)

		case <-d.countdown.C():
			// A snapshot that arrived alongside the tick supersedes it.
			if !d.drainRemote(updates) {
				d.handleTick()
			}

		case <-d.expiryC():
			d.handleExpiry()

		case fn := <-d.inbox:
			fn()
		}

		d.endStep()
	}
}

func (d *Dashboard) drainRemote(updates <-chan remote.Update) bool {
	applied := false
	for {
		select {
		case u := <-updates:
			d.handleUpdate(u)
			applied = true
		default:
			return applied
		}
	}
}

func (d *Dashboard) endStep() {
	d.rearmExpiry()
	d.publish()
}

func (d *Dashboard) handleUpdate(u remote.Update) {
	switch u.Kind {
	case remote.UpdatePulled:
		d.afterRemote(d.engine.ApplySnapshot(u.Snapshot))

	case remote.UpdatePullFailed:
		d.engine.SetFetchError(u.Err)

	case remote.UpdatePushed:
		out := d.engine.ApplyEvent(u.Event)
		if out.NeedsResync {
			d.source.RequestResync()
		}
		d.afterRemote(out)

	case remote.UpdatePushFailed:
		// The source re-subscribes on its own; last-known state keeps rendering.
		log.Debug().Err(u.Err).Msg("push channel down, continuing on last known state")
	}
}

func (d *Dashboard) afterRemote(out engine.Outcome) {
	if !out.Applied {
		return
	}
	snapshot := d.engine.Snapshot()
	d.countdown.Sync(snapshot)
	d.countdown.Realign()
	d.lifecycle.Observe(snapshot)
}

func (d *Dashboard) handleTick() {
	remaining := d.engine.Tick()
	if d.countdown.Observe(remaining) == clock.SignalExpired {
		// Only the server decides that the auction is over.
		d.source.RequestResync()
	}
}

func (d *Dashboard) handleExpiry() {
	d.expiry = nil
	d.engine.ExpireNotifications()
}

// rearmExpiry keeps exactly one timer pointed at the earliest notification deadline.
func (d *Dashboard) rearmExpiry() {
	next, ok := d.engine.NextExpiry()
	if !ok {
		d.stopExpiry()
		return
	}
	if d.expiry != nil && d.expiryAt.Equal(next) {
		return
	}
	d.stopExpiry()

	delay := next.Sub(d.clock.Now())
	if delay < 0 {
		delay = 0
	}
	d.expiry = d.clock.NewTimer(delay)
	d.expiryAt = next
}

func (d *Dashboard) stopExpiry() {
	if d.expiry == nil {
		return
	}
	stopAndDrainTimer(d.expiry)
	d.expiry = nil
}

func (d *Dashboard) expiryC() <-chan time.Time {
	if d.expiry == nil {
		return nil
	}
	return d.expiry.Chan()
}

func (d *Dashboard) teardown() {
	d.countdown.Stop()
	d.stopExpiry()
	d.engine.Reset()
	close(d.done)
	d.closeSubscribers()
	log.Info().Msg("auction dashboard stopped")
}

// stopAndDrainTimer stops a timer and drains its channel if it already fired
func stopAndDrainTimer(timer clockwork.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.Chan():
		default:
		}
	}
}

// post schedules fn on the loop without waiting for it.
func (d *Dashboard) post(fn func()) {
	select {
	case d.inbox <- fn:
	case <-d.done:
	}
}

// call runs fn on the loop and waits for its result.
func (d *Dashboard) call(ctx context.Context, fn func() error) error {
	result := make(chan error, 1)
	step := func() { result <- fn() }

	select {
	case d.inbox <- step:
	case <-d.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-result:
		return err
	case <-d.done:
		select {
		case err := <-result:
			return err
		default:
			return ErrStopped
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// loopNotifier lets the bid coordinator raise notifications from any goroutine.
type loopNotifier struct {
	d *Dashboard
}

func (n loopNotifier) Notify(kind engine.NotificationKind, message string) {
	n.d.post(func() {
		n.d.engine.Notify(kind, message)
	})
}

// observedPlacer publishes a frame as soon as a submission goes in flight.
type observedPlacer struct {
	d     *Dashboard
	inner bidding.Placer
}

func (p *observedPlacer) PlaceBid(ctx context.Context, userID string, amount float64) (*models.BidRecord, error) {
	p.d.post(func() {})
	return p.inner.PlaceBid(ctx, userID, amount)
}
