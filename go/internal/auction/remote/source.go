package remote

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/live-auction/go/internal/models"
	"github.com/rs/zerolog/log"
)

// Puller fetches the current auction on demand. A nil snapshot with a nil error
// means the server has no active auction.
type Puller interface {
	CurrentAuction(ctx context.Context) (*models.AuctionSnapshot, error)
}

// PushStream delivers auction events in arrival order, one at a time, until ctx is
// cancelled or the underlying channel fails.
type PushStream interface {
	Subscribe(ctx context.Context, deliver func(models.AuctionEvent)) error
}

// UpdateKind classifies what arrived from the server
type UpdateKind int

const (
	UpdatePulled UpdateKind = iota
	UpdatePullFailed
	UpdatePushed
	UpdatePushFailed
)

func (k UpdateKind) String() string {
	switch k {
	case UpdatePulled:
		return "pulled"
	case UpdatePullFailed:
		return "pull_failed"
	case UpdatePushed:
		return "pushed"
	case UpdatePushFailed:
		return "push_failed"
	default:
		return "unknown"
	}
}

// Update is one normalized delivery from either inbound channel
type Update struct {
	Kind     UpdateKind
	Snapshot *models.AuctionSnapshot // UpdatePulled; nil means no active auction
	Event    models.AuctionEvent     // UpdatePushed
	Err      error                   // UpdatePullFailed, UpdatePushFailed
}

// Config holds timing for the remote source
type Config struct {
	PullTimeout   time.Duration
	RetryDelay    time.Duration // base delay before re-subscribing
	MaxRetryDelay time.Duration // cap for exponential backoff
}

// DefaultConfig returns default remote source configuration
func DefaultConfig() Config {
	return Config{
		PullTimeout:   10 * time.Second,
		RetryDelay:    2 * time.Second,
		MaxRetryDelay: 60 * time.Second,
	}
}

// Source wraps the pull query and the push subscription and normalizes both into
// a single ordered stream of Updates.
type Source struct {
	puller Puller
	stream PushStream
	clock  clockwork.Clock
	config Config

	updates  chan Update
	resyncCh chan struct{}
	pulls    atomic.Int64

	statsMu sync.Mutex
	stats   Stats
}

// Stats is a point-in-time view of source activity
type Stats struct {
	Pulls        int64
	Delivered    uint64
	LastUpdate   time.Time
	PullError    string // cleared by the next successful pull
	PushFailures int    // consecutive; reset when an event arrives
}

// NewSource creates a remote source. In production, use clockwork.NewRealClock().
func NewSource(puller Puller, stream PushStream, clock clockwork.Clock, config Config) *Source {
	if config.PullTimeout <= 0 {
		config.PullTimeout = DefaultConfig().PullTimeout
	}
	if config.RetryDelay <= 0 {
		config.RetryDelay = DefaultConfig().RetryDelay
	}
	if config.MaxRetryDelay < config.RetryDelay {
		config.MaxRetryDelay = config.RetryDelay
	}
	return &Source{
		puller:   puller,
		stream:   stream,
		clock:    clock,
		config:   config,
		updates:  make(chan Update, 16),
		resyncCh: make(chan struct{}, 1),
	}
}

// Updates returns the ordered stream consumed by the dashboard loop.
func (s *Source) Updates() <-chan Update {
	return s.updates
}

// RequestResync asks for a forced pull. Requests made while one is already pending
// collapse into it, so at most one follow-up pull is ever queued. Safe for concurrent use.
func (s *Source) RequestResync() {
	select {
	case s.resyncCh <- struct{}{}:
		log.Debug().Msg("forced resync requested")
	default:
		log.Debug().Msg("forced resync already pending")
	}
}

// PullCount returns how many pulls have been issued so far.
func (s *Source) PullCount() int64 {
	return s.pulls.Load()
}

// Stats returns activity counters for health reporting.
func (s *Source) Stats() Stats {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()
	stats := s.stats
	stats.Pulls = s.pulls.Load()
	return stats
}

// Run performs the initial pull, then serves resync requests and keeps the push
// subscription alive until ctx is cancelled. Both sides stop when ctx is done.
func (s *Source) Run(ctx context.Context) error {
	log.Info().Msg("remote state source started")

	var wg sync.WaitGroup
	if s.stream != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.runPush(ctx)
		}()
	}

	s.runPull(ctx)
	wg.Wait()

	log.Info().Msg("remote state source stopped")
	return nil
}

func (s *Source) runPull(ctx context.Context) {
	s.pull(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.resyncCh:
			s.pull(ctx)
		}
	}
}

func (s *Source) pull(ctx context.Context) {
	s.pulls.Add(1)

	pullCtx, cancel := context.WithTimeout(ctx, s.config.PullTimeout)
	snapshot, err := s.puller.CurrentAuction(pullCtx)
	cancel()

	if ctx.Err() != nil {
		return
	}
	s.statsMu.Lock()
	if err != nil {
		s.stats.PullError = err.Error()
	} else {
		s.stats.PullError = ""
	}
	s.statsMu.Unlock()

	if err != nil {
		log.Error().Err(err).Msg("failed to fetch current auction")
		s.emit(ctx, Update{
			Kind: UpdatePullFailed,
			Err:  &models.TransportError{Op: "fetch current auction", Err: err},
		})
		return
	}
	s.emit(ctx, Update{Kind: UpdatePulled, Snapshot: snapshot})
}

func (s *Source) runPush(ctx context.Context) {
	delay := s.config.RetryDelay
	for {
		var delivered atomic.Bool
		err := s.stream.Subscribe(ctx, func(event models.AuctionEvent) {
			if !delivered.Swap(true) {
				s.statsMu.Lock()
				s.stats.PushFailures = 0
				s.statsMu.Unlock()
			}
			s.emit(ctx, Update{Kind: UpdatePushed, Event: event})
		})
		if ctx.Err() != nil {
			return
		}
		if err == nil {
			err = models.ErrStreamClosed
		}
		if delivered.Load() {
			delay = s.config.RetryDelay
		}

		s.statsMu.Lock()
		s.stats.PushFailures++
		s.statsMu.Unlock()

		log.Warn().Err(err).Dur("retry_in", delay).Msg("auction event stream failed")
		s.emit(ctx, Update{
			Kind: UpdatePushFailed,
			Err:  &models.TransportError{Op: "subscribe auction events", Err: err},
		})

		select {
		case <-ctx.Done():
			return
		case <-s.clock.After(delay):
		}

		// Events may have been missed while disconnected.
		s.RequestResync()

		delay *= 2
		if delay > s.config.MaxRetryDelay {
			delay = s.config.MaxRetryDelay
		}
	}
}

func (s *Source) emit(ctx context.Context, u Update) {
	select {
	case s.updates <- u:
		s.statsMu.Lock()
		s.stats.Delivered++
		s.stats.LastUpdate = s.clock.Now()
		s.statsMu.Unlock()
	case <-ctx.Done():
	}
}
