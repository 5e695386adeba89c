package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mcdev12/live-auction/go/internal/models"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

// NATSConfig holds configuration for the NATS event stream
type NATSConfig struct {
	URL           string
	Subject       string // e.g., "auction.events"
	MaxReconnects int
	ReconnectWait time.Duration
	BufferSize    int
}

// DefaultNATSConfig returns default NATS stream configuration
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:           nats.DefaultURL,
		Subject:       "auction.events",
		MaxReconnects: -1, // Infinite
		ReconnectWait: 2 * time.Second,
		BufferSize:    64,
	}
}

// NATSStream is a PushStream fed by JSON-encoded AuctionEvents published on a NATS subject.
type NATSStream struct {
	nc     *nats.Conn
	config NATSConfig
	closed chan struct{}
}

// NewNATSStream connects to NATS. Reconnection is handled by the NATS client itself;
// Subscribe only fails once the connection is closed for good.
func NewNATSStream(config NATSConfig) (*NATSStream, error) {
	if config.BufferSize <= 0 {
		config.BufferSize = DefaultNATSConfig().BufferSize
	}
	s := &NATSStream{
		config: config,
		closed: make(chan struct{}),
	}

	opts := []nats.Option{
		nats.Name("live-auction-dashboard"),
		nats.MaxReconnects(config.MaxReconnects),
		nats.ReconnectWait(config.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			log.Warn().Msg("NATS connection closed")
			close(s.closed)
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}

	nc, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	s.nc = nc

	log.Info().
		Str("url", config.URL).
		Str("subject", config.Subject).
		Msg("connected to NATS event stream")

	return s, nil
}

// Subscribe delivers events from the configured subject until ctx is cancelled or
// the connection is closed.
func (s *NATSStream) Subscribe(ctx context.Context, deliver func(models.AuctionEvent)) error {
	msgs := make(chan *nats.Msg, s.config.BufferSize)
	sub, err := s.nc.ChanSubscribe(s.config.Subject, msgs)
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", s.config.Subject, err)
	}
	defer func() {
		if err := sub.Unsubscribe(); err != nil && s.nc.Status() != nats.CLOSED {
			log.Error().Err(err).Str("subject", s.config.Subject).Msg("failed to unsubscribe")
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.closed:
			return models.ErrStreamClosed
		case msg := <-msgs:
			event, err := DecodeEvent(msg.Data)
			if err != nil {
				log.Error().
					Err(err).
					Str("subject", msg.Subject).
					Msg("failed to decode auction event")
				continue
			}
			deliver(event)
		}
	}
}

// Close drains and closes the NATS connection
func (s *NATSStream) Close() error {
	if s.nc == nil {
		return nil
	}
	return s.nc.Drain()
}

// DecodeEvent parses a JSON AuctionEvent.
func DecodeEvent(data []byte) (models.AuctionEvent, error) {
	var event models.AuctionEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return models.AuctionEvent{}, fmt.Errorf("unmarshal auction event: %w", err)
	}
	return event, nil
}
