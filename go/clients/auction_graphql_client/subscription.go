package auction_graphql_client

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/mcdev12/live-auction/go/internal/models"
	"github.com/rs/zerolog/log"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next message from the peer. The server keeps
	// the connection alive with pings well inside this window.
	readWait = 60 * time.Second

	// Time allowed for the server to acknowledge connection_init
	ackWait = 10 * time.Second

	handshakeTimeout = 15 * time.Second
)

// graphql-transport-ws message types
const (
	msgConnectionInit = "connection_init"
	msgConnectionAck  = "connection_ack"
	msgSubscribe      = "subscribe"
	msgNext           = "next"
	msgError          = "error"
	msgComplete       = "complete"
	msgPing           = "ping"
	msgPong           = "pong"
)

type wsMessage struct {
	ID      string          `json:"id,omitempty"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type subscribePayload struct {
	Query string `json:"query"`
}

// Subscribe opens the auctionEvents subscription and calls deliver for every
// event until ctx is cancelled or the stream fails. It never reconnects; the
// caller owns the retry policy.
func (c *AuctionGraphQLClient) Subscribe(ctx context.Context, deliver func(models.AuctionEvent)) error {
	dialer := websocket.Dialer{
		HandshakeTimeout: handshakeTimeout,
		Subprotocols:     []string{GraphQLTransportWSProtocol},
	}

	conn, _, err := dialer.DialContext(ctx, c.wsURL, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", c.wsURL, err)
	}
	defer conn.Close()

	// Unblock the read loop on cancellation.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait),
			)
			conn.Close()
		case <-done:
		}
	}()

	if err := c.handshake(conn); err != nil {
		return c.readErr(ctx, err)
	}

	subscriptionID := uuid.NewString()
	payload, err := json.Marshal(subscribePayload{Query: AuctionEventsSubscription})
	if err != nil {
		return fmt.Errorf("failed to marshal subscribe payload: %w", err)
	}
	if err := writeMessage(conn, wsMessage{ID: subscriptionID, Type: msgSubscribe, Payload: payload}); err != nil {
		return c.readErr(ctx, err)
	}

	log.Info().
		Str("url", c.wsURL).
		Str("subscription_id", subscriptionID).
		Msg("auction events subscription started")

	for {
		conn.SetReadDeadline(time.Now().Add(readWait))
		msg, err := readMessage(conn)
		if err != nil {
			return c.readErr(ctx, err)
		}

		switch msg.Type {
		case msgNext:
			if msg.ID != subscriptionID {
				continue
			}
			event, err := decodeNextPayload(msg.Payload)
			if err != nil {
				log.Warn().Err(err).Msg("dropping undecodable auction event")
				continue
			}
			deliver(event)

		case msgError:
			return decodeErrorPayload(msg.Payload)

		case msgComplete:
			if msg.ID == subscriptionID {
				return models.ErrStreamClosed
			}

		case msgPing:
			if err := writeMessage(conn, wsMessage{Type: msgPong}); err != nil {
				return c.readErr(ctx, err)
			}

		case msgPong:

		default:
			log.Debug().Str("type", msg.Type).Msg("ignoring unexpected subscription message")
		}
	}
}

func (c *AuctionGraphQLClient) handshake(conn *websocket.Conn) error {
	if err := writeMessage(conn, wsMessage{Type: msgConnectionInit}); err != nil {
		return err
	}

	conn.SetReadDeadline(time.Now().Add(ackWait))
	for {
		msg, err := readMessage(conn)
		if err != nil {
			return fmt.Errorf("waiting for connection_ack: %w", err)
		}
		switch msg.Type {
		case msgConnectionAck:
			return nil
		case msgPing:
			if err := writeMessage(conn, wsMessage{Type: msgPong}); err != nil {
				return err
			}
		default:
			return fmt.Errorf("unexpected %q before connection_ack", msg.Type)
		}
	}
}

// readErr prefers the context error so cancellation is not reported as a failure
func (c *AuctionGraphQLClient) readErr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func writeMessage(conn *websocket.Conn, msg wsMessage) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(msg)
}

func readMessage(conn *websocket.Conn) (wsMessage, error) {
	var msg wsMessage
	_, data, err := conn.ReadMessage()
	if err != nil {
		return msg, err
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		return msg, fmt.Errorf("failed to decode subscription message: %w", err)
	}
	return msg, nil
}

func decodeNextPayload(payload json.RawMessage) (models.AuctionEvent, error) {
	var result struct {
		Data struct {
			AuctionEvents *models.AuctionEvent `json:"auctionEvents"`
		} `json:"data"`
		Errors []graphQLErrorEntry `json:"errors"`
	}
	if err := json.Unmarshal(payload, &result); err != nil {
		return models.AuctionEvent{}, fmt.Errorf("failed to decode next payload: %w", err)
	}
	if err := (graphQLResponse{Errors: result.Errors}).err(); err != nil {
		return models.AuctionEvent{}, err
	}
	if result.Data.AuctionEvents == nil {
		return models.AuctionEvent{}, fmt.Errorf("next payload carried no auctionEvents")
	}
	return *result.Data.AuctionEvents, nil
}

func decodeErrorPayload(payload json.RawMessage) error {
	var entries []graphQLErrorEntry
	if err := json.Unmarshal(payload, &entries); err != nil || len(entries) == 0 {
		return &models.GraphQLError{Messages: []string{"subscription rejected"}}
	}
	return graphQLResponse{Errors: entries}.err()
}
