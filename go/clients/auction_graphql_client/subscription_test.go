package auction_graphql_client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mcdev12/live-auction/go/internal/models"
	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
)

// fakeSubscriptionServer speaks just enough graphql-transport-ws to serve one subscription.
func fakeSubscriptionServer(t *testing.T, serve func(conn *websocket.Conn, subscriptionID string)) string {
	t.Helper()
	upgrader := websocket.Upgrader{Subprotocols: []string{GraphQLTransportWSProtocol}}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		var init wsMessage
		if err := conn.ReadJSON(&init); err != nil || init.Type != msgConnectionInit {
			return
		}
		if err := conn.WriteJSON(wsMessage{Type: msgConnectionAck}); err != nil {
			return
		}

		var sub wsMessage
		if err := conn.ReadJSON(&sub); err != nil || sub.Type != msgSubscribe {
			return
		}
		serve(conn, sub.ID)
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func nextMessage(t *testing.T, id, event string) wsMessage {
	t.Helper()
	payload := json.RawMessage(`{"data":{"auctionEvents":` + event + `}}`)
	return wsMessage{ID: id, Type: msgNext, Payload: payload}
}

func TestSubscribe_DeliversEventsInOrder(t *testing.T) {
	wsURL := fakeSubscriptionServer(t, func(conn *websocket.Conn, id string) {
		_ = conn.WriteJSON(nextMessage(t, id, `{"type":"BID_PLACED","auction":{"id":"a1","currentBid":110,"currentWinner":"User1","status":"ACTIVE","nextBid":115,"timeRemaining":18},"bid":{"id":"b1","userId":"User1","amount":110,"timestamp":"2025-01-02T03:04:05Z"}}`))
		_ = conn.WriteJSON(nextMessage(t, id, `{"type":"AUCTION_ENDED","auction":{"id":"a1","currentBid":110,"currentWinner":"User1","status":"ENDED","nextBid":115,"timeRemaining":0}}`))
		_ = conn.WriteJSON(wsMessage{ID: id, Type: msgComplete})
	})

	client := NewAuctionGraphQLClient("", wsURL)
	var events []models.AuctionEvent
	err := client.Subscribe(context.Background(), func(ev models.AuctionEvent) {
		events = append(events, ev)
	})

	check.True(t, errors.Is(err, models.ErrStreamClosed))
	assert.Equal(t, 2, len(events))
	check.Equal(t, models.EventTypeBidPlaced, events[0].Type)
	check.Equal(t, 18, *events[0].Auction.TimeRemaining)
	check.Equal(t, "User1", events[0].Bid.UserID)
	check.Equal(t, models.EventTypeAuctionEnded, events[1].Type)
	check.Equal(t, models.AuctionStatusEnded, *events[1].Auction.Status)
}

func TestSubscribe_AnswersPing(t *testing.T) {
	pong := make(chan wsMessage, 1)
	wsURL := fakeSubscriptionServer(t, func(conn *websocket.Conn, id string) {
		_ = conn.WriteJSON(wsMessage{Type: msgPing})
		var reply wsMessage
		if err := conn.ReadJSON(&reply); err == nil {
			pong <- reply
		}
		_ = conn.WriteJSON(wsMessage{ID: id, Type: msgComplete})
	})

	client := NewAuctionGraphQLClient("", wsURL)
	err := client.Subscribe(context.Background(), func(models.AuctionEvent) {})
	check.True(t, errors.Is(err, models.ErrStreamClosed))

	select {
	case reply := <-pong:
		check.Equal(t, msgPong, reply.Type)
	case <-time.After(time.Second):
		t.Fatal("server never received pong")
	}
}

func TestSubscribe_AuctionStartedAlias(t *testing.T) {
	wsURL := fakeSubscriptionServer(t, func(conn *websocket.Conn, id string) {
		_ = conn.WriteJSON(nextMessage(t, id, `{"type":"AUCTION_STARTED","auction":{"id":"a9","currentBid":100,"currentWinner":null,"status":"ACTIVE","nextBid":105,"timeRemaining":30}}`))
		_ = conn.WriteJSON(wsMessage{ID: id, Type: msgComplete})
	})

	client := NewAuctionGraphQLClient("", wsURL)
	var events []models.AuctionEvent
	_ = client.Subscribe(context.Background(), func(ev models.AuctionEvent) {
		events = append(events, ev)
	})

	assert.Equal(t, 1, len(events))
	check.Equal(t, models.EventTypeAuctionCreated, events[0].Type)
	check.Nil(t, events[0].Auction.CurrentWinner)
}

func TestSubscribe_ErrorMessage(t *testing.T) {
	wsURL := fakeSubscriptionServer(t, func(conn *websocket.Conn, id string) {
		_ = conn.WriteJSON(wsMessage{ID: id, Type: msgError, Payload: json.RawMessage(`[{"message":"subscription not allowed"}]`)})
	})

	client := NewAuctionGraphQLClient("", wsURL)
	err := client.Subscribe(context.Background(), func(models.AuctionEvent) {})

	var gqlErr *models.GraphQLError
	assert.True(t, errors.As(err, &gqlErr))
	check.Equal(t, "subscription not allowed", gqlErr.Error())
}

func TestSubscribe_CancelReturnsContextError(t *testing.T) {
	wsURL := fakeSubscriptionServer(t, func(conn *websocket.Conn, id string) {
		// Hold the subscription open until the client goes away.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	client := NewAuctionGraphQLClient("", wsURL)

	result := make(chan error, 1)
	go func() {
		result <- client.Subscribe(ctx, func(models.AuctionEvent) {})
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-result:
		check.True(t, errors.Is(err, context.Canceled))
	case <-time.After(2 * time.Second):
		t.Fatal("Subscribe did not return after cancellation")
	}
}

func TestSubscribe_DialFailure(t *testing.T) {
	client := NewAuctionGraphQLClient("", "ws://127.0.0.1:1/query")
	err := client.Subscribe(context.Background(), func(models.AuctionEvent) {})
	check.Error(t, err)
}
