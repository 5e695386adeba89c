package viewserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mcdev12/live-auction/go/internal/auction/dashboard"
	"github.com/mcdev12/live-auction/go/internal/auction/lifecycle"
	"github.com/mcdev12/live-auction/go/internal/auction/remote"
	"github.com/mcdev12/live-auction/go/internal/models"
	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
)

type fakeController struct {
	mu        sync.Mutex
	frame     dashboard.Frame
	frames    chan dashboard.Frame
	bidAmount *float64
	bidErr    error
	createErr error
	form      lifecycle.FormState
	openErr   error
}

func newFakeController() *fakeController {
	return &fakeController{
		frames: make(chan dashboard.Frame, 1),
		form:   lifecycle.DefaultForm(),
	}
}

func (c *fakeController) Frame() dashboard.Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.frame
}

func (c *fakeController) Subscribe() (<-chan dashboard.Frame, func()) {
	return c.frames, func() {}
}

func (c *fakeController) PlaceBid(_ context.Context, amount *float64) (*models.BidRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bidAmount = amount
	if c.bidErr != nil {
		return nil, c.bidErr
	}
	value := 105.0
	if amount != nil {
		value = *amount
	}
	return &models.BidRecord{ID: "bid-1", UserID: "User7", Amount: value}, nil
}

func (c *fakeController) CreateAuction(context.Context) (*models.AuctionSnapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.createErr != nil {
		return nil, c.createErr
	}
	if _, err := c.form.Validate(); err != nil {
		return nil, err
	}
	return &models.AuctionSnapshot{ID: "auction-1", Status: models.AuctionStatusActive, TimeRemaining: 30}, nil
}

func (c *fakeController) UpdateForm(_ context.Context, u lifecycle.FormUpdate) (lifecycle.FormState, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.form = c.form.Apply(u)
	return c.form, nil
}

func (c *fakeController) RequestCreate(context.Context) error { return c.openErr }
func (c *fakeController) DismissCreate(context.Context) error { return nil }

func newTestServer(t *testing.T, controller *fakeController) *httptest.Server {
	t.Helper()
	server := NewServer(DefaultConfig(), controller, nil)
	srv := httptest.NewServer(server.Handler())
	t.Cleanup(srv.Close)
	return srv
}

func TestGetView(t *testing.T) {
	controller := newFakeController()
	controller.frame = dashboard.Frame{Seq: 4, UserID: "User7", Surface: lifecycle.ShowLive}
	srv := newTestServer(t, controller)

	resp, err := http.Get(srv.URL + "/api/auction/view")
	assert.NoError(t, err)
	defer resp.Body.Close()
	check.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]interface{}
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	check.Equal(t, 4.0, body["seq"])
	check.Equal(t, "User7", body["user_id"])
	check.Equal(t, "live", body["surface"])
}

func TestGetView_MethodNotAllowed(t *testing.T) {
	srv := newTestServer(t, newFakeController())

	resp, err := http.Post(srv.URL+"/api/auction/view", "application/json", nil)
	assert.NoError(t, err)
	resp.Body.Close()
	check.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestPlaceBid_DefaultsToNextMinimum(t *testing.T) {
	controller := newFakeController()
	srv := newTestServer(t, controller)

	resp, err := http.Post(srv.URL+"/api/auction/bids", "application/json", nil)
	assert.NoError(t, err)
	resp.Body.Close()

	check.Equal(t, http.StatusOK, resp.StatusCode)
	check.Nil(t, controller.bidAmount)
}

func TestPlaceBid_WithAmount(t *testing.T) {
	controller := newFakeController()
	srv := newTestServer(t, controller)

	resp, err := http.Post(srv.URL+"/api/auction/bids", "application/json", strings.NewReader(`{"amount":150.25}`))
	assert.NoError(t, err)
	defer resp.Body.Close()
	check.Equal(t, http.StatusOK, resp.StatusCode)

	assert.NotNil(t, controller.bidAmount)
	check.Equal(t, 150.25, *controller.bidAmount)

	var body struct {
		Bid models.BidRecord `json:"bid"`
	}
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	check.Equal(t, 150.25, body.Bid.Amount)
}

func TestPlaceBid_ErrorStatus(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		reason string
	}{
		{
			name:   "in flight",
			err:    models.ErrSubmissionInFlight,
			status: http.StatusConflict,
		},
		{
			name:   "rejected",
			err:    &models.SubmissionError{Reason: "Bid too low", Err: &models.GraphQLError{Messages: []string{"Bid too low"}}},
			status: http.StatusUnprocessableEntity,
			reason: "Bid too low",
		},
		{
			name:   "invalid amount",
			err:    models.NewValidationError("amount", "Please enter a valid bid amount"),
			status: http.StatusBadRequest,
			reason: "Please enter a valid bid amount",
		},
		{
			name:   "stopped",
			err:    dashboard.ErrStopped,
			status: http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			controller := newFakeController()
			controller.bidErr = tt.err
			srv := newTestServer(t, controller)

			resp, err := http.Post(srv.URL+"/api/auction/bids", "application/json", strings.NewReader(`{"amount":101}`))
			assert.NoError(t, err)
			defer resp.Body.Close()
			check.Equal(t, tt.status, resp.StatusCode)

			if tt.reason != "" {
				var body ErrorResponse
				assert.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
				check.Equal(t, tt.reason, body.Error)
			}
		})
	}
}

func TestCreateAuction_AppliesFormFields(t *testing.T) {
	controller := newFakeController()
	srv := newTestServer(t, controller)

	resp, err := http.Post(srv.URL+"/api/auction", "application/json",
		strings.NewReader(`{"starting_bid":"250","duration":"60","extended_bidding":false}`))
	assert.NoError(t, err)
	resp.Body.Close()

	check.Equal(t, http.StatusCreated, resp.StatusCode)
	check.Equal(t, "250", controller.form.StartingBid)
	check.Equal(t, "60", controller.form.Duration)
	check.False(t, controller.form.ExtendedBidding)
}

func TestCreateAuction_ValidationError(t *testing.T) {
	controller := newFakeController()
	srv := newTestServer(t, controller)

	resp, err := http.Post(srv.URL+"/api/auction", "application/json", strings.NewReader(`{"starting_bid":"-5"}`))
	assert.NoError(t, err)
	defer resp.Body.Close()

	check.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var body ErrorResponse
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	check.Equal(t, "Starting bid must be a positive number", body.Error)
	check.Equal(t, "startingBid", body.Field)
}

func TestOpenForm_WhileActive(t *testing.T) {
	controller := newFakeController()
	controller.openErr = lifecycle.ErrAuctionStillActive
	srv := newTestServer(t, controller)

	resp, err := http.Post(srv.URL+"/api/auction/form/open", "application/json", nil)
	assert.NoError(t, err)
	resp.Body.Close()
	check.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestDismissForm(t *testing.T) {
	srv := newTestServer(t, newFakeController())

	resp, err := http.Post(srv.URL+"/api/auction/form/dismiss", "application/json", nil)
	assert.NoError(t, err)
	resp.Body.Close()
	check.Equal(t, http.StatusNoContent, resp.StatusCode)
}

type fakeStats struct {
	stats remote.Stats
}

func (f fakeStats) Stats() remote.Stats { return f.stats }

func TestHealth(t *testing.T) {
	srv := newTestServer(t, newFakeController())

	resp, err := http.Get(srv.URL + "/health")
	assert.NoError(t, err)
	defer resp.Body.Close()
	check.Equal(t, http.StatusOK, resp.StatusCode)

	var status HealthStatus
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	check.True(t, status.Healthy)
	check.Equal(t, 0, status.Viewers)
}

func TestHealth_ReportsSourceFailures(t *testing.T) {
	stats := fakeStats{stats: remote.Stats{
		Pulls:        3,
		Delivered:    7,
		LastUpdate:   time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
		PullError:    "connection refused",
		PushFailures: 2,
	}}
	srv := httptest.NewServer(NewServer(DefaultConfig(), newFakeController(), stats).Handler())
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL + "/health")
	assert.NoError(t, err)
	defer resp.Body.Close()
	check.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	var status HealthStatus
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	check.False(t, status.Healthy)
	check.Equal(t, int64(3), status.Pulls)
	check.Equal(t, uint64(7), status.Delivered)
	assert.NotNil(t, status.LastUpdate)
	check.True(t, status.LastUpdate.Equal(stats.stats.LastUpdate))
	check.Equal(t, []string{
		"pull failed: connection refused",
		"event stream down after 2 attempts",
	}, status.Errors)
}

func TestCORS_AllowedOrigin(t *testing.T) {
	config := DefaultConfig()
	config.AllowedOrigins = []string{"http://localhost:3000"}
	srv := httptest.NewServer(NewServer(config, newFakeController(), nil).Handler())
	t.Cleanup(srv.Close)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/api/auction/view", nil)
	assert.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:3000")
	resp, err := http.DefaultClient.Do(req)
	assert.NoError(t, err)
	resp.Body.Close()
	check.Equal(t, "http://localhost:3000", resp.Header.Get("Access-Control-Allow-Origin"))

	req.Header.Set("Origin", "http://evil.example")
	resp, err = http.DefaultClient.Do(req)
	assert.NoError(t, err)
	resp.Body.Close()
	check.Equal(t, "", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestWebSocket_StreamsFrames(t *testing.T) {
	controller := newFakeController()
	server := NewServer(DefaultConfig(), controller, nil)
	srv := httptest.NewServer(server.Handler())
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go server.connectionManager.Start(ctx)
	go server.relayFrames(ctx)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/auction"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	assert.NoError(t, err)
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for server.connectionManager.ConnectionCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("viewer never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	controller.frames <- dashboard.Frame{Seq: 9, UserID: "User7"}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got map[string]interface{}
	assert.NoError(t, conn.ReadJSON(&got))
	check.Equal(t, 9.0, got["seq"])
}

func TestStatusFor_TransportError(t *testing.T) {
	err := &models.TransportError{Op: "placeBid", Err: errors.New("connection reset")}
	check.Equal(t, http.StatusBadGateway, statusFor(err))
	check.Equal(t, http.StatusInternalServerError, statusFor(errors.New("boom")))
}
