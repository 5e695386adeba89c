package auction_graphql_client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mcdev12/live-auction/go/clients"
	"github.com/mcdev12/live-auction/go/internal/models"
)

type AuctionGraphQLClient struct {
	*clients.BaseClient
	wsURL string
}

func NewAuctionGraphQLClient(httpURL, wsURL string) *AuctionGraphQLClient {
	client := &AuctionGraphQLClient{
		BaseClient: clients.NewBaseClient(httpURL),
		wsURL:      wsURL,
	}

	client.SetHeader("Content-Type", "application/json")
	client.SetHeader("Accept", "application/json")

	return client
}

type graphQLRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables,omitempty"`
}

type graphQLErrorEntry struct {
	Message string `json:"message"`
}

type graphQLResponse struct {
	Data   json.RawMessage     `json:"data"`
	Errors []graphQLErrorEntry `json:"errors"`
}

func (r graphQLResponse) err() error {
	if len(r.Errors) == 0 {
		return nil
	}
	messages := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		messages = append(messages, e.Message)
	}
	return &models.GraphQLError{Messages: messages}
}

// do runs one query or mutation and decodes the data object into out.
// Server-side GraphQL errors come back as *models.GraphQLError, everything
// else as *models.TransportError.
func (c *AuctionGraphQLClient) do(ctx context.Context, op, query string, variables map[string]interface{}, out interface{}) error {
	body, err := c.PostJSON(ctx, QueryEndpoint, graphQLRequest{Query: query, Variables: variables})
	if err != nil {
		// gqlgen answers validation failures with a non-2xx status and a regular error envelope.
		var statusErr *clients.StatusError
		if errors.As(err, &statusErr) {
			var resp graphQLResponse
			if json.Unmarshal([]byte(statusErr.Body), &resp) == nil && resp.err() != nil {
				return resp.err()
			}
		}
		return &models.TransportError{Op: op, Err: err}
	}

	var resp graphQLResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return &models.TransportError{Op: op, Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	if err := resp.err(); err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Data, out); err != nil {
		return &models.TransportError{Op: op, Err: fmt.Errorf("failed to decode %s data: %w", op, err)}
	}
	return nil
}

// CurrentAuction fetches the current auction. Returns nil, nil when there is none.
func (c *AuctionGraphQLClient) CurrentAuction(ctx context.Context) (*models.AuctionSnapshot, error) {
	var data struct {
		CurrentAuction *models.AuctionSnapshot `json:"currentAuction"`
	}
	if err := c.do(ctx, "currentAuction", CurrentAuctionQuery, nil, &data); err != nil {
		return nil, err
	}
	if data.CurrentAuction == nil {
		return nil, nil
	}
	snapshot := data.CurrentAuction.Normalize()
	return &snapshot, nil
}

// CreateAuction starts a new auction and returns its initial snapshot
func (c *AuctionGraphQLClient) CreateAuction(ctx context.Context, startingBid float64, duration int, extendedBidding bool) (*models.AuctionSnapshot, error) {
	var data struct {
		CreateAuction *models.AuctionSnapshot `json:"createAuction"`
	}
	variables := map[string]interface{}{
		"startingBid":     startingBid,
		"duration":        duration,
		"extendedBidding": extendedBidding,
	}
	if err := c.do(ctx, "createAuction", CreateAuctionMutation, variables, &data); err != nil {
		return nil, err
	}
	if data.CreateAuction == nil {
		return nil, &models.TransportError{Op: "createAuction", Err: errors.New("empty response")}
	}
	snapshot := data.CreateAuction.Normalize()
	return &snapshot, nil
}

// PlaceBid submits a bid for userID
func (c *AuctionGraphQLClient) PlaceBid(ctx context.Context, userID string, amount float64) (*models.BidRecord, error) {
	var data struct {
		PlaceBid *models.BidRecord `json:"placeBid"`
	}
	variables := map[string]interface{}{
		"userId": userID,
		"amount": amount,
	}
	if err := c.do(ctx, "placeBid", PlaceBidMutation, variables, &data); err != nil {
		return nil, err
	}
	if data.PlaceBid == nil {
		return nil, &models.TransportError{Op: "placeBid", Err: errors.New("empty response")}
	}
	return data.PlaceBid, nil
}

// SetRequestTimeout bounds every query and mutation
func (c *AuctionGraphQLClient) SetRequestTimeout(timeout time.Duration) {
	if timeout > 0 {
		c.SetTimeout(timeout)
	}
}
