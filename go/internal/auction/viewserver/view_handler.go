package viewserver

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/mcdev12/live-auction/go/internal/auction/dashboard"
	"github.com/mcdev12/live-auction/go/internal/auction/lifecycle"
	"github.com/mcdev12/live-auction/go/internal/models"
	"github.com/rs/zerolog/log"
)

// Controller is the dashboard surface exposed over HTTP. *dashboard.Dashboard implements it.
type Controller interface {
	Frame() dashboard.Frame
	Subscribe() (<-chan dashboard.Frame, func())
	PlaceBid(ctx context.Context, amount *float64) (*models.BidRecord, error)
	CreateAuction(ctx context.Context) (*models.AuctionSnapshot, error)
	UpdateForm(ctx context.Context, u lifecycle.FormUpdate) (lifecycle.FormState, error)
	RequestCreate(ctx context.Context) error
	DismissCreate(ctx context.Context) error
}

// PlaceBidRequest is the body of POST /api/auction/bids. A missing amount bids the next minimum.
type PlaceBidRequest struct {
	Amount *float64 `json:"amount,omitempty"`
}

// ErrorResponse is the JSON body returned for failed commands
type ErrorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

// ViewHandler serves frames and accepts user commands
type ViewHandler struct {
	controller Controller
}

// NewViewHandler creates a new view handler
func NewViewHandler(controller Controller) *ViewHandler {
	return &ViewHandler{
		controller: controller,
	}
}

// HandleGetView handles GET /api/auction/view
func (h *ViewHandler) HandleGetView(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, h.controller.Frame())
}

// HandlePlaceBid handles POST /api/auction/bids
func (h *ViewHandler) HandlePlaceBid(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req PlaceBidRequest
	if err := decodeOptionalBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	bid, err := h.controller.PlaceBid(r.Context(), req.Amount)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]*models.BidRecord{"bid": bid})
}

// HandleCreateAuction handles POST /api/auction. Optional form fields in the body
// are applied before the form is validated and submitted.
func (h *ViewHandler) HandleCreateAuction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var update lifecycle.FormUpdate
	if err := decodeOptionalBody(r, &update); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}
	if update.StartingBid != nil || update.Duration != nil || update.ExtendedBidding != nil {
		if _, err := h.controller.UpdateForm(r.Context(), update); err != nil {
			writeError(w, err)
			return
		}
	}

	snapshot, err := h.controller.CreateAuction(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]*models.AuctionSnapshot{"auction": snapshot})
}

// HandleUpdateForm handles POST /api/auction/form
func (h *ViewHandler) HandleUpdateForm(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost && r.Method != http.MethodPatch {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var update lifecycle.FormUpdate
	if err := decodeOptionalBody(r, &update); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	form, err := h.controller.UpdateForm(r.Context(), update)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, form)
}

// HandleOpenForm handles POST /api/auction/form/open
func (h *ViewHandler) HandleOpenForm(w http.ResponseWriter, r *http.Request) {
	h.handleSurfaceCommand(w, r, h.controller.RequestCreate)
}

// HandleDismissForm handles POST /api/auction/form/dismiss
func (h *ViewHandler) HandleDismissForm(w http.ResponseWriter, r *http.Request) {
	h.handleSurfaceCommand(w, r, h.controller.DismissCreate)
}

func (h *ViewHandler) handleSurfaceCommand(w http.ResponseWriter, r *http.Request, command func(context.Context) error) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := command(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RegisterViewRoutes registers view and command routes
func (h *ViewHandler) RegisterViewRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/auction/view", h.HandleGetView)
	mux.HandleFunc("/api/auction/bids", h.HandlePlaceBid)
	mux.HandleFunc("/api/auction", h.HandleCreateAuction)
	mux.HandleFunc("/api/auction/form", h.HandleUpdateForm)
	mux.HandleFunc("/api/auction/form/open", h.HandleOpenForm)
	mux.HandleFunc("/api/auction/form/dismiss", h.HandleDismissForm)
}

// statusFor maps command errors onto HTTP status codes
func statusFor(err error) int {
	var validationErr *models.ValidationError
	var submissionErr *models.SubmissionError
	var graphQLErr *models.GraphQLError
	var transportErr *models.TransportError

	switch {
	case errors.As(err, &validationErr):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrSubmissionInFlight),
		errors.Is(err, models.ErrCreationInFlight),
		errors.Is(err, models.ErrNoAuction),
		errors.Is(err, lifecycle.ErrAuctionStillActive),
		errors.Is(err, lifecycle.ErrNothingToShow):
		return http.StatusConflict
	case errors.As(err, &submissionErr), errors.As(err, &graphQLErr):
		return http.StatusUnprocessableEntity
	case errors.As(err, &transportErr):
		return http.StatusBadGateway
	case errors.Is(err, dashboard.ErrStopped):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	resp := ErrorResponse{Error: models.ReasonOf(err)}

	var validationErr *models.ValidationError
	if errors.As(err, &validationErr) {
		resp.Field = validationErr.Field
	}
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Int("status", status).Msg("command failed")
	}
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

// decodeOptionalBody decodes a JSON body into v; an empty body leaves v untouched
func decodeOptionalBody(r *http.Request, v interface{}) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
