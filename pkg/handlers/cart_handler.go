package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dineflow/dineflow-engine/pkg/apperrors"
	"github.com/dineflow/dineflow-engine/pkg/auth"
	"github.com/dineflow/dineflow-engine/pkg/services"
)

// sessionTokenHeader lets API clients pass the table session token without
// a cookie.
const sessionTokenHeader = "X-Session-Token"

// CartRecommendationsRequest is the body of the cart upsell lookup.
type CartRecommendationsRequest struct {
	CartItemIDs    []uuid.UUID `json:"cart_item_ids" validate:"required,min=1,max=50"`
	ExcludeItemIDs []uuid.UUID `json:"exclude_item_ids,omitempty" validate:"omitempty,max=50"`
	Limit          int         `json:"limit,omitempty" validate:"omitempty,min=1,max=20"`
	SessionToken   string      `json:"session_token,omitempty"`
}

// CartHandler serves upsell suggestions to guests at the table.
type CartHandler struct {
	cartService services.CartService
	guestStore  *auth.GuestSessionStore
	validate    *validator.Validate
	logger      *zap.Logger
}

// NewCartHandler creates a new CartHandler.
func NewCartHandler(cartService services.CartService, guestStore *auth.GuestSessionStore, logger *zap.Logger) *CartHandler {
	return &CartHandler{
		cartService: cartService,
		guestStore:  guestStore,
		validate:    validator.New(),
		logger:      logger,
	}
}

// RegisterRoutes registers the guest cart routes on the given mux.
func (h *CartHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/guest/cart/recommendations", h.Recommendations)
}

// Recommendations handles POST /api/guest/cart/recommendations.
// The table session token is resolved from the body, the X-Session-Token
// header, or the guest cookie, in that order.
func (h *CartHandler) Recommendations(w http.ResponseWriter, r *http.Request) {
	var req CartRecommendationsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON in request body")
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	token := req.SessionToken
	if token == "" {
		token = r.Header.Get(sessionTokenHeader)
	}
	if token == "" && h.guestStore != nil {
		token = h.guestStore.Token(r)
	}

	result, err := h.cartService.GetCartRecommendations(r.Context(), token, req.CartItemIDs, services.CartOptions{
		ExcludeItemIDs: req.ExcludeItemIDs,
		Limit:          req.Limit,
	})
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrSessionInactive):
			h.writeError(w, http.StatusUnauthorized, "session_inactive", "Table session is closed or unknown")
		case errors.Is(err, apperrors.ErrInvalidInput):
			h.writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		default:
			h.logger.Error("Failed to load cart recommendations", zap.Error(err))
			h.writeError(w, http.StatusInternalServerError, "recommendations_failed", "Failed to load recommendations")
		}
		return
	}

	if err := WriteJSON(w, http.StatusOK, result); err != nil {
		h.logger.Error("Failed to encode cart recommendations response", zap.Error(err))
	}
}

func (h *CartHandler) writeError(w http.ResponseWriter, statusCode int, errorCode, message string) {
	if err := ErrorResponse(w, statusCode, errorCode, message); err != nil {
		h.logger.Error("Failed to write error response", zap.Error(err))
	}
}
