package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/dineflow/dineflow-engine/pkg/apperrors"
	"github.com/dineflow/dineflow-engine/pkg/auth"
	"github.com/dineflow/dineflow-engine/pkg/services"
)

// RecommendationsHandler exposes the rebuild trigger and the analytics
// listing to restaurant staff.
type RecommendationsHandler struct {
	rebuildService   services.RecommendationService
	analyticsService services.AnalyticsService
	validate         *validator.Validate
	logger           *zap.Logger
}

// NewRecommendationsHandler creates a new RecommendationsHandler.
func NewRecommendationsHandler(rebuildService services.RecommendationService, analyticsService services.AnalyticsService, logger *zap.Logger) *RecommendationsHandler {
	return &RecommendationsHandler{
		rebuildService:   rebuildService,
		analyticsService: analyticsService,
		validate:         validator.New(),
		logger:           logger,
	}
}

// RegisterRoutes registers the recommendation admin routes on the given mux.
func (h *RecommendationsHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware) {
	mux.HandleFunc("POST /api/admin/recommendations/rebuild",
		authMiddleware.RequireAdmin(h.Rebuild))
	mux.HandleFunc("GET /api/admin/recommendations/rebuild/status",
		authMiddleware.RequireStaffAuth(h.RebuildStatus))
	mux.HandleFunc("GET /api/admin/recommendations/analytics",
		authMiddleware.RequireStaffAuth(h.Analytics))
}

// Rebuild handles POST /api/admin/recommendations/rebuild.
// The body may carry option overrides; an empty body runs with the
// configured defaults. Returns 409 when a rebuild is already in flight.
func (h *RecommendationsHandler) Rebuild(w http.ResponseWriter, r *http.Request) {
	var opts *services.RebuildOptions

	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Failed to read request body")
		return
	}
	if len(body) > 0 {
		opts = &services.RebuildOptions{}
		if err := json.Unmarshal(body, opts); err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON in request body")
			return
		}
		if err := h.validate.Struct(opts); err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid_options", err.Error())
			return
		}
	}

	result, err := h.rebuildService.Rebuild(r.Context(), opts)
	if err != nil {
		if errors.Is(err, apperrors.ErrRebuildInProgress) {
			h.writeError(w, http.StatusConflict, "rebuild_in_progress", "A rebuild is already running")
			return
		}
		h.logger.Error("Recommendation rebuild failed", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "rebuild_failed", "Failed to rebuild recommendations")
		return
	}

	if err := WriteJSON(w, http.StatusOK, result); err != nil {
		h.logger.Error("Failed to encode rebuild response", zap.Error(err))
	}
}

// RebuildStatus handles GET /api/admin/recommendations/rebuild/status.
func (h *RecommendationsHandler) RebuildStatus(w http.ResponseWriter, r *http.Request) {
	response := map[string]bool{
		"running": h.rebuildService.IsRebuildRunning(),
	}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to encode rebuild status response", zap.Error(err))
	}
}

// Analytics handles GET /api/admin/recommendations/analytics.
// Query parameters: restaurant_id, exclude_restaurant_ids (repeatable or
// comma-separated), min_attach_rate, page, page_size, trend_window_days.
// Results are limited to the restaurants granted by the caller's token.
func (h *RecommendationsHandler) Analytics(w http.ResponseWriter, r *http.Request) {
	scope, err := auth.ScopeFromContext(r.Context())
	if err != nil {
		h.writeError(w, http.StatusForbidden, "forbidden", "No restaurant access granted")
		return
	}

	restaurantID, err := queryUUID(r, "restaurant_id")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_restaurant_id", "Invalid restaurant ID format")
		return
	}

	excludeRestaurantIDs, err := queryUUIDList(r, "exclude_restaurant_ids")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_exclude_restaurant_ids", "Invalid restaurant ID format")
		return
	}

	minAttachRate, err := queryFloat(r, "min_attach_rate")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_min_attach_rate", "min_attach_rate must be a number")
		return
	}

	page, err := queryInt(r, "page", 0)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_page", "page must be an integer")
		return
	}

	pageSize, err := queryInt(r, "page_size", 0)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_page_size", "page_size must be an integer")
		return
	}

	trendWindowDays, err := queryInt(r, "trend_window_days", 0)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_trend_window_days", "trend_window_days must be an integer")
		return
	}

	result, err := h.analyticsService.ListRecommendationAnalytics(r.Context(), scope, services.AnalyticsOptions{
		RestaurantID:         restaurantID,
		ExcludeRestaurantIDs: excludeRestaurantIDs,
		MinAttachRate:        minAttachRate,
		TrendWindowDays:      trendWindowDays,
		Page:                 page,
		PageSize:             pageSize,
	})
	if err != nil {
		h.logger.Error("Failed to list recommendation analytics", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "analytics_failed", "Failed to load recommendation analytics")
		return
	}

	if err := WriteJSON(w, http.StatusOK, result); err != nil {
		h.logger.Error("Failed to encode analytics response", zap.Error(err))
	}
}

func (h *RecommendationsHandler) writeError(w http.ResponseWriter, statusCode int, errorCode, message string) {
	if err := ErrorResponse(w, statusCode, errorCode, message); err != nil {
		h.logger.Error("Failed to write error response", zap.Error(err))
	}
}
