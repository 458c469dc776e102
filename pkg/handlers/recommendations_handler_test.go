package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dineflow/dineflow-engine/pkg/apperrors"
	"github.com/dineflow/dineflow-engine/pkg/auth"
	"github.com/dineflow/dineflow-engine/pkg/models"
	"github.com/dineflow/dineflow-engine/pkg/services"
)

type mockRebuildService struct {
	result       *services.RebuildResult
	err          error
	running      bool
	capturedOpts *services.RebuildOptions
}

func (m *mockRebuildService) Rebuild(ctx context.Context, opts *services.RebuildOptions) (*services.RebuildResult, error) {
	m.capturedOpts = opts
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}

func (m *mockRebuildService) IsRebuildRunning() bool { return m.running }

type mockAnalyticsService struct {
	result        *models.AnalyticsResult
	err           error
	capturedScope []uuid.UUID
	capturedOpts  services.AnalyticsOptions
}

func (m *mockAnalyticsService) ListRecommendationAnalytics(ctx context.Context, scope []uuid.UUID, opts services.AnalyticsOptions) (*models.AnalyticsResult, error) {
	m.capturedScope = scope
	m.capturedOpts = opts
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}

func adminContext() context.Context {
	return context.WithValue(context.Background(), auth.ClaimsKey, &auth.Claims{Role: auth.RoleAdmin})
}

func staffContext(restaurantIDs ...uuid.UUID) context.Context {
	ids := make([]string, 0, len(restaurantIDs))
	for _, id := range restaurantIDs {
		ids = append(ids, id.String())
	}
	return context.WithValue(context.Background(), auth.ClaimsKey, &auth.Claims{
		RestaurantIDs: ids,
		Role:          auth.RoleManager,
	})
}

func TestRebuild_Success(t *testing.T) {
	rebuild := &mockRebuildService{
		result: &services.RebuildResult{RunID: uuid.New(), GeneratedAt: time.Now()},
	}
	handler := NewRecommendationsHandler(rebuild, &mockAnalyticsService{}, zap.NewNop())

	r := httptest.NewRequest(http.MethodPost, "/api/admin/recommendations/rebuild", nil)
	w := httptest.NewRecorder()
	handler.Rebuild(w, r.WithContext(adminContext()))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Nil(t, rebuild.capturedOpts)

	var body services.RebuildResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, rebuild.result.RunID, body.RunID)
}

func TestRebuild_WithOptions(t *testing.T) {
	rebuild := &mockRebuildService{result: &services.RebuildResult{}}
	handler := NewRecommendationsHandler(rebuild, &mockAnalyticsService{}, zap.NewNop())

	r := httptest.NewRequest(http.MethodPost, "/api/admin/recommendations/rebuild",
		strings.NewReader(`{"min_support": 0.05, "include_historical_orders": false}`))
	w := httptest.NewRecorder()
	handler.Rebuild(w, r.WithContext(adminContext()))

	assert.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, rebuild.capturedOpts)
	require.NotNil(t, rebuild.capturedOpts.MinSupport)
	assert.InDelta(t, 0.05, *rebuild.capturedOpts.MinSupport, 1e-9)
	require.NotNil(t, rebuild.capturedOpts.IncludeHistoricalOrders)
	assert.False(t, *rebuild.capturedOpts.IncludeHistoricalOrders)
}

func TestRebuild_InvalidOptions(t *testing.T) {
	handler := NewRecommendationsHandler(&mockRebuildService{}, &mockAnalyticsService{}, zap.NewNop())

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"min_support":`},
		{"out of range support", `{"min_support": 1.5}`},
		{"zero top per item", `{"top_recommendations_per_item": 0}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/api/admin/recommendations/rebuild", strings.NewReader(tt.body))
			w := httptest.NewRecorder()
			handler.Rebuild(w, r.WithContext(adminContext()))

			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestRebuild_Conflict(t *testing.T) {
	rebuild := &mockRebuildService{err: apperrors.ErrRebuildInProgress}
	handler := NewRecommendationsHandler(rebuild, &mockAnalyticsService{}, zap.NewNop())

	r := httptest.NewRequest(http.MethodPost, "/api/admin/recommendations/rebuild", nil)
	w := httptest.NewRecorder()
	handler.Rebuild(w, r.WithContext(adminContext()))

	assert.Equal(t, http.StatusConflict, w.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "rebuild_in_progress", body["error"])
}

func TestRebuild_ServiceError(t *testing.T) {
	rebuild := &mockRebuildService{err: errors.New("boom")}
	handler := NewRecommendationsHandler(rebuild, &mockAnalyticsService{}, zap.NewNop())

	r := httptest.NewRequest(http.MethodPost, "/api/admin/recommendations/rebuild", nil)
	w := httptest.NewRecorder()
	handler.Rebuild(w, r.WithContext(adminContext()))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestRebuildStatus(t *testing.T) {
	rebuild := &mockRebuildService{running: true}
	handler := NewRecommendationsHandler(rebuild, &mockAnalyticsService{}, zap.NewNop())

	r := httptest.NewRequest(http.MethodGet, "/api/admin/recommendations/rebuild/status", nil)
	w := httptest.NewRecorder()
	handler.RebuildStatus(w, r.WithContext(staffContext(uuid.New())))

	assert.Equal(t, http.StatusOK, w.Code)

	var body map[string]bool
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body["running"])
}

func TestAnalytics_Success(t *testing.T) {
	restaurantID := uuid.New()
	analytics := &mockAnalyticsService{
		result: &models.AnalyticsResult{
			Summary: models.AnalyticsSummary{TotalPairs: 2},
		},
	}
	handler := NewRecommendationsHandler(&mockRebuildService{}, analytics, zap.NewNop())

	url := "/api/admin/recommendations/analytics?page=2&page_size=25&min_attach_rate=0.2&trend_window_days=60&restaurant_id=" + restaurantID.String()
	r := httptest.NewRequest(http.MethodGet, url, nil)
	w := httptest.NewRecorder()
	handler.Analytics(w, r.WithContext(staffContext(restaurantID)))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []uuid.UUID{restaurantID}, analytics.capturedScope)
	assert.Equal(t, 2, analytics.capturedOpts.Page)
	assert.Equal(t, 25, analytics.capturedOpts.PageSize)
	assert.Equal(t, 60, analytics.capturedOpts.TrendWindowDays)
	require.NotNil(t, analytics.capturedOpts.MinAttachRate)
	assert.InDelta(t, 0.2, *analytics.capturedOpts.MinAttachRate, 1e-9)
	require.NotNil(t, analytics.capturedOpts.RestaurantID)
	assert.Equal(t, restaurantID, *analytics.capturedOpts.RestaurantID)
}

func TestAnalytics_ExcludeRestaurants(t *testing.T) {
	scopeID := uuid.New()
	excludedA := uuid.New()
	excludedB := uuid.New()
	analytics := &mockAnalyticsService{result: &models.AnalyticsResult{}}
	handler := NewRecommendationsHandler(&mockRebuildService{}, analytics, zap.NewNop())

	url := "/api/admin/recommendations/analytics?exclude_restaurant_ids=" +
		excludedA.String() + "," + excludedB.String()
	r := httptest.NewRequest(http.MethodGet, url, nil)
	w := httptest.NewRecorder()
	handler.Analytics(w, r.WithContext(staffContext(scopeID)))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []uuid.UUID{excludedA, excludedB}, analytics.capturedOpts.ExcludeRestaurantIDs)
}

func TestAnalytics_AdminSeesEverything(t *testing.T) {
	analytics := &mockAnalyticsService{result: &models.AnalyticsResult{}}
	handler := NewRecommendationsHandler(&mockRebuildService{}, analytics, zap.NewNop())

	r := httptest.NewRequest(http.MethodGet, "/api/admin/recommendations/analytics", nil)
	w := httptest.NewRecorder()
	handler.Analytics(w, r.WithContext(adminContext()))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Nil(t, analytics.capturedScope)
}

func TestAnalytics_BadQueryParams(t *testing.T) {
	handler := NewRecommendationsHandler(&mockRebuildService{}, &mockAnalyticsService{}, zap.NewNop())

	tests := []string{
		"?restaurant_id=not-a-uuid",
		"?exclude_restaurant_ids=not-a-uuid",
		"?min_attach_rate=abc",
		"?page=abc",
		"?page_size=abc",
		"?trend_window_days=abc",
	}
	for _, query := range tests {
		r := httptest.NewRequest(http.MethodGet, "/api/admin/recommendations/analytics"+query, nil)
		w := httptest.NewRecorder()
		handler.Analytics(w, r.WithContext(adminContext()))

		assert.Equal(t, http.StatusBadRequest, w.Code, "query %s", query)
	}
}

func TestAnalytics_NoClaims(t *testing.T) {
	handler := NewRecommendationsHandler(&mockRebuildService{}, &mockAnalyticsService{}, zap.NewNop())

	r := httptest.NewRequest(http.MethodGet, "/api/admin/recommendations/analytics", nil)
	w := httptest.NewRecorder()
	handler.Analytics(w, r)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestAnalytics_ServiceError(t *testing.T) {
	analytics := &mockAnalyticsService{err: errors.New("query timeout")}
	handler := NewRecommendationsHandler(&mockRebuildService{}, analytics, zap.NewNop())

	r := httptest.NewRequest(http.MethodGet, "/api/admin/recommendations/analytics", nil)
	w := httptest.NewRecorder()
	handler.Analytics(w, r.WithContext(adminContext()))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
