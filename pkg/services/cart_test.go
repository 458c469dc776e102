package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dineflow/dineflow-engine/pkg/apperrors"
	"github.com/dineflow/dineflow-engine/pkg/models"
)

type mockSessionRepo struct {
	session *models.GuestSession
	err     error
}

func (m *mockSessionRepo) GetByToken(ctx context.Context, sessionToken string) (*models.GuestSession, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.session, nil
}

func activeSession() *models.GuestSession {
	restaurant := &models.Restaurant{ID: uuid.New(), Name: "Trattoria"}
	return &models.GuestSession{
		ID:           uuid.New(),
		RestaurantID: restaurant.ID,
		SessionToken: "tok_abc",
		Restaurant:   restaurant,
	}
}

func cartRecord(base, recommended uuid.UUID, lift float64) *models.RecommendationRecord {
	return &models.RecommendationRecord{
		MenuRecommendation: models.MenuRecommendation{
			BaseItemID:        base,
			RecommendedItemID: recommended,
			AttachRate:        0.3,
			Confidence:        0.3,
			Support:           0.1,
			Lift:              lift,
			SupportCount:      7,
		},
		RecommendedItem: &models.MenuItemRef{ID: recommended, Name: "Companion", PriceCents: 450},
	}
}

func TestGetCartRecommendations_ReturnsSuggestions(t *testing.T) {
	session := activeSession()
	base := uuid.New()
	companion := uuid.New()

	recRepo := &mockRecommendationRepo{
		byBaseItems: []*models.RecommendationRecord{cartRecord(base, companion, 2.5)},
	}
	service := NewCartService(&mockSessionRepo{session: session}, recRepo, zap.NewNop())

	result, err := service.GetCartRecommendations(context.Background(), "tok_abc", []uuid.UUID{base}, CartOptions{})

	require.NoError(t, err)
	require.NotNil(t, result.Restaurant)
	assert.Equal(t, session.RestaurantID, result.Restaurant.ID)
	assert.Equal(t, []uuid.UUID{base}, result.CartItems)

	require.Len(t, result.Recommendations, 1)
	suggestion := result.Recommendations[0]
	assert.Equal(t, companion, suggestion.RecommendedItemID)
	assert.InDelta(t, 2.5, suggestion.Score, 1e-9)
	require.NotNil(t, suggestion.MenuItem)
	assert.Equal(t, int64(450), suggestion.MenuItem.PriceCents)
}

func TestGetCartRecommendations_DedupesByRecommendedItem(t *testing.T) {
	session := activeSession()
	baseA := uuid.New()
	baseB := uuid.New()
	companion := uuid.New()
	other := uuid.New()

	// Best-first order from the repository: the same companion appears for
	// two base items, only the stronger rule survives.
	recRepo := &mockRecommendationRepo{
		byBaseItems: []*models.RecommendationRecord{
			cartRecord(baseA, companion, 3.0),
			cartRecord(baseB, companion, 2.0),
			cartRecord(baseB, other, 1.5),
		},
	}
	service := NewCartService(&mockSessionRepo{session: session}, recRepo, zap.NewNop())

	result, err := service.GetCartRecommendations(context.Background(), "tok_abc", []uuid.UUID{baseA, baseB}, CartOptions{})

	require.NoError(t, err)
	require.Len(t, result.Recommendations, 2)
	assert.Equal(t, companion, result.Recommendations[0].RecommendedItemID)
	assert.Equal(t, baseA, result.Recommendations[0].BaseItemID)
	assert.Equal(t, other, result.Recommendations[1].RecommendedItemID)
}

func TestGetCartRecommendations_LimitAndOverfetch(t *testing.T) {
	session := activeSession()
	base := uuid.New()

	var records []*models.RecommendationRecord
	for i := 0; i < 10; i++ {
		records = append(records, cartRecord(base, uuid.New(), float64(10-i)))
	}
	recRepo := &mockRecommendationRepo{byBaseItems: records}
	service := NewCartService(&mockSessionRepo{session: session}, recRepo, zap.NewNop())

	result, err := service.GetCartRecommendations(context.Background(), "tok_abc", []uuid.UUID{base}, CartOptions{Limit: 3})

	require.NoError(t, err)
	assert.Len(t, result.Recommendations, 3)
	assert.Equal(t, 3, recRepo.capturedLimit)
}

func TestGetCartRecommendations_ExcludesCartAndCallerItems(t *testing.T) {
	session := activeSession()
	base := uuid.New()
	dismissed := uuid.New()

	recRepo := &mockRecommendationRepo{}
	service := NewCartService(&mockSessionRepo{session: session}, recRepo, zap.NewNop())

	_, err := service.GetCartRecommendations(context.Background(), "tok_abc",
		[]uuid.UUID{base, base}, // duplicate collapses
		CartOptions{ExcludeItemIDs: []uuid.UUID{dismissed}})

	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{base}, recRepo.capturedBaseItems)
	assert.Equal(t, []uuid.UUID{base, dismissed}, recRepo.capturedExclusions)
}

func TestGetCartRecommendations_MissingToken(t *testing.T) {
	service := NewCartService(&mockSessionRepo{}, &mockRecommendationRepo{}, zap.NewNop())

	_, err := service.GetCartRecommendations(context.Background(), "", []uuid.UUID{uuid.New()}, CartOptions{})

	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestGetCartRecommendations_UnknownSession(t *testing.T) {
	service := NewCartService(&mockSessionRepo{err: apperrors.ErrNotFound}, &mockRecommendationRepo{}, zap.NewNop())

	_, err := service.GetCartRecommendations(context.Background(), "tok_missing", []uuid.UUID{uuid.New()}, CartOptions{})

	assert.ErrorIs(t, err, apperrors.ErrSessionInactive)
}

func TestGetCartRecommendations_ClosedSession(t *testing.T) {
	session := activeSession()
	closedAt := time.Now().Add(-time.Hour)
	session.ClosedAt = &closedAt

	service := NewCartService(&mockSessionRepo{session: session}, &mockRecommendationRepo{}, zap.NewNop())

	_, err := service.GetCartRecommendations(context.Background(), "tok_abc", []uuid.UUID{uuid.New()}, CartOptions{})

	assert.ErrorIs(t, err, apperrors.ErrSessionInactive)
}

func TestGetCartRecommendations_EmptyCart(t *testing.T) {
	session := activeSession()
	service := NewCartService(&mockSessionRepo{session: session}, &mockRecommendationRepo{}, zap.NewNop())

	_, err := service.GetCartRecommendations(context.Background(), "tok_abc", []uuid.UUID{uuid.Nil}, CartOptions{})

	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestGetCartRecommendations_SessionLookupError(t *testing.T) {
	service := NewCartService(&mockSessionRepo{err: errors.New("connection refused")}, &mockRecommendationRepo{}, zap.NewNop())

	_, err := service.GetCartRecommendations(context.Background(), "tok_abc", []uuid.UUID{uuid.New()}, CartOptions{})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}
