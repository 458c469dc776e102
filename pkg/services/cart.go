package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dineflow/dineflow-engine/pkg/apperrors"
	"github.com/dineflow/dineflow-engine/pkg/models"
	"github.com/dineflow/dineflow-engine/pkg/repositories"
)

// defaultCartRecommendationLimit caps suggestions when the caller does not
// ask for a specific count.
const defaultCartRecommendationLimit = 5

// maxCartRecommendationLimit bounds how many suggestions one request can ask for.
const maxCartRecommendationLimit = 20

// CartOptions tunes a cart recommendation lookup.
type CartOptions struct {
	// ExcludeItemIDs removes items from the suggestions on top of the
	// implicit cart-content exclusion (e.g. items already dismissed).
	ExcludeItemIDs []uuid.UUID
	// Limit caps the number of suggestions; 0 uses the default.
	Limit int
}

// CartService serves upsell suggestions for an active guest cart.
type CartService interface {
	// GetCartRecommendations returns the best available companion items for
	// the cart, deduplicated across base items and never suggesting
	// something already in the cart.
	GetCartRecommendations(ctx context.Context, sessionToken string, cartItemIDs []uuid.UUID, opts CartOptions) (*models.CartRecommendationResult, error)
}

type cartService struct {
	sessionRepo repositories.SessionRepository
	recRepo     repositories.RecommendationRepository
	logger      *zap.Logger
}

var _ CartService = (*cartService)(nil)

// NewCartService creates a new CartService.
func NewCartService(sessionRepo repositories.SessionRepository, recRepo repositories.RecommendationRepository, logger *zap.Logger) CartService {
	return &cartService{
		sessionRepo: sessionRepo,
		recRepo:     recRepo,
		logger:      logger,
	}
}

func (s *cartService) GetCartRecommendations(ctx context.Context, sessionToken string, cartItemIDs []uuid.UUID, opts CartOptions) (*models.CartRecommendationResult, error) {
	if sessionToken == "" {
		return nil, fmt.Errorf("%w: session token is required", apperrors.ErrInvalidInput)
	}

	session, err := s.sessionRepo.GetByToken(ctx, sessionToken)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.ErrSessionInactive
		}
		return nil, fmt.Errorf("failed to look up session: %w", err)
	}
	if !session.IsActive() {
		return nil, apperrors.ErrSessionInactive
	}

	cartItems := dedupeItems(cartItemIDs)
	if len(cartItems) == 0 {
		return nil, fmt.Errorf("%w: cart has no valid items", apperrors.ErrInvalidInput)
	}

	limit := opts.Limit
	if limit < 1 {
		limit = defaultCartRecommendationLimit
	}
	if limit > maxCartRecommendationLimit {
		limit = maxCartRecommendationLimit
	}

	// Cart contents are always excluded; caller exclusions stack on top.
	exclusions := make([]uuid.UUID, 0, len(cartItems)+len(opts.ExcludeItemIDs))
	exclusions = append(exclusions, cartItems...)
	for _, itemID := range dedupeItems(opts.ExcludeItemIDs) {
		exclusions = append(exclusions, itemID)
	}

	// Over-fetch so deduplication across base items still fills the limit.
	records, err := s.recRepo.ListByBaseItems(ctx, session.RestaurantID, cartItems, exclusions, limit*len(cartItems))
	if err != nil {
		return nil, fmt.Errorf("failed to list recommendations: %w", err)
	}

	result := &models.CartRecommendationResult{
		CartItems:       cartItems,
		Recommendations: make([]*models.CartRecommendation, 0, limit),
	}
	if session.Restaurant != nil {
		result.Restaurant = &models.RestaurantRef{
			ID:   session.Restaurant.ID,
			Name: session.Restaurant.Name,
		}
	}

	// Records arrive best-first; the first rule suggesting an item wins.
	seen := make(map[uuid.UUID]struct{}, limit)
	for _, record := range records {
		if len(result.Recommendations) >= limit {
			break
		}
		if _, ok := seen[record.RecommendedItemID]; ok {
			continue
		}
		seen[record.RecommendedItemID] = struct{}{}

		result.Recommendations = append(result.Recommendations, &models.CartRecommendation{
			BaseItemID:        record.BaseItemID,
			RecommendedItemID: record.RecommendedItemID,
			Score:             record.Lift,
			AttachRate:        record.AttachRate,
			Confidence:        record.Confidence,
			Support:           record.Support,
			SupportCount:      record.SupportCount,
			MenuItem:          record.RecommendedItem,
		})
	}

	s.logger.Debug("cart recommendations served",
		zap.String("restaurant_id", session.RestaurantID.String()),
		zap.Int("cart_items", len(cartItems)),
		zap.Int("recommendations", len(result.Recommendations)))

	return result, nil
}
