package repositories

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dineflow/dineflow-engine/pkg/apperrors"
	"github.com/dineflow/dineflow-engine/pkg/database"
	"github.com/dineflow/dineflow-engine/pkg/models"
)

// MenuRepository provides read access to restaurants and their menus.
type MenuRepository interface {
	ListRestaurants(ctx context.Context) ([]*models.Restaurant, error)
	// GetRestaurant returns apperrors.ErrNotFound for an unknown id.
	GetRestaurant(ctx context.Context, restaurantID uuid.UUID) (*models.Restaurant, error)
	ListMenuItems(ctx context.Context, restaurantID uuid.UUID) ([]*models.MenuItem, error)
}

type menuRepository struct{}

// NewMenuRepository creates a new MenuRepository.
func NewMenuRepository() MenuRepository {
	return &menuRepository{}
}

var _ MenuRepository = (*menuRepository)(nil)

func (r *menuRepository) ListRestaurants(ctx context.Context) ([]*models.Restaurant, error) {
	q, ok := database.GetQuerier(ctx)
	if !ok {
		return nil, fmt.Errorf("no querier in context")
	}

	query := `
		SELECT id, name, created_at, updated_at
		FROM restaurants
		ORDER BY created_at`

	rows, err := q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query restaurants: %w", err)
	}
	defer rows.Close()

	var restaurants []*models.Restaurant
	for rows.Next() {
		var rest models.Restaurant
		if err := rows.Scan(&rest.ID, &rest.Name, &rest.CreatedAt, &rest.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan restaurant: %w", err)
		}
		restaurants = append(restaurants, &rest)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating restaurants: %w", err)
	}

	return restaurants, nil
}

func (r *menuRepository) GetRestaurant(ctx context.Context, restaurantID uuid.UUID) (*models.Restaurant, error) {
	q, ok := database.GetQuerier(ctx)
	if !ok {
		return nil, fmt.Errorf("no querier in context")
	}

	query := `
		SELECT id, name, created_at, updated_at
		FROM restaurants
		WHERE id = $1`

	var rest models.Restaurant
	err := q.QueryRow(ctx, query, restaurantID).Scan(&rest.ID, &rest.Name, &rest.CreatedAt, &rest.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("restaurant %s: %w", restaurantID, apperrors.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get restaurant: %w", err)
	}

	return &rest, nil
}

func (r *menuRepository) ListMenuItems(ctx context.Context, restaurantID uuid.UUID) ([]*models.MenuItem, error) {
	q, ok := database.GetQuerier(ctx)
	if !ok {
		return nil, fmt.Errorf("no querier in context")
	}

	query := `
		SELECT id, restaurant_id, category_id, name, description, price_cents,
		       image_url, is_available, created_at, updated_at
		FROM menu_items
		WHERE restaurant_id = $1
		ORDER BY name`

	rows, err := q.Query(ctx, query, restaurantID)
	if err != nil {
		return nil, fmt.Errorf("failed to query menu items: %w", err)
	}
	defer rows.Close()

	var items []*models.MenuItem
	for rows.Next() {
		var item models.MenuItem
		err := rows.Scan(
			&item.ID,
			&item.RestaurantID,
			&item.CategoryID,
			&item.Name,
			&item.Description,
			&item.PriceCents,
			&item.ImageURL,
			&item.IsAvailable,
			&item.CreatedAt,
			&item.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan menu item: %w", err)
		}
		items = append(items, &item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating menu items: %w", err)
	}

	return items, nil
}
