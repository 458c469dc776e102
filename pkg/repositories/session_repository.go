package repositories

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/dineflow/dineflow-engine/pkg/apperrors"
	"github.com/dineflow/dineflow-engine/pkg/database"
	"github.com/dineflow/dineflow-engine/pkg/models"
)

// SessionRepository provides read access to guest dining sessions.
type SessionRepository interface {
	// GetByToken returns the session for the given token with its
	// restaurant populated, or apperrors.ErrNotFound for an unknown token.
	GetByToken(ctx context.Context, sessionToken string) (*models.GuestSession, error)
}

type sessionRepository struct{}

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository() SessionRepository {
	return &sessionRepository{}
}

var _ SessionRepository = (*sessionRepository)(nil)

func (r *sessionRepository) GetByToken(ctx context.Context, sessionToken string) (*models.GuestSession, error) {
	q, ok := database.GetQuerier(ctx)
	if !ok {
		return nil, fmt.Errorf("no querier in context")
	}

	query := `
		SELECT s.id, s.restaurant_id, s.session_token, s.table_label, s.closed_at, s.created_at,
		       r.id, r.name, r.created_at, r.updated_at
		FROM guest_sessions s
		JOIN restaurants r ON r.id = s.restaurant_id
		WHERE s.session_token = $1`

	var session models.GuestSession
	var restaurant models.Restaurant
	err := q.QueryRow(ctx, query, sessionToken).Scan(
		&session.ID,
		&session.RestaurantID,
		&session.SessionToken,
		&session.TableLabel,
		&session.ClosedAt,
		&session.CreatedAt,
		&restaurant.ID,
		&restaurant.Name,
		&restaurant.CreatedAt,
		&restaurant.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("guest session: %w", apperrors.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get guest session: %w", err)
	}

	session.Restaurant = &restaurant
	return &session, nil
}
