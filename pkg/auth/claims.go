// Package auth provides JWT-based staff authentication and guest session
// cookies for dineflow-engine. Staff tokens are issued by the dineflow
// account service and verified with a shared HMAC key.
package auth

import (
	"context"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	// ClaimsKey is the context key for storing JWT claims.
	ClaimsKey contextKey = "claims"
	// TokenKey is the context key for storing the raw JWT token string.
	TokenKey contextKey = "token"
)

// Staff roles carried in tokens.
const (
	RoleAdmin   = "admin"
	RoleManager = "manager"
)

// Claims represents the JWT claims structure for staff tokens.
// It embeds RegisteredClaims for standard JWT fields (sub, iss, exp, etc.)
// and adds the restaurant scope the staff member may operate on.
type Claims struct {
	jwt.RegisteredClaims
	RestaurantIDs []string `json:"rids,omitempty"` // Restaurant UUIDs the token grants access to
	Role          string   `json:"role,omitempty"` // Staff role within those restaurants
	Email         string   `json:"email,omitempty"`
}

// IsAdmin reports whether the token carries the platform admin role.
// Admin tokens with an empty restaurant list see every restaurant.
func (c *Claims) IsAdmin() bool {
	return c.Role == RoleAdmin
}

// RestaurantScope parses the restaurant ids granted by the claims. An admin
// token with no explicit restaurants returns an empty scope, meaning
// unrestricted.
func (c *Claims) RestaurantScope() ([]uuid.UUID, error) {
	if len(c.RestaurantIDs) == 0 {
		if c.IsAdmin() {
			return nil, nil
		}
		return nil, fmt.Errorf("no restaurants granted in token")
	}

	scope := make([]uuid.UUID, 0, len(c.RestaurantIDs))
	for _, raw := range c.RestaurantIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid restaurant ID in token: %w", err)
		}
		scope = append(scope, id)
	}
	return scope, nil
}

// GetClaims retrieves JWT claims from the request context.
// Returns nil and false if claims are not present.
func GetClaims(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(ClaimsKey).(*Claims)
	return claims, ok
}

// GetToken retrieves the raw JWT token string from the request context.
func GetToken(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(TokenKey).(string)
	return token, ok
}

// ScopeFromContext extracts the restaurant scope from the claims in context.
// Returns an error when the request is unauthenticated or the scope is
// malformed.
func ScopeFromContext(ctx context.Context) ([]uuid.UUID, error) {
	claims, ok := GetClaims(ctx)
	if !ok || claims == nil {
		return nil, fmt.Errorf("authentication required: no claims in context")
	}
	return claims.RestaurantScope()
}
