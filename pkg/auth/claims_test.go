package auth

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClaims_RestaurantScope(t *testing.T) {
	r1 := uuid.New()
	r2 := uuid.New()

	claims := &Claims{RestaurantIDs: []string{r1.String(), r2.String()}, Role: RoleManager}

	scope, err := claims.RestaurantScope()
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{r1, r2}, scope)
}

func TestClaims_RestaurantScope_AdminUnrestricted(t *testing.T) {
	claims := &Claims{Role: RoleAdmin}

	scope, err := claims.RestaurantScope()
	require.NoError(t, err)
	assert.Nil(t, scope)
}

func TestClaims_RestaurantScope_ManagerWithoutRestaurants(t *testing.T) {
	claims := &Claims{Role: RoleManager}

	_, err := claims.RestaurantScope()
	assert.Error(t, err)
}

func TestClaims_RestaurantScope_InvalidID(t *testing.T) {
	claims := &Claims{RestaurantIDs: []string{"not-a-uuid"}}

	_, err := claims.RestaurantScope()
	assert.Error(t, err)
}

func TestScopeFromContext(t *testing.T) {
	r1 := uuid.New()
	claims := &Claims{RestaurantIDs: []string{r1.String()}, Role: RoleManager}
	ctx := context.WithValue(context.Background(), ClaimsKey, claims)

	scope, err := ScopeFromContext(ctx)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{r1}, scope)
}

func TestScopeFromContext_Unauthenticated(t *testing.T) {
	_, err := ScopeFromContext(context.Background())
	assert.Error(t, err)
}

func TestGetClaims(t *testing.T) {
	claims := &Claims{Role: RoleAdmin}
	ctx := context.WithValue(context.Background(), ClaimsKey, claims)

	got, ok := GetClaims(ctx)
	assert.True(t, ok)
	assert.Equal(t, claims, got)

	_, ok = GetClaims(context.Background())
	assert.False(t, ok)
}
