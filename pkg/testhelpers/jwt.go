package testhelpers

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/dineflow/dineflow-engine/pkg/auth"
)

// TestSigningKey signs staff tokens in tests. It must match the key the
// test server's verifier is configured with.
const TestSigningKey = "dineflow-test-signing-key"

// MintStaffToken creates a signed staff token granting the given
// restaurants. Pass no restaurants with role "admin" for an unrestricted
// token.
func MintStaffToken(role string, restaurantIDs ...uuid.UUID) (string, error) {
	ids := make([]string, 0, len(restaurantIDs))
	for _, id := range restaurantIDs {
		ids = append(ids, id.String())
	}

	claims := &auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "staff-test",
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		RestaurantIDs: ids,
		Role:          role,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(TestSigningKey))
}

// MintStaffTokenWithBearer returns the token with a "Bearer " prefix for
// the Authorization header.
func MintStaffTokenWithBearer(role string, restaurantIDs ...uuid.UUID) (string, error) {
	token, err := MintStaffToken(role, restaurantIDs...)
	if err != nil {
		return "", err
	}
	return "Bearer " + token, nil
}
