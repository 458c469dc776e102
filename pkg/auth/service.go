package auth

import (
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// staffCookieName carries the staff JWT for browser clients.
const staffCookieName = "dineflow_jwt"

// Common authentication errors.
var (
	ErrMissingAuthorization = errors.New("missing authorization")
	ErrInvalidAuthFormat    = errors.New("invalid authorization header format")
	ErrMissingScope         = errors.New("no restaurants granted in token")
)

// AuthService defines the interface for staff authentication operations.
// This abstraction keeps HTTP handling separate from token logic, making
// both easier to test.
type AuthService interface {
	// ValidateRequest extracts and validates a JWT from the request.
	// It checks for the token in:
	//   1. Cookie named "dineflow_jwt" (browser clients)
	//   2. Authorization header with "Bearer" scheme (API clients)
	// Returns the validated claims, the raw token string, or an error.
	ValidateRequest(r *http.Request) (*Claims, string, error)

	// RequireScope validates that the claims grant at least one restaurant
	// or carry the admin role.
	RequireScope(claims *Claims) error
}

// authService implements AuthService.
type authService struct {
	verifier TokenVerifier
	logger   *zap.Logger
}

// NewAuthService creates a new AuthService with the given verifier and logger.
func NewAuthService(verifier TokenVerifier, logger *zap.Logger) AuthService {
	return &authService{
		verifier: verifier,
		logger:   logger,
	}
}

// ValidateRequest extracts and validates a JWT from the request.
func (s *authService) ValidateRequest(r *http.Request) (*Claims, string, error) {
	var tokenString string
	var tokenSource string

	// Try cookie first (browser clients)
	if cookie, err := r.Cookie(staffCookieName); err == nil {
		tokenString = cookie.Value
		tokenSource = "cookie"
	} else {
		// Fallback to Authorization header (API clients)
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			s.logger.Debug("No JWT found in request",
				zap.String("path", r.URL.Path),
				zap.String("method", r.Method))
			return nil, "", ErrMissingAuthorization
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			s.logger.Debug("Invalid Authorization header format",
				zap.String("path", r.URL.Path))
			return nil, "", ErrInvalidAuthFormat
		}
		tokenString = parts[1]
		tokenSource = "header"
	}

	claims, err := s.verifier.ValidateToken(tokenString)
	if err != nil {
		s.logger.Debug("JWT validation failed",
			zap.Error(err),
			zap.String("path", r.URL.Path),
			zap.String("token_source", tokenSource))
		return nil, "", err
	}

	return claims, tokenString, nil
}

// RequireScope validates that the claims grant access to something.
func (s *authService) RequireScope(claims *Claims) error {
	if len(claims.RestaurantIDs) == 0 && !claims.IsAdmin() {
		return ErrMissingScope
	}
	return nil
}

// Ensure authService implements AuthService at compile time.
var _ AuthService = (*authService)(nil)
