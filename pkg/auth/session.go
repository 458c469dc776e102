package auth

import (
	"crypto/sha256"
	"net/http"

	"github.com/gorilla/sessions"
)

// guestSessionName is the name of the guest session cookie.
const guestSessionName = "dineflow_guest"

// guestSessionKeyToken is the session value key holding the table session token.
const guestSessionKeyToken = "session_token"

// guestSessionMaxAge keeps the cookie alive for a long dining visit.
const guestSessionMaxAge = 6 * 60 * 60 // 6 hours

// GuestSessionStore wraps a signed cookie store carrying the guest's table
// session token. Guests never authenticate; the token is minted when a
// table session opens and the cookie only has to survive the visit.
type GuestSessionStore struct {
	store *sessions.CookieStore
}

// NewGuestSessionStore creates a cookie-backed guest session store.
//
// The secret parameter signs the cookie. It can be any passphrase - it
// will be SHA-256 hashed to derive a 32-byte key. The secret must be
// consistent across server restarts and multiple servers in a
// load-balanced deployment.
func NewGuestSessionStore(secret string) *GuestSessionStore {
	// Hash the secret to get a consistent 32-byte key
	key := sha256.Sum256([]byte(secret))

	store := sessions.NewCookieStore(key[:])
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   guestSessionMaxAge,
		HttpOnly: true,
		Secure:   true, // HTTPS only
		SameSite: http.SameSiteLaxMode,
	}
	return &GuestSessionStore{store: store}
}

// Token returns the table session token from the request cookie, or empty
// when no cookie is present.
func (g *GuestSessionStore) Token(r *http.Request) string {
	session, err := g.store.Get(r, guestSessionName)
	if err != nil {
		// A tampered or stale cookie decodes as a fresh session.
		return ""
	}
	token, _ := session.Values[guestSessionKeyToken].(string)
	return token
}

// SetToken writes the table session token into the response cookie.
func (g *GuestSessionStore) SetToken(w http.ResponseWriter, r *http.Request, token string) error {
	session, _ := g.store.Get(r, guestSessionName)
	session.Values[guestSessionKeyToken] = token
	return session.Save(r, w)
}

// Clear expires the guest cookie.
func (g *GuestSessionStore) Clear(w http.ResponseWriter, r *http.Request) error {
	session, _ := g.store.Get(r, guestSessionName)
	session.Options.MaxAge = -1
	delete(session.Values, guestSessionKeyToken)
	return session.Save(r, w)
}
