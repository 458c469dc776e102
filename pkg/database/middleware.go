package database

import (
	"net/http"
)

// WithQuerierContext creates middleware that makes the connection pool
// available to repositories for the duration of a request.
func WithQuerierContext(db *DB) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			next(w, r.WithContext(db.WithPool(r.Context())))
		}
	}
}
