package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// queryUUID parses an optional UUID query parameter. A missing parameter
// returns nil without error.
func queryUUID(r *http.Request, name string) (*uuid.UUID, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", name, err)
	}
	return &id, nil
}

// queryUUIDList parses a repeatable UUID query parameter. Each occurrence
// may itself be a comma-separated list. A missing parameter returns nil
// without error.
func queryUUIDList(r *http.Request, name string) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	for _, raw := range r.URL.Query()[name] {
		for _, part := range strings.Split(raw, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := uuid.Parse(part)
			if err != nil {
				return nil, fmt.Errorf("invalid %s: %w", name, err)
			}
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// queryInt parses an optional integer query parameter, returning the
// fallback when absent.
func queryInt(r *http.Request, name string, fallback int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}
	return v, nil
}

// queryFloat parses an optional float query parameter. A missing parameter
// returns nil without error.
func queryFloat(r *http.Request, name string) (*float64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", name, err)
	}
	return &v, nil
}
