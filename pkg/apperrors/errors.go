package apperrors

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrRebuildInProgress = errors.New("recommendation rebuild already in progress")
	ErrSessionInactive   = errors.New("session is not active")
	ErrInvalidInput      = errors.New("invalid input")
)
