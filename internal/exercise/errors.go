package exercise

import (
	"errors"
	"net/http"
)

var (
	// ErrValidation is returned when a request body does not match its schema.
	ErrValidation = errors.New("invalid request")
	// ErrUserNotFound is returned when a user id does not resolve.
	ErrUserNotFound = errors.New("user not found")
	// ErrStoreRead wraps backend failures on read paths.
	ErrStoreRead = errors.New("store read failed")
	// ErrStoreWrite wraps backend failures on write paths.
	ErrStoreWrite = errors.New("store write failed")
)

// HTTPError is an error translated for the wire.
type HTTPError struct {
	Status  int
	Message string
}

// MapError maps service errors to a status code and public message.
// fallback is the message used for store failures.
func MapError(err error, fallback string) *HTTPError {
	switch {
	case errors.Is(err, ErrUserNotFound):
		return &HTTPError{Status: http.StatusNotFound, Message: "User not found"}
	case errors.Is(err, ErrValidation):
		return &HTTPError{Status: http.StatusBadRequest, Message: err.Error()}
	default:
		return &HTTPError{Status: http.StatusInternalServerError, Message: fallback}
	}
}
