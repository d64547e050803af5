// Package services defines the business logic for items and uploads. This
// file centralizes the service-level failures. They are HTTP errors so the
// error boundary renders them with their own status and message; callers can
// still match them with errors.Is.
package services

import (
	"net/http"

	"github.com/tbourn/go-resilient-api/internal/resilience"
)

var (
	// ErrItemNotFound indicates that the requested item does not exist.
	ErrItemNotFound = resilience.NotFound("Item not found")

	// ErrPayloadTooLarge is returned when an upload exceeds the body limit.
	ErrPayloadTooLarge = resilience.NewHTTPError(http.StatusRequestEntityTooLarge, "Payload too large")
)
