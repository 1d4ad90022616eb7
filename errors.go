package ddnsrelay

import (
	"errors"
	"fmt"
)

// ErrNotConfigured is returned when the provider is missing its API token or zone.
var ErrNotConfigured = errors.New("cloudflare API credentials not configured")

// ProviderError is returned when the provider API answered with success=false.
// Body holds the raw response.
type ProviderError struct {
	StatusCode int
	Body       string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider returned an unsuccessful response (HTTP %d): %s", e.StatusCode, e.Body)
}

// UpdateError describes which step of an update failed.
type UpdateError struct {
	Op     string // "validate", "lookup", "update" or "create"
	Domain string
	Err    error
}

func (e *UpdateError) Error() string {
	switch e.Op {
	case "lookup":
		return fmt.Sprintf("Error communicating with Cloudflare API: %s", e.Err)
	case "update":
		return fmt.Sprintf("Failed to update DNS record: %s", e.Err)
	case "create":
		return fmt.Sprintf("Failed to create DNS record: %s", e.Err)
	}
	return e.Err.Error()
}

func (e *UpdateError) Unwrap() error { return e.Err }
