package linkedin

import (
	"errors"
	"fmt"
)

const createPostPrefix = "Failed to create post: "

// APIError is any non-duplicate failure of CreatePost.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string { return createPostPrefix + e.Message }

// DuplicateContentError is returned when LinkedIn rejects content that was already shared.
// RemoteID holds the share id embedded in the upstream message, or "" when none was present.
type DuplicateContentError struct {
	RemoteID string
	Message  string
}

func (e *DuplicateContentError) Error() string { return createPostPrefix + e.Message }

// AuthError means LinkedIn did not accept the access token.
type AuthError struct {
	Status  int
	Message string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s (status %d)", e.Message, e.Status)
}

// statusError carries a non-2xx response through the failsafe policies.
type statusError struct {
	status int
	body   []byte
}

func (e *statusError) Error() string {
	return fmt.Sprintf("linkedin returned status: %d", e.status)
}

func statusOf(err error) int {
	var se *statusError
	if errors.As(err, &se) {
		return se.status
	}
	return 0
}
