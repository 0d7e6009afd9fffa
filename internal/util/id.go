package util

import "github.com/google/uuid"

// NewID returns a unique request id.
func NewID() string {
	return uuid.NewString()
}
