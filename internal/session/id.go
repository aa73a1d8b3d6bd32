package session

import (
	"strings"

	"github.com/google/uuid"
)

// NewID returns a random 128-bit identifier for conversations and turns.
func NewID() string {
	return uuid.NewString()
}

// ShortID returns a shortened version of the ID for display.
// Example: "3f2b9c1e-8d4a-4f6e-9b7a-2c1d0e5f6a7b" -> "3f2b9c1e"
func ShortID(id string) string {
	if i := strings.IndexByte(id, '-'); i > 0 {
		return id[:i]
	}
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
