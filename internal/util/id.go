package util

import "github.com/google/uuid"

// NewID returns a fresh unique identifier, optionally namespaced by a
// prefix such as "client" or "followup".
func NewID(prefix string) string {
	if prefix == "" {
		return uuid.NewString()
	}
	return prefix + "-" + uuid.NewString()
}
