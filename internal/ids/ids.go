// Package ids centralizes identifier generation so the rest of the module
// never calls the uuid package directly.
package ids

import "github.com/google/uuid"

// NewV4 returns a random v4 UUID string, used for generated
// distinct/anon-distinct/device/session/batch identifiers.
func NewV4() string {
	return uuid.NewString()
}

// NewV7 returns a time-ordered v7 UUID string for event identifiers, so the
// identifier is monotonic with time. If uuid.NewV7 returns an error, NewV7
// falls back to a v4 id; NewV4 draws on the same random source and panics
// if that source fails.
func NewV7() string {
	id, err := uuid.NewV7()
	if err != nil {
		return NewV4()
	}
	return id.String()
}
