// Package workload defines the opaque identity type used as the key for
// per-workload state across the policy store and both orchestrators.
package workload

import (
	"errors"
	"strings"
)

// ErrEmptyID is returned when a workload identifier is empty or whitespace.
var ErrEmptyID = errors.New("workload: id must not be empty")

// ID is a distinct, totally ordered identifier for a registered workload.
// It is deliberately not a plain string so it cannot be confused with an
// arbitrary key; construct it only through New.
type ID struct {
	value string
}

// New validates and constructs a workload ID from a name.
func New(name string) (ID, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return ID{}, ErrEmptyID
	}

	return ID{value: trimmed}, nil
}

// String returns the underlying identifier text.
func (id ID) String() string { return id.value }

// Less imposes a total order over IDs so callers can iterate deterministically.
func (id ID) Less(other ID) bool { return id.value < other.value }
