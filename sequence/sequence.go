package sequence

import (
	"context"
	"errors"
	"regexp"
)

var (
	// ErrStoreUnavailable wraps any backend failure. No value was allocated
	// that the caller can rely on.
	ErrStoreUnavailable = errors.New("sequence: store unavailable")
	// ErrInvalidName is returned for empty or non-identifier counter names.
	ErrInvalidName = errors.New("sequence: invalid counter name")
)

// MaxNameLength bounds counter names.
const MaxNameLength = 64

var namePattern = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

// Generator allocates the next value of a named counter.
//
// Next returns 1 on the first call for a name and strictly increasing values
// afterwards. Current returns the last allocated value, or 0 when the counter
// has never been used.
type Generator interface {
	Next(ctx context.Context, name string) (int64, error)
	Current(ctx context.Context, name string) (int64, error)
}

// ValidateName reports whether name is usable as a counter name.
func ValidateName(name string) error {
	if name == "" || len(name) > MaxNameLength || !namePattern.MatchString(name) {
		return ErrInvalidName
	}
	return nil
}
