package account

import "errors"

var (
	// ErrDuplicateEmail is returned when the address is already registered
	// under either kind.
	ErrDuplicateEmail = errors.New("account: email already registered")
	// ErrNotFound is returned when no account matches the lookup.
	ErrNotFound = errors.New("account: not found")
	// ErrStoreUnavailable wraps backend failures.
	ErrStoreUnavailable = errors.New("account: store unavailable")
	// ErrConflict is returned by Update when the stored record changed
	// after the caller read it.
	ErrConflict = errors.New("account: concurrent update")
	// ErrInvalidKind is returned for anything other than user or hospital.
	ErrInvalidKind = errors.New("account: invalid kind")
)
