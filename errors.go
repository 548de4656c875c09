package plume

import "errors"

var (
	// ErrNotFound is returned when a record or stored object does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput is returned for malformed, missing or oversized input.
	ErrInvalidInput = errors.New("invalid input")
	// ErrInvalidID is returned when an identifier is not well formed.
	ErrInvalidID = errors.New("invalid id")
	// ErrUnauthenticated is returned when a bearer credential is missing,
	// malformed or expired.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrForbidden is returned when an authenticated caller is not the owner
	// of the resource being mutated.
	ErrForbidden = errors.New("forbidden")
	// ErrConflict is returned when a unique field (such as an email address)
	// is already taken.
	ErrConflict = errors.New("conflict")
	// ErrInvalidCredentials is returned by login for an unknown email or a
	// wrong password. The two cases are deliberately indistinguishable.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInternal wraps unexpected database or storage failures.
	ErrInternal = errors.New("internal error")
)

// Error is a user-facing failure. Kind is one of the sentinel errors above
// and selects the response status; Msg is the message shown to the client;
// Fields optionally carries per-field validation messages.
type Error struct {
	Kind   error
	Msg    string
	Fields []string
}

func (e *Error) Error() string { return e.Msg }

func (e *Error) Unwrap() error { return e.Kind }

// E builds a user-facing error of the given kind.
func E(kind error, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

