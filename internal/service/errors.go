package service

import "errors"

// Error taxonomy surfaced to the transport layer. Handlers map these to
// status codes; anything wrapping ErrStorage is logged with detail
// server-side and surfaced opaquely.
var (
	// ErrInvalidInput marks malformed request data; the client's fault,
	// never retried.
	ErrInvalidInput = errors.New("invalid input")
	// ErrAlreadyExists marks a uniqueness violation.
	ErrAlreadyExists = errors.New("already exists")
	// ErrInvalidCredentials is returned for both unknown username and
	// wrong password, deliberately indistinguishable.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUnauthorized marks a missing, unknown or expired session token.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrNotFound marks an absent entity or one not owned by the caller;
	// the two cases collapse into one outcome to avoid ownership probing.
	ErrNotFound = errors.New("not found")
	// ErrMissingFields marks a create request lacking required fields.
	ErrMissingFields = errors.New("missing required fields")
	// ErrStorage marks a backend failure, surfaced without detail.
	ErrStorage = errors.New("storage failure")
)

// storageFailure wraps a backend error so it matches ErrStorage while
// keeping the underlying detail for server-side logs.
func storageFailure(op string, err error) error {
	return errors.Join(ErrStorage, errors.New(op+": "+err.Error()))
}
