package errors

// Error codes shared by every transport.
const (
	ErrInternal        = "INTERNAL"
	ErrNotFound        = "NOT_FOUND"
	ErrInvalidArgument = "INVALID_ARGUMENT"
	ErrUnauthenticated = "UNAUTHENTICATED"
	ErrUnauthorized    = "UNAUTHORIZED"
	ErrConflict        = "CONFLICT"
	ErrTimeout         = "TIMEOUT"
	ErrNotImplemented  = "NOT_IMPLEMENTED"
	ErrRateLimited     = "RATE_LIMITED"

	// Payment provider outcomes
	ErrUpstreamUnavailable = "UPSTREAM_UNAVAILABLE"
	ErrUpstreamRejected    = "UPSTREAM_REJECTED"
	ErrNotProvisioned      = "NOT_PROVISIONED"

	// ErrPersistenceWarning marks a bookkeeping failure after money already moved.
	// It is logged, never returned to a payer as a failure.
	ErrPersistenceWarning = "PERSISTENCE_WARNING"
)
