// Package errors holds the reconciliation error taxonomy on top of pkg/errors codes.
package errors

import (
	"errors"
	"fmt"

	apperrors "github.com/pcoptimize/pcoptimize-backend/pkg/errors"
)

var (
	// ErrPaymentNotCompleted is returned when a provider reports a capture in any state but completed.
	ErrPaymentNotCompleted = errors.New("payment not completed")

	// ErrReviewAlreadyResolved indicates the review item was closed before.
	ErrReviewAlreadyResolved = errors.New("review item already resolved")

	// ErrIllegalTransition indicates a status change the state machine does not allow.
	ErrIllegalTransition = errors.New("illegal status transition")

	// ErrUnknownProvider is returned for a provider name with no adapter.
	ErrUnknownProvider = errors.New("unknown payment provider")
)

func NewInvalidArgument(format string, args ...interface{}) error {
	return apperrors.NewAppError(apperrors.ErrInvalidArgument, fmt.Sprintf(format, args...), nil)
}

// NewUpstreamUnavailable wraps a transport failure or 5xx from a provider.
func NewUpstreamUnavailable(provider string, err error) error {
	return apperrors.NewAppError(apperrors.ErrUpstreamUnavailable,
		fmt.Sprintf("%s is unavailable", provider), err)
}

// NewUpstreamRejected wraps a provider refusal: a 4xx or a non-completed capture.
func NewUpstreamRejected(provider, message string, err error) error {
	return apperrors.NewAppError(apperrors.ErrUpstreamRejected,
		fmt.Sprintf("%s rejected the request: %s", provider, message), err)
}

// NewNotProvisioned reports a valid plan with no configured price.
func NewNotProvisioned(format string, args ...interface{}) error {
	return apperrors.NewAppError(apperrors.ErrNotProvisioned, fmt.Sprintf(format, args...), nil)
}

func NewAuthenticationFailed(message string) error {
	return apperrors.NewAppError(apperrors.ErrUnauthenticated, message, nil)
}

func NewNotFound(format string, args ...interface{}) error {
	return apperrors.NewAppError(apperrors.ErrNotFound, fmt.Sprintf(format, args...), nil)
}

// NewPersistenceWarning wraps a ledger failure that happened after a successful charge.
func NewPersistenceWarning(orderID string, err error) error {
	return apperrors.NewAppError(apperrors.ErrPersistenceWarning,
		fmt.Sprintf("payment %s captured but not recorded", orderID), err)
}
