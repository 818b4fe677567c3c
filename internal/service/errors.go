package service

import "errors"

// Domain error taxonomy. Adapters translate each of these into the
// provider's own error vocabulary; the authenticated API maps them to HTTP
// statuses. A webhook handler never surfaces a raw internal error.
var (
	ErrTokenNotFound       = errors.New("payment token not found")
	ErrAlreadyPaid         = errors.New("payment token already paid")
	ErrAmountMismatch      = errors.New("amount does not match payment token")
	ErrTokenExpired        = errors.New("payment token expired")
	ErrTokenCancelled      = errors.New("payment token cancelled")
	ErrPortalDisabled      = errors.New("payment portal is not configured for tenant")
	ErrTransactionNotFound = errors.New("provider transaction not found")
	ErrTransactionConflict = errors.New("another provider transaction is pending for token")
	ErrOrderNotFound       = errors.New("order not found")
	ErrOrderAlreadyPaid    = errors.New("order is already fully paid")
	ErrInvalidAmount       = errors.New("amount must be positive")
)
