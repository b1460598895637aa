// Package common: errors.go defines the sentinel errors shared by all
// features. Handlers match them with errors.Is to pick an HTTP status
// and a user-facing message.
package common

import "errors"

// Reward account errors
var (
	// ErrAccountNotFound: the user has no reward account in this tenant yet
	ErrAccountNotFound = errors.New("reward account not found")
	// ErrInsufficientBalance: not enough tokens for a purchase
	ErrInsufficientBalance = errors.New("insufficient token balance")
	// ErrInvalidAmount: zero or negative amount
	ErrInvalidAmount = errors.New("amount must be positive")
	// ErrInvalidKind: unknown ledger kind for a staff grant
	ErrInvalidKind = errors.New("unknown transaction kind")
	// ErrStoreUnavailable: the database could not be reached; safe to retry
	ErrStoreUnavailable = errors.New("reward store unavailable")
)

// Admin errors
var (
	// ErrWrongPassword: staff password did not match
	ErrWrongPassword = errors.New("wrong password")
	// ErrTooManyAttempts: too many failed logins in the last hour
	ErrTooManyAttempts = errors.New("too many attempts, wait 1 hour")
	// ErrSessionExpired: missing, inactive or expired admin session
	ErrSessionExpired = errors.New("session expired, log in again")
	// ErrGrantsDisabled: staff grants are turned off by feature flag
	ErrGrantsDisabled = errors.New("grants are disabled")
)
