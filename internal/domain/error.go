package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrAlreadyExists      = errors.New("entity already exists")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrOperationFailed    = errors.New("storage operation failed")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
	ErrInvalidExecContext = errors.New("invalid executor context")

	// Payment engine errors (stable external taxonomy)
	ErrInvalidAmount          = errors.New("invalid or inconsistent amount")
	ErrGatewayUnavailable     = errors.New("payment gateway unavailable")
	ErrGatewayTimeout         = errors.New("payment gateway timeout")
	ErrWalletNotFound         = errors.New("wallet not found")
	ErrConfigMissing          = errors.New("payment configuration missing")
	ErrDuplicateRequest       = errors.New("shipment already has an open refund request")
	ErrAmountExceedsAvailable = errors.New("amount exceeds available funds")
	ErrStateConflict          = errors.New("state does not permit this transition")
	ErrSubscriptionSuspended  = errors.New("fleet subscription is suspended")
	ErrDeliveryNotConfirmed   = errors.New("delivery has not been confirmed")
	ErrLockNotAcquired        = errors.New("could not acquire lock")
)
