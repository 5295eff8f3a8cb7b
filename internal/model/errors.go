package model

import "errors"

// DomainError is the base of the clearing error taxonomy. Every kind carries
// a stable machine-readable code that survives wrapping, so operator surfaces
// can always report the specific kind alongside the last known good state.
type DomainError struct {
	Code    string
	Message string
}

func (e *DomainError) Error() string {
	return e.Message
}

var (
	// Validation errors: rejected synchronously at construction.
	ErrTimeoutOrdering = &DomainError{
		Code:    "ERR_TIMEOUT_ORDERING",
		Message: "participate channel timeout must expire strictly before initiate channel timeout",
	}
	ErrAssetPairMismatch = &DomainError{
		Code:    "ERR_ASSET_PAIR_MISMATCH",
		Message: "channel assets do not match the declared settlement asset pair",
	}
	ErrInvalidChannelSpec = &DomainError{
		Code:    "ERR_CHANNEL_SPEC_INVALID",
		Message: "channel spec is invalid",
	}

	// Protocol violations: rejected with state unchanged.
	ErrHashedSecretMismatch = &DomainError{
		Code:    "ERR_HASHED_SECRET_MISMATCH",
		Message: "participate channel hashed secret differs from initiate channel hashed secret",
	}
	ErrSecretMismatch = &DomainError{
		Code:    "ERR_SECRET_MISMATCH",
		Message: "secret preimage does not hash to the channel hashed secret",
	}
	ErrAlreadyResolved = &DomainError{
		Code:    "ERR_ALREADY_RESOLVED",
		Message: "channel already holds a resolving transaction",
	}
	ErrTimeoutNotElapsed = &DomainError{
		Code:    "ERR_TIMEOUT_NOT_ELAPSED",
		Message: "channel timeout has not elapsed",
	}
	ErrSecretUnavailable = &DomainError{
		Code:    "ERR_SECRET_UNAVAILABLE",
		Message: "secret has not been revealed on-chain yet",
	}

	// Internal consistency faults: fatal for the settlement, operator attention required.
	ErrStateRegression = &DomainError{
		Code:    "ERR_STATE_REGRESSION",
		Message: "transaction state may not move backward",
	}
	ErrHashImmutable = &DomainError{
		Code:    "ERR_HASH_IMMUTABLE",
		Message: "transaction hash is set once at submission and is immutable",
	}
	ErrInternalConsistency = &DomainError{
		Code:    "ERR_INTERNAL_CONSISTENCY",
		Message: "settlement reached a structurally impossible state combination",
	}

	// Lookup and lifecycle errors.
	ErrSettlementNotFound = &DomainError{
		Code:    "ERR_SETTLEMENT_NOT_FOUND",
		Message: "settlement not found",
	}
	ErrChannelNotFound = &DomainError{
		Code:    "ERR_CHANNEL_NOT_FOUND",
		Message: "channel not found",
	}
	ErrSettlementAborted = &DomainError{
		Code:    "ERR_SETTLEMENT_ABORTED",
		Message: "settlement has been aborted by an operator",
	}
)

// ErrorCode extracts the stable code from a possibly wrapped domain error.
func ErrorCode(err error) string {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}

	return ""
}
