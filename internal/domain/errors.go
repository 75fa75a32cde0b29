package domain

import "errors"

var (
	ErrUnauthorized         = errors.New("unauthorized")
	ErrForbidden            = errors.New("forbidden")
	ErrNotFound             = errors.New("not found")
	ErrInvalidInput         = errors.New("invalid input")
	ErrConflict             = errors.New("conflict")
	ErrIdempotencyRequired  = errors.New("idempotency key required")
	ErrIdempotencyConflict  = errors.New("idempotency conflict")
	ErrUnsupportedEventType = errors.New("unsupported event type")

	// Claim gate outcomes. Each maps to a distinct caller-facing status so a
	// claimant can always tell "retry later" apart from "this is over".
	ErrNotFunded       = errors.New("link not funded")
	ErrClaimInProgress = errors.New("claim already in progress")
	ErrAlreadyClaimed  = errors.New("link already claimed")
	ErrClaimTerminal   = errors.New("previous claim attempt failed terminally")

	// ErrFundingDiverged means two funding notifications carried different
	// transfer references for the same link. The store keeps the first; this
	// is an operator problem, never silently reconciled.
	ErrFundingDiverged = errors.New("funding transfer reference diverged")

	// ErrConsistency means a transition that only the claim-gate holder could
	// perform failed anyway. The row was mutated outside the state machine.
	ErrConsistency = errors.New("link state consistency violation")
)
