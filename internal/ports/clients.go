package ports

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ClaimInstruction asks the engine to withdraw a link's deliverable amount to
// a recipient. LinkID travels along as the correlation handle so a claim with
// an ambiguous outcome can be looked up later.
type ClaimInstruction struct {
	LinkID       string
	Amount       decimal.Decimal
	Asset        string
	RecipientRef string
}

const (
	ClaimStateSettled = "settled"
	ClaimStateFailed  = "failed"
	ClaimStatePending = "pending"
)

// ClaimLookup is the engine's answer to "what happened to the claim for this
// link". Used only to resolve claims left in-flight by an indeterminate call.
type ClaimLookup struct {
	State            string
	ClaimTransferRef string
	Reason           string
}

// ValueTransferEngine is the port to the external non-custodial transfer
// protocol. Proofs, keys and settlement stay entirely on the other side of
// this interface; calls may take tens of seconds.
//
// Funding instructions are issued by the creator's own client agent, never by
// this service, so no Fund method appears here. The service only learns about
// funding through settlement notifications.
type ValueTransferEngine interface {
	Claim(ctx context.Context, instruction ClaimInstruction) (claimTransferRef string, err error)
	ClaimStatus(ctx context.Context, linkID string) (ClaimLookup, error)
}

// EngineError is a definitive failure reported by the engine. Retryable
// failures release the claim gate; terminal ones close it.
type EngineError struct {
	Code      string
	Reason    string
	Retryable bool
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("engine %s: %s (retryable=%t)", e.Code, e.Reason, e.Retryable)
}

// ErrEngineIndeterminate means the call ended without a definitive outcome
// (local timeout, connection cut mid-flight). The engine may still complete
// the transfer, so the caller must not treat this as a failure.
var ErrEngineIndeterminate = errors.New("engine claim outcome indeterminate")
