package engine

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/viralforge/mesh/services/financial-rails/M21-payment-link-service/internal/ports"
)

// Stub is an in-process engine used when no engine URL is configured (local
// runs, integration harnesses). Every claim settles immediately and the
// resulting transfer ref is remembered so ClaimStatus stays consistent with
// earlier Claim calls.
type Stub struct {
	mu     sync.Mutex
	claims map[string]string
}

func NewStub() *Stub {
	return &Stub{claims: make(map[string]string)}
}

func (s *Stub) Claim(_ context.Context, instruction ports.ClaimInstruction) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ref, ok := s.claims[instruction.LinkID]; ok {
		return ref, nil
	}
	ref := "stub-claim-" + uuid.NewString()
	s.claims[instruction.LinkID] = ref
	return ref, nil
}

func (s *Stub) ClaimStatus(_ context.Context, linkID string) (ports.ClaimLookup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ref, ok := s.claims[linkID]; ok {
		return ports.ClaimLookup{State: ports.ClaimStateSettled, ClaimTransferRef: ref}, nil
	}
	return ports.ClaimLookup{State: ports.ClaimStateFailed, Reason: "stub engine has no record of this claim"}, nil
}
