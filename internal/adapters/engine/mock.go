package engine

import (
	"context"
	"sync"

	"github.com/viralforge/mesh/services/financial-rails/M21-payment-link-service/internal/ports"
)

// Mock is a scriptable engine for tests. ClaimFunc and StatusFunc, when set,
// decide the outcome; otherwise every claim settles with a fixed ref. All
// received instructions are recorded for assertions.
type Mock struct {
	mu         sync.Mutex
	ClaimFunc  func(ctx context.Context, instruction ports.ClaimInstruction) (string, error)
	StatusFunc func(ctx context.Context, linkID string) (ports.ClaimLookup, error)
	calls      []ports.ClaimInstruction
}

func NewMock() *Mock {
	return &Mock{}
}

func (m *Mock) Claim(ctx context.Context, instruction ports.ClaimInstruction) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, instruction)
	fn := m.ClaimFunc
	m.mu.Unlock()
	if fn != nil {
		return fn(ctx, instruction)
	}
	return "mock-claim-" + instruction.LinkID, nil
}

func (m *Mock) ClaimStatus(ctx context.Context, linkID string) (ports.ClaimLookup, error) {
	m.mu.Lock()
	fn := m.StatusFunc
	m.mu.Unlock()
	if fn != nil {
		return fn(ctx, linkID)
	}
	return ports.ClaimLookup{State: ports.ClaimStateSettled, ClaimTransferRef: "mock-claim-" + linkID}, nil
}

// Calls returns a copy of every claim instruction received so far.
func (m *Mock) Calls() []ports.ClaimInstruction {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ports.ClaimInstruction, len(m.calls))
	copy(out, m.calls)
	return out
}
