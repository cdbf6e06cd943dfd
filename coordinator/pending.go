package coordinator

import (
	"sync"

	"github.com/google/uuid"

	"github.com/vitwit/x402-client/types"
)

// PendingAction pairs a suspended caller action with its outstanding
// payment requirement. At most one exists per caller-action instance.
type PendingAction struct {
	ID string

	mu         sync.Mutex
	req        *types.PaymentRequirement
	submitting bool
}

func newPendingAction(req *types.PaymentRequirement) *PendingAction {
	return &PendingAction{ID: uuid.NewString(), req: req}
}

// Requirement returns the current requirement, or nil once cleared.
func (p *PendingAction) Requirement() *types.PaymentRequirement {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.req
}

// Replace swaps in a newer requirement from a repeated 402, typically one
// the host parsed while the approval prompt was open. It succeeds only
// while submission has not started: once funds may be moving there is no
// queueing of a second attempt for the same action.
func (p *PendingAction) Replace(req *types.PaymentRequirement) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if req == nil || p.submitting || p.req == nil {
		return false
	}
	p.req = req
	return true
}

func (p *PendingAction) markSubmitting() {
	p.mu.Lock()
	p.submitting = true
	p.mu.Unlock()
}

func (p *PendingAction) clear() {
	p.mu.Lock()
	p.req = nil
	p.mu.Unlock()
}
