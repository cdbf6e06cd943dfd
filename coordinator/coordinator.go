// Package coordinator wraps a caller action with the payment-required
// retry protocol: invoke once, intercept a 402 failure, drive the payment,
// then re-invoke the original action exactly once.
package coordinator

import (
	"context"

	"github.com/vitwit/x402-client/logger"
	"github.com/vitwit/x402-client/metrics"
	"github.com/vitwit/x402-client/orchestrator"
	"github.com/vitwit/x402-client/parser"
	"github.com/vitwit/x402-client/types"
)

// Action is the caller's original request closure.
type Action func(ctx context.Context) (any, error)

// Approver surfaces the pending payment to the host UI and reports
// whether the user confirmed. It renders and asks; the payment itself is
// driven here. While the prompt is open the host may observe a fresher
// 402 for the same action (a re-probed price, say) and swap it in via
// PendingAction.Replace; the payment pays whatever the pending action
// holds when approval lands.
type Approver func(ctx context.Context, pending *PendingAction) (bool, error)

// Coordinator guards caller actions with the 402 retry protocol.
type Coordinator struct {
	orch *orchestrator.Orchestrator
	log  logger.Logger
	rec  metrics.Recorder
}

func New(orch *orchestrator.Orchestrator, log logger.Logger, rec metrics.Recorder) *Coordinator {
	if log == nil {
		log = logger.NoopLogger{}
	}
	if rec == nil {
		rec = metrics.NoopRecorder{}
	}
	return &Coordinator{orch: orch, log: log, rec: rec}
}

// Guard invokes action once. A failure is parsed exactly once: if it is
// not a payment error it propagates untouched without the approver ever
// being called. On a 402, the requirement is surfaced to approve; if the
// user declines, the original failure propagates. After a confirmed
// payment the action is re-invoked exactly once and that result is
// returned as-is, whatever it is — the coordinator never loops.
func (c *Coordinator) Guard(ctx context.Context, action Action, approve Approver) (any, error) {
	out, err := action(ctx)
	if err == nil {
		return out, nil
	}

	// The single authoritative answer to "is this a payment error".
	req := parser.Parse(err)
	if req == nil {
		return out, err
	}

	pending := newPendingAction(req)
	c.log.Info("payment required", map[string]any{
		"pending":     pending.ID,
		"amount":      req.Amount,
		"currency":    req.Currency,
		"description": req.Description,
	})
	c.rec.IncCounter("payment_required", nil)

	confirmed, approveErr := approve(ctx, pending)
	if approveErr != nil || !confirmed {
		// Terminal for the attempt; the original 402 error is what the
		// caller sees, unchanged.
		c.log.Info("payment declined by user", map[string]any{"pending": pending.ID})
		c.rec.IncCounter(types.ErrUserCancelled, nil)
		pending.clear()
		return nil, err
	}

	_, payErr := c.orch.Pay(ctx, pending.Requirement(), func(s orchestrator.State) {
		if s == orchestrator.StateSubmitting {
			pending.markSubmitting()
		}
	})
	if payErr != nil {
		pending.clear()
		return nil, payErr
	}

	// Exactly one re-invocation; any failure of it, payment-shaped or
	// not, propagates without another interception.
	pending.clear()
	return action(ctx)
}

// Guard runs a typed action through c. It exists so callers keep their
// result types without asserting on any.
func Guard[T any](ctx context.Context, c *Coordinator, action func(ctx context.Context) (T, error), approve Approver) (T, error) {
	out, err := c.Guard(ctx, func(ctx context.Context) (any, error) {
		return action(ctx)
	}, approve)
	if v, ok := out.(T); ok {
		return v, err
	}
	var zero T
	return zero, err
}
