// Package orchestrator drives a single payment attempt through its state
// machine: Idle, RequirementReceived, BalanceChecking, then either
// InsufficientFunds or Submitting, Confirming, and finally Confirmed or
// Failed. No state is re-entered once left; a failed attempt is terminal
// and a new attempt requires a fresh requirement from the caller.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vitwit/x402-client/logger"
	"github.com/vitwit/x402-client/metrics"
	"github.com/vitwit/x402-client/types"
	"github.com/vitwit/x402-client/wallet"
)

// State names the positions of the payment state machine.
type State string

const (
	StateIdle                State = "idle"
	StateRequirementReceived State = "requirement_received"
	StateBalanceChecking     State = "balance_checking"
	StateInsufficientFunds   State = "insufficient_funds"
	StateSubmitting          State = "submitting"
	StateConfirming          State = "confirming"
	StateConfirmed           State = "confirmed"
	StateFailed              State = "failed"
)

// Observer is notified of every state transition. The host UI may stop
// caring mid-flight; detaching the observer never detaches the machine
// from its outcome.
type Observer func(State)

// Outcome is the terminal report of a payment attempt. TxHash is set when
// submission occurred, even on failure, so the caller can locate the
// transfer; it is never fabricated.
type Outcome struct {
	State        State         `json:"state"`
	TxHash       string        `json:"transactionHash,omitempty"`
	Network      types.Network `json:"network,omitempty"`
	Reason       string        `json:"reason,omitempty"`
	GasSponsored bool          `json:"gasSponsored,omitempty"`
}

const defaultConfirmTimeout = 90 * time.Second

// Orchestrator executes payment attempts against the session's active
// wallet, one transfer at a time per wallet.
type Orchestrator struct {
	session        *wallet.Session
	confirmTimeout time.Duration
	log            logger.Logger
	rec            metrics.Recorder
}

func New(session *wallet.Session, confirmTimeout time.Duration, log logger.Logger, rec metrics.Recorder) *Orchestrator {
	if confirmTimeout <= 0 {
		confirmTimeout = defaultConfirmTimeout
	}
	if log == nil {
		log = logger.NoopLogger{}
	}
	if rec == nil {
		rec = metrics.NoopRecorder{}
	}
	return &Orchestrator{
		session:        session,
		confirmTimeout: confirmTimeout,
		log:            log,
		rec:            rec,
	}
}

// Pay runs one payment attempt for req. Cancellation via ctx is honored
// only before submission; once a transfer is submitted the machine runs to
// a terminal state regardless, because a submitted transfer is never
// silently abandoned. The returned error is non-nil exactly when the
// outcome is not Confirmed.
func (o *Orchestrator) Pay(ctx context.Context, req *types.PaymentRequirement, observe Observer) (*Outcome, error) {
	step := func(s State) {
		if observe != nil {
			observe(s)
		}
	}

	backend := o.session.Active()
	if backend == nil {
		step(StateFailed)
		return &Outcome{State: StateFailed, Reason: "no wallet connected"},
			fmt.Errorf("no wallet connected")
	}
	walletKind := backend.Kind().String()
	labels := map[string]string{"wallet": walletKind}

	if err := req.Validate(); err != nil {
		step(StateFailed)
		return &Outcome{State: StateFailed, Reason: err.Error()}, err
	}
	token, err := types.TokenForCurrency(req.Currency, req.Network)
	if err != nil {
		step(StateFailed)
		return &Outcome{State: StateFailed, Reason: err.Error()}, err
	}

	step(StateIdle)
	step(StateRequirementReceived)
	o.log.Info("payment requirement received", map[string]any{
		"amount":    req.Amount,
		"currency":  req.Currency,
		"recipient": req.Recipient,
		"network":   req.Network.String(),
		"wallet":    walletKind,
	})

	if err := ctx.Err(); err != nil {
		step(StateFailed)
		return &Outcome{State: StateFailed, Reason: "cancelled before balance check"}, err
	}

	step(StateBalanceChecking)
	start := time.Now()
	balance, err := o.session.Balance(ctx, token)
	o.rec.ObserveLatency("balance_check", time.Since(start), labels)
	if err != nil {
		o.rec.IncCounter("balance_check_failed", labels)
		step(StateFailed)
		return &Outcome{State: StateFailed, Reason: fmt.Sprintf("balance query failed: %v", err)},
			fmt.Errorf("balance query failed: %w", err)
	}

	amount := req.AmountDecimal()
	if balance.LessThan(amount) {
		step(StateInsufficientFunds)
		o.rec.IncCounter("insufficient_funds", labels)
		reason := fmt.Sprintf("balance %s %s is below required %s", balance, token.Symbol, req.Amount)
		o.log.Warn("insufficient funds", map[string]any{
			"balance":  balance.String(),
			"required": req.Amount,
			"wallet":   walletKind,
		})
		return &Outcome{State: StateInsufficientFunds, Network: req.Network, Reason: reason},
			types.NewPaymentError(types.ErrInsufficientFunds, reason, "")
	}

	if err := ctx.Err(); err != nil {
		step(StateFailed)
		return &Outcome{State: StateFailed, Reason: "cancelled before submission"}, err
	}

	// From here on the attempt is committed: the submission lock spans
	// submit and confirm, and UI cancellation no longer stops the machine.
	release := o.session.AcquireSubmission()
	defer release()
	submitCtx := context.WithoutCancel(ctx)

	step(StateSubmitting)
	start = time.Now()
	result, err := backend.Transfer(submitCtx, req.Recipient, amount, token)
	o.rec.ObserveLatency("submission", time.Since(start), labels)
	if err != nil {
		o.rec.IncCounter("submission_failed", labels)
		return o.failed(step, err, req.Network, "")
	}

	step(StateConfirming)
	start = time.Now()
	final, err := backend.AwaitConfirmation(submitCtx, result, o.confirmTimeout)
	o.rec.ObserveLatency("confirmation", time.Since(start), labels)
	if err != nil {
		o.rec.IncCounter("confirmation_failed", labels)
		return o.failed(step, err, req.Network, result.TxHash)
	}
	if final.Status != types.TransferConfirmed {
		o.rec.IncCounter("confirmation_failed", labels)
		err := types.NewPaymentError(types.ErrSubmissionFailed, "transfer ended in status "+string(final.Status), final.TxHash)
		return o.failed(step, err, req.Network, final.TxHash)
	}

	step(StateConfirmed)
	o.rec.IncCounter("payment_confirmed", labels)
	o.log.Info("payment confirmed", map[string]any{
		"tx":      final.TxHash,
		"network": req.Network.String(),
		"wallet":  walletKind,
	})
	return &Outcome{
		State:        StateConfirmed,
		TxHash:       final.TxHash,
		Network:      req.Network,
		GasSponsored: final.GasSponsored,
	}, nil
}

func (o *Orchestrator) failed(step func(State), err error, network types.Network, txHash string) (*Outcome, error) {
	step(StateFailed)
	reason := err.Error()
	var pe *types.PaymentError
	if errors.As(err, &pe) {
		reason = pe.Message
		if txHash == "" {
			txHash = pe.TxHash
		}
	}
	o.log.Error("payment failed", map[string]any{
		"reason": reason,
		"tx":     txHash,
	})
	return &Outcome{State: StateFailed, TxHash: txHash, Network: network, Reason: reason}, err
}

// ConfirmTimeout reports the configured confirmation deadline.
func (o *Orchestrator) ConfirmTimeout() time.Duration { return o.confirmTimeout }
