package types

import "errors"

// PaymentError is the typed failure surfaced by the payment pipeline.
// Code is a short machine-readable reason; TxHash is set when submission
// occurred before the failure, so the caller can still locate the transfer.
type PaymentError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	TxHash  string `json:"transactionHash,omitempty"`
}

func (e *PaymentError) Error() string {
	if e.TxHash != "" {
		return e.Code + ": " + e.Message + " (tx " + e.TxHash + ")"
	}
	return e.Code + ": " + e.Message
}

// Error codes of the payment taxonomy. Sponsorship denial is recovered
// locally by falling back to unsponsored submission and never reaches the
// caller on its own; the rest are terminal for the attempt.
const (
	ErrInsufficientFunds   = "insufficient_funds"
	ErrSponsorshipDenied   = "sponsorship_denied"
	ErrSubmissionFailed    = "submission_failed"
	ErrConfirmationTimeout = "confirmation_timeout"
	ErrUserCancelled       = "user_cancelled"
)

// NewPaymentError builds a PaymentError with an optional transaction hash.
func NewPaymentError(code, message, txHash string) *PaymentError {
	return &PaymentError{Code: code, Message: message, TxHash: txHash}
}

// ErrorCode extracts the payment error code from err, or "" if err is not
// a PaymentError.
func ErrorCode(err error) string {
	var pe *PaymentError
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ""
}

// IsCode reports whether err is a PaymentError carrying the given code.
func IsCode(err error, code string) bool {
	return ErrorCode(err) == code
}
