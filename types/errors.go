package types

import "errors"

// ErrorCode classifies payment errors for programmatic handling.
type ErrorCode string

// Common error codes
const (
	ErrCodeGateBlocked         ErrorCode = "GATE_BLOCKED"
	ErrCodeSigningRejected     ErrorCode = "SIGNING_REJECTED"
	ErrCodeProviderUnavailable ErrorCode = "PROVIDER_UNAVAILABLE"
	ErrCodeReceiptFailure      ErrorCode = "RECEIPT_FAILURE"
	ErrCodePrecision           ErrorCode = "PRECISION_ERROR"
	ErrCodeInvalidRequest      ErrorCode = "INVALID_REQUEST"
	ErrCodeInvalidTransition   ErrorCode = "INVALID_TRANSITION"
	ErrCodeAttemptInFlight     ErrorCode = "ATTEMPT_IN_FLIGHT"
	ErrCodeInvoiceNotFound     ErrorCode = "INVOICE_NOT_FOUND"
	ErrCodeConfig              ErrorCode = "CONFIG_ERROR"
)

var (
	ErrSigningRejected     = errors.New("usdcpay: transaction rejected in wallet")
	ErrProviderUnavailable = errors.New("usdcpay: wallet or rpc provider unavailable")
	ErrAccountAbsent       = errors.New("usdcpay: no wallet account connected")
	ErrReceiptFailure      = errors.New("usdcpay: transaction failed on-chain")
	ErrPrecision           = errors.New("usdcpay: amount is not exactly representable in token minor units")
	ErrInvalidRequest      = errors.New("usdcpay: invalid payment request")
	ErrInvalidTransition   = errors.New("usdcpay: transition not allowed from current state")
	ErrAttemptInFlight     = errors.New("usdcpay: a payment attempt is already in progress")
	ErrInvoiceNotFound     = errors.New("usdcpay: invoice not found")
	ErrConfig              = errors.New("usdcpay: invalid configuration")
)

// PaymentError carries a code, a human readable message and whether a
// caller-initiated reset followed by a new submit may succeed.
type PaymentError struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Retryable bool      `json:"retryable"`
	Err       error     `json:"-"`
}

func (e *PaymentError) Error() string {
	if e.Err != nil && e.Message == "" {
		return e.Err.Error()
	}
	return e.Message
}

func (e *PaymentError) Unwrap() error {
	return e.Err
}

// NewPaymentError builds a PaymentError whose retryability follows its code.
func NewPaymentError(code ErrorCode, message string, err error) *PaymentError {
	return &PaymentError{
		Code:      code,
		Message:   message,
		Retryable: code.Retryable(),
		Err:       err,
	}
}

// Retryable reports whether errors with this code allow reset-and-resubmit.
func (c ErrorCode) Retryable() bool {
	switch c {
	case ErrCodeSigningRejected, ErrCodeProviderUnavailable, ErrCodeReceiptFailure:
		return true
	default:
		return false
	}
}

// AsPaymentError extracts a PaymentError from err, if any.
func AsPaymentError(err error) (*PaymentError, bool) {
	var pe *PaymentError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}
