package types

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// PaymentRequest is the immutable description of a single transfer attempt.
type PaymentRequest struct {
	// Recipient is the vendor address receiving the token transfer.
	Recipient common.Address `json:"recipient"`

	// Amount is expressed in the token's minor units.
	Amount *big.Int `json:"amount" validate:"required"`

	// InvoiceReference is an opaque reference carried for display and logs.
	InvoiceReference string `json:"invoiceReference,omitempty" validate:"max=128"`
}

// NewPaymentRequest parses a hex recipient (checksum-independent) and builds a
// validated request.
func NewPaymentRequest(recipient string, amount *big.Int, reference string) (PaymentRequest, error) {
	recipient = strings.TrimSpace(recipient)
	if !common.IsHexAddress(recipient) {
		return PaymentRequest{}, NewPaymentError(ErrCodeInvalidRequest,
			fmt.Sprintf("recipient %q is not a 20-byte hex address", recipient), ErrInvalidRequest)
	}

	req := PaymentRequest{
		Recipient:        common.HexToAddress(recipient),
		InvoiceReference: reference,
	}
	if amount != nil {
		req.Amount = new(big.Int).Set(amount)
	}

	if err := req.Validate(); err != nil {
		return PaymentRequest{}, err
	}
	return req, nil
}

// Validate checks the request invariants.
func (r PaymentRequest) Validate() error {
	if err := validate.Struct(r); err != nil {
		return NewPaymentError(ErrCodeInvalidRequest, fmt.Sprintf("invalid payment request: %v", err), ErrInvalidRequest)
	}

	if r.Amount.Sign() <= 0 {
		return NewPaymentError(ErrCodeInvalidRequest, "payment amount must be greater than 0", ErrInvalidRequest)
	}

	if r.Recipient == (common.Address{}) {
		return NewPaymentError(ErrCodeInvalidRequest, "recipient must not be the zero address", ErrInvalidRequest)
	}

	return nil
}

// WalletFacts is the most recently observed wallet and balance state.
// Absent values are nil.
type WalletFacts struct {
	IsConnected   bool            `json:"isConnected"`
	Account       *common.Address `json:"account,omitempty"`
	ActiveChainID *big.Int        `json:"activeChainId,omitempty"`
	Balance       *big.Int        `json:"balance,omitempty"`
	ObservedAt    time.Time       `json:"observedAt"`
}

// Equal reports whether two fact sets carry the same values, ignoring the
// observation time.
func (f WalletFacts) Equal(o WalletFacts) bool {
	if f.IsConnected != o.IsConnected {
		return false
	}
	if (f.Account == nil) != (o.Account == nil) {
		return false
	}
	if f.Account != nil && *f.Account != *o.Account {
		return false
	}
	return bigEqual(f.ActiveChainID, o.ActiveChainID) && bigEqual(f.Balance, o.Balance)
}

func bigEqual(a, b *big.Int) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Cmp(b) == 0
}

// BlockReason explains why the payment gate is closed.
type BlockReason string

const (
	ReasonWalletDisconnected  BlockReason = "wallet_disconnected"
	ReasonWrongNetwork        BlockReason = "wrong_network"
	ReasonInsufficientBalance BlockReason = "insufficient_balance"
)

// Message returns the text shown next to a disabled pay action.
func (r BlockReason) Message() string {
	switch r {
	case ReasonWalletDisconnected:
		return "connect your wallet to pay this invoice"
	case ReasonWrongNetwork:
		return "switch your wallet to the payment network"
	case ReasonInsufficientBalance:
		return "token balance is insufficient or not yet known"
	default:
		return ""
	}
}

// GateDecision is either allowed or blocked with exactly one reason.
type GateDecision struct {
	Allowed bool        `json:"allowed"`
	Reason  BlockReason `json:"reason,omitempty"`
}

// Allow returns the open decision.
func Allow() GateDecision {
	return GateDecision{Allowed: true}
}

// Block returns a closed decision for reason.
func Block(reason BlockReason) GateDecision {
	return GateDecision{Reason: reason}
}

func (d GateDecision) String() string {
	if d.Allowed {
		return "allowed"
	}
	return fmt.Sprintf("blocked(%s)", d.Reason)
}

// Phase is the lifecycle position of a payment attempt.
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseSigning   Phase = "signing"
	PhasePending   Phase = "pending"
	PhaseConfirmed Phase = "confirmed"
	PhaseError     Phase = "error"
)

// LifecycleState is a value snapshot of the transaction lifecycle.
type LifecycleState struct {
	Phase     Phase     `json:"phase"`
	AttemptID string    `json:"attemptId,omitempty"`
	TxHash    string    `json:"txHash,omitempty"`
	Message   string    `json:"message,omitempty"`
	Code      ErrorCode `json:"code,omitempty"`
	Retryable bool      `json:"retryable,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// InFlight reports whether an attempt is waiting on the wallet or the chain.
func (s LifecycleState) InFlight() bool {
	return s.Phase == PhaseSigning || s.Phase == PhasePending
}

// Terminal reports whether the attempt can no longer change state by itself
// or through a reset.
func (s LifecycleState) Terminal() bool {
	return s.Phase == PhaseConfirmed || (s.Phase == PhaseError && !s.Retryable)
}

func (s LifecycleState) String() string {
	switch s.Phase {
	case PhasePending, PhaseConfirmed:
		return fmt.Sprintf("%s(%s)", s.Phase, s.TxHash)
	case PhaseError:
		return fmt.Sprintf("error(%s, retryable=%t)", s.Message, s.Retryable)
	default:
		return string(s.Phase)
	}
}

// TransactionOutcome is produced once per confirmed attempt.
type TransactionOutcome struct {
	AttemptID   string         `json:"attemptId"`
	TxHash      string         `json:"txHash"`
	ConfirmedAt time.Time      `json:"confirmedAt"`
	Request     PaymentRequest `json:"request"`
}

// ReceiptStatus is the terminal result the chain reports for a hash.
type ReceiptStatus string

const (
	ReceiptSuccess ReceiptStatus = "success"
	ReceiptFailure ReceiptStatus = "failure"
)

// Receipt is delivered by a chain data source once a broadcast transaction
// is mined, reverted, dropped or timed out.
type Receipt struct {
	TxHash      string        `json:"txHash"`
	Status      ReceiptStatus `json:"status"`
	BlockNumber uint64        `json:"blockNumber,omitempty"`
	Reason      string        `json:"reason,omitempty"`
}

// Succeeded reports whether the receipt confirms the transfer.
func (r Receipt) Succeeded() bool {
	return r.Status == ReceiptSuccess
}

// InvoiceRecord is a read-only invoice as held by the invoice store.
type InvoiceRecord struct {
	ID            string `json:"id" yaml:"id" validate:"required"`
	Reference     string `json:"reference" yaml:"reference"`
	VendorName    string `json:"vendorName" yaml:"vendorName"`
	VendorAddress string `json:"vendorAddress" yaml:"vendorAddress" validate:"required,eth_addr"`

	// Amount is the major-unit token amount, e.g. "100.50".
	Amount    string `json:"amount" yaml:"amount" validate:"required"`
	AmountUSD string `json:"amountUsd,omitempty" yaml:"amountUsd"`
	Currency  string `json:"currency" yaml:"currency"`

	DueDate     string `json:"dueDate" yaml:"dueDate"`
	Status      string `json:"status" yaml:"status"`
	Description string `json:"description" yaml:"description"`
}

// Validate checks the record shape using struct tags.
func (i InvoiceRecord) Validate() error {
	if err := validate.Struct(i); err != nil {
		return NewPaymentError(ErrCodeInvalidRequest, fmt.Sprintf("invalid invoice %q: %v", i.ID, err), ErrInvalidRequest)
	}
	return nil
}
