// Package invoices provides read-only invoice stores.
package invoices

import (
	"context"
	"fmt"
	"math/big"

	"github.com/vitwit/usdcpay/types"
	"github.com/vitwit/usdcpay/utils"
)

// Store is a read-only source of invoices.
type Store interface {
	// GetInvoiceByID fails with types.ErrInvoiceNotFound for unknown ids.
	GetInvoiceByID(ctx context.Context, id string) (*types.InvoiceRecord, error)
	ListInvoices(ctx context.Context) ([]types.InvoiceRecord, error)
}

func notFound(id string) error {
	return types.NewPaymentError(types.ErrCodeInvoiceNotFound,
		fmt.Sprintf("invoice %q not found", id), types.ErrInvoiceNotFound)
}

// AmountMinorUnits converts the invoice amount to token minor units. An
// amount with more fractional digits than decimals fails with
// types.ErrPrecision.
func AmountMinorUnits(rec types.InvoiceRecord, decimals int32) (*big.Int, error) {
	return utils.ToMinorUnits(rec.Amount, decimals)
}

// PaymentRequest builds the transfer request that pays rec in full.
func PaymentRequest(rec types.InvoiceRecord, decimals int32) (types.PaymentRequest, error) {
	amount, err := AmountMinorUnits(rec, decimals)
	if err != nil {
		return types.PaymentRequest{}, err
	}

	reference := rec.Reference
	if reference == "" {
		reference = rec.ID
	}
	return types.NewPaymentRequest(rec.VendorAddress, amount, reference)
}
