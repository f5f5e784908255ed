package utils

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/vitwit/usdcpay/types"
)

// ToMinorUnits converts a major-unit decimal string ("100.50") into the
// token's minor units. Conversion is exact or fails with types.ErrPrecision;
// it never rounds.
func ToMinorUnits(amount string, decimals int32) (*big.Int, error) {
	dec, err := ValidateAmount(amount)
	if err != nil {
		return nil, err
	}
	return DecimalToMinorUnits(*dec, decimals)
}

// DecimalToMinorUnits is ToMinorUnits for an already parsed decimal.
func DecimalToMinorUnits(d decimal.Decimal, decimals int32) (*big.Int, error) {
	if decimals < 0 {
		return nil, types.NewPaymentError(types.ErrCodeConfig,
			fmt.Sprintf("token decimals must not be negative, got %d", decimals), types.ErrConfig)
	}

	shifted := d.Shift(decimals)
	if !shifted.IsInteger() {
		return nil, types.NewPaymentError(types.ErrCodePrecision,
			fmt.Sprintf("amount %s has more than %d decimal places", d.String(), decimals), types.ErrPrecision)
	}
	return shifted.BigInt(), nil
}

// FormatMinorUnits renders minor units as a major-unit string with exactly
// decimals fractional digits, e.g. 100500000 with 6 decimals -> "100.500000".
func FormatMinorUnits(v *big.Int, decimals int32) string {
	if v == nil {
		return ""
	}
	return decimal.NewFromBigInt(v, -decimals).StringFixed(decimals)
}

// FormatDisplay renders minor units with two fractional digits, truncating,
// as shown next to invoices.
func FormatDisplay(v *big.Int, decimals int32) string {
	if v == nil {
		return ""
	}
	return decimal.NewFromBigInt(v, -decimals).Truncate(2).StringFixed(2)
}

// ShortAddress abbreviates a hex address as 0x1234...abcd.
func ShortAddress(addr string) string {
	addr = strings.TrimSpace(addr)
	if len(addr) <= 10 {
		return addr
	}
	return addr[:6] + "..." + addr[len(addr)-4:]
}
