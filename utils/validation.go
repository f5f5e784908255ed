package utils

import (
	"fmt"
	"math/big"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/vitwit/usdcpay/types"
)

var (
	hexPattern = regexp.MustCompile(`^[0-9a-fA-F]+$`)
)

// ValidateAmount checks if an amount string is a valid non-negative decimal
func ValidateAmount(amount string) (*decimal.Decimal, error) {
	amount = strings.TrimSpace(amount)
	if amount == "" {
		return nil, types.NewPaymentError(types.ErrCodeInvalidRequest, "amount cannot be empty", types.ErrInvalidRequest)
	}

	dec, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, types.NewPaymentError(types.ErrCodeInvalidRequest,
			fmt.Sprintf("invalid amount format %q", amount), fmt.Errorf("%w: %v", types.ErrInvalidRequest, err))
	}

	if dec.IsNegative() {
		return nil, types.NewPaymentError(types.ErrCodeInvalidRequest, "amount cannot be negative", types.ErrInvalidRequest)
	}

	return &dec, nil
}

// ValidateBigInt checks if a string is a valid base-10 big integer
func ValidateBigInt(value string) (*big.Int, error) {
	if value == "" {
		return nil, fmt.Errorf("value cannot be empty")
	}

	bigInt, ok := new(big.Int).SetString(value, 10)
	if !ok {
		return nil, fmt.Errorf("invalid big integer format")
	}

	return bigInt, nil
}

// ValidateTransactionHash validates an EVM transaction hash (0x + 64 hex).
func ValidateTransactionHash(hash string) error {
	if hash == "" {
		return fmt.Errorf("transaction hash cannot be empty")
	}
	if !strings.HasPrefix(hash, "0x") {
		return fmt.Errorf("transaction hash must start with 0x")
	}
	if len(hash) != 66 {
		return fmt.Errorf("transaction hash must be 66 characters long")
	}
	if !isHexString(hash[2:]) {
		return fmt.Errorf("transaction hash must be valid hex")
	}
	return nil
}

// ValidateAddress validates an EVM address without enforcing the checksum.
func ValidateAddress(address string) error {
	if address == "" {
		return fmt.Errorf("address cannot be empty")
	}
	if !strings.HasPrefix(address, "0x") {
		return fmt.Errorf("address must start with 0x")
	}
	if len(address) != 42 {
		return fmt.Errorf("address must be 42 characters long")
	}
	if !isHexString(address[2:]) {
		return fmt.Errorf("address must be valid hex")
	}
	return nil
}

func isHexString(s string) bool {
	return hexPattern.MatchString(s)
}
