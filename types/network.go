package types

import (
	"fmt"
	"math/big"
	"strings"
)

// ChainConfig is the static metadata for the payment chain and token.
type ChainConfig struct {
	// Name is a display name, e.g. "Base Sepolia".
	Name string

	ChainID *big.Int

	// TokenAddress is the ERC-20 contract of the stablecoin.
	TokenAddress string
	TokenSymbol  string

	// Decimals is the fixed minor-unit precision of the token.
	Decimals int32

	// ExplorerURL is the block explorer base, without trailing slash.
	ExplorerURL string
}

// BaseSepolia is the default payment chain: USDC on Base Sepolia testnet.
var BaseSepolia = ChainConfig{
	Name:         "Base Sepolia",
	ChainID:      big.NewInt(84532),
	TokenAddress: "0x036CbD53842c5426634e7929541eC2318f3dCF7e",
	TokenSymbol:  "USDC",
	Decimals:     6,
	ExplorerURL:  "https://sepolia.basescan.org",
}

// TxURL links a transaction hash on the explorer.
func (c ChainConfig) TxURL(hash string) string {
	return fmt.Sprintf("%s/tx/%s", strings.TrimRight(c.ExplorerURL, "/"), hash)
}

// AddressURL links an account on the explorer.
func (c ChainConfig) AddressURL(addr string) string {
	return fmt.Sprintf("%s/address/%s", strings.TrimRight(c.ExplorerURL, "/"), addr)
}

// TokenURL links the token contract on the explorer.
func (c ChainConfig) TokenURL() string {
	return fmt.Sprintf("%s/token/%s", strings.TrimRight(c.ExplorerURL, "/"), c.TokenAddress)
}

// IsChain reports whether id is this chain's id.
func (c ChainConfig) IsChain(id *big.Int) bool {
	return id != nil && c.ChainID != nil && c.ChainID.Cmp(id) == 0
}
