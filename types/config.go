package types

import (
	"math/big"
	"time"
)

// Config contains global configuration for the payment controller.
type Config struct {
	RPCURL        string `mapstructure:"rpc_url" validate:"required,url"`
	ChainID       uint64 `mapstructure:"chain_id" validate:"required"`
	ChainName     string `mapstructure:"chain_name"`
	TokenAddress  string `mapstructure:"token_address" validate:"required,eth_addr"`
	TokenSymbol   string `mapstructure:"token_symbol"`
	TokenDecimals int32  `mapstructure:"token_decimals" validate:"gte=0,lte=36"`
	ExplorerURL   string `mapstructure:"explorer_url" validate:"omitempty,url"`

	// FactsInterval is the wallet/balance refresh cadence.
	FactsInterval time.Duration `mapstructure:"facts_interval" validate:"gt=0"`

	// ReceiptPollInterval and ReceiptTimeout belong to the chain data source;
	// the lifecycle itself never times out.
	ReceiptPollInterval time.Duration `mapstructure:"receipt_poll_interval" validate:"gt=0"`
	ReceiptTimeout      time.Duration `mapstructure:"receipt_timeout" validate:"gt=0"`

	LogLevel      string `mapstructure:"log_level" validate:"omitempty,oneof=debug info warn error"`
	LogFile       string `mapstructure:"log_file"`
	EnableMetrics bool   `mapstructure:"enable_metrics"`
	MetricsAddr   string `mapstructure:"metrics_addr"`

	InvoiceFile string `mapstructure:"invoice_file"`
	InvoiceDB   string `mapstructure:"invoice_db"`

	// PrivateKey backs the key wallet. Prefer USDCPAY_PRIVATE_KEY over files.
	PrivateKey string `mapstructure:"private_key"`
}

// DefaultConfig targets USDC on Base Sepolia.
func DefaultConfig() *Config {
	return &Config{
		RPCURL:              "https://sepolia.base.org",
		ChainID:             BaseSepolia.ChainID.Uint64(),
		ChainName:           BaseSepolia.Name,
		TokenAddress:        BaseSepolia.TokenAddress,
		TokenSymbol:         BaseSepolia.TokenSymbol,
		TokenDecimals:       BaseSepolia.Decimals,
		ExplorerURL:         BaseSepolia.ExplorerURL,
		FactsInterval:       4 * time.Second,
		ReceiptPollInterval: 2 * time.Second,
		ReceiptTimeout:      3 * time.Minute,
		LogLevel:            "info",
		MetricsAddr:         ":9402",
	}
}

// Chain derives the chain metadata from the configuration.
func (c *Config) Chain() ChainConfig {
	return ChainConfig{
		Name:         c.ChainName,
		ChainID:      new(big.Int).SetUint64(c.ChainID),
		TokenAddress: c.TokenAddress,
		TokenSymbol:  c.TokenSymbol,
		Decimals:     c.TokenDecimals,
		ExplorerURL:  c.ExplorerURL,
	}
}
