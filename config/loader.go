// Package config loads the controller configuration from a YAML file and
// USDCPAY_ environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"github.com/vitwit/usdcpay/types"
)

// EnvPrefix is prepended to upper-cased keys, e.g. USDCPAY_RPC_URL.
const EnvPrefix = "USDCPAY"

var validate = validator.New()

// Load reads path (optional) over the defaults, applies environment
// overrides and validates the result.
func Load(path string) (*types.Config, error) {
	v := viper.New()
	setDefaults(v, types.DefaultConfig())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, configErr(fmt.Sprintf("failed to read config %s", path), err)
		}
	}

	cfg := &types.Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, configErr("failed to decode config", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field constraints.
func Validate(cfg *types.Config) error {
	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s (%s)", fe.Field(), fe.Tag()))
			}
			return configErr("invalid config: "+strings.Join(fields, ", "), err)
		}
		return configErr("invalid config", err)
	}
	return nil
}

// every key is registered so AutomaticEnv can override it even when absent
// from the file
func setDefaults(v *viper.Viper, d *types.Config) {
	v.SetDefault("rpc_url", d.RPCURL)
	v.SetDefault("chain_id", d.ChainID)
	v.SetDefault("chain_name", d.ChainName)
	v.SetDefault("token_address", d.TokenAddress)
	v.SetDefault("token_symbol", d.TokenSymbol)
	v.SetDefault("token_decimals", d.TokenDecimals)
	v.SetDefault("explorer_url", d.ExplorerURL)
	v.SetDefault("facts_interval", d.FactsInterval)
	v.SetDefault("receipt_poll_interval", d.ReceiptPollInterval)
	v.SetDefault("receipt_timeout", d.ReceiptTimeout)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("log_file", d.LogFile)
	v.SetDefault("enable_metrics", d.EnableMetrics)
	v.SetDefault("metrics_addr", d.MetricsAddr)
	v.SetDefault("invoice_file", d.InvoiceFile)
	v.SetDefault("invoice_db", d.InvoiceDB)
	v.SetDefault("private_key", d.PrivateKey)
}

func configErr(msg string, err error) error {
	return types.NewPaymentError(types.ErrCodeConfig, msg, fmt.Errorf("%w: %v", types.ErrConfig, err))
}
