// Package config loads the client configuration from the environment, with
// an optional .env file for development. Credential presence decides which
// sponsor/custodial implementations are constructed; see types.Config.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/vitwit/x402-client/types"
)

// Load reads configuration from environment variables, consulting an
// optional .env file under path. Every field has a usable default except
// the RPC URL, which is only required for the self-signed wallet kinds.
func Load(path string) (*types.Config, error) {
	v := viper.New()

	v.AddConfigPath(path)
	v.SetConfigName(".env")
	v.SetConfigType("env")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("X402_NETWORK", types.DefaultNetwork.String())
	v.SetDefault("X402_RPC_URL", "")
	v.SetDefault("X402_CONFIRM_TIMEOUT_SECONDS", 90)
	v.SetDefault("X402_POLL_INTERVAL_MS", 2000)
	v.SetDefault("X402_LOG_LEVEL", "info")
	v.SetDefault("X402_ENABLE_METRICS", false)
	v.SetDefault("X402_CUSTODIAL_ADDRESS", "")
	v.SetDefault("CDP_API_KEY_NAME", "")
	v.SetDefault("CDP_API_KEY_PRIVATE_KEY", "")
	v.SetDefault("CDP_WALLET_SECRET", "")
	v.SetDefault("CDP_PAYMASTER_SERVICE", "")
	v.SetDefault("CDP_API_BASE_URL", "")

	if err := v.ReadInConfig(); err != nil {
		// The .env file is optional; a missing one is not an error.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	network := types.Network(v.GetString("X402_NETWORK"))
	if network.ChainID() == 0 {
		return nil, fmt.Errorf("unsupported network %q", network)
	}

	cfg := &types.Config{
		Network:          network,
		RPCURL:           v.GetString("X402_RPC_URL"),
		PaymasterURL:     v.GetString("CDP_PAYMASTER_SERVICE"),
		CDPAPIKeyName:    v.GetString("CDP_API_KEY_NAME"),
		CDPAPIKeySecret:  v.GetString("CDP_API_KEY_PRIVATE_KEY"),
		CustodialAPIURL:  v.GetString("CDP_API_BASE_URL"),
		CDPWalletSecret:  v.GetString("CDP_WALLET_SECRET"),
		CustodialAddress: v.GetString("X402_CUSTODIAL_ADDRESS"),
		ConfirmTimeout:   time.Duration(v.GetInt("X402_CONFIRM_TIMEOUT_SECONDS")) * time.Second,
		PollInterval:     time.Duration(v.GetInt("X402_POLL_INTERVAL_MS")) * time.Millisecond,
		LogLevel:         v.GetString("X402_LOG_LEVEL"),
		EnableMetrics:    v.GetBool("X402_ENABLE_METRICS"),
	}
	return cfg, nil
}
