package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// LoadConfig loads the configuration and sets default values for development/production
func LoadConfig() error {
	viper.SetConfigName("config")
	viper.SetConfigType("json")
	viper.AddConfigPath(".")

	viper.SetEnvPrefix("settlement")
	viper.AutomaticEnv()

	// Env names used by deployments, kept without the prefix
	viper.BindEnv("ton_wallet_seed", "TON_WALLET_SEED")
	viper.BindEnv("ton_wallet_address", "TON_WALLET_ADDRESS")
	viper.BindEnv("tonapi_key", "TONAPI_KEY")
	viper.BindEnv("toncenter_api_key", "TONCENTER_API_KEY")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	setDefaults()

	return nil
}

// setDefaults sets default configuration values based on the environment
func setDefaults() {
	env := viper.GetString("ENV")
	if env == "" {
		env = "development"
		viper.Set("ENV", env)
	}

	if env == "development" {
		viper.SetDefault("ledger_db_path", "./dev_settlement.db")
		viper.SetDefault("log_level", "debug")
	} else if env == "production" {
		viper.SetDefault("ledger_db_path", "/var/lib/ton-settlement/settlement.db")
		viper.SetDefault("log_level", "info")
	}

	// Common defaults for both environments
	viper.SetDefault("log_file", "./settlement.log")
	viper.SetDefault("api_port", 9004)
	viper.SetDefault("allowed_origin", "http://localhost:3000")
	viper.SetDefault("jwt_secret", "")

	viper.SetDefault("tonapi_base_url", "https://tonapi.io")
	viper.SetDefault("toncenter_base_url", "https://toncenter.com")
	viper.SetDefault("chain_request_timeout", "15s")
	viper.SetDefault("chain_max_attempts", 3)

	viper.SetDefault("ton_wallet_seed", "")
	viper.SetDefault("ton_wallet_address", "")
	viper.SetDefault("tonapi_key", "")
	viper.SetDefault("toncenter_api_key", "")

	viper.SetDefault("deposit_scan_interval", "60s")
	viper.SetDefault("deposit_scan_limit", 100)
	viper.SetDefault("backfill_max_depth", 1000)
	viper.SetDefault("status_sweep_interval", "30s")
	viper.SetDefault("pending_sweep_interval", "60s")
	viper.SetDefault("withdrawal_max_attempts", 5)
	viper.SetDefault("withdrawal_max_age", "10m")
	viper.SetDefault("transfer_ttl", "5m")

	// Commission applied when crediting task rewards
	viper.SetDefault("app_commission_percent", 10)
	viper.SetDefault("referral_commission_percent", 5)
}
