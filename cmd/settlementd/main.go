package main

import (
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/RustamRomanov/BlackMirrowMarket/internal/chain"
	"github.com/RustamRomanov/BlackMirrowMarket/internal/config"
	ledgerdb "github.com/RustamRomanov/BlackMirrowMarket/internal/database"
	"github.com/RustamRomanov/BlackMirrowMarket/internal/logger"
	"github.com/RustamRomanov/BlackMirrowMarket/internal/settlement"
)

var rootCmd = &cobra.Command{
	Use:   "settlementd",
	Short: "TON settlement daemon",
	Long:  `Custodial TON settlement engine: withdrawals, deposit scanning, and balance reconciliation for a marketplace ledger.`,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(balanceCmd)
	rootCmd.AddCommand(withdrawCmd)
	rootCmd.AddCommand(scanDepositsCmd)
	rootCmd.AddCommand(backfillCmd)
	rootCmd.AddCommand(reconcileCmd)
}

func initConfig() {
	if err := godotenv.Load(); err == nil {
		log.Println("Loaded environment from .env")
	}

	if err := config.LoadConfig(); err != nil {
		log.Fatalf("Error loading configuration: %v", err)
	}

	if err := logger.Init(viper.GetString("log_file"), viper.GetString("log_level")); err != nil {
		log.Fatalf("Error initializing logger: %v", err)
	}
}

// buildEngine wires the full stack: ledger store, chain backends in
// fallback order, and the settlement engine on top.
func buildEngine() (*settlement.Engine, chain.Client, error) {
	store, err := ledgerdb.Open(viper.GetString("ledger_db_path"))
	if err != nil {
		return nil, nil, fmt.Errorf("opening ledger database: %w", err)
	}

	timeout := viper.GetDuration("chain_request_timeout")
	backends := []chain.Backend{
		chain.NewTonAPI(viper.GetString("tonapi_base_url"), viper.GetString("tonapi_key"), timeout),
		chain.NewTonCenter(viper.GetString("toncenter_base_url"), viper.GetString("toncenter_api_key"), timeout),
	}
	client := chain.NewMulti(backends, viper.GetInt("chain_max_attempts"))

	engine := settlement.New(store, client, settlement.Config{
		RecoveryPhrase:            viper.GetString("ton_wallet_seed"),
		WalletAddress:             viper.GetString("ton_wallet_address"),
		WithdrawalMaxAttempts:     viper.GetInt("withdrawal_max_attempts"),
		WithdrawalMaxAge:          viper.GetDuration("withdrawal_max_age"),
		DepositScanLimit:          viper.GetInt("deposit_scan_limit"),
		TransferTTL:               viper.GetDuration("transfer_ttl"),
		AppCommissionPercent:      viper.GetInt64("app_commission_percent"),
		ReferralCommissionPercent: viper.GetInt64("referral_commission_percent"),
	})
	return engine, client, nil
}

func main() {
	initConfig()
	defer logger.Cleanup()

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
