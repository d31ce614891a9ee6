package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/RustamRomanov/BlackMirrowMarket/internal/api"
	"github.com/RustamRomanov/BlackMirrowMarket/internal/logger"
	"github.com/RustamRomanov/BlackMirrowMarket/internal/settlement"
	"github.com/RustamRomanov/BlackMirrowMarket/lib/rescanner"
	"github.com/RustamRomanov/BlackMirrowMarket/lib/utils"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the settlement daemon: HTTP API plus background sweeps",
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, _, err := buildEngine()
		if err != nil {
			return err
		}
		if err := api.InitJWTKey(); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		go engine.Run(ctx, settlement.Loops{
			StatusSweepInterval:  viper.GetDuration("status_sweep_interval"),
			DepositScanInterval:  viper.GetDuration("deposit_scan_interval"),
			PendingSweepInterval: viper.GetDuration("pending_sweep_interval"),
		})

		addr := fmt.Sprintf(":%d", viper.GetInt("api_port"))
		srv := &http.Server{Addr: addr, Handler: api.NewAPI(engine).Router()}
		go func() {
			<-ctx.Done()
			srv.Shutdown(context.Background())
		}()

		logger.Infof("API listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	},
}

var balanceCmd = &cobra.Command{
	Use:   "balance",
	Short: "Print the custodial wallet's on-chain balance",
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, _, err := buildEngine()
		if err != nil {
			return err
		}
		balance, err := engine.WalletBalance(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("%s: %s TON\n", engine.WalletAddress(), utils.FormatNano(balance))
		return nil
	},
}

var withdrawCmd = &cobra.Command{
	Use:   "withdraw <to-address> <amount-ton>",
	Short: "Send an operator withdrawal from the custodial wallet",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, _, err := buildEngine()
		if err != nil {
			return err
		}
		amount, err := utils.ParseTON(args[1])
		if err != nil {
			return err
		}
		notes, _ := cmd.Flags().GetString("notes")

		rec, err := engine.RequestOperatorWithdrawal(cmd.Context(), "", args[0], amount, notes)
		if err != nil {
			return err
		}
		out, _ := json.MarshalIndent(rec, "", "  ")
		fmt.Println(string(out))
		return nil
	},
}

var scanDepositsCmd = &cobra.Command{
	Use:   "scan-deposits",
	Short: "Run one deposit scan pass and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, _, err := buildEngine()
		if err != nil {
			return err
		}
		if err := engine.ScanDeposits(cmd.Context()); err != nil {
			return err
		}
		return engine.ResolveUnmatched(cmd.Context())
	},
}

var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Walk the wallet's transfer history for deposits missed while down",
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, client, err := buildEngine()
		if err != nil {
			return err
		}
		if err := engine.ConfigError(); err != nil {
			return err
		}

		if err := rescanner.PerformRescan(cmd.Context(), rescanner.RescanConfig{
			Client:        client,
			WalletAddress: engine.WalletAddress(),
			Recorder:      engine,
			MaxDepth:      viper.GetInt("backfill_max_depth"),
			BatchSize:     viper.GetInt("deposit_scan_limit"),
		}); err != nil {
			return err
		}
		return engine.ResolveUnmatched(cmd.Context())
	},
}

var reconcileCmd = &cobra.Command{
	Use:   "reconcile <telegram-id>",
	Short: "Recompute and correct one account's active balance",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, _, err := buildEngine()
		if err != nil {
			return err
		}
		telegramID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid telegram id %q: %w", args[0], err)
		}
		res, err := engine.Reconcile(cmd.Context(), telegramID)
		if err != nil {
			return err
		}
		fmt.Printf("account %d: %d -> %d (delta %d)\n", res.AccountID, res.OldNano, res.NewNano, res.DeltaNano)
		return nil
	},
}

func init() {
	withdrawCmd.Flags().String("notes", "", "operator note recorded with the withdrawal")
}
