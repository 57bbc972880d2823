// Command sequencer runs the ABCI++ application described in §4.6 behind
// a CometBFT ABCI server, so it can be paired with an out-of-process
// celestia-core/cometbft consensus engine the way every ABCI application in
// this ecosystem is deployed.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	abciserver "github.com/cometbft/cometbft/abci/server"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/astria-net/sequencer-core/internal/app"
	"github.com/astria-net/sequencer-core/internal/state"
	"github.com/astria-net/sequencer-core/internal/upgrades"
)

var rootCmd = &cobra.Command{
	Use:   "sequencer",
	Short: "Runs the shared-sequencer ABCI application",
	Long: `sequencer serves the checked-transaction/action pipeline, mempool,
and storage façade as a CometBFT ABCI application.

Configuration (in order of priority):
  1. Command-line flags (--abci-addr, --abci-transport, ...)
  2. Environment variables (SEQUENCER_ABCI_ADDR, SEQUENCER_ABCI_TRANSPORT, ...)
  3. Config file (~/.sequencer.yaml)`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runSequencer,
}

var cfgFile string

func init() {
	cobra.OnInitialize(initViper)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.sequencer.yaml)")
	rootCmd.PersistentFlags().String("abci-addr", "tcp://127.0.0.1:26658", "address the ABCI server listens on")
	rootCmd.PersistentFlags().String("abci-transport", "socket", "ABCI transport: socket or grpc")
	rootCmd.PersistentFlags().String("cometbft-rpc-addr", "", "CometBFT RPC address, used as a consensus-params fallback by §4.7's upgrade checks")
	rootCmd.PersistentFlags().String("upgrades-manifest", "", "path to an upgrades manifest (omit to run with no scheduled upgrades)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level: debug, info, warn, or error")

	_ = viper.BindPFlag("abci_addr", rootCmd.PersistentFlags().Lookup("abci-addr"))
	_ = viper.BindPFlag("abci_transport", rootCmd.PersistentFlags().Lookup("abci-transport"))
	_ = viper.BindPFlag("cometbft_rpc_addr", rootCmd.PersistentFlags().Lookup("cometbft-rpc-addr"))
	_ = viper.BindPFlag("upgrades_manifest", rootCmd.PersistentFlags().Lookup("upgrades-manifest"))
	_ = viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
}

func initViper() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
			viper.SetConfigType("yaml")
			viper.SetConfigName(".sequencer")
		}
	}
	viper.SetEnvPrefix("SEQUENCER")
	viper.AutomaticEnv()
	_ = viper.ReadInConfig()
}

func runSequencer(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: parseLevel(cfg.LogLevel)}))
	slog.SetDefault(logger)

	store, err := state.NewStore(state.NewMemoryBackend(), state.NewMemoryBackend())
	if err != nil {
		return fmt.Errorf("constructing storage façade: %w", err)
	}

	var upgradeHandler *upgrades.Handler
	if cfg.UpgradesManifest != "" {
		manifest, err := upgrades.LoadManifest(cfg.UpgradesManifest)
		if err != nil {
			return fmt.Errorf("loading upgrades manifest: %w", err)
		}
		// No migrations are registered: this binary's manifest only governs
		// consensus-params changes recorded via internal/upgrades/storage.go,
		// per §4.7. A deployment that also needs state migrations registers
		// them here keyed by upgrade name.
		upgradeHandler = upgrades.NewHandler(manifest, nil, cfg.CometBFTRPCAddr, logger)
	}

	application := app.New(store, logger, upgradeHandler)

	srv, err := abciserver.NewServer(cfg.ABCIAddr, cfg.ABCITransport, application)
	if err != nil {
		return fmt.Errorf("constructing ABCI server: %w", err)
	}
	srv.SetLogger(cmtlog.NewTMLogger(cmtlog.NewSyncWriter(os.Stderr)))

	if err := srv.Start(); err != nil {
		return fmt.Errorf("starting ABCI server on %s: %w", cfg.ABCIAddr, err)
	}
	defer srv.Stop()

	logger.Info("ABCI server listening", "addr", cfg.ABCIAddr, "transport", cfg.ABCITransport)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
	logger.Info("shutting down")
	return nil
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
