// Command bridgewithdrawer submits bridge-unlock and ICS-20 withdrawal
// actions observed on a rollup as signed transactions against a sequencer
// node, per §4.9.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/astria-net/sequencer-core/internal/bridgewithdrawer"
)

var rootCmd = &cobra.Command{
	Use:           "bridgewithdrawer",
	Short:         "Submits rollup withdrawal batches to a sequencer node",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runBridgeWithdrawer,
}

var cfgFile string

func init() {
	cobra.OnInitialize(initViper)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.bridgewithdrawer.yaml)")
	rootCmd.PersistentFlags().String("sequencer-rpc-addr", "tcp://127.0.0.1:26657", "sequencer CometBFT RPC address")
	rootCmd.PersistentFlags().String("chain-id", "", "expected sequencer chain id")
	rootCmd.PersistentFlags().String("fee-asset", "", "fee asset denomination trace to pay with")
	rootCmd.PersistentFlags().String("minimum-balance", "0", "minimum signer balance of fee-asset required at startup")
	rootCmd.PersistentFlags().Uint64("max-nonce-attempts", 0, "max nonce-fetch retries (0 = default cap)")
	rootCmd.PersistentFlags().String("batches-file", "-", "newline-delimited JSON batches file, or - for stdin")
	rootCmd.PersistentFlags().String("signing-mode", "single", "signing mode: single, frost or vault")
	rootCmd.PersistentFlags().String("single-key-hex", "", "hex-encoded ed25519 private key (single mode)")
	rootCmd.PersistentFlags().Int("frost-min-signers", 0, "frost signing threshold (frost mode)")
	rootCmd.PersistentFlags().String("frost-participants", "", "comma-separated frost participant gRPC addresses (frost mode)")
	rootCmd.PersistentFlags().String("frost-pubkey-file", "", "path to the frost public key package (frost mode)")
	rootCmd.PersistentFlags().String("vault-addr", "", "OpenBao/Vault address (vault mode)")
	rootCmd.PersistentFlags().String("vault-token", "", "OpenBao/Vault token (vault mode)")
	rootCmd.PersistentFlags().String("vault-namespace", "", "OpenBao/Vault namespace (vault mode)")
	rootCmd.PersistentFlags().String("vault-key-path", "", "transit engine mount path (vault mode, default transit)")
	rootCmd.PersistentFlags().String("vault-key-name", "", "transit key name to sign with (vault mode)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level: debug, info, warn, or error")

	for _, name := range []string{
		"sequencer-rpc-addr", "chain-id", "fee-asset", "minimum-balance", "max-nonce-attempts",
		"batches-file", "signing-mode", "single-key-hex", "frost-min-signers", "frost-participants",
		"frost-pubkey-file", "vault-addr", "vault-token", "vault-namespace", "vault-key-path",
		"vault-key-name", "log-level",
	} {
		_ = viper.BindPFlag(toSnake(name), rootCmd.PersistentFlags().Lookup(name))
	}
}

func toSnake(flagName string) string {
	out := make([]byte, 0, len(flagName))
	for _, r := range flagName {
		if r == '-' {
			out = append(out, '_')
			continue
		}
		out = append(out, byte(r))
	}
	return string(out)
}

func initViper() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
			viper.SetConfigType("yaml")
			viper.SetConfigName(".bridgewithdrawer")
		}
	}
	viper.SetEnvPrefix("BRIDGEWITHDRAWER")
	viper.AutomaticEnv()
	_ = viper.ReadInConfig()
}

func runBridgeWithdrawer(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: parseLevel(cfg.LogLevel)}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	signer, err := buildSigner(ctx, cfg)
	if err != nil {
		return fmt.Errorf("building signer: %w", err)
	}

	client, err := bridgewithdrawer.NewCometBFTClient(cfg.SequencerRPCAddr)
	if err != nil {
		return fmt.Errorf("constructing consensus client: %w", err)
	}

	feeAsset, err := cfg.feeAsset()
	if err != nil {
		return fmt.Errorf("parsing fee-asset: %w", err)
	}
	minimumBalance, err := cfg.minimumBalance()
	if err != nil {
		return fmt.Errorf("parsing minimum-balance: %w", err)
	}

	submitter := bridgewithdrawer.NewSubmitter(bridgewithdrawer.Config{
		ChainID:          cfg.ChainID,
		FeeAsset:         feeAsset,
		MinimumBalance:   minimumBalance,
		MaxNonceAttempts: cfg.MaxNonceAttempts,
	}, client, signer, logger)

	if err := submitter.Startup(ctx); err != nil {
		return fmt.Errorf("submitter startup: %w", err)
	}

	batches := make(chan bridgewithdrawer.Batch)
	streamDone := make(chan error, 1)
	go func() { streamDone <- streamBatches(ctx, cfg.BatchesFile, batches) }()

	runDone := make(chan error, 1)
	go func() { runDone <- submitter.Run(ctx, batches) }()

	logger.Info("bridgewithdrawer started", "sequencer_rpc_addr", cfg.SequencerRPCAddr, "signing_mode", cfg.SigningMode)

	select {
	case err := <-streamDone:
		if err != nil {
			stop()
			<-runDone
			return fmt.Errorf("batches stream ended: %w", err)
		}
		if err := <-runDone; err != nil {
			return fmt.Errorf("submitter ended: %w", err)
		}
	case err := <-runDone:
		stop()
		<-streamDone
		if err != nil {
			return fmt.Errorf("submitter ended: %w", err)
		}
	}
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
