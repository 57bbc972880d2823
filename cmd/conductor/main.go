// Command conductor streams finalized sequencer blocks in strict ascending
// order via the bounded fetch-ahead reader described in §4.11, emitting
// each as a line of JSON on stdout. Driving a rollup's own execution
// client from that stream is explicitly out of scope (rollup EVM contract
// bindings are a Non-goal); this binary is the boundary a rollup-side
// consumer would sit behind.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/astria-net/sequencer-core/internal/conductor"
)

var rootCmd = &cobra.Command{
	Use:           "conductor",
	Short:         "Streams finalized sequencer blocks in gap-free ascending order",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runConductor,
}

var cfgFile string

func init() {
	defaults := conductor.DefaultConfig()
	cobra.OnInitialize(initViper)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.conductor.yaml)")
	rootCmd.PersistentFlags().String("sequencer-rpc-addr", "tcp://127.0.0.1:26657", "sequencer CometBFT RPC address")
	rootCmd.PersistentFlags().String("subscriber", "conductor", "CometBFT subscriber client id")
	rootCmd.PersistentFlags().Int64("next-height", 1, "first height to deliver")
	rootCmd.PersistentFlags().Int("max-in-flight", defaults.MaxInFlight, "max concurrent block fetches")
	rootCmd.PersistentFlags().Int64("max-ahead", defaults.MaxAhead, "max heights to fetch ahead of the next expected height")
	rootCmd.PersistentFlags().Duration("fetch-timeout", defaults.FetchTimeout, "per-block fetch timeout before a retry is scheduled")
	rootCmd.PersistentFlags().String("log-level", "info", "log level: debug, info, warn, or error")

	for _, name := range []string{"sequencer-rpc-addr", "subscriber", "next-height", "max-in-flight", "max-ahead", "fetch-timeout", "log-level"} {
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
			viper.SetConfigName(".conductor")
		}
	}
	viper.SetEnvPrefix("CONDUCTOR")
	viper.AutomaticEnv()
	_ = viper.ReadInConfig()
}

func runConductor(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: parseLevel(cfg.LogLevel)}))
	slog.SetDefault(logger)

	client, err := conductor.NewCometBFTClient(cfg.SequencerRPCAddr, cfg.Subscriber)
	if err != nil {
		return fmt.Errorf("constructing sequencer client: %w", err)
	}

	reader := conductor.NewReader(client, cfg.conductorConfig(), logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	blocks := make(chan conductor.Block)
	heightUpdates := make(chan int64)
	defer close(heightUpdates)

	done := make(chan error, 1)
	go func() { done <- reader.Run(ctx, cfg.NextHeight, heightUpdates, blocks) }()

	out := bufio.NewWriter(os.Stdout)
	defer out.Flush()
	enc := json.NewEncoder(out)

	for {
		select {
		case <-ctx.Done():
			<-done
			return nil
		case err := <-done:
			if err != nil {
				return fmt.Errorf("block stream ended: %w", err)
			}
			return nil
		case block := <-blocks:
			if err := enc.Encode(block); err != nil {
				return fmt.Errorf("encoding block at height %d: %w", block.Height, err)
			}
			_ = out.Flush()
		}
	}
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
