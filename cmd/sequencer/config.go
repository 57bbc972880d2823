package main

import (
	"fmt"

	"github.com/spf13/viper"
)

// Config configures the sequencer binary: where it serves the ABCI
// application, and the optional upgrades manifest governing §4.7's
// scheduled-upgrade checks.
type Config struct {
	ABCIAddr         string
	ABCITransport    string
	CometBFTRPCAddr  string
	UpgradesManifest string
	LogLevel         string
}

func (c Config) Validate() error {
	if c.ABCIAddr == "" {
		return fmt.Errorf("abci-addr must not be empty")
	}
	switch c.ABCITransport {
	case "socket", "grpc":
	default:
		return fmt.Errorf("abci-transport must be %q or %q, got %q", "socket", "grpc", c.ABCITransport)
	}
	return nil
}

// loadConfig resolves flags-then-env-then-config-file via viper, mirroring
// popctl/cmd/root.go's initConfig/getAPIKey layering.
func loadConfig() (Config, error) {
	cfg := Config{
		ABCIAddr:         viper.GetString("abci_addr"),
		ABCITransport:    viper.GetString("abci_transport"),
		CometBFTRPCAddr:  viper.GetString("cometbft_rpc_addr"),
		UpgradesManifest: viper.GetString("upgrades_manifest"),
		LogLevel:         viper.GetString("log_level"),
	}
	return cfg, cfg.Validate()
}
