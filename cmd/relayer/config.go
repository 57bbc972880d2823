package main

import (
	"fmt"

	"github.com/spf13/viper"
)

// Config configures the relayer binary: which sequencer to read finalized
// blocks from and which DA-layer endpoint to write blobs to, per §4.10.
type Config struct {
	SequencerRPCAddr string
	Subscriber       string
	DAEndpoint       string
	DAAuthToken      string
	LogLevel         string
}

func (c Config) Validate() error {
	if c.SequencerRPCAddr == "" {
		return fmt.Errorf("sequencer-rpc-addr must not be empty")
	}
	if c.DAEndpoint == "" {
		return fmt.Errorf("da-endpoint must not be empty")
	}
	return nil
}

func loadConfig() (Config, error) {
	cfg := Config{
		SequencerRPCAddr: viper.GetString("sequencer_rpc_addr"),
		Subscriber:       viper.GetString("subscriber"),
		DAEndpoint:       viper.GetString("da_endpoint"),
		DAAuthToken:      viper.GetString("da_auth_token"),
		LogLevel:         viper.GetString("log_level"),
	}
	return cfg, cfg.Validate()
}
