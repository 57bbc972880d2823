package main

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/astria-net/sequencer-core/internal/conductor"
)

// Config configures the conductor binary: which sequencer to stream blocks
// from, and the bounded fetch-ahead tuning described in §4.11.
type Config struct {
	SequencerRPCAddr string
	Subscriber       string
	NextHeight       int64
	MaxInFlight      int
	MaxAhead         int64
	FetchTimeout     time.Duration
	LogLevel         string
}

func (c Config) Validate() error {
	if c.SequencerRPCAddr == "" {
		return fmt.Errorf("sequencer-rpc-addr must not be empty")
	}
	if c.NextHeight < 1 {
		return fmt.Errorf("next-height must be >= 1, got %d", c.NextHeight)
	}
	return nil
}

func (c Config) conductorConfig() conductor.Config {
	return conductor.Config{
		MaxInFlight:  c.MaxInFlight,
		MaxAhead:     c.MaxAhead,
		FetchTimeout: c.FetchTimeout,
	}
}

func loadConfig() (Config, error) {
	cfg := Config{
		SequencerRPCAddr: viper.GetString("sequencer_rpc_addr"),
		Subscriber:       viper.GetString("subscriber"),
		NextHeight:       viper.GetInt64("next_height"),
		MaxInFlight:      viper.GetInt("max_in_flight"),
		MaxAhead:         viper.GetInt64("max_ahead"),
		FetchTimeout:     viper.GetDuration("fetch_timeout"),
		LogLevel:         viper.GetString("log_level"),
	}
	return cfg, cfg.Validate()
}
