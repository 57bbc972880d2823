package main

import (
	"encoding/hex"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/astria-net/sequencer-core/internal/kms"
	"github.com/astria-net/sequencer-core/internal/primitive"
)

// Config configures the bridge-withdrawer binary's startup checks and
// submission cadence, per §4.9, plus which signing mode backs its Signer.
type Config struct {
	SequencerRPCAddr string
	ChainID          string
	FeeAsset         string
	MinimumBalance   string
	MaxNonceAttempts uint64
	BatchesFile      string

	SigningMode       string // "single", "frost", or "vault"
	SingleKeyHex      string
	FrostMinSigners   int
	FrostParticipants []string
	FrostPubKeyFile   string

	VaultAddr      string
	VaultToken     string
	VaultNamespace string
	VaultKeyPath   string
	VaultKeyName   string

	LogLevel string
}

func (c Config) Validate() error {
	if c.SequencerRPCAddr == "" {
		return fmt.Errorf("sequencer-rpc-addr must not be empty")
	}
	if c.ChainID == "" {
		return fmt.Errorf("chain-id must not be empty")
	}
	switch c.SigningMode {
	case "single":
		if c.SingleKeyHex == "" {
			return fmt.Errorf("single-key-hex (or BRIDGEWITHDRAWER_SINGLE_KEY_HEX) is required in single signing mode")
		}
	case "frost":
		if c.FrostPubKeyFile == "" {
			return fmt.Errorf("frost-pubkey-file is required in frost signing mode")
		}
		if len(c.FrostParticipants) == 0 {
			return fmt.Errorf("frost-participants must list at least one participant address")
		}
		if c.FrostMinSigners <= 0 {
			return fmt.Errorf("frost-min-signers must be > 0")
		}
	case "vault":
		if c.VaultAddr == "" || c.VaultToken == "" {
			return fmt.Errorf("vault-addr and vault-token are required in vault signing mode")
		}
		if c.VaultKeyName == "" {
			return fmt.Errorf("vault-key-name is required in vault signing mode")
		}
	default:
		return fmt.Errorf("signing-mode must be %q, %q, or %q, got %q", "single", "frost", "vault", c.SigningMode)
	}
	return nil
}

func (c Config) kmsConfig() kms.Config {
	return kms.Config{
		Addr:        c.VaultAddr,
		Token:       c.VaultToken,
		Namespace:   c.VaultNamespace,
		KeyPath:     c.VaultKeyPath,
		HTTPTimeout: 30 * time.Second,
	}
}

func (c Config) singleKey() ([]byte, error) {
	raw, err := hex.DecodeString(c.SingleKeyHex)
	if err != nil {
		return nil, fmt.Errorf("decoding single-key-hex: %w", err)
	}
	return raw, nil
}

func (c Config) feeAsset() (primitive.IbcPrefixed, error) {
	return primitive.ParseIbcPrefixed(c.FeeAsset)
}

func (c Config) minimumBalance() (primitive.Amount, error) {
	return primitive.ParseAmount(c.MinimumBalance)
}

func (c Config) frostPubKeyPackage() ([]byte, error) {
	return os.ReadFile(c.FrostPubKeyFile)
}

func loadConfig() (Config, error) {
	cfg := Config{
		SequencerRPCAddr:  viper.GetString("sequencer_rpc_addr"),
		ChainID:           viper.GetString("chain_id"),
		FeeAsset:          viper.GetString("fee_asset"),
		MinimumBalance:    viper.GetString("minimum_balance"),
		MaxNonceAttempts:  viper.GetUint64("max_nonce_attempts"),
		BatchesFile:       viper.GetString("batches_file"),
		SigningMode:       viper.GetString("signing_mode"),
		SingleKeyHex:      viper.GetString("single_key_hex"),
		FrostMinSigners:   viper.GetInt("frost_min_signers"),
		FrostParticipants: splitNonEmpty(viper.GetString("frost_participants")),
		FrostPubKeyFile:   viper.GetString("frost_pubkey_file"),
		VaultAddr:         viper.GetString("vault_addr"),
		VaultToken:        viper.GetString("vault_token"),
		VaultNamespace:    viper.GetString("vault_namespace"),
		VaultKeyPath:      viper.GetString("vault_key_path"),
		VaultKeyName:      viper.GetString("vault_key_name"),
		LogLevel:          viper.GetString("log_level"),
	}
	return cfg, cfg.Validate()
}

func splitNonEmpty(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(s, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
