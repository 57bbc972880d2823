// Package kms implements a remote signer backed by OpenBao's transit
// secrets engine: an operator need not hold a raw ed25519 key in its own
// process, trading it for an HTTP round trip against a vault that holds
// the key instead. Keys never leave the vault boundary; only signatures
// and public keys cross it.
package kms

import (
	"crypto/tls"
	"errors"
	"time"
)

const (
	DefaultKeyPath     = "transit"
	DefaultHTTPTimeout = 30 * time.Second
)

// Sentinel errors surfaced by Client, matched against with errors.Is.
var (
	ErrMissingAddr  = errors.New("kms: addr is required")
	ErrMissingToken = errors.New("kms: token is required")

	ErrKeyNotFound   = errors.New("kms: key not found")
	ErrSigningFailed = errors.New("kms: signing failed")
	ErrUnavailable   = errors.New("kms: vault unavailable")
	ErrSealed        = errors.New("kms: vault sealed")
)

// Config configures a Client's connection to an OpenBao (or Vault) server
// with the transit secrets engine mounted.
type Config struct {
	Addr          string
	Token         string
	Namespace     string
	KeyPath       string // transit engine mount path, e.g. "transit"
	HTTPTimeout   time.Duration
	TLSConfig     *tls.Config
	SkipTLSVerify bool
}

func (c Config) Validate() error {
	if c.Addr == "" {
		return ErrMissingAddr
	}
	if c.Token == "" {
		return ErrMissingToken
	}
	return nil
}

// KeyInfo is the public-key record the transit engine reports for a named
// key.
type KeyInfo struct {
	Name      string
	PublicKey []byte
	Version   int
}
