package kms

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// Client talks to an OpenBao/Vault transit secrets engine over HTTP.
type Client struct {
	baseURL    string
	token      string
	namespace  string
	keyPath    string
	httpClient *http.Client
}

// NewClient validates cfg and constructs a Client. No network call is made
// until GetKey, Sign, or Health is invoked.
func NewClient(cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	keyPath := cfg.KeyPath
	if keyPath == "" {
		keyPath = DefaultKeyPath
	}
	timeout := cfg.HTTPTimeout
	if timeout == 0 {
		timeout = DefaultHTTPTimeout
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.TLSConfig != nil {
		transport.TLSClientConfig = cfg.TLSConfig
	}
	if cfg.SkipTLSVerify {
		if transport.TLSClientConfig == nil {
			transport.TLSClientConfig = &tls.Config{}
		}
		transport.TLSClientConfig.InsecureSkipVerify = true
	}

	return &Client{
		baseURL:    strings.TrimSuffix(cfg.Addr, "/"),
		token:      cfg.Token,
		namespace:  cfg.Namespace,
		keyPath:    keyPath,
		httpClient: &http.Client{Timeout: timeout, Transport: transport},
	}, nil
}

type vaultErrorResponse struct {
	Errors []string `json:"errors"`
}

// do issues a request against path, decoding the "data" envelope OpenBao
// wraps every transit response in into out.
func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var reqBody bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&reqBody).Encode(body); err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, &reqBody)
	if err != nil {
		return fmt.Errorf("constructing request: %w", err)
	}
	req.Header.Set("X-Vault-Token", c.token)
	if c.namespace != "" {
		req.Header.Set("X-Vault-Namespace", c.namespace)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent:
	case http.StatusNotFound:
		return ErrKeyNotFound
	case http.StatusServiceUnavailable:
		return ErrSealed
	default:
		var errResp vaultErrorResponse
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		return fmt.Errorf("%w: status %d: %s", ErrUnavailable, resp.StatusCode, strings.Join(errResp.Errors, "; "))
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return fmt.Errorf("decoding response data: %w", err)
	}
	return nil
}

type readKeyResponse struct {
	LatestVersion int                       `json:"latest_version"`
	Keys          map[string]map[string]any `json:"keys"`
}

// GetKey fetches the current public key for name from the transit engine.
// The key must already exist (created out of band, e.g. via the vault
// operator's own tooling); this client does not create keys.
func (c *Client) GetKey(ctx context.Context, name string) (*KeyInfo, error) {
	var resp readKeyResponse
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/v1/%s/keys/%s", c.keyPath, name), nil, &resp); err != nil {
		return nil, fmt.Errorf("reading key %s: %w", name, err)
	}

	version := fmt.Sprintf("%d", resp.LatestVersion)
	versionData, ok := resp.Keys[version]
	if !ok {
		return nil, fmt.Errorf("%w: key %s has no data for version %d", ErrKeyNotFound, name, resp.LatestVersion)
	}
	rawPub, ok := versionData["public_key"].(string)
	if !ok {
		return nil, fmt.Errorf("%w: key %s is missing a public key", ErrKeyNotFound, name)
	}
	pub, err := base64.StdEncoding.DecodeString(rawPub)
	if err != nil {
		return nil, fmt.Errorf("decoding public key for %s: %w", name, err)
	}

	return &KeyInfo{Name: name, PublicKey: pub, Version: resp.LatestVersion}, nil
}

type signRequest struct {
	Input string `json:"input"`
}

type signResponse struct {
	Signature string `json:"signature"`
}

// Sign signs message with the named ed25519 key and returns the raw
// 64-byte signature.
func (c *Client) Sign(ctx context.Context, name string, message []byte) ([]byte, error) {
	req := signRequest{Input: base64.StdEncoding.EncodeToString(message)}
	var resp signResponse
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/v1/%s/sign/%s", c.keyPath, name), req, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSigningFailed, err)
	}

	// OpenBao's transit signatures are prefixed "vault:v<version>:<base64>".
	parts := strings.SplitN(resp.Signature, ":", 3)
	encoded := resp.Signature
	if len(parts) == 3 {
		encoded = parts[2]
	}
	sig, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: decoding signature: %v", ErrSigningFailed, err)
	}
	return sig, nil
}

// Health reports whether the vault is reachable and unsealed.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/v1/sys/health", nil, nil)
}
