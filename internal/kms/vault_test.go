package kms

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClientGetKeyAndSign(t *testing.T) {
	pub := []byte("0123456789abcdef0123456789abcdef")[:32]
	pubB64 := base64.StdEncoding.EncodeToString(pub)
	sig := make([]byte, 64)
	sigB64 := base64.StdEncoding.EncodeToString(sig)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "test-token", r.Header.Get("X-Vault-Token"))
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/v1/transit/keys/withdrawer":
			w.Write([]byte(`{"data":{"latest_version":1,"keys":{"1":{"public_key":"` + pubB64 + `"}}}}`))
		case r.Method == http.MethodPost && r.URL.Path == "/v1/transit/sign/withdrawer":
			w.Write([]byte(`{"data":{"signature":"vault:v1:` + sigB64 + `"}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	client, err := NewClient(Config{Addr: srv.URL, Token: "test-token"})
	require.NoError(t, err)

	info, err := client.GetKey(context.Background(), "withdrawer")
	require.NoError(t, err)
	require.Equal(t, pub, info.PublicKey)

	got, err := client.Sign(context.Background(), "withdrawer", []byte("message"))
	require.NoError(t, err)
	require.Equal(t, sig, got)
}

func TestClientGetKeyNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client, err := NewClient(Config{Addr: srv.URL, Token: "test-token"})
	require.NoError(t, err)

	_, err = client.GetKey(context.Background(), "missing")
	require.ErrorIs(t, err, ErrKeyNotFound)
}
