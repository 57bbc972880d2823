package bridgewithdrawer

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/astria-net/sequencer-core/internal/kms"
	"github.com/astria-net/sequencer-core/internal/transaction"
)

func TestVaultSignerSignsWithRemoteKey(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	pubB64 := base64.StdEncoding.EncodeToString(pub)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/v1/transit/keys/withdrawer":
			w.Write([]byte(`{"data":{"latest_version":1,"keys":{"1":{"public_key":"` + pubB64 + `"}}}}`))
		case r.Method == http.MethodPost && r.URL.Path == "/v1/transit/sign/withdrawer":
			var body struct {
				Input string `json:"input"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			msg, err := base64.StdEncoding.DecodeString(body.Input)
			require.NoError(t, err)
			sig := ed25519.Sign(priv, msg)
			w.Write([]byte(`{"data":{"signature":"vault:v1:` + base64.StdEncoding.EncodeToString(sig) + `"}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	client, err := kms.NewClient(kms.Config{Addr: srv.URL, Token: "test-token"})
	require.NoError(t, err)

	signer, err := NewVaultSigner(context.Background(), client, "withdrawer")
	require.NoError(t, err)

	body := transaction.Body{Params: transaction.Params{ChainID: "test-chain", Nonce: 1}}
	tx, err := signer.Sign(context.Background(), body)
	require.NoError(t, err)
	require.True(t, ed25519.Verify(pub, body.SigningBytes(), tx.Signature[:]))
}
