package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"trustrent/config"
	"trustrent/crypto"
)

func TestKeygenThenAddress(t *testing.T) {
	t.Setenv(defaultKeystorePassEnv, "correct horse")
	path := filepath.Join(t.TempDir(), "host.keystore")

	var out bytes.Buffer
	require.NoError(t, run([]string{"keygen", "--out", path}, &out))
	generated := strings.TrimSpace(out.String())
	require.True(t, strings.HasPrefix(generated, "rent1"), generated)

	out.Reset()
	require.NoError(t, run([]string{"address", "--keystore", path}, &out))
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Equal(t, generated, lines[0])
	require.True(t, strings.HasPrefix(lines[1], "0x"))

	err := run([]string{"keygen", "--out", path}, io.Discard)
	require.ErrorContains(t, err, "already exists")
}

func TestTokenCarriesAddressSubject(t *testing.T) {
	t.Setenv(config.DefaultSecretEnv, "shared-secret")
	addr := crypto.FormatAddress([20]byte{0x22})

	var out bytes.Buffer
	require.NoError(t, run([]string{"token", "--address", addr, "--issuer", "ops", "--audience", "trustrentd"}, &out))
	raw := strings.TrimSpace(out.String())

	token, err := jwt.Parse(raw, func(*jwt.Token) (interface{}, error) {
		return []byte("shared-secret"), nil
	}, jwt.WithIssuer("ops"), jwt.WithAudience("trustrentd"))
	require.NoError(t, err)
	subject, err := token.Claims.GetSubject()
	require.NoError(t, err)
	require.Equal(t, addr, subject)
}

func TestCallSendsEnvelopeAndHeaders(t *testing.T) {
	var seen struct {
		Method string            `json:"method"`
		Params []json.RawMessage `json:"params"`
	}
	var auth, idem string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		idem = r.Header.Get("Idempotency-Key")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&seen))
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":{"amount":"42"}}`))
	}))
	defer srv.Close()

	var out bytes.Buffer
	err := run([]string{"call", "--rpc", srv.URL, "--token", "tok", "--idempotency-key", "k1", "bank_transfer", `{"to":"x","amount":"1"}`}, &out)
	require.NoError(t, err)
	require.Equal(t, "bank_transfer", seen.Method)
	require.Len(t, seen.Params, 1)
	require.Equal(t, "Bearer tok", auth)
	require.Equal(t, "k1", idem)
	require.Contains(t, out.String(), `"amount": "42"`)
}

func TestCallSurfacesRPCErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"error":{"code":-32032,"message":"Overlap booking"}}`))
	}))
	defer srv.Close()

	err := run([]string{"call", "--rpc", srv.URL, "rental_book", `{}`}, io.Discard)
	require.ErrorContains(t, err, "Overlap booking")
	require.ErrorContains(t, err, "-32032")
}
