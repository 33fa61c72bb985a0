package session

import (
	"context"
	"crypto"
	"crypto/hmac"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signHS256(t *testing.T, secret string, claims map[string]any) string {
	t.Helper()
	enc := base64.RawURLEncoding
	header, err := json.Marshal(map[string]string{"alg": "HS256", "typ": "JWT"})
	require.NoError(t, err)
	payload, err := json.Marshal(claims)
	require.NoError(t, err)
	input := enc.EncodeToString(header) + "." + enc.EncodeToString(payload)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(input))
	return input + "." + enc.EncodeToString(mac.Sum(nil))
}

func TestStatic(t *testing.T) {
	ctx := context.Background()
	assert.True(t, Authenticated(ctx, Static{Authenticated: true, Subject: "ada"}))
	assert.False(t, Authenticated(ctx, Static{}))
	assert.False(t, Authenticated(ctx, nil))
}

func TestVerifier(t *testing.T) {
	v, err := NewVerifier(JWTConfig{Secret: "s3cret", Issuer: "folio"})
	require.NoError(t, err)
	exp := time.Now().Add(time.Hour).Unix()

	s, err := v.Verify(signHS256(t, "s3cret", map[string]any{"sub": "ada", "iss": "folio", "exp": exp}))
	require.NoError(t, err)
	assert.True(t, s.Authenticated)
	assert.Equal(t, "ada", s.Subject)
	assert.Equal(t, exp, s.ExpiresAt.Unix())

	cases := map[string]string{
		"wrong secret":   signHS256(t, "other", map[string]any{"iss": "folio"}),
		"expired":        signHS256(t, "s3cret", map[string]any{"iss": "folio", "exp": time.Now().Add(-time.Minute).Unix()}),
		"not yet valid":  signHS256(t, "s3cret", map[string]any{"iss": "folio", "nbf": time.Now().Add(time.Hour).Unix()}),
		"wrong issuer":   signHS256(t, "s3cret", map[string]any{"iss": "elsewhere"}),
		"missing issuer": signHS256(t, "s3cret", map[string]any{}),
		"malformed":      "not.a-token",
	}
	for name, tok := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := v.Verify(tok)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestNewVerifierRequiresKeys(t *testing.T) {
	_, err := NewVerifier(JWTConfig{Algorithm: "HS256"})
	assert.Error(t, err)
	_, err = NewVerifier(JWTConfig{Algorithm: "RS256"})
	assert.Error(t, err)
	_, err = NewVerifier(JWTConfig{Algorithm: "none", Secret: "x"})
	assert.Error(t, err)
}

func TestVerifierAuthorize(t *testing.T) {
	v, err := NewVerifier(JWTConfig{Secret: "k"})
	require.NoError(t, err)

	r := httptest.NewRequest(http.MethodPut, "/api/content/hero", nil)
	assert.ErrorIs(t, v.Authorize(r), ErrInvalidToken)

	r.Header.Set("Authorization", "Bearer "+signHS256(t, "k", map[string]any{"sub": "ada"}))
	assert.NoError(t, v.Authorize(r))
}

func TestJWTGate(t *testing.T) {
	v, err := NewVerifier(JWTConfig{Secret: "k"})
	require.NoError(t, err)
	ctx := context.Background()

	token := ""
	g := NewJWTGate(v, func(context.Context) string { return token })

	s, err := g.Session(ctx)
	require.NoError(t, err)
	assert.False(t, s.Authenticated)

	token = "garbage"
	_, err = g.Session(ctx)
	assert.ErrorIs(t, err, ErrInvalidToken)
	assert.False(t, Authenticated(ctx, g))

	token = signHS256(t, "k", map[string]any{"sub": "ada"})
	assert.True(t, Authenticated(ctx, g))
}

func TestHTTPGate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Header.Get("Authorization") {
		case "Bearer good":
			json.NewEncoder(w).Encode(map[string]any{"authenticated": true, "subject": "ada"})
		case "Bearer broken":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			w.WriteHeader(http.StatusUnauthorized)
		}
	}))
	defer srv.Close()
	ctx := context.Background()

	gate := func(tok string) *HTTPGate {
		return NewHTTPGate(srv.URL, time.Second, func(context.Context) string { return tok })
	}

	s, err := gate("good").Session(ctx)
	require.NoError(t, err)
	assert.True(t, s.Authenticated)
	assert.Equal(t, "ada", s.Subject)

	s, err = gate("").Session(ctx)
	require.NoError(t, err)
	assert.False(t, s.Authenticated)

	_, err = gate("broken").Session(ctx)
	assert.Error(t, err)
	assert.False(t, Authenticated(ctx, gate("broken")))
}

func TestVerifierLeeway(t *testing.T) {
	v, err := NewVerifier(JWTConfig{Secret: "k", Leeway: time.Minute})
	require.NoError(t, err)

	_, err = v.Verify(signHS256(t, "k", map[string]any{"sub": "ada", "exp": time.Now().Add(-30 * time.Second).Unix()}))
	assert.NoError(t, err)

	_, err = v.Verify(signHS256(t, "k", map[string]any{"sub": "ada", "exp": time.Now().Add(-2 * time.Minute).Unix()}))
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifierRejectsAlgorithmSwap(t *testing.T) {
	v, err := NewVerifier(JWTConfig{Secret: "k"})
	require.NoError(t, err)

	enc := base64.RawURLEncoding
	header := enc.EncodeToString([]byte(`{"alg":"none","typ":"JWT"}`))
	payload := enc.EncodeToString([]byte(`{"sub":"mallory"}`))
	_, err = v.Verify(header + "." + payload + ".")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifierRS256(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "pub.pem")
	require.NoError(t, os.WriteFile(path, pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}), 0o600))

	v, err := NewVerifier(JWTConfig{Algorithm: "RS256", PublicKeyFile: path})
	require.NoError(t, err)

	enc := base64.RawURLEncoding
	input := enc.EncodeToString([]byte(`{"alg":"RS256","typ":"JWT"}`)) + "." + enc.EncodeToString([]byte(`{"sub":"ada"}`))
	digest := sha256.Sum256([]byte(input))
	sig, err := rsa.SignPKCS1v15(rand.Reader, key, crypto.SHA256, digest[:])
	require.NoError(t, err)

	s, err := v.Verify(input + "." + enc.EncodeToString(sig))
	require.NoError(t, err)
	assert.Equal(t, "ada", s.Subject)

	_, err = v.Verify(input + "." + enc.EncodeToString([]byte("forged")))
	assert.ErrorIs(t, err, ErrInvalidToken)
}
