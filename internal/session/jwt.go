package session

import (
	"context"
	"crypto"
	"crypto/hmac"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"
)

// JWTConfig holds token verification settings.
type JWTConfig struct {
	Algorithm     string        `yaml:"algorithm"`       // HS256, RS256
	Secret        string        `yaml:"secret"`          // HMAC secret
	PublicKeyFile string        `yaml:"public_key_file"` // RSA public key file
	Issuer        string        `yaml:"issuer"`          // Optional issuer validation
	Leeway        time.Duration `yaml:"leeway"`          // Clock skew tolerated on exp and nbf
}

var (
	errMalformed = errors.New("malformed token")
	errSignature = errors.New("invalid signature")
	errExpired   = errors.New("token expired")
	errNotYet    = errors.New("token not yet valid")
	errIssuer    = errors.New("issuer mismatch")
)

// claims is the subset of registered JWT claims a session cares about.
type claims struct {
	Subject   string `json:"sub"`
	Issuer    string `json:"iss"`
	ExpiresAt *int64 `json:"exp"`
	NotBefore *int64 `json:"nbf"`
}

// Verifier validates signed session tokens.
type Verifier struct {
	algorithm string
	check     func(input, signature []byte) error
	issuer    string
	leeway    time.Duration
	now       func() time.Time
}

// NewVerifier creates a token verifier.
func NewVerifier(cfg JWTConfig) (*Verifier, error) {
	if cfg.Algorithm == "" {
		cfg.Algorithm = "HS256"
	}
	v := &Verifier{
		algorithm: cfg.Algorithm,
		issuer:    cfg.Issuer,
		leeway:    cfg.Leeway,
		now:       time.Now,
	}

	switch cfg.Algorithm {
	case "HS256":
		if cfg.Secret == "" {
			return nil, fmt.Errorf("JWT secret required for HS256")
		}
		v.check = hmacCheck([]byte(cfg.Secret))
	case "RS256":
		if cfg.PublicKeyFile == "" {
			return nil, fmt.Errorf("public key file required for RS256")
		}
		key, err := loadRSAPublicKey(cfg.PublicKeyFile)
		if err != nil {
			return nil, fmt.Errorf("load public key: %w", err)
		}
		v.check = rsaCheck(key)
	default:
		return nil, fmt.Errorf("unsupported algorithm: %s", cfg.Algorithm)
	}
	return v, nil
}

func hmacCheck(key []byte) func(input, signature []byte) error {
	return func(input, signature []byte) error {
		mac := hmac.New(sha256.New, key)
		mac.Write(input)
		if !hmac.Equal(signature, mac.Sum(nil)) {
			return errSignature
		}
		return nil
	}
}

func rsaCheck(key *rsa.PublicKey) func(input, signature []byte) error {
	return func(input, signature []byte) error {
		digest := sha256.Sum256(input)
		if err := rsa.VerifyPKCS1v15(key, crypto.SHA256, digest[:], signature); err != nil {
			return errSignature
		}
		return nil
	}
}

// Verify checks the token and returns the session it describes.
func (v *Verifier) Verify(token string) (Session, error) {
	c, err := v.parse(token)
	if err != nil {
		return Session{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	s := Session{Authenticated: true, Subject: c.Subject}
	if s.Subject == "" {
		s.Subject = "unknown"
	}
	if c.ExpiresAt != nil {
		s.ExpiresAt = time.Unix(*c.ExpiresAt, 0).UTC()
	}
	return s, nil
}

// Authorize checks the bearer token of r. It fits content.Handler.
func (v *Verifier) Authorize(r *http.Request) error {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || token == "" {
		return fmt.Errorf("%w: bearer token required", ErrInvalidToken)
	}
	_, err := v.Verify(token)
	return err
}

// parse splits a compact JWS, checks the header and signature and then the
// time and issuer claims.
func (v *Verifier) parse(token string) (claims, error) {
	var c claims
	header, payload, signature, ok := splitToken(token)
	if !ok {
		return c, errMalformed
	}

	var h struct {
		Alg string `json:"alg"`
	}
	if err := decodeSegment(header, &h); err != nil {
		return c, fmt.Errorf("%w: header: %v", errMalformed, err)
	}
	if h.Alg != v.algorithm {
		return c, fmt.Errorf("algorithm mismatch: expected %s, got %s", v.algorithm, h.Alg)
	}

	sig, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(signature, "="))
	if err != nil {
		return c, fmt.Errorf("%w: signature: %v", errMalformed, err)
	}
	if err := v.check([]byte(header+"."+payload), sig); err != nil {
		return c, err
	}
	if err := decodeSegment(payload, &c); err != nil {
		return c, fmt.Errorf("%w: payload: %v", errMalformed, err)
	}

	now := v.now()
	if c.ExpiresAt != nil && now.After(time.Unix(*c.ExpiresAt, 0).Add(v.leeway)) {
		return c, errExpired
	}
	if c.NotBefore != nil && now.Before(time.Unix(*c.NotBefore, 0).Add(-v.leeway)) {
		return c, errNotYet
	}
	if v.issuer != "" && c.Issuer != v.issuer {
		return c, errIssuer
	}
	return c, nil
}

func splitToken(token string) (header, payload, signature string, ok bool) {
	header, rest, ok := strings.Cut(token, ".")
	if !ok {
		return "", "", "", false
	}
	payload, signature, ok = strings.Cut(rest, ".")
	if !ok || strings.Contains(signature, ".") {
		return "", "", "", false
	}
	return header, payload, signature, true
}

func decodeSegment(seg string, v any) error {
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(seg, "="))
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}

// loadRSAPublicKey reads a PKIX public key from a PEM file.
func loadRSAPublicKey(path string) (*rsa.PublicKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("no PEM block found")
	}
	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	key, ok := pub.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("not an RSA public key")
	}
	return key, nil
}

// JWTGate verifies the token held by the local admin session.
type JWTGate struct {
	verifier *Verifier
	token    func(ctx context.Context) string
}

// NewJWTGate returns a gate that verifies the token returned by token.
func NewJWTGate(v *Verifier, token func(ctx context.Context) string) *JWTGate {
	return &JWTGate{verifier: v, token: token}
}

func (g *JWTGate) Session(ctx context.Context) (Session, error) {
	tok := ""
	if g.token != nil {
		tok = g.token(ctx)
	}
	if tok == "" {
		return Session{}, nil
	}
	return g.verifier.Verify(tok)
}
