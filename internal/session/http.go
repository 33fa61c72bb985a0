package session

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/oriys/folio/internal/observability"
)

// HTTPGate asks a remote endpoint whether the session is authenticated.
// The endpoint answers 200 with {"authenticated": bool, "subject": "..."}
// or 401 for no session.
type HTTPGate struct {
	endpoint string
	client   *http.Client
	token    func(ctx context.Context) string
}

// NewHTTPGate returns a gate that queries endpoint.
func NewHTTPGate(endpoint string, timeout time.Duration, token func(ctx context.Context) string) *HTTPGate {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPGate{endpoint: endpoint, client: &http.Client{Timeout: timeout}, token: token}
}

func (g *HTTPGate) Session(ctx context.Context) (Session, error) {
	ctx, span := observability.StartClientSpan(ctx, "session.check")
	defer span.End()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.endpoint, nil)
	if err != nil {
		return Session{}, err
	}
	req.Header.Set("Accept", "application/json")
	if g.token != nil {
		if tok := g.token(ctx); tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}
	observability.InjectHTTP(ctx, req.Header)

	resp, err := g.client.Do(req)
	if err != nil {
		observability.SetSpanError(span, err)
		return Session{}, fmt.Errorf("session check: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusForbidden:
		return Session{}, nil
	default:
		err := fmt.Errorf("session check: status %d", resp.StatusCode)
		observability.SetSpanError(span, err)
		return Session{}, err
	}

	var body struct {
		Authenticated bool      `json:"authenticated"`
		Subject       string    `json:"subject"`
		ExpiresAt     time.Time `json:"expiresAt"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&body); err != nil {
		return Session{}, fmt.Errorf("session check: decode: %w", err)
	}
	observability.SetSpanOK(span)
	return Session{Authenticated: body.Authenticated, Subject: body.Subject, ExpiresAt: body.ExpiresAt}, nil
}
