package content

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/oriys/folio/internal/circuitbreaker"
	"github.com/oriys/folio/internal/domain"
	"github.com/oriys/folio/internal/logging"
	"github.com/oriys/folio/internal/metrics"
	"github.com/oriys/folio/internal/observability"
)

const maxResponseBody = 10 << 20 // 10MB

// HTTPConfig configures the HTTP content service client.
type HTTPConfig struct {
	BaseURL string
	Timeout time.Duration
	// Token returns the bearer token attached to writes. May be nil.
	Token func(ctx context.Context) string
	// Breakers guards each domain independently. May be nil.
	Breakers *circuitbreaker.Registry
	Client   *http.Client
}

// HTTPService talks to the content API:
//
//	GET    /api/content/{domain}
//	PUT    /api/content/{domain}          replace
//	POST   /api/content/{domain}          create
//	PATCH  /api/content/{domain}/{id}     update
//	DELETE /api/content/{domain}/{id}     delete
//	PUT    /api/content/{domain}/order    reorder
type HTTPService struct {
	base     *url.URL
	client   *http.Client
	token    func(ctx context.Context) string
	breakers *circuitbreaker.Registry
}

// NewHTTPService validates cfg and returns a client.
func NewHTTPService(cfg HTTPConfig) (*HTTPService, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("content service URL is required")
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid content service URL %q", cfg.BaseURL)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &HTTPService{base: base, client: client, token: cfg.Token, breakers: cfg.Breakers}, nil
}

func (s *HTTPService) Fetch(ctx context.Context, d domain.Domain) (json.RawMessage, error) {
	return s.do(ctx, d, "fetch", http.MethodGet, s.path(d), nil)
}

func (s *HTTPService) Write(ctx context.Context, d domain.Domain, op Op) (json.RawMessage, error) {
	if err := op.Check(d); err != nil {
		return nil, err
	}
	switch op.Kind {
	case OpCreate:
		return s.do(ctx, d, string(op.Kind), http.MethodPost, s.path(d), op.Body)
	case OpUpdate:
		return s.do(ctx, d, string(op.Kind), http.MethodPatch, s.path(d, op.ID), op.Body)
	case OpDelete:
		return s.do(ctx, d, string(op.Kind), http.MethodDelete, s.path(d, op.ID), nil)
	case OpReorder:
		body, err := json.Marshal(map[string][]string{"order": op.Order})
		if err != nil {
			return nil, err
		}
		return s.do(ctx, d, string(op.Kind), http.MethodPut, s.path(d, "order"), body)
	default:
		return s.do(ctx, d, string(op.Kind), http.MethodPut, s.path(d), op.Body)
	}
}

func (s *HTTPService) path(d domain.Domain, parts ...string) string {
	p := s.base.JoinPath("api", "content", string(d))
	if len(parts) > 0 {
		p = p.JoinPath(parts...)
	}
	return p.String()
}

func (s *HTTPService) do(ctx context.Context, d domain.Domain, op, method, target string, body []byte) (json.RawMessage, error) {
	breaker := s.breakers.Get(string(d))
	if breaker != nil && !breaker.Allow() {
		metrics.RecordRemoteRequest(string(d), method, "circuit_open")
		return nil, &NetworkError{Domain: d, Op: op, Err: circuitbreaker.ErrOpen}
	}

	ctx, span := observability.StartClientSpan(ctx, "content."+op,
		observability.AttrDomain.String(string(d)),
		observability.AttrOpKind.String(op),
	)
	defer span.End()

	raw, status, err := s.roundTrip(ctx, method, target, body)
	if err != nil {
		err = &NetworkError{Domain: d, Op: op, Err: err}
		recordBreaker(breaker, err)
		metrics.RecordRemoteRequest(string(d), method, "error")
		observability.SetSpanError(span, err)
		logging.For("content").Debug("request failed", "domain", d, "op", op, "error", err)
		return nil, err
	}
	metrics.RecordRemoteRequest(string(d), method, strconv.Itoa(status))

	if status >= 200 && status < 300 {
		recordBreaker(breaker, nil)
		observability.SetSpanOK(span)
		if len(bytes.TrimSpace(raw)) == 0 {
			return domain.EmptyDocument(d), nil
		}
		if !json.Valid(raw) {
			return nil, &NetworkError{Domain: d, Op: "decode", StatusCode: status, Err: errors.New("response is not valid JSON")}
		}
		return raw, nil
	}

	err = statusError(d, op, status, raw)
	recordBreaker(breaker, err)
	observability.SetSpanError(span, err)
	return nil, err
}

func (s *HTTPService) roundTrip(ctx context.Context, method, target string, body []byte) ([]byte, int, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.token != nil {
		if tok := s.token(ctx); tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}
	observability.InjectHTTP(ctx, req.Header)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return raw, resp.StatusCode, nil
}

// errorBody is the JSON error envelope returned by the content API.
type errorBody struct {
	Error  string             `json:"error"`
	Fields domain.FieldErrors `json:"fields,omitempty"`
}

func statusError(d domain.Domain, op string, status int, raw []byte) error {
	var body errorBody
	_ = json.Unmarshal(raw, &body)
	switch {
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		return &ValidationError{Domain: d, Message: body.Error, Fields: body.Fields}
	case status == http.StatusNotFound:
		if body.Error != "" {
			return fmt.Errorf("%w: %s", ErrNotFound, body.Error)
		}
		return fmt.Errorf("%w: %s", ErrNotFound, d)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return fmt.Errorf("%w: %s %s", ErrUnauthorized, op, d)
	default:
		var cause error
		if body.Error != "" {
			cause = errors.New(body.Error)
		}
		return &NetworkError{Domain: d, Op: op, StatusCode: status, Err: cause}
	}
}

// recordBreaker counts only upstream failures against the breaker. Client
// errors are the caller's fault and say nothing about service health.
func recordBreaker(b *circuitbreaker.Breaker, err error) {
	if b == nil {
		return
	}
	if err == nil || !IsNetwork(err) {
		b.RecordSuccess()
		return
	}
	b.RecordFailure()
}
