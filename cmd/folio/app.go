package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/oriys/folio/internal/admin"
	"github.com/oriys/folio/internal/circuitbreaker"
	"github.com/oriys/folio/internal/config"
	"github.com/oriys/folio/internal/content"
	"github.com/oriys/folio/internal/domain"
	"github.com/oriys/folio/internal/entity"
	"github.com/oriys/folio/internal/logging"
	"github.com/oriys/folio/internal/medium"
	"github.com/oriys/folio/internal/metrics"
	"github.com/oriys/folio/internal/observability"
	"github.com/oriys/folio/internal/output"
	"github.com/oriys/folio/internal/persist"
	"github.com/oriys/folio/internal/prefs"
	"github.com/oriys/folio/internal/registry"
	"github.com/oriys/folio/internal/session"
)

// app is one fully wired client session.
type app struct {
	cfg      *config.Config
	service  content.Service
	verifier *session.Verifier
	gate     session.Gate
	registry *registry.Registry
	surface  *admin.Surface
	breakers *circuitbreaker.Registry
	closers  []func() error
}

func loadConfig() (*config.Config, error) {
	cfg := config.DefaultConfig()
	if configFile != "" {
		loaded, err := config.LoadFromFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	}
	config.LoadFromEnv(cfg)

	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if logFormat != "" {
		cfg.Log.Format = logFormat
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	logging.InitStructured(cfg.Log.Format, cfg.Log.Level)
	if cfg.Log.AuditFile != "" {
		if err := logging.Audit().SetOutput(cfg.Log.AuditFile); err != nil {
			return nil, fmt.Errorf("open audit log: %w", err)
		}
	}
	if cfg.Metrics.Enabled {
		metrics.InitPrometheus(cfg.Metrics.Namespace, nil)
	}
	if err := observability.Init(ctx, cfg.Telemetry); err != nil {
		logging.Op().Warn("telemetry disabled", "error", err)
	}

	a := &app{cfg: cfg}
	a.closers = append(a.closers, func() error {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return observability.Shutdown(sctx)
	})

	if err := a.buildSession(); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.buildContent(ctx); err != nil {
		a.Close()
		return nil, err
	}

	sessionAdapter, durableAdapter := a.buildStorage(ctx)

	var prefOpts []prefs.Option
	if cfg.Prefs.DefaultTheme != "" || cfg.Prefs.DefaultLocale != "" {
		theme, err := prefs.ParseTheme(cfg.Prefs.DefaultTheme)
		if err != nil && cfg.Prefs.DefaultTheme != "" {
			a.Close()
			return nil, fmt.Errorf("prefs.default_theme: %w", err)
		}
		prefOpts = append(prefOpts, prefs.WithDefaults(theme, cfg.Prefs.DefaultLocale))
	}

	reg, err := registry.New(registry.Options{
		Content: a.service,
		Session: sessionAdapter,
		Durable: durableAdapter,
		Prefs:   prefOpts,
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	a.registry = reg
	a.surface = admin.New(a.gate, reg)
	return a, nil
}

func (a *app) buildSession() error {
	cfg := a.cfg.Session
	token := func(context.Context) string { return cfg.Token }

	switch cfg.Mode {
	case config.SessionJWT:
		v, err := session.NewVerifier(cfg.JWT)
		if err != nil {
			return fmt.Errorf("session verifier: %w", err)
		}
		a.verifier = v
		a.gate = session.NewJWTGate(v, token)
	case config.SessionHTTP:
		a.gate = session.NewHTTPGate(cfg.Endpoint, a.cfg.Content.Timeout, token)
	default:
		a.gate = session.Static{Authenticated: cfg.Authenticated, Subject: cfg.Subject}
	}
	return nil
}

func (a *app) buildContent(ctx context.Context) error {
	cfg := a.cfg.Content

	switch cfg.Source {
	case config.SourceHTTP:
		a.breakers = circuitbreaker.NewRegistry(cfg.Breaker)
		a.breakers.OnCreate(func(name string, b *circuitbreaker.Breaker) {
			metrics.SetCircuitBreakerState(name, int(b.State()))
			b.OnStateChange(func(s circuitbreaker.State) {
				metrics.SetCircuitBreakerState(name, int(s))
				logging.For("content").Warn("circuit breaker state changed", "domain", name, "state", s.String())
			})
		})
		token := cfg.Token
		if token == "" {
			token = a.cfg.Session.Token
		}
		svc, err := content.NewHTTPService(content.HTTPConfig{
			BaseURL:  cfg.BaseURL,
			Timeout:  cfg.Timeout,
			Token:    func(context.Context) string { return token },
			Breakers: a.breakers,
		})
		if err != nil {
			return fmt.Errorf("content service: %w", err)
		}
		a.service = svc
	case config.SourcePostgres:
		svc, err := content.NewPostgresService(ctx, cfg.PostgresDSN)
		if err != nil {
			return fmt.Errorf("content service: %w", err)
		}
		a.service = svc
		a.closers = append(a.closers, svc.Close)
	default:
		svc := content.NewMemoryService()
		if cfg.SeedFile != "" {
			if err := svc.LoadSeedFiles(cfg.SeedFile); err != nil {
				return fmt.Errorf("seed content: %w", err)
			}
		}
		a.service = svc
	}
	return nil
}

// buildStorage opens the session and durable media. A durable medium that
// cannot be opened degrades to Disabled.
func (a *app) buildStorage(ctx context.Context) (*persist.Adapter, *persist.Adapter) {
	cfg := a.cfg.Storage
	timeout := persist.WithTimeout(cfg.Timeout)

	sessionMedium := medium.NewMemory(cfg.SessionQuotaBytes)
	a.closers = append(a.closers, sessionMedium.Close)

	kind, _ := medium.ParseKind(cfg.Durable)
	durable, err := medium.Open(ctx, medium.Options{
		Kind:       kind,
		Origin:     cfg.Origin,
		SQLitePath: cfg.SQLitePath,
		Redis:      cfg.Redis,
	})
	if err != nil {
		logging.For("storage").Warn("durable storage unavailable", "kind", kind, "error", err)
		durable = medium.Disabled{}
	}
	a.closers = append(a.closers, durable.Close)

	return persist.New(sessionMedium, "folio", timeout), persist.New(durable, "folio", timeout)
}

// Close releases everything newApp opened, newest first.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			logging.Op().Debug("close failed", "error", err)
		}
	}
	a.closers = nil
	logging.Audit().Close()
}

func (a *app) printer() *output.Printer {
	return output.NewPrinter(output.ParseFormat(outputFormat))
}

func (a *app) entity(name string) (entity.Entity, error) {
	d, err := domain.Parse(name)
	if err != nil {
		return nil, err
	}
	return a.registry.Lookup(d)
}

func statusRows(entities []entity.Entity) []output.StatusRow {
	rows := make([]output.StatusRow, 0, len(entities))
	for _, e := range entities {
		st := admin.StatusOf(e)
		rows = append(rows, output.StatusRow{
			Domain:      st.Domain.String(),
			Status:      st.Status,
			FetchedOnce: st.FetchedOnce,
			Loading:     st.Loading,
			Error:       st.Error,
		})
	}
	return rows
}

func withApp(ctx context.Context, fn func(*app) error) error {
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

func stdinOr(path string) (*os.File, error) {
	if path == "" || path == "-" {
		return os.Stdin, nil
	}
	return os.Open(path)
}
