package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/oriys/folio/internal/admin"
	"github.com/oriys/folio/internal/config"
	"github.com/oriys/folio/internal/content"
	"github.com/oriys/folio/internal/domain"
	"github.com/oriys/folio/internal/logging"
	"github.com/oriys/folio/internal/metrics"
	"github.com/oriys/folio/internal/observability"
	"github.com/oriys/folio/internal/query"
	"github.com/oriys/folio/internal/session"
	"github.com/spf13/cobra"
)

func serveCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve store snapshots, the admin surface and metrics over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(a *app) error {
				if addr == "" {
					addr = a.cfg.Serve.Addr
				}

				srv := &http.Server{
					Addr:              addr,
					Handler:           observability.HTTPMiddleware(newServeMux(a)),
					ReadHeaderTimeout: 10 * time.Second,
				}

				errCh := make(chan error, 1)
				go func() {
					logging.Op().Info("HTTP server started", "addr", addr, "source", a.cfg.Content.Source)
					if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						errCh <- err
					}
				}()

				sigCh := make(chan os.Signal, 1)
				signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
				defer signal.Stop(sigCh)

				select {
				case err := <-errCh:
					return err
				case <-sigCh:
				}

				logging.Op().Info("shutting down")
				ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				return srv.Shutdown(ctx)
			})
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "HTTP listen address (default from config)")
	return cmd
}

// newServeMux builds the HTTP surface for a.
func newServeMux(a *app) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.Handle("GET /metrics", metrics.PrometheusHandler())

	mux.HandleFunc("GET /content/{domain}", func(w http.ResponseWriter, r *http.Request) {
		e, err := a.entity(r.PathValue("domain"))
		if err != nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
			return
		}
		e.Fetch(r.Context())
		raw, err := e.MarshalSnapshot()
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		if where := r.URL.Query().Get("where"); where != "" {
			if raw, err = query.Filter(raw, where); err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
				return
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Folio-Status", e.State().Status.String())
		w.WriteHeader(http.StatusOK)
		w.Write(raw)
	})
	mux.HandleFunc("POST /content/{domain}/retry", func(w http.ResponseWriter, r *http.Request) {
		d, err := domain.Parse(r.PathValue("domain"))
		if err != nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
			return
		}
		if err := a.registry.Retry(r.Context(), d); err != nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
			return
		}
		e, _ := a.registry.Lookup(d)
		writeJSON(w, http.StatusOK, admin.StatusOf(e))
	})

	mux.Handle("GET /admin", a.surface)
	mux.HandleFunc("GET /admin/login", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "sign in required"})
	})

	mux.HandleFunc("GET /prefs", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, a.registry.Prefs.Get())
	})
	mux.HandleFunc("PUT /prefs/{name}", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Value string `json:"value"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
			return
		}
		if err := a.registry.Prefs.Set(r.PathValue("name"), body.Value); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, a.registry.Prefs.Get())
	})

	// Local sources also serve the content API so other clients can use
	// this process as their HTTP source.
	if a.cfg.Content.Source != config.SourceHTTP {
		h := &content.Handler{Service: a.service, Authorize: a.authorize}
		h.RegisterRoutes(mux)
	}
	return mux
}

// authorize guards content API writes. JWT mode checks the request's bearer
// token; other modes ask the configured gate.
func (a *app) authorize(r *http.Request) error {
	if a.verifier != nil {
		return a.verifier.Authorize(r)
	}
	if !session.Authenticated(r.Context(), a.gate) {
		return content.ErrUnauthorized
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
