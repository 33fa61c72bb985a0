// Package admin is the entry point of the content management surface. It
// checks the session gate and, for an authenticated session, starts the
// initial load of every store.
package admin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/oriys/folio/internal/bootstrap"
	"github.com/oriys/folio/internal/domain"
	"github.com/oriys/folio/internal/entity"
	"github.com/oriys/folio/internal/logging"
	"github.com/oriys/folio/internal/registry"
	"github.com/oriys/folio/internal/session"
)

// LoginRoute is where unauthenticated visitors are sent.
const LoginRoute = "/admin/login"

// RedirectError tells the caller to navigate elsewhere instead of mounting.
type RedirectError struct {
	Location string
}

func (e *RedirectError) Error() string {
	return fmt.Sprintf("admin: redirect to %s", e.Location)
}

// IsRedirect reports whether err asks for a redirect, and where to.
func IsRedirect(err error) (string, bool) {
	var r *RedirectError
	if errors.As(err, &r) {
		return r.Location, true
	}
	return "", false
}

// Surface is one mount of the admin surface. Its bootstrap runs at most
// once for the lifetime of the Surface.
type Surface struct {
	gate      session.Gate
	registry  *registry.Registry
	bootstrap *bootstrap.Orchestrator
}

// New returns an unmounted surface.
func New(gate session.Gate, reg *registry.Registry) *Surface {
	return &Surface{gate: gate, registry: reg, bootstrap: bootstrap.New()}
}

// Mount checks the session and starts loading every store. It returns a
// *RedirectError for an unauthenticated session and does not load anything
// in that case.
func (s *Surface) Mount(ctx context.Context) error {
	sess, err := s.gate.Session(ctx)
	if err != nil {
		logging.For("admin").Debug("session check failed", "error", err)
	}
	if err != nil || !sess.Authenticated {
		return &RedirectError{Location: LoginRoute}
	}
	if s.bootstrap.Bootstrap(ctx, s.registry.Fetchers()...) {
		logging.For("admin").Info("admin surface mounted", "subject", sess.Subject)
	}
	return nil
}

// Status is the per-store view the admin dashboard renders.
type Status struct {
	Domain      domain.Domain `json:"domain"`
	Status      string        `json:"status"`
	FetchedOnce bool          `json:"fetchedOnce"`
	Loading     bool          `json:"loading"`
	Error       string        `json:"error,omitempty"`
}

// Statuses reports every store's lifecycle.
func (s *Surface) Statuses() []Status {
	entities := s.registry.Entities()
	out := make([]Status, 0, len(entities))
	for _, e := range entities {
		out = append(out, StatusOf(e))
	}
	return out
}

// StatusOf converts a store's state into its dashboard view.
func StatusOf(e entity.Entity) Status {
	st := e.State()
	out := Status{
		Domain:      e.Domain(),
		Status:      st.Status.String(),
		FetchedOnce: st.FetchedOnce,
		Loading:     st.Loading,
	}
	if st.LastError != nil {
		out.Error = st.LastError.Error()
	}
	return out
}

// ServeHTTP mounts the surface for GET /admin and reports store status, or
// redirects to the login route.
func (s *Surface) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := s.Mount(r.Context()); err != nil {
		if loc, ok := IsRedirect(err); ok {
			http.Redirect(w, r, loc, http.StatusFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"stores": s.Statuses()})
}
