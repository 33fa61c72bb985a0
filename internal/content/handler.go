package content

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/oriys/folio/internal/domain"
	"github.com/oriys/folio/internal/logging"
)

// Handler serves a Service over the content API. It is the server half of
// HTTPService.
type Handler struct {
	Service Service
	// Authorize guards every write. Nil allows all writes.
	Authorize func(r *http.Request) error
}

func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/content/{domain}", h.Fetch)
	mux.HandleFunc("PUT /api/content/{domain}", h.write(OpReplace))
	mux.HandleFunc("POST /api/content/{domain}", h.write(OpCreate))
	mux.HandleFunc("PATCH /api/content/{domain}/{id}", h.write(OpUpdate))
	mux.HandleFunc("DELETE /api/content/{domain}/{id}", h.write(OpDelete))
	mux.HandleFunc("PUT /api/content/{domain}/order", h.write(OpReorder))
}

func (h *Handler) Fetch(w http.ResponseWriter, r *http.Request) {
	d, err := domain.Parse(r.PathValue("domain"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error(), nil)
		return
	}
	doc, err := h.Service.Fetch(r.Context(), d)
	if err != nil {
		h.fail(w, d, err)
		return
	}
	writeDocument(w, http.StatusOK, doc)
}

func (h *Handler) write(kind OpKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		d, err := domain.Parse(r.PathValue("domain"))
		if err != nil {
			writeError(w, http.StatusNotFound, err.Error(), nil)
			return
		}
		if h.Authorize != nil {
			if err := h.Authorize(r); err != nil {
				writeError(w, http.StatusUnauthorized, err.Error(), nil)
				return
			}
		}

		op := Op{Kind: kind, ID: r.PathValue("id")}
		if kind != OpDelete {
			body, err := io.ReadAll(io.LimitReader(r.Body, maxResponseBody))
			if err != nil {
				writeError(w, http.StatusBadRequest, "failed to read request body", nil)
				return
			}
			if !json.Valid(body) {
				writeError(w, http.StatusBadRequest, "body must be valid JSON", nil)
				return
			}
			if kind == OpReorder {
				var req struct {
					Order []string `json:"order"`
				}
				if err := json.Unmarshal(body, &req); err != nil {
					writeError(w, http.StatusBadRequest, "order must be a list of ids", nil)
					return
				}
				op.Order = req.Order
			} else {
				op.Body = body
			}
		}

		doc, err := h.Service.Write(r.Context(), d, op)
		if err != nil {
			h.fail(w, d, err)
			return
		}
		status := http.StatusOK
		if kind == OpCreate {
			status = http.StatusCreated
		}
		writeDocument(w, status, doc)
	}
}

func (h *Handler) fail(w http.ResponseWriter, d domain.Domain, err error) {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusUnprocessableEntity, verr.Message, verr.Fields)
	case errors.Is(err, ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error(), nil)
	case errors.Is(err, ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, err.Error(), nil)
	default:
		logging.For("content").Error("content request failed", "domain", d, "error", err)
		writeError(w, http.StatusBadGateway, "content service unavailable", nil)
	}
}

func writeDocument(w http.ResponseWriter, status int, doc json.RawMessage) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(doc)
}

func writeError(w http.ResponseWriter, status int, msg string, fields domain.FieldErrors) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errorBody{Error: msg, Fields: fields})
}
