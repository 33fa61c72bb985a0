// Package content is the client side of the remote content service: the
// contract entity stores load from and write to, its error taxonomy, and
// the concrete services (HTTP API, Postgres, in-memory).
//
// Every write returns the authoritative post-write representation of the
// whole domain document: the full collection for collection domains, the
// single document otherwise.
package content

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/oriys/folio/internal/domain"
)

// Service is the remote content service as seen by the stores.
type Service interface {
	// Fetch returns the current document for d.
	Fetch(ctx context.Context, d domain.Domain) (json.RawMessage, error)
	// Write applies op to d and returns the authoritative document.
	Write(ctx context.Context, d domain.Domain, op Op) (json.RawMessage, error)
}

// OpKind names a write operation.
type OpKind string

const (
	OpCreate  OpKind = "create"
	OpUpdate  OpKind = "update"
	OpDelete  OpKind = "delete"
	OpReorder OpKind = "reorder"
	OpReplace OpKind = "replace"
)

// Op is one write against a domain document.
type Op struct {
	Kind  OpKind          `json:"kind"`
	ID    string          `json:"id,omitempty"`
	Body  json.RawMessage `json:"body,omitempty"`
	Order []string        `json:"order,omitempty"`
}

// CreateOp adds item to a collection.
func CreateOp(item any) (Op, error) {
	body, err := json.Marshal(item)
	if err != nil {
		return Op{}, fmt.Errorf("encode item: %w", err)
	}
	return Op{Kind: OpCreate, Body: body}, nil
}

// UpdateOp replaces the collection item id with item.
func UpdateOp(id string, item any) (Op, error) {
	body, err := json.Marshal(item)
	if err != nil {
		return Op{}, fmt.Errorf("encode item: %w", err)
	}
	return Op{Kind: OpUpdate, ID: id, Body: body}, nil
}

// DeleteOp removes the collection item id.
func DeleteOp(id string) Op {
	return Op{Kind: OpDelete, ID: id}
}

// ReorderOp sets the display order of a collection.
func ReorderOp(ids []string) Op {
	return Op{Kind: OpReorder, Order: append([]string(nil), ids...)}
}

// ReplaceOp replaces the whole document.
func ReplaceOp(doc any) (Op, error) {
	body, err := json.Marshal(doc)
	if err != nil {
		return Op{}, fmt.Errorf("encode document: %w", err)
	}
	return Op{Kind: OpReplace, Body: body}, nil
}

// Check rejects ops that can never apply to d.
func (o Op) Check(d domain.Domain) error {
	switch o.Kind {
	case OpCreate:
		if !d.IsCollection() {
			return invalidOp(d, o)
		}
		if len(o.Body) == 0 {
			return &ValidationError{Domain: d, Message: "create requires a body"}
		}
	case OpUpdate:
		if !d.IsCollection() {
			return invalidOp(d, o)
		}
		if o.ID == "" || len(o.Body) == 0 {
			return &ValidationError{Domain: d, Message: "update requires an id and a body"}
		}
	case OpDelete:
		if !d.IsCollection() {
			return invalidOp(d, o)
		}
		if o.ID == "" {
			return &ValidationError{Domain: d, Message: "delete requires an id"}
		}
	case OpReorder:
		if !d.IsCollection() {
			return invalidOp(d, o)
		}
	case OpReplace:
		if len(o.Body) == 0 {
			return &ValidationError{Domain: d, Message: "replace requires a body"}
		}
	default:
		return invalidOp(d, o)
	}
	return nil
}

func invalidOp(d domain.Domain, o Op) error {
	return &ValidationError{
		Domain:  d,
		Message: fmt.Sprintf("operation %q is not supported for %s", o.Kind, d),
		Fields:  domain.FieldErrors{"kind": "unsupported"},
	}
}

// Decode converts a service document into T. A document that does not
// decode is an upstream failure and is reported as a NetworkError.
func Decode[T any](d domain.Domain, raw json.RawMessage) (T, error) {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, &NetworkError{Domain: d, Op: "decode", Err: err}
	}
	return v, nil
}

// Loader returns a typed fetch function for d.
func Loader[T any](svc Service, d domain.Domain) func(context.Context) (T, error) {
	return func(ctx context.Context) (T, error) {
		raw, err := svc.Fetch(ctx, d)
		if err != nil {
			var zero T
			return zero, err
		}
		return Decode[T](d, raw)
	}
}

// Writer returns a typed write function applying op to d.
func Writer[T any](svc Service, d domain.Domain, op Op) func(context.Context) (T, error) {
	return func(ctx context.Context) (T, error) {
		raw, err := svc.Write(ctx, d, op)
		if err != nil {
			var zero T
			return zero, err
		}
		return Decode[T](d, raw)
	}
}
