package entity

import (
	"context"
	"encoding/json"

	"github.com/oriys/folio/internal/content"
	"github.com/oriys/folio/internal/domain"
)

// Entity is the untyped view of a store used by tooling.
type Entity interface {
	Name() string
	Domain() domain.Domain
	Fetch(ctx context.Context)
	Invalidate()
	State() State
	MarshalSnapshot() ([]byte, error)
}

// CollectionView adds JSON mutation entry points for collection stores.
type CollectionView interface {
	Entity
	CreateJSON(ctx context.Context, raw []byte) ([]byte, error)
	UpdateJSON(ctx context.Context, id string, raw []byte) ([]byte, error)
	DeleteJSON(ctx context.Context, id string) ([]byte, error)
	ReorderJSON(ctx context.Context, ids []string) ([]byte, error)
}

// DocumentView adds the JSON replace entry point for document stores.
type DocumentView interface {
	Entity
	ReplaceJSON(ctx context.Context, raw []byte) ([]byte, error)
}

var (
	_ CollectionView = (*CollectionStore[domain.Project])(nil)
	_ DocumentView   = (*DocumentStore[domain.HeroSection])(nil)
)

// MarshalSnapshot encodes the current snapshot as JSON.
func (s *Store[T]) MarshalSnapshot() ([]byte, error) {
	return json.Marshal(s.Snapshot())
}

func (c *CollectionStore[T]) CreateJSON(ctx context.Context, raw []byte) ([]byte, error) {
	item, err := decodeBody[T](c.domain, raw)
	if err != nil {
		return nil, err
	}
	return encodeResult(c.Create(ctx, item))
}

func (c *CollectionStore[T]) UpdateJSON(ctx context.Context, id string, raw []byte) ([]byte, error) {
	item, err := decodeBody[T](c.domain, raw)
	if err != nil {
		return nil, err
	}
	return encodeResult(c.Update(ctx, id, item))
}

func (c *CollectionStore[T]) DeleteJSON(ctx context.Context, id string) ([]byte, error) {
	return encodeResult(c.Delete(ctx, id))
}

func (c *CollectionStore[T]) ReorderJSON(ctx context.Context, ids []string) ([]byte, error) {
	return encodeResult(c.Reorder(ctx, ids))
}

func (s *DocumentStore[T]) ReplaceJSON(ctx context.Context, raw []byte) ([]byte, error) {
	doc, err := decodeBody[T](s.domain, raw)
	if err != nil {
		return nil, err
	}
	return encodeResult(s.Replace(ctx, doc))
}

func decodeBody[T any](d domain.Domain, raw []byte) (T, error) {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, &content.ValidationError{Domain: d, Fields: domain.FieldErrors{"body": "malformed JSON: " + err.Error()}}
	}
	return v, nil
}

func encodeResult[T any](v T, err error) ([]byte, error) {
	if err != nil {
		return nil, err
	}
	return json.Marshal(v)
}
