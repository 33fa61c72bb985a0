package entity

import (
	"context"
	"fmt"

	"github.com/oriys/folio/internal/content"
	"github.com/oriys/folio/internal/domain"
	"github.com/oriys/folio/internal/optimistic"
)

// Document is a content type held as a single value.
type Document[T any] interface {
	domain.Validator
	domain.Cloner[T]
}

// DocumentStore is a Store over a single document.
type DocumentStore[T Document[T]] struct {
	*Store[T]
	svc    content.Service
	domain domain.Domain
}

// NewDocument returns the store for document domain d.
func NewDocument[T Document[T]](svc content.Service, d domain.Domain) *DocumentStore[T] {
	if d.IsCollection() {
		panic(fmt.Sprintf("entity: %s is a collection domain", d))
	}
	return &DocumentStore[T]{
		Store: New(Config[T]{
			Name:  string(d),
			Load:  content.Loader[T](svc, d),
			Clone: func(v T) T { return v.Clone() },
		}),
		svc:    svc,
		domain: d,
	}
}

// Domain returns the content domain the store mirrors.
func (s *DocumentStore[T]) Domain() domain.Domain { return s.domain }

// Replace publishes doc and writes it.
func (s *DocumentStore[T]) Replace(ctx context.Context, doc T) (T, error) {
	if err := doc.Validate(); err != nil {
		var zero T
		return zero, content.AsValidation(s.domain, err)
	}
	op, err := content.ReplaceOp(doc)
	if err != nil {
		var zero T
		return zero, err
	}
	return s.Mutate(ctx, optimistic.Replace(doc), content.Writer[T](s.svc, s.domain, op), string(content.OpReplace), "")
}
