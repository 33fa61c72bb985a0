package entity

import (
	"context"
	"fmt"
	"slices"

	"github.com/google/uuid"

	"github.com/oriys/folio/internal/content"
	"github.com/oriys/folio/internal/domain"
	"github.com/oriys/folio/internal/optimistic"
)

// CollectionStore is a Store over a list of identified items.
type CollectionStore[T domain.Item[T]] struct {
	*Store[[]T]
	svc    content.Service
	domain domain.Domain
	tempID func() string
}

// NewCollection returns the store for collection domain d.
func NewCollection[T domain.Item[T]](svc content.Service, d domain.Domain) *CollectionStore[T] {
	if !d.IsCollection() {
		panic(fmt.Sprintf("entity: %s is not a collection domain", d))
	}
	return &CollectionStore[T]{
		Store: New(Config[[]T]{
			Name:    string(d),
			Load:    content.Loader[[]T](svc, d),
			Clone:   domain.CloneItems[T],
			Initial: []T{},
		}),
		svc:    svc,
		domain: d,
		tempID: func() string { return content.TempIDPrefix + uuid.NewString() },
	}
}

// Domain returns the content domain the store mirrors.
func (c *CollectionStore[T]) Domain() domain.Domain { return c.domain }

// Item returns the item with id from the current snapshot.
func (c *CollectionStore[T]) Item(id string) (T, bool) {
	items := c.Snapshot()
	if i := index(items, id); i >= 0 {
		return items[i], true
	}
	var zero T
	return zero, false
}

// Create appends item under a temporary id, then replaces the collection
// with the service's result, which carries the assigned id.
func (c *CollectionStore[T]) Create(ctx context.Context, item T) ([]T, error) {
	if err := item.Validate(); err != nil {
		return nil, content.AsValidation(c.domain, err)
	}
	tentative := item.WithID(c.tempID())
	op, err := content.CreateOp(tentative)
	if err != nil {
		return nil, err
	}
	return c.Mutate(ctx, func(prev []T) ([]T, error) {
		return append(slices.Clone(prev), tentative), nil
	}, content.Writer[[]T](c.svc, c.domain, op), string(content.OpCreate), tentative.ItemID())
}

// Update replaces the item with id.
func (c *CollectionStore[T]) Update(ctx context.Context, id string, item T) ([]T, error) {
	if err := item.Validate(); err != nil {
		return nil, content.AsValidation(c.domain, err)
	}
	item = item.WithID(id)
	op, err := content.UpdateOp(id, item)
	if err != nil {
		return nil, err
	}
	return c.Mutate(ctx, func(prev []T) ([]T, error) {
		i := index(prev, id)
		if i < 0 {
			return nil, c.notFound(id)
		}
		next := slices.Clone(prev)
		next[i] = item
		return next, nil
	}, content.Writer[[]T](c.svc, c.domain, op), string(content.OpUpdate), id)
}

// Delete removes the item with id.
func (c *CollectionStore[T]) Delete(ctx context.Context, id string) ([]T, error) {
	return c.Mutate(ctx, func(prev []T) ([]T, error) {
		i := index(prev, id)
		if i < 0 {
			return nil, c.notFound(id)
		}
		return slices.Delete(slices.Clone(prev), i, i+1), nil
	}, content.Writer[[]T](c.svc, c.domain, content.DeleteOp(id)), string(content.OpDelete), id)
}

// Reorder sets the display order. ids must name every current item once.
func (c *CollectionStore[T]) Reorder(ctx context.Context, ids []string) ([]T, error) {
	return c.Mutate(ctx, func(prev []T) ([]T, error) {
		return c.permute(prev, ids)
	}, content.Writer[[]T](c.svc, c.domain, content.ReorderOp(ids)), string(content.OpReorder), "")
}

// Replace swaps the whole collection.
func (c *CollectionStore[T]) Replace(ctx context.Context, items []T) ([]T, error) {
	for _, item := range items {
		if err := item.Validate(); err != nil {
			return nil, content.AsValidation(c.domain, err)
		}
	}
	items = slices.Clone(items)
	op, err := content.ReplaceOp(items)
	if err != nil {
		return nil, err
	}
	return c.Mutate(ctx, optimistic.Replace(items), content.Writer[[]T](c.svc, c.domain, op), string(content.OpReplace), "")
}

func (c *CollectionStore[T]) permute(items []T, ids []string) ([]T, error) {
	invalid := func(msg string) error {
		return &content.ValidationError{
			Domain:  c.domain,
			Message: "order must list every item exactly once",
			Fields:  domain.FieldErrors{"order": msg},
		}
	}
	if len(ids) != len(items) {
		return nil, invalid(fmt.Sprintf("expected %d ids, got %d", len(items), len(ids)))
	}
	out := make([]T, 0, len(items))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		i := index(items, id)
		if i < 0 || seen[id] {
			return nil, invalid(fmt.Sprintf("unexpected id %q", id))
		}
		seen[id] = true
		out = append(out, items[i])
	}
	return out, nil
}

func (c *CollectionStore[T]) notFound(id string) error {
	return fmt.Errorf("%w: %s item %q", content.ErrNotFound, c.domain, id)
}

func index[T domain.Item[T]](items []T, id string) int {
	return slices.IndexFunc(items, func(item T) bool { return item.ItemID() == id })
}
