// Package registry builds the single set of entity stores an application
// session uses and hands it to whatever needs it. Nothing in this module
// reaches stores through globals.
package registry

import (
	"context"
	"fmt"

	"github.com/oriys/folio/internal/bootstrap"
	"github.com/oriys/folio/internal/content"
	"github.com/oriys/folio/internal/domain"
	"github.com/oriys/folio/internal/entity"
	"github.com/oriys/folio/internal/medium"
	"github.com/oriys/folio/internal/persist"
	"github.com/oriys/folio/internal/prefs"
)

// Options configures New.
type Options struct {
	Content content.Service
	// Session and Durable back the preferences store. Nil adapters fall
	// back to an in-memory medium.
	Session *persist.Adapter
	Durable *persist.Adapter
	Prefs   []prefs.Option
}

// Registry owns one store per content domain plus the preferences store.
type Registry struct {
	Hero         *entity.DocumentStore[domain.HeroSection]
	About        *entity.DocumentStore[domain.AboutSection]
	Projects     *entity.CollectionStore[domain.Project]
	Skills       *entity.CollectionStore[domain.Skill]
	Blog         *entity.CollectionStore[domain.BlogPost]
	Resume       *entity.DocumentStore[domain.ResumeDocument]
	Testimonials *entity.CollectionStore[domain.Testimonial]
	SiteSettings *entity.DocumentStore[domain.Settings]
	Prefs        *prefs.Store

	entities map[domain.Domain]entity.Entity
}

// New builds every store against opts.Content.
func New(opts Options) (*Registry, error) {
	if opts.Content == nil {
		return nil, fmt.Errorf("registry: content service is required")
	}
	if opts.Session == nil {
		opts.Session = persist.New(medium.NewMemory(0), "folio")
	}
	if opts.Durable == nil {
		opts.Durable = persist.New(medium.NewMemory(0), "folio")
	}

	svc := opts.Content
	r := &Registry{
		Hero:         entity.NewDocument[domain.HeroSection](svc, domain.Hero),
		About:        entity.NewDocument[domain.AboutSection](svc, domain.About),
		Projects:     entity.NewCollection[domain.Project](svc, domain.Projects),
		Skills:       entity.NewCollection[domain.Skill](svc, domain.Skills),
		Blog:         entity.NewCollection[domain.BlogPost](svc, domain.Blog),
		Resume:       entity.NewDocument[domain.ResumeDocument](svc, domain.Resume),
		Testimonials: entity.NewCollection[domain.Testimonial](svc, domain.Testimonials),
		SiteSettings: entity.NewDocument[domain.Settings](svc, domain.SiteSettings),
		Prefs:        prefs.New(opts.Session, opts.Durable, opts.Prefs...),
	}
	r.entities = map[domain.Domain]entity.Entity{
		domain.Hero:         r.Hero,
		domain.About:        r.About,
		domain.Projects:     r.Projects,
		domain.Skills:       r.Skills,
		domain.Blog:         r.Blog,
		domain.Resume:       r.Resume,
		domain.Testimonials: r.Testimonials,
		domain.SiteSettings: r.SiteSettings,
	}
	return r, nil
}

// Entities returns every content store in domain order.
func (r *Registry) Entities() []entity.Entity {
	out := make([]entity.Entity, 0, len(r.entities))
	for _, d := range domain.All() {
		out = append(out, r.entities[d])
	}
	return out
}

// Fetchers returns every content store as a bootstrap target.
func (r *Registry) Fetchers() []bootstrap.Fetcher {
	out := make([]bootstrap.Fetcher, 0, len(r.entities))
	for _, e := range r.Entities() {
		out = append(out, e)
	}
	return out
}

// Lookup returns the store for d.
func (r *Registry) Lookup(d domain.Domain) (entity.Entity, error) {
	e, ok := r.entities[d]
	if !ok {
		return nil, fmt.Errorf("registry: unknown domain %q", d)
	}
	return e, nil
}

// Retry discards the fetch-once guard of d's store and fetches again.
func (r *Registry) Retry(ctx context.Context, d domain.Domain) error {
	e, err := r.Lookup(d)
	if err != nil {
		return err
	}
	e.Invalidate()
	e.Fetch(ctx)
	return nil
}

// FetchAll fetches every store concurrently and waits for all of them or
// ctx. It is for tools that need every store settled; the admin surface
// uses bootstrap instead.
func (r *Registry) FetchAll(ctx context.Context) {
	done := make(chan struct{}, len(r.entities))
	for _, e := range r.Entities() {
		go func(e entity.Entity) {
			defer func() { done <- struct{}{} }()
			e.Fetch(ctx)
		}(e)
	}
	for range r.entities {
		select {
		case <-done:
		case <-ctx.Done():
			return
		}
	}
}

func (r *Registry) collection(d domain.Domain) (entity.CollectionView, error) {
	e, err := r.Lookup(d)
	if err != nil {
		return nil, err
	}
	c, ok := e.(entity.CollectionView)
	if !ok {
		return nil, &content.ValidationError{Domain: d, Message: d.String() + " is a single document, not a collection"}
	}
	return c, nil
}

// CreateItem decodes raw as an item of d and creates it.
func (r *Registry) CreateItem(ctx context.Context, d domain.Domain, raw []byte) ([]byte, error) {
	c, err := r.collection(d)
	if err != nil {
		return nil, err
	}
	return c.CreateJSON(ctx, raw)
}

// UpdateItem decodes raw as an item of d and replaces item id with it.
func (r *Registry) UpdateItem(ctx context.Context, d domain.Domain, id string, raw []byte) ([]byte, error) {
	c, err := r.collection(d)
	if err != nil {
		return nil, err
	}
	return c.UpdateJSON(ctx, id, raw)
}

// DeleteItem removes item id from d.
func (r *Registry) DeleteItem(ctx context.Context, d domain.Domain, id string) ([]byte, error) {
	c, err := r.collection(d)
	if err != nil {
		return nil, err
	}
	return c.DeleteJSON(ctx, id)
}

// ReorderItems sets the order of d.
func (r *Registry) ReorderItems(ctx context.Context, d domain.Domain, ids []string) ([]byte, error) {
	c, err := r.collection(d)
	if err != nil {
		return nil, err
	}
	return c.ReorderJSON(ctx, ids)
}

// ReplaceDocument decodes raw as the document of d and replaces it.
func (r *Registry) ReplaceDocument(ctx context.Context, d domain.Domain, raw []byte) ([]byte, error) {
	e, err := r.Lookup(d)
	if err != nil {
		return nil, err
	}
	doc, ok := e.(entity.DocumentView)
	if !ok {
		return nil, &content.ValidationError{Domain: d, Message: d.String() + " is a collection; use item commands"}
	}
	return doc.ReplaceJSON(ctx, raw)
}
