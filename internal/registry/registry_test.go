package registry

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oriys/folio/internal/content"
	"github.com/oriys/folio/internal/domain"
	"github.com/oriys/folio/internal/entity"
)

func newRegistry(t *testing.T) (*content.MemoryService, *Registry) {
	t.Helper()
	mem := content.NewMemoryService()
	require.NoError(t, mem.Seed(domain.Hero, domain.HeroSection{Name: "Ada", Headline: "Engineer"}))
	require.NoError(t, mem.Seed(domain.Projects, []domain.Project{{ID: "p1", Title: "Folio", Summary: "This site"}}))
	r, err := New(Options{Content: mem})
	require.NoError(t, err)
	return mem, r
}

func TestNewRequiresContent(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err)
}

func TestOneStorePerDomain(t *testing.T) {
	_, r := newRegistry(t)
	entities := r.Entities()
	require.Len(t, entities, len(domain.All()))
	for i, d := range domain.All() {
		assert.Equal(t, d, entities[i].Domain())
		e, err := r.Lookup(d)
		require.NoError(t, err)
		assert.Same(t, entities[i], e)
	}
	_, err := r.Lookup("widgets")
	assert.Error(t, err)
}

func TestFetchAll(t *testing.T) {
	mem, r := newRegistry(t)
	mem.InjectFault(domain.Blog, &content.NetworkError{Domain: domain.Blog, Op: "fetch"})

	r.FetchAll(context.Background())
	for _, e := range r.Entities() {
		want := entity.StatusReady
		if e.Domain() == domain.Blog {
			want = entity.StatusFailed
		}
		assert.Equal(t, want, e.State().Status, e.Name())
	}
	assert.Equal(t, "Ada", r.Hero.Snapshot().Name)
}

func TestRetry(t *testing.T) {
	mem, r := newRegistry(t)
	ctx := context.Background()
	mem.InjectFault(domain.Hero, &content.NetworkError{Domain: domain.Hero, Op: "fetch"})

	r.Hero.Fetch(ctx)
	require.Equal(t, entity.StatusFailed, r.Hero.State().Status)

	require.NoError(t, r.Retry(ctx, domain.Hero))
	assert.Equal(t, entity.StatusReady, r.Hero.State().Status)
	assert.Equal(t, 2, mem.Fetches(domain.Hero))
}

func TestJSONMutations(t *testing.T) {
	_, r := newRegistry(t)
	ctx := context.Background()
	r.Projects.Fetch(ctx)

	raw, err := r.CreateItem(ctx, domain.Projects, []byte(`{"title":"Second","summary":"Another"}`))
	require.NoError(t, err)
	var projects []domain.Project
	require.NoError(t, json.Unmarshal(raw, &projects))
	require.Len(t, projects, 2)
	second := projects[1].ID

	_, err = r.UpdateItem(ctx, domain.Projects, second, []byte(`{"title":"Renamed","summary":"Another"}`))
	require.NoError(t, err)
	item, ok := r.Projects.Item(second)
	require.True(t, ok)
	assert.Equal(t, "Renamed", item.Title)

	_, err = r.ReorderItems(ctx, domain.Projects, []string{second, "p1"})
	require.NoError(t, err)
	assert.Equal(t, second, r.Projects.Snapshot()[0].ID)

	_, err = r.DeleteItem(ctx, domain.Projects, "p1")
	require.NoError(t, err)
	assert.Len(t, r.Projects.Snapshot(), 1)

	raw, err = r.ReplaceDocument(ctx, domain.About, []byte(`{"bio":"Hello"}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"bio":"Hello"}`, string(raw))
}

func TestJSONMutationErrors(t *testing.T) {
	_, r := newRegistry(t)
	ctx := context.Background()

	_, err := r.CreateItem(ctx, domain.Hero, []byte(`{}`))
	assert.True(t, content.IsValidation(err))

	_, err = r.ReplaceDocument(ctx, domain.Projects, []byte(`[]`))
	assert.True(t, content.IsValidation(err))

	_, err = r.CreateItem(ctx, domain.Skills, []byte(`{not json`))
	var verr *content.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "body")
}

func TestPrefsDefaultToMemory(t *testing.T) {
	_, r := newRegistry(t)
	require.NoError(t, r.Prefs.Set("theme", "dark"))
	assert.Equal(t, "dark", string(r.Prefs.Theme()))
}
