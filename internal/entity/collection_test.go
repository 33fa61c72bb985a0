package entity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oriys/folio/internal/content"
	"github.com/oriys/folio/internal/domain"
	"github.com/oriys/folio/internal/optimistic"
)

func project(id, title string) domain.Project {
	return domain.Project{ID: id, Title: title, Summary: title + " summary"}
}

func seededProjects(t *testing.T) (*content.MemoryService, *CollectionStore[domain.Project]) {
	t.Helper()
	mem := content.NewMemoryService()
	mem.SetApplier(content.Applier{
		Now:   func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) },
		NewID: func() string { return "c-prime" },
	})
	require.NoError(t, mem.Seed(domain.Projects, []domain.Project{project("a", "A"), project("b", "B")}))

	store := NewCollection[domain.Project](mem, domain.Projects)
	store.Fetch(context.Background())
	require.Equal(t, StatusReady, store.State().Status)
	return mem, store
}

func ids(items []domain.Project) []string {
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = item.ID
	}
	return out
}

func TestCreateIsVisibleBeforeWriteResolves(t *testing.T) {
	mem, store := seededProjects(t)
	release := mem.Hold()

	done := make(chan error, 1)
	go func() {
		_, err := store.Create(context.Background(), project("", "C"))
		done <- err
	}()

	require.Eventually(t, func() bool { return len(store.Snapshot()) == 3 }, time.Second, time.Millisecond)
	tentative := store.Snapshot()
	assert.Equal(t, []string{"a", "b"}, ids(tentative[:2]))
	assert.Equal(t, "C", tentative[2].Title)
	assert.Contains(t, tentative[2].ID, content.TempIDPrefix)

	release()
	require.NoError(t, <-done)

	final := store.Snapshot()
	assert.Equal(t, []string{"a", "b", "c-prime"}, ids(final))
	assert.Equal(t, "C", final[2].Title)
	assert.False(t, final[2].CreatedAt.IsZero())
}

func TestBeginPublishesTentativeSynchronously(t *testing.T) {
	_, store := seededProjects(t)
	release := make(chan struct{})

	m, err := store.Begin(
		func(prev []domain.Project) ([]domain.Project, error) {
			return append(prev, project("tmp-c", "C")), nil
		},
		func(context.Context) ([]domain.Project, error) {
			<-release
			return []domain.Project{project("a", "A"), project("b", "B"), project("c2", "C")}, nil
		},
		"create", "tmp-c")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "tmp-c"}, ids(store.Snapshot()))

	close(release)
	got, err := m.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c2"}, ids(got))
	assert.Equal(t, []string{"a", "b", "c2"}, ids(store.Snapshot()))
}

func TestFailedWriteRestoresSnapshotExactly(t *testing.T) {
	mem, store := seededProjects(t)
	before := store.Snapshot()

	mem.InjectFault(domain.Projects, &content.NetworkError{Domain: domain.Projects, Op: "update", StatusCode: 503})
	_, err := store.Update(context.Background(), "a", project("", "A renamed"))
	require.Error(t, err)

	var rb *optimistic.RollbackError
	require.ErrorAs(t, err, &rb)
	assert.True(t, content.IsNetwork(err))
	assert.Equal(t, before, store.Snapshot())
}

func TestServerValidationRollsBack(t *testing.T) {
	mem, store := seededProjects(t)
	before := store.Snapshot()

	// Client validation passes; the service rejects the write.
	mem.InjectFault(domain.Projects, &content.ValidationError{Domain: domain.Projects, Message: "slug taken"})
	_, err := store.Create(context.Background(), project("", "Dup"))
	assert.True(t, content.IsValidation(err))
	assert.Equal(t, before, store.Snapshot())
}

func TestClientValidationPublishesNothing(t *testing.T) {
	mem, store := seededProjects(t)
	before := store.Snapshot()

	_, err := store.Create(context.Background(), domain.Project{Title: ""})
	var verr *content.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "title")
	assert.Equal(t, before, store.Snapshot())
	assert.Equal(t, 0, mem.Writes(domain.Projects))
}

func TestUnknownItemFailsBeforeWrite(t *testing.T) {
	mem, store := seededProjects(t)

	_, err := store.Update(context.Background(), "zzz", project("", "Z"))
	assert.ErrorIs(t, err, content.ErrNotFound)
	_, err = store.Delete(context.Background(), "zzz")
	assert.ErrorIs(t, err, content.ErrNotFound)
	assert.Equal(t, 0, mem.Writes(domain.Projects))
}

func TestDeleteAndReorder(t *testing.T) {
	_, store := seededProjects(t)
	ctx := context.Background()

	got, err := store.Reorder(ctx, []string{"b", "a"})
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, ids(got))

	_, err = store.Reorder(ctx, []string{"b"})
	assert.True(t, content.IsValidation(err))
	assert.Equal(t, []string{"b", "a"}, ids(store.Snapshot()))

	got, err = store.Delete(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, ids(got))

	item, ok := store.Item("a")
	require.True(t, ok)
	assert.Equal(t, "A", item.Title)
	_, ok = store.Item("b")
	assert.False(t, ok)
}

func TestSnapshotIsACopy(t *testing.T) {
	mem := content.NewMemoryService()
	a := project("a", "A")
	a.Tags = []string{"go", "cli"}
	require.NoError(t, mem.Seed(domain.Projects, []domain.Project{a}))
	store := NewCollection[domain.Project](mem, domain.Projects)
	store.Fetch(context.Background())

	snap := store.Snapshot()
	snap[0].Title = "mutated"
	snap[0].Tags[0] = "changed"
	got := store.Snapshot()
	assert.Equal(t, "A", got[0].Title)
	assert.Equal(t, []string{"go", "cli"}, got[0].Tags)
}

func TestCallerValuesAreNotRetained(t *testing.T) {
	mem := content.NewMemoryService()
	store := NewCollection[domain.Project](mem, domain.Projects)
	ctx := context.Background()

	item := domain.Project{Title: "New", Summary: "Thing", Tags: []string{"go"}}
	out, err := store.Create(ctx, item)
	require.NoError(t, err)
	item.Tags[0] = "changed"
	out[0].Tags[0] = "changed"
	assert.Equal(t, []string{"go"}, store.Snapshot()[0].Tags)
}

func TestRollbackRestoresUncorruptedSnapshot(t *testing.T) {
	mem, store := seededProjects(t)
	ctx := context.Background()
	_, err := store.Update(ctx, "a", domain.Project{Title: "A", Summary: "A summary", Tags: []string{"go"}})
	require.NoError(t, err)

	mem.InjectFault(domain.Projects, errors.New("offline"))
	m, err := store.Begin(func(prev []domain.Project) ([]domain.Project, error) {
		prev[0].Tags[0] = "tentative"
		return prev, nil
	}, content.Writer[[]domain.Project](mem, domain.Projects, content.DeleteOp("b")), "update", "a")
	require.NoError(t, err)
	assert.Equal(t, "tentative", store.Snapshot()[0].Tags[0])

	_, err = m.Await(ctx)
	require.Error(t, err)
	assert.Equal(t, []string{"go"}, store.Snapshot()[0].Tags)
}

func TestDocumentSnapshotIsACopy(t *testing.T) {
	mem := content.NewMemoryService()
	require.NoError(t, mem.Seed(domain.Hero, domain.HeroSection{Name: "Ada", Headline: "Builds", Roles: []string{"engineer"}}))
	store := NewDocument[domain.HeroSection](mem, domain.Hero)
	ctx := context.Background()
	store.Fetch(ctx)

	snap := store.Snapshot()
	snap.Roles[0] = "changed"
	assert.Equal(t, []string{"engineer"}, store.Snapshot().Roles)

	doc := domain.HeroSection{Name: "Ada", Headline: "Builds", Roles: []string{"writer"}}
	_, err := store.Replace(ctx, doc)
	require.NoError(t, err)
	doc.Roles[0] = "changed"
	assert.Equal(t, []string{"writer"}, store.Snapshot().Roles)
}

func TestMutationWithoutFetchMarksReady(t *testing.T) {
	mem := content.NewMemoryService()
	store := NewCollection[domain.Skill](mem, domain.Skills)

	_, err := store.Create(context.Background(), domain.Skill{Name: "Go", Level: 80})
	require.NoError(t, err)
	st := store.State()
	assert.Equal(t, StatusReady, st.Status)
	assert.True(t, st.FetchedOnce)

	store.Fetch(context.Background())
	assert.Equal(t, 0, mem.Fetches(domain.Skills))
}

func TestDocumentReplace(t *testing.T) {
	mem := content.NewMemoryService()
	require.NoError(t, mem.Seed(domain.About, domain.AboutSection{Bio: "old"}))
	store := NewDocument[domain.AboutSection](mem, domain.About)
	ctx := context.Background()

	store.Fetch(ctx)
	assert.Equal(t, "old", store.Snapshot().Bio)

	got, err := store.Replace(ctx, domain.AboutSection{Bio: "new"})
	require.NoError(t, err)
	assert.Equal(t, "new", got.Bio)

	mem.InjectFault(domain.About, errors.New("offline"))
	_, err = store.Replace(ctx, domain.AboutSection{Bio: "newer"})
	require.Error(t, err)
	assert.Equal(t, "new", store.Snapshot().Bio)

	_, err = store.Replace(ctx, domain.AboutSection{})
	assert.True(t, content.IsValidation(err))
}
