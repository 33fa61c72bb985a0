package persist

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oriys/folio/internal/medium"
)

type layout struct {
	Sidebar bool     `json:"sidebar"`
	Pinned  []string `json:"pinned"`
}

func TestRoundTrip(t *testing.T) {
	a := New(medium.NewMemory(0), "folio")
	want := layout{Sidebar: true, Pinned: []string{"projects", "blog"}}

	Write(a, "layout", 3, want)
	got, ok := Read[layout](a, "layout", 3)
	require.True(t, ok)
	assert.Equal(t, want, got)
}

func TestVersionMismatchReadsAsMissing(t *testing.T) {
	a := New(medium.NewMemory(0), "folio")
	Write(a, "layout", 1, layout{Sidebar: true})

	got, ok := Read[layout](a, "layout", 2)
	assert.False(t, ok)
	assert.Equal(t, layout{}, got)

	_, err := Lookup[layout](a, "layout", 2)
	assert.ErrorIs(t, err, ErrSchemaMismatch)
}

func TestEnvelopeFormat(t *testing.T) {
	m := medium.NewMemory(0)
	at := time.Date(2026, 5, 1, 9, 30, 0, 0, time.UTC)
	a := New(m, "folio", WithClock(func() time.Time { return at }))

	Write(a, "theme", 2, "dark")
	raw, err := m.Get(context.Background(), "folio:theme")
	require.NoError(t, err)
	assert.JSONEq(t, `{"schemaVersion":2,"payload":"dark","savedAt":"2026-05-01T09:30:00Z"}`, string(raw))

	rec, err := a.Load("theme")
	require.NoError(t, err)
	assert.Equal(t, 2, rec.SchemaVersion)
	assert.True(t, at.Equal(rec.SavedAt))
}

func TestCorruptDataReadsAsMissing(t *testing.T) {
	m := medium.NewMemory(0)
	ctx := context.Background()
	require.NoError(t, m.Set(ctx, "folio:theme", []byte("dark")))
	require.NoError(t, m.Set(ctx, "folio:locale", []byte(`{"payload":"en"}`)))
	a := New(m, "folio")

	_, ok := Read[string](a, "theme", 1)
	assert.False(t, ok)
	_, err := Lookup[string](a, "locale", 1)
	assert.ErrorIs(t, err, ErrCorrupt)

	Write(a, "count", 1, "not a number")
	_, err = Lookup[int](a, "count", 1)
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestUnavailableMediumIsNoOp(t *testing.T) {
	for name, m := range map[string]medium.Medium{
		"disabled": medium.Disabled{},
		"nil":      nil,
	} {
		t.Run(name, func(t *testing.T) {
			a := New(m, "folio")
			assert.NotPanics(t, func() {
				Write(a, "theme", 1, "dark")
				a.Remove("theme")
				a.Clear()
			})
			_, ok := Read[string](a, "theme", 1)
			assert.False(t, ok)
			assert.ErrorIs(t, Store(a, "theme", 1, "dark"), ErrStorageUnavailable)
		})
	}
}

func TestQuotaExceededIsDropped(t *testing.T) {
	a := New(medium.NewMemory(32), "folio")
	Write(a, "big", 1, "this payload is far too large for a 32 byte quota")

	_, ok := Read[string](a, "big", 1)
	assert.False(t, ok)

	err := Store(a, "big", 1, "still too large for the configured quota")
	assert.ErrorIs(t, err, medium.ErrQuotaExceeded)
	assert.Equal(t, "quota", Outcome(err))
}

func TestScopeIsolatesNamespaces(t *testing.T) {
	m := medium.NewMemory(0)
	root := New(m, "folio")
	prefs := root.Scope("prefs")
	session := root.Scope("session")

	Write(prefs, "theme", 1, "dark")
	Write(session, "theme", 1, "light")
	assert.Equal(t, "folio:prefs", prefs.Namespace())

	got, ok := Read[string](prefs, "theme", 1)
	require.True(t, ok)
	assert.Equal(t, "dark", got)

	keys, err := prefs.Keys()
	require.NoError(t, err)
	assert.Equal(t, []string{"theme"}, keys)

	prefs.Clear()
	_, ok = Read[string](prefs, "theme", 1)
	assert.False(t, ok)
	_, ok = Read[string](session, "theme", 1)
	assert.True(t, ok)
}

func TestScopeNamesCannotCollide(t *testing.T) {
	m := medium.NewMemory(0)
	root := New(m, "folio")

	Write(root.Scope("prefs"), "theme:mode", 1, "from-prefs")
	Write(root.Scope("prefs:theme"), "mode", 1, "from-nested")

	got, ok := Read[string](root.Scope("prefs"), "theme:mode", 1)
	require.True(t, ok)
	assert.Equal(t, "from-prefs", got)
	got, ok = Read[string](root.Scope("prefs:theme"), "mode", 1)
	require.True(t, ok)
	assert.Equal(t, "from-nested", got)

	keys, err := root.Scope("prefs").Keys()
	require.NoError(t, err)
	assert.Equal(t, []string{"theme:mode"}, keys)
}

func TestKeysSkipNestedScopes(t *testing.T) {
	root := New(medium.NewMemory(0), "folio")
	Write(root, "intro", 1, true)
	Write(root.Scope("prefs"), "theme", 1, "dark")

	keys, err := root.Keys()
	require.NoError(t, err)
	assert.Equal(t, []string{"intro"}, keys)

	root.Clear()
	_, ok := Read[string](root.Scope("prefs"), "theme", 1)
	assert.True(t, ok)
}

func TestRemove(t *testing.T) {
	a := New(medium.NewMemory(0), "folio")
	Write(a, "intro", 1, true)
	a.Remove("intro")
	_, err := a.Load("intro")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestOutcome(t *testing.T) {
	assert.Equal(t, "ok", Outcome(nil))
	assert.Equal(t, "miss", Outcome(ErrNotFound))
	assert.Equal(t, "unavailable", Outcome(ErrStorageUnavailable))
	assert.Equal(t, "schema_mismatch", Outcome(ErrSchemaMismatch))
	assert.Equal(t, "corrupt", Outcome(ErrCorrupt))
}
