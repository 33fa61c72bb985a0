package optimistic

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testCell struct {
	mu        sync.Mutex
	value     []string
	published [][]string
	committed [][]string
}

func (c *testCell) Snapshot() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.value...)
}

func (c *testCell) Publish(v []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value = v
	c.published = append(c.published, v)
}

func (c *testCell) Commit(v []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value = v
	c.committed = append(c.committed, v)
}

func appendItem(item string) Transform[[]string] {
	return func(prev []string) ([]string, error) {
		return append(append([]string(nil), prev...), item), nil
	}
}

func resolveWith(v []string, err error) Write[[]string] {
	return func(context.Context) ([]string, error) { return v, err }
}

func TestCommitPublishesAuthoritativeResult(t *testing.T) {
	cell := &testCell{value: []string{"A", "B"}}
	release := make(chan struct{})
	write := func(context.Context) ([]string, error) {
		<-release
		return []string{"A", "B", "C'"}, nil
	}

	m, err := Begin(cell, appendItem("C"), write, Info{Store: "projects", Kind: "create"})
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C"}, cell.Snapshot())

	close(release)
	got, err := m.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C'"}, got)
	assert.Equal(t, []string{"A", "B", "C'"}, cell.Snapshot())
	assert.Len(t, cell.committed, 1)
}

func TestRollbackRestoresPrevious(t *testing.T) {
	cell := &testCell{value: []string{"A", "B"}}
	boom := errors.New("boom")

	_, err := Apply(context.Background(), cell, appendItem("C"), resolveWith(nil, boom), Info{Store: "projects", Kind: "create"})
	require.Error(t, err)

	var rb *RollbackError
	require.ErrorAs(t, err, &rb)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, "projects", rb.Store)
	assert.Equal(t, []string{"A", "B"}, cell.Snapshot())
	assert.Empty(t, cell.committed)
}

func TestTransformErrorPublishesNothing(t *testing.T) {
	cell := &testCell{value: []string{"A"}}
	invalid := errors.New("invalid")
	called := false

	_, err := Apply(context.Background(), cell,
		func([]string) ([]string, error) { return nil, invalid },
		func(context.Context) ([]string, error) { called = true; return nil, nil },
		Info{Store: "projects", Kind: "update"})
	assert.ErrorIs(t, err, invalid)
	assert.False(t, called)
	assert.Empty(t, cell.published)
}

func TestAwaitTwice(t *testing.T) {
	cell := &testCell{}
	m, err := Begin(cell, appendItem("A"), resolveWith([]string{"A"}, nil), Info{})
	require.NoError(t, err)

	_, err = m.Await(context.Background())
	require.NoError(t, err)
	_, err = m.Await(context.Background())
	assert.ErrorIs(t, err, ErrAlreadyAwaited)
}

func TestCancelledContextDoesNotAbortWrite(t *testing.T) {
	cell := &testCell{value: []string{"A"}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	write := func(ctx context.Context) ([]string, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return []string{"A", "B"}, nil
	}
	got, err := Apply(ctx, cell, appendItem("B"), write, Info{})
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, got)
}

func TestConcurrentMutationsLastCompletionWins(t *testing.T) {
	cell := &testCell{value: []string{"A"}}
	firstDone := make(chan struct{})

	first, err := Begin(cell, appendItem("B"), func(context.Context) ([]string, error) {
		<-firstDone
		return nil, errors.New("rejected")
	}, Info{Kind: "create"})
	require.NoError(t, err)

	second, err := Begin(cell, appendItem("C"), resolveWith([]string{"A", "B", "C"}, nil), Info{Kind: "create"})
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, first.Previous())
	assert.Equal(t, []string{"A", "B"}, second.Previous())

	_, err = second.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C"}, cell.Snapshot())

	close(firstDone)
	_, err = first.Await(context.Background())
	require.Error(t, err)
	// The first mutation rolls back to what it captured, discarding the
	// second mutation's committed state.
	assert.Equal(t, []string{"A"}, cell.Snapshot())
}

func TestMutationIDsAreSortable(t *testing.T) {
	cell := &testCell{}
	first, err := Begin(cell, appendItem("A"), resolveWith(nil, nil), Info{Store: "skills", Kind: "create"})
	require.NoError(t, err)
	second, err := Begin(cell, appendItem("B"), resolveWith(nil, nil), Info{Store: "skills", Kind: "create"})
	require.NoError(t, err)

	a, err := ulid.ParseStrict(first.ID())
	require.NoError(t, err)
	b, err := ulid.ParseStrict(second.ID())
	require.NoError(t, err)
	assert.LessOrEqual(t, a.Time(), b.Time())
	assert.NotEqual(t, first.ID(), second.ID())
}
