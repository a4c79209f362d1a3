package registry

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stratusmedia/cedrus/pkg/snapshot"
	"github.com/stratusmedia/cedrus/pkg/types"
)

func newID(t *testing.T) types.ProjectID {
	t.Helper()
	id, err := types.NewProjectID()
	require.NoError(t, err)
	return id
}

func TestGetMissingReturnsNil(t *testing.T) {
	r := New()
	assert.Nil(t, r.Get(newID(t)))
}

func TestPutThenGet(t *testing.T) {
	r := New()
	id := newID(t)
	snap := snapshot.New(id)
	r.Put(snap)

	got := r.Get(id)
	require.NotNil(t, got)
	assert.Equal(t, id, got.ProjectID)
}

func TestRemove(t *testing.T) {
	r := New()
	id := newID(t)
	r.Put(snapshot.New(id))
	r.Remove(id)
	assert.Nil(t, r.Get(id))
}

func TestProjectsListsEveryHeldProject(t *testing.T) {
	r := New()
	a, b := newID(t), newID(t)
	r.Put(snapshot.New(a))
	r.Put(snapshot.New(b))

	ids := r.Projects()
	assert.ElementsMatch(t, []types.ProjectID{a, b}, ids)
}

func TestMutateOnEmptyRegistryReceivesNil(t *testing.T) {
	r := New()
	id := newID(t)

	var sawNil bool
	err := r.Mutate(id, func(current *snapshot.Snapshot) (*snapshot.Snapshot, error) {
		sawNil = current == nil
		next := snapshot.CloneOrNew(current, id)
		require.NoError(t, next.Compile())
		return next, nil
	})
	require.NoError(t, err)
	assert.True(t, sawNil)
	assert.NotNil(t, r.Get(id))
}

func TestMutateErrorLeavesRegistryUnchanged(t *testing.T) {
	r := New()
	id := newID(t)
	original := snapshot.New(id)
	require.NoError(t, original.Compile())
	r.Put(original)

	wantErr := assert.AnError
	err := r.Mutate(id, func(current *snapshot.Snapshot) (*snapshot.Snapshot, error) {
		return nil, wantErr
	})
	assert.ErrorIs(t, err, wantErr)
	assert.Same(t, original, r.Get(id))
}

// TestMutateSerializesSameProject exercises the per-project write lock: two
// concurrent Mutate calls on the same project must never interleave, so the
// counter each closure increments never races.
func TestMutateSerializesSameProject(t *testing.T) {
	r := New()
	id := newID(t)
	r.Put(snapshot.New(id))

	const n = 50
	var wg sync.WaitGroup
	counter := 0
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = r.Mutate(id, func(current *snapshot.Snapshot) (*snapshot.Snapshot, error) {
				counter++
				return current, nil
			})
		}()
	}
	wg.Wait()
	assert.Equal(t, n, counter)
}

// TestMutateDifferentProjectsRunConcurrently exercises that writers to
// distinct projects don't serialize behind a shared lock: both mutate
// calls must be able to make progress even while one blocks on a gate.
func TestMutateDifferentProjectsRunConcurrently(t *testing.T) {
	r := New()
	a, b := newID(t), newID(t)
	r.Put(snapshot.New(a))
	r.Put(snapshot.New(b))

	gate := make(chan struct{})
	done := make(chan struct{})

	go func() {
		_ = r.Mutate(a, func(current *snapshot.Snapshot) (*snapshot.Snapshot, error) {
			<-gate
			return current, nil
		})
		close(done)
	}()

	// This mutate on a different project must not block on a's gate.
	err := r.Mutate(b, func(current *snapshot.Snapshot) (*snapshot.Snapshot, error) {
		return current, nil
	})
	require.NoError(t, err)

	close(gate)
	<-done
}
