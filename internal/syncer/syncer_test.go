package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AnshRaj112/thriftit-backend/internal/errs"
	"github.com/AnshRaj112/thriftit-backend/internal/models"
	"github.com/AnshRaj112/thriftit-backend/internal/network"
	"github.com/AnshRaj112/thriftit-backend/internal/remote"
)

type fakeLocal struct {
	mu    sync.Mutex
	items map[string]models.Item
}

func newFakeLocal(items ...models.Item) *fakeLocal {
	f := &fakeLocal{items: map[string]models.Item{}}
	for _, it := range items {
		f.items[it.ID] = it
	}
	return f
}

func (f *fakeLocal) ListAvailable(context.Context) ([]models.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Item
	for _, it := range f.items {
		if it.IsAvailable {
			out = append(out, it)
		}
	}
	return out, nil
}

func (f *fakeLocal) GetByID(_ context.Context, id string) (models.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	it, ok := f.items[id]
	if !ok {
		return models.Item{}, fmt.Errorf("item %s: %w", id, errs.ErrNotFound)
	}
	return it, nil
}

func (f *fakeLocal) Upsert(_ context.Context, it models.Item) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items[it.ID] = it
	return nil
}

func (f *fakeLocal) DeleteByID(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.items, id)
	return nil
}

type countingNotifier struct{ n int }

func (c *countingNotifier) Notify() { c.n++ }

func TestReconciler_KeepsPendingRow(t *testing.T) {
	local := newFakeLocal(models.Item{ID: "42", Title: "Lamp", Price: 100, PendingUpload: true})
	r := NewReconciler(local, nil)

	n, err := r.Apply(context.Background(), []remote.Change{
		{Kind: remote.ChangeModified, ID: "42", Item: models.Item{ID: "42", Title: "Lamp", Price: 200}},
	})
	require.NoError(t, err)
	assert.Zero(t, n)

	got, _ := local.GetByID(context.Background(), "42")
	assert.Equal(t, 100.0, got.Price)
	assert.True(t, got.PendingUpload)
}

func TestReconciler_PendingRowSurvivesRemoval(t *testing.T) {
	local := newFakeLocal(models.Item{ID: "42", PendingUpload: true})
	r := NewReconciler(local, nil)

	_, err := r.Apply(context.Background(), []remote.Change{
		{Kind: remote.ChangeRemoved, ID: "42"},
		{Kind: remote.ChangeUnavailable, ID: "42", Item: models.Item{ID: "42"}},
	})
	require.NoError(t, err)
	_, err = local.GetByID(context.Background(), "42")
	assert.NoError(t, err)
}

func TestReconciler_AppliesRemoteValues(t *testing.T) {
	local := newFakeLocal(
		models.Item{ID: "old", Price: 1, IsAvailable: true},
		models.Item{ID: "sold", Price: 5, IsAvailable: true},
		models.Item{ID: "gone", Price: 9, IsAvailable: true},
	)
	notifier := &countingNotifier{}
	r := NewReconciler(local, notifier)
	ctx := context.Background()

	n, err := r.Apply(ctx, []remote.Change{
		{Kind: remote.ChangeAdded, ID: "new", Item: models.Item{ID: "new", Price: 3, IsAvailable: true}},
		{Kind: remote.ChangeModified, ID: "old", Item: models.Item{ID: "old", Price: 2, IsAvailable: true}},
		{Kind: remote.ChangeUnavailable, ID: "sold", Item: models.Item{ID: "sold", Price: 5}},
		{Kind: remote.ChangeUnavailable, ID: "never-cached", Item: models.Item{ID: "never-cached"}},
		{Kind: remote.ChangeRemoved, ID: "gone"},
	})
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, 1, notifier.n)

	got, err := local.GetByID(ctx, "new")
	require.NoError(t, err)
	assert.True(t, got.IsSynced)
	assert.False(t, got.PendingUpload)

	got, _ = local.GetByID(ctx, "old")
	assert.Equal(t, 2.0, got.Price)

	got, _ = local.GetByID(ctx, "sold")
	assert.False(t, got.IsAvailable)

	_, err = local.GetByID(ctx, "gone")
	assert.ErrorIs(t, err, errs.ErrNotFound)
	_, err = local.GetByID(ctx, "never-cached")
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestReconciler_EmptyBatchDoesNotNotify(t *testing.T) {
	notifier := &countingNotifier{}
	r := NewReconciler(newFakeLocal(), notifier)
	_, err := r.Apply(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, notifier.n)
}

func TestReconciler_Snapshot(t *testing.T) {
	local := newFakeLocal(models.Item{ID: "42", Price: 100, PendingUpload: true})
	r := NewReconciler(local, nil)

	n, err := r.Snapshot(context.Background(), []models.Item{{ID: "42", Price: 200}, {ID: "7", Price: 7}})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	got, _ := local.GetByID(context.Background(), "42")
	assert.Equal(t, 100.0, got.Price)
}

func TestReconciler_SnapshotPrunesMissedRemovals(t *testing.T) {
	local := newFakeLocal(
		models.Item{ID: "gone", IsAvailable: true, IsSynced: true},
		models.Item{ID: "draft", IsAvailable: true, PendingUpload: true},
		models.Item{ID: "sold-earlier", IsSynced: true},
		models.Item{ID: "kept", Price: 1, IsAvailable: true, IsSynced: true},
	)
	notifier := &countingNotifier{}
	r := NewReconciler(local, notifier)
	ctx := context.Background()

	n, err := r.Snapshot(ctx, []models.Item{{ID: "kept", Price: 2, IsAvailable: true}})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 1, notifier.n)

	_, err = local.GetByID(ctx, "gone")
	assert.ErrorIs(t, err, errs.ErrNotFound)
	_, err = local.GetByID(ctx, "draft")
	assert.NoError(t, err, "pending rows are never pruned")
	_, err = local.GetByID(ctx, "sold-earlier")
	assert.NoError(t, err)
	got, _ := local.GetByID(ctx, "kept")
	assert.Equal(t, 2.0, got.Price)
}

func TestItemSync_InitialSnapshotPrunesStaleRows(t *testing.T) {
	local := newFakeLocal(
		models.Item{ID: "gone", IsAvailable: true, IsSynced: true},
		models.Item{ID: "draft", IsAvailable: true, PendingUpload: true},
	)
	w := &fakeWatcher{
		snapshot: []models.Item{{ID: "1", IsAvailable: true}},
		batches:  [][]remote.Change{{{Kind: remote.ChangeRemoved, ID: "1"}}},
	}
	s := NewItemSync(w, NewReconciler(local, nil))
	ctx := context.Background()

	require.NoError(t, s.Run(ctx))
	_, err := local.GetByID(ctx, "gone")
	assert.ErrorIs(t, err, errs.ErrNotFound)
	_, err = local.GetByID(ctx, "draft")
	assert.NoError(t, err)
	_, err = local.GetByID(ctx, "1")
	assert.ErrorIs(t, err, errs.ErrNotFound, "change batches follow the snapshot")
}

type fakeWatcher struct {
	snapshot []models.Item
	batches  [][]remote.Change
	err      error
	calls    int
}

func (w *fakeWatcher) WatchAvailable(ctx context.Context, onSnapshot func(context.Context, []models.Item) error, handle func(context.Context, []remote.Change) error) error {
	w.calls++
	if err := onSnapshot(ctx, w.snapshot); err != nil {
		return err
	}
	for _, b := range w.batches {
		if err := handle(ctx, b); err != nil {
			return err
		}
	}
	return w.err
}

func TestItemSync_StopsOnSubscriptionErrorAndRestarts(t *testing.T) {
	local := newFakeLocal()
	w := &fakeWatcher{
		snapshot: []models.Item{{ID: "1", IsAvailable: true}},
		err:      errors.New("permission denied"),
	}
	s := NewItemSync(w, NewReconciler(local, nil))
	ctx := context.Background()

	require.True(t, s.Start(ctx))
	select {
	case <-s.Done():
	case <-time.After(time.Second):
		t.Fatal("listener did not stop")
	}
	assert.Eventually(t, func() bool { return !s.Running() }, time.Second, 5*time.Millisecond)
	_, err := local.GetByID(ctx, "1")
	assert.NoError(t, err)

	require.True(t, s.Start(ctx))
	<-s.Done()
	assert.Equal(t, 2, w.calls)
}

type fakeUploader struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (u *fakeUploader) RetryPending(context.Context) (int, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.calls++
	return 1, u.err
}

func (u *fakeUploader) count() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.calls
}

type fakeListener struct {
	mu     sync.Mutex
	starts int
}

func (l *fakeListener) Start(context.Context) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.starts++
	return true
}

func TestPendingSync_RunsOnEachTransitionToAvailable(t *testing.T) {
	up := &fakeUploader{err: errors.New("still failing")}
	lis := &fakeListener{}
	p := NewPendingSync(up, lis)

	statuses := make(chan network.Status, 8)
	for _, s := range []network.Status{
		network.StatusUnavailable,
		network.StatusAvailable,
		network.StatusAvailable,
		network.StatusUnavailable,
		network.StatusAvailable,
	} {
		statuses <- s
	}
	close(statuses)

	p.Run(context.Background(), statuses)
	assert.Equal(t, 2, up.count())
	assert.Equal(t, 2, lis.starts)
}

func TestPendingSync_StopsWithContext(t *testing.T) {
	p := NewPendingSync(&fakeUploader{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx, make(chan network.Status))
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return")
	}
}
