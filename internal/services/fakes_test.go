package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/AnshRaj112/thriftit-backend/internal/assets"
	"github.com/AnshRaj112/thriftit-backend/internal/errs"
	"github.com/AnshRaj112/thriftit-backend/internal/models"
)

var pngData = append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 64)...)

func png(name string) assets.Source { return assets.Source{Name: name, Data: pngData} }

type fakeNet struct{ online atomic.Bool }

func newNet(online bool) *fakeNet {
	n := &fakeNet{}
	n.online.Store(online)
	return n
}

func (n *fakeNet) Online() bool { return n.online.Load() }

type fakeFeed struct{ n atomic.Int32 }

func (f *fakeFeed) Notify() { f.n.Add(1) }

// itemMap is shared by the local and remote item fakes.
type itemMap struct {
	mu    sync.Mutex
	items map[string]models.Item
	err   error
}

func newItemMap(items ...models.Item) *itemMap {
	m := &itemMap{items: map[string]models.Item{}}
	for _, it := range items {
		m.items[it.ID] = it
	}
	return m
}

func (m *itemMap) get(id string) (models.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return models.Item{}, m.err
	}
	it, ok := m.items[id]
	if !ok {
		return models.Item{}, fmt.Errorf("item %s: %w", id, errs.ErrNotFound)
	}
	return it, nil
}

func (m *itemMap) put(it models.Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.items[it.ID] = it
	return nil
}

func (m *itemMap) del(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	delete(m.items, id)
	return nil
}

func (m *itemMap) where(keep func(models.Item) bool) ([]models.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	out := []models.Item{}
	for _, it := range m.items {
		if keep(it) {
			out = append(out, it)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *itemMap) setAvailability(id string, available bool, at int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[id]
	if !ok {
		return fmt.Errorf("item %s: %w", id, errs.ErrNotFound)
	}
	it.IsAvailable = available
	it.LastUpdated = at
	m.items[id] = it
	return nil
}

type fakeLocalItems struct{ *itemMap }

func (f fakeLocalItems) ListAvailable(context.Context) ([]models.Item, error) {
	return f.where(func(it models.Item) bool { return it.IsAvailable })
}

func (f fakeLocalItems) ListBySeller(_ context.Context, sellerID string) ([]models.Item, error) {
	return f.where(func(it models.Item) bool { return it.SellerID == sellerID })
}

func (f fakeLocalItems) ListByCategory(_ context.Context, c models.Category) ([]models.Item, error) {
	return f.where(func(it models.Item) bool { return it.IsAvailable && it.Category == c })
}

func (f fakeLocalItems) Search(_ context.Context, term string) ([]models.Item, error) {
	term = strings.ToLower(strings.TrimSpace(term))
	return f.where(func(it models.Item) bool {
		return it.IsAvailable && (strings.Contains(strings.ToLower(it.Title), term) ||
			strings.Contains(strings.ToLower(it.Description), term))
	})
}

func (f fakeLocalItems) ListPending(context.Context) ([]models.Item, error) {
	return f.where(func(it models.Item) bool { return it.PendingUpload })
}

func (f fakeLocalItems) GetByID(_ context.Context, id string) (models.Item, error) { return f.get(id) }
func (f fakeLocalItems) Upsert(_ context.Context, it models.Item) error            { return f.put(it) }
func (f fakeLocalItems) DeleteByID(_ context.Context, id string) error             { return f.del(id) }

func (f fakeLocalItems) UpdateAvailability(_ context.Context, id string, available bool, at int64) error {
	return f.setAvailability(id, available, at)
}

func (f fakeLocalItems) MarkUploaded(_ context.Context, id string, urls []string, at int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	it, ok := f.items[id]
	if !ok {
		return fmt.Errorf("item %s: %w", id, errs.ErrNotFound)
	}
	it.ImageURLs = urls
	it.LocalImageRefs = nil
	it.PendingUpload = false
	it.IsSynced = true
	it.LastUpdated = at
	f.items[id] = it
	return nil
}

type fakeRemoteItems struct{ *itemMap }

func (f fakeRemoteItems) Get(_ context.Context, id string) (models.Item, error) { return f.get(id) }
func (f fakeRemoteItems) Delete(_ context.Context, id string) error             { return f.del(id) }

// Set stores what the document would carry, without local bookkeeping.
func (f fakeRemoteItems) Set(_ context.Context, it models.Item) error {
	it.PendingUpload = false
	it.IsSynced = false
	it.LocalImageRefs = nil
	return f.put(it)
}

func (f fakeRemoteItems) UpdateAvailability(_ context.Context, id string, available bool, at int64) error {
	return f.setAvailability(id, available, at)
}

func (f fakeRemoteItems) FindAvailable(context.Context) ([]models.Item, error) {
	return f.where(func(it models.Item) bool { return it.IsAvailable })
}

func (f fakeRemoteItems) FindByCategory(_ context.Context, c models.Category) ([]models.Item, error) {
	return f.where(func(it models.Item) bool { return it.IsAvailable && it.Category == c })
}

func (f fakeRemoteItems) FindBySeller(_ context.Context, sellerID string) ([]models.Item, error) {
	return f.where(func(it models.Item) bool { return it.SellerID == sellerID })
}

type userMap struct {
	mu    sync.Mutex
	users map[string]models.User
	err   error
	gets  int
}

func newUserMap(users ...models.User) *userMap {
	m := &userMap{users: map[string]models.User{}}
	for _, u := range users {
		m.users[u.UID] = u
	}
	return m
}

func (m *userMap) Get(_ context.Context, uid string) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	if m.err != nil {
		return models.User{}, m.err
	}
	u, ok := m.users[uid]
	if !ok {
		return models.User{}, fmt.Errorf("user %s: %w", uid, errs.ErrNotFound)
	}
	return u, nil
}

func (m *userMap) GetByID(ctx context.Context, uid string) (models.User, error) {
	return m.Get(ctx, uid)
}

func (m *userMap) Set(_ context.Context, u models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.users[u.UID] = u
	return nil
}

func (m *userMap) Upsert(ctx context.Context, u models.User) error { return m.Set(ctx, u) }
func (m *userMap) Merge(ctx context.Context, u models.User) error  { return m.Set(ctx, u) }

func (m *userMap) UpdateLocation(_ context.Context, uid, location string, coords *models.Coordinates, at int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	u, ok := m.users[uid]
	if !ok {
		return fmt.Errorf("user %s: %w", uid, errs.ErrNotFound)
	}
	u.Location = &location
	u.Coordinates = coords
	u.LastUpdated = at
	m.users[uid] = u
	return nil
}

func (m *userMap) UpdateProfileImage(_ context.Context, uid, url string, at int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := m.users[uid]
	u.UID = uid
	u.ProfileImageURL = &url
	u.LastUpdated = at
	m.users[uid] = u
	return nil
}

func (m *userMap) Delete(_ context.Context, uid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.users, uid)
	return nil
}

func (m *userMap) DeleteByID(ctx context.Context, uid string) error { return m.Delete(ctx, uid) }

func (m *userMap) has(uid string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.users[uid]
	return ok
}

// fakeHost fails uploads whose object name is listed in failNames. When gate
// is set, uploads hold until it is closed.
type fakeHost struct {
	mu        sync.Mutex
	failNames map[string]error
	uploaded  []assets.Options
	deleted   []string
	seq       int

	gate    chan struct{}
	started atomic.Int32
}

func (h *fakeHost) Upload(ctx context.Context, obj assets.Object, opts assets.Options) (assets.Asset, error) {
	h.started.Add(1)
	if h.gate != nil {
		select {
		case <-h.gate:
		case <-ctx.Done():
			return assets.Asset{}, ctx.Err()
		}
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if err, ok := h.failNames[obj.Name]; ok {
		return assets.Asset{}, err
	}
	h.seq++
	id := opts.PublicID
	if id == "" {
		id = fmt.Sprintf("%s/%d", opts.Folder, h.seq)
	}
	h.uploaded = append(h.uploaded, opts)
	return assets.Asset{URL: "https://cdn.test/" + id, PublicID: id}, nil
}

func (h *fakeHost) Delete(_ context.Context, publicID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.deleted = append(h.deleted, publicID)
	return nil
}

func (h *fakeHost) uploads() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.uploaded)
}

func (h *fakeHost) deletedIDs() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.deleted...)
}

func newTestCache(t *testing.T) (*miniredis.Miniredis, *Cache) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, NewCache(rdb)
}

func requireValidation(t *testing.T, err error, field, message string) {
	t.Helper()
	require.ErrorIs(t, err, errs.ErrValidation)
	var fe errs.FieldErrors
	if errors.As(err, &fe) {
		require.Equal(t, message, fe.Fields()[field])
		return
	}
	var ve *errs.ValidationError
	require.ErrorAs(t, err, &ve)
	require.Equal(t, field, ve.Field)
	require.Equal(t, message, ve.Message)
}
