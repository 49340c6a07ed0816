// Package services holds the marketplace operations behind the HTTP surface.
// Each service depends on small interfaces over the local cache and the
// remote store so both can be faked in tests.
package services

import (
	"context"

	"github.com/AnshRaj112/thriftit-backend/internal/models"
)

// LocalItemStore is the local cache of items.
type LocalItemStore interface {
	ListAvailable(ctx context.Context) ([]models.Item, error)
	ListBySeller(ctx context.Context, sellerID string) ([]models.Item, error)
	ListByCategory(ctx context.Context, category models.Category) ([]models.Item, error)
	Search(ctx context.Context, term string) ([]models.Item, error)
	ListPending(ctx context.Context) ([]models.Item, error)
	GetByID(ctx context.Context, id string) (models.Item, error)
	Upsert(ctx context.Context, it models.Item) error
	UpdateAvailability(ctx context.Context, id string, available bool, at int64) error
	MarkUploaded(ctx context.Context, id string, urls []string, at int64) error
	DeleteByID(ctx context.Context, id string) error
}

// RemoteItemStore is the authoritative items collection.
type RemoteItemStore interface {
	Get(ctx context.Context, id string) (models.Item, error)
	Set(ctx context.Context, it models.Item) error
	Delete(ctx context.Context, id string) error
	UpdateAvailability(ctx context.Context, id string, available bool, at int64) error
	FindAvailable(ctx context.Context) ([]models.Item, error)
	FindByCategory(ctx context.Context, category models.Category) ([]models.Item, error)
	FindBySeller(ctx context.Context, sellerID string) ([]models.Item, error)
}

// LocalUserStore is the local cache of profiles.
type LocalUserStore interface {
	GetByID(ctx context.Context, uid string) (models.User, error)
	Upsert(ctx context.Context, u models.User) error
	UpdateLocation(ctx context.Context, uid, location string, coords *models.Coordinates, at int64) error
	DeleteByID(ctx context.Context, uid string) error
}

// RemoteUserStore is the authoritative users collection.
type RemoteUserStore interface {
	Get(ctx context.Context, uid string) (models.User, error)
	Set(ctx context.Context, u models.User) error
	Merge(ctx context.Context, u models.User) error
	UpdateLocation(ctx context.Context, uid, location string, coords *models.Coordinates, at int64) error
	UpdateProfileImage(ctx context.Context, uid, url string, at int64) error
	Delete(ctx context.Context, uid string) error
}

// Connectivity reports whether the remote store was reachable at the last check.
type Connectivity interface {
	Online() bool
}

// Notifier is told when the local item cache changed.
type Notifier interface {
	Notify()
}

// Snapshotter reconciles a one-shot remote result into the local cache.
type Snapshotter interface {
	Snapshot(ctx context.Context, items []models.Item) (int, error)
}
