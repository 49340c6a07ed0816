// Package syncer keeps the local cache in step with the remote store.
package syncer

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/AnshRaj112/thriftit-backend/internal/errs"
	"github.com/AnshRaj112/thriftit-backend/internal/models"
	"github.com/AnshRaj112/thriftit-backend/internal/remote"
)

// LocalItems is the part of the local cache the reconciler writes.
type LocalItems interface {
	ListAvailable(ctx context.Context) ([]models.Item, error)
	GetByID(ctx context.Context, id string) (models.Item, error)
	Upsert(ctx context.Context, it models.Item) error
	DeleteByID(ctx context.Context, id string) error
}

// Notifier is told after a batch changed the local cache.
type Notifier interface {
	Notify()
}

// Reconciler applies remote changes to the local cache. A row that is still
// pending upload is never overwritten or removed by a remote change.
type Reconciler struct {
	local    LocalItems
	notifier Notifier
}

func NewReconciler(local LocalItems, notifier Notifier) *Reconciler {
	return &Reconciler{local: local, notifier: notifier}
}

// Apply reconciles one batch and returns how many local rows changed.
func (r *Reconciler) Apply(ctx context.Context, batch []remote.Change) (int, error) {
	applied := 0
	defer func() {
		if applied > 0 && r.notifier != nil {
			r.notifier.Notify()
		}
	}()

	for _, ch := range batch {
		local, err := r.local.GetByID(ctx, ch.ID)
		cached := err == nil
		if err != nil && !errors.Is(err, errs.ErrNotFound) {
			return applied, fmt.Errorf("reconcile %s: %w", ch.ID, err)
		}
		if cached && local.PendingUpload {
			log.Debug().Str("item_id", ch.ID).Str("change", ch.Kind.String()).Msg("keeping pending local item")
			continue
		}

		switch ch.Kind {
		case remote.ChangeAdded, remote.ChangeModified:
			err = r.local.Upsert(ctx, synced(ch.Item))
		case remote.ChangeUnavailable:
			if !cached {
				continue
			}
			err = r.local.Upsert(ctx, synced(ch.Item))
		case remote.ChangeRemoved:
			if !cached {
				continue
			}
			err = r.local.DeleteByID(ctx, ch.ID)
		default:
			continue
		}
		if err != nil {
			return applied, fmt.Errorf("reconcile %s: %w", ch.ID, err)
		}
		applied++
	}
	return applied, nil
}

func synced(it models.Item) models.Item {
	it.IsSynced = true
	it.PendingUpload = false
	it.LocalImageRefs = nil
	it.Distance = nil
	return it
}

// Snapshot reconciles the complete set of available remote items. Cached
// available rows missing from the set were sold or deleted while nothing was
// listening and are removed; pending rows stay.
func (r *Reconciler) Snapshot(ctx context.Context, items []models.Item) (int, error) {
	cached, err := r.local.ListAvailable(ctx)
	if err != nil {
		return 0, fmt.Errorf("snapshot: %w", err)
	}

	seen := make(map[string]struct{}, len(items))
	batch := make([]remote.Change, 0, len(items))
	for _, it := range items {
		seen[it.ID] = struct{}{}
		batch = append(batch, remote.Change{Kind: remote.ChangeModified, ID: it.ID, Item: it})
	}
	for _, it := range cached {
		if _, ok := seen[it.ID]; ok || it.PendingUpload {
			continue
		}
		batch = append(batch, remote.Change{Kind: remote.ChangeRemoved, ID: it.ID})
	}
	return r.Apply(ctx, batch)
}
