package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/AnshRaj112/thriftit-backend/internal/browse"
	"github.com/AnshRaj112/thriftit-backend/internal/errs"
	"github.com/AnshRaj112/thriftit-backend/internal/models"
)

// DefaultNearbyRadiusKm is the radius NearbyItems uses when none is given.
const DefaultNearbyRadiusKm = 50.0

// Profiles resolves user profiles for distance and contact lookups.
type Profiles interface {
	GetUser(ctx context.Context, uid string) (models.User, error)
	LocalUser(ctx context.Context, uid string) (models.User, error)
}

// Listing is a browse result together with the message to show when it is empty.
type Listing struct {
	Items   []models.Item `json:"items"`
	Message string        `json:"message,omitempty"`
}

// ItemService answers item queries from the local cache and sends item
// mutations to the remote store.
type ItemService struct {
	local      LocalItemStore
	remote     RemoteItemStore
	spool      Spool
	profiles   Profiles
	net        Connectivity
	reconciler Snapshotter
	feed       Notifier
	now        func() time.Time
}

func NewItemService(local LocalItemStore, remote RemoteItemStore, spool Spool, profiles Profiles, net Connectivity, reconciler Snapshotter, feed Notifier) *ItemService {
	return &ItemService{
		local:      local,
		remote:     remote,
		spool:      spool,
		profiles:   profiles,
		net:        net,
		reconciler: reconciler,
		feed:       feed,
		now:        time.Now,
	}
}

// Browse runs a query against the local cache. Distances are measured from the
// viewer's cached profile coordinates when there are any.
func (s *ItemService) Browse(ctx context.Context, viewerID string, q browse.Query) (Listing, error) {
	var (
		items []models.Item
		err   error
	)
	if q.Blank() {
		items, err = s.local.ListAvailable(ctx)
	} else {
		items, err = s.local.Search(ctx, q.Term)
	}
	if err != nil {
		return Listing{}, fmt.Errorf("browse: %w", err)
	}

	items = browse.AttachDistance(items, s.viewerCoordinates(ctx, viewerID))
	filtered := browse.Apply(items, q.Filter)
	return Listing{Items: filtered, Message: q.EmptyMessage(filtered)}, nil
}

func (s *ItemService) viewerCoordinates(ctx context.Context, viewerID string) *models.Coordinates {
	if viewerID == "" || s.profiles == nil {
		return nil
	}
	u, err := s.profiles.LocalUser(ctx, viewerID)
	if err != nil {
		if !errors.Is(err, errs.ErrNotFound) {
			log.Warn().Err(err).Str("uid", viewerID).Msg("viewer profile unavailable")
		}
		return nil
	}
	return u.Coordinates
}

// LocalItems returns every available cached item.
func (s *ItemService) LocalItems(ctx context.Context) ([]models.Item, error) {
	return s.local.ListAvailable(ctx)
}

func (s *ItemService) Search(ctx context.Context, term string) ([]models.Item, error) {
	return s.local.Search(ctx, term)
}

func (s *ItemService) ItemsByCategory(ctx context.Context, category models.Category) ([]models.Item, error) {
	return s.local.ListByCategory(ctx, category)
}

// ItemsBySeller includes the seller's unavailable and pending listings.
func (s *ItemService) ItemsBySeller(ctx context.Context, sellerID string) ([]models.Item, error) {
	return s.local.ListBySeller(ctx, sellerID)
}

func (s *ItemService) RemoteItemsByCategory(ctx context.Context, category models.Category) ([]models.Item, error) {
	if !s.net.Online() {
		return nil, fmt.Errorf("items in %s: %w", category, errs.ErrOffline)
	}
	return s.remote.FindByCategory(ctx, category)
}

func (s *ItemService) RemoteItemsBySeller(ctx context.Context, sellerID string) ([]models.Item, error) {
	if !s.net.Online() {
		return nil, fmt.Errorf("items of %s: %w", sellerID, errs.ErrOffline)
	}
	return s.remote.FindBySeller(ctx, sellerID)
}

// GetItem reads the remote document and falls back to the cached row. When
// both fail the remote error is returned.
func (s *ItemService) GetItem(ctx context.Context, id string) (models.Item, error) {
	var remoteErr error
	if s.net.Online() {
		it, err := s.remote.Get(ctx, id)
		if err == nil {
			return it, nil
		}
		remoteErr = err
	} else {
		remoteErr = fmt.Errorf("get item %s: %w", id, errs.ErrOffline)
	}

	it, err := s.local.GetByID(ctx, id)
	if err != nil {
		return models.Item{}, remoteErr
	}
	return it, nil
}

// NearbyItems returns remote available items within radiusKm of the point,
// nearest first. A non-positive radius means DefaultNearbyRadiusKm.
func (s *ItemService) NearbyItems(ctx context.Context, lat, lng, radiusKm float64) ([]models.Item, error) {
	if radiusKm <= 0 {
		radiusKm = DefaultNearbyRadiusKm
	}
	if !s.net.Online() {
		return nil, fmt.Errorf("nearby items: %w", errs.ErrOffline)
	}
	items, err := s.remote.FindAvailable(ctx)
	if err != nil {
		return nil, err
	}
	items = browse.AttachDistance(items, &models.Coordinates{Latitude: lat, Longitude: lng})

	f := browse.DefaultFilter()
	f.MaxDistance = &radiusKm
	f.Sort = browse.SortNearest
	return browse.Apply(items, f), nil
}

// DeleteItem removes a listing. Only its seller may delete it. A listing that
// was never uploaded only exists locally and is dropped with its spooled
// images, online or not.
func (s *ItemService) DeleteItem(ctx context.Context, uid, id string) error {
	it, err := s.owned(ctx, uid, id)
	if err != nil {
		return err
	}
	if it.PendingUpload {
		if err := s.local.DeleteByID(ctx, id); err != nil {
			return err
		}
		s.removeRefs(it.LocalImageRefs)
		s.notify()
		log.Info().Str("item_id", id).Str("uid", uid).Msg("pending item discarded")
		return nil
	}
	if err := s.remote.Delete(ctx, id); err != nil {
		return err
	}
	if err := s.local.DeleteByID(ctx, id); err != nil {
		log.Warn().Err(err).Str("item_id", id).Msg("cached item not removed")
	}
	s.notify()
	log.Info().Str("item_id", id).Str("uid", uid).Msg("item deleted")
	return nil
}

// UpdateAvailability marks a listing sold or available again. Only its seller
// may change it. A pending listing changes locally and is uploaded that way.
func (s *ItemService) UpdateAvailability(ctx context.Context, uid, id string, available bool) error {
	it, err := s.owned(ctx, uid, id)
	if err != nil {
		return err
	}
	at := s.now().UnixMilli()
	if it.PendingUpload {
		if err := s.local.UpdateAvailability(ctx, id, available, at); err != nil {
			return err
		}
		s.notify()
		return nil
	}
	if err := s.remote.UpdateAvailability(ctx, id, available, at); err != nil {
		return err
	}
	err = s.local.UpdateAvailability(ctx, id, available, at)
	if err != nil && !errors.Is(err, errs.ErrNotFound) {
		log.Warn().Err(err).Str("item_id", id).Msg("cached availability not updated")
	}
	s.notify()
	return nil
}

// owned returns the listing if uid sells it. Pending rows have no remote
// document yet and are checked against the local cache.
func (s *ItemService) owned(ctx context.Context, uid, id string) (models.Item, error) {
	if it, err := s.local.GetByID(ctx, id); err == nil && it.PendingUpload {
		if it.SellerID != uid {
			return models.Item{}, fmt.Errorf("item %s belongs to another seller: %w", id, errs.ErrForbidden)
		}
		return it, nil
	}
	if !s.net.Online() {
		return models.Item{}, fmt.Errorf("item %s: %w", id, errs.ErrOffline)
	}
	it, err := s.remote.Get(ctx, id)
	if err != nil {
		return models.Item{}, err
	}
	if it.SellerID != uid {
		return models.Item{}, fmt.Errorf("item %s belongs to another seller: %w", id, errs.ErrForbidden)
	}
	return it, nil
}

// RefreshOnce pulls every available remote item through the reconciler and
// returns how many cached rows changed.
func (s *ItemService) RefreshOnce(ctx context.Context) (int, error) {
	if !s.net.Online() {
		return 0, fmt.Errorf("refresh: %w", errs.ErrOffline)
	}
	items, err := s.remote.FindAvailable(ctx)
	if err != nil {
		return 0, err
	}
	n, err := s.reconciler.Snapshot(ctx, items)
	if err != nil {
		return n, fmt.Errorf("refresh: %w", err)
	}
	log.Debug().Int("fetched", len(items)).Int("applied", n).Msg("items refreshed")
	return n, nil
}

// SellerPhone returns the phone number buyers use to contact a seller.
func (s *ItemService) SellerPhone(ctx context.Context, sellerID string) (string, error) {
	u, err := s.profiles.GetUser(ctx, sellerID)
	if err != nil {
		return "", err
	}
	if u.PhoneNumber == "" {
		return "", fmt.Errorf("seller %s has no phone number: %w", sellerID, errs.ErrNotFound)
	}
	return u.PhoneNumber, nil
}

func (s *ItemService) removeRefs(refs []string) {
	if s.spool == nil {
		return
	}
	for _, ref := range refs {
		if err := s.spool.Remove(ref); err != nil {
			log.Warn().Err(err).Str("ref", ref).Msg("spooled image not removed")
		}
	}
}

func (s *ItemService) notify() {
	if s.feed != nil {
		s.feed.Notify()
	}
}
