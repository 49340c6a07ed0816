package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/AnshRaj112/thriftit-backend/internal/assets"
	"github.com/AnshRaj112/thriftit-backend/internal/errs"
	"github.com/AnshRaj112/thriftit-backend/internal/models"
)

// Progress reports how many of an item's images are uploaded.
type Progress func(uploaded, total int)

// SellDraft is the sell form as submitted.
type SellDraft struct {
	Title       string              `form:"title" validate:"required,max=50"`
	Description string              `form:"description" validate:"required,max=300"`
	Price       string              `form:"price" validate:"required,numeric"`
	Category    string              `form:"category" validate:"omitempty,category"`
	Condition   string              `form:"condition" validate:"required,condition"`
	Location    string              `form:"location"`
	Coordinates *models.Coordinates `form:"-"`
	SellerName  *string             `form:"-"`
	Images      []assets.Source     `form:"images" validate:"min=1"`
}

// errRescheduled marks uploads the dispatcher gave up on for now, typically
// because the connection dropped mid-transfer.
var errRescheduled = errors.New("upload rescheduled")

var sellMessages = map[string]string{
	"title.required":       "Item name is required",
	"title.max":            "Item name must be under 50 characters",
	"price.required":       "Price is required",
	"price":                "Invalid price",
	"description.required": "Description is required",
	"description.max":      "Description must be under 300 characters",
	"category":             "Invalid category",
	"condition":            "Please select item condition",
	"images":               "At least one image is required",
}

// Spool keeps images on disk until their item is uploaded.
type Spool interface {
	Put(src assets.Source) (string, error)
	Open(ref string) (assets.Source, error)
	Remove(ref string) error
}

// UploadService publishes listings. Images go to the asset host first and the
// item document is written only once every image is hosted.
type UploadService struct {
	dispatcher *assets.Dispatcher
	spool      Spool
	local      LocalItemStore
	remote     RemoteItemStore
	net        Connectivity
	feed       Notifier
	validate   *validator.Validate
	now        func() time.Time

	// ids of pending rows with an upload in progress
	inflight sync.Map
}

func NewUploadService(dispatcher *assets.Dispatcher, spool Spool, local LocalItemStore, remote RemoteItemStore, net Connectivity, feed Notifier) *UploadService {
	return &UploadService{
		dispatcher: dispatcher,
		spool:      spool,
		local:      local,
		remote:     remote,
		net:        net,
		feed:       feed,
		validate:   NewValidator(),
		now:        time.Now,
	}
}

type uploadOutcome struct {
	index int
	asset assets.Asset
	err   error
}

// UploadItemWithImages uploads every image concurrently and then writes the
// item document with the hosted URLs in image order. The first failed or
// rescheduled upload cancels the rest and fails the whole operation; images
// already hosted are deleted again on a best-effort basis.
func (s *UploadService) UploadItemWithImages(ctx context.Context, item models.Item, images []assets.Source, onProgress Progress) (models.Item, error) {
	if len(images) == 0 {
		if err := s.remote.Set(ctx, item); err != nil {
			return models.Item{}, err
		}
		return item, nil
	}

	upCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make(chan uploadOutcome, len(images))
	for i, src := range images {
		s.dispatcher.Dispatch(upCtx, src, assets.Options{Folder: assets.ItemsFolder}, assets.Callback{
			OnSuccess: func(_ string, a assets.Asset) {
				results <- uploadOutcome{index: i, asset: a}
			},
			OnError: func(_ string, err error) {
				results <- uploadOutcome{index: i, err: err}
			},
			OnReschedule: func(_ string, err error) {
				results <- uploadOutcome{index: i, err: fmt.Errorf("%w: %w", errRescheduled, err)}
			},
		})
	}

	urls := make([]string, len(images))
	hosted := make([]assets.Asset, 0, len(images))
	var firstErr error
	for range images {
		o := <-results
		if o.err != nil {
			if firstErr == nil {
				firstErr = o.err
				cancel()
			}
			continue
		}
		hosted = append(hosted, o.asset)
		urls[o.index] = o.asset.URL
		if firstErr == nil && onProgress != nil {
			onProgress(len(hosted), len(images))
		}
	}
	if firstErr != nil {
		s.discard(ctx, hosted)
		return models.Item{}, fmt.Errorf("upload images of item %s: %w", item.ID, firstErr)
	}

	item.ImageURLs = urls
	if err := s.remote.Set(ctx, item); err != nil {
		s.discard(ctx, hosted)
		return models.Item{}, err
	}
	log.Info().Str("item_id", item.ID).Int("images", len(urls)).Msg("item uploaded")
	return item, nil
}

func (s *UploadService) discard(ctx context.Context, hosted []assets.Asset) {
	ctx = context.WithoutCancel(ctx)
	for _, a := range hosted {
		if err := s.dispatcher.Host().Delete(ctx, a.PublicID); err != nil {
			log.Warn().Err(err).Str("public_id", a.PublicID).Msg("orphaned asset not deleted")
		}
	}
}

// Sell validates the draft and stores it as a pending local row before
// anything else. Offline, the row stays pending for the next reconnect.
// Online, the item is uploaded at once. If the connection drops during the
// upload the row stays pending as well; any other failure removes the draft.
func (s *UploadService) Sell(ctx context.Context, sellerID string, draft SellDraft, onProgress Progress) (models.Item, error) {
	draft.Title = strings.TrimSpace(draft.Title)
	draft.Description = strings.TrimSpace(draft.Description)
	draft.Price = strings.TrimSpace(draft.Price)
	draft.Location = strings.TrimSpace(draft.Location)
	if err := checkForm(s.validate, draft, sellMessages); err != nil {
		return models.Item{}, err
	}
	price, err := strconv.ParseFloat(draft.Price, 64)
	if err != nil || price < 0 {
		return models.Item{}, errs.Invalid("price", "Invalid price")
	}

	refs := make([]string, 0, len(draft.Images))
	for _, src := range draft.Images {
		ref, err := s.spool.Put(src)
		if err != nil {
			s.removeRefs(refs)
			if errors.Is(err, errs.ErrValidation) {
				return models.Item{}, errs.Invalid("images", "Only image files can be uploaded")
			}
			return models.Item{}, err
		}
		refs = append(refs, ref)
	}

	category := models.CategoryOther
	if draft.Category != "" {
		category = models.ParseCategory(draft.Category)
	}
	item := models.Item{
		ID:             uuid.NewString(),
		Title:          draft.Title,
		Description:    draft.Description,
		Price:          price,
		Category:       category,
		Condition:      models.ParseCondition(draft.Condition),
		SellerID:       sellerID,
		SellerName:     draft.SellerName,
		Location:       draft.Location,
		Coordinates:    draft.Coordinates,
		IsAvailable:    true,
		PendingUpload:  true,
		LastUpdated:    s.now().UnixMilli(),
		LocalImageRefs: refs,
	}
	if err := s.local.Upsert(ctx, item); err != nil {
		s.removeRefs(refs)
		return models.Item{}, err
	}
	s.notify()

	if !s.net.Online() {
		log.Info().Str("item_id", item.ID).Msg("offline, item queued for upload")
		return item, nil
	}

	s.claim(item.ID)
	defer s.release(item.ID)

	uploaded, err := s.UploadItemWithImages(ctx, item, draft.Images, onProgress)
	if err != nil && (errors.Is(err, errRescheduled) || !s.net.Online()) {
		log.Warn().Err(err).Str("item_id", item.ID).Msg("connection lost, item queued for upload")
		return item, nil
	}
	if err != nil {
		if derr := s.local.DeleteByID(context.WithoutCancel(ctx), item.ID); derr != nil {
			log.Warn().Err(derr).Str("item_id", item.ID).Msg("failed draft not removed")
		}
		s.removeRefs(refs)
		s.notify()
		return models.Item{}, err
	}
	return s.settle(ctx, uploaded)
}

// claim marks a pending row as being uploaded. It reports false when another
// upload of the same row is already running.
func (s *UploadService) claim(id string) bool {
	_, busy := s.inflight.LoadOrStore(id, struct{}{})
	return !busy
}

func (s *UploadService) release(id string) {
	s.inflight.Delete(id)
}

// settle clears the pending flag of an uploaded item and drops its spooled
// images. A row deleted by its seller while the upload ran has no local copy
// left; the document just written is withdrawn again.
func (s *UploadService) settle(ctx context.Context, uploaded models.Item) (models.Item, error) {
	err := s.local.MarkUploaded(ctx, uploaded.ID, uploaded.ImageURLs, s.now().UnixMilli())
	if errors.Is(err, errs.ErrNotFound) {
		if derr := s.remote.Delete(context.WithoutCancel(ctx), uploaded.ID); derr != nil {
			log.Warn().Err(derr).Str("item_id", uploaded.ID).Msg("withdrawn item still published")
		}
		log.Info().Str("item_id", uploaded.ID).Msg("item deleted during upload, withdrawn")
		return models.Item{}, err
	}
	if err != nil {
		return models.Item{}, err
	}
	s.removeRefs(uploaded.LocalImageRefs)
	s.notify()

	uploaded.PendingUpload = false
	uploaded.IsSynced = true
	uploaded.LocalImageRefs = nil
	return uploaded, nil
}

// RetryPending re-attempts every pending row with its original id and spooled
// images. Rows that fail again stay pending, and rows already being uploaded
// are skipped. It returns how many were uploaded.
func (s *UploadService) RetryPending(ctx context.Context) (int, error) {
	pending, err := s.local.ListPending(ctx)
	if err != nil {
		return 0, fmt.Errorf("list pending items: %w", err)
	}

	done := 0
	for _, it := range pending {
		if ctx.Err() != nil {
			break
		}
		if s.retryOne(ctx, it) {
			done++
		}
	}
	if len(pending) > 0 {
		log.Info().Int("pending", len(pending)).Int("uploaded", done).Msg("pending uploads retried")
	}
	return done, nil
}

func (s *UploadService) retryOne(ctx context.Context, it models.Item) bool {
	if !s.claim(it.ID) {
		log.Debug().Str("item_id", it.ID).Msg("pending item already uploading")
		return false
	}
	defer s.release(it.ID)

	images, err := s.openRefs(it.LocalImageRefs)
	if err != nil {
		log.Warn().Err(err).Str("item_id", it.ID).Msg("pending item images unreadable")
		return false
	}
	uploaded, err := s.UploadItemWithImages(ctx, it, images, nil)
	if err != nil {
		log.Warn().Err(err).Str("item_id", it.ID).Msg("pending upload failed, will retry on reconnect")
		return false
	}
	if _, err := s.settle(ctx, uploaded); err != nil {
		log.Warn().Err(err).Str("item_id", it.ID).Msg("uploaded item not settled")
		return false
	}
	return true
}

func (s *UploadService) openRefs(refs []string) ([]assets.Source, error) {
	images := make([]assets.Source, 0, len(refs))
	for _, ref := range refs {
		src, err := s.spool.Open(ref)
		if err != nil {
			return nil, err
		}
		images = append(images, src)
	}
	return images, nil
}

func (s *UploadService) removeRefs(refs []string) {
	for _, ref := range refs {
		if err := s.spool.Remove(ref); err != nil {
			log.Warn().Err(err).Str("ref", ref).Msg("spooled image not removed")
		}
	}
}

// UploadProfileImage replaces the user's profile picture and returns its URL.
func (s *UploadService) UploadProfileImage(ctx context.Context, uid string, src assets.Source) (string, error) {
	a, err := s.uploadOne(ctx, src, assets.Options{Folder: assets.ProfilesFolder, PublicID: uid, Overwrite: true})
	if err != nil {
		return "", fmt.Errorf("profile image of %s: %w", uid, err)
	}
	return a.URL, nil
}

func (s *UploadService) uploadOne(ctx context.Context, src assets.Source, opts assets.Options) (assets.Asset, error) {
	done := make(chan uploadOutcome, 1)
	s.dispatcher.Dispatch(ctx, src, opts, assets.Callback{
		OnSuccess:    func(_ string, a assets.Asset) { done <- uploadOutcome{asset: a} },
		OnError:      func(_ string, err error) { done <- uploadOutcome{err: err} },
		OnReschedule: func(_ string, err error) { done <- uploadOutcome{err: err} },
	})
	o := <-done
	return o.asset, o.err
}

// DeleteImage removes a hosted image by public id.
func (s *UploadService) DeleteImage(ctx context.Context, publicID string) error {
	return s.dispatcher.Host().Delete(ctx, publicID)
}

// UpdateItem overwrites the seller's remote document. The seller cannot change.
func (s *UploadService) UpdateItem(ctx context.Context, uid string, item models.Item) (models.Item, error) {
	if !s.net.Online() {
		return models.Item{}, fmt.Errorf("update item %s: %w", item.ID, errs.ErrOffline)
	}
	current, err := s.remote.Get(ctx, item.ID)
	if err != nil {
		return models.Item{}, err
	}
	if current.SellerID != uid {
		return models.Item{}, fmt.Errorf("item %s belongs to another seller: %w", item.ID, errs.ErrForbidden)
	}
	item.SellerID = current.SellerID
	item.LastUpdated = s.now().UnixMilli()
	if err := s.remote.Set(ctx, item); err != nil {
		return models.Item{}, err
	}

	item.PendingUpload = false
	item.IsSynced = true
	item.LocalImageRefs = nil
	if err := s.local.Upsert(ctx, item); err != nil {
		log.Warn().Err(err).Str("item_id", item.ID).Msg("cached item not updated")
	}
	s.notify()
	return item, nil
}

func (s *UploadService) notify() {
	if s.feed != nil {
		s.feed.Notify()
	}
}
