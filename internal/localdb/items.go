package localdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/AnshRaj112/thriftit-backend/internal/errs"
	"github.com/AnshRaj112/thriftit-backend/internal/models"
)

const itemColumns = `id, title, description, price, category, condition, image_urls, seller_id, seller_name,
	location, latitude, longitude, is_available, pending_upload, is_synced, last_updated, local_image_refs`

const upsertItem = `
	INSERT INTO items (id, title, description, price, category, condition, image_urls, seller_id, seller_name,
		location, latitude, longitude, is_available, pending_upload, is_synced, last_updated, local_image_refs)
	VALUES (:id, :title, :description, :price, :category, :condition, :image_urls, :seller_id, :seller_name,
		:location, :latitude, :longitude, :is_available, :pending_upload, :is_synced, :last_updated, :local_image_refs)
	ON CONFLICT (id) DO UPDATE SET
		title = EXCLUDED.title,
		description = EXCLUDED.description,
		price = EXCLUDED.price,
		category = EXCLUDED.category,
		condition = EXCLUDED.condition,
		image_urls = EXCLUDED.image_urls,
		seller_id = EXCLUDED.seller_id,
		seller_name = EXCLUDED.seller_name,
		location = EXCLUDED.location,
		latitude = EXCLUDED.latitude,
		longitude = EXCLUDED.longitude,
		is_available = EXCLUDED.is_available,
		pending_upload = EXCLUDED.pending_upload,
		is_synced = EXCLUDED.is_synced,
		last_updated = EXCLUDED.last_updated,
		local_image_refs = EXCLUDED.local_image_refs`

// ItemStore reads and writes the items table.
type ItemStore struct {
	db *sqlx.DB
}

func NewItemStore(db *sqlx.DB) *ItemStore {
	return &ItemStore{db: db}
}

func (s *ItemStore) list(ctx context.Context, where string, args ...any) ([]models.Item, error) {
	var rows []ItemRow
	query := `SELECT ` + itemColumns + ` FROM items ` + where
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	items := make([]models.Item, 0, len(rows))
	for _, r := range rows {
		items = append(items, r.Item())
	}
	return items, nil
}

// ListAvailable returns every available cached item, newest first.
func (s *ItemStore) ListAvailable(ctx context.Context) ([]models.Item, error) {
	return s.list(ctx, `WHERE is_available = TRUE ORDER BY last_updated DESC`)
}

// ListBySeller includes the seller's unavailable listings.
func (s *ItemStore) ListBySeller(ctx context.Context, sellerID string) ([]models.Item, error) {
	return s.list(ctx, `WHERE seller_id = $1 ORDER BY last_updated DESC`, sellerID)
}

func (s *ItemStore) ListByCategory(ctx context.Context, category models.Category) ([]models.Item, error) {
	return s.list(ctx, `WHERE category = $1 AND is_available = TRUE ORDER BY last_updated DESC`, string(category))
}

// Search matches term case-insensitively against title and description.
func (s *ItemStore) Search(ctx context.Context, term string) ([]models.Item, error) {
	pattern := "%" + escapeLike(strings.TrimSpace(term)) + "%"
	return s.list(ctx, `WHERE is_available = TRUE AND (title ILIKE $1 OR description ILIKE $1) ORDER BY last_updated DESC`, pattern)
}

// ListPending returns the items still waiting for their first upload.
func (s *ItemStore) ListPending(ctx context.Context) ([]models.Item, error) {
	return s.list(ctx, `WHERE pending_upload = TRUE ORDER BY last_updated`)
}

// GetByID returns errs.ErrNotFound when the item is not cached.
func (s *ItemStore) GetByID(ctx context.Context, id string) (models.Item, error) {
	var row ItemRow
	err := s.db.GetContext(ctx, &row, `SELECT `+itemColumns+` FROM items WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Item{}, fmt.Errorf("item %s: %w", id, errs.ErrNotFound)
	}
	if err != nil {
		return models.Item{}, fmt.Errorf("get item %s: %w", id, err)
	}
	return row.Item(), nil
}

// Upsert inserts the item or replaces every column of the cached row.
func (s *ItemStore) Upsert(ctx context.Context, it models.Item) error {
	if _, err := s.db.NamedExecContext(ctx, upsertItem, NewItemRow(it)); err != nil {
		return fmt.Errorf("upsert item %s: %w", it.ID, err)
	}
	return nil
}

// UpsertMany writes all items in one transaction.
func (s *ItemStore) UpsertMany(ctx context.Context, items []models.Item) (err error) {
	if len(items) == 0 {
		return nil
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
			return
		}
		err = tx.Commit()
	}()

	for _, it := range items {
		if _, err = tx.NamedExecContext(ctx, upsertItem, NewItemRow(it)); err != nil {
			return fmt.Errorf("upsert item %s: %w", it.ID, err)
		}
	}
	return nil
}

func (s *ItemStore) UpdateAvailability(ctx context.Context, id string, available bool, at int64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE items SET is_available = $1, last_updated = $2 WHERE id = $3`, available, at, id)
	if err != nil {
		return fmt.Errorf("update availability %s: %w", id, err)
	}
	return expectRow(res, "item", id)
}

// MarkUploaded records a completed upload: remote URLs replace the local refs
// and the pending flag is cleared.
func (s *ItemStore) MarkUploaded(ctx context.Context, id string, urls []string, at int64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE items SET image_urls = $1, local_image_refs = '', pending_upload = FALSE, is_synced = TRUE, last_updated = $2 WHERE id = $3`,
		strings.Join(urls, urlSeparator), at, id)
	if err != nil {
		return fmt.Errorf("mark uploaded %s: %w", id, err)
	}
	return expectRow(res, "item", id)
}

// DeleteByID is a no-op for ids that are not cached.
func (s *ItemStore) DeleteByID(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM items WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete item %s: %w", id, err)
	}
	return nil
}

func expectRow(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, errs.ErrNotFound)
	}
	return nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
