package localdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/AnshRaj112/thriftit-backend/internal/errs"
	"github.com/AnshRaj112/thriftit-backend/internal/models"
)

const userColumns = `uid, phone_number, display_name, profile_image_url, location, latitude, longitude,
	last_updated, is_synced, items_listed, items_sold, rating, review_count`

const upsertUser = `
	INSERT INTO users (uid, phone_number, display_name, profile_image_url, location, latitude, longitude,
		last_updated, is_synced, items_listed, items_sold, rating, review_count)
	VALUES (:uid, :phone_number, :display_name, :profile_image_url, :location, :latitude, :longitude,
		:last_updated, :is_synced, :items_listed, :items_sold, :rating, :review_count)
	ON CONFLICT (uid) DO UPDATE SET
		phone_number = EXCLUDED.phone_number,
		display_name = EXCLUDED.display_name,
		profile_image_url = EXCLUDED.profile_image_url,
		location = EXCLUDED.location,
		latitude = EXCLUDED.latitude,
		longitude = EXCLUDED.longitude,
		last_updated = EXCLUDED.last_updated,
		is_synced = EXCLUDED.is_synced,
		items_listed = EXCLUDED.items_listed,
		items_sold = EXCLUDED.items_sold,
		rating = EXCLUDED.rating,
		review_count = EXCLUDED.review_count`

// UserStore reads and writes the users table.
type UserStore struct {
	db *sqlx.DB
}

func NewUserStore(db *sqlx.DB) *UserStore {
	return &UserStore{db: db}
}

// GetByID returns errs.ErrNotFound when the profile is not cached.
func (s *UserStore) GetByID(ctx context.Context, uid string) (models.User, error) {
	var row UserRow
	err := s.db.GetContext(ctx, &row, `SELECT `+userColumns+` FROM users WHERE uid = $1`, uid)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, fmt.Errorf("user %s: %w", uid, errs.ErrNotFound)
	}
	if err != nil {
		return models.User{}, fmt.Errorf("get user %s: %w", uid, err)
	}
	return row.User(), nil
}

func (s *UserStore) Upsert(ctx context.Context, u models.User) error {
	if _, err := s.db.NamedExecContext(ctx, upsertUser, NewUserRow(u)); err != nil {
		return fmt.Errorf("upsert user %s: %w", u.UID, err)
	}
	return nil
}

// UpdateLocation sets the location text and coordinates. A nil coords clears both halves.
func (s *UserStore) UpdateLocation(ctx context.Context, uid, location string, coords *models.Coordinates, at int64) error {
	var lat, lng sql.NullFloat64
	if coords != nil {
		lat = sql.NullFloat64{Float64: coords.Latitude, Valid: true}
		lng = sql.NullFloat64{Float64: coords.Longitude, Valid: true}
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET location = $1, latitude = $2, longitude = $3, last_updated = $4 WHERE uid = $5`,
		location, lat, lng, at, uid)
	if err != nil {
		return fmt.Errorf("update location %s: %w", uid, err)
	}
	return expectRow(res, "user", uid)
}

func (s *UserStore) DeleteByID(ctx context.Context, uid string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE uid = $1`, uid); err != nil {
		return fmt.Errorf("delete user %s: %w", uid, err)
	}
	return nil
}
