// Package localdb is the persistent local cache of items and user profiles. It
// stays readable when the remote store is unreachable.
package localdb

import (
	"database/sql"
	"strings"

	"github.com/AnshRaj112/thriftit-backend/internal/models"
)

const (
	urlSeparator = ","
	refSeparator = "|"
)

// ItemRow is the items table row.
type ItemRow struct {
	ID             string          `db:"id"`
	Title          string          `db:"title"`
	Description    string          `db:"description"`
	Price          float64         `db:"price"`
	Category       string          `db:"category"`
	Condition      string          `db:"condition"`
	ImageURLs      string          `db:"image_urls"`
	SellerID       string          `db:"seller_id"`
	SellerName     sql.NullString  `db:"seller_name"`
	Location       string          `db:"location"`
	Latitude       sql.NullFloat64 `db:"latitude"`
	Longitude      sql.NullFloat64 `db:"longitude"`
	IsAvailable    bool            `db:"is_available"`
	PendingUpload  bool            `db:"pending_upload"`
	IsSynced       bool            `db:"is_synced"`
	LastUpdated    int64           `db:"last_updated"`
	LocalImageRefs string          `db:"local_image_refs"`
}

// NewItemRow converts a domain item into its row form.
func NewItemRow(it models.Item) ItemRow {
	row := ItemRow{
		ID:             it.ID,
		Title:          it.Title,
		Description:    it.Description,
		Price:          it.Price,
		Category:       string(it.Category),
		Condition:      string(it.Condition),
		ImageURLs:      strings.Join(it.ImageURLs, urlSeparator),
		SellerID:       it.SellerID,
		SellerName:     nullString(it.SellerName),
		Location:       it.Location,
		IsAvailable:    it.IsAvailable,
		PendingUpload:  it.PendingUpload,
		IsSynced:       it.IsSynced,
		LastUpdated:    it.LastUpdated,
		LocalImageRefs: strings.Join(it.LocalImageRefs, refSeparator),
	}
	if it.Coordinates != nil {
		row.Latitude = sql.NullFloat64{Float64: it.Coordinates.Latitude, Valid: true}
		row.Longitude = sql.NullFloat64{Float64: it.Coordinates.Longitude, Valid: true}
	}
	return row
}

// Item converts the row back into a domain item. Distance is never stored.
func (r ItemRow) Item() models.Item {
	return models.Item{
		ID:             r.ID,
		Title:          r.Title,
		Description:    r.Description,
		Price:          r.Price,
		Category:       models.ParseCategory(r.Category),
		Condition:      models.ParseCondition(r.Condition),
		ImageURLs:      split(r.ImageURLs, urlSeparator),
		SellerID:       r.SellerID,
		SellerName:     stringPtr(r.SellerName),
		Location:       r.Location,
		Coordinates:    coordinates(r.Latitude, r.Longitude),
		IsAvailable:    r.IsAvailable,
		PendingUpload:  r.PendingUpload,
		IsSynced:       r.IsSynced,
		LastUpdated:    r.LastUpdated,
		LocalImageRefs: split(r.LocalImageRefs, refSeparator),
	}
}

// UserRow is the users table row.
type UserRow struct {
	UID             string          `db:"uid"`
	PhoneNumber     string          `db:"phone_number"`
	DisplayName     sql.NullString  `db:"display_name"`
	ProfileImageURL sql.NullString  `db:"profile_image_url"`
	Location        sql.NullString  `db:"location"`
	Latitude        sql.NullFloat64 `db:"latitude"`
	Longitude       sql.NullFloat64 `db:"longitude"`
	LastUpdated     int64           `db:"last_updated"`
	IsSynced        bool            `db:"is_synced"`
	ItemsListed     int             `db:"items_listed"`
	ItemsSold       int             `db:"items_sold"`
	Rating          float32         `db:"rating"`
	ReviewCount     int             `db:"review_count"`
}

func NewUserRow(u models.User) UserRow {
	row := UserRow{
		UID:             u.UID,
		PhoneNumber:     u.PhoneNumber,
		DisplayName:     nullString(u.DisplayName),
		ProfileImageURL: nullString(u.ProfileImageURL),
		Location:        nullString(u.Location),
		LastUpdated:     u.LastUpdated,
		IsSynced:        u.IsSynced,
		ItemsListed:     u.Stats.ItemsListed,
		ItemsSold:       u.Stats.ItemsSold,
		Rating:          u.Stats.Rating,
		ReviewCount:     u.Stats.ReviewCount,
	}
	if u.Coordinates != nil {
		row.Latitude = sql.NullFloat64{Float64: u.Coordinates.Latitude, Valid: true}
		row.Longitude = sql.NullFloat64{Float64: u.Coordinates.Longitude, Valid: true}
	}
	return row
}

func (r UserRow) User() models.User {
	return models.User{
		UID:             r.UID,
		PhoneNumber:     r.PhoneNumber,
		DisplayName:     stringPtr(r.DisplayName),
		ProfileImageURL: stringPtr(r.ProfileImageURL),
		Location:        stringPtr(r.Location),
		Coordinates:     coordinates(r.Latitude, r.Longitude),
		LastUpdated:     r.LastUpdated,
		IsSynced:        r.IsSynced,
		Stats: models.UserStats{
			ItemsListed: r.ItemsListed,
			ItemsSold:   r.ItemsSold,
			Rating:      r.Rating,
			ReviewCount: r.ReviewCount,
		},
	}
}

func split(joined, sep string) []string {
	if joined == "" {
		return nil
	}
	parts := strings.Split(joined, sep)
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}

func coordinates(lat, lng sql.NullFloat64) *models.Coordinates {
	if !lat.Valid || !lng.Valid {
		return nil
	}
	return &models.Coordinates{Latitude: lat.Float64, Longitude: lng.Float64}
}
