package models

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// UserStats are aggregate seller statistics. They are carried through every
// representation but nothing computes them yet.
type UserStats struct {
	ItemsListed int     `json:"items_listed"`
	ItemsSold   int     `json:"items_sold"`
	Rating      float32 `json:"rating"`
	ReviewCount int     `json:"review_count"`
}

// User is a marketplace account, keyed by the uid issued at phone verification.
type User struct {
	UID             string       `json:"uid"`
	PhoneNumber     string       `json:"phone_number"`
	DisplayName     *string      `json:"display_name,omitempty"`
	ProfileImageURL *string      `json:"profile_image_url,omitempty"`
	Location        *string      `json:"location,omitempty"`
	Coordinates     *Coordinates `json:"coordinates,omitempty"`
	LastUpdated     int64        `json:"last_updated"`
	IsSynced        bool         `json:"-"`
	Stats           UserStats    `json:"stats"`
}

// Initials returns up to two uppercase initials of the display name, or the last
// two characters of the phone number when there is no name.
func (u User) Initials() string {
	if u.DisplayName != nil {
		var b strings.Builder
		n := 0
		for _, word := range strings.Split(*u.DisplayName, " ") {
			r, size := utf8.DecodeRuneInString(word)
			if size == 0 {
				continue
			}
			b.WriteRune(unicode.ToUpper(r))
			n++
			if n == 2 {
				break
			}
		}
		return b.String()
	}
	if len(u.PhoneNumber) <= 2 {
		return u.PhoneNumber
	}
	return u.PhoneNumber[len(u.PhoneNumber)-2:]
}
