package remote

import (
	"strconv"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/AnshRaj112/thriftit-backend/internal/models"
)

// ItemDoc renders the document form of an item. Local bookkeeping fields are
// left out.
func ItemDoc(it models.Item) bson.M {
	doc := bson.M{
		"_id":         it.ID,
		"title":       it.Title,
		"description": it.Description,
		"price":       it.Price,
		"category":    string(it.Category),
		"condition":   string(it.Condition),
		"imageUrls":   nonNil(it.ImageURLs),
		"sellerId":    it.SellerID,
		"location":    it.Location,
		"isAvailable": it.IsAvailable,
		"lastUpdated": it.LastUpdated,
	}
	if it.SellerName != nil {
		doc["sellerName"] = *it.SellerName
	}
	if it.Coordinates != nil {
		doc["latitude"] = it.Coordinates.Latitude
		doc["longitude"] = it.Coordinates.Longitude
	}
	return doc
}

// ItemFromDoc decodes an item document. It reports false when the document has
// no id, title or seller.
func ItemFromDoc(doc bson.M) (models.Item, bool) {
	id := docID(doc["_id"])
	title, _ := doc["title"].(string)
	sellerID, _ := doc["sellerId"].(string)
	if id == "" || title == "" || sellerID == "" {
		return models.Item{}, false
	}

	it := models.Item{
		ID:          id,
		Title:       title,
		Description: str(doc["description"]),
		Category:    models.ParseCategory(str(doc["category"])),
		Condition:   models.ParseCondition(str(doc["condition"])),
		ImageURLs:   strs(doc["imageUrls"]),
		SellerID:    sellerID,
		SellerName:  optStr(doc["sellerName"]),
		Location:    str(doc["location"]),
		Coordinates: coords(doc),
		IsAvailable: true,
	}
	it.Price, _ = num(doc["price"])
	if v, ok := doc["isAvailable"].(bool); ok {
		it.IsAvailable = v
	}
	if v, ok := num(doc["lastUpdated"]); ok {
		it.LastUpdated = int64(v)
	}
	return it, true
}

// UserDoc renders the document form of a user profile.
func UserDoc(u models.User) bson.M {
	doc := bson.M{
		"_id":         u.UID,
		"uid":         u.UID,
		"phoneNumber": u.PhoneNumber,
		"lastUpdated": u.LastUpdated,
	}
	if u.DisplayName != nil {
		doc["displayName"] = *u.DisplayName
	}
	if u.ProfileImageURL != nil {
		doc["profileImageUrl"] = *u.ProfileImageURL
	}
	if u.Location != nil {
		doc["location"] = *u.Location
	}
	if u.Coordinates != nil {
		doc["latitude"] = u.Coordinates.Latitude
		doc["longitude"] = u.Coordinates.Longitude
	}
	return doc
}

// UserFromDoc decodes a user document, taking the uid from the document id when
// the uid field is absent.
func UserFromDoc(doc bson.M) (models.User, bool) {
	uid := str(doc["uid"])
	if uid == "" {
		uid = docID(doc["_id"])
	}
	if uid == "" {
		return models.User{}, false
	}
	u := models.User{
		UID:             uid,
		PhoneNumber:     str(doc["phoneNumber"]),
		DisplayName:     optStr(doc["displayName"]),
		ProfileImageURL: optStr(doc["profileImageUrl"]),
		Location:        optStr(doc["location"]),
		Coordinates:     coords(doc),
	}
	if v, ok := num(doc["lastUpdated"]); ok {
		u.LastUpdated = int64(v)
	}
	return u, true
}

func docID(v any) string {
	switch id := v.(type) {
	case string:
		return id
	case primitive.ObjectID:
		return id.Hex()
	default:
		return ""
	}
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

func optStr(v any) *string {
	s, ok := v.(string)
	if !ok {
		return nil
	}
	return &s
}

func num(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	case primitive.Decimal128:
		f, err := strconv.ParseFloat(n.String(), 64)
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func strs(v any) []string {
	var raw []any
	switch a := v.(type) {
	case string:
		if a == "" {
			return nil
		}
		return []string{a}
	case []string:
		return a
	case bson.A:
		raw = a
	case []any:
		raw = a
	default:
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, e := range raw {
		if s, ok := e.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}

func coords(doc bson.M) *models.Coordinates {
	lat, okLat := num(doc["latitude"])
	lng, okLng := num(doc["longitude"])
	if !okLat || !okLng {
		return nil
	}
	return &models.Coordinates{Latitude: lat, Longitude: lng}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
