package models

import (
	"strings"

	"github.com/dustin/go-humanize"
)

// Category is the listing category. Values are stored by name in both stores.
type Category string

const (
	CategoryElectronics    Category = "ELECTRONICS"
	CategoryClothing       Category = "CLOTHING"
	CategoryFurniture      Category = "FURNITURE"
	CategoryBooks          Category = "BOOKS"
	CategorySports         Category = "SPORTS"
	CategoryHomeAppliances Category = "HOME_APPLIANCES"
	CategoryToys           Category = "TOYS"
	CategoryVehicles       Category = "VEHICLES"
	CategoryAccessories    Category = "ACCESSORIES"
	CategoryOther          Category = "OTHER"
)

// Categories lists every category in display order.
var Categories = []Category{
	CategoryElectronics,
	CategoryClothing,
	CategoryFurniture,
	CategoryBooks,
	CategorySports,
	CategoryHomeAppliances,
	CategoryToys,
	CategoryVehicles,
	CategoryAccessories,
	CategoryOther,
}

var categoryNames = map[Category]string{
	CategoryElectronics:    "Electronics",
	CategoryClothing:       "Clothing",
	CategoryFurniture:      "Furniture",
	CategoryBooks:          "Books",
	CategorySports:         "Sports & Fitness",
	CategoryHomeAppliances: "Home Appliances",
	CategoryToys:           "Toys & Games",
	CategoryVehicles:       "Vehicles",
	CategoryAccessories:    "Accessories",
	CategoryOther:          "Other",
}

// DisplayName returns the human readable category label.
func (c Category) DisplayName() string {
	if name, ok := categoryNames[c]; ok {
		return name
	}
	return categoryNames[CategoryOther]
}

// ParseCategory matches a category name case-insensitively. Unknown values map to OTHER.
func ParseCategory(value string) Category {
	if c, ok := LookupCategory(value); ok {
		return c
	}
	return CategoryOther
}

// LookupCategory is ParseCategory without the fallback.
func LookupCategory(value string) (Category, bool) {
	value = strings.TrimSpace(value)
	for _, c := range Categories {
		if strings.EqualFold(string(c), value) {
			return c, true
		}
	}
	return "", false
}

// Condition is the physical condition of a listed item.
type Condition string

const (
	ConditionNew     Condition = "NEW"
	ConditionLikeNew Condition = "LIKE_NEW"
	ConditionGood    Condition = "GOOD"
	ConditionFair    Condition = "FAIR"
	ConditionPoor    Condition = "POOR"
)

// Conditions lists every condition from best to worst.
var Conditions = []Condition{ConditionNew, ConditionLikeNew, ConditionGood, ConditionFair, ConditionPoor}

var conditionNames = map[Condition]string{
	ConditionNew:     "New",
	ConditionLikeNew: "Like New",
	ConditionGood:    "Good",
	ConditionFair:    "Fair",
	ConditionPoor:    "Poor",
}

func (c Condition) DisplayName() string {
	if name, ok := conditionNames[c]; ok {
		return name
	}
	return conditionNames[ConditionGood]
}

// ParseCondition matches a condition name case-insensitively. Unknown values map to GOOD.
func ParseCondition(value string) Condition {
	if c, ok := LookupCondition(value); ok {
		return c
	}
	return ConditionGood
}

// LookupCondition is ParseCondition without the fallback.
func LookupCondition(value string) (Condition, bool) {
	value = strings.TrimSpace(value)
	for _, c := range Conditions {
		if strings.EqualFold(string(c), value) {
			return c, true
		}
	}
	return "", false
}

// Coordinates is a latitude/longitude pair in degrees.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// NewCoordinates returns a pair only when both halves are present.
func NewCoordinates(lat, lng *float64) *Coordinates {
	if lat == nil || lng == nil {
		return nil
	}
	return &Coordinates{Latitude: *lat, Longitude: *lng}
}

// Item is a listing. PendingUpload, IsSynced, LastUpdated and LocalImageRefs are
// bookkeeping of the local cache and never reach the remote store.
type Item struct {
	ID          string       `json:"id"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Price       float64      `json:"price"`
	Category    Category     `json:"category"`
	Condition   Condition    `json:"condition"`
	ImageURLs   []string     `json:"image_urls"`
	SellerID    string       `json:"seller_id"`
	SellerName  *string      `json:"seller_name,omitempty"`
	Location    string       `json:"location"`
	Coordinates *Coordinates `json:"coordinates,omitempty"`
	IsAvailable bool         `json:"is_available"`
	Distance    *float64     `json:"distance,omitempty"`

	PendingUpload  bool     `json:"pending_upload"`
	IsSynced       bool     `json:"is_synced"`
	LastUpdated    int64    `json:"last_updated"`
	LocalImageRefs []string `json:"-"`
}

// FormattedPrice renders the price in rupees with thousands separators, e.g. ₹1,234.50.
func (i Item) FormattedPrice() string {
	return "₹" + humanize.FormatFloat("#,###.##", i.Price)
}

// WithDistance returns a copy of the item carrying the given distance.
func (i Item) WithDistance(km float64) Item {
	i.Distance = &km
	return i
}
