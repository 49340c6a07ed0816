// Package browse implements the listing filter and sort pipeline.
package browse

import (
	"math"
	"sort"
	"strings"

	"github.com/AnshRaj112/thriftit-backend/internal/geo"
	"github.com/AnshRaj112/thriftit-backend/internal/models"
)

// NoMatchesMessage is shown when an active filter leaves nothing to display.
const NoMatchesMessage = "No items match your filters"

// SortOption orders the filtered listings.
type SortOption string

const (
	SortPriceLowToHigh SortOption = "PRICE_LOW_TO_HIGH"
	SortPriceHighToLow SortOption = "PRICE_HIGH_TO_LOW"
	SortNearest        SortOption = "NEAREST"
)

// ParseSort matches a sort option case-insensitively, defaulting to NEAREST.
func ParseSort(value string) SortOption {
	for _, s := range []SortOption{SortPriceLowToHigh, SortPriceHighToLow, SortNearest} {
		if strings.EqualFold(string(s), strings.TrimSpace(value)) {
			return s
		}
	}
	return SortNearest
}

// Filter is the user's browse criteria. A nil Category or MaxDistance is unset.
type Filter struct {
	Category    *models.Category
	MinPrice    float64
	MaxPrice    float64
	MaxDistance *float64
	Sort        SortOption
}

// DefaultFilter returns the filter with every criterion unset.
func DefaultFilter() Filter {
	return Filter{MinPrice: 0, MaxPrice: math.MaxFloat64, Sort: SortNearest}
}

// HasActive reports whether any criterion other than the sort order is set.
func (f Filter) HasActive() bool {
	return f.Category != nil || f.MinPrice > 0 || f.MaxPrice < math.MaxFloat64 || f.MaxDistance != nil
}

// Apply returns the items matching f, in f's sort order. The input is not modified.
func Apply(items []models.Item, f Filter) []models.Item {
	out := make([]models.Item, 0, len(items))
	for _, it := range items {
		if f.Category != nil && it.Category != *f.Category {
			continue
		}
		if it.Price < f.MinPrice || it.Price > f.MaxPrice {
			continue
		}
		if f.MaxDistance != nil && (it.Distance == nil || *it.Distance > *f.MaxDistance) {
			continue
		}
		out = append(out, it)
	}

	switch f.Sort {
	case SortPriceLowToHigh:
		sort.SliceStable(out, func(i, j int) bool { return out[i].Price < out[j].Price })
	case SortPriceHighToLow:
		sort.SliceStable(out, func(i, j int) bool { return out[i].Price > out[j].Price })
	case SortNearest, "":
		sort.SliceStable(out, func(i, j int) bool { return distanceKey(out[i]) < distanceKey(out[j]) })
	}
	return out
}

func distanceKey(it models.Item) float64 {
	if it.Distance == nil {
		return math.MaxFloat64
	}
	return *it.Distance
}

// AttachDistance returns copies of items with Distance set from viewer. Items
// without coordinates, or every item when viewer is nil, keep a nil distance.
func AttachDistance(items []models.Item, viewer *models.Coordinates) []models.Item {
	out := make([]models.Item, len(items))
	for i, it := range items {
		if viewer != nil && it.Coordinates != nil {
			it = it.WithDistance(geo.Haversine(
				viewer.Latitude, viewer.Longitude,
				it.Coordinates.Latitude, it.Coordinates.Longitude,
			))
		} else {
			it.Distance = nil
		}
		out[i] = it
	}
	return out
}

// Query is a text search term combined with a filter.
type Query struct {
	Term   string
	Filter Filter
}

// Blank reports whether the search term selects every cached item.
func (q Query) Blank() bool {
	return strings.TrimSpace(q.Term) == ""
}

// EmptyMessage returns the message to show for an empty result, or "" when the
// result is not empty or no filter is active.
func (q Query) EmptyMessage(filtered []models.Item) string {
	if len(filtered) == 0 && q.Filter.HasActive() {
		return NoMatchesMessage
	}
	return ""
}
