package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/AnshRaj112/thriftit-backend/internal/browse"
	"github.com/AnshRaj112/thriftit-backend/internal/errs"
	"github.com/AnshRaj112/thriftit-backend/internal/middleware"
	"github.com/AnshRaj112/thriftit-backend/internal/models"
	"github.com/AnshRaj112/thriftit-backend/internal/services"
)

// parseBrowseQuery reads q, category, min_price, max_price, max_distance and sort.
func parseBrowseQuery(r *http.Request) (browse.Query, error) {
	qs := r.URL.Query()
	q := browse.Query{Term: strings.TrimSpace(qs.Get("q")), Filter: browse.DefaultFilter()}

	if raw := qs.Get("category"); raw != "" {
		c, ok := models.LookupCategory(raw)
		if !ok {
			return q, errs.Invalid("category", "Invalid category")
		}
		q.Filter.Category = &c
	}
	minPrice, err := queryFloat(r, "min_price")
	if err != nil {
		return q, err
	}
	if minPrice != nil {
		q.Filter.MinPrice = *minPrice
	}
	maxPrice, err := queryFloat(r, "max_price")
	if err != nil {
		return q, err
	}
	if maxPrice != nil {
		q.Filter.MaxPrice = *maxPrice
	}
	if q.Filter.MinPrice > q.Filter.MaxPrice {
		return q, errs.Invalid("max_price", "Maximum price must not be below the minimum")
	}
	if q.Filter.MaxDistance, err = queryFloat(r, "max_distance"); err != nil {
		return q, err
	}
	q.Filter.Sort = browse.ParseSort(qs.Get("sort"))
	return q, nil
}

// BrowseItems filters the cached listings for the viewer.
func (h *Handler) BrowseItems(w http.ResponseWriter, r *http.Request) {
	q, err := parseBrowseQuery(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	listing, err := h.items.Browse(r.Context(), middleware.UserID(r.Context()), q)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, http.StatusOK, listing)
}

// CreateItem lists a new item from a multipart sell form. An item accepted
// while the remote store is unreachable is answered with 202.
func (h *Handler) CreateItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	uid := middleware.UserID(ctx)
	if err := parseMultipart(w, r, maxItemUpload); err != nil {
		respondError(w, r, err)
		return
	}
	images, err := readImages(r, "images")
	if err != nil {
		respondError(w, r, err)
		return
	}
	coords, err := formCoordinates(r.FormValue("latitude"), r.FormValue("longitude"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	draft := services.SellDraft{
		Title:       r.FormValue("title"),
		Description: r.FormValue("description"),
		Price:       r.FormValue("price"),
		Category:    r.FormValue("category"),
		Condition:   r.FormValue("condition"),
		Location:    r.FormValue("location"),
		Coordinates: coords,
		Images:      images,
	}
	if seller, err := h.users.GetUser(ctx, uid); err == nil {
		draft.SellerName = seller.DisplayName
		if draft.Coordinates == nil {
			draft.Coordinates = seller.Coordinates
		}
		if strings.TrimSpace(draft.Location) == "" && seller.Location != nil {
			draft.Location = *seller.Location
		}
	}

	item, err := h.uploads.Sell(ctx, uid, draft, func(uploaded, total int) {
		log.Debug().Str("uid", uid).Int("uploaded", uploaded).Int("total", total).Msg("image uploaded")
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	status := http.StatusCreated
	if item.PendingUpload {
		status = http.StatusAccepted
	}
	respond(w, status, item)
}

type refreshResponse struct {
	Updated int `json:"updated"`
}

// RefreshItems pulls the remote listings into the cache once.
func (h *Handler) RefreshItems(w http.ResponseWriter, r *http.Request) {
	n, err := h.items.RefreshOnce(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, http.StatusOK, refreshResponse{Updated: n})
}

// NearbyItems lists available items around lat/lng within radius km.
func (h *Handler) NearbyItems(w http.ResponseWriter, r *http.Request) {
	qs := r.URL.Query()
	coords, err := formCoordinates(qs.Get("lat"), qs.Get("lng"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	if coords == nil {
		badRequest(w, r, "lat", "lat and lng are required")
		return
	}
	radius, err := queryFloat(r, "radius")
	if err != nil {
		respondError(w, r, err)
		return
	}
	var km float64
	if radius != nil {
		km = *radius
	}
	items, err := h.items.NearbyItems(r.Context(), coords.Latitude, coords.Longitude, km)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, http.StatusOK, items)
}

// GetItem returns one listing.
func (h *Handler) GetItem(w http.ResponseWriter, r *http.Request) {
	it, err := h.items.GetItem(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, http.StatusOK, it)
}

// DeleteItem removes one of the caller's listings.
func (h *Handler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	if err := h.items.DeleteItem(r.Context(), middleware.UserID(r.Context()), chi.URLParam(r, "id")); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type updateItemRequest struct {
	Title       *string             `json:"title"`
	Description *string             `json:"description"`
	Price       *float64            `json:"price"`
	Category    *string             `json:"category"`
	Condition   *string             `json:"condition"`
	Location    *string             `json:"location"`
	Coordinates *models.Coordinates `json:"coordinates"`
	ImageURLs   []string            `json:"image_urls"`
	IsAvailable *bool               `json:"is_available"`
}

func (req updateItemRequest) apply(it models.Item) (models.Item, error) {
	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			return it, errs.Invalid("title", "Item name is required")
		}
		it.Title = title
	}
	if req.Description != nil {
		it.Description = strings.TrimSpace(*req.Description)
	}
	if req.Price != nil {
		if *req.Price < 0 || !finite(*req.Price) {
			return it, errs.Invalid("price", "Invalid price")
		}
		it.Price = *req.Price
	}
	if req.Category != nil {
		c, ok := models.LookupCategory(*req.Category)
		if !ok {
			return it, errs.Invalid("category", "Invalid category")
		}
		it.Category = c
	}
	if req.Condition != nil {
		c, ok := models.LookupCondition(*req.Condition)
		if !ok {
			return it, errs.Invalid("condition", "Please select item condition")
		}
		it.Condition = c
	}
	if req.Location != nil {
		it.Location = strings.TrimSpace(*req.Location)
	}
	if req.Coordinates != nil {
		if err := checkCoordinates(req.Coordinates); err != nil {
			return it, err
		}
		it.Coordinates = req.Coordinates
	}
	if req.ImageURLs != nil {
		it.ImageURLs = req.ImageURLs
	}
	if req.IsAvailable != nil {
		it.IsAvailable = *req.IsAvailable
	}
	it.Distance = nil
	return it, nil
}

// UpdateItem applies a partial edit to one of the caller's listings.
func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	var req updateItemRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	current, err := h.items.GetItem(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	edited, err := req.apply(current)
	if err != nil {
		respondError(w, r, err)
		return
	}
	saved, err := h.uploads.UpdateItem(r.Context(), middleware.UserID(r.Context()), edited)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, http.StatusOK, saved)
}

type availabilityRequest struct {
	IsAvailable *bool `json:"is_available"`
}

// UpdateAvailability marks one of the caller's listings sold or available.
func (h *Handler) UpdateAvailability(w http.ResponseWriter, r *http.Request) {
	var req availabilityRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if req.IsAvailable == nil {
		badRequest(w, r, "is_available", "is_available is required")
		return
	}
	if err := h.items.UpdateAvailability(r.Context(), middleware.UserID(r.Context()), chi.URLParam(r, "id"), *req.IsAvailable); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type contactResponse struct {
	SellerID    string `json:"seller_id"`
	PhoneNumber string `json:"phone_number"`
}

// ContactSeller returns the phone number of the item's seller.
func (h *Handler) ContactSeller(w http.ResponseWriter, r *http.Request) {
	it, err := h.items.GetItem(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	phone, err := h.items.SellerPhone(r.Context(), it.SellerID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, http.StatusOK, contactResponse{SellerID: it.SellerID, PhoneNumber: phone})
}

// SellerItems lists a seller's cached items.
func (h *Handler) SellerItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.items.ItemsBySeller(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, http.StatusOK, items)
}

// CategoryItems lists the cached available items of a category.
func (h *Handler) CategoryItems(w http.ResponseWriter, r *http.Request) {
	c, ok := models.LookupCategory(chi.URLParam(r, "category"))
	if !ok {
		badRequest(w, r, "category", "Invalid category")
		return
	}
	items, err := h.items.ItemsByCategory(r.Context(), c)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, http.StatusOK, items)
}

type categoryResponse struct {
	Name        models.Category `json:"name"`
	DisplayName string          `json:"display_name"`
}

// Categories lists every category with its label.
func (h *Handler) Categories(w http.ResponseWriter, _ *http.Request) {
	out := make([]categoryResponse, len(models.Categories))
	for i, c := range models.Categories {
		out[i] = categoryResponse{Name: c, DisplayName: c.DisplayName()}
	}
	respond(w, http.StatusOK, out)
}
