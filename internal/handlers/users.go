package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/AnshRaj112/thriftit-backend/internal/assets"
	"github.com/AnshRaj112/thriftit-backend/internal/middleware"
	"github.com/AnshRaj112/thriftit-backend/internal/models"
	"github.com/AnshRaj112/thriftit-backend/internal/services"
)

// GetUser returns a public profile.
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	u, err := h.users.GetUser(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, http.StatusOK, u)
}

// SaveProfile stores the profile form: displayName, location, optional
// latitude/longitude and an optional image file.
func (h *Handler) SaveProfile(w http.ResponseWriter, r *http.Request) {
	if err := parseMultipart(w, r, maxImageSize+maxFormMemory); err != nil {
		respondError(w, r, err)
		return
	}
	coords, err := formCoordinates(r.FormValue("latitude"), r.FormValue("longitude"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	form := services.ProfileForm{
		DisplayName: r.FormValue("displayName"),
		Location:    r.FormValue("location"),
		Coordinates: coords,
	}
	if fhs := r.MultipartForm.File["image"]; len(fhs) > 0 {
		var img assets.Source
		if img, err = readImage(fhs[0], "image"); err != nil {
			respondError(w, r, err)
			return
		}
		form.Image = &img
	}

	u, err := h.users.SaveProfile(r.Context(), middleware.UserID(r.Context()), form)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, http.StatusOK, u)
}

type locationRequest struct {
	Location    string              `json:"location"`
	Coordinates *models.Coordinates `json:"coordinates"`
}

// UpdateLocation changes the caller's location. Omitted coordinates clear them.
func (h *Handler) UpdateLocation(w http.ResponseWriter, r *http.Request) {
	var req locationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	req.Location = strings.TrimSpace(req.Location)
	if req.Location == "" {
		badRequest(w, r, "location", "Location is required")
		return
	}
	if err := checkCoordinates(req.Coordinates); err != nil {
		respondError(w, r, err)
		return
	}
	if err := h.users.UpdateLocation(r.Context(), middleware.UserID(r.Context()), req.Location, req.Coordinates); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
