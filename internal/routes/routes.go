package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/AnshRaj112/thriftit-backend/internal/handlers"
	"github.com/AnshRaj112/thriftit-backend/internal/middleware"
)

// SetupRoutes mounts the API on r. otpLimit guards the code sender.
func SetupRoutes(r chi.Router, h *handlers.Handler, sessions middleware.TokenValidator, otpLimit func(http.Handler) http.Handler) {
	r.Get("/health", h.Health)

	// Auth
	r.With(otpLimit).Post("/api/auth/otp/send", h.SendOTP)
	r.Post("/api/auth/otp/verify", h.VerifyOTP)

	// Public reads; a valid token personalises distances
	r.Group(func(r chi.Router) {
		r.Use(middleware.OptionalAuth(sessions))

		r.Get("/api/items", h.BrowseItems)
		r.Get("/api/items/nearby", h.NearbyItems)
		r.Get("/api/items/{id}", h.GetItem)
		r.Get("/api/sellers/{id}/items", h.SellerItems)
		r.Get("/api/categories", h.Categories)
		r.Get("/api/categories/{category}/items", h.CategoryItems)
		r.Get("/api/users/{id}", h.GetUser)

		r.Get("/ws/items", h.ItemFeed)
	})

	// Signed-in routes
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(sessions))

		r.Post("/api/auth/signout", h.SignOut)
		r.Get("/api/me", h.Me)
		r.Delete("/api/account", h.DeleteAccount)

		r.Put("/api/profile", h.SaveProfile)
		r.Put("/api/profile/location", h.UpdateLocation)

		r.Post("/api/items", h.CreateItem)
		r.Post("/api/items/refresh", h.RefreshItems)
		r.Put("/api/items/{id}", h.UpdateItem)
		r.Delete("/api/items/{id}", h.DeleteItem)
		r.Patch("/api/items/{id}/availability", h.UpdateAvailability)
		r.Get("/api/items/{id}/contact", h.ContactSeller)
	})
}
