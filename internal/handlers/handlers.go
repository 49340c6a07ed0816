// Package handlers exposes the marketplace services over HTTP and WebSocket.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/AnshRaj112/thriftit-backend/internal/browse"
	"github.com/AnshRaj112/thriftit-backend/internal/errs"
	"github.com/AnshRaj112/thriftit-backend/internal/models"
	"github.com/AnshRaj112/thriftit-backend/internal/result"
	"github.com/AnshRaj112/thriftit-backend/internal/services"
)

// Items is the listing read and moderation surface.
type Items interface {
	Browse(ctx context.Context, viewerID string, q browse.Query) (services.Listing, error)
	GetItem(ctx context.Context, id string) (models.Item, error)
	NearbyItems(ctx context.Context, lat, lng, radiusKm float64) ([]models.Item, error)
	ItemsBySeller(ctx context.Context, sellerID string) ([]models.Item, error)
	ItemsByCategory(ctx context.Context, category models.Category) ([]models.Item, error)
	DeleteItem(ctx context.Context, uid, id string) error
	UpdateAvailability(ctx context.Context, uid, id string, available bool) error
	RefreshOnce(ctx context.Context) (int, error)
	SellerPhone(ctx context.Context, sellerID string) (string, error)
}

// Uploads creates and edits listings.
type Uploads interface {
	Sell(ctx context.Context, sellerID string, draft services.SellDraft, onProgress services.Progress) (models.Item, error)
	UpdateItem(ctx context.Context, uid string, item models.Item) (models.Item, error)
}

// Users reads and edits profiles.
type Users interface {
	GetUser(ctx context.Context, uid string) (models.User, error)
	SaveProfile(ctx context.Context, uid string, form services.ProfileForm) (models.User, error)
	UpdateLocation(ctx context.Context, uid, location string, coords *models.Coordinates) error
}

// Auth runs phone sign-in and account lifecycle.
type Auth interface {
	SendVerificationCode(ctx context.Context, rawPhone string) (string, error)
	VerifyOTPAndSignIn(ctx context.Context, verificationID, code string) (services.SignIn, error)
	CurrentUserProfile(ctx context.Context, uid string) (models.User, error)
	SignOut(ctx context.Context, token string) error
	DeleteAccount(ctx context.Context, uid string) error
}

// Feed signals that the cached listings changed.
type Feed interface {
	Subscribe() (<-chan struct{}, func())
}

// Handler serves the API routes.
type Handler struct {
	items   Items
	uploads Uploads
	users   Users
	auth    Auth
	feed    Feed

	allowedOrigins []string
}

func New(items Items, uploads Uploads, users Users, auth Auth, feed Feed, allowedOrigins []string) *Handler {
	return &Handler{
		items:          items,
		uploads:        uploads,
		users:          users,
		auth:           auth,
		feed:           feed,
		allowedOrigins: allowedOrigins,
	}
}

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("OK"))
}

type errorResponse struct {
	State   result.State      `json:"state"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("failed to encode response")
	}
}

func respond[T any](w http.ResponseWriter, status int, v T) {
	writeJSON(w, status, result.Success(v))
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, errs.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, errs.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, errs.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, errs.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, errs.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, errs.ErrOffline):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

var statusMessages = map[int]string{
	http.StatusBadRequest:          "Invalid request",
	http.StatusUnauthorized:        "Invalid or expired credentials",
	http.StatusForbidden:           "You can only change your own listings",
	http.StatusNotFound:            "Not found",
	http.StatusTooManyRequests:     "Too many requests. Please try again later.",
	http.StatusServiceUnavailable:  "Can't reach the server right now. Please try again.",
	http.StatusInternalServerError: "Something went wrong",
}

// respondError maps err onto a status and a user-facing message. Validation
// failures carry their per-field messages.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	body := errorResponse{State: result.StateError, Message: statusMessages[status]}

	var fields errs.FieldErrors
	var invalid *errs.ValidationError
	switch {
	case errors.As(err, &fields):
		body.Message = fields.Error()
		body.Fields = fields.Fields()
	case errors.As(err, &invalid):
		body.Message = invalid.Message
		body.Fields = map[string]string{invalid.Field: invalid.Message}
	}

	if status == http.StatusInternalServerError {
		log.Error().Err(err).Str("method", r.Method).Str("path", r.URL.Path).Msg("request failed")
	} else {
		log.Debug().Err(err).Int("status", status).Str("path", r.URL.Path).Msg("request rejected")
	}
	writeJSON(w, status, body)
}

func badRequest(w http.ResponseWriter, r *http.Request, field, message string) {
	respondError(w, r, errs.Invalid(field, message))
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return errs.Invalid("body", "Invalid request body")
	}
	return nil
}

const maxJSONBody = 1 << 20
