package handlers

import (
	"net/http"

	"github.com/AnshRaj112/thriftit-backend/internal/middleware"
)

type sendCodeRequest struct {
	PhoneNumber string `json:"phone_number"`
}

type sendCodeResponse struct {
	VerificationID string `json:"verification_id"`
}

type verifyCodeRequest struct {
	VerificationID string `json:"verification_id"`
	OTP            string `json:"otp"`
}

// SendOTP texts a verification code to the posted phone number.
func (h *Handler) SendOTP(w http.ResponseWriter, r *http.Request) {
	var req sendCodeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	vid, err := h.auth.SendVerificationCode(r.Context(), req.PhoneNumber)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, http.StatusOK, sendCodeResponse{VerificationID: vid})
}

// VerifyOTP checks the code and opens a session.
func (h *Handler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req verifyCodeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	in, err := h.auth.VerifyOTPAndSignIn(r.Context(), req.VerificationID, req.OTP)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, http.StatusOK, in)
}

// SignOut revokes the session the request was made with.
func (h *Handler) SignOut(w http.ResponseWriter, r *http.Request) {
	if err := h.auth.SignOut(r.Context(), middleware.Token(r.Context())); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Me returns the signed-in user's profile.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	u, err := h.auth.CurrentUserProfile(r.Context(), middleware.UserID(r.Context()))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, http.StatusOK, u)
}

// DeleteAccount removes the signed-in user's profile and every session.
func (h *Handler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	if err := h.auth.DeleteAccount(r.Context(), middleware.UserID(r.Context())); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
