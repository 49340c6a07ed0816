package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"github.com/AnshRaj112/thriftit-backend/internal/auth"
	"github.com/AnshRaj112/thriftit-backend/internal/errs"
	"github.com/AnshRaj112/thriftit-backend/internal/models"
	"github.com/AnshRaj112/thriftit-backend/pkg/utils"
)

// SessionStore issues and revokes bearer tokens.
type SessionStore interface {
	Issue(ctx context.Context, uid string) (string, time.Time, error)
	Validate(ctx context.Context, token string) (string, error)
	Revoke(ctx context.Context, token string) error
	RevokeAll(ctx context.Context, uid string) error
}

// SignIn is the outcome of a successful verification.
type SignIn struct {
	User      models.User `json:"user"`
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
}

type phoneForm struct {
	PhoneNumber string `form:"phone_number" validate:"required,e164"`
}

type otpForm struct {
	VerificationID string `form:"verification_id" validate:"required"`
	Code           string `form:"otp" validate:"required,len=6,numeric"`
}

var authMessages = map[string]string{
	"phone_number":    "Invalid phone number",
	"verification_id": "Verification expired, request a new code",
	"otp":             "Invalid OTP",
}

// AuthService signs users in with a phone number and a one-time code.
type AuthService struct {
	provider    auth.Provider
	sessions    SessionStore
	users       *UserService
	countryCode string
	validate    *validator.Validate
}

func NewAuthService(provider auth.Provider, sessions SessionStore, users *UserService, countryCode string) *AuthService {
	if countryCode == "" {
		countryCode = utils.DefaultCountryCode
	}
	return &AuthService{
		provider:    provider,
		sessions:    sessions,
		users:       users,
		countryCode: countryCode,
		validate:    NewValidator(),
	}
}

// SendVerificationCode texts a code to the number and returns the verification id.
func (s *AuthService) SendVerificationCode(ctx context.Context, rawPhone string) (string, error) {
	phone, ok := utils.NormalizePhone(rawPhone, s.countryCode)
	if !ok {
		return "", errs.Invalid("phone_number", "Invalid phone number")
	}
	if err := checkForm(s.validate, phoneForm{PhoneNumber: phone}, authMessages); err != nil {
		return "", err
	}
	return s.provider.SendCode(ctx, phone)
}

// VerifyOTPAndSignIn checks the code, creates the profile on first sign-in
// and opens a session.
func (s *AuthService) VerifyOTPAndSignIn(ctx context.Context, verificationID, code string) (SignIn, error) {
	form := otpForm{VerificationID: strings.TrimSpace(verificationID), Code: strings.TrimSpace(code)}
	if err := checkForm(s.validate, form, authMessages); err != nil {
		return SignIn{}, err
	}

	id, err := s.provider.VerifyCode(ctx, form.VerificationID, form.Code)
	if err != nil {
		return SignIn{}, err
	}
	u, err := s.users.EnsureUser(ctx, id.UID, id.PhoneNumber)
	if err != nil {
		return SignIn{}, err
	}
	token, exp, err := s.sessions.Issue(ctx, id.UID)
	if err != nil {
		return SignIn{}, err
	}
	log.Info().Str("uid", id.UID).Msg("signed in")
	return SignIn{User: u, Token: token, ExpiresAt: exp}, nil
}

// CurrentUserID resolves a bearer token to its uid.
func (s *AuthService) CurrentUserID(ctx context.Context, token string) (string, error) {
	return s.sessions.Validate(ctx, token)
}

func (s *AuthService) CurrentUserProfile(ctx context.Context, uid string) (models.User, error) {
	return s.users.GetUser(ctx, uid)
}

// SignOut ends the token's session and drops the cached profile.
func (s *AuthService) SignOut(ctx context.Context, token string) error {
	uid, err := s.sessions.Validate(ctx, token)
	if err != nil {
		return err
	}
	if err := s.sessions.Revoke(ctx, token); err != nil {
		return err
	}
	s.users.Forget(ctx, uid)
	log.Info().Str("uid", uid).Msg("signed out")
	return nil
}

// DeleteAccount removes the profile, the phone mapping and every session.
func (s *AuthService) DeleteAccount(ctx context.Context, uid string) error {
	if err := s.users.DeleteUser(ctx, uid); err != nil && !errors.Is(err, errs.ErrNotFound) {
		return err
	}
	if err := s.provider.Revoke(ctx, uid); err != nil {
		return err
	}
	if err := s.sessions.RevokeAll(ctx, uid); err != nil {
		return err
	}
	log.Info().Str("uid", uid).Msg("account deleted")
	return nil
}
