package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"github.com/AnshRaj112/thriftit-backend/internal/assets"
	"github.com/AnshRaj112/thriftit-backend/internal/errs"
	"github.com/AnshRaj112/thriftit-backend/internal/models"
)

// ProfileImageUploader stores a new profile picture and returns its URL.
type ProfileImageUploader interface {
	UploadProfileImage(ctx context.Context, uid string, src assets.Source) (string, error)
}

// ProfileForm is the editable part of a profile.
type ProfileForm struct {
	DisplayName string              `form:"displayName" validate:"required,min=2,max=50"`
	Location    string              `form:"location" validate:"required"`
	Coordinates *models.Coordinates `form:"-"`
	Image       *assets.Source      `form:"-"`
}

var profileMessages = map[string]string{
	"displayName.required": "Name is required",
	"displayName.min":      "Name must be at least 2 characters",
	"displayName.max":      "Name must be under 50 characters",
	"location.required":    "Location is required",
}

// UserService reads profiles from the remote store and keeps the local cache
// and the Redis profile cache in step.
type UserService struct {
	local    LocalUserStore
	remote   RemoteUserStore
	net      Connectivity
	cache    *Cache
	images   ProfileImageUploader
	validate *validator.Validate
	now      func() time.Time
}

func NewUserService(local LocalUserStore, remote RemoteUserStore, net Connectivity, cache *Cache, images ProfileImageUploader) *UserService {
	return &UserService{
		local:    local,
		remote:   remote,
		net:      net,
		cache:    cache,
		images:   images,
		validate: NewValidator(),
		now:      time.Now,
	}
}

func userKey(uid string) string { return CacheKey("user", uid) }

// GetUser returns the profile from the Redis cache, then the remote store,
// then the local cache. When every source misses the remote error is returned.
func (s *UserService) GetUser(ctx context.Context, uid string) (models.User, error) {
	var u models.User
	if hit, err := s.cache.Get(ctx, userKey(uid), &u); err != nil {
		log.Warn().Err(err).Str("uid", uid).Msg("profile cache read failed")
	} else if hit {
		return u, nil
	}

	var remoteErr error
	if s.net.Online() {
		u, err := s.remote.Get(ctx, uid)
		if err == nil {
			u.IsSynced = true
			if err := s.local.Upsert(ctx, u); err != nil {
				log.Warn().Err(err).Str("uid", uid).Msg("profile not cached locally")
			}
			if err := s.cache.Set(ctx, userKey(uid), u); err != nil {
				log.Warn().Err(err).Str("uid", uid).Msg("profile cache write failed")
			}
			return u, nil
		}
		remoteErr = err
	} else {
		remoteErr = fmt.Errorf("get user %s: %w", uid, errs.ErrOffline)
	}

	u, err := s.local.GetByID(ctx, uid)
	if err != nil {
		return models.User{}, remoteErr
	}
	return u, nil
}

// LocalUser reads only the local cache.
func (s *UserService) LocalUser(ctx context.Context, uid string) (models.User, error) {
	return s.local.GetByID(ctx, uid)
}

// EnsureUser returns the remote profile for a verified identity, creating a
// skeleton profile on first sign-in.
func (s *UserService) EnsureUser(ctx context.Context, uid, phone string) (models.User, error) {
	if !s.net.Online() {
		return models.User{}, fmt.Errorf("sign in %s: %w", uid, errs.ErrOffline)
	}
	u, err := s.remote.Get(ctx, uid)
	switch {
	case errors.Is(err, errs.ErrNotFound):
		u = models.User{UID: uid, PhoneNumber: phone, LastUpdated: s.now().UnixMilli()}
		if err := s.remote.Set(ctx, u); err != nil {
			return models.User{}, err
		}
		log.Info().Str("uid", uid).Msg("user created")
	case err != nil:
		return models.User{}, err
	}

	u.IsSynced = true
	if err := s.local.Upsert(ctx, u); err != nil {
		log.Warn().Err(err).Str("uid", uid).Msg("profile not cached locally")
	}
	return u, nil
}

// UpdateProfile stamps the profile and merges it over the remote document.
func (s *UserService) UpdateProfile(ctx context.Context, u models.User) (models.User, error) {
	if !s.net.Online() {
		return models.User{}, fmt.Errorf("update user %s: %w", u.UID, errs.ErrOffline)
	}
	u.LastUpdated = s.now().UnixMilli()
	if err := s.remote.Merge(ctx, u); err != nil {
		return models.User{}, err
	}
	u.IsSynced = true
	if err := s.local.Upsert(ctx, u); err != nil {
		log.Warn().Err(err).Str("uid", u.UID).Msg("profile not cached locally")
	}
	s.evictCache(ctx, u.UID)
	return u, nil
}

func (s *UserService) UpdateLocation(ctx context.Context, uid, location string, coords *models.Coordinates) error {
	if !s.net.Online() {
		return fmt.Errorf("update location %s: %w", uid, errs.ErrOffline)
	}
	at := s.now().UnixMilli()
	if err := s.remote.UpdateLocation(ctx, uid, location, coords, at); err != nil {
		return err
	}
	err := s.local.UpdateLocation(ctx, uid, location, coords, at)
	if err != nil && !errors.Is(err, errs.ErrNotFound) {
		log.Warn().Err(err).Str("uid", uid).Msg("cached location not updated")
	}
	s.evictCache(ctx, uid)
	return nil
}

func (s *UserService) UpdateProfileImage(ctx context.Context, uid, url string) error {
	if !s.net.Online() {
		return fmt.Errorf("update profile image %s: %w", uid, errs.ErrOffline)
	}
	at := s.now().UnixMilli()
	if err := s.remote.UpdateProfileImage(ctx, uid, url, at); err != nil {
		return err
	}
	if u, err := s.local.GetByID(ctx, uid); err == nil {
		u.ProfileImageURL = &url
		u.LastUpdated = at
		if err := s.local.Upsert(ctx, u); err != nil {
			log.Warn().Err(err).Str("uid", uid).Msg("cached profile image not updated")
		}
	}
	s.evictCache(ctx, uid)
	return nil
}

// DeleteUser removes the profile everywhere.
func (s *UserService) DeleteUser(ctx context.Context, uid string) error {
	if !s.net.Online() {
		return fmt.Errorf("delete user %s: %w", uid, errs.ErrOffline)
	}
	if err := s.remote.Delete(ctx, uid); err != nil {
		return err
	}
	s.Forget(ctx, uid)
	return nil
}

// Forget drops the locally cached copies of a profile.
func (s *UserService) Forget(ctx context.Context, uid string) {
	if err := s.local.DeleteByID(ctx, uid); err != nil {
		log.Warn().Err(err).Str("uid", uid).Msg("cached profile not removed")
	}
	s.evictCache(ctx, uid)
}

// SaveProfile validates the form, uploads a new picture when one is given and
// writes the profile.
func (s *UserService) SaveProfile(ctx context.Context, uid string, form ProfileForm) (models.User, error) {
	form.DisplayName = strings.TrimSpace(form.DisplayName)
	form.Location = strings.TrimSpace(form.Location)
	if err := checkForm(s.validate, form, profileMessages); err != nil {
		return models.User{}, err
	}

	u, err := s.GetUser(ctx, uid)
	if errors.Is(err, errs.ErrNotFound) {
		u, err = models.User{UID: uid}, nil
	}
	if err != nil {
		return models.User{}, err
	}

	if form.Image != nil {
		url, err := s.images.UploadProfileImage(ctx, uid, *form.Image)
		if err != nil {
			return models.User{}, fmt.Errorf("upload profile image: %w", err)
		}
		u.ProfileImageURL = &url
	}
	u.DisplayName = &form.DisplayName
	u.Location = &form.Location
	if form.Coordinates != nil {
		u.Coordinates = form.Coordinates
	}
	return s.UpdateProfile(ctx, u)
}

func (s *UserService) evictCache(ctx context.Context, uid string) {
	if err := s.cache.Delete(ctx, userKey(uid)); err != nil {
		log.Warn().Err(err).Str("uid", uid).Msg("profile cache not evicted")
	}
}
