package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/sakif/reading-challenge/internal/apperror"
	"github.com/sakif/reading-challenge/internal/avatar"
	"github.com/sakif/reading-challenge/internal/model"
	"github.com/sakif/reading-challenge/internal/repository"
	"github.com/sakif/reading-challenge/internal/validation"
)

const usernameTakenMessage = "That username is already taken"

// ProfileInput is the payload for creating a profile.
type ProfileInput struct {
	Username       string `json:"username" validate:"required,username"`
	RegisterNumber string `json:"registerNumber" validate:"max=50"`
	AvatarURL      string `json:"avatarUrl" validate:"omitempty,url,max=2048"`
}

// ProfilePatch is the payload for a partial update. Nil fields are left
// alone.
type ProfilePatch struct {
	Username       *string `json:"username" validate:"omitempty,username"`
	RegisterNumber *string `json:"registerNumber" validate:"omitempty,max=50"`
}

type ProfileService struct {
	profiles repository.ProfileRepository
	avatars  repository.AvatarStore
	validate *validation.Validator
	logger   *slog.Logger
}

func NewProfileService(
	profiles repository.ProfileRepository,
	avatars repository.AvatarStore,
	validate *validation.Validator,
	logger *slog.Logger,
) *ProfileService {
	return &ProfileService{
		profiles: profiles,
		avatars:  avatars,
		validate: validate,
		logger:   logger,
	}
}

// Get returns the user's profile, or (nil, nil) if they have not created one.
func (s *ProfileService) Get(ctx context.Context, userID string) (*model.Profile, error) {
	p, err := s.profiles.GetProfile(ctx, userID)
	if errors.Is(err, apperror.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Create stores the user's one profile.
func (s *ProfileService) Create(ctx context.Context, userID string, in ProfileInput) (*model.Profile, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.RegisterNumber = strings.TrimSpace(in.RegisterNumber)
	if err := s.validate.Struct(in); err != nil {
		return nil, err
	}

	existing, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, &apperror.AppError{
			Err:     apperror.ErrConflict,
			Message: "You already have a profile",
		}
	}

	available, err := s.profiles.IsUsernameAvailable(ctx, in.Username)
	if err != nil {
		return nil, err
	}
	if !available {
		return nil, apperror.Duplicate("username", usernameTakenMessage)
	}

	p := &model.Profile{
		UserID:         userID,
		Username:       in.Username,
		RegisterNumber: in.RegisterNumber,
		AvatarURL:      in.AvatarURL,
	}
	if err := s.profiles.CreateProfile(ctx, p); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			return nil, apperror.Duplicate("username", usernameTakenMessage)
		}
		return nil, err
	}

	s.logger.Info("profile created", slog.String("userID", userID), slog.String("username", p.Username))
	return p, nil
}

// Update applies a partial change to the caller's own profile.
func (s *ProfileService) Update(ctx context.Context, userID string, patch ProfilePatch) (*model.Profile, error) {
	if patch.Username != nil {
		trimmed := strings.TrimSpace(*patch.Username)
		patch.Username = &trimmed
	}
	if patch.RegisterNumber != nil {
		trimmed := strings.TrimSpace(*patch.RegisterNumber)
		patch.RegisterNumber = &trimmed
	}
	if err := s.validate.Struct(patch); err != nil {
		return nil, err
	}

	update := model.ProfileUpdate{
		Username:       patch.Username,
		RegisterNumber: patch.RegisterNumber,
	}
	if update.IsEmpty() {
		return nil, apperror.ValidationFailed("", "Nothing to update")
	}

	current, err := s.profiles.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	if update.Username != nil && !strings.EqualFold(*update.Username, current.Username) {
		available, err := s.profiles.IsUsernameAvailable(ctx, *update.Username)
		if err != nil {
			return nil, err
		}
		if !available {
			return nil, apperror.Duplicate("username", usernameTakenMessage)
		}
	}

	p, err := s.profiles.UpdateProfile(ctx, userID, update)
	if err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			return nil, apperror.Duplicate("username", usernameTakenMessage)
		}
		return nil, err
	}

	s.logger.Info("profile updated", slog.String("userID", userID))
	return p, nil
}

// UsernameAvailable checks the format first, then asks the backend.
func (s *ProfileService) UsernameAvailable(ctx context.Context, username string) (bool, error) {
	username = strings.TrimSpace(username)
	if !validation.ValidUsername(username) {
		return false, apperror.ValidationFailed("username",
			"Username must be 3-20 characters: letters, digits or underscore")
	}
	return s.profiles.IsUsernameAvailable(ctx, username)
}

// UploadAvatar normalises the image, stores it and points the profile at
// the new URL.
func (s *ProfileService) UploadAvatar(ctx context.Context, userID string, raw []byte) (*model.Profile, error) {
	if _, err := s.profiles.GetProfile(ctx, userID); err != nil {
		return nil, err
	}

	img, err := avatar.Normalize(raw, avatar.Size)
	if err != nil {
		return nil, err
	}

	url, err := s.avatars.UploadAvatar(ctx, userID, img)
	if err != nil {
		return nil, err
	}

	p, err := s.profiles.UpdateProfile(ctx, userID, model.ProfileUpdate{AvatarURL: &url})
	if err != nil {
		return nil, err
	}

	s.logger.Info("avatar uploaded", slog.String("userID", userID), slog.String("url", url))
	return p, nil
}
