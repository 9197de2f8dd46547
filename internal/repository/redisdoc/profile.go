package redisdoc

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sakif/reading-challenge/internal/apperror"
	"github.com/sakif/reading-challenge/internal/model"
)

func (s *Store) profileKey(userID string) string { return s.key("profile", userID) }

func (s *Store) usernameKey(username string) string {
	return s.key("profile", "username", strings.ToLower(username))
}

// CreateProfile checks for an existing profile and a taken username before
// writing.
func (s *Store) CreateProfile(ctx context.Context, p *model.Profile) error {
	has, err := s.exists(ctx, s.profileKey(p.UserID))
	if err != nil {
		return err
	}
	if has {
		return apperror.Conflict("profile", p.UserID)
	}

	taken, err := s.exists(ctx, s.usernameKey(p.Username))
	if err != nil {
		return err
	}
	if taken {
		return apperror.Conflict("profile", p.Username)
	}

	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	doc, err := mustJSON(p)
	if err != nil {
		return err
	}

	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.profileKey(p.UserID), doc, 0)
		pipe.Set(ctx, s.usernameKey(p.Username), p.UserID, 0)
		return nil
	})
	if err != nil {
		return failed("creating profile", err)
	}
	return nil
}

func (s *Store) GetProfile(ctx context.Context, userID string) (*model.Profile, error) {
	var p model.Profile
	found, err := s.getJSON(ctx, s.profileKey(userID), &p)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, apperror.NotFound("profile", userID)
	}
	return &p, nil
}

// UpdateProfile applies the non-nil fields. A username change moves the
// username index key; a change of letter case only rewrites the document.
func (s *Store) UpdateProfile(ctx context.Context, userID string, update model.ProfileUpdate) (*model.Profile, error) {
	p, err := s.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	oldUsername := p.Username
	renamed := update.Username != nil && !strings.EqualFold(*update.Username, oldUsername)

	if renamed {
		owner, err := s.getString(ctx, s.usernameKey(*update.Username))
		if err != nil {
			return nil, err
		}
		if owner != "" && owner != userID {
			return nil, apperror.Conflict("profile", *update.Username)
		}
	}

	if update.Username != nil {
		p.Username = *update.Username
	}
	if update.RegisterNumber != nil {
		p.RegisterNumber = *update.RegisterNumber
	}
	if update.AvatarURL != nil {
		p.AvatarURL = *update.AvatarURL
	}
	p.UpdatedAt = time.Now().UTC()

	doc, err := mustJSON(p)
	if err != nil {
		return nil, err
	}

	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.profileKey(userID), doc, 0)
		if renamed {
			pipe.Del(ctx, s.usernameKey(oldUsername))
			pipe.Set(ctx, s.usernameKey(p.Username), userID, 0)
		}
		return nil
	})
	if err != nil {
		return nil, failed("updating profile", err)
	}
	return p, nil
}

func (s *Store) IsUsernameAvailable(ctx context.Context, username string) (bool, error) {
	taken, err := s.exists(ctx, s.usernameKey(username))
	if err != nil {
		return false, err
	}
	return !taken, nil
}
