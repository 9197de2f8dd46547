package redisdoc

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/xid"

	"github.com/sakif/reading-challenge/internal/apperror"
	"github.com/sakif/reading-challenge/internal/model"
)

// accountDoc is the stored form of model.Account. The model hides the
// password hash from JSON, the document must not.
type accountDoc struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"passwordHash,omitempty"`
	GitHubID     *int64    `json:"githubId,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

func toAccountDoc(a *model.Account) accountDoc {
	return accountDoc{
		ID:           a.ID,
		Email:        a.Email,
		PasswordHash: a.PasswordHash,
		GitHubID:     a.GitHubID,
		CreatedAt:    a.CreatedAt,
		UpdatedAt:    a.UpdatedAt,
	}
}

func (d accountDoc) model() *model.Account {
	return &model.Account{
		ID:           d.ID,
		Email:        d.Email,
		PasswordHash: d.PasswordHash,
		GitHubID:     d.GitHubID,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
}

func (s *Store) emailKey(email string) string { return s.key("account", "email", email) }

func (s *Store) githubKey(id int64) string {
	return s.key("account", "github", strconv.FormatInt(id, 10))
}

// CreateAccount checks the email and GitHub indexes, then writes the document
// and its index keys in one transaction.
func (s *Store) CreateAccount(ctx context.Context, account *model.Account) error {
	account.Email = strings.ToLower(strings.TrimSpace(account.Email))

	if account.Email != "" {
		taken, err := s.exists(ctx, s.emailKey(account.Email))
		if err != nil {
			return err
		}
		if taken {
			return apperror.Conflict("account", account.Email)
		}
	}
	if account.GitHubID != nil {
		taken, err := s.exists(ctx, s.githubKey(*account.GitHubID))
		if err != nil {
			return err
		}
		if taken {
			return apperror.Conflict("account", strconv.FormatInt(*account.GitHubID, 10))
		}
	}

	now := time.Now().UTC()
	account.ID = xid.New().String()
	account.CreatedAt = now
	account.UpdatedAt = now

	doc, err := mustJSON(toAccountDoc(account))
	if err != nil {
		return err
	}

	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.key("account", account.ID), doc, 0)
		if account.Email != "" {
			pipe.Set(ctx, s.emailKey(account.Email), account.ID, 0)
		}
		if account.GitHubID != nil {
			pipe.Set(ctx, s.githubKey(*account.GitHubID), account.ID, 0)
		}
		return nil
	})
	if err != nil {
		return failed("creating account", err)
	}
	return nil
}

func (s *Store) GetAccountByID(ctx context.Context, id string) (*model.Account, error) {
	var doc accountDoc
	found, err := s.getJSON(ctx, s.key("account", id), &doc)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, apperror.NotFound("account", id)
	}
	return doc.model(), nil
}

func (s *Store) GetAccountByEmail(ctx context.Context, email string) (*model.Account, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, apperror.NotFound("account", email)
	}

	id, err := s.getString(ctx, s.emailKey(email))
	if err != nil {
		return nil, err
	}
	if id == "" {
		return nil, apperror.NotFound("account", email)
	}
	return s.GetAccountByID(ctx, id)
}

// UpsertGitHubAccount keeps the existing ID for a known GitHub user and
// refreshes the email.
func (s *Store) UpsertGitHubAccount(ctx context.Context, account *model.Account) error {
	if account.GitHubID == nil {
		return apperror.ValidationFailed("githubId", "GitHub id is required")
	}

	id, err := s.getString(ctx, s.githubKey(*account.GitHubID))
	if err != nil {
		return err
	}
	if id == "" {
		return s.CreateAccount(ctx, account)
	}

	existing, err := s.GetAccountByID(ctx, id)
	if err != nil {
		return err
	}

	newEmail := strings.ToLower(strings.TrimSpace(account.Email))
	oldEmail := existing.Email
	if newEmail != oldEmail && newEmail != "" {
		owner, err := s.getString(ctx, s.emailKey(newEmail))
		if err != nil {
			return err
		}
		if owner != "" && owner != existing.ID {
			return apperror.Conflict("account", newEmail)
		}
		existing.Email = newEmail
	}
	existing.UpdatedAt = time.Now().UTC()

	doc, err := mustJSON(toAccountDoc(existing))
	if err != nil {
		return err
	}

	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.key("account", existing.ID), doc, 0)
		if existing.Email != oldEmail {
			if oldEmail != "" {
				pipe.Del(ctx, s.emailKey(oldEmail))
			}
			pipe.Set(ctx, s.emailKey(existing.Email), existing.ID, 0)
		}
		return nil
	})
	if err != nil {
		return failed("updating account", err)
	}

	*account = *existing
	return nil
}
