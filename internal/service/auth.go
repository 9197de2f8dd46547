package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/sakif/reading-challenge/internal/apperror"
	"github.com/sakif/reading-challenge/internal/auth"
	"github.com/sakif/reading-challenge/internal/model"
	"github.com/sakif/reading-challenge/internal/repository"
	"github.com/sakif/reading-challenge/internal/validation"
)

const invalidCredentials = "Invalid email or password"

// Credentials is the sign-up / sign-in payload.
type Credentials struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

// Session is what a successful sign-in produces. The handler puts Token in
// the session cookie.
type Session struct {
	Account   *model.Account
	Token     string
	ExpiresAt time.Time
}

// CurrentUser is the signed-in account and its profile. Profile is nil
// until the user creates one.
type CurrentUser struct {
	Account *model.Account `json:"account"`
	Profile *model.Profile `json:"profile"`
}

// SessionEventKind says what happened to a session.
type SessionEventKind string

const (
	SignedIn  SessionEventKind = "signed_in"
	SignedOut SessionEventKind = "signed_out"
)

// SessionEvent is delivered to OnSessionChange listeners.
type SessionEvent struct {
	Kind   SessionEventKind
	UserID string
	// Method is "password" or "github" for SignedIn events.
	Method string
}

// AuthService owns sign-up, sign-in and sign-out.
type AuthService struct {
	accounts  repository.AccountRepository
	profiles  repository.ProfileRepository
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	validate  *validation.Validator
	logger    *slog.Logger

	mu        sync.Mutex
	listeners map[int]func(SessionEvent)
	nextID    int
}

func NewAuthService(
	accounts repository.AccountRepository,
	profiles repository.ProfileRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	validate *validation.Validator,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		accounts:  accounts,
		profiles:  profiles,
		tokens:    tokens,
		passwords: passwords,
		validate:  validate,
		logger:    logger,
		listeners: make(map[int]func(SessionEvent)),
	}
}

// SignUp creates a password account and signs it in.
func (s *AuthService) SignUp(ctx context.Context, creds Credentials) (*Session, error) {
	creds.Email = strings.ToLower(strings.TrimSpace(creds.Email))
	if err := s.validate.Struct(creds); err != nil {
		return nil, err
	}

	hash, err := s.passwords.Hash(creds.Password)
	if err != nil {
		return nil, apperror.ValidationFailed("password", "Password is too long")
	}

	account := &model.Account{Email: creds.Email, PasswordHash: hash}
	if err := s.accounts.CreateAccount(ctx, account); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			return nil, &apperror.AppError{
				Err:     apperror.ErrConflict,
				Message: "An account with this email already exists",
				Field:   "email",
			}
		}
		return nil, err
	}

	s.logger.Info("account created", slog.String("userID", account.ID))
	return s.startSession(account, "password")
}

// SignIn checks an email and password. Unknown email and wrong password give
// the same error.
func (s *AuthService) SignIn(ctx context.Context, creds Credentials) (*Session, error) {
	email := strings.ToLower(strings.TrimSpace(creds.Email))
	if email == "" || creds.Password == "" {
		return nil, apperror.Unauthorized(invalidCredentials)
	}

	account, err := s.accounts.GetAccountByEmail(ctx, email)
	if errors.Is(err, apperror.ErrNotFound) {
		return nil, apperror.Unauthorized(invalidCredentials)
	}
	if err != nil {
		return nil, err
	}

	if err := s.passwords.Verify(account.PasswordHash, creds.Password); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			s.logger.Info("sign-in rejected", slog.String("userID", account.ID))
			return nil, apperror.Unauthorized(invalidCredentials)
		}
		return nil, fmt.Errorf("service/auth: verifying password: %w", err)
	}

	return s.startSession(account, "password")
}

// SignInGitHub finds or creates the account for a GitHub user and signs it
// in.
func (s *AuthService) SignInGitHub(ctx context.Context, gh *auth.GitHubUser) (*Session, error) {
	if gh == nil || gh.ID == 0 {
		return nil, fmt.Errorf("service/auth: GitHub user must not be empty")
	}

	id := gh.ID
	account := &model.Account{Email: gh.Email, GitHubID: &id}
	if err := s.accounts.UpsertGitHubAccount(ctx, account); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			return nil, &apperror.AppError{
				Err:     apperror.ErrConflict,
				Message: "Your GitHub email already belongs to a password account. Sign in with your password instead.",
				Field:   "email",
			}
		}
		return nil, err
	}

	s.logger.Info("account signed in via GitHub", slog.String("userID", account.ID), slog.String("login", gh.Login))
	return s.startSession(account, "github")
}

// SignOut announces the end of a session. Clearing the cookie is the
// handler's job.
func (s *AuthService) SignOut(_ context.Context, userID string) {
	s.notify(SessionEvent{Kind: SignedOut, UserID: userID})
}

// CurrentUser loads the account behind a session and its profile. A session
// whose account no longer exists is treated as signed out.
func (s *AuthService) CurrentUser(ctx context.Context, userID string) (*CurrentUser, error) {
	account, err := s.accounts.GetAccountByID(ctx, userID)
	if errors.Is(err, apperror.ErrNotFound) {
		return nil, apperror.Unauthorized("Your session has ended. Please sign in again.")
	}
	if err != nil {
		return nil, err
	}

	profile, err := s.profiles.GetProfile(ctx, userID)
	if err != nil && !errors.Is(err, apperror.ErrNotFound) {
		return nil, err
	}

	return &CurrentUser{Account: account, Profile: profile}, nil
}

// OnSessionChange registers fn for sign-in and sign-out events and returns a
// function that removes it. fn runs synchronously on the request goroutine.
func (s *AuthService) OnSessionChange(fn func(SessionEvent)) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	s.listeners[id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

func (s *AuthService) startSession(account *model.Account, method string) (*Session, error) {
	token, expires, err := s.tokens.Issue(account.ID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: issuing token for %s: %w", account.ID, err)
	}

	s.notify(SessionEvent{Kind: SignedIn, UserID: account.ID, Method: method})
	return &Session{Account: account, Token: token, ExpiresAt: expires}, nil
}

func (s *AuthService) notify(ev SessionEvent) {
	s.mu.Lock()
	fns := make([]func(SessionEvent), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}
