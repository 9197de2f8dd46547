package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/reading-challenge/internal/apperror"
	"github.com/sakif/reading-challenge/internal/model"
)

const accountColumns = `id, email, password_hash, github_id, created_at, updated_at`

// CreateAccount inserts a new account. Emails are stored lower-cased.
func (db *DB) CreateAccount(ctx context.Context, account *model.Account) error {
	now := time.Now().UTC()
	account.ID = xid.New().String()
	account.Email = strings.ToLower(strings.TrimSpace(account.Email))
	account.CreatedAt = now
	account.UpdatedAt = now

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO accounts (`+accountColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		account.ID,
		account.Email,
		account.PasswordHash,
		nullableInt64(account.GitHubID),
		account.CreatedAt,
		account.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("account", account.Email)
		}
		return failed("creating account", err)
	}
	return nil
}

// GetAccountByID retrieves an account by its internal ID.
func (db *DB) GetAccountByID(ctx context.Context, id string) (*model.Account, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = ?`, id)
	return scanAccount(row, id)
}

// GetAccountByEmail retrieves an account by email, case-insensitively.
func (db *DB) GetAccountByEmail(ctx context.Context, email string) (*model.Account, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE email = ? AND email <> ''`, email)
	return scanAccount(row, email)
}

// UpsertGitHubAccount keeps the existing internal ID for a known GitHub id
// and refreshes the email; otherwise it inserts a new account.
func (db *DB) UpsertGitHubAccount(ctx context.Context, account *model.Account) error {
	if account.GitHubID == nil {
		return apperror.ValidationFailed("githubId", "GitHub id is required")
	}

	var existingID string
	err := db.conn.QueryRowContext(ctx,
		`SELECT id FROM accounts WHERE github_id = ?`, *account.GitHubID,
	).Scan(&existingID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return failed("looking up account by github_id", err)
	}

	if existingID == "" {
		return db.CreateAccount(ctx, account)
	}

	// An empty email from the provider keeps the stored one.
	account.Email = strings.ToLower(strings.TrimSpace(account.Email))
	_, err = db.conn.ExecContext(ctx,
		`UPDATE accounts
		 SET email = CASE WHEN ? = '' THEN email ELSE ? END, updated_at = ?
		 WHERE id = ?`,
		account.Email, account.Email, time.Now().UTC(), existingID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("account", account.Email)
		}
		return failed("updating account", err)
	}

	stored, err := db.GetAccountByID(ctx, existingID)
	if err != nil {
		return err
	}
	*account = *stored
	return nil
}

func scanAccount(row *sql.Row, key string) (*model.Account, error) {
	var (
		a        model.Account
		githubID sql.NullInt64
	)
	err := row.Scan(&a.ID, &a.Email, &a.PasswordHash, &githubID, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("account", key)
		}
		return nil, failed("reading account", err)
	}
	if githubID.Valid {
		id := githubID.Int64
		a.GitHubID = &id
	}
	return &a, nil
}

func nullableInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}
