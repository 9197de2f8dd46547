package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/sakif/reading-challenge/internal/apperror"
	"github.com/sakif/reading-challenge/internal/model"
)

const profileColumns = `user_id, username, register_number, avatar_url, created_at, updated_at`

// CreateProfile inserts a profile. The primary key on user_id and the
// lower(username) index turn duplicates into apperror.ErrConflict.
func (db *DB) CreateProfile(ctx context.Context, p *model.Profile) error {
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO profiles (`+profileColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		p.UserID,
		p.Username,
		p.RegisterNumber,
		p.AvatarURL,
		p.CreatedAt,
		p.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("profile", p.Username)
		}
		return failed("creating profile", err)
	}
	return nil
}

// GetProfile returns the profile owned by userID.
func (db *DB) GetProfile(ctx context.Context, userID string) (*model.Profile, error) {
	var p model.Profile
	err := db.conn.QueryRowContext(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE user_id = ?`, userID,
	).Scan(&p.UserID, &p.Username, &p.RegisterNumber, &p.AvatarURL, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("profile", userID)
		}
		return nil, failed("getting profile", err)
	}
	return &p, nil
}

// UpdateProfile writes only the fields set in update.
func (db *DB) UpdateProfile(ctx context.Context, userID string, update model.ProfileUpdate) (*model.Profile, error) {
	sets := []string{"updated_at = ?"}
	args := []any{time.Now().UTC()}

	if update.Username != nil {
		sets = append(sets, "username = ?")
		args = append(args, *update.Username)
	}
	if update.RegisterNumber != nil {
		sets = append(sets, "register_number = ?")
		args = append(args, *update.RegisterNumber)
	}
	if update.AvatarURL != nil {
		sets = append(sets, "avatar_url = ?")
		args = append(args, *update.AvatarURL)
	}
	args = append(args, userID)

	result, err := db.conn.ExecContext(ctx,
		`UPDATE profiles SET `+strings.Join(sets, ", ")+` WHERE user_id = ?`, args...)
	if err != nil {
		if isUniqueViolation(err) && update.Username != nil {
			return nil, apperror.Conflict("profile", *update.Username)
		}
		return nil, failed("updating profile", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return nil, failed("checking rows affected", err)
	}
	if rows == 0 {
		return nil, apperror.NotFound("profile", userID)
	}

	return db.GetProfile(ctx, userID)
}

// IsUsernameAvailable reports whether no profile uses username in any case.
func (db *DB) IsUsernameAvailable(ctx context.Context, username string) (bool, error) {
	var count int
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM profiles WHERE lower(username) = lower(?)`, username,
	).Scan(&count)
	if err != nil {
		return false, failed("checking username", err)
	}
	return count == 0, nil
}
