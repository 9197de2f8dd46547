package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sakif/reading-challenge/internal/apperror"
	"github.com/sakif/reading-challenge/internal/repository"
)

var _ repository.AvatarStore = (*LocalStore)(nil)

// LocalStore writes avatars under a directory that the server exposes at
// baseURL. File names carry a timestamp so browsers never show a stale
// picture after a change.
type LocalStore struct {
	dir     string
	baseURL string
}

// NewLocalStore creates dir if needed.
func NewLocalStore(dir, baseURL string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating avatar directory: %w", err)
	}
	return &LocalStore{dir: dir, baseURL: strings.TrimSuffix(baseURL, "/")}, nil
}

// Dir is the directory avatars are written to.
func (s *LocalStore) Dir() string { return s.dir }

// UploadAvatar writes image as {userID}-{nanos}.png and removes the user's
// older files.
func (s *LocalStore) UploadAvatar(ctx context.Context, userID string, image []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if userID == "" || strings.ContainsAny(userID, `/\.`) {
		return "", apperror.ValidationFailed("userId", "invalid user id")
	}

	old, _ := filepath.Glob(filepath.Join(s.dir, userID+"-*.png"))

	name := fmt.Sprintf("%s-%d.png", userID, time.Now().UnixNano())
	tmp := filepath.Join(s.dir, "."+name+".tmp")
	if err := os.WriteFile(tmp, image, 0o644); err != nil {
		return "", apperror.Unavailable("local avatar store", err)
	}
	if err := os.Rename(tmp, filepath.Join(s.dir, name)); err != nil {
		_ = os.Remove(tmp)
		return "", apperror.Unavailable("local avatar store", err)
	}

	for _, f := range old {
		_ = os.Remove(f)
	}

	return s.baseURL + "/" + name, nil
}
