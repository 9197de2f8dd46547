// Package storage holds the AvatarStore implementations.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"

	"github.com/sakif/reading-challenge/internal/apperror"
	"github.com/sakif/reading-challenge/internal/repository"
)

var _ repository.AvatarStore = (*CloudinaryStore)(nil)

// CloudinaryStore uploads avatars to Cloudinary. Each user has one public ID,
// so a new upload replaces the previous picture.
type CloudinaryStore struct {
	cld    *cloudinary.Cloudinary
	folder string
}

// NewCloudinaryStore creates a store from explicit credentials.
func NewCloudinaryStore(cloudName, apiKey, apiSecret, folder string) (*CloudinaryStore, error) {
	if cloudName == "" || apiKey == "" || apiSecret == "" {
		return nil, errors.New("cloudinary configuration is missing")
	}

	cld, err := cloudinary.NewFromParams(cloudName, apiKey, apiSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cloudinary: %w", err)
	}
	cld.Config.URL.Secure = true

	return &CloudinaryStore{cld: cld, folder: folder}, nil
}

// UploadAvatar uploads a normalised PNG and returns its HTTPS URL.
func (s *CloudinaryStore) UploadAvatar(ctx context.Context, userID string, image []byte) (string, error) {
	resp, err := s.cld.Upload.Upload(ctx, bytes.NewReader(image), uploader.UploadParams{
		PublicID:     userID,
		Folder:       s.folder,
		Overwrite:    api.Bool(true),
		Invalidate:   api.Bool(true),
		ResourceType: "image",
		Format:       "png",
	})
	if err != nil {
		return "", apperror.Unavailable("cloudinary: uploading avatar", err)
	}
	if resp.Error.Message != "" {
		return "", apperror.Unavailable("cloudinary: uploading avatar", errors.New(resp.Error.Message))
	}
	if resp.SecureURL == "" {
		return "", apperror.Unavailable("cloudinary: uploading avatar", errors.New("upload succeeded but secure URL is empty"))
	}
	return resp.SecureURL, nil
}
