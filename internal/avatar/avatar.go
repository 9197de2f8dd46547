// Package avatar turns an uploaded profile picture into a square PNG of a
// fixed size before it is handed to an AvatarStore.
package avatar

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"net/http"

	// Registered decoders.
	_ "image/gif"
	_ "image/jpeg"

	_ "golang.org/x/image/webp"

	"golang.org/x/image/draw"

	"github.com/sakif/reading-challenge/internal/apperror"
)

const (
	// MaxUploadBytes caps the raw upload.
	MaxUploadBytes = 2 << 20
	// Size is the edge length of the stored PNG.
	Size = 256
)

var allowedTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

// Normalize validates raw, center-crops it to a square and scales it to
// size×size. The result is always PNG.
func Normalize(raw []byte, size int) ([]byte, error) {
	if len(raw) == 0 {
		return nil, apperror.ValidationFailed("avatar", "Avatar image is empty")
	}
	if len(raw) > MaxUploadBytes {
		return nil, apperror.ValidationFailed("avatar", "Avatar image must be 2 MB or smaller")
	}

	contentType := http.DetectContentType(raw)
	if !allowedTypes[contentType] {
		return nil, apperror.ValidationFailed("avatar", "Avatar must be a JPEG, PNG, GIF or WebP image")
	}

	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, apperror.ValidationFailed("avatar", "Avatar image could not be decoded")
	}

	b := img.Bounds()
	side := min(b.Dx(), b.Dy())
	if side == 0 {
		return nil, apperror.ValidationFailed("avatar", "Avatar image has no pixels")
	}
	crop := image.Rect(0, 0, side, side).Add(image.Point{
		X: b.Min.X + (b.Dx()-side)/2,
		Y: b.Min.Y + (b.Dy()-side)/2,
	})

	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, crop, draw.Src, nil)

	var out bytes.Buffer
	if err := png.Encode(&out, dst); err != nil {
		return nil, fmt.Errorf("encoding avatar png: %w", err)
	}
	return out.Bytes(), nil
}
