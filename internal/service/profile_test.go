package service

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/reading-challenge/internal/apperror"
	"github.com/sakif/reading-challenge/internal/validation"
)

func newProfileService(store *fakeStore, avatars *fakeAvatarStore) *ProfileService {
	if avatars == nil {
		avatars = &fakeAvatarStore{}
	}
	return NewProfileService(store, avatars, validation.New(), testLogger())
}

func strPtr(s string) *string { return &s }

func TestProfileService_Create(t *testing.T) {
	store := newFakeStore()
	svc := newProfileService(store, nil)

	p, err := svc.Create(context.Background(), "u1", ProfileInput{
		Username:       "  Reader_1 ",
		RegisterNumber: "21BCE0001",
	})
	require.NoError(t, err)
	assert.Equal(t, "Reader_1", p.Username)
	assert.Equal(t, "u1", p.UserID)

	got, err := svc.Get(context.Background(), "u1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "21BCE0001", got.RegisterNumber)
}

func TestProfileService_Create_Rejects(t *testing.T) {
	store := newFakeStore()
	svc := newProfileService(store, nil)
	_, err := svc.Create(context.Background(), "u1", ProfileInput{Username: "reader_1"})
	require.NoError(t, err)

	tests := []struct {
		name   string
		userID string
		in     ProfileInput
		want   error
		field  string
	}{
		{"too short", "u2", ProfileInput{Username: "ab"}, apperror.ErrValidation, "username"},
		{"bad characters", "u2", ProfileInput{Username: "hello world"}, apperror.ErrValidation, "username"},
		{"register number too long", "u2", ProfileInput{Username: "reader_2", RegisterNumber: string(bytes.Repeat([]byte("x"), 51))}, apperror.ErrValidation, "registerNumber"},
		{"taken in another case", "u2", ProfileInput{Username: "READER_1"}, apperror.ErrDuplicate, "username"},
		{"second profile", "u1", ProfileInput{Username: "reader_9"}, apperror.ErrConflict, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), tt.userID, tt.in)
			require.ErrorIs(t, err, tt.want)

			var appErr *apperror.AppError
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, tt.field, appErr.Field)
		})
	}
}

func TestProfileService_Get_Missing(t *testing.T) {
	svc := newProfileService(newFakeStore(), nil)

	p, err := svc.Get(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestProfileService_Update(t *testing.T) {
	store := newFakeStore()
	svc := newProfileService(store, nil)
	_, err := svc.Create(context.Background(), "u1", ProfileInput{Username: "reader_1", RegisterNumber: "R1"})
	require.NoError(t, err)
	_, err = svc.Create(context.Background(), "u2", ProfileInput{Username: "other"})
	require.NoError(t, err)

	// Changing only the letter case of your own name is allowed.
	p, err := svc.Update(context.Background(), "u1", ProfilePatch{Username: strPtr("Reader_1")})
	require.NoError(t, err)
	assert.Equal(t, "Reader_1", p.Username)
	assert.Equal(t, "R1", p.RegisterNumber)

	p, err = svc.Update(context.Background(), "u1", ProfilePatch{RegisterNumber: strPtr("R2")})
	require.NoError(t, err)
	assert.Equal(t, "R2", p.RegisterNumber)
	assert.Equal(t, "Reader_1", p.Username)

	_, err = svc.Update(context.Background(), "u1", ProfilePatch{Username: strPtr("OTHER")})
	assert.ErrorIs(t, err, apperror.ErrDuplicate)

	_, err = svc.Update(context.Background(), "u1", ProfilePatch{Username: strPtr("x")})
	assert.ErrorIs(t, err, apperror.ErrValidation)

	_, err = svc.Update(context.Background(), "u1", ProfilePatch{})
	assert.ErrorIs(t, err, apperror.ErrValidation)

	_, err = svc.Update(context.Background(), "nobody", ProfilePatch{RegisterNumber: strPtr("R3")})
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestProfileService_UsernameAvailable(t *testing.T) {
	store := newFakeStore()
	svc := newProfileService(store, nil)
	_, err := svc.Create(context.Background(), "u1", ProfileInput{Username: "Taken_Name"})
	require.NoError(t, err)

	ok, err := svc.UsernameAvailable(context.Background(), "taken_name")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = svc.UsernameAvailable(context.Background(), "free_name")
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = svc.UsernameAvailable(context.Background(), "no")
	assert.ErrorIs(t, err, apperror.ErrValidation)
}

func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestProfileService_UploadAvatar(t *testing.T) {
	store := newFakeStore()
	avatars := &fakeAvatarStore{}
	svc := newProfileService(store, avatars)
	_, err := svc.Create(context.Background(), "u1", ProfileInput{Username: "reader_1"})
	require.NoError(t, err)

	p, err := svc.UploadAvatar(context.Background(), "u1", testPNG(t, 64, 32))
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.test/avatars/u1.png", p.AvatarURL)

	stored, err := png.Decode(bytes.NewReader(avatars.uploads["u1"]))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 256, 256), stored.Bounds())
}

func TestProfileService_UploadAvatar_Rejects(t *testing.T) {
	store := newFakeStore()
	avatars := &fakeAvatarStore{}
	svc := newProfileService(store, avatars)

	_, err := svc.UploadAvatar(context.Background(), "u1", testPNG(t, 8, 8))
	assert.ErrorIs(t, err, apperror.ErrNotFound, "no profile yet")

	_, err = svc.Create(context.Background(), "u1", ProfileInput{Username: "reader_1"})
	require.NoError(t, err)

	_, err = svc.UploadAvatar(context.Background(), "u1", []byte("not an image"))
	assert.ErrorIs(t, err, apperror.ErrValidation)

	avatars.err = apperror.Unavailable("fake", errors.New("upstream 500"))
	_, err = svc.UploadAvatar(context.Background(), "u1", testPNG(t, 8, 8))
	assert.ErrorIs(t, err, apperror.ErrUnavailable)

	p, err := svc.Get(context.Background(), "u1")
	require.NoError(t, err)
	assert.Empty(t, p.AvatarURL, "failed uploads leave the profile alone")
}
