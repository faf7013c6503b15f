package service

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SamiTelo/API-Football/internal/models"
	"github.com/SamiTelo/API-Football/internal/service/servicetest"
)

var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}

func newUploadService() (*UploadService, *servicetest.Images, *servicetest.Objects) {
	images := servicetest.NewImages()
	objects := servicetest.NewObjects()
	svc := NewUploadService(images, objects, UploadConfig{MaxSize: 1024, PresignTTL: time.Minute}, zerolog.Nop())
	return svc, images, objects
}

func TestUploadStoresImage(t *testing.T) {
	svc, _, objects := newUploadService()
	ctx := context.Background()

	image, err := svc.Upload(ctx, UploadInput{
		Kind:         models.ImageOwnerPlayer,
		OwnerID:      7,
		Body:         bytes.NewReader(pngHeader),
		DeclaredMIME: "image/png",
	})
	require.NoError(t, err)

	assert.Equal(t, "png", image.Format)
	assert.Equal(t, int64(len(pngHeader)), image.SizeBytes)
	assert.True(t, strings.HasPrefix(image.ObjectKey, "players/7/"))
	assert.True(t, strings.HasSuffix(image.ObjectKey, ".png"))
	assert.Len(t, image.Checksum, 32)
	assert.Equal(t, "image/png", objects.Types[image.ObjectKey])

	url, err := svc.SignedURL(ctx, models.ImageOwnerPlayer, 7)
	require.NoError(t, err)
	assert.Contains(t, url, image.ObjectKey)
	assert.Contains(t, url, "ttl=60")
}

func TestUploadReplacesPreviousObject(t *testing.T) {
	svc, _, objects := newUploadService()
	ctx := context.Background()

	first, err := svc.Upload(ctx, UploadInput{Kind: models.ImageOwnerTeam, OwnerID: 3, Body: bytes.NewReader(pngHeader)})
	require.NoError(t, err)
	second, err := svc.Upload(ctx, UploadInput{Kind: models.ImageOwnerTeam, OwnerID: 3, Body: bytes.NewReader(pngHeader)})
	require.NoError(t, err)

	assert.NotEqual(t, first.ObjectKey, second.ObjectKey)
	assert.Equal(t, 1, objects.Len())
	_, ok := objects.Objects[second.ObjectKey]
	assert.True(t, ok)
}

func TestUploadRemovesObjectWhenMetadataFails(t *testing.T) {
	svc, images, objects := newUploadService()
	images.Err = errors.New("db down")

	_, err := svc.Upload(context.Background(), UploadInput{
		Kind: models.ImageOwnerPlayer, OwnerID: 1, Body: bytes.NewReader(pngHeader),
	})
	require.Error(t, err)
	assert.Equal(t, 0, objects.Len())
}

func TestUploadSanitizesSVG(t *testing.T) {
	svc, _, objects := newUploadService()

	image, err := svc.Upload(context.Background(), UploadInput{
		Kind:    models.ImageOwnerTeam,
		OwnerID: 2,
		Body:    strings.NewReader(`<svg xmlns="http://www.w3.org/2000/svg" onload="alert(1)"><script>alert(2)</script><rect/></svg>`),
	})
	require.NoError(t, err)

	stored := string(objects.Objects[image.ObjectKey])
	assert.NotContains(t, stored, "script")
	assert.NotContains(t, stored, "onload")
	assert.Contains(t, stored, "<rect/>")
}

func TestUploadRejectsInvalidInput(t *testing.T) {
	svc, _, objects := newUploadService()
	ctx := context.Background()

	tests := []struct {
		name  string
		input UploadInput
	}{
		{"unknown kind", UploadInput{Kind: "coaches", OwnerID: 1, Body: bytes.NewReader(pngHeader)}},
		{"no owner", UploadInput{Kind: models.ImageOwnerPlayer, Body: bytes.NewReader(pngHeader)}},
		{"no body", UploadInput{Kind: models.ImageOwnerPlayer, OwnerID: 1}},
		{"empty", UploadInput{Kind: models.ImageOwnerPlayer, OwnerID: 1, Body: bytes.NewReader(nil)}},
		{"too large", UploadInput{Kind: models.ImageOwnerPlayer, OwnerID: 1, Body: bytes.NewReader(append(pngHeader, make([]byte, 1024)...))}},
		{"not an image", UploadInput{Kind: models.ImageOwnerPlayer, OwnerID: 1, Body: strings.NewReader("%PDF-1.7")}},
		{"mismatch", UploadInput{Kind: models.ImageOwnerPlayer, OwnerID: 1, Body: bytes.NewReader(pngHeader), DeclaredMIME: "image/gif"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Upload(ctx, tt.input)
			assert.ErrorIs(t, err, ErrInvalidUpload)
		})
	}
	assert.Equal(t, 0, objects.Len())
}

func TestSignedURLWithoutImage(t *testing.T) {
	svc, _, _ := newUploadService()

	_, err := svc.SignedURL(context.Background(), models.ImageOwnerPlayer, 99)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.SignedURL(context.Background(), "coaches", 1)
	assert.ErrorIs(t, err, ErrInvalidUpload)
}
