package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"path"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/SamiTelo/API-Football/internal/ids"
	"github.com/SamiTelo/API-Football/internal/media/sniffer"
	"github.com/SamiTelo/API-Football/internal/media/svg"
	"github.com/SamiTelo/API-Football/internal/models"
	"github.com/SamiTelo/API-Football/internal/repository"
)

type ImageStore interface {
	Replace(ctx context.Context, image models.Image) (*models.Image, error)
	GetByOwner(ctx context.Context, kind models.ImageOwner, ownerID int64) (models.Image, error)
}

type ObjectStorage interface {
	Bucket() string
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) (int64, error)
	Remove(ctx context.Context, key string) error
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
}

type UploadConfig struct {
	MaxSize    int64
	PresignTTL time.Duration
}

type UploadInput struct {
	Kind         models.ImageOwner
	OwnerID      int64
	Body         io.Reader
	DeclaredMIME string
}

type UploadService struct {
	images  ImageStore
	objects ObjectStorage
	cfg     UploadConfig
	log     zerolog.Logger
}

func NewUploadService(images ImageStore, objects ObjectStorage, cfg UploadConfig, log zerolog.Logger) *UploadService {
	return &UploadService{
		images:  images,
		objects: objects,
		cfg:     cfg,
		log:     log,
	}
}

// Upload stores the image of a player or team, replacing and removing any previous one.
func (s *UploadService) Upload(ctx context.Context, input UploadInput) (models.Image, error) {
	if !input.Kind.Valid() || input.OwnerID <= 0 || input.Body == nil {
		return models.Image{}, fmt.Errorf("%w: missing file or owner", ErrInvalidUpload)
	}

	data, err := io.ReadAll(io.LimitReader(input.Body, s.cfg.MaxSize+1))
	if err != nil {
		return models.Image{}, fmt.Errorf("read file: %w", err)
	}
	if len(data) == 0 {
		return models.Image{}, fmt.Errorf("%w: empty file", ErrInvalidUpload)
	}
	if int64(len(data)) > s.cfg.MaxSize {
		return models.Image{}, fmt.Errorf("%w: file exceeds %d bytes", ErrInvalidUpload, s.cfg.MaxSize)
	}

	detected, err := sniffer.Detect(data, input.DeclaredMIME)
	if err != nil {
		return models.Image{}, fmt.Errorf("%w: %v", ErrInvalidUpload, err)
	}

	if detected.Type == sniffer.TypeSVG {
		clean, err := svg.Sanitize(data)
		if err != nil {
			return models.Image{}, fmt.Errorf("%w: %v", ErrInvalidUpload, err)
		}
		data = clean
	}

	imageID := ids.New()
	objectKey := path.Join(string(input.Kind), strconv.FormatInt(input.OwnerID, 10), imageID+"."+detected.Extension())

	size, err := s.objects.Put(ctx, objectKey, bytes.NewReader(data), int64(len(data)), detected.MIME)
	if err != nil {
		return models.Image{}, err
	}

	sum := sha256.Sum256(data)
	image := models.Image{
		ID:        imageID,
		OwnerKind: input.Kind,
		OwnerID:   input.OwnerID,
		Bucket:    s.objects.Bucket(),
		ObjectKey: objectKey,
		Format:    string(detected.Type),
		SizeBytes: size,
		Checksum:  sum[:],
		CreatedAt: time.Now().UTC(),
	}

	previous, err := s.images.Replace(ctx, image)
	if err != nil {
		if rmErr := s.objects.Remove(ctx, objectKey); rmErr != nil {
			s.log.Warn().Err(rmErr).Str("object_key", objectKey).Msg("remove orphaned object failed")
		}
		return models.Image{}, fmt.Errorf("save metadata: %w", err)
	}

	if previous != nil && previous.ObjectKey != objectKey {
		if err := s.objects.Remove(ctx, previous.ObjectKey); err != nil {
			s.log.Warn().Err(err).Str("object_key", previous.ObjectKey).Msg("remove previous image failed")
		}
	}

	s.log.Info().
		Str("kind", string(input.Kind)).
		Int64("owner_id", input.OwnerID).
		Str("format", image.Format).
		Int64("size", image.SizeBytes).
		Msg("image uploaded")
	return image, nil
}

// SignedURL returns a short lived URL for the current image of the owner.
func (s *UploadService) SignedURL(ctx context.Context, kind models.ImageOwner, ownerID int64) (string, error) {
	if !kind.Valid() {
		return "", fmt.Errorf("%w: unknown owner kind", ErrInvalidUpload)
	}

	image, err := s.images.GetByOwner(ctx, kind, ownerID)
	if err != nil {
		if errors.Is(err, repository.ErrImageNotFound) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("load image: %w", err)
	}

	return s.objects.PresignGet(ctx, image.ObjectKey, s.cfg.PresignTTL)
}
