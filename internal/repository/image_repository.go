package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/SamiTelo/API-Football/internal/models"
)

var ErrImageNotFound = errors.New("image not found")

type ImageRepository struct {
	pool *pgxpool.Pool
}

func NewImageRepository(pool *pgxpool.Pool) *ImageRepository {
	return &ImageRepository{pool: pool}
}

// Replace stores image as the single image of its owner and returns the one it replaced, if any.
func (r *ImageRepository) Replace(ctx context.Context, image models.Image) (*models.Image, error) {
	var previous *models.Image

	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		const selectQuery = `
			SELECT id, owner_kind, owner_id, bucket, object_key, format, size_bytes, checksum, created_at
			FROM images WHERE owner_kind = $1 AND owner_id = $2
			FOR UPDATE
		`
		old, err := scanImage(tx.QueryRow(ctx, selectQuery, image.OwnerKind, image.OwnerID))
		switch {
		case err == nil:
			previous = &old
		case !errors.Is(err, ErrImageNotFound):
			return err
		}

		const upsertQuery = `
			INSERT INTO images (id, owner_kind, owner_id, bucket, object_key, format, size_bytes, checksum, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
			ON CONFLICT (owner_kind, owner_id) DO UPDATE SET
				id = EXCLUDED.id,
				bucket = EXCLUDED.bucket,
				object_key = EXCLUDED.object_key,
				format = EXCLUDED.format,
				size_bytes = EXCLUDED.size_bytes,
				checksum = EXCLUDED.checksum,
				created_at = NOW()
		`
		_, err = tx.Exec(ctx, upsertQuery,
			image.ID,
			image.OwnerKind,
			image.OwnerID,
			image.Bucket,
			image.ObjectKey,
			image.Format,
			image.SizeBytes,
			image.Checksum,
		)
		return err
	})
	if err != nil {
		return nil, err
	}
	return previous, nil
}

func (r *ImageRepository) GetByOwner(ctx context.Context, kind models.ImageOwner, ownerID int64) (models.Image, error) {
	const query = `
		SELECT id, owner_kind, owner_id, bucket, object_key, format, size_bytes, checksum, created_at
		FROM images WHERE owner_kind = $1 AND owner_id = $2
	`
	return scanImage(r.pool.QueryRow(ctx, query, kind, ownerID))
}

func scanImage(row pgx.Row) (models.Image, error) {
	var image models.Image
	if err := row.Scan(
		&image.ID,
		&image.OwnerKind,
		&image.OwnerID,
		&image.Bucket,
		&image.ObjectKey,
		&image.Format,
		&image.SizeBytes,
		&image.Checksum,
		&image.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Image{}, ErrImageNotFound
		}
		return models.Image{}, err
	}
	return image, nil
}
