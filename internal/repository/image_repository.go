package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"mythweaver/api/internal/models"
)

var ErrImageNotFound = errors.New("image not found")

// DBTX is the slice of *pgxpool.Pool the repository needs.
type DBTX interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type ImageRepository struct {
	db DBTX
}

func NewImageRepository(db DBTX) *ImageRepository {
	return &ImageRepository{db: db}
}

const imageColumns = `id, user_id, uri, prompt, negative_prompt, style_preset,
		       session_id, conjuration_id, character_id, created_at`

// Create records one generated image and returns it with the id and
// timestamp assigned by the database.
func (r *ImageRepository) Create(ctx context.Context, image models.GeneratedImage) (models.GeneratedImage, error) {
	const query = `
		INSERT INTO generated_images (
			user_id, uri, prompt, negative_prompt, style_preset,
			session_id, conjuration_id, character_id, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, NOW()
		)
		RETURNING id, created_at
	`

	row := r.db.QueryRow(ctx, query,
		image.UserID,
		image.URI,
		image.Prompt,
		image.NegativePrompt,
		image.StylePreset,
		image.Linking.SessionID,
		image.Linking.ConjurationID,
		image.Linking.CharacterID,
	)
	if err := row.Scan(&image.ID, &image.CreatedAt); err != nil {
		return models.GeneratedImage{}, fmt.Errorf("insert generated image: %w", err)
	}
	return image, nil
}

func (r *ImageRepository) GetByID(ctx context.Context, id int64) (models.GeneratedImage, error) {
	query := `SELECT ` + imageColumns + ` FROM generated_images WHERE id = $1`

	image, err := scanImage(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.GeneratedImage{}, ErrImageNotFound
		}
		return models.GeneratedImage{}, err
	}
	return image, nil
}

func (r *ImageRepository) ListByUser(ctx context.Context, userID int64, limit, offset int) ([]models.GeneratedImage, error) {
	query := `SELECT ` + imageColumns + `
		FROM generated_images
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`
	return r.list(ctx, query, userID, limit, offset)
}

// ListByLinking returns the user's images attached to the given session,
// conjuration or character. Unset link fields are not filtered on.
func (r *ImageRepository) ListByLinking(ctx context.Context, userID int64, linking models.Linking, limit, offset int) ([]models.GeneratedImage, error) {
	query := `SELECT ` + imageColumns + `
		FROM generated_images
		WHERE user_id = $1
		  AND ($2::bigint IS NULL OR session_id = $2)
		  AND ($3::bigint IS NULL OR conjuration_id = $3)
		  AND ($4::bigint IS NULL OR character_id = $4)
		ORDER BY created_at DESC, id DESC
		LIMIT $5 OFFSET $6
	`
	return r.list(ctx, query, userID, linking.SessionID, linking.ConjurationID, linking.CharacterID, limit, offset)
}

func (r *ImageRepository) list(ctx context.Context, query string, args ...any) ([]models.GeneratedImage, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	images := make([]models.GeneratedImage, 0)
	for rows.Next() {
		image, err := scanImage(rows)
		if err != nil {
			return nil, err
		}
		images = append(images, image)
	}
	return images, rows.Err()
}

func scanImage(row pgx.Row) (models.GeneratedImage, error) {
	var image models.GeneratedImage
	err := row.Scan(
		&image.ID,
		&image.UserID,
		&image.URI,
		&image.Prompt,
		&image.NegativePrompt,
		&image.StylePreset,
		&image.Linking.SessionID,
		&image.Linking.ConjurationID,
		&image.Linking.CharacterID,
		&image.CreatedAt,
	)
	return image, err
}
