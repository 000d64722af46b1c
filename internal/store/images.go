package store

import (
	"context"
	"fmt"
	"time"
)

// AddImage appends an image to its period and assigns img.ID.
func (s *Store) AddImage(ctx context.Context, img *Image) error {
	if img == nil {
		return fmt.Errorf("add image: %w", errNilImage)
	}
	if img.CreatedAt.IsZero() {
		img.CreatedAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO images (period_id, content, created_at) VALUES (?, ?, ?)`,
		img.PeriodID, img.Content, formatTime(img.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("add image to period %d: %w", img.PeriodID, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("add image id: %w", err)
	}
	img.ID = id
	return nil
}

func (s *Store) ListImages(ctx context.Context, periodID int64) ([]Image, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, period_id, content, created_at FROM images WHERE period_id = ? ORDER BY id`, periodID,
	)
	if err != nil {
		return nil, fmt.Errorf("list images: %w", err)
	}
	defer rows.Close()

	var images []Image
	for rows.Next() {
		var img Image
		var createdAt string
		if err := rows.Scan(&img.ID, &img.PeriodID, &img.Content, &createdAt); err != nil {
			return nil, err
		}
		img.CreatedAt, _ = parseTime(createdAt)
		images = append(images, img)
	}
	return images, rows.Err()
}

// ImageCounts maps period ID to image count for every period of the user
// that has at least one image.
func (s *Store) ImageCounts(ctx context.Context, userID int64) (map[int64]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT i.period_id, COUNT(*)
		FROM images i
		JOIN tracked_periods p ON p.id = i.period_id
		WHERE p.user_id = ?
		GROUP BY i.period_id`, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("image counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[int64]int)
	for rows.Next() {
		var id int64
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, err
		}
		counts[id] = n
	}
	return counts, rows.Err()
}
