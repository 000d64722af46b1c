package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const periodColumns = `id, user_id, start_time, end_time, latitude, longitude`

type rowScanner interface {
	Scan(dest ...any) error
}

// UpsertPeriod inserts p when it has no ID yet (assigning p.ID) and
// otherwise replaces the stored row with the same ID.
func (s *Store) UpsertPeriod(ctx context.Context, p *TrackedPeriod) error {
	if p == nil || p.UserID == 0 || p.Start.IsZero() {
		return fmt.Errorf("upsert period: %w", ErrInvalidPeriod)
	}
	if p.End != nil && p.End.Before(p.Start) {
		return fmt.Errorf("upsert period: %w: end before start", ErrInvalidPeriod)
	}

	var end any
	if p.End != nil {
		end = formatTime(*p.End)
	}
	start := formatTime(p.Start)

	if p.ID == 0 {
		res, err := s.db.ExecContext(ctx,
			`INSERT INTO tracked_periods (user_id, start_time, end_time, latitude, longitude) VALUES (?, ?, ?, ?, ?)`,
			p.UserID, start, end, p.Location.Latitude, p.Location.Longitude,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("insert period: %w", ErrOpenPeriodExists)
			}
			return fmt.Errorf("insert period: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("insert period id: %w", err)
		}
		p.ID = id
		return nil
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE tracked_periods SET user_id = ?, start_time = ?, end_time = ?, latitude = ?, longitude = ? WHERE id = ?`,
		p.UserID, start, end, p.Location.Latitude, p.Location.Longitude, p.ID,
	)
	if err == nil {
		if n, _ := res.RowsAffected(); n == 0 {
			_, err = s.db.ExecContext(ctx,
				`INSERT INTO tracked_periods (id, user_id, start_time, end_time, latitude, longitude) VALUES (?, ?, ?, ?, ?, ?)`,
				p.ID, p.UserID, start, end, p.Location.Latitude, p.Location.Longitude,
			)
		}
	}
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("update period %d: %w", p.ID, ErrOpenPeriodExists)
		}
		return fmt.Errorf("update period %d: %w", p.ID, err)
	}
	return nil
}

func (s *Store) GetPeriod(ctx context.Context, id int64) (*TrackedPeriod, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+periodColumns+` FROM tracked_periods WHERE id = ?`, id)
	p, err := scanPeriod(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get period %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get period %d: %w", id, err)
	}
	return p, nil
}

// GetOpenPeriod returns the user's open period, or nil when there is none.
// Should more than one be open the most recently started wins and the
// violation is logged.
func (s *Store) GetOpenPeriod(ctx context.Context, userID int64) (*TrackedPeriod, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+periodColumns+` FROM tracked_periods
		 WHERE user_id = ? AND end_time IS NULL
		 ORDER BY start_time DESC, id DESC`, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("get open period: %w", err)
	}
	defer rows.Close()

	periods, err := scanPeriods(rows)
	if err != nil {
		return nil, fmt.Errorf("get open period: %w", err)
	}
	if len(periods) == 0 {
		return nil, nil
	}
	if len(periods) > 1 {
		ids := make([]int64, len(periods))
		for i := range periods {
			ids[i] = periods[i].ID
		}
		s.logger.Warn("integrity violation: multiple open periods",
			"user_id", userID, "period_ids", ids, "chosen_id", periods[0].ID)
	}
	return &periods[0], nil
}

// CountOpenPeriods is one unless the store was tampered with.
func (s *Store) CountOpenPeriods(ctx context.Context, userID int64) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM tracked_periods WHERE user_id = ? AND end_time IS NULL`, userID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count open periods: %w", err)
	}
	return n, nil
}

// ListPeriods returns every period of the user, most recently started first.
func (s *Store) ListPeriods(ctx context.Context, userID int64) ([]TrackedPeriod, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+periodColumns+` FROM tracked_periods
		 WHERE user_id = ?
		 ORDER BY start_time DESC, id DESC`, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list periods: %w", err)
	}
	defer rows.Close()

	periods, err := scanPeriods(rows)
	if err != nil {
		return nil, fmt.Errorf("list periods: %w", err)
	}
	return periods, nil
}

// ClearPeriods removes the user's periods and their images, keeping only the
// open period if there is one. It returns how many periods were removed.
func (s *Store) ClearPeriods(ctx context.Context, userID int64) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin clear: %w", err)
	}
	defer tx.Rollback()

	var keep int64
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM tracked_periods
		 WHERE user_id = ? AND end_time IS NULL
		 ORDER BY start_time DESC, id DESC LIMIT 1`, userID,
	).Scan(&keep)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("find open period: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM images WHERE period_id IN (
			SELECT id FROM tracked_periods WHERE user_id = ? AND id != ?
		)`, userID, keep,
	); err != nil {
		return 0, fmt.Errorf("clear images: %w", err)
	}

	res, err := tx.ExecContext(ctx,
		`DELETE FROM tracked_periods WHERE user_id = ? AND id != ?`, userID, keep,
	)
	if err != nil {
		return 0, fmt.Errorf("clear periods: %w", err)
	}
	removed, _ := res.RowsAffected()

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit clear: %w", err)
	}
	return removed, nil
}

// DailyTotals sums closed periods per UTC day for starts in [from, to).
func (s *Store) DailyTotals(ctx context.Context, userID int64, from, to time.Time) ([]DailyTotal, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT date(start_time) AS day,
		       CAST(ROUND(SUM((julianday(end_time) - julianday(start_time)) * 86400)) AS INTEGER),
		       COUNT(*)
		FROM tracked_periods
		WHERE user_id = ? AND end_time IS NOT NULL
		  AND start_time >= ? AND start_time < ?
		GROUP BY day
		ORDER BY day`,
		userID, formatTime(from), formatTime(to),
	)
	if err != nil {
		return nil, fmt.Errorf("daily totals: %w", err)
	}
	defer rows.Close()

	var totals []DailyTotal
	for rows.Next() {
		var dt DailyTotal
		if err := rows.Scan(&dt.Date, &dt.TotalSeconds, &dt.PeriodCount); err != nil {
			return nil, err
		}
		totals = append(totals, dt)
	}
	return totals, rows.Err()
}

func scanPeriod(r rowScanner) (*TrackedPeriod, error) {
	p := &TrackedPeriod{}
	var start string
	var end sql.NullString
	if err := r.Scan(&p.ID, &p.UserID, &start, &end, &p.Location.Latitude, &p.Location.Longitude); err != nil {
		return nil, err
	}
	t, err := parseTime(start)
	if err != nil {
		return nil, fmt.Errorf("period %d start: %w", p.ID, err)
	}
	p.Start = t
	if end.Valid {
		t, err := parseTime(end.String)
		if err != nil {
			return nil, fmt.Errorf("period %d end: %w", p.ID, err)
		}
		p.End = &t
	}
	return p, nil
}

func scanPeriods(rows *sql.Rows) ([]TrackedPeriod, error) {
	var periods []TrackedPeriod
	for rows.Next() {
		p, err := scanPeriod(rows)
		if err != nil {
			return nil, err
		}
		periods = append(periods, *p)
	}
	return periods, rows.Err()
}
