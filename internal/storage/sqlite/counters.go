package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sandevgo/replybot/internal/core"
)

// IncrementDailyCount bumps the counter for date and returns the new value.
// The upsert runs inside an IMMEDIATE transaction so concurrent writers
// cannot both observe a stale count.
func (s *Store) IncrementDailyCount(ctx context.Context, date string) (int, error) {
	var count int
	err := s.pool.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if err := tx.QueryRowContext(ctx, incrementCounterSQL, date).Scan(&count); err != nil {
			return fmt.Errorf("failed to increment daily counter: %w", err)
		}
		return nil
	})
	return count, err
}

// GetDailyCount returns zero for a day without a row.
func (s *Store) GetDailyCount(ctx context.Context, date string) (int, error) {
	var count int
	err := s.pool.WithConn(ctx, func(ctx context.Context, conn *sql.Conn) error {
		err := conn.QueryRowContext(ctx, `SELECT count FROM daily_counters WHERE date = ?`, date).Scan(&count)
		if errors.Is(err, sql.ErrNoRows) {
			count = 0
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read daily counter: %w", err)
		}
		return nil
	})
	return count, err
}

// DailySeries returns one counter per day for the last days days ending
// today, oldest first, with missing days filled with zero.
func (s *Store) DailySeries(ctx context.Context, days int) ([]core.DailyCounter, error) {
	if days <= 0 {
		return nil, nil
	}

	today := s.now()
	from := core.DayOf(today.AddDate(0, 0, -(days - 1)))

	counts := make(map[string]int, days)
	err := s.pool.WithConn(ctx, func(ctx context.Context, conn *sql.Conn) error {
		rows, err := conn.QueryContext(ctx, `SELECT date, count FROM daily_counters WHERE date >= ?`, from)
		if err != nil {
			return fmt.Errorf("failed to query daily counters: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var dc core.DailyCounter
			if err := rows.Scan(&dc.Date, &dc.Count); err != nil {
				return fmt.Errorf("failed to scan daily counter: %w", err)
			}
			counts[dc.Date] = dc.Count
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}

	series := make([]core.DailyCounter, 0, days)
	for i := days - 1; i >= 0; i-- {
		date := core.DayOf(today.AddDate(0, 0, -i))
		series = append(series, core.DailyCounter{Date: date, Count: counts[date]})
	}
	return series, nil
}

// TotalStats aggregates the message log for the dashboard.
func (s *Store) TotalStats(ctx context.Context) (core.TotalStats, error) {
	var stats core.TotalStats
	err := s.pool.WithConn(ctx, func(ctx context.Context, conn *sql.Conn) error {
		err := conn.QueryRowContext(ctx, `SELECT
				COUNT(*),
				COALESCE(SUM(auto_replied), 0),
				COUNT(DISTINCT sender)
			FROM messages`,
		).Scan(&stats.TotalMessages, &stats.AutoReplies, &stats.UniqueSenders)
		if err != nil {
			return fmt.Errorf("failed to aggregate messages: %w", err)
		}

		var avg sql.NullFloat64
		if err := conn.QueryRowContext(ctx, `SELECT AVG(count) FROM daily_counters`).Scan(&avg); err != nil {
			return fmt.Errorf("failed to aggregate daily counters: %w", err)
		}
		stats.AvgDailyReplies = avg.Float64
		return nil
	})
	if err != nil {
		return core.TotalStats{}, err
	}

	if stats.TotalMessages > 0 {
		stats.AutoReplyRate = float64(stats.AutoReplies) / float64(stats.TotalMessages)
	}
	return stats, nil
}

// PruneBefore deletes log and history older than the local day containing
// cutoff, together with the counters of those days.
func (s *Store) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	local := cutoff.Local()
	dayStart := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, local.Location())

	var removed int64
	err := s.pool.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE day < ?`, core.DayOf(dayStart))
		if err != nil {
			return fmt.Errorf("failed to prune messages: %w", err)
		}
		n, _ := res.RowsAffected()
		removed += n

		res, err = tx.ExecContext(ctx, `DELETE FROM session_history WHERE timestamp < ?`, millis(dayStart))
		if err != nil {
			return fmt.Errorf("failed to prune history: %w", err)
		}
		n, _ = res.RowsAffected()
		removed += n

		if _, err := tx.ExecContext(ctx, `DELETE FROM daily_counters WHERE date < ?`, core.DayOf(dayStart)); err != nil {
			return fmt.Errorf("failed to prune counters: %w", err)
		}
		return nil
	})
	return removed, err
}
