package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/sandevgo/replybot/internal/core"
	"github.com/sandevgo/replybot/pkg/log"
)

const incrementCounterSQL = `INSERT INTO daily_counters (date, count) VALUES (?, 1)
	ON CONFLICT(date) DO UPDATE SET count = count + 1
	RETURNING count`

// RecordMessage appends one audit entry. An auto-replied record bumps the
// day's counter in the same transaction, so the counter always equals the
// number of auto-replied records for that day. Session turns passed along
// commit or roll back together with the record.
func (s *Store) RecordMessage(ctx context.Context, rec core.MessageRecord, turns ...core.HistoryEntry) (int64, error) {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = s.now()
	}

	var id int64
	err := s.pool.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO messages (sender, message, response, timestamp, day, auto_replied) VALUES (?, ?, ?, ?, ?, ?)`,
			rec.Sender, rec.Message, nullString(rec.Response), millis(rec.Timestamp), rec.Day(), rec.AutoReplied,
		)
		if err != nil {
			return fmt.Errorf("failed to insert message: %w", err)
		}

		id, err = res.LastInsertId()
		if err != nil {
			return err
		}

		if rec.AutoReplied {
			var count int
			if err := tx.QueryRowContext(ctx, incrementCounterSQL, rec.Day()).Scan(&count); err != nil {
				return fmt.Errorf("failed to increment daily counter: %w", err)
			}
		}

		return s.appendHistoryTx(ctx, tx, turns)
	})
	if err != nil {
		return 0, err
	}

	log.FromCtx(ctx).Debug().
		Int64("id", id).
		Str("sender", rec.Sender).
		Bool("auto_replied", rec.AutoReplied).
		Int("turns", len(turns)).
		Msg("message recorded")
	return id, nil
}

// ListMessages returns records newest first.
func (s *Store) ListMessages(ctx context.Context, filter core.MessageFilter) ([]core.MessageRecord, error) {
	var (
		where []string
		args  []any
	)
	if filter.Sender != "" {
		where = append(where, "sender = ?")
		args = append(args, filter.Sender)
	}
	if !filter.From.IsZero() {
		where = append(where, "timestamp >= ?")
		args = append(args, millis(filter.From))
	}
	if !filter.To.IsZero() {
		where = append(where, "timestamp < ?")
		args = append(args, millis(filter.To))
	}

	query := `SELECT id, sender, message, response, timestamp, auto_replied FROM messages`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY timestamp DESC, id DESC"

	limit := filter.Limit
	if limit <= 0 {
		limit = -1
	}
	query += " LIMIT ? OFFSET ?"
	args = append(args, limit, max(filter.Offset, 0))

	var records []core.MessageRecord
	err := s.pool.WithConn(ctx, func(ctx context.Context, conn *sql.Conn) error {
		rows, err := conn.QueryContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("failed to query messages: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var (
				rec      core.MessageRecord
				response sql.NullString
				ts       int64
			)
			if err := rows.Scan(&rec.ID, &rec.Sender, &rec.Message, &response, &ts, &rec.AutoReplied); err != nil {
				return fmt.Errorf("failed to scan message: %w", err)
			}
			rec.Response = response.String
			rec.Timestamp = fromMillis(ts)
			records = append(records, rec)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
