package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sandevgo/replybot/internal/core"
	"github.com/sandevgo/replybot/pkg/log"
)

// AppendHistory stores entries in the given order inside one transaction.
// A timestamp older than the session's latest entry is clamped forward so
// reads ordered by timestamp always match append order.
func (s *Store) AppendHistory(ctx context.Context, entries ...core.HistoryEntry) error {
	if len(entries) == 0 {
		return nil
	}
	return s.pool.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		return s.appendHistoryTx(ctx, tx, entries)
	})
}

func (s *Store) appendHistoryTx(ctx context.Context, tx *sql.Tx, entries []core.HistoryEntry) error {
	last := make(map[string]int64)

	for _, e := range entries {
		if e.Role != core.RoleUser && e.Role != core.RoleAssistant {
			return fmt.Errorf("invalid history role %q", e.Role)
		}

		ts := e.Timestamp
		if ts.IsZero() {
			ts = s.now()
		}

		prev, ok := last[e.SessionID]
		if !ok {
			var latest sql.NullInt64
			err := tx.QueryRowContext(ctx,
				`SELECT MAX(timestamp) FROM session_history WHERE session_id = ?`, e.SessionID,
			).Scan(&latest)
			if err != nil {
				return fmt.Errorf("failed to read session head: %w", err)
			}
			prev = latest.Int64
		}

		ms := max(millis(ts), prev)
		_, err := tx.ExecContext(ctx,
			`INSERT INTO session_history (session_id, role, content, timestamp) VALUES (?, ?, ?, ?)`,
			e.SessionID, e.Role, e.Content, ms,
		)
		if err != nil {
			return fmt.Errorf("failed to insert history entry: %w", err)
		}
		last[e.SessionID] = ms
	}
	return nil
}

// GetHistory returns the last limit entries of a session, oldest first.
// A non-positive limit returns the whole session.
func (s *Store) GetHistory(ctx context.Context, sessionID string, limit int) ([]core.HistoryEntry, error) {
	if limit <= 0 {
		limit = -1
	}

	// Fetch the LAST 'limit' entries by ordering DESC
	query := `SELECT id, session_id, role, content, timestamp FROM session_history
		WHERE session_id = ? ORDER BY timestamp DESC, id DESC LIMIT ?`

	var entries []core.HistoryEntry
	err := s.pool.WithConn(ctx, func(ctx context.Context, conn *sql.Conn) error {
		rows, err := conn.QueryContext(ctx, query, sessionID, limit)
		if err != nil {
			return fmt.Errorf("failed to query history: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var (
				e  core.HistoryEntry
				ts int64
			)
			if err := rows.Scan(&e.ID, &e.SessionID, &e.Role, &e.Content, &ts); err != nil {
				return fmt.Errorf("failed to scan history entry: %w", err)
			}
			e.Timestamp = fromMillis(ts)
			entries = append(entries, e)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}

	// Newest -> oldest back to append order for the prompt.
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}

	log.FromCtx(ctx).Debug().Str("session", sessionID).Int("count", len(entries)).Msg("loaded session history")
	return entries, nil
}

func (s *Store) ClearHistory(ctx context.Context, sessionID string) error {
	return s.pool.WithConn(ctx, func(ctx context.Context, conn *sql.Conn) error {
		if _, err := conn.ExecContext(ctx, `DELETE FROM session_history WHERE session_id = ?`, sessionID); err != nil {
			return fmt.Errorf("failed to clear history: %w", err)
		}
		return nil
	})
}
