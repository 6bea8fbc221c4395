package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pressly/goose/v3"

	"github.com/sandevgo/replybot/pkg/log"
	"github.com/sandevgo/replybot/pkg/sqlite"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// Options configures the on-disk store.
type Options struct {
	Path           string
	PoolSize       int
	AcquireTimeout time.Duration
	BusyTimeout    time.Duration
}

// Store is the pooled persistence layer shared by the control loop and the
// dashboard. Every query goes through the connection arena.
type Store struct {
	db   *sql.DB
	pool *Pool
	now  func() time.Time
}

// Open creates the database file if needed, applies migrations and pre-opens
// the connection arena.
func Open(ctx context.Context, opts Options) (*Store, error) {
	busy := opts.BusyTimeout
	if busy <= 0 {
		busy = 5 * time.Second
	}

	db, err := NewDB(ctx, opts.Path, sqlite.DSNOptions{
		BusyTimeoutMs: int(busy / time.Millisecond),
		Immediate:     true,
	})
	if err != nil {
		return nil, err
	}

	pool, err := NewPool(ctx, db, opts.PoolSize, opts.AcquireTimeout)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	log.FromCtx(ctx).Info().
		Str("path", opts.Path).
		Int("pool_size", pool.Size()).
		Msg("store opened")

	return &Store{db: db, pool: pool, now: time.Now}, nil
}

func NewDB(ctx context.Context, dbPath string, dsnOpts sqlite.DSNOptions) (*sql.DB, error) {
	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create db directory: %w", err)
	}

	db, err := sql.Open(sqlite.DriverName, sqlite.DSN(dbPath, dsnOpts))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return db, nil
}

func migrate(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(embedMigrations)
	goose.SetLogger(log.NewGooseLoggerFromCtx(ctx))

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("goose up failed: %w", err)
	}

	return nil
}

// Ping checks the store end to end through the pool.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.WithConn(ctx, func(ctx context.Context, conn *sql.Conn) error {
		return conn.PingContext(ctx)
	})
}

func (s *Store) Pool() *Pool { return s.pool }

func (s *Store) Close() error {
	poolErr := s.pool.Close()
	if err := s.db.Close(); err != nil {
		return err
	}
	return poolErr
}

func millis(t time.Time) int64 { return t.UnixMilli() }

func fromMillis(ms int64) time.Time { return time.UnixMilli(ms) }
