package sqlite

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sandevgo/replybot/internal/core"
	"github.com/sandevgo/replybot/pkg/log"
)

var ErrPoolClosed = errors.New("connection pool closed")

// Pool is an arena of pre-opened connections. Every acquisition is scoped:
// WithConn returns the handle to the arena on all exit paths.
type Pool struct {
	db      *sql.DB
	slots   chan *sql.Conn
	size    int
	timeout time.Duration

	closed    chan struct{}
	closeOnce sync.Once
	closeErr  error
}

// NewPool opens size connections up front. A nil slot is reopened lazily on
// acquisition after a broken connection was discarded.
func NewPool(ctx context.Context, db *sql.DB, size int, timeout time.Duration) (*Pool, error) {
	if size < 1 {
		return nil, fmt.Errorf("pool size must be >= 1, got %d", size)
	}

	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	db.SetMaxOpenConns(size)
	db.SetMaxIdleConns(size)

	p := &Pool{
		db:      db,
		slots:   make(chan *sql.Conn, size),
		size:    size,
		timeout: timeout,
		closed:  make(chan struct{}),
	}

	for i := 0; i < size; i++ {
		conn, err := db.Conn(ctx)
		if err != nil {
			for len(p.slots) > 0 {
				_ = (<-p.slots).Close()
			}
			return nil, fmt.Errorf("failed to open pooled connection %d/%d: %w", i+1, size, err)
		}
		p.slots <- conn
	}

	return p, nil
}

func (p *Pool) Size() int { return p.size }

// Available reports how many handles are idle right now.
func (p *Pool) Available() int { return len(p.slots) }

// WithConn runs fn on a pooled connection. Acquisition blocks up to the pool
// timeout and fails with core.ErrPoolExhausted after that.
func (p *Pool) WithConn(ctx context.Context, fn func(ctx context.Context, conn *sql.Conn) error) (err error) {
	conn, err := p.acquire(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if r := recover(); r != nil {
			p.release(ctx, conn, driver.ErrBadConn)
			panic(r)
		}
		p.release(ctx, conn, err)
	}()

	return fn(ctx, conn)
}

// WithTx runs fn inside a transaction on a pooled connection. The DSN opens
// transactions with BEGIN IMMEDIATE, so read-modify-write sequences inside fn
// are serialised against other writers.
func (p *Pool) WithTx(ctx context.Context, fn func(ctx context.Context, tx *sql.Tx) error) error {
	return p.WithConn(ctx, func(ctx context.Context, conn *sql.Conn) error {
		tx, err := conn.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer tx.Rollback()

		if err := fn(ctx, tx); err != nil {
			return err
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit transaction: %w", err)
		}
		return nil
	})
}

func (p *Pool) acquire(ctx context.Context) (*sql.Conn, error) {
	timer := time.NewTimer(p.timeout)
	defer timer.Stop()

	var conn *sql.Conn
	select {
	case <-p.closed:
		return nil, ErrPoolClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, fmt.Errorf("%w: no connection within %s (size %d)", core.ErrPoolExhausted, p.timeout, p.size)
	case conn = <-p.slots:
	}

	if conn != nil {
		return conn, nil
	}

	conn, err := p.db.Conn(ctx)
	if err != nil {
		p.slots <- nil
		return nil, fmt.Errorf("failed to reopen pooled connection: %w", err)
	}
	return conn, nil
}

func (p *Pool) release(ctx context.Context, conn *sql.Conn, err error) {
	if errors.Is(err, driver.ErrBadConn) {
		log.FromCtx(ctx).Warn().Err(err).Msg("discarding broken pooled connection")
		// ErrBadConn from Raw makes database/sql drop the driver connection
		// instead of returning it to its idle list.
		_ = conn.Raw(func(any) error { return driver.ErrBadConn })
		if cerr := conn.Close(); cerr != nil && !errors.Is(cerr, sql.ErrConnDone) {
			log.FromCtx(ctx).Warn().Err(cerr).Msg("failed to close broken connection")
		}
		conn = nil
	}
	p.slots <- conn
}

// Close waits for every handle to come back and closes it. Further
// acquisitions fail with ErrPoolClosed.
func (p *Pool) Close() error {
	p.closeOnce.Do(func() {
		close(p.closed)
		p.closeErr = p.drain()
	})
	return p.closeErr
}

func (p *Pool) drain() error {
	var errs []error
	for i := 0; i < cap(p.slots); i++ {
		select {
		case conn := <-p.slots:
			if conn != nil {
				errs = append(errs, conn.Close())
			}
		case <-time.After(p.timeout):
			errs = append(errs, fmt.Errorf("%w: connection not returned before close", core.ErrPoolExhausted))
		}
	}
	return errors.Join(errs...)
}
