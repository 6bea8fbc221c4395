package sqlite

import (
	"database/sql"
	"fmt"
	"net/url"

	"github.com/mattn/go-sqlite3"
)

// DriverName is the database/sql driver with per-connection pragmas applied.
const DriverName = "sqlite3_replybot"

// connPragmas run on every new physical connection. journal_mode and
// synchronous travel in the DSN so they are set before the first statement.
var connPragmas = []string{
	"PRAGMA cache_size = 10000",
	"PRAGMA temp_store = MEMORY",
}

func init() {
	sql.Register(DriverName, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			for _, p := range connPragmas {
				if _, err := conn.Exec(p, nil); err != nil {
					return fmt.Errorf("%s: %w", p, err)
				}
			}
			return nil
		},
	})
}

// DSNOptions configures the durability/concurrency knobs of a file database.
type DSNOptions struct {
	BusyTimeoutMs int
	// Immediate makes BEGIN take the write lock up front so read-modify-write
	// transactions serialise instead of failing on upgrade.
	Immediate bool
}

// DSN builds a WAL + synchronous=NORMAL connection string for path.
func DSN(path string, opts DSNOptions) string {
	q := url.Values{}
	q.Set("_journal_mode", "WAL")
	q.Set("_synchronous", "NORMAL")
	q.Set("_foreign_keys", "on")
	if opts.BusyTimeoutMs > 0 {
		q.Set("_busy_timeout", fmt.Sprint(opts.BusyTimeoutMs))
	}
	if opts.Immediate {
		q.Set("_txlock", "immediate")
	}
	return "file:" + path + "?" + q.Encode()
}
