package zombiezen

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hostcert-tools/hostcert"
	"zombiezen.com/go/sqlite/sqlitex"
)

// Db implements the hostcert.Recorder interface using zombiezen/sqlite.
type Db struct {
	pool *sqlitex.Pool
}

// NewRecorder creates a Db instance satisfying the Recorder interface. The
// sqlitex.Pool is created and managed externally.
func NewRecorder(pool *sqlitex.Pool) *Db {
	if pool == nil {
		panic("zombiezen.NewRecorder: received nil pool")
	}
	return &Db{pool: pool}
}

// EnsureSchema creates the events table when the journal file is fresh.
func EnsureSchema(pool *sqlitex.Pool) error {
	conn, err := pool.Take(context.TODO())
	if err != nil {
		return fmt.Errorf("db: failed to get connection: %w", err)
	}
	defer pool.Put(conn)

	err = sqlitex.ExecuteTransient(conn,
		`CREATE TABLE IF NOT EXISTS request_events (
			id INTEGER PRIMARY KEY,
			hostname TEXT NOT NULL,
			state TEXT NOT NULL,
			san_list TEXT NOT NULL DEFAULT '',
			occurred_at TEXT NOT NULL
		);`, nil)
	if err != nil {
		return fmt.Errorf("db: failed to create request_events table: %w", err)
	}
	return nil
}

// AddEvent appends a lifecycle event to the 'request_events' table.
func (d *Db) AddEvent(event hostcert.Event) error {
	conn, err := d.pool.Take(context.TODO())
	if err != nil {
		return fmt.Errorf("db: failed to get connection: %w", err)
	}
	defer d.pool.Put(conn)

	err = sqlitex.Execute(conn,
		`INSERT INTO request_events (hostname, state, san_list, occurred_at)
		 VALUES (?, ?, ?, ?);`,
		&sqlitex.ExecOptions{
			Args: []interface{}{
				event.Hostname,
				string(event.State),
				strings.Join(event.SANList, " "),
				event.At.UTC().Format(time.RFC3339),
			},
		})
	if err != nil {
		return fmt.Errorf("db: failed to insert event for hostname %q: %w", event.Hostname, err)
	}
	return nil
}
