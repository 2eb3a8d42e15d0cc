// internal/db/db.go
package db

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Dialect selects placeholder syntax and the few statements that differ
// between Postgres and SQLite.
type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

// Rebind rewrites '?' placeholders into the dialect's form.
func (d Dialect) Rebind(query string) string {
	if d != Postgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// SkipLocked is appended to claim queries so concurrent dispatchers do not
// pick the same rows of table. SQLite serializes writers instead.
func (d Dialect) SkipLocked(table string) string {
	if d == Postgres {
		return " FOR UPDATE OF " + table + " SKIP LOCKED"
	}
	return ""
}

// Open connects and pings the database for the given driver.
func Open(ctx context.Context, driver, dsn string) (*sql.DB, Dialect, error) {
	var (
		dialect    Dialect
		driverName string
	)
	switch driver {
	case "postgres":
		dialect, driverName = Postgres, "postgres"
	case "sqlite":
		dialect, driverName = SQLite, "sqlite"
		dsn = sqliteDSN(dsn)
	default:
		return nil, "", fmt.Errorf("unsupported database driver %q", driver)
	}

	conn, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, "", fmt.Errorf("open %s: %w", driver, err)
	}
	if dialect == SQLite {
		// one writer at a time; readers share the connection
		conn.SetMaxOpenConns(1)
	} else {
		conn.SetMaxOpenConns(20)
		conn.SetConnMaxIdleTime(5 * time.Minute)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := conn.PingContext(pingCtx); err != nil {
		conn.Close()
		return nil, "", fmt.Errorf("ping %s: %w", driver, err)
	}
	return conn, dialect, nil
}

func sqliteDSN(dsn string) string {
	if !strings.HasPrefix(dsn, "file:") {
		dsn = "file:" + dsn
	}
	params := []string{
		"_pragma=foreign_keys(1)",
		"_pragma=busy_timeout(5000)",
		"_txlock=immediate",
		"_time_format=sqlite",
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + strings.Join(params, "&")
}
