package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/sqlclause/internal/clause"
)

// Config selects a driver and data source.
type Config struct {
	Driver          string        `mapstructure:"driver"`
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// Drivers lists the supported database/sql driver names.
var Drivers = []string{"sqlite3", "postgres", "pgx", "mysql"}

// DialectFor maps a driver name to the placeholder dialect it expects.
func DialectFor(driver string) (clause.Dialect, error) {
	switch driver {
	case "sqlite3", "":
		return clause.SQLite, nil
	case "postgres", "pgx":
		return clause.Postgres, nil
	case "mysql":
		return clause.MySQL, nil
	default:
		return "", fmt.Errorf("unsupported driver %q: must be one of %v", driver, Drivers)
	}
}

// Store executes statements against one database.
type Store struct {
	db      *sql.DB
	driver  string
	dialect clause.Dialect

	mu            sync.Mutex
	prepared      map[string]*Prepared
	preparedTotal int
}

// Open connects using cfg and verifies the connection.
// SQLite databases get the pragmas listed in the package documentation.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Driver == "" {
		cfg.Driver = "sqlite3"
	}
	dialect, err := DialectFor(cfg.Driver)
	if err != nil {
		return nil, err
	}
	if cfg.DSN == "" {
		return nil, fmt.Errorf("open %s: empty DSN", cfg.Driver)
	}

	db, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if cfg.Driver == "sqlite3" {
		// SQLite only supports one writer at a time, and an in-memory
		// database exists per connection.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		if err := applyPragmas(ctx, db, isMemoryDSN(cfg.DSN)); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply pragmas: %w", err)
		}
	} else if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	slog.Debug("store opened", "driver", cfg.Driver, "dialect", dialect)
	return &Store{
		db:       db,
		driver:   cfg.Driver,
		dialect:  dialect,
		prepared: make(map[string]*Prepared),
	}, nil
}

// OpenSQLite opens a SQLite database at path (":memory:" for in-memory).
func OpenSQLite(ctx context.Context, path string) (*Store, error) {
	return Open(ctx, Config{Driver: "sqlite3", DSN: path})
}

func isMemoryDSN(dsn string) bool {
	return dsn == ":memory:" || strings.Contains(dsn, "mode=memory")
}

// applyPragmas sets required SQLite configuration.
// WAL is skipped for in-memory databases, which report "memory".
func applyPragmas(ctx context.Context, db *sql.DB, memory bool) error {
	pragmas := []string{
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	if !memory {
		pragmas = append([]string{"PRAGMA journal_mode = WAL"}, pragmas...)
	}

	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

// Close releases every prepared handle and closes the connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	s.mu.Lock()
	handles := make([]*Prepared, 0, len(s.prepared))
	for _, p := range s.prepared {
		handles = append(handles, p)
	}
	s.mu.Unlock()

	for _, p := range handles {
		_ = p.Close()
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// DB returns the underlying sql.DB for direct queries.
func (s *Store) DB() *sql.DB { return s.db }

// Driver returns the database/sql driver name.
func (s *Store) Driver() string { return s.driver }

// Dialect returns the placeholder dialect statements are rendered with.
func (s *Store) Dialect() clause.Dialect { return s.dialect }

// ExecRaw runs SQL text that is not a composed statement, such as DDL.
func (s *Store) ExecRaw(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("exec raw: %w", err)
	}
	return rowsAffected(res)
}

// Query executes raw SQL and returns the rows. Callers close the rows.
func (s *Store) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.db.QueryContext(ctx, query, args...)
}

// OpenHandles returns the number of prepared handles not yet closed.
func (s *Store) OpenHandles() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.prepared)
}

// PreparedTotal returns how many handles have been prepared, closed or not.
func (s *Store) PreparedTotal() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.preparedTotal
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	if err := s.db.QueryRow(fmt.Sprintf("PRAGMA %s", name)).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
