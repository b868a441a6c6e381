// Package store persists conversation turns, persona settings, documents and
// memory context in SQLite or PostgreSQL.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/lewisedginton/sdr_chatbot/internal/store/migrations"
	"github.com/lewisedginton/sdr_chatbot/pkg/logger"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// ErrNotFound is returned by single-row lookups that match nothing.
var ErrNotFound = errors.New("not found")

// Config selects and addresses the database.
type Config struct {
	Driver string
	// Path is the SQLite file. ":memory:" is accepted for throwaway stores.
	Path string
	// URL is the PostgreSQL connection string.
	URL string
}

// Store is safe for concurrent use. Its only write guarantee is the per-row
// uniqueness constraint on content hashes.
type Store struct {
	db      *sql.DB
	pool    *pgxpool.Pool
	dialect dialect
	log     logger.Logger
	now     func() time.Time
}

// Open connects, applies pending migrations and returns a ready Store.
func Open(ctx context.Context, cfg Config, log logger.Logger) (*Store, error) {
	if log == nil {
		log = logger.NewNopLogger()
	}
	s := &Store{log: log, now: func() time.Time { return time.Now().UTC() }}

	switch cfg.Driver {
	case DriverSQLite, "":
		db, err := openSQLite(cfg.Path)
		if err != nil {
			return nil, err
		}
		s.db = db
		s.dialect = sqliteDialect{}
	case DriverPostgres:
		pool, err := pgxpool.New(ctx, cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		s.pool = pool
		s.db = stdlib.OpenDBFromPool(pool)
		s.dialect = postgresDialect{}
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	if err := s.db.PingContext(ctx); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("ping %s: %w", s.dialect.name(), err)
	}
	if err := s.migrate(); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

func openSQLite(path string) (*sql.DB, error) {
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// one writer; also keeps ":memory:" on a single connection
	db.SetMaxOpenConns(1)
	return db, nil
}

func (s *Store) migrate() error {
	src, err := iofs.New(migrations.FS, s.dialect.name())
	if err != nil {
		return fmt.Errorf("create embedded migration source: %w", err)
	}

	var driver database.Driver
	switch s.dialect.(type) {
	case postgresDialect:
		driver, err = postgres.WithInstance(s.db, &postgres.Config{})
	default:
		driver, err = sqlite.WithInstance(s.db, &sqlite.Config{})
	}
	if err != nil {
		return fmt.Errorf("create %s migration driver: %w", s.dialect.name(), err)
	}

	m, err := migrate.NewWithInstance("iofs", src, s.dialect.name(), driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			s.log.Debug("schema up to date")
			return nil
		}
		s.log.Error("failed to run migrations", logger.ErrorField(err))
		return fmt.Errorf("run migrations: %w", err)
	}
	s.log.Info("database migrations applied", logger.StringField("driver", s.dialect.name()))
	return nil
}

// Ping reports whether the database answers.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close releases the connection and, for postgres, the pool behind it.
func (s *Store) Close() error {
	err := s.db.Close()
	if s.pool != nil {
		s.pool.Close()
	}
	return err
}

// dialect hides the few SQL differences between the two engines.
type dialect interface {
	name() string
	// rebind rewrites ? placeholders into the engine's native form.
	rebind(query string) string
	// contains returns a case-sensitive substring predicate on column taking one argument.
	contains(column string) string
}

type sqliteDialect struct{}

func (sqliteDialect) name() string               { return DriverSQLite }
func (sqliteDialect) rebind(q string) string     { return q }
func (sqliteDialect) contains(col string) string { return "instr(" + col + ", ?) > 0" }

type postgresDialect struct{}

func (postgresDialect) name() string               { return DriverPostgres }
func (postgresDialect) contains(col string) string { return "strpos(" + col + ", ?) > 0" }

func (postgresDialect) rebind(q string) string {
	var b strings.Builder
	b.Grow(len(q) + 8)
	n := 0
	for _, r := range q {
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

func (s *Store) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.db.ExecContext(ctx, s.dialect.rebind(query), args...)
}

func (s *Store) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.db.QueryContext(ctx, s.dialect.rebind(query), args...)
}

func (s *Store) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return s.db.QueryRowContext(ctx, s.dialect.rebind(query), args...)
}
