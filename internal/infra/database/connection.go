package database

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/xavierca1/leadsync/internal/entity"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// NewDBConnection opens the pool and pings it before handing it out.
func NewDBConnection(driver, connString string) (*sql.DB, error) {
	db, err := sql.Open(driver, connString)
	if err != nil {
		return nil, err
	}

	if driver == "sqlite" {
		// One writer at a time; the pool just queues.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
	}
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

// Store bundles the three repositories the orchestrator needs.
type Store struct {
	DB      *sql.DB
	Leads   entity.LeadRepository
	States  entity.StateRepository
	Journal entity.JournalRepository
}

func (s *Store) Close() error {
	if s == nil || s.DB == nil {
		return nil
	}
	return s.DB.Close()
}

// Ping reports whether the backing database is reachable. Memory stores
// are always healthy.
func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.DB == nil {
		return nil
	}
	return s.DB.PingContext(ctx)
}

type storeFactory func(ctx context.Context, dsn string) (*Store, error)

var storeFactories = map[string]storeFactory{
	"memory":     openMemory,
	"postgres":   openPostgres,
	"postgresql": openPostgres,
	"sqlite":     openSQLite,
}

// Open builds a Store from a DSN: memory://, postgres://... or sqlite://path.
func Open(ctx context.Context, dsn string) (*Store, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		dsn = "memory://"
	}
	parsed, err := url.Parse(dsn)
	if err != nil {
		return nil, fmt.Errorf("invalid database url: %w", err)
	}
	factory, ok := storeFactories[strings.ToLower(parsed.Scheme)]
	if !ok {
		return nil, fmt.Errorf("unsupported database scheme %q", parsed.Scheme)
	}
	return factory(ctx, dsn)
}

func openMemory(context.Context, string) (*Store, error) {
	mem := NewMemoryStore()
	return &Store{Leads: mem, States: mem, Journal: mem}, nil
}

func openPostgres(ctx context.Context, dsn string) (*Store, error) {
	db, err := NewDBConnection("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres connection failed: %w", err)
	}
	return newSQLStore(ctx, db, postgresDialect)
}

func openSQLite(ctx context.Context, dsn string) (*Store, error) {
	path := strings.TrimPrefix(dsn, "sqlite://")
	if path == "" {
		return nil, fmt.Errorf("sqlite url needs a path")
	}
	if !strings.Contains(path, "?") {
		path += "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}
	db, err := NewDBConnection("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite connection failed: %w", err)
	}
	return newSQLStore(ctx, db, sqliteDialect)
}

func newSQLStore(ctx context.Context, db *sql.DB, d dialect) (*Store, error) {
	if err := Migrate(ctx, db, d); err != nil {
		_ = db.Close()
		return nil, err
	}
	conn := sqlDB{DB: db, dialect: d}
	return &Store{
		DB:      db,
		Leads:   &LeadRepository{DB: conn},
		States:  &StateRepository{DB: conn},
		Journal: &JournalRepository{DB: conn},
	}, nil
}
