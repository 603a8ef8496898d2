package metadata

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/dmitrijs2005/qrvault/internal/filex"
	"github.com/dmitrijs2005/qrvault/internal/migrations"
)

// Store couples an open Repository with the backend handle that must
// be closed on shutdown.
type Store struct {
	Metadata Repository

	closer func() error
}

func (s *Store) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer()
}

// RunMigrations applies the embedded sqlite migrations.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	return goose.UpContext(ctx, db, ".")
}

// Open opens the metadata store selected by driver: "sqlite" expects a
// DSN or file path, "badger" a data directory. Missing directories are
// created with vault-private permissions.
func Open(ctx context.Context, driver, path string) (*Store, error) {
	switch driver {
	case "sqlite":
		if err := filex.EnsureParentDir(path); err != nil {
			return nil, fmt.Errorf("failed to prepare sqlite path: %w", err)
		}
		db, err := sql.Open("sqlite", path)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite store: %w", err)
		}
		if err := RunMigrations(ctx, db); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		return &Store{Metadata: NewSQLiteRepository(db), closer: db.Close}, nil

	case "badger":
		dir, err := filex.EnsureDir(path)
		if err != nil {
			return nil, fmt.Errorf("failed to prepare badger dir: %w", err)
		}
		opts := badger.DefaultOptions(dir)
		opts.Logger = nil
		db, err := badger.Open(opts)
		if err != nil {
			return nil, fmt.Errorf("failed to open badger store: %w", err)
		}
		return &Store{Metadata: NewBadgerRepository(db), closer: db.Close}, nil

	default:
		return nil, fmt.Errorf("unknown storage driver %q", driver)
	}
}
