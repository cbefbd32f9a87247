// Package sqlstore persists a lotbook.Book in a SQLite database.
//
// A Store is both the loader of a Book's initial State and its Journal:
//
//	store, err := sqlstore.Open(ctx, "lotbook.db", log)
//	state, err := store.Load(ctx)
//	book := lotbook.NewBook(lotbook.WithState(state), lotbook.WithJournal(store))
package sqlstore

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Store is a SQLite backed journal.
type Store struct {
	db  *sql.DB
	log logrus.FieldLogger
}

// Open opens or creates the database at path and migrates its schema.
func Open(ctx context.Context, path string, log logrus.FieldLogger) (*Store, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	dsn := fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(on)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("cannot open database %q: %w", path, err)
	}
	// a single connection serializes writers and keeps the pragmas
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("cannot open database %q: %w", path, err)
	}
	s := &Store{db: db, log: log.WithField("db", path)}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	driver, err := sqlite.WithInstance(s.db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("cannot create migration driver: %w", err)
	}
	src, err := iofs.New(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("cannot read migrations: %w", err)
	}
	// m is not closed: it would close the shared database.
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("cannot create migrations: %w", err)
	}
	err = m.Up()
	switch {
	case errors.Is(err, migrate.ErrNoChange):
		s.log.Debug("schema up to date")
	case err != nil:
		return fmt.Errorf("cannot migrate schema: %w", err)
	default:
		v, _, _ := m.Version()
		s.log.WithField("version", v).Info("schema migrated")
	}
	return nil
}
