// Package pagestore is the out-of-core backing store for page-bearing
// sitemap nodes (spec §3/§9: "Pages-bearing nodes store their page list in
// a temporary file written at construction ... and rehydrate it on each
// read"). A Store owns one temp-directory SQLite database shared by every
// node produced during a single tree build; each node spills under its own
// row key and never sees another node's payload.
package pagestore

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/golang/snappy"
	gormsqlite "gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// pageBatch is the single-table schema migrations/0001_init.up.sql creates.
type pageBatch struct {
	ID      string `gorm:"primaryKey"`
	Payload []byte
}

func (pageBatch) TableName() string { return "page_batches" }

// Store is a temp-file SQLite spool for page batches, compressed with
// snappy before they hit disk.
type Store struct {
	mu   sync.Mutex
	db   *gorm.DB
	path string
}

// Open creates a fresh temp SQLite database under dir (os.TempDir() if dir
// is empty), migrates its schema, and returns a Store backed by it.
func Open(dir string) (*Store, error) {
	if dir == "" {
		dir = os.TempDir()
	}
	f, err := os.CreateTemp(dir, "sitemapgraph-pages-*.db")
	if err != nil {
		return nil, fmt.Errorf("pagestore: creating temp file: %w", err)
	}
	path := f.Name()
	_ = f.Close()

	db, err := gorm.Open(gormsqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		_ = os.Remove(path)
		return nil, fmt.Errorf("pagestore: opening sqlite: %w", err)
	}

	if err := migrateSchema(db, path); err != nil {
		_ = os.Remove(path)
		return nil, err
	}

	return &Store{db: db, path: path}, nil
}

func migrateSchema(db *gorm.DB, path string) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("pagestore: unwrapping *sql.DB: %w", err)
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("pagestore: loading embedded migrations: %w", err)
	}

	dbDriver, err := sqlite3.WithInstance(sqlDB, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("pagestore: sqlite migrate driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite3", dbDriver)
	if err != nil {
		return fmt.Errorf("pagestore: building migrator for %s: %w", path, err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("pagestore: applying schema: %w", err)
	}

	return nil
}

// Put spills payload (already serialized by the caller -- sitemapgraph
// gob-encodes a []Page before calling this) into the store under id,
// snappy-compressed.
func (s *Store) Put(id string, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	compressed := snappy.Encode(nil, payload)
	return s.db.Create(&pageBatch{ID: id, Payload: compressed}).Error
}

// Get rehydrates the payload previously stored under id.
func (s *Store) Get(id string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var row pageBatch
	if err := s.db.First(&row, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("pagestore: no batch with id %q", id)
		}
		return nil, err
	}
	return snappy.Decode(nil, row.Payload)
}

// Close releases the underlying *sql.DB and removes the temp file.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var sqlDB *sql.DB
	if s.db != nil {
		sqlDB, _ = s.db.DB()
	}
	var closeErr error
	if sqlDB != nil {
		closeErr = sqlDB.Close()
	}
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		if closeErr == nil {
			closeErr = err
		}
	}
	return closeErr
}

// Path returns the backing file's path, mainly for tests.
func (s *Store) Path() string {
	return filepath.Clean(s.path)
}
