// Package datastore persists detections, species, weather and station metadata through gorm
// on sqlite, MySQL or PostgreSQL.
package datastore

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/tphakala/birdweather-sync/internal/conf"
	"github.com/tphakala/birdweather-sync/internal/errors"
	"github.com/tphakala/birdweather-sync/internal/logger"
)

// DefaultSlowQueryThreshold is the duration after which a query is logged as slow.
const DefaultSlowQueryThreshold = 500 * time.Millisecond

const (
	defaultMySQLPort    = 3306
	defaultPostgresPort = 5432
)

// DataStore implements Interface on top of a gorm connection.
type DataStore struct {
	DB  *gorm.DB
	log logger.Logger
}

// SQLiteStore implements Interface for SQLite
type SQLiteStore struct {
	DataStore
	Settings *conf.DatabaseSettings
}

// MySQLStore implements Interface for MySQL
type MySQLStore struct {
	DataStore
	Settings *conf.DatabaseSettings
}

// PostgresStore implements Interface for PostgreSQL
type PostgresStore struct {
	DataStore
	Settings *conf.DatabaseSettings
}

// New returns the store for the configured backend. Call Open before use.
func New(settings *conf.DatabaseSettings, log logger.Logger) (Interface, error) {
	if settings == nil {
		return nil, validationError("database settings are required", "database", nil)
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	ds := DataStore{log: log.Module("datastore")}

	switch strings.ToLower(settings.Type) {
	case "", "sqlite":
		return &SQLiteStore{DataStore: ds, Settings: settings}, nil
	case "mysql":
		return &MySQLStore{DataStore: ds, Settings: settings}, nil
	case "postgres":
		return &PostgresStore{DataStore: ds, Settings: settings}, nil
	default:
		return nil, validationError("unsupported database type", "database.type", settings.Type)
	}
}

func (ds *DataStore) gormConfig() *gorm.Config {
	return &gorm.Config{
		Logger:         logger.NewGormLoggerAdapter(ds.log.Module("gorm"), DefaultSlowQueryThreshold),
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	}
}

// Open opens the SQLite database file, creating its directory if needed.
func (store *SQLiteStore) Open() error {
	path := store.Settings.Path
	if path == "" {
		return validationError("sqlite database path is empty", "database.path", path)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return errors.New(err).
				Component("datastore").
				Category(errors.CategoryFileIO).
				Context("path", dir).
				Build()
		}
	}

	dsn := path + "?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on"
	db, err := gorm.Open(sqlite.Open(dsn), store.gormConfig())
	if err != nil {
		return dbError(err, "open_sqlite", errors.PriorityHigh, "path", path)
	}

	store.DB = db
	return performAutoMigration(db, "sqlite", store.log)
}

// Open connects to MySQL.
func (store *MySQLStore) Open() error {
	s := store.Settings
	port := s.Port
	if port == 0 {
		port = defaultMySQLPort
	}

	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		s.Username, s.Password, s.Host, port, s.Name)

	db, err := gorm.Open(mysql.Open(dsn), store.gormConfig())
	if err != nil {
		return dbError(err, "open_mysql", errors.PriorityHigh, "host", s.Host, "database", s.Name)
	}

	store.DB = db
	return performAutoMigration(db, "mysql", store.log)
}

// Open connects to PostgreSQL through pgx.
func (store *PostgresStore) Open() error {
	s := store.Settings
	port := s.Port
	if port == 0 {
		port = defaultPostgresPort
	}

	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=prefer TimeZone=UTC",
		s.Host, s.Username, s.Password, s.Name, port)

	db, err := gorm.Open(postgres.Open(dsn), store.gormConfig())
	if err != nil {
		return dbError(err, "open_postgres", errors.PriorityHigh, "host", s.Host, "database", s.Name)
	}

	store.DB = db
	return performAutoMigration(db, "postgres", store.log)
}

// Close closes the underlying connection pool.
func (ds *DataStore) Close() error {
	if ds.DB == nil {
		return stateError(errors.NewStd("database connection is not initialized"), "close", "connection")
	}

	sqlDB, err := ds.DB.DB()
	if err != nil {
		return dbError(err, "close", "")
	}
	if err := sqlDB.Close(); err != nil {
		return dbError(err, "close", "")
	}
	return nil
}

// performAutoMigration creates or updates every table.
func performAutoMigration(db *gorm.DB, dbType string, log logger.Logger) error {
	start := time.Now()
	if err := db.AutoMigrate(allModels()...); err != nil {
		return dbError(err, "auto_migrate", errors.PriorityCritical, "db_type", dbType)
	}

	log.Debug("database migration completed",
		logger.String("db_type", dbType),
		logger.Duration("duration", time.Since(start)),
		logger.Int("tables", len(allModels())))
	return nil
}
