package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gardenplots/internal/config"

	"github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

// DB is the relational store adapter. The same queries run on SQLite and
// MySQL; only schema and upsert syntax differ per driver.
type DB struct {
	*sql.DB
	driver string
	logger *zerolog.Logger
}

func NewDB(cfg config.DatabaseConfig, logger *zerolog.Logger) (*DB, error) {
	switch cfg.Driver {
	case config.DriverMySQL:
		return NewMySQL(cfg.DSN, cfg.MaxOpenConns, logger)
	case config.DriverSQLite, "":
		return NewSQLite(cfg.Path, logger)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

func NewSQLite(path string, logger *zerolog.Logger) (*DB, error) {
	if path != ":memory:" {
		// Создаем директорию для БД, если её нет
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	sqlDB, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection serializes writers and keeps :memory: databases shared.
	sqlDB.SetMaxOpenConns(1)

	db := Wrap(sqlDB, config.DriverSQLite, logger)
	if err := db.init(); err != nil {
		sqlDB.Close()
		return nil, err
	}

	db.logger.Info().Str("path", path).Msg("SQLite database initialized")
	return db, nil
}

func NewMySQL(dsn string, maxOpenConns int, logger *zerolog.Logger) (*DB, error) {
	mcfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse mysql dsn: %w", err)
	}
	mcfg.ParseTime = true
	mcfg.Loc = time.UTC

	sqlDB, err := sql.Open("mysql", mcfg.FormatDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if maxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(maxOpenConns)
	}
	sqlDB.SetConnMaxLifetime(3 * time.Minute)

	db := Wrap(sqlDB, config.DriverMySQL, logger)
	if err := db.init(); err != nil {
		sqlDB.Close()
		return nil, err
	}

	db.logger.Info().Str("addr", mcfg.Addr).Str("db", mcfg.DBName).Msg("MySQL database initialized")
	return db, nil
}

// Wrap adapts an already opened handle without touching the schema.
func Wrap(sqlDB *sql.DB, driver string, logger *zerolog.Logger) *DB {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	l := logger.With().Str("component", "database").Str("driver", driver).Logger()
	return &DB{DB: sqlDB, driver: driver, logger: &l}
}

func (db *DB) Driver() string {
	return db.driver
}

func (db *DB) init() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}
	return nil
}

func (db *DB) Ping(ctx context.Context) error {
	return db.PingContext(ctx)
}

// Migrate creates missing tables and indexes for the current driver.
func (db *DB) Migrate(ctx context.Context) error {
	queries := sqliteSchema
	if db.driver == config.DriverMySQL {
		queries = mysqlSchema
	}
	for _, q := range queries {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func utcNow() time.Time {
	return time.Now().UTC()
}
