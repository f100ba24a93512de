package database

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Options tunes the relational connection.
type Options struct {
	MaxOpenConns  int
	MaxIdleConns  int
	ConnMaxLife   time.Duration
	SlowThreshold time.Duration
	Logger        zerolog.Logger
}

// Connect opens the relational store named by driver. Postgres is the
// production store; sqlite serves local runs and tests. SQLite is held to a
// single connection since it serialises writers anyway.
func Connect(driver, dsn string, opts Options) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case "", "postgres":
		if dsn == "" {
			return nil, fmt.Errorf("postgres dsn must not be empty")
		}
		dialector = postgres.Open(dsn)
	case "sqlite":
		if dsn == "" {
			dsn = "file:inklaunch.db?_busy_timeout=5000"
		}
		dialector = sqlite.Open(dsn)
		opts.MaxOpenConns = 1
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: queryLogger(opts)})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", dialector.Name(), err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access %s pool: %w", dialector.Name(), err)
	}
	if opts.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(opts.MaxIdleConns)
	}
	if opts.ConnMaxLife > 0 {
		sqlDB.SetConnMaxLifetime(opts.ConnMaxLife)
	}

	return db, nil
}

// queryLogger sends gorm's warnings and slow queries through zerolog.
func queryLogger(opts Options) gormlogger.Interface {
	slow := opts.SlowThreshold
	if slow <= 0 {
		slow = 500 * time.Millisecond
	}
	sink := opts.Logger.With().Str("component", "gorm").Logger()
	return gormlogger.New(&sink, gormlogger.Config{
		SlowThreshold:             slow,
		LogLevel:                  gormlogger.Warn,
		IgnoreRecordNotFoundError: true,
		Colorful:                  false,
	})
}
