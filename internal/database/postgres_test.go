package database

import (
	"bytes"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestConnectSQLiteUsesSingleConnection(t *testing.T) {
	db, err := Connect("sqlite", "file:connect_test?mode=memory&cache=shared", Options{MaxOpenConns: 10, Logger: zerolog.Nop()})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.Equal(t, 1, sqlDB.Stats().MaxOpenConnections)
	require.NoError(t, sqlDB.Ping())
}

func TestConnectRejectsUnknownDriverAndEmptyPostgresDSN(t *testing.T) {
	_, err := Connect("mysql", "dsn", Options{})
	require.ErrorContains(t, err, "unsupported database driver")

	_, err = Connect("postgres", "", Options{})
	require.ErrorContains(t, err, "dsn must not be empty")
}

func TestQueryLoggerReportsSlowStatements(t *testing.T) {
	var buf bytes.Buffer
	db, err := Connect("sqlite", "file:slow_query_test?mode=memory&cache=shared", Options{
		SlowThreshold: time.Nanosecond,
		Logger:        zerolog.New(&buf),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	var one int
	require.NoError(t, db.Raw("SELECT 1").Scan(&one).Error)
	require.Equal(t, 1, one)
	require.Contains(t, buf.String(), "SLOW SQL")
	require.Contains(t, buf.String(), `"component":"gorm"`)
}
