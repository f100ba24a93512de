package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadAppliesDefaults(t *testing.T) {
	t.Setenv("INK_JWT_SECRET", "secret")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "postgres", cfg.DatabaseDriver)
	require.Equal(t, 4, cfg.EvaluationWorkers)
	require.Equal(t, 90*time.Second, cfg.EvaluationCallTimeout)
	require.Equal(t, 15*time.Minute, cfg.EvaluationClaimTTL)
	require.Equal(t, 2*time.Minute, cfg.LeaderboardCacheTTL)
	require.Equal(t, int64(20<<20), cfg.SubmissionMaxFileBytes)
	require.Equal(t, 10, cfg.SubmissionRateLimitPerMin)
	require.Equal(t, 20, cfg.DatabaseMaxOpenConns)
	require.Equal(t, 30*time.Minute, cfg.DatabaseConnMaxLife)
	require.Equal(t, 500*time.Millisecond, cfg.DatabaseSlowQuery)
	require.Equal(t, ":8080", cfg.HTTPAddress())
}

func TestLoadReadsOverrides(t *testing.T) {
	t.Setenv("INK_JWT_SECRET", "secret")
	t.Setenv("INK_DATABASE_DRIVER", "SQLite")
	t.Setenv("INK_EVALUATION_WORKERS", "8")
	t.Setenv("INK_EVALUATION_CALL_TIMEOUT", "30s")
	t.Setenv("INK_SUBMISSION_MAX_FILE_MB", "5")
	t.Setenv("INK_DATABASE_SLOW_QUERY", "2s")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "sqlite", cfg.DatabaseDriver)
	require.Equal(t, 8, cfg.EvaluationWorkers)
	require.Equal(t, 30*time.Second, cfg.EvaluationCallTimeout)
	require.Equal(t, int64(5<<20), cfg.SubmissionMaxFileBytes)
	require.Equal(t, 2*time.Second, cfg.DatabaseSlowQuery)
}

func TestLoadRejectsMissingSecret(t *testing.T) {
	t.Setenv("INK_JWT_SECRET", "")

	_, err := Load()
	require.ErrorContains(t, err, "jwt secret")
}

func TestLoadRejectsInvalidDuration(t *testing.T) {
	t.Setenv("INK_JWT_SECRET", "secret")
	t.Setenv("INK_EVALUATION_CLAIM_TTL", "soon")

	_, err := Load()
	require.ErrorContains(t, err, "evaluation.claim_ttl")
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
	t.Setenv("INK_JWT_SECRET", "secret")
	t.Setenv("INK_DATABASE_DRIVER", "mysql")

	_, err := Load()
	require.ErrorContains(t, err, "unsupported database driver")
}
