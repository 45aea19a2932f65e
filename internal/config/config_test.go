package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "./data/decisions.db", cfg.DatabasePath)
	assert.Equal(t, 15*time.Minute, cfg.AnalysisInterval)
	assert.Equal(t, 24.0, cfg.AnalysisWindowHours)
	assert.Equal(t, 90*time.Second, cfg.ConfirmationTimeout)
	assert.Equal(t, 50, cfg.RecalcEvery)
	assert.False(t, cfg.BackupEnabled())
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("DATABASE_PATH", "/tmp/test.db")
	t.Setenv("ANALYSIS_INTERVAL", "5m")
	t.Setenv("ANALYSIS_WINDOW_HOURS", "12")
	t.Setenv("ADAPTIVE_RECALC_EVERY", "25")
	t.Setenv("LOG_PRETTY", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/tmp/test.db", cfg.DatabasePath)
	assert.Equal(t, 5*time.Minute, cfg.AnalysisInterval)
	assert.Equal(t, 12.0, cfg.AnalysisWindowHours)
	assert.Equal(t, 25, cfg.RecalcEvery)
	assert.True(t, cfg.LogPretty)
}

func TestValidateRejectsPartialS3Credentials(t *testing.T) {
	t.Setenv("S3_BUCKET", "backups")
	t.Setenv("S3_ACCESS_KEY_ID", "")
	t.Setenv("S3_SECRET_ACCESS_KEY", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestBackupEnabled(t *testing.T) {
	t.Setenv("S3_BUCKET", "backups")
	t.Setenv("S3_ACCESS_KEY_ID", "key")
	t.Setenv("S3_SECRET_ACCESS_KEY", "secret")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.BackupEnabled())
}
