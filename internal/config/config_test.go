package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Setenv("DB_HOST", "test-host")
	t.Setenv("DB_MAX_OPEN_CONNS", "20")
	t.Setenv("MINIO_USE_SSL", "true")
	t.Setenv("PREVIEW_TIMEOUT", "5s")
	t.Setenv("LOCK_DRIVER", "redis")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "test-host", cfg.Database.Host)
	assert.Equal(t, 20, cfg.Database.MaxOpenConns)
	assert.True(t, cfg.MinIO.UseSSL)
	assert.Equal(t, 5*time.Second, cfg.Preview.Timeout)
	assert.Equal(t, "redis", cfg.Lock.Driver)
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "5432", cfg.Database.Port)
	assert.Equal(t, int64(50<<20), cfg.MaxUploadBytes)
	assert.Equal(t, "postgres", cfg.CatalogDriver)
	assert.Equal(t, "minio", cfg.BlobDriver)
	assert.Equal(t, "documents", cfg.MinIO.Bucket)
	assert.Equal(t, 15*time.Minute, cfg.MinIO.PresignExpiry)
	assert.Equal(t, int64(4), cfg.Preview.MaxConcurrency)
	assert.Equal(t, "pdftoppm", cfg.Preview.PdftoppmBin)
	assert.Equal(t, 50_000_000, cfg.Preview.MaxInputPixels)
	assert.Equal(t, "@every 15m", cfg.Preview.SweepSchedule)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_Invalid(t *testing.T) {
	t.Setenv("DB_MAX_OPEN_CONNS", "invalid")

	cfg, err := Load()
	assert.Error(t, err)
	assert.Nil(t, cfg)
}

func TestLocation(t *testing.T) {
	cfg := &AppConfig{TimeZone: "Asia/Jakarta"}
	assert.Equal(t, "Asia/Jakarta", cfg.Location().String())

	cfg.TimeZone = "Nowhere/Special"
	assert.Equal(t, time.UTC, cfg.Location())
}
