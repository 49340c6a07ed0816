package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, AssetBackendCloudinary, cfg.AssetBackend)
	assert.Equal(t, 60*time.Second, cfg.OTPTTL)
	assert.Equal(t, "thrift_it_unsigned", cfg.Cloudinary.UploadPreset)
	assert.False(t, cfg.IsProduction())
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
env: production
port: "9000"
asset_backend: minio
minio:
  endpoint: minio:9000
  bucket: thrift
connectivity_interval: 30s
`), 0o600))
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("PORT", "7000")
	t.Setenv("ALLOWED_ORIGINS", "https://a.test, https://b.test")
	t.Setenv("MINIO_USE_SSL", "true")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, "7000", cfg.Port, "env wins over the file")
	assert.Equal(t, AssetBackendMinIO, cfg.AssetBackend)
	assert.Equal(t, "minio:9000", cfg.MinIO.Endpoint)
	assert.True(t, cfg.MinIO.UseSSL)
	assert.Equal(t, 30*time.Second, cfg.ConnectivityInterval)
	assert.Equal(t, []string{"https://a.test", "https://b.test"}, cfg.AllowedOrigins)
}

func TestLoad_Rejects(t *testing.T) {
	t.Setenv("ASSET_BACKEND", "ftp")
	_, err := Load()
	require.Error(t, err)

	t.Setenv("ASSET_BACKEND", "")
	t.Setenv("OTP_TTL", "soon")
	_, err = Load()
	require.Error(t, err)
}
