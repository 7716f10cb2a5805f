package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestParseJson_OverlaysValues(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	path := writeTempConfig(t, `{
		"endpoint_addr": ":7070",
		"database_dsn": "postgres://u:p@db:5432/soclocker",
		"challenge_validity": "90s",
		"static_dir": "web",
		"keystore_backend": "s3",
		"keystore_path": "keys/server_keypair.json",
		"s3_bucket": "keystore-bucket"
	}`)
	os.Args = []string{"server", "-c", path}

	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)

	assert.Equal(t, ":7070", cfg.EndpointAddr)
	assert.Equal(t, "postgres://u:p@db:5432/soclocker", cfg.DatabaseDSN)
	assert.Equal(t, 90*time.Second, cfg.ChallengeValidity)
	assert.Equal(t, "web", cfg.StaticDir)
	assert.Equal(t, KeystoreS3, cfg.KeystoreBackend)
	assert.Equal(t, "keys/server_keypair.json", cfg.KeystorePath)
	assert.Equal(t, "keystore-bucket", cfg.S3Bucket)
}

func TestParseJson_NoFileFlagLeavesDefaults(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	os.Args = []string{"server"}

	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)

	assert.Equal(t, ":8000", cfg.EndpointAddr)
	assert.Equal(t, 3600*time.Second, cfg.ChallengeValidity)
}

func TestParseJson_InvalidJsonPanics(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	path := writeTempConfig(t, `{not json`)
	os.Args = []string{"server", "-c", path}

	cfg := &Config{}
	cfg.LoadDefaults()

	assert.Panics(t, func() { parseJson(cfg) })
}
