package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mwrks/plume/config"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfigFile(t, "auth:\n  secret: "+testSecret+"\n")

	cfg, err := config.Load([]string{path}, nil)
	require.NoError(t, err)

	assert.Equal(t, 5000, cfg.Server.Port)
	assert.Equal(t, "mongo", cfg.Database.Type)
	assert.Equal(t, "mongodb://localhost:27017", cfg.Database.DSN)
	assert.Equal(t, "plume", cfg.Database.Name)
	assert.Equal(t, "filesystem", cfg.Blob.Type)
	assert.Equal(t, "./data", cfg.Blob.Path)
	assert.Equal(t, 168, cfg.Auth.TokenTTLHours)
	assert.Equal(t, 12, cfg.Auth.BcryptCost)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_ConfigFile(t *testing.T) {
	path := writeConfigFile(t, `
server:
  port: 8080
database:
  type: postgres
  dsn: postgres://localhost/feed
blob:
  type: minio
  endpoint: localhost:9000
  access_key: minioadmin
  secret_key: minioadmin
  bucket: feed-images
auth:
  secret: `+testSecret+`
  token_ttl_hours: 24
log:
  level: debug
`)

	cfg, err := config.Load([]string{path}, nil)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "postgres", cfg.Database.Type)
	assert.Equal(t, "postgres://localhost/feed", cfg.Database.DSN)
	assert.Equal(t, "minio", cfg.Blob.Type)
	assert.Equal(t, "localhost:9000", cfg.Blob.Endpoint)
	assert.Equal(t, "feed-images", cfg.Blob.Bucket)
	assert.Equal(t, 24, cfg.Auth.TokenTTLHours)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_LegacyPrefixes(t *testing.T) {
	path := writeConfigFile(t, `
blob:
  legacy_prefixes:
    - http://minio:9000/plume-images/
    - https://old-cdn.example.com/
auth:
  secret: `+testSecret+`
`)

	cfg, err := config.Load([]string{path}, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"http://minio:9000/plume-images/",
		"https://old-cdn.example.com/",
	}, cfg.Blob.LegacyPrefixes)
}

func TestLoad_MissingSecret(t *testing.T) {
	path := writeConfigFile(t, "server:\n  port: 8080\n")

	_, err := config.Load([]string{path}, nil)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "validate config")
}

func TestLoad_ShortSecret(t *testing.T) {
	path := writeConfigFile(t, "auth:\n  secret: tooshort\n")

	_, err := config.Load([]string{path}, nil)
	assert.Error(t, err)
}

func TestLoad_InvalidDatabaseType(t *testing.T) {
	path := writeConfigFile(t, `
database:
  type: cassandra
auth:
  secret: `+testSecret+`
`)

	_, err := config.Load([]string{path}, nil)
	assert.Error(t, err)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("PLUME_SERVER_PORT", "9999")
	t.Setenv("PLUME_DATABASE_TYPE", "sqlite")
	t.Setenv("PLUME_DATABASE_DSN", "feed.db")

	path := writeConfigFile(t, "auth:\n  secret: "+testSecret+"\n")

	cfg, err := config.Load([]string{path}, nil)
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Database.Type)
	assert.Equal(t, "feed.db", cfg.Database.DSN)
}

func TestLoad_MergedFiles(t *testing.T) {
	base := writeConfigFile(t, `
server:
  port: 8080
auth:
  secret: `+testSecret+`
`)
	override := writeConfigFile(t, "server:\n  port: 8081\n")

	cfg, err := config.Load([]string{base, override}, nil)
	require.NoError(t, err)

	assert.Equal(t, 8081, cfg.Server.Port)
}
