package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alecthomas/kong"
	"github.com/bryan-buckman/pushfeed/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pushfeed.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "pushfeed.db", cfg.Database.DSN)
	assert.Equal(t, "/subscriber", cfg.Ingest.Prefix)
	assert.Equal(t, int64(10<<20), cfg.Ingest.MaxBodyBytes)
	assert.Equal(t, model.DefaultItemsPolicy, cfg.ItemsPolicy())
	assert.Equal(t, model.DefaultRetentionKeep, cfg.Retention.Keep)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 30*time.Second, cfg.ReadTimeout())
	assert.Equal(t, 30*time.Second, cfg.WriteTimeout())
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
listen_addr: "127.0.0.1:9000"
database:
  driver: postgres
  dsn: "postgres://localhost/pushfeed?sslmode=disable"
ingest:
  prefix: /push
  max_body_bytes: 2048
items:
  default: 10
retention:
  keep: 500
log:
  level: debug
  max_size: 16
server:
  read_timeout_seconds: 5
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9000", cfg.ListenAddr)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "postgres://localhost/pushfeed?sslmode=disable", cfg.Database.DSN)
	assert.Equal(t, "/push", cfg.Ingest.Prefix)
	assert.Equal(t, int64(2048), cfg.Ingest.MaxBodyBytes)
	assert.Equal(t, model.RangePolicy{Min: 1, Max: 100, Default: 10}, cfg.ItemsPolicy())
	assert.Equal(t, 500, cfg.Retention.Keep)
	assert.Equal(t, "debug", cfg.Logger().Level)
	assert.Equal(t, 16, cfg.Logger().MaxSize)
	assert.Equal(t, 5*time.Second, cfg.ReadTimeout())
	assert.Equal(t, 30*time.Second, cfg.WriteTimeout())
}

func TestLoad_EmptyFile(t *testing.T) {
	cfg, err := Load(writeConfig(t, ""))
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.ListenAddr)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_Corrupt(t *testing.T) {
	_, err := Load(writeConfig(t, "listen_addr: [unterminated"))
	assert.Error(t, err)
}

func TestLoad_Invalid(t *testing.T) {
	_, err := Load(writeConfig(t, "items:\n  default: 500\n"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "ingest:\n  prefix: subscriber\n"))
	assert.Error(t, err)
}

func TestNewParser_FlagsOverrideFile(t *testing.T) {
	path := writeConfig(t, "listen_addr: \":9000\"\nretention:\n  keep: 10\n")

	var cli struct {
		Settings
	}
	parser, err := NewParser(&cli, []string{path}, kong.Name("pushfeed"))
	require.NoError(t, err)
	_, err = parser.Parse([]string{"--listen-addr=:7000"})
	require.NoError(t, err)

	assert.Equal(t, ":7000", cli.ListenAddr)
	assert.Equal(t, 10, cli.Retention.Keep)
}

func TestNewParser_ConfigFlag(t *testing.T) {
	path := writeConfig(t, "database:\n  dsn: /tmp/other.db\n")

	var cli struct {
		Config kong.ConfigFlag
		Settings
	}
	parser, err := NewParser(&cli, nil)
	require.NoError(t, err)
	_, err = parser.Parse([]string{"--config", path})
	require.NoError(t, err)

	assert.Equal(t, "/tmp/other.db", cli.Database.DSN)
}
