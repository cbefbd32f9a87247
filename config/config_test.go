package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdir moves the test into a fresh directory.
func chdir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(wd) })
	return dir
}

func TestLoad_Defaults(t *testing.T) {
	chdir(t)
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "lotbook.db", cfg.Database.Path)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Equal(t, "INR", cfg.Defaults.Currency)
	assert.Equal(t, "$", cfg.Feeds.Splits.Path)
	assert.Equal(t, "stocks.yaml", cfg.Stocks.File)
}

func TestLoad_FileEnvAndDotEnv(t *testing.T) {
	dir := chdir(t)
	t.Setenv("HOME", t.TempDir())
	yaml := `
database:
  path: /var/lib/lotbook/book.db
log:
  level: debug
  format: json
defaults:
  currency: usd
  user: alice
feeds:
  splits:
    source: https://example.com/splits.json
    path: $.data
  bonus:
    source: bonus.json
stocks:
  file: listed.yaml
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "lotbook.yaml"), []byte(yaml), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("LOTBOOK_DEFAULTS_USER=bob\n"), 0o644))
	t.Setenv("LOTBOOK_LOG_LEVEL", "warn")
	t.Cleanup(func() { os.Unsetenv("LOTBOOK_DEFAULTS_USER") })

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/lotbook/book.db", cfg.Database.Path)
	assert.Equal(t, "warn", cfg.Log.Level, "environment overrides the file")
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "USD", cfg.Defaults.Currency)
	assert.Equal(t, "bob", cfg.Defaults.User, ".env overrides the file")
	assert.Equal(t, "https://example.com/splits.json", cfg.Feeds.Splits.Source)
	assert.Equal(t, "$.data", cfg.Feeds.Splits.Path)
	assert.Equal(t, "bonus.json", cfg.Feeds.Bonus.Source)
	assert.Equal(t, "$", cfg.Feeds.Bonus.Path)
	assert.Equal(t, "listed.yaml", cfg.Stocks.File)
}

func TestLoad_ExplicitFile(t *testing.T) {
	chdir(t)
	path := filepath.Join(t.TempDir(), "other.yaml")
	require.NoError(t, os.WriteFile(path, []byte("database:\n  path: other.db\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "other.db", cfg.Database.Path)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoad_FeedFields(t *testing.T) {
	chdir(t)
	path := filepath.Join(t.TempDir(), "feeds.yaml")
	yaml := `
feeds:
  splits:
    source: splits.json
    fields:
      old_fv: '$["old-fv"]'
      new_fv: '$["new-fv"]'
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))
	t.Setenv("LOTBOOK_FEEDS_BONUS_FIELDS_RATIO", "$.bonus_ratio")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, `$["old-fv"]`, cfg.Feeds.Splits.Fields.OldFV)
	assert.Equal(t, `$["new-fv"]`, cfg.Feeds.Splits.Fields.NewFV)
	assert.Empty(t, cfg.Feeds.Splits.Fields.ExDate)
	assert.Equal(t, "$.bonus_ratio", cfg.Feeds.Bonus.Fields.Ratio)
}

func TestNewLogger(t *testing.T) {
	file := filepath.Join(t.TempDir(), "lotbook.log")
	log, err := NewLogger("debug", "json", file)
	require.NoError(t, err)
	assert.Equal(t, logrus.DebugLevel, log.GetLevel())
	log.WithField("k", "v").Info("hello")

	content, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Contains(t, string(content), `"msg":"hello"`)
	assert.Contains(t, string(content), `"k":"v"`)

	_, err = NewLogger("loud", "text", "")
	assert.Error(t, err)
	_, err = NewLogger("info", "xml", "")
	assert.Error(t, err)
}

func TestLoggerFromContext(t *testing.T) {
	log, err := NewLogger("error", "text", "")
	require.NoError(t, err)
	ctx := WithLogger(context.Background(), log)
	assert.Same(t, log, LoggerFromContext(ctx))
	assert.Equal(t, logrus.WarnLevel, LoggerFromContext(context.Background()).GetLevel())
}
