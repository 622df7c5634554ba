package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	wbserr "siteplan/internal/errors"
	"siteplan/pkg/task"
)

// inTempDir runs the test from an empty directory so no wbs.yaml is found.
func inTempDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	t.Setenv("HOME", dir)
	return dir
}

func TestLoad_Defaults(t *testing.T) {
	inTempDir(t)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, DefaultSQLitePath, cfg.Store.DSN)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, task.PolicyPermissive, cfg.Policy())

	level, err := cfg.LogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelInfo, level)
}

func TestLoad_File(t *testing.T) {
	dir := inTempDir(t)
	path := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
store:
  driver: memory
server:
  addr: 127.0.0.1:9090
log:
  level: debug
  format: json
status:
  policy: forward
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Store.Driver)
	assert.Equal(t, "127.0.0.1:9090", cfg.Server.Addr)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, task.PolicyForward, cfg.Policy())

	level, err := cfg.LogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)
}

func TestLoad_DiscoversWorkingDirFile(t *testing.T) {
	dir := inTempDir(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "wbs.yaml"), []byte("server:\n  addr: :7000\n"), 0o644))

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":7000", cfg.Server.Addr)
}

func TestLoad_Env(t *testing.T) {
	inTempDir(t)
	t.Setenv("WBS_STORE_DRIVER", "postgres")
	t.Setenv("WBS_STORE_DSN", "postgres://localhost/wbs")
	t.Setenv("WBS_STATUS_POLICY", "forward")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://localhost/wbs", cfg.Store.DSN)
	assert.Equal(t, task.PolicyForward, cfg.Policy())
}

func TestLoad_DatabaseURLFallback(t *testing.T) {
	inTempDir(t)
	t.Setenv("WBS_STORE_DRIVER", "postgres")
	t.Setenv("DATABASE_URL", "postgres://db/site")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "postgres://db/site", cfg.Store.DSN)
}

func TestSetDriver(t *testing.T) {
	inTempDir(t)
	t.Setenv("DATABASE_URL", "postgres://localhost/wbs")

	cfg, err := Load("")
	require.NoError(t, err)
	cfg.Store.DSN = "custom.db"

	cfg.SetDriver("sqlite")
	assert.Equal(t, "custom.db", cfg.Store.DSN, "same driver keeps its dsn")

	cfg.SetDriver("postgres")
	assert.Equal(t, "postgres://localhost/wbs", cfg.Store.DSN)

	cfg.SetDriver("memory")
	assert.Empty(t, cfg.Store.DSN)
	require.NoError(t, cfg.Validate())
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	inTempDir(t)
	_, err := Load("/does/not/exist.yaml")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Store:  StoreConfig{Driver: "sqlite", DSN: "wbs.db"},
			Server: ServerConfig{Addr: ":8080"},
			Log:    LogConfig{Level: "info", Format: "text"},
			Status: StatusConfig{Policy: "permissive"},
		}
	}
	tests := []struct {
		name   string
		mutate func(*Config)
		key    string
	}{
		{"driver", func(c *Config) { c.Store.Driver = "mysql" }, "store.driver"},
		{"postgres without dsn", func(c *Config) { c.Store.Driver = "postgres"; c.Store.DSN = "" }, "store.dsn"},
		{"level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
		{"format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
		{"policy", func(c *Config) { c.Status.Policy = "strict" }, "status.policy"},
	}

	base := valid()
	require.NoError(t, base.Validate())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(&c)
			err := c.Validate()
			require.Error(t, err)
			assert.True(t, wbserr.HasCode(err, wbserr.CodeConfigInvalid))
			assert.Contains(t, err.Error(), tt.key)
		})
	}

	mem := valid()
	mem.Store = StoreConfig{Driver: "memory"}
	assert.NoError(t, mem.Validate())
}
