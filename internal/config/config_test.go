package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	for _, key := range []string{"CONFIG_FILE", "PORT", "DB_PATH", "STATE_DIR", "LOG_LEVEL", "ACHIEVEMENT_ZOOMS"} {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_FileThenEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "explorer.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
port: ":9000"
state_dir: /var/lib/explorer
achievement_zooms: [12, 14]
log_level: debug
`), 0o644))

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("STATE_DIR", "/tmp/explorer")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Port)
	assert.Equal(t, "/tmp/explorer", cfg.StateDir)
	assert.Equal(t, []int{12, 14}, cfg.AchievementZooms)
	assert.Equal(t, Default().DBPath, cfg.DBPath)

	level, err := cfg.SlogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)
}

func TestLoad_ZoomsFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("ACHIEVEMENT_ZOOMS", " 10, 19 ,")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []int{10, 19}, cfg.AchievementZooms)
}

func TestLoad_Invalid(t *testing.T) {
	clearEnv(t)
	t.Setenv("ACHIEVEMENT_ZOOMS", "14,20")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("ACHIEVEMENT_ZOOMS", "fourteen")
	_, err = Load()
	assert.Error(t, err)

	t.Setenv("ACHIEVEMENT_ZOOMS", "")
	t.Setenv("LOG_LEVEL", "loud")
	_, err = Load()
	assert.Error(t, err)

	t.Setenv("LOG_LEVEL", "")
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
	_, err = Load()
	assert.Error(t, err)
}
