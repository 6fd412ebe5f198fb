package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coredatabase "github.com/m3rciful/gatebot/core/database"
)

func TestLoadAppliesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
telegram:
  token: "1:x"
  admin_id: 100
gate:
  seed_channels: ["@chan1", "  ", " @chan2 "]
  cache_ttl: 45s
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"@chan1", "@chan2"}, cfg.Gate.SeedChannels)
	assert.Equal(t, 45*time.Second, cfg.Gate.CacheTTL)
	assert.Equal(t, 30*time.Millisecond, cfg.Broadcast.Pacing)
	assert.Equal(t, 10*time.Second, cfg.Broadcast.SendTimeout)
	assert.Equal(t, 30*time.Minute, cfg.Session.TTL)
	assert.Equal(t, coredatabase.DriverSQLite, cfg.Database.Driver)
	assert.True(t, cfg.CoreConfig().IsAdmin(100))
}

func TestEnvironmentOverridesPacing(t *testing.T) {
	t.Setenv("BOT_TOKEN", "1:x")
	t.Setenv("TELEGRAM_ADMIN_ID", "5")
	t.Setenv("BROADCAST_PACING", "50ms")
	t.Setenv("METRICS_LISTEN", ":9100")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 50*time.Millisecond, cfg.Broadcast.Pacing)
	assert.Equal(t, ":9100", cfg.Metrics.Listen)
}

func TestNormalizeRejectsNegativeDurations(t *testing.T) {
	cfg := Config{}
	cfg.Core.Telegram.Token = "1:x"
	cfg.Core.Telegram.AdminID = 1
	cfg.Session.TTL = -time.Second
	assert.Error(t, cfg.Normalize())
}
