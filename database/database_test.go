package database

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"villageserver/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, 60*time.Second, cfg.Game.TurnDuration)
	assert.Equal(t, models.TurnEndNoticeOff, cfg.Game.TurnEndNotice)
	assert.Equal(t, "es", cfg.Game.Locale)
	assert.Equal(t, models.PushModeWebsocket, cfg.Push.Mode)
	assert.False(t, cfg.Recovery.Enabled)
}

func TestLoadConfigFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	body := `{
		"redis": {"addr": "redis:6379", "prefix": "test:"},
		"game": {"turn_duration": "90s", "turn_end_notice": "after_delay", "locale": "en"},
		"recovery": {"enabled": true, "schedule": "@every 30s", "grace": "5s"}
	}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	t.Setenv("VILLAGE_REDIS_ADDR", "cache:6380")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "cache:6380", cfg.Redis.Addr)
	assert.Equal(t, "test:", cfg.Redis.Prefix)
	assert.Equal(t, 90*time.Second, cfg.Game.TurnDuration)
	assert.Equal(t, models.TurnEndNoticeAfterDelay, cfg.Game.TurnEndNotice)
	assert.Equal(t, "en", cfg.Game.Locale)
	assert.True(t, cfg.Recovery.Enabled)
	assert.Equal(t, "@every 30s", cfg.Recovery.Schedule)
	assert.Equal(t, 5*time.Second, cfg.Recovery.Grace)
}

func TestLoadConfigRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"turn end notice": `{"game": {"turn_end_notice": "sometimes"}}`,
		"push mode":       `{"push": {"mode": "carrier-pigeon"}}`,
		"gateway url":     `{"push": {"mode": "gateway"}}`,
		"turn duration":   `{"game": {"turn_duration": "-1s"}}`,
		"empty origins":   `{"http": {"allow_origins": []}}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.json")
			require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
			_, err := LoadConfig(path)
			assert.Error(t, err)
		})
	}
}

func TestLoadConfigMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))
	_, err := LoadConfig(path)
	assert.Error(t, err)
}
