// mediahub/config/config_test.go
package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"mediahub/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	t.Run("loads default values correctly", func(t *testing.T) {
		// Ensure no env vars are lingering from other tests
		t.Setenv("MEDIAHUB_PORT", "")
		t.Setenv("MEDIAHUB_MAX_CONCURRENCY", "")
		t.Setenv("MEDIAHUB_AUTH_ENABLE", "")
		t.Setenv("MEDIAHUB_FF_TIMEOUT", "")
		t.Setenv("MEDIAHUB_MAX_INPUT_SIZE", "")
		t.Setenv("MEDIAHUB_MEDIA_DIR", "")

		cfg, err := config.Load("")
		require.NoError(t, err)
		require.NotNil(t, cfg)

		assert.Equal(t, "3000", cfg.Port)
		assert.Equal(t, "videos", cfg.MediaDir)
		assert.Equal(t, 0, cfg.MaxConcurrency)
		assert.False(t, cfg.AuthEnable)
		assert.Equal(t, "ffmpeg", cfg.FFBin)
		assert.Equal(t, "ffprobe", cfg.FFProbeBin)
		assert.Equal(t, 2*time.Hour, cfg.FFTimeout)
		assert.Equal(t, 250*time.Millisecond, cfg.SampleInterval)
		assert.Equal(t, int64(200*1024*1024), cfg.ThrottleFreeMem)
		assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
	})

	t.Run("overrides defaults with environment variables", func(t *testing.T) {
		t.Setenv("MEDIAHUB_PORT", "9999")
		t.Setenv("MEDIAHUB_MAX_CONCURRENCY", "4")
		t.Setenv("MEDIAHUB_AUTH_ENABLE", "true")
		t.Setenv("MEDIAHUB_AUTH_KEY", "newsecret")
		t.Setenv("MEDIAHUB_MAX_INPUT_SIZE", "50MB")
		t.Setenv("MEDIAHUB_KEEPALIVE_INTERVAL", "3s")

		cfg, err := config.Load("")
		require.NoError(t, err)

		assert.Equal(t, "9999", cfg.Port)
		assert.Equal(t, 4, cfg.MaxConcurrency)
		assert.True(t, cfg.AuthEnable)
		assert.Equal(t, "newsecret", cfg.AuthKey)
		assert.Equal(t, int64(50*1024*1024), cfg.MaxInputSize)
		assert.Equal(t, 3*time.Second, cfg.KeepAliveInterval)
	})

	t.Run("reads an explicit config file", func(t *testing.T) {
		t.Setenv("MEDIAHUB_PORT", "")
		t.Setenv("MEDIAHUB_MEDIA_DIR", "")

		file := filepath.Join(t.TempDir(), "mediahub.yaml")
		require.NoError(t, os.WriteFile(file, []byte("PORT: \"7000\"\nMEDIA_DIR: /srv/media\n"), 0o644))

		cfg, err := config.Load(file)
		require.NoError(t, err)
		assert.Equal(t, "7000", cfg.Port)
		assert.Equal(t, "/srv/media", cfg.MediaDir)
	})

	t.Run("fails on a missing explicit config file", func(t *testing.T) {
		_, err := config.Load(filepath.Join(t.TempDir(), "absent.yaml"))
		assert.Error(t, err)
	})
}
