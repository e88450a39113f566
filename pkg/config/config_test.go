package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.NotNil(t, cfg)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 10*time.Second, cfg.ScanWindow)
	assert.Equal(t, 30*time.Second, cfg.ConnectTimeout)
	assert.Equal(t, 500*time.Millisecond, cfg.PollInterval)
	assert.Equal(t, 3600, cfg.HistorySize)
	assert.Equal(t, 32, cfg.ErrorLogSize)
	assert.Equal(t, 64, cfg.NotificationBuffer)
	assert.Empty(t, cfg.Adapter)
	assert.NoError(t, cfg.Validate())
}

func TestConfig_NewLogger(t *testing.T) {
	tests := []struct {
		name     string
		logLevel string
		want     logrus.Level
	}{
		{
			name:     "creates logger with debug level",
			logLevel: "debug",
			want:     logrus.DebugLevel,
		},
		{
			name:     "creates logger with info level",
			logLevel: "info",
			want:     logrus.InfoLevel,
		},
		{
			name:     "creates logger with warn level",
			logLevel: "warn",
			want:     logrus.WarnLevel,
		},
		{
			name:     "creates logger with error level",
			logLevel: "error",
			want:     logrus.ErrorLevel,
		},
		{
			name:     "falls back to info on unknown level",
			logLevel: "chatty",
			want:     logrus.InfoLevel,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				LogLevel: tt.logLevel,
			}

			logger := cfg.NewLogger()

			assert.NotNil(t, logger)
			assert.Equal(t, tt.want, logger.GetLevel())

			// Verify formatter is set correctly
			formatter, ok := logger.Formatter.(*logrus.TextFormatter)
			assert.True(t, ok)
			assert.True(t, formatter.FullTimestamp)
			assert.Equal(t, time.RFC3339, formatter.TimestampFormat)
		})
	}
}

func TestLoad(t *testing.T) {
	writeConfig := func(t *testing.T, content string) string {
		t.Helper()
		path := filepath.Join(t.TempDir(), "hrmon.yaml")
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
		return path
	}

	t.Run("partial file keeps defaults", func(t *testing.T) {
		cfg, err := Load(writeConfig(t, "log_level: debug\nscan_window: 3s\nadapter: hci1\n"))
		require.NoError(t, err)

		assert.Equal(t, "debug", cfg.LogLevel)
		assert.Equal(t, 3*time.Second, cfg.ScanWindow)
		assert.Equal(t, "hci1", cfg.Adapter)
		assert.Equal(t, 30*time.Second, cfg.ConnectTimeout, "missing fields MUST keep defaults")
		assert.Equal(t, 3600, cfg.HistorySize)
	})

	t.Run("all fields", func(t *testing.T) {
		cfg, err := Load(writeConfig(t, `
log_level: warn
scan_window: 5s
connect_timeout: 12s
poll_interval: 250ms
history_size: 120
error_log_size: 4
notification_buffer: 16
`))
		require.NoError(t, err)

		assert.Equal(t, &Config{
			LogLevel:           "warn",
			ScanWindow:         5 * time.Second,
			ConnectTimeout:     12 * time.Second,
			PollInterval:       250 * time.Millisecond,
			HistorySize:        120,
			ErrorLogSize:       4,
			NotificationBuffer: 16,
		}, cfg)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("malformed yaml", func(t *testing.T) {
		_, err := Load(writeConfig(t, "scan_window: [1, 2\n"))
		assert.Error(t, err)
	})

	t.Run("invalid values", func(t *testing.T) {
		_, err := Load(writeConfig(t, "log_level: loud\n"))
		assert.ErrorContains(t, err, "log_level")
	})
}

func TestConfig_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{
			name:   "defaults are valid",
			mutate: func(*Config) {},
		},
		{
			name:   "unknown log level",
			mutate: func(c *Config) { c.LogLevel = "xml" },
			errMsg: "log_level",
		},
		{
			name:   "negative scan window",
			mutate: func(c *Config) { c.ScanWindow = -time.Second },
			errMsg: "scan_window",
		},
		{
			name:   "zero poll interval",
			mutate: func(c *Config) { c.PollInterval = 0 },
			errMsg: "poll_interval",
		},
		{
			name:   "zero history",
			mutate: func(c *Config) { c.HistorySize = 0 },
			errMsg: "history_size",
		},
		{
			name:   "negative notification buffer",
			mutate: func(c *Config) { c.NotificationBuffer = -1 },
			errMsg: "notification_buffer",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.errMsg)
		})
	}
}
