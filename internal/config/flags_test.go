package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlags(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	tests := []struct {
		name        string
		args        []string
		expectPanic bool
		check       func(t *testing.T, cfg *Config)
	}{
		{
			name: "overrides durations and driver",
			args: []string{"cmd", "-ttl", "15", "-warn", "2", "-inactivity", "10", "-driver", "badger", "-path", "/tmp/vault"},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 15*time.Minute, cfg.QRTTL)
				assert.Equal(t, 2*time.Minute, cfg.QRExpiryWarning)
				assert.Equal(t, 10*time.Minute, cfg.InactivityTimeout)
				assert.Equal(t, DriverBadger, cfg.StorageDriver)
				assert.Equal(t, "/tmp/vault", cfg.StoragePath)
			},
		},
		{
			name: "bool flags",
			args: []string{"cmd", "-biometric-only", "-allow-unencrypted", "-lock-on-background=false"},
			check: func(t *testing.T, cfg *Config) {
				assert.True(t, cfg.BiometricOnly)
				assert.True(t, cfg.AllowUnencryptedStorage)
				assert.False(t, cfg.LockOnBackground)
			},
		},
		{
			name: "defaults survive when flags absent",
			args: []string{"cmd"},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 30*time.Minute, cfg.QRTTL)
				assert.Equal(t, 5, cfg.BiometricMaxAttempts)
				assert.True(t, cfg.LockOnBackground)
			},
		},
		{
			name:        "incorrect ttl value",
			args:        []string{"cmd", "-ttl", "abc"},
			expectPanic: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Args = tt.args

			cfg := &Config{}
			cfg.LoadDefaults()

			if tt.expectPanic {
				require.Panics(t, func() { parseFlags(cfg) })
				return
			}

			require.NotPanics(t, func() { parseFlags(cfg) })
			tt.check(t, cfg)
		})
	}
}
