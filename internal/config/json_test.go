package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempJSON(t *testing.T, dir, name string, data map[string]any) string {
	t.Helper()
	if dir == "" {
		dir = t.TempDir()
	}
	if name == "" {
		name = "cfg.json"
	}
	path := filepath.Join(dir, name)
	b, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o600))
	return path
}

func Test_parseJson_SourcesAndPrecedence(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	dir := t.TempDir()
	pathFlag := writeTempJSON(t, dir, "flag.json", map[string]any{
		"qr_ttl":                 "45m",
		"biometric_max_attempts": 3,
		"storage_driver":         "badger",
		"lock_on_background":     false,
	})

	t.Run("loads from flags", func(t *testing.T) {
		os.Args = []string{"testbin", "-config", pathFlag}

		cfg := &Config{}
		cfg.LoadDefaults()
		parseJson(cfg)

		assert.Equal(t, 45*time.Minute, cfg.QRTTL)
		assert.Equal(t, 3, cfg.BiometricMaxAttempts)
		assert.Equal(t, DriverBadger, cfg.StorageDriver)
		assert.False(t, cfg.LockOnBackground)
	})

	t.Run("absent keys keep defaults", func(t *testing.T) {
		os.Args = []string{"testbin", "-config", pathFlag}

		cfg := &Config{}
		cfg.LoadDefaults()
		parseJson(cfg)

		// Not present in the file above.
		assert.Equal(t, 5*time.Minute, cfg.QRExpiryWarning)
		assert.Equal(t, "qrvault.db", cfg.StoragePath)
		assert.False(t, cfg.BiometricOnly)
	})

	t.Run("no CONFIG and no flags → no changes", func(t *testing.T) {
		os.Args = []string{"testbin"}

		cfg := &Config{
			QRTTL:         42 * time.Minute,
			StorageDriver: "badger",
		}
		parseJson(cfg)

		assert.Equal(t, 42*time.Minute, cfg.QRTTL)
		assert.Equal(t, "badger", cfg.StorageDriver)
	})

	t.Run("invalid JSON → panics", func(t *testing.T) {
		bad := filepath.Join(dir, "bad.json")
		require.NoError(t, os.WriteFile(bad, []byte(`{ this is not valid json`), 0o600))

		os.Args = []string{"testbin", "-config", bad}

		cfg := &Config{}
		require.Panics(t, func() { parseJson(cfg) })
	})
}
