package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	var c Config
	c.LoadDefaults()

	assert.Equal(t, 30*time.Minute, c.QRTTL)
	assert.Equal(t, 5*time.Minute, c.QRExpiryWarning)
	assert.Equal(t, 5, c.BiometricMaxAttempts)
	assert.Equal(t, 5*time.Minute, c.InactivityTimeout)
	assert.True(t, c.LockOnBackground)
	assert.Equal(t, "qrvault/storage-key/v1", c.KDFInfo)
	assert.Equal(t, DriverSQLite, c.StorageDriver)
	assert.Equal(t, "qrvault.db", c.StoragePath)
	assert.False(t, c.BiometricOnly)
	assert.False(t, c.AllowUnencryptedStorage)
}

func TestLoadConfig_UsesDefaultsBeforeParsing(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })
	os.Args = []string{"testbin"}

	cfg := LoadConfig()

	require.NotNil(t, cfg, "LoadConfig must not return nil")
	assert.Equal(t, 30*time.Minute, cfg.QRTTL)
	assert.Equal(t, DriverSQLite, cfg.StorageDriver)
}
