package config

import (
	"time"

	"github.com/dmitrijs2005/qrvault/internal/cryptox"
)

// Storage driver names accepted by StorageDriver.
const (
	DriverSQLite = "sqlite"
	DriverBadger = "badger"
)

// Config holds the runtime settings of the auth gate. Every constant
// the gate's behavior depends on is tunable here; the cipher suite
// itself (AES-256-GCM, 12-byte IV, 16-byte salt) is fixed in cryptox.
type Config struct {
	// QRTTL is how long a successful QR validation stays fresh. Once it
	// lapses while unlocked, the machine drops to qr_pending.
	QRTTL time.Duration

	// QRExpiryWarning is the remaining-TTL threshold below which the UI
	// should start warning about the upcoming re-validation.
	QRExpiryWarning time.Duration

	// BiometricMaxAttempts is the number of consecutive biometric
	// failures after which the machine forces the QR path instead.
	BiometricMaxAttempts int

	// InactivityTimeout locks the vault after this long without user
	// activity while unlocked.
	InactivityTimeout time.Duration

	// LockOnBackground locks the vault whenever the app leaves the
	// foreground.
	LockOnBackground bool

	// KDFInfo is the HKDF domain-separation tag. Changing it on an
	// enrolled device makes the existing vault undecryptable.
	KDFInfo string

	// StorageDriver selects the metadata store backend, StoragePath its
	// location: a file path for sqlite, a directory for badger.
	StorageDriver string
	StoragePath   string

	// BiometricOnly runs the gate without QR credentials. No storage
	// key is ever derived in this mode, so local data stays unencrypted;
	// AllowUnencryptedStorage must be set to acknowledge that.
	BiometricOnly           bool
	AllowUnencryptedStorage bool
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.QRTTL = 30 * time.Minute
	c.QRExpiryWarning = 5 * time.Minute
	c.BiometricMaxAttempts = 5
	c.InactivityTimeout = 5 * time.Minute
	c.LockOnBackground = true
	c.KDFInfo = cryptox.StorageKeyInfo
	c.StorageDriver = DriverSQLite
	c.StoragePath = "qrvault.db"
	c.BiometricOnly = false
	c.AllowUnencryptedStorage = false
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present). Later sources take
// precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
