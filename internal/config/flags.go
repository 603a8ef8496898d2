package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/qrvault/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags:
//
//	-ttl int             QR validation TTL in minutes (default from Config)
//	-warn int            QR expiry warning threshold in minutes
//	-attempts int        biometric attempts before QR is forced
//	-inactivity int      session inactivity timeout in minutes
//	-driver string       metadata store driver: sqlite | badger
//	-path string         metadata store path
//	-biometric-only      run without QR credentials
//	-allow-unencrypted   acknowledge unencrypted storage for -biometric-only
//	-lock-on-background  lock when the app is backgrounded
//
// Note: The function filters os.Args to only include the flags it knows about,
// using flagx.FilterArgs, to avoid interference with other components.
func parseFlags(cfg *Config) {
	// Filter args to include only those handled here.
	args := flagx.FilterArgs(os.Args[1:], []string{
		"-ttl", "-warn", "-attempts", "-inactivity",
		"-driver", "-path",
		"-biometric-only", "-allow-unencrypted", "-lock-on-background",
	})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	ttl := fs.Int("ttl", int(cfg.QRTTL.Minutes()), "QR validation TTL (minutes)")
	warn := fs.Int("warn", int(cfg.QRExpiryWarning.Minutes()), "QR expiry warning threshold (minutes)")
	fs.IntVar(&cfg.BiometricMaxAttempts, "attempts", cfg.BiometricMaxAttempts, "biometric attempts before QR is forced")
	inactivity := fs.Int("inactivity", int(cfg.InactivityTimeout.Minutes()), "session inactivity timeout (minutes)")
	fs.StringVar(&cfg.StorageDriver, "driver", cfg.StorageDriver, "metadata store driver: sqlite | badger")
	fs.StringVar(&cfg.StoragePath, "path", cfg.StoragePath, "metadata store path")
	fs.BoolVar(&cfg.BiometricOnly, "biometric-only", cfg.BiometricOnly, "run without QR credentials (no storage encryption)")
	fs.BoolVar(&cfg.AllowUnencryptedStorage, "allow-unencrypted", cfg.AllowUnencryptedStorage, "acknowledge unencrypted storage for -biometric-only")
	fs.BoolVar(&cfg.LockOnBackground, "lock-on-background", cfg.LockOnBackground, "lock when the app is backgrounded")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.QRTTL = time.Duration(*ttl) * time.Minute
	cfg.QRExpiryWarning = time.Duration(*warn) * time.Minute
	cfg.InactivityTimeout = time.Duration(*inactivity) * time.Minute
}
