// Package config loads runtime configuration for the qrvault CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file (see parseJson) selected via flags: -c or -config.
//  3. Command-line flags (see parseFlags), which override earlier values.
//
// Supported flags
//
//	-ttl int                 QR validation TTL (minutes)
//	-warn int                QR expiry warning threshold (minutes)
//	-attempts int            biometric attempts before QR is forced
//	-inactivity int          session inactivity timeout (minutes)
//	-driver string           metadata store driver: sqlite | badger
//	-path string             metadata store path (sqlite file or badger dir)
//	-biometric-only          run without QR credentials (no storage encryption)
//	-allow-unencrypted       required acknowledgement for -biometric-only
//	-lock-on-background      lock when the app is backgrounded (default true)
//
// # JSON schema
//
// The JSON loader uses timex.Duration for intervals, so values can be either
// strings like "30m" or integer nanoseconds:
//
//	{
//	  "qr_ttl": "30m",
//	  "qr_expiry_warning": "5m",
//	  "biometric_max_attempts": 5,
//	  "session_inactivity_timeout": "5m",
//	  "lock_on_background": true,
//	  "kdf_info": "qrvault/storage-key/v1",
//	  "storage_driver": "sqlite",
//	  "storage_path": "qrvault.db",
//	  "biometric_only": false,
//	  "allow_unencrypted_storage": false
//	}
//
// Fields absent from the JSON file keep their earlier values; every field in
// the DTO is a pointer so absence and zero are distinguishable.
//
// Primary API
//
//   - type Config                     — all tunable gate constants
//   - func LoadConfig() *Config       — builds Config by applying defaults, JSON, then flags
//   - func (*Config) LoadDefaults()   — sets sensible defaults
//
// Note: This package does not read environment variables directly; use the
// JSON file or flags to configure values.
package config
