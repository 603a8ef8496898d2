package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/qrvault/internal/flagx"
	"github.com/dmitrijs2005/qrvault/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. It
// relies on timex.Duration so intervals can be strings like "30m" or
// integer nanoseconds. Every field is a pointer: only keys present in
// the file overwrite the running Config.
type JsonConfig struct {
	QRTTL                   *timex.Duration `json:"qr_ttl"`
	QRExpiryWarning         *timex.Duration `json:"qr_expiry_warning"`
	BiometricMaxAttempts    *int            `json:"biometric_max_attempts"`
	InactivityTimeout       *timex.Duration `json:"session_inactivity_timeout"`
	LockOnBackground        *bool           `json:"lock_on_background"`
	KDFInfo                 *string         `json:"kdf_info"`
	StorageDriver           *string         `json:"storage_driver"`
	StoragePath             *string         `json:"storage_path"`
	BiometricOnly           *bool           `json:"biometric_only"`
	AllowUnencryptedStorage *bool           `json:"allow_unencrypted_storage"`
}

// parseJson overlays Config with values loaded from a JSON file.
//
// Lookup order for the JSON file path:
//  1. Command-line flags (-c or -config) via flagx.JsonConfigFlags().
//  2. If empty, no JSON is loaded and the function returns.
//
// Panics on read or unmarshal errors (caller should recover if desired).
// Intended usage is: defaults -> parseJson -> parseFlags, where later
// stages override earlier ones.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	if jc.QRTTL != nil {
		cfg.QRTTL = jc.QRTTL.Duration
	}
	if jc.QRExpiryWarning != nil {
		cfg.QRExpiryWarning = jc.QRExpiryWarning.Duration
	}
	if jc.BiometricMaxAttempts != nil {
		cfg.BiometricMaxAttempts = *jc.BiometricMaxAttempts
	}
	if jc.InactivityTimeout != nil {
		cfg.InactivityTimeout = jc.InactivityTimeout.Duration
	}
	if jc.LockOnBackground != nil {
		cfg.LockOnBackground = *jc.LockOnBackground
	}
	if jc.KDFInfo != nil {
		cfg.KDFInfo = *jc.KDFInfo
	}
	if jc.StorageDriver != nil {
		cfg.StorageDriver = *jc.StorageDriver
	}
	if jc.StoragePath != nil {
		cfg.StoragePath = *jc.StoragePath
	}
	if jc.BiometricOnly != nil {
		cfg.BiometricOnly = *jc.BiometricOnly
	}
	if jc.AllowUnencryptedStorage != nil {
		cfg.AllowUnencryptedStorage = *jc.AllowUnencryptedStorage
	}
}
