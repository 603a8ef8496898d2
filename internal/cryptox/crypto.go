// Package cryptox implements the cryptographic layer of the vault:
// HKDF-based storage key derivation, AES-256-GCM envelope encryption
// and the hashing helpers used to match QR credentials.
package cryptox

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"github.com/dmitrijs2005/qrvault/internal/common"
	"golang.org/x/crypto/hkdf"
)

const (
	// DeviceKeySize is the required length of the device key released
	// by a successful biometric authentication.
	DeviceKeySize = 32
	// SaltSize is the length of the per-device HKDF salt.
	SaltSize = 16
	// KeySize is the length of the derived AES-256 storage key.
	KeySize = 32
)

// StorageKeyInfo binds derived keys to the vault storage context.
// Changing it invalidates every previously encrypted vault.
const StorageKeyInfo = "qrvault/storage-key/v1"

var (
	ErrInvalidDeviceKey = errors.New("cryptox: device key must be 32 bytes")
	ErrInvalidSalt      = errors.New("cryptox: salt must be 16 bytes")
)

// GenerateDeviceSalt returns a fresh random HKDF salt. The salt is not
// secret; it is persisted next to the vault so the same device key
// always derives the same storage key.
func GenerateDeviceSalt() []byte {
	return common.GenerateRandByteArray(SaltSize)
}

// DeriveStorageKey derives the AES-256 storage key from the device key
// and the persisted salt using HKDF-SHA256.
//
// The derivation is deterministic: the same (deviceKey, salt, info)
// triple always yields the same key, which is what lets the vault be
// decrypted across sessions without the key ever being stored.
//
// Parameters:
//   - deviceKey: the 32-byte key released by biometric authentication.
//   - salt: the 16-byte per-device salt.
//   - info: the context string, normally StorageKeyInfo.
//
// Returns the 32-byte key, or an error if an input has the wrong length.
func DeriveStorageKey(deviceKey, salt []byte, info string) ([]byte, error) {
	if len(deviceKey) != DeviceKeySize {
		return nil, ErrInvalidDeviceKey
	}
	if len(salt) != SaltSize {
		return nil, ErrInvalidSalt
	}

	r := hkdf.New(sha256.New, deviceKey, salt, []byte(info))
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("cryptox: key derivation: %w", err)
	}

	return key, nil
}

// HashBase64 returns the standard-base64 SHA-256 digest of text.
// QR credential keys are persisted and compared in this form only,
// never as plaintext.
func HashBase64(text string) string {
	sum := sha256.Sum256([]byte(text))
	return base64.StdEncoding.EncodeToString(sum[:])
}

// Fingerprint returns the first 8 hex characters of the SHA-256 digest
// of text, safe to show next to an enrollment in status output.
func Fingerprint(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])[:8]
}
