// Package common contains shared constants, sentinel errors and small
// helpers used across qrvault components: the logical key names of the
// persisted metadata entries, secure random generation, and secure
// memory wiping.
package common

import (
	"crypto/rand"
	"encoding/hex"
)

// Logical keys of the persisted metadata entries. Every durable piece of
// gate state lives in the key-value metadata store under one of these
// names; nothing else in the store belongs to the auth core.
const (
	// KeyEnrollmentStatus is a presence flag: the device counts as
	// enrolled iff this key exists.
	KeyEnrollmentStatus = "enrollment_status"

	// KeyQREnrollment holds the serialized models.QREnrollment record.
	KeyQREnrollment = "qr_enrollment"

	// KeyBiometricCredential holds the serialized models.BiometricCredential.
	KeyBiometricCredential = "biometric_credential"

	// KeyLastQRValidation holds the serialized models.QRValidation record
	// ({validatedAt, qrHash, expiresAt}) written on every successful QR check.
	KeyLastQRValidation = "last_qr_validation"

	// KeyDeviceSalt holds the base64 of the 16-byte device salt. The salt
	// is not secret; persisting it lets the storage key be re-derived
	// after every restart without ever persisting the key itself.
	KeyDeviceSalt = "device_salt"

	// KeySessionStartedAt / KeySessionLastActivity hold best-effort ISO
	// timestamps of the current session. Not security-critical.
	KeySessionStartedAt    = "session_started_at"
	KeySessionLastActivity = "session_last_activity"

	// KeyChallengeKeypair holds the fallback authenticator's Ed25519
	// keypair for platforms without native biometrics.
	KeyChallengeKeypair = "challenge_keypair"

	// KeyVaultStore holds the encrypted vault payload: a cryptox.Envelope
	// wrapping the serialized entry map.
	KeyVaultStore = "vault_store"
)

// GenerateRandByteArray returns size cryptographically random bytes.
// It panics if the platform's secure random source fails, which is
// not a recoverable condition for a vault.
func GenerateRandByteArray(size int) []byte {
	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return b
}

// MakeRandHexString generates a random hexadecimal string of the given size.
// The size parameter specifies the number of random bytes to generate before
// encoding them as a hexadecimal string, so the final string length is twice
// the size. It returns an error if the random number generator fails.
func MakeRandHexString(size int) (string, error) {
	b := make([]byte, size)
	_, err := rand.Read(b)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// WipeByteArray overwrites the contents of the provided byte slice with zeros.
// This is useful for removing sensitive data such as device keys or derived
// key material from memory after use.
//
// If the slice is nil, the function does nothing.
func WipeByteArray(b []byte) {
	if b == nil {
		return
	}
	for i := range b {
		b[i] = 0
	}
}
