// Package models defines the records the auth gate persists and the
// in-memory session it maintains while the vault is unlocked.
package models

import "time"

// Permissions are the grants carried by a QR credential. They are
// copied from the payload at enrollment time and never widened by a
// later validation.
type Permissions struct {
	CanExport        bool `json:"canExport"`
	CanDeleteData    bool `json:"canDeleteData"`
	CanModifyProfile bool `json:"canModifyProfile"`
}

// QREnrollment is the persisted record of the enrolled QR credential.
// Only the hash and fingerprint of the device key are stored; the key
// itself never touches disk. Immutable until unenrollment deletes it.
type QREnrollment struct {
	EnrolledAt     time.Time   `json:"enrolledAt"`
	KeyFingerprint string      `json:"keyFingerprint"`
	KeyHash        string      `json:"keyHash"`
	Permissions    Permissions `json:"permissions"`
	PGPPublicKey   string      `json:"pgpPublicKey"`
}

// QRValidation is the persisted record of the most recent successful
// QR validation. Its ExpiresAt drives the TTL countdown.
type QRValidation struct {
	ValidatedAt time.Time `json:"validatedAt"`
	QRHash      string    `json:"qrHash"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// BiometricType classifies the factor backing a biometric credential.
type BiometricType string

const (
	BiometricTypeFingerprint BiometricType = "fingerprint"
	BiometricTypeFace        BiometricType = "face"
	BiometricTypeIris        BiometricType = "iris"
	BiometricTypeUnknown     BiometricType = "unknown"
)

// BiometricCredential is the persisted record of the enrolled
// biometric factor. LastUsed is updated on every successful
// authentication.
type BiometricCredential struct {
	ID         string        `json:"id"`
	Type       BiometricType `json:"type"`
	EnrolledAt time.Time     `json:"enrolledAt"`
	LastUsed   *time.Time    `json:"lastUsed,omitempty"`
	Platform   string        `json:"platform"`
}

// AuthMethod names the factor combination that produced an unlock.
type AuthMethod string

const (
	AuthMethodBiometric AuthMethod = "biometric"
	AuthMethodQR        AuthMethod = "qr"
	AuthMethodCombined  AuthMethod = "combined"
)

// Session describes one unlocked period. It lives in memory only and
// is dropped on every lock; the persisted session timestamps in the
// metadata store are best-effort copies, not the source of truth.
type Session struct {
	ID                   string
	StartedAt            time.Time
	LastActivity         time.Time
	Method               AuthMethod
	BiometricValidatedAt *time.Time
	QRValidatedAt        *time.Time
}

// VaultStore is the decrypted shape of the vault payload: named text
// entries. It exists to exercise the encryption envelope end to end;
// richer record types stay out of the auth gate.
type VaultStore struct {
	Entries map[string]string `json:"entries"`
}

// NewVaultStore returns an empty store ready for puts.
func NewVaultStore() *VaultStore {
	return &VaultStore{Entries: make(map[string]string)}
}
