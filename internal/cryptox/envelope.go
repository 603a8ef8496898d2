package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/qrvault/internal/common"
)

const (
	// EnvelopeVersion is the current envelope format version.
	EnvelopeVersion = 1
	// AlgorithmAESGCM identifies the only supported cipher.
	AlgorithmAESGCM = "AES-256-GCM"

	ivSize = 12
)

var (
	// ErrIntegrityFailed is returned when an envelope fails GCM
	// authentication: wrong key, tampered ciphertext or tampered IV.
	// It is kept distinct from other errors so callers can report
	// possible data corruption instead of a generic failure.
	ErrIntegrityFailed = errors.New("cryptox: integrity check failed")

	ErrVersionUnsupported   = errors.New("cryptox: unsupported envelope version")
	ErrAlgorithmUnsupported = errors.New("cryptox: unsupported algorithm")
	ErrInvalidKey           = errors.New("cryptox: storage key must be 32 bytes")
)

// Envelope is the serialized form of an encrypted payload. The GCM
// authentication tag travels embedded at the end of Ciphertext.
type Envelope struct {
	Version    int    `json:"version"`
	Algorithm  string `json:"algorithm"`
	IV         string `json:"iv"`
	Ciphertext string `json:"ciphertext"`
}

// Encrypt seals plaintext under key using AES-256-GCM.
//
// A fresh random 12-byte IV is generated on every call, so encrypting
// the same plaintext twice yields different envelopes.
func Encrypt(plaintext, key []byte) (*Envelope, error) {
	aesgcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	iv := common.GenerateRandByteArray(ivSize)
	ciphertext := aesgcm.Seal(nil, iv, plaintext, nil)

	return &Envelope{
		Version:    EnvelopeVersion,
		Algorithm:  AlgorithmAESGCM,
		IV:         base64.StdEncoding.EncodeToString(iv),
		Ciphertext: base64.StdEncoding.EncodeToString(ciphertext),
	}, nil
}

// Decrypt opens the envelope with key. Envelopes carrying an unknown
// format version or cipher are rejected before any decryption is
// attempted. Every authentication failure, including malformed base64
// fields, returns ErrIntegrityFailed.
func Decrypt(env *Envelope, key []byte) ([]byte, error) {
	if env.Version != EnvelopeVersion {
		return nil, fmt.Errorf("%w: %d", ErrVersionUnsupported, env.Version)
	}
	if env.Algorithm != AlgorithmAESGCM {
		return nil, fmt.Errorf("%w: %q", ErrAlgorithmUnsupported, env.Algorithm)
	}

	aesgcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	iv, err := base64.StdEncoding.DecodeString(env.IV)
	if err != nil || len(iv) != aesgcm.NonceSize() {
		return nil, ErrIntegrityFailed
	}

	ciphertext, err := base64.StdEncoding.DecodeString(env.Ciphertext)
	if err != nil {
		return nil, ErrIntegrityFailed
	}

	plaintext, err := aesgcm.Open(nil, iv, ciphertext, nil)
	if err != nil {
		return nil, ErrIntegrityFailed
	}

	return plaintext, nil
}

// ReEncrypt re-seals an envelope under a new key, used when rotating
// the QR credential. Decrypt errors pass through unchanged so the
// caller can tell an integrity failure from a key error.
func ReEncrypt(env *Envelope, oldKey, newKey []byte) (*Envelope, error) {
	plaintext, err := Decrypt(env, oldKey)
	if err != nil {
		return nil, err
	}
	defer common.WipeByteArray(plaintext)

	return Encrypt(plaintext, newKey)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, ErrInvalidKey
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("cryptox: %w", err)
	}

	return cipher.NewGCM(block)
}
