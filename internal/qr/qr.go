// Package qr parses and validates the QR credential payload. The same
// pipeline serves enrollment and re-validation, so both paths get
// identical guarantees about what a payload may contain.
package qr

import (
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/qrvault/internal/cryptox"
	"github.com/dmitrijs2005/qrvault/internal/models"
)

// Version is the only payload schema version this build accepts.
const Version = "1.0"

const (
	pgpBeginMarker = "-----BEGIN PGP PUBLIC KEY BLOCK-----"
	pgpEndMarker   = "-----END PGP PUBLIC KEY BLOCK-----"
)

var (
	ErrInvalidFormat      = errors.New("qr: payload is not valid JSON")
	ErrVersionUnsupported = errors.New("qr: unsupported payload version")
	ErrInvalidSchema      = errors.New("qr: payload failed schema validation")
	ErrExpired            = errors.New("qr: payload has expired")
	ErrKeyMismatch        = errors.New("qr: device key does not match the enrolled credential")
)

// SchemaError lists the fields that failed validation, one message per
// field. It wraps ErrInvalidSchema so errors.Is still matches.
type SchemaError struct {
	Fields []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("qr: payload failed schema validation: %s", strings.Join(e.Fields, "; "))
}

func (e *SchemaError) Unwrap() error { return ErrInvalidSchema }

// Payload is a fully validated QR credential. DeviceKey holds the
// decoded 32 raw bytes; it is never persisted, only its hash is.
type Payload struct {
	Version      string
	DeviceKey    []byte
	PGPPublicKey string
	IssuedAt     time.Time
	ExpiresAt    *time.Time
	Permissions  models.Permissions
}

// KeyHash returns the stored-form SHA-256 hash of the device key,
// computed over its canonical base64 text.
func (p *Payload) KeyHash() string {
	return cryptox.HashBase64(base64.StdEncoding.EncodeToString(p.DeviceKey))
}

// KeyFingerprint returns the short display hash of the device key.
func (p *Payload) KeyFingerprint() string {
	return cryptox.Fingerprint(base64.StdEncoding.EncodeToString(p.DeviceKey))
}

// wirePayload mirrors the JSON shape with pointer fields so missing
// and present-but-invalid values are distinguishable.
type wirePayload struct {
	Version      *string          `json:"version"`
	DeviceKey    *string          `json:"deviceKey"`
	PGPPublicKey *string          `json:"pgpPublicKey"`
	IssuedAt     *string          `json:"issuedAt"`
	ExpiresAt    *string          `json:"expiresAt"`
	Permissions  *wirePermissions `json:"permissions"`
}

type wirePermissions struct {
	CanExport        *bool `json:"canExport"`
	CanDeleteData    *bool `json:"canDeleteData"`
	CanModifyProfile *bool `json:"canModifyProfile"`
}

// Validate runs the five-step pipeline over raw scanned or typed text:
// parse, version gate, schema, expiry, enrolled-key match. Each step is
// terminal; the first failure is returned and later steps never run.
//
// enrolledKeyHash is the stored hash of the currently enrolled device
// key, or empty when no enrollment exists (the match step is skipped
// then; that is the enrollment path). now is injected by the caller
// so expiry is a pure function of the inputs.
func Validate(raw string, enrolledKeyHash string, now time.Time) (*Payload, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, fmt.Errorf("%w: empty input", ErrInvalidFormat)
	}

	var wire wirePayload
	if err := json.Unmarshal([]byte(raw), &wire); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}

	// Version mismatches get their own error before the full schema
	// check, so an old credential reads as "unsupported version" and
	// not as a pile of field errors.
	if wire.Version != nil && *wire.Version != Version {
		return nil, fmt.Errorf("%w: got %q, want %q", ErrVersionUnsupported, *wire.Version, Version)
	}

	payload, fields := validateSchema(&wire)
	if len(fields) > 0 {
		return nil, &SchemaError{Fields: fields}
	}

	if payload.ExpiresAt != nil && !now.Before(*payload.ExpiresAt) {
		return nil, fmt.Errorf("%w: at %s", ErrExpired, payload.ExpiresAt.Format(time.RFC3339))
	}

	if enrolledKeyHash != "" {
		if subtle.ConstantTimeCompare([]byte(payload.KeyHash()), []byte(enrolledKeyHash)) != 1 {
			return nil, ErrKeyMismatch
		}
	}

	return payload, nil
}

// validateSchema checks every field and collects one message per
// failure, so the user sees the whole list instead of fixing fields
// one scan at a time.
func validateSchema(wire *wirePayload) (*Payload, []string) {
	var fields []string
	payload := &Payload{Version: Version}

	if wire.Version == nil {
		fields = append(fields, "version: required")
	}

	switch {
	case wire.DeviceKey == nil:
		fields = append(fields, "deviceKey: required")
	default:
		key, err := base64.StdEncoding.DecodeString(*wire.DeviceKey)
		switch {
		case err != nil:
			fields = append(fields, "deviceKey: not valid base64")
		case len(key) != cryptox.DeviceKeySize:
			fields = append(fields, fmt.Sprintf("deviceKey: must decode to %d bytes, got %d", cryptox.DeviceKeySize, len(key)))
		default:
			payload.DeviceKey = key
		}
	}

	switch {
	case wire.PGPPublicKey == nil:
		fields = append(fields, "pgpPublicKey: required")
	case !strings.Contains(*wire.PGPPublicKey, pgpBeginMarker):
		fields = append(fields, "pgpPublicKey: missing begin marker")
	case !strings.Contains(*wire.PGPPublicKey, pgpEndMarker):
		fields = append(fields, "pgpPublicKey: missing end marker")
	default:
		payload.PGPPublicKey = *wire.PGPPublicKey
	}

	switch {
	case wire.IssuedAt == nil:
		fields = append(fields, "issuedAt: required")
	default:
		t, err := time.Parse(time.RFC3339, *wire.IssuedAt)
		if err != nil {
			fields = append(fields, "issuedAt: not a valid RFC 3339 timestamp")
		} else {
			payload.IssuedAt = t
		}
	}

	if wire.ExpiresAt != nil {
		t, err := time.Parse(time.RFC3339, *wire.ExpiresAt)
		if err != nil {
			fields = append(fields, "expiresAt: not a valid RFC 3339 timestamp")
		} else {
			payload.ExpiresAt = &t
		}
	}

	switch {
	case wire.Permissions == nil:
		fields = append(fields, "permissions: required")
	default:
		complete := true
		if wire.Permissions.CanExport == nil {
			fields = append(fields, "permissions.canExport: required")
			complete = false
		}
		if wire.Permissions.CanDeleteData == nil {
			fields = append(fields, "permissions.canDeleteData: required")
			complete = false
		}
		if wire.Permissions.CanModifyProfile == nil {
			fields = append(fields, "permissions.canModifyProfile: required")
			complete = false
		}
		if complete {
			payload.Permissions = models.Permissions{
				CanExport:        *wire.Permissions.CanExport,
				CanDeleteData:    *wire.Permissions.CanDeleteData,
				CanModifyProfile: *wire.Permissions.CanModifyProfile,
			}
		}
	}

	return payload, fields
}
