package auth

import "time"

// Code classifies an AuthError by origin: biometric, QR, session,
// crypto, or the machine itself.
type Code string

const (
	CodeBiometricNotAvailable     Code = "BIOMETRIC_NOT_AVAILABLE"
	CodeBiometricNotEnrolled      Code = "BIOMETRIC_NOT_ENROLLED"
	CodeBiometricLockout          Code = "BIOMETRIC_LOCKOUT"
	CodeBiometricLockoutPermanent Code = "BIOMETRIC_LOCKOUT_PERMANENT"
	CodeBiometricFailed           Code = "BIOMETRIC_FAILED"

	CodeQRInvalidFormat      Code = "QR_INVALID_FORMAT"
	CodeQRVersionUnsupported Code = "QR_VERSION_UNSUPPORTED"
	CodeQRInvalidSchema      Code = "QR_INVALID_SCHEMA"
	CodeQRExpired            Code = "QR_EXPIRED"
	CodeQRKeyMismatch        Code = "QR_KEY_MISMATCH"
	CodeQRScanFailed         Code = "QR_SCAN_FAILED"

	CodeSessionExpired Code = "SESSION_EXPIRED"
	CodeSessionInvalid Code = "SESSION_INVALID"

	CodeEncryptionFailed    Code = "ENCRYPTION_FAILED"
	CodeDecryptionFailed    Code = "DECRYPTION_FAILED"
	CodeIntegrityFailed     Code = "INTEGRITY_FAILED"
	CodeKeyDerivationFailed Code = "KEY_DERIVATION_FAILED"

	CodeStorageFailed  Code = "STORAGE_FAILED"
	CodeCancelled      Code = "CANCELLED"
	CodeAuthBusy       Code = "AUTH_BUSY"
	CodeInvalidState   Code = "INVALID_STATE"
	CodeBypassDisabled Code = "AUTH_BYPASS_DISABLED"
	CodeUnknown        Code = "UNKNOWN"
)

// AuthError is the structured failure carried inside a Result. It is
// transient: replaced or cleared, never accumulated. Every error the
// machine produces is recoverable; there is no terminal failure state
// reachable through normal flow.
type AuthError struct {
	Code        Code      `json:"code"`
	Message     string    `json:"message"`
	Recoverable bool      `json:"recoverable"`
	Timestamp   time.Time `json:"timestamp"`

	// Details carries field-level messages for schema failures.
	Details []string `json:"details,omitempty"`
}

func (e *AuthError) Error() string {
	return string(e.Code) + ": " + e.Message
}

// Result is what every machine action returns. Failure travels in Err
// rather than as a Go error so UI layers render states without
// unwrapping anything. State is the machine state after the action.
type Result struct {
	Success bool
	State   State
	Err     *AuthError
}
