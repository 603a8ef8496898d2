// Package biometric adapts platform authentication to the single
// contract the state machine depends on: query capability, run one
// challenge, cancel. Two backends exist, native fingerprint readers
// via fprintd and an Ed25519 challenge fallback for platforms without
// them, selected once at startup by Detect.
package biometric

import (
	"context"
	"time"

	"github.com/dmitrijs2005/qrvault/internal/clock"
	"github.com/dmitrijs2005/qrvault/internal/logging"
	"github.com/dmitrijs2005/qrvault/internal/models"
	"github.com/dmitrijs2005/qrvault/internal/repositories/metadata"
)

// ErrorCode classifies a failed capability query or authentication.
type ErrorCode string

const (
	CodeNotAvailable     ErrorCode = "BIOMETRIC_NOT_AVAILABLE"
	CodeNotEnrolled      ErrorCode = "BIOMETRIC_NOT_ENROLLED"
	CodeLockoutTemporary ErrorCode = "BIOMETRIC_LOCKOUT"
	CodeLockoutPermanent ErrorCode = "BIOMETRIC_LOCKOUT_PERMANENT"
	CodeCancelled        ErrorCode = "BIOMETRIC_CANCELLED"
	CodeFailed           ErrorCode = "BIOMETRIC_FAILED"
)

// Capability describes what the backend can do right now.
type Capability struct {
	Available bool
	Enrolled  bool
	Type      models.BiometricType
	ErrorCode ErrorCode
}

// AuthResult is the outcome of one authentication challenge. Failure
// travels in ErrorCode/ErrorMessage, never as a Go error: the state
// machine renders results, it does not unwrap them.
type AuthResult struct {
	Success      bool
	Type         models.BiometricType
	ErrorCode    ErrorCode
	ErrorMessage string
	Timestamp    time.Time
}

// Authenticator is the contract the auth core consumes. At most one
// Authenticate call is in flight at a time; the machine enforces that
// with its own guard. Cancel aborts a pending challenge, which then
// reports CodeCancelled.
type Authenticator interface {
	Capability(ctx context.Context) Capability
	Authenticate(ctx context.Context, prompt string) *AuthResult
	Cancel()
}

// Detect selects the backend once at startup: native when an fprintd
// installation is usable, otherwise the challenge fallback. Call sites
// never branch on platform again after this.
func Detect(ctx context.Context, repo metadata.Repository, log logging.Logger, clk clock.Clock) Authenticator {
	native := NewNative(clk)
	if cap := native.Capability(ctx); cap.Available {
		log.Info(ctx, "biometric backend selected", "backend", "native", "type", cap.Type, "enrolled", cap.Enrolled)
		return native
	}

	log.Info(ctx, "biometric backend selected", "backend", "challenge")
	return NewChallenge(repo, clk)
}
