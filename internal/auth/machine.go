// Package auth implements the vault's gate: a state machine that
// orchestrates biometric challenges, QR credential validation and the
// key/session manager into the enrollment and unlock/lock lifecycle.
//
// The Machine is the only component that transitions auth state. Every
// externally triggered action is a single atomic transition: a mutex
// serializes them, so a second action observes either the state before
// or the state after another action, never a partial update. Blocking
// biometric prompts release the mutex for their duration and are
// bounded to one in flight by a guard flag.
//
// The TTL countdown is a one-second ticker alive only while unlocked.
// It re-checks the QR validation window and the inactivity timeout;
// expiry forces the machine back to qr_pending and wipes the key,
// inactivity locks the vault. The ticker is stopped on every
// transition away from unlocked and Close waits for it, so a torn-down
// machine leaves no orphaned timers.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/qrvault/internal/biometric"
	"github.com/dmitrijs2005/qrvault/internal/clock"
	"github.com/dmitrijs2005/qrvault/internal/common"
	"github.com/dmitrijs2005/qrvault/internal/config"
	"github.com/dmitrijs2005/qrvault/internal/logging"
	"github.com/dmitrijs2005/qrvault/internal/models"
	"github.com/dmitrijs2005/qrvault/internal/qr"
	"github.com/dmitrijs2005/qrvault/internal/repositories/metadata"
	"github.com/dmitrijs2005/qrvault/internal/session"
)

const (
	ttlTickInterval = time.Second

	promptUnlock = "Unlock your vault"
	promptEnroll = "Confirm your biometric to finish enrollment"
)

// enrolledFlag is the value stored under KeyEnrollmentStatus. Only the
// key's presence matters.
var enrolledFlag = []byte("enrolled")

// Machine owns the auth state and every transition of it. Construct
// one per application root and hand it to consumers by reference; all
// mutation goes through the action methods.
type Machine struct {
	cfg  *config.Config
	repo metadata.Repository
	bio  biometric.Authenticator
	sess *session.Manager
	clk  clock.Clock
	log  logging.Logger

	// mu protects every field below. Actions hold it for their whole
	// transition except across blocking biometric prompts.
	mu      sync.Mutex
	state   State
	lastErr *AuthError
	closed  bool

	// enrollment caches the persisted QR enrollment record; nil in
	// biometric-only mode and before enrollment.
	enrollment *models.QREnrollment
	enrolled   bool

	// bioFailures counts consecutive failed challenges since the last
	// success. Not persisted; at BiometricMaxAttempts the machine
	// forces qr_pending instead of another retry.
	bioFailures int

	// bioInFlight suppresses a second biometric prompt while one is
	// pending, so an app-entry auto-trigger can never double-invoke
	// the platform prompt.
	bioInFlight bool

	// bioOKAt / qrOKAt record which factors passed in the current
	// unlock cycle; finalizeUnlock copies them into the session.
	bioOKAt time.Time
	qrOKAt  time.Time

	// tickCancel stops the TTL goroutine; tickDone is closed when it
	// has exited.
	tickCancel context.CancelFunc
	tickDone   chan struct{}
}

// NewMachine wires the gate together. In biometric-only mode there is
// no device key to derive a storage key from, so local data stays
// unencrypted; the constructor refuses that mode unless the
// configuration acknowledges it explicitly.
func NewMachine(cfg *config.Config, repo metadata.Repository, authenticator biometric.Authenticator, sessions *session.Manager, clk clock.Clock, log logging.Logger) (*Machine, error) {
	if cfg.BiometricOnly && !cfg.AllowUnencryptedStorage {
		return nil, errors.New("auth: biometric-only mode leaves the vault unencrypted; set allow_unencrypted_storage to accept that")
	}

	return &Machine{
		cfg:   cfg,
		repo:  repo,
		bio:   authenticator,
		sess:  sessions,
		clk:   clk,
		log:   log,
		state: StateInitializing,
	}, nil
}

// Initialize looks up the persisted enrollment and routes to enrolling
// or biometric_pending. On a storage failure the machine stays in
// initializing so the caller can retry.
func (m *Machine) Initialize(ctx context.Context) Result {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return m.failLocked(m.newError(CodeInvalidState, "machine is closed"))
	}
	if m.state != StateInitializing {
		return m.failLocked(m.newError(CodeInvalidState, "already initialized"))
	}

	flag, err := m.repo.Get(ctx, common.KeyEnrollmentStatus)
	if err != nil {
		return m.failLocked(m.newError(CodeStorageFailed, "failed to read enrollment status: "+err.Error()))
	}

	m.enrolled = flag != nil
	m.enrollment = nil

	if m.enrolled && !m.cfg.BiometricOnly {
		raw, err := m.repo.Get(ctx, common.KeyQREnrollment)
		if err != nil {
			m.enrolled = false
			return m.failLocked(m.newError(CodeStorageFailed, "failed to read qr enrollment: "+err.Error()))
		}
		if raw == nil {
			// Status flag without the record: a partial enrollment.
			// Treat the device as unenrolled and start over.
			m.log.Warn(ctx, "enrollment flag present without qr enrollment record, re-enrolling")
			m.enrolled = false
		} else {
			var enrollment models.QREnrollment
			if err := json.Unmarshal(raw, &enrollment); err != nil {
				m.enrolled = false
				return m.failLocked(m.newError(CodeStorageFailed, "failed to decode qr enrollment: "+err.Error()))
			}
			m.enrollment = &enrollment
		}
	}

	if m.enrolled {
		m.setStateLocked(ctx, StateBiometricPending)
	} else {
		m.setStateLocked(ctx, StateEnrolling)
	}

	m.log.Info(ctx, "auth initialized", "enrolled", m.enrolled, "state", m.state)
	return m.okLocked()
}

// EnrollQR runs the QR step of enrollment: validate the scanned
// payload, persist the enrollment record, derive the storage key and
// start the TTL window. When the platform has no usable biometric the
// enrollment completes immediately with QR as the only gate; otherwise
// the machine stays in enrolling for the biometric step.
//
// In biometric-only mode this is a no-op that always succeeds.
func (m *Machine) EnrollQR(ctx context.Context, raw string) Result {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return m.failLocked(m.newError(CodeInvalidState, "machine is closed"))
	}
	if m.state != StateEnrolling {
		return m.failLocked(m.newError(CodeInvalidState, "qr enrollment is only possible while enrolling"))
	}
	if m.cfg.BiometricOnly {
		return m.okLocked()
	}

	now := m.clk.Now()
	payload, err := qr.Validate(raw, "", now)
	if err != nil {
		authErr := m.qrAuthError(err)
		m.lastErr = authErr
		m.log.Warn(ctx, "qr enrollment rejected", "code", authErr.Code)
		return m.failLocked(authErr)
	}

	if authErr := m.enrollFromPayloadLocked(ctx, payload, now); authErr != nil {
		m.lastErr = authErr
		return m.failLocked(authErr)
	}

	m.log.Info(ctx, "qr credential enrolled", "fingerprint", m.enrollment.KeyFingerprint)

	if capability := m.bio.Capability(ctx); !capability.Available {
		m.log.Info(ctx, "biometric unavailable, completing enrollment with qr only")
		return m.finalizeUnlockLocked(ctx, models.AuthMethodQR)
	}
	return m.okLocked()
}

// enrollFromPayloadLocked persists the enrollment derived from a
// validated payload, derives the storage key and records the first
// validation. Caller holds mu.
func (m *Machine) enrollFromPayloadLocked(ctx context.Context, payload *qr.Payload, now time.Time) *AuthError {
	enrollment := &models.QREnrollment{
		EnrolledAt:     now,
		KeyFingerprint: payload.KeyFingerprint(),
		KeyHash:        payload.KeyHash(),
		Permissions:    payload.Permissions,
		PGPPublicKey:   payload.PGPPublicKey,
	}

	b, err := json.Marshal(enrollment)
	if err != nil {
		return m.newError(CodeStorageFailed, "failed to encode enrollment: "+err.Error())
	}
	if err := m.repo.Set(ctx, common.KeyQREnrollment, b); err != nil {
		return m.newError(CodeStorageFailed, "failed to persist enrollment: "+err.Error())
	}
	if err := m.repo.Set(ctx, common.KeyEnrollmentStatus, enrolledFlag); err != nil {
		return m.newError(CodeStorageFailed, "failed to persist enrollment status: "+err.Error())
	}

	if err := m.sess.DeriveAndStoreKey(ctx, payload); err != nil {
		return m.newError(CodeKeyDerivationFailed, "failed to derive storage key: "+err.Error())
	}
	if err := m.sess.RecordQRValidation(ctx, payload, now); err != nil {
		return m.newError(CodeStorageFailed, "failed to record qr validation: "+err.Error())
	}

	m.enrollment = enrollment
	m.enrolled = true
	m.qrOKAt = now
	return nil
}

// EnrollBiometric binds a biometric credential to the device and
// completes enrollment. In the combined mode the QR step must have
// succeeded first, because the storage key comes from the QR device
// key; biometric is a gate, not a key source.
func (m *Machine) EnrollBiometric(ctx context.Context) Result {
	m.mu.Lock()

	if m.closed {
		defer m.mu.Unlock()
		return m.failLocked(m.newError(CodeInvalidState, "machine is closed"))
	}
	if m.state != StateEnrolling {
		defer m.mu.Unlock()
		return m.failLocked(m.newError(CodeInvalidState, "biometric enrollment is only possible while enrolling"))
	}
	if !m.cfg.BiometricOnly && m.enrollment == nil {
		defer m.mu.Unlock()
		return m.failLocked(m.newError(CodeInvalidState, "scan the qr credential before enrolling a biometric"))
	}
	if m.bioInFlight {
		defer m.mu.Unlock()
		return m.failLocked(m.newError(CodeAuthBusy, "a biometric prompt is already in progress"))
	}
	m.bioInFlight = true
	prior := m.state
	m.mu.Unlock()

	capability := m.bio.Capability(ctx)
	var res *biometric.AuthResult
	if capability.Available {
		res = m.bio.Authenticate(ctx, promptEnroll)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.bioInFlight = false

	if m.closed || m.state != prior {
		return m.failLocked(m.newError(CodeCancelled, "superseded by another transition"))
	}

	if !capability.Available {
		authErr := m.capabilityError(capability)
		m.lastErr = authErr
		return m.failLocked(authErr)
	}
	if res.ErrorCode == biometric.CodeCancelled {
		return m.failLocked(m.newError(CodeCancelled, "biometric enrollment cancelled"))
	}
	if !res.Success {
		authErr := m.newError(biometricCode(res.ErrorCode), res.ErrorMessage)
		m.lastErr = authErr
		m.log.Warn(ctx, "biometric enrollment failed", "code", authErr.Code)
		return m.failLocked(authErr)
	}

	now := m.clk.Now()
	credential := &models.BiometricCredential{
		ID:         uuid.New().String(),
		Type:       res.Type,
		EnrolledAt: now,
		Platform:   runtime.GOOS,
	}
	b, err := json.Marshal(credential)
	if err != nil {
		authErr := m.newError(CodeStorageFailed, "failed to encode biometric credential: "+err.Error())
		m.lastErr = authErr
		return m.failLocked(authErr)
	}
	if err := m.repo.Set(ctx, common.KeyBiometricCredential, b); err != nil {
		authErr := m.newError(CodeStorageFailed, "failed to persist biometric credential: "+err.Error())
		m.lastErr = authErr
		return m.failLocked(authErr)
	}

	method := models.AuthMethodCombined
	if m.cfg.BiometricOnly {
		if err := m.repo.Set(ctx, common.KeyEnrollmentStatus, enrolledFlag); err != nil {
			authErr := m.newError(CodeStorageFailed, "failed to persist enrollment status: "+err.Error())
			m.lastErr = authErr
			return m.failLocked(authErr)
		}
		m.enrolled = true
		method = models.AuthMethodBiometric
	}

	m.bioOKAt = now
	m.log.Info(ctx, "biometric credential enrolled", "type", credential.Type)
	return m.finalizeUnlockLocked(ctx, method)
}

// RequestBiometric runs one biometric challenge to open the vault.
// On success the QR validation window decides the destination: still
// valid and the key still held, the vault unlocks; lapsed, the machine
// moves to qr_pending for a rescan. On failure the machine enters the
// error state, except that reaching the max-attempt count with a QR
// enrollment present forces qr_pending instead. Cancellation restores
// the state the action started from.
func (m *Machine) RequestBiometric(ctx context.Context) Result {
	m.mu.Lock()

	if m.closed {
		defer m.mu.Unlock()
		return m.failLocked(m.newError(CodeInvalidState, "machine is closed"))
	}
	if m.state != StateBiometricPending && m.state != StateLocked {
		defer m.mu.Unlock()
		return m.failLocked(m.newError(CodeInvalidState, "no biometric challenge is expected in state "+string(m.state)))
	}
	if m.bioInFlight {
		defer m.mu.Unlock()
		return m.failLocked(m.newError(CodeAuthBusy, "a biometric prompt is already in progress"))
	}
	m.bioInFlight = true
	prior := m.state
	m.mu.Unlock()

	capability := m.bio.Capability(ctx)
	var res *biometric.AuthResult
	if capability.Available {
		res = m.bio.Authenticate(ctx, promptUnlock)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.bioInFlight = false

	if m.closed || m.state != prior {
		return m.failLocked(m.newError(CodeCancelled, "superseded by another transition"))
	}

	if !capability.Available {
		authErr := m.capabilityError(capability)
		m.lastErr = authErr
		if m.enrollment != nil {
			// The QR factor can still gate the vault on its own.
			m.log.Warn(ctx, "biometric unavailable, falling back to qr validation")
			m.setStateLocked(ctx, StateQRPending)
		} else {
			m.setStateLocked(ctx, StateError)
		}
		return m.failLocked(authErr)
	}

	if res.ErrorCode == biometric.CodeCancelled {
		return m.failLocked(m.newError(CodeCancelled, "biometric authentication cancelled"))
	}

	if !res.Success {
		m.bioFailures++
		authErr := m.newError(biometricCode(res.ErrorCode), res.ErrorMessage)
		m.lastErr = authErr
		m.log.Warn(ctx, "biometric authentication failed", "code", authErr.Code, "failures", m.bioFailures)
		if m.bioFailures >= m.cfg.BiometricMaxAttempts && m.enrollment != nil {
			m.log.Info(ctx, "max biometric attempts reached, requiring qr validation")
			m.setStateLocked(ctx, StateQRPending)
		} else {
			m.setStateLocked(ctx, StateError)
		}
		return m.failLocked(authErr)
	}

	now := m.clk.Now()
	m.bioFailures = 0
	m.bioOKAt = now
	m.touchBiometricCredentialLocked(ctx, now)

	if m.cfg.BiometricOnly {
		return m.finalizeUnlockLocked(ctx, models.AuthMethodBiometric)
	}

	expired, err := m.sess.CheckQRTTL(ctx, now)
	if err != nil {
		m.log.Warn(ctx, "qr ttl check failed, requiring re-validation", "error", err)
		expired = true
	}
	if expired || m.sess.Key() == nil {
		// Biometric passed but the QR factor needs refreshing; the
		// key (if any survived a plain lock) must not outlive it.
		m.setStateLocked(ctx, StateQRPending)
		return Result{Success: true, State: m.state}
	}

	return m.finalizeUnlockLocked(ctx, models.AuthMethodCombined)
}

// CancelBiometric aborts a pending biometric prompt. The in-flight
// action then returns CANCELLED with its starting state intact.
func (m *Machine) CancelBiometric() {
	m.bio.Cancel()
}

// ValidateQR checks a scanned credential against the enrolled one and,
// from qr_pending, unlocks the vault. While unlocked it acts as a
// proactive refresh: the TTL window restarts without a new session.
// Key mismatches and integrity signals are reported, never retried
// automatically.
//
// In biometric-only mode this is a no-op that always succeeds.
func (m *Machine) ValidateQR(ctx context.Context, raw string) Result {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return m.failLocked(m.newError(CodeInvalidState, "machine is closed"))
	}
	if m.state != StateQRPending && m.state != StateUnlocked {
		return m.failLocked(m.newError(CodeInvalidState, "no qr validation is expected in state "+string(m.state)))
	}
	if m.cfg.BiometricOnly {
		return m.okLocked()
	}

	enrolledHash := ""
	if m.enrollment != nil {
		enrolledHash = m.enrollment.KeyHash
	}

	now := m.clk.Now()
	payload, err := qr.Validate(raw, enrolledHash, now)
	if err != nil {
		authErr := m.qrAuthError(err)
		m.lastErr = authErr
		m.log.Warn(ctx, "qr validation rejected", "code", authErr.Code)
		return m.failLocked(authErr)
	}

	if err := m.sess.DeriveAndStoreKey(ctx, payload); err != nil {
		authErr := m.newError(CodeKeyDerivationFailed, "failed to derive storage key: "+err.Error())
		m.lastErr = authErr
		return m.failLocked(authErr)
	}
	if err := m.sess.RecordQRValidation(ctx, payload, now); err != nil {
		m.sess.ClearKey()
		authErr := m.newError(CodeStorageFailed, "failed to record qr validation: "+err.Error())
		m.lastErr = authErr
		return m.failLocked(authErr)
	}

	m.qrOKAt = now

	if m.state == StateUnlocked {
		m.lastErr = nil
		m.sess.TouchActivity(ctx, now)
		if s := m.sess.Session(); s != nil {
			t := now
			s.QRValidatedAt = &t
		}
		m.log.Info(ctx, "qr validation refreshed", "remaining_seconds", m.sess.RemainingSeconds())
		return m.okLocked()
	}

	method := models.AuthMethodQR
	if !m.bioOKAt.IsZero() {
		method = models.AuthMethodCombined
	}
	return m.finalizeUnlockLocked(ctx, method)
}

// Lock closes the vault. The session is destroyed; the derived key
// stays in its locked buffer so a biometric pass inside the QR window
// can reopen the vault without a rescan. Locking an already locked
// vault is a no-op.
func (m *Machine) Lock(ctx context.Context) Result {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.state {
	case StateUnlocked:
		m.setStateLocked(ctx, StateLocked)
		m.log.Info(ctx, "vault locked")
		return m.okLocked()
	case StateLocked:
		return m.okLocked()
	default:
		return m.failLocked(m.newError(CodeInvalidState, "nothing to lock in state "+string(m.state)))
	}
}

// Unenroll deletes the enrollment, the biometric credential and every
// session trace, wipes the key and returns the machine to enrolling.
// The device salt survives: it is per-device, not per-enrollment.
func (m *Machine) Unenroll(ctx context.Context) Result {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return m.failLocked(m.newError(CodeInvalidState, "machine is closed"))
	}
	if m.state == StateInitializing {
		return m.failLocked(m.newError(CodeInvalidState, "initialize before unenrolling"))
	}

	for _, key := range []string{
		common.KeyEnrollmentStatus,
		common.KeyQREnrollment,
		common.KeyBiometricCredential,
		common.KeyLastQRValidation,
		common.KeySessionStartedAt,
		common.KeySessionLastActivity,
	} {
		if err := m.repo.Delete(ctx, key); err != nil {
			authErr := m.newError(CodeStorageFailed, "failed to delete "+key+": "+err.Error())
			m.lastErr = authErr
			return m.failLocked(authErr)
		}
	}

	m.enrollment = nil
	m.enrolled = false
	m.bioFailures = 0
	m.lastErr = nil
	m.bioOKAt = time.Time{}
	m.qrOKAt = time.Time{}
	m.sess.ClearKey()
	m.sess.ClearSession()
	m.setStateLocked(ctx, StateEnrolling)

	m.log.Info(ctx, "device unenrolled")
	return m.okLocked()
}

// ClearError acknowledges the last failure. From the error state the
// machine routes back into the flow: biometric_pending when enrolled,
// enrolling otherwise. In any other state only the stored error is
// dropped.
func (m *Machine) ClearError(ctx context.Context) Result {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.lastErr = nil
	if m.state == StateError {
		if m.enrolled {
			m.setStateLocked(ctx, StateBiometricPending)
		} else {
			m.setStateLocked(ctx, StateEnrolling)
		}
	}
	return m.okLocked()
}

// HandleAppBackground is the lifecycle hook for the app losing the
// foreground. With LockOnBackground set, an unlocked vault locks.
func (m *Machine) HandleAppBackground(ctx context.Context) Result {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == StateUnlocked && m.cfg.LockOnBackground {
		m.setStateLocked(ctx, StateLocked)
		m.log.Info(ctx, "vault locked on background")
	}
	return m.okLocked()
}

// HandleAppForeground re-checks the QR window and the inactivity
// timeout synchronously before any further encrypted I/O is allowed.
// The ticker would catch both within a second; doing it here closes
// the gap for callers that read immediately on resume.
func (m *Machine) HandleAppForeground(ctx context.Context) Result {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateUnlocked {
		return m.okLocked()
	}

	now := m.clk.Now()
	if m.sess.InactivityExceeded(now) {
		m.setStateLocked(ctx, StateLocked)
		m.log.Info(ctx, "vault locked after inactivity")
		return m.okLocked()
	}

	if !m.cfg.BiometricOnly {
		expired, err := m.sess.CheckQRTTL(ctx, now)
		if err != nil {
			m.log.Warn(ctx, "qr ttl check failed", "error", err)
			expired = true
		}
		if expired {
			m.lastErr = m.newError(CodeSessionExpired, "qr validation window elapsed; scan again to continue")
			m.setStateLocked(ctx, StateQRPending)
			return m.okLocked()
		}
	}

	m.sess.TouchActivity(ctx, now)
	return m.okLocked()
}

// RecordActivity refreshes the inactivity window. Call it on user
// actions that touch the vault.
func (m *Machine) RecordActivity(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StateUnlocked {
		m.sess.TouchActivity(ctx, m.clk.Now())
	}
}

// Close tears the machine down: the TTL goroutine is stopped and
// awaited, any pending prompt is cancelled and the key is wiped. The
// machine accepts no actions afterwards.
func (m *Machine) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	if m.state == StateUnlocked {
		m.setStateLocked(context.Background(), StateLocked)
	}
	m.stopTickerLocked()
	done := m.tickDone
	m.sess.ClearKey()
	m.sess.ClearSession()
	m.mu.Unlock()

	m.bio.Cancel()
	if done != nil {
		<-done
	}
}

// State returns the current auth state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// LastError returns the most recent failure, nil when none is pending.
func (m *Machine) LastError() *AuthError {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

// EncryptionKey returns the storage key for encrypted I/O, nil
// whenever the vault is not unlocked. Callers must treat nil as
// "cannot do encrypted I/O right now", never as "use no encryption".
// Biometric-only deployments have no storage key at all.
func (m *Machine) EncryptionKey() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateUnlocked || m.cfg.BiometricOnly {
		return nil
	}
	return m.sess.Key()
}

// SessionInfo returns the live session, nil when not unlocked. The
// returned value is owned by the machine; treat it as read-only.
func (m *Machine) SessionInfo() *models.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sess.Session()
}

// BiometricFailures returns the consecutive-failure count since the
// last successful challenge.
func (m *Machine) BiometricFailures() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.bioFailures
}

// IsEnrolled reports whether a persisted enrollment exists.
func (m *Machine) IsEnrolled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.enrolled
}

// Enrollment returns the cached QR enrollment record, nil when
// unenrolled or in biometric-only mode.
func (m *Machine) Enrollment() *models.QREnrollment {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.enrollment
}

// RemainingQRSeconds returns the seconds left in the QR validation
// window as of the last tick, 0 when it does not apply.
func (m *Machine) RemainingQRSeconds() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cfg.BiometricOnly {
		return 0
	}
	return m.sess.RemainingSeconds()
}

// ExpiryWarning reports whether the QR window is inside the configured
// warning threshold, for UI countdown hints.
func (m *Machine) ExpiryWarning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state == StateUnlocked && !m.cfg.BiometricOnly && m.sess.ExpiryWarning()
}

// finalizeUnlockLocked is the single choke point that flips state to
// unlocked: fresh session, factors recorded, error cleared, ticker
// started. Both the QR path and the biometric path funnel through it
// so the session shape is always consistent. Caller holds mu.
func (m *Machine) finalizeUnlockLocked(ctx context.Context, method models.AuthMethod) Result {
	now := m.clk.Now()
	s := m.sess.NewSession(ctx, method, now)
	if !m.bioOKAt.IsZero() {
		t := m.bioOKAt
		s.BiometricValidatedAt = &t
	}
	if !m.qrOKAt.IsZero() {
		t := m.qrOKAt
		s.QRValidatedAt = &t
	}
	m.bioOKAt = time.Time{}
	m.qrOKAt = time.Time{}
	m.lastErr = nil
	m.bioFailures = 0
	m.setStateLocked(ctx, StateUnlocked)

	m.log.Info(ctx, "vault unlocked", "method", method, "session_id", s.ID)
	return m.okLocked()
}

// setStateLocked performs the transition plus its side effects: the
// ticker runs only while unlocked, the session dies on every exit from
// unlocked, and the key never survives into qr_pending. Caller holds
// mu.
func (m *Machine) setStateLocked(ctx context.Context, next State) {
	if next == m.state {
		return
	}
	prev := m.state
	m.state = next

	if prev == StateUnlocked {
		m.stopTickerLocked()
		m.sess.ClearSession()
		if next != StateLocked {
			m.sess.ClearKey()
		}
	}
	if next == StateQRPending {
		m.sess.ClearKey()
	}
	if next == StateUnlocked {
		m.startTickerLocked()
	}

	m.log.Debug(ctx, "auth state changed", "from", prev, "to", next)
}

func (m *Machine) startTickerLocked() {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	m.tickCancel = cancel
	m.tickDone = done
	go m.runTTL(ctx, done)
}

// stopTickerLocked cancels the TTL goroutine without waiting for it;
// waiting under mu would deadlock against a tick that is acquiring it.
// A late tick re-checks state and context and does nothing.
func (m *Machine) stopTickerLocked() {
	if m.tickCancel != nil {
		m.tickCancel()
		m.tickCancel = nil
	}
}

func (m *Machine) runTTL(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := m.clk.NewTicker(ttlTickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.onTick(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (m *Machine) onTick(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if ctx.Err() != nil || m.state != StateUnlocked {
		return
	}

	now := m.clk.Now()
	if m.sess.InactivityExceeded(now) {
		m.log.Info(ctx, "vault locked after inactivity", "timeout", m.cfg.InactivityTimeout)
		m.setStateLocked(ctx, StateLocked)
		return
	}

	if m.cfg.BiometricOnly {
		return
	}

	expired, err := m.sess.CheckQRTTL(ctx, now)
	if err != nil {
		m.log.Warn(ctx, "qr ttl check failed", "error", err)
		return
	}
	if expired {
		// Data already decrypted in memory stays with the caller;
		// from here on no new decryptions until re-validated.
		m.lastErr = m.newError(CodeSessionExpired, "qr validation window elapsed; scan again to continue")
		m.log.Info(ctx, "qr validation expired, re-validation required")
		m.setStateLocked(ctx, StateQRPending)
	}
}

// touchBiometricCredentialLocked updates the credential's last-used
// timestamp, best effort. Missing record (a QR-only enrollment using
// the fallback gate) is not an error. Caller holds mu.
func (m *Machine) touchBiometricCredentialLocked(ctx context.Context, now time.Time) {
	raw, err := m.repo.Get(ctx, common.KeyBiometricCredential)
	if err != nil || raw == nil {
		return
	}
	var credential models.BiometricCredential
	if err := json.Unmarshal(raw, &credential); err != nil {
		return
	}
	credential.LastUsed = &now
	b, err := json.Marshal(&credential)
	if err != nil {
		return
	}
	if err := m.repo.Set(ctx, common.KeyBiometricCredential, b); err != nil {
		m.log.Warn(ctx, "failed to update biometric credential", "error", err)
	}
}

func (m *Machine) okLocked() Result {
	return Result{Success: true, State: m.state}
}

func (m *Machine) failLocked(err *AuthError) Result {
	return Result{Success: false, State: m.state, Err: err}
}

func (m *Machine) newError(code Code, message string, details ...string) *AuthError {
	return &AuthError{
		Code:        code,
		Message:     message,
		Recoverable: true,
		Timestamp:   m.clk.Now(),
		Details:     details,
	}
}

// capabilityError maps a failed capability query to an AuthError.
func (m *Machine) capabilityError(capability biometric.Capability) *AuthError {
	code := CodeBiometricNotAvailable
	if capability.ErrorCode != "" {
		code = Code(capability.ErrorCode)
	}
	return m.newError(code, "biometric authentication is not available on this device")
}

// qrAuthError maps a validation pipeline failure to an AuthError,
// carrying field-level messages for schema failures.
func (m *Machine) qrAuthError(err error) *AuthError {
	var schemaErr *qr.SchemaError
	switch {
	case errors.As(err, &schemaErr):
		return m.newError(CodeQRInvalidSchema, "qr payload failed schema validation", schemaErr.Fields...)
	case errors.Is(err, qr.ErrVersionUnsupported):
		return m.newError(CodeQRVersionUnsupported, err.Error())
	case errors.Is(err, qr.ErrInvalidFormat):
		return m.newError(CodeQRInvalidFormat, err.Error())
	case errors.Is(err, qr.ErrExpired):
		return m.newError(CodeQRExpired, err.Error())
	case errors.Is(err, qr.ErrKeyMismatch):
		return m.newError(CodeQRKeyMismatch, "this credential belongs to a different device; check you scanned the right code")
	default:
		return m.newError(CodeUnknown, err.Error())
	}
}

// biometricCode maps an adapter error code into the auth taxonomy.
func biometricCode(code biometric.ErrorCode) Code {
	switch code {
	case biometric.CodeCancelled:
		return CodeCancelled
	case "":
		return CodeBiometricFailed
	default:
		return Code(code)
	}
}
