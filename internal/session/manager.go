// Package session owns the ephemeral side of an unlocked vault: the
// derived storage key, the QR TTL countdown and the in-memory session
// record. It persists only what must survive a restart (the device
// salt and the last successful QR validation) and nothing derived
// from key material.
package session

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/qrvault/internal/common"
	"github.com/dmitrijs2005/qrvault/internal/config"
	"github.com/dmitrijs2005/qrvault/internal/cryptox"
	"github.com/dmitrijs2005/qrvault/internal/logging"
	"github.com/dmitrijs2005/qrvault/internal/models"
	"github.com/dmitrijs2005/qrvault/internal/qr"
	"github.com/dmitrijs2005/qrvault/internal/repositories/metadata"
	"github.com/dmitrijs2005/qrvault/internal/secret"
)

// Manager holds the derived storage key while the vault is unlocked
// and tracks how long the last QR validation stays fresh. The state
// machine is the single writer; the internal mutex only makes the
// read paths safe from other goroutines.
type Manager struct {
	repo metadata.Repository
	cfg  *config.Config
	log  logging.Logger

	mu        sync.Mutex
	key       *secret.Buffer
	session   *models.Session
	remaining int
}

func NewManager(repo metadata.Repository, cfg *config.Config, log logging.Logger) *Manager {
	return &Manager{repo: repo, cfg: cfg, log: log}
}

// DeviceSalt returns the persisted device salt, generating and
// persisting a fresh one on first use. The salt is written before any
// derivation happens, so a crash can never leave a derived key without
// the salt that reproduces it.
func (m *Manager) DeviceSalt(ctx context.Context) ([]byte, error) {
	raw, err := m.repo.Get(ctx, common.KeyDeviceSalt)
	if err != nil {
		return nil, fmt.Errorf("failed to load device salt: %w", err)
	}

	if raw != nil {
		salt, err := base64.StdEncoding.DecodeString(string(raw))
		if err != nil || len(salt) != cryptox.SaltSize {
			return nil, fmt.Errorf("persisted device salt is malformed")
		}
		return salt, nil
	}

	salt := cryptox.GenerateDeviceSalt()
	encoded := []byte(base64.StdEncoding.EncodeToString(salt))
	if err := m.repo.Set(ctx, common.KeyDeviceSalt, encoded); err != nil {
		return nil, fmt.Errorf("failed to persist device salt: %w", err)
	}

	m.log.Info(ctx, "device salt generated")
	return salt, nil
}

// DeriveAndStoreKey derives the storage key from the payload's device
// key and caches it in locked memory, replacing any previous key.
func (m *Manager) DeriveAndStoreKey(ctx context.Context, payload *qr.Payload) error {
	salt, err := m.DeviceSalt(ctx)
	if err != nil {
		return err
	}

	derived, err := cryptox.DeriveStorageKey(payload.DeviceKey, salt, m.cfg.KDFInfo)
	if err != nil {
		return fmt.Errorf("failed to derive storage key: %w", err)
	}

	// NewFromBytes wipes the intermediate slice once it is copied
	// into the locked buffer.
	buf, err := secret.NewFromBytes(derived)
	if err != nil {
		return fmt.Errorf("failed to protect storage key: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.key != nil {
		_ = m.key.Close()
	}
	m.key = buf
	return nil
}

// Key returns the held storage key, or nil when no key is cached. The
// state machine additionally gates this on being unlocked.
func (m *Manager) Key() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.key == nil {
		return nil
	}
	return m.key.Bytes()
}

// ClearKey zeroes and releases the held key. Safe to call when no key
// is held.
func (m *Manager) ClearKey() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.key != nil {
		_ = m.key.Close()
		m.key = nil
	}
}

// RecordQRValidation persists the outcome of a successful QR check and
// restarts the TTL window from now.
func (m *Manager) RecordQRValidation(ctx context.Context, payload *qr.Payload, now time.Time) error {
	record := models.QRValidation{
		ValidatedAt: now,
		QRHash:      payload.KeyHash(),
		ExpiresAt:   now.Add(m.cfg.QRTTL),
	}

	b, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode qr validation: %w", err)
	}
	if err := m.repo.Set(ctx, common.KeyLastQRValidation, b); err != nil {
		return fmt.Errorf("failed to persist qr validation: %w", err)
	}

	m.mu.Lock()
	m.remaining = int(m.cfg.QRTTL.Seconds())
	m.mu.Unlock()
	return nil
}

// LastQRValidation returns the persisted validation record, or nil
// when none exists.
func (m *Manager) LastQRValidation(ctx context.Context) (*models.QRValidation, error) {
	raw, err := m.repo.Get(ctx, common.KeyLastQRValidation)
	if err != nil {
		return nil, fmt.Errorf("failed to load qr validation: %w", err)
	}
	if raw == nil {
		return nil, nil
	}

	var record models.QRValidation
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, fmt.Errorf("failed to decode qr validation: %w", err)
	}
	return &record, nil
}

// CheckQRTTL reports whether the last QR validation has lapsed. A
// missing record counts as expired; the boundary is inclusive, so a
// record expiring exactly now is already expired. On a fresh result
// the remaining-seconds counter is updated as a side effect, so call
// this at most once per tick.
func (m *Manager) CheckQRTTL(ctx context.Context, now time.Time) (bool, error) {
	record, err := m.LastQRValidation(ctx)
	if err != nil {
		return true, err
	}
	if record == nil {
		return true, nil
	}

	if !now.Before(record.ExpiresAt) {
		return true, nil
	}

	m.mu.Lock()
	m.remaining = int(record.ExpiresAt.Sub(now).Seconds())
	m.mu.Unlock()
	return false, nil
}

// RemainingSeconds returns the seconds left in the QR TTL window as of
// the last CheckQRTTL or RecordQRValidation.
func (m *Manager) RemainingSeconds() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.remaining
}

// ExpiryWarning reports whether the TTL window is inside the
// configured warning threshold.
func (m *Manager) ExpiryWarning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.remaining > 0 && m.remaining <= int(m.cfg.QRExpiryWarning.Seconds())
}

// NewSession starts a fresh in-memory session and persists best-effort
// start/activity timestamps. Persistence failures are logged, never
// fatal: the timestamps are informational.
func (m *Manager) NewSession(ctx context.Context, method models.AuthMethod, now time.Time) *models.Session {
	s := &models.Session{
		ID:           uuid.New().String(),
		StartedAt:    now,
		LastActivity: now,
		Method:       method,
	}

	m.mu.Lock()
	m.session = s
	m.mu.Unlock()

	stamp := []byte(now.Format(time.RFC3339))
	if err := m.repo.Set(ctx, common.KeySessionStartedAt, stamp); err != nil {
		m.log.Warn(ctx, "failed to persist session start", "error", err)
	}
	if err := m.repo.Set(ctx, common.KeySessionLastActivity, stamp); err != nil {
		m.log.Warn(ctx, "failed to persist session activity", "error", err)
	}

	return s
}

// Session returns the current in-memory session, nil when locked.
func (m *Manager) Session() *models.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session
}

// ClearSession drops the in-memory session. The persisted timestamps
// remain as a record of the last session.
func (m *Manager) ClearSession() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = nil
}

// TouchActivity refreshes the session's last-activity time.
func (m *Manager) TouchActivity(ctx context.Context, now time.Time) {
	m.mu.Lock()
	if m.session == nil {
		m.mu.Unlock()
		return
	}
	m.session.LastActivity = now
	m.mu.Unlock()

	if err := m.repo.Set(ctx, common.KeySessionLastActivity, []byte(now.Format(time.RFC3339))); err != nil {
		m.log.Warn(ctx, "failed to persist session activity", "error", err)
	}
}

// InactivityExceeded reports whether the session has been idle for at
// least the configured timeout. No session means nothing to exceed.
func (m *Manager) InactivityExceeded(now time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return false
	}
	return now.Sub(m.session.LastActivity) >= m.cfg.InactivityTimeout
}
