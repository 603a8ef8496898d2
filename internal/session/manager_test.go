package session

import (
	"bytes"
	"context"
	"encoding/base64"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/qrvault/internal/common"
	"github.com/dmitrijs2005/qrvault/internal/config"
	"github.com/dmitrijs2005/qrvault/internal/cryptox"
	"github.com/dmitrijs2005/qrvault/internal/logging"
	"github.com/dmitrijs2005/qrvault/internal/models"
	"github.com/dmitrijs2005/qrvault/internal/qr"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// memRepo is an in-memory metadata.Repository with injectable errors.
type memRepo struct {
	m      map[string][]byte
	getErr error
	setErr error
}

func newMemRepo() *memRepo {
	return &memRepo{m: make(map[string][]byte)}
}

func (r *memRepo) Get(ctx context.Context, key string) ([]byte, error) {
	if r.getErr != nil {
		return nil, r.getErr
	}
	return r.m[key], nil
}

func (r *memRepo) Set(ctx context.Context, key string, value []byte) error {
	if r.setErr != nil {
		return r.setErr
	}
	r.m[key] = value
	return nil
}

func (r *memRepo) Delete(ctx context.Context, key string) error {
	delete(r.m, key)
	return nil
}

func (r *memRepo) List(ctx context.Context) (map[string][]byte, error) {
	out := make(map[string][]byte, len(r.m))
	for k, v := range r.m {
		out[k] = v
	}
	return out, nil
}

func (r *memRepo) Clear(ctx context.Context) error {
	r.m = make(map[string][]byte)
	return nil
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.LoadDefaults()
	return cfg
}

func testLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func testManager(repo *memRepo) *Manager {
	return NewManager(repo, testConfig(), testLogger())
}

func testPayload() *qr.Payload {
	return &qr.Payload{
		Version:   qr.Version,
		DeviceKey: bytes.Repeat([]byte{0x01}, cryptox.DeviceKeySize),
		IssuedAt:  testNow.Add(-time.Hour),
	}
}

func TestDeviceSalt_GeneratedOnceAndReused(t *testing.T) {
	repo := newMemRepo()
	m := testManager(repo)
	ctx := context.Background()

	salt1, err := m.DeviceSalt(ctx)
	require.NoError(t, err)
	assert.Len(t, salt1, cryptox.SaltSize)

	// Persisted as base64 text.
	stored := repo.m[common.KeyDeviceSalt]
	require.NotNil(t, stored)
	decoded, err := base64.StdEncoding.DecodeString(string(stored))
	require.NoError(t, err)
	assert.Equal(t, salt1, decoded)

	salt2, err := m.DeviceSalt(ctx)
	require.NoError(t, err)
	assert.Equal(t, salt1, salt2)
}

func TestDeviceSalt_MalformedPersistedValue(t *testing.T) {
	repo := newMemRepo()
	repo.m[common.KeyDeviceSalt] = []byte("not base64!!!")
	m := testManager(repo)

	_, err := m.DeviceSalt(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "malformed")
}

func TestDeriveAndStoreKey_DeterministicAcrossRestarts(t *testing.T) {
	repo := newMemRepo()
	ctx := context.Background()

	m1 := testManager(repo)
	require.NoError(t, m1.DeriveAndStoreKey(ctx, testPayload()))
	key1 := append([]byte(nil), m1.Key()...)
	require.Len(t, key1, cryptox.KeySize)

	// A fresh manager over the same store derives the same key: the
	// salt survived, the key itself was never persisted.
	m2 := testManager(repo)
	require.NoError(t, m2.DeriveAndStoreKey(ctx, testPayload()))
	assert.Equal(t, key1, m2.Key())

	m1.ClearKey()
	m2.ClearKey()
}

func TestDeriveAndStoreKey_SaltPersistFailureAborts(t *testing.T) {
	repo := newMemRepo()
	repo.setErr = assert.AnError
	m := testManager(repo)

	err := m.DeriveAndStoreKey(context.Background(), testPayload())
	require.Error(t, err)
	assert.Nil(t, m.Key())
}

func TestClearKey_Idempotent(t *testing.T) {
	repo := newMemRepo()
	m := testManager(repo)

	require.NoError(t, m.DeriveAndStoreKey(context.Background(), testPayload()))
	require.NotNil(t, m.Key())

	m.ClearKey()
	assert.Nil(t, m.Key())
	m.ClearKey()
}

func TestCheckQRTTL_AbsentRecordIsExpired(t *testing.T) {
	m := testManager(newMemRepo())

	expired, err := m.CheckQRTTL(context.Background(), testNow)
	require.NoError(t, err)
	assert.True(t, expired)
}

func TestCheckQRTTL_Boundary(t *testing.T) {
	repo := newMemRepo()
	m := testManager(repo)
	ctx := context.Background()

	require.NoError(t, m.RecordQRValidation(ctx, testPayload(), testNow))
	ttl := testConfig().QRTTL
	assert.Equal(t, int(ttl.Seconds()), m.RemainingSeconds())

	// Fresh for the whole window...
	expired, err := m.CheckQRTTL(ctx, testNow.Add(time.Second))
	require.NoError(t, err)
	assert.False(t, expired)

	expired, err = m.CheckQRTTL(ctx, testNow.Add(ttl-time.Second))
	require.NoError(t, err)
	assert.False(t, expired)
	assert.Equal(t, 1, m.RemainingSeconds())

	// ...and expired at exactly the boundary.
	expired, err = m.CheckQRTTL(ctx, testNow.Add(ttl))
	require.NoError(t, err)
	assert.True(t, expired)
}

func TestCheckQRTTL_RepoErrorReadsAsExpired(t *testing.T) {
	repo := newMemRepo()
	repo.getErr = assert.AnError
	m := testManager(repo)

	expired, err := m.CheckQRTTL(context.Background(), testNow)
	require.Error(t, err)
	assert.True(t, expired)
}

func TestRecordQRValidation_PersistsRecord(t *testing.T) {
	repo := newMemRepo()
	m := testManager(repo)
	ctx := context.Background()

	payload := testPayload()
	require.NoError(t, m.RecordQRValidation(ctx, payload, testNow))

	record, err := m.LastQRValidation(ctx)
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, payload.KeyHash(), record.QRHash)
	assert.Equal(t, testNow, record.ValidatedAt.UTC())
	assert.Equal(t, testNow.Add(testConfig().QRTTL), record.ExpiresAt.UTC())
}

func TestExpiryWarning(t *testing.T) {
	repo := newMemRepo()
	m := testManager(repo)
	ctx := context.Background()

	require.NoError(t, m.RecordQRValidation(ctx, testPayload(), testNow))
	assert.False(t, m.ExpiryWarning())

	// Inside the warning threshold (default 5m of a 30m TTL).
	_, err := m.CheckQRTTL(ctx, testNow.Add(26*time.Minute))
	require.NoError(t, err)
	assert.True(t, m.ExpiryWarning())
}

func TestSessionLifecycle(t *testing.T) {
	repo := newMemRepo()
	m := testManager(repo)
	ctx := context.Background()

	require.Nil(t, m.Session())
	assert.False(t, m.InactivityExceeded(testNow))

	s := m.NewSession(ctx, models.AuthMethodCombined, testNow)
	require.NotNil(t, s)
	assert.NotEmpty(t, s.ID)
	assert.Equal(t, models.AuthMethodCombined, s.Method)
	assert.Equal(t, []byte(testNow.Format(time.RFC3339)), repo.m[common.KeySessionStartedAt])

	later := testNow.Add(2 * time.Minute)
	m.TouchActivity(ctx, later)
	assert.Equal(t, later, m.Session().LastActivity)
	assert.Equal(t, []byte(later.Format(time.RFC3339)), repo.m[common.KeySessionLastActivity])

	assert.False(t, m.InactivityExceeded(later.Add(time.Minute)))
	assert.True(t, m.InactivityExceeded(later.Add(testConfig().InactivityTimeout)))

	m.ClearSession()
	assert.Nil(t, m.Session())
	assert.False(t, m.InactivityExceeded(later.Add(time.Hour)))
}

func TestNewSession_PersistFailureIsNonFatal(t *testing.T) {
	repo := newMemRepo()
	repo.setErr = assert.AnError
	m := testManager(repo)

	s := m.NewSession(context.Background(), models.AuthMethodQR, testNow)
	require.NotNil(t, s)
	assert.NotNil(t, m.Session())
}
