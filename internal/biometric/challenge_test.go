package biometric

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/qrvault/internal/clock"
	"github.com/dmitrijs2005/qrvault/internal/common"
	"github.com/dmitrijs2005/qrvault/internal/models"
)

var testEpoch = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

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

func TestChallenge_FirstAuthenticateEnrolls(t *testing.T) {
	repo := newMemRepo()
	c := NewChallenge(repo, clock.Fake(testEpoch))
	ctx := context.Background()

	cap := c.Capability(ctx)
	assert.True(t, cap.Available)
	assert.False(t, cap.Enrolled)
	assert.Equal(t, CodeNotEnrolled, cap.ErrorCode)

	res := c.Authenticate(ctx, "unlock vault")
	require.True(t, res.Success, "unexpected failure: %s", res.ErrorMessage)
	assert.Equal(t, models.BiometricTypeUnknown, res.Type)
	assert.Equal(t, testEpoch, res.Timestamp)

	cap = c.Capability(ctx)
	assert.True(t, cap.Enrolled)
	assert.NotNil(t, repo.m[common.KeyChallengeKeypair])
}

func TestChallenge_ReusesEnrolledKeypair(t *testing.T) {
	repo := newMemRepo()
	c := NewChallenge(repo, clock.Fake(testEpoch))
	ctx := context.Background()

	require.True(t, c.Authenticate(ctx, "").Success)
	stored := append([]byte(nil), repo.m[common.KeyChallengeKeypair]...)

	require.True(t, c.Authenticate(ctx, "").Success)
	assert.Equal(t, stored, repo.m[common.KeyChallengeKeypair])
}

func TestChallenge_RepoErrorFails(t *testing.T) {
	repo := newMemRepo()
	repo.getErr = assert.AnError
	c := NewChallenge(repo, clock.Fake(testEpoch))

	res := c.Authenticate(context.Background(), "")
	require.False(t, res.Success)
	assert.Equal(t, CodeFailed, res.ErrorCode)

	cap := c.Capability(context.Background())
	assert.False(t, cap.Available)
	assert.Equal(t, CodeFailed, cap.ErrorCode)
}

func TestChallenge_MalformedStoredKeypair(t *testing.T) {
	repo := newMemRepo()
	repo.m[common.KeyChallengeKeypair] = []byte(`{"publicKey":"!!","privateKey":"!!"}`)
	c := NewChallenge(repo, clock.Fake(testEpoch))

	res := c.Authenticate(context.Background(), "")
	require.False(t, res.Success)
	assert.Equal(t, CodeFailed, res.ErrorCode)
	assert.Contains(t, res.ErrorMessage, "malformed")
}

func TestChallenge_CancelledContext(t *testing.T) {
	repo := newMemRepo()
	c := NewChallenge(repo, clock.Fake(testEpoch))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := c.Authenticate(ctx, "")
	require.False(t, res.Success)
	assert.Equal(t, CodeCancelled, res.ErrorCode)
}

func TestVerifyChallenge_ExpiryBoundary(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	payload, err := mintChallenge(testEpoch)
	require.NoError(t, err)
	sig := ed25519.Sign(priv, payload)

	// One second before the TTL lapses the challenge still verifies.
	require.NoError(t, verifyChallenge(pub, payload, sig, testEpoch.Add(challengeTTL-time.Second)))

	// At exactly the TTL it is already expired.
	err = verifyChallenge(pub, payload, sig, testEpoch.Add(challengeTTL))
	assert.ErrorIs(t, err, errChallengeExpired)
}

func TestVerifyChallenge_RejectsTampering(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	payload, err := mintChallenge(testEpoch)
	require.NoError(t, err)
	sig := ed25519.Sign(priv, payload)

	tampered := append([]byte(nil), payload...)
	tampered[0] ^= 0x01
	assert.ErrorIs(t, verifyChallenge(pub, tampered, sig, testEpoch), errInvalidSignature)

	otherPub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	assert.ErrorIs(t, verifyChallenge(otherPub, payload, sig, testEpoch), errInvalidSignature)
}
