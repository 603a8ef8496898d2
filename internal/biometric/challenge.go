package biometric

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"

	"github.com/dmitrijs2005/qrvault/internal/clock"
	"github.com/dmitrijs2005/qrvault/internal/common"
	"github.com/dmitrijs2005/qrvault/internal/models"
	"github.com/dmitrijs2005/qrvault/internal/repositories/metadata"
)

// challengeTTL bounds how long a minted challenge stays signable.
const challengeTTL = 30 * time.Second

var (
	errChallengeExpired = errors.New("biometric: challenge expired")
	errInvalidSignature = errors.New("biometric: invalid challenge signature")
	errMalformedKeypair = errors.New("biometric: stored keypair is malformed")
)

// challenge is the CBOR payload the fallback signs and verifies.
// Integer keys keep the signed bytes compact and stable.
type challenge struct {
	ID        string `cbor:"1,keyasint"`
	Nonce     []byte `cbor:"2,keyasint"`
	IssuedAt  int64  `cbor:"3,keyasint"`
	ExpiresAt int64  `cbor:"4,keyasint"`
}

// storedKeypair is the JSON form of the persisted Ed25519 keypair.
type storedKeypair struct {
	PublicKey  string `json:"publicKey"`
	PrivateKey string `json:"privateKey"`
}

// Challenge is the fallback Authenticator for hosts without a native
// reader. An Ed25519 keypair enrolled in the metadata store signs a
// short-lived nonce challenge and the signature is verified on the
// spot; possession of the device keypair stands in for the biometric
// factor with an identical success/failure contract.
type Challenge struct {
	repo metadata.Repository
	clk  clock.Clock

	mu     sync.Mutex
	cancel context.CancelFunc
}

func NewChallenge(repo metadata.Repository, clk clock.Clock) *Challenge {
	return &Challenge{repo: repo, clk: clk}
}

func (c *Challenge) Capability(ctx context.Context) Capability {
	raw, err := c.repo.Get(ctx, common.KeyChallengeKeypair)
	if err != nil {
		return Capability{ErrorCode: CodeFailed}
	}

	capability := Capability{
		Available: true,
		Enrolled:  raw != nil,
		Type:      models.BiometricTypeUnknown,
	}
	if raw == nil {
		// The first Authenticate enrolls a keypair on the fly.
		capability.ErrorCode = CodeNotEnrolled
	}
	return capability
}

func (c *Challenge) Authenticate(ctx context.Context, prompt string) *AuthResult {
	_ = prompt // no UI of its own; the caller renders the prompt

	ctx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.cancel = cancel
	c.mu.Unlock()
	defer func() {
		cancel()
		c.mu.Lock()
		c.cancel = nil
		c.mu.Unlock()
	}()

	result := &AuthResult{
		Type:      models.BiometricTypeUnknown,
		Timestamp: c.clk.Now(),
	}

	fail := func(err error) *AuthResult {
		if ctx.Err() != nil {
			result.ErrorCode = CodeCancelled
			result.ErrorMessage = "challenge cancelled"
			return result
		}
		result.ErrorCode = CodeFailed
		result.ErrorMessage = err.Error()
		return result
	}

	pub, priv, err := c.keypair(ctx)
	if err != nil {
		return fail(err)
	}

	payload, err := mintChallenge(c.clk.Now())
	if err != nil {
		return fail(err)
	}
	signature := ed25519.Sign(priv, payload)

	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	if err := verifyChallenge(pub, payload, signature, c.clk.Now()); err != nil {
		return fail(err)
	}

	result.Success = true
	return result
}

// Cancel aborts a pending challenge, if any.
func (c *Challenge) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
	}
}

// keypair loads the enrolled keypair, generating and persisting one on
// first use.
func (c *Challenge) keypair(ctx context.Context) (ed25519.PublicKey, ed25519.PrivateKey, error) {
	raw, err := c.repo.Get(ctx, common.KeyChallengeKeypair)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load challenge keypair: %w", err)
	}

	if raw != nil {
		var stored storedKeypair
		if err := json.Unmarshal(raw, &stored); err != nil {
			return nil, nil, fmt.Errorf("%w: %v", errMalformedKeypair, err)
		}
		pub, err := base64.StdEncoding.DecodeString(stored.PublicKey)
		if err != nil || len(pub) != ed25519.PublicKeySize {
			return nil, nil, errMalformedKeypair
		}
		priv, err := base64.StdEncoding.DecodeString(stored.PrivateKey)
		if err != nil || len(priv) != ed25519.PrivateKeySize {
			return nil, nil, errMalformedKeypair
		}
		return ed25519.PublicKey(pub), ed25519.PrivateKey(priv), nil
	}

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate challenge keypair: %w", err)
	}

	b, err := json.Marshal(storedKeypair{
		PublicKey:  base64.StdEncoding.EncodeToString(pub),
		PrivateKey: base64.StdEncoding.EncodeToString(priv),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode challenge keypair: %w", err)
	}
	if err := c.repo.Set(ctx, common.KeyChallengeKeypair, b); err != nil {
		return nil, nil, fmt.Errorf("failed to persist challenge keypair: %w", err)
	}

	return pub, priv, nil
}

// mintChallenge builds the CBOR payload for one challenge round.
func mintChallenge(now time.Time) ([]byte, error) {
	ch := challenge{
		ID:        uuid.New().String(),
		Nonce:     common.GenerateRandByteArray(32),
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(challengeTTL).Unix(),
	}

	payload, err := cbor.Marshal(ch)
	if err != nil {
		return nil, fmt.Errorf("failed to encode challenge: %w", err)
	}
	return payload, nil
}

// verifyChallenge checks the signature over payload and the embedded
// expiry. Expiry is inclusive: a challenge verified at exactly
// ExpiresAt is already too old.
func verifyChallenge(pub ed25519.PublicKey, payload, signature []byte, now time.Time) error {
	if !ed25519.Verify(pub, payload, signature) {
		return errInvalidSignature
	}

	var ch challenge
	if err := cbor.Unmarshal(payload, &ch); err != nil {
		return fmt.Errorf("failed to decode challenge: %w", err)
	}

	if now.Unix() >= ch.ExpiresAt {
		return errChallengeExpired
	}
	return nil
}
