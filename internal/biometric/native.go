package biometric

import (
	"context"
	"os/exec"
	"os/user"
	"strings"
	"sync"

	"github.com/dmitrijs2005/qrvault/internal/clock"
	"github.com/dmitrijs2005/qrvault/internal/models"
)

// Test seams so the exec-backed paths can be exercised without a
// fingerprint reader present.
var (
	lookPath    = exec.LookPath
	currentUser = user.Current
	runCommand  = func(ctx context.Context, name string, args ...string) ([]byte, error) {
		return exec.CommandContext(ctx, name, args...).CombinedOutput()
	}
)

// Native authenticates through the host's fprintd installation:
// fprintd-list for the capability query, fprintd-verify for the
// challenge itself.
type Native struct {
	clk clock.Clock

	mu     sync.Mutex
	cancel context.CancelFunc
}

func NewNative(clk clock.Clock) *Native {
	return &Native{clk: clk}
}

func (n *Native) Capability(ctx context.Context) Capability {
	if _, err := lookPath("fprintd-verify"); err != nil {
		return Capability{ErrorCode: CodeNotAvailable}
	}

	u, err := currentUser()
	if err != nil {
		return Capability{ErrorCode: CodeNotAvailable}
	}

	out, err := runCommand(ctx, "fprintd-list", u.Username)
	if err != nil {
		// The binary exists but no reader answered.
		return Capability{ErrorCode: CodeNotAvailable}
	}

	// fprintd-list prints one "- #N: finger-name" line per enrolled print.
	enrolled := strings.Contains(string(out), "- #")

	capability := Capability{
		Available: true,
		Enrolled:  enrolled,
		Type:      models.BiometricTypeFingerprint,
	}
	if !enrolled {
		capability.ErrorCode = CodeNotEnrolled
	}
	return capability
}

func (n *Native) Authenticate(ctx context.Context, prompt string) *AuthResult {
	_ = prompt // fprintd renders its own prompt on the reader

	ctx, cancel := context.WithCancel(ctx)
	n.mu.Lock()
	n.cancel = cancel
	n.mu.Unlock()
	defer func() {
		cancel()
		n.mu.Lock()
		n.cancel = nil
		n.mu.Unlock()
	}()

	out, err := runCommand(ctx, "fprintd-verify")
	result := &AuthResult{
		Type:      models.BiometricTypeFingerprint,
		Timestamp: n.clk.Now(),
	}

	switch {
	case ctx.Err() != nil:
		result.ErrorCode = CodeCancelled
		result.ErrorMessage = "verification cancelled"
	case err == nil && strings.Contains(string(out), "verify-match"):
		result.Success = true
	case strings.Contains(string(out), "verify-no-match"):
		result.ErrorCode = CodeFailed
		result.ErrorMessage = "fingerprint did not match"
	case strings.Contains(string(out), "verify-disconnected"):
		result.ErrorCode = CodeNotAvailable
		result.ErrorMessage = "fingerprint reader disconnected"
	default:
		result.ErrorCode = CodeFailed
		msg := strings.TrimSpace(string(out))
		if msg == "" && err != nil {
			msg = err.Error()
		}
		result.ErrorMessage = msg
	}

	return result
}

// Cancel aborts a pending fprintd-verify, if any.
func (n *Native) Cancel() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.cancel != nil {
		n.cancel()
	}
}
