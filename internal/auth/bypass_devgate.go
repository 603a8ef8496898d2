//go:build devgate

package auth

import (
	"context"

	"github.com/dmitrijs2005/qrvault/internal/common"
	"github.com/dmitrijs2005/qrvault/internal/cryptox"
	"github.com/dmitrijs2005/qrvault/internal/models"
	"github.com/dmitrijs2005/qrvault/internal/qr"
)

// DevBypass fabricates a fully-permissioned enrollment around a random
// device key and unlocks without running either factor. Development
// builds only; the devgate build tag is the sole way to reach this
// code path, there is no runtime toggle.
func (m *Machine) DevBypass(ctx context.Context) Result {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return m.failLocked(m.newError(CodeInvalidState, "machine is closed"))
	}

	switch m.state {
	case StateEnrolling, StateBiometricPending, StateQRPending, StateLocked:
	default:
		return m.failLocked(m.newError(CodeInvalidState, "bypass is not possible in state "+string(m.state)))
	}

	now := m.clk.Now()
	payload := &qr.Payload{
		Version:   qr.Version,
		DeviceKey: common.GenerateRandByteArray(cryptox.DeviceKeySize),
		IssuedAt:  now,
		Permissions: models.Permissions{
			CanExport:        true,
			CanDeleteData:    true,
			CanModifyProfile: true,
		},
	}

	if authErr := m.enrollFromPayloadLocked(ctx, payload, now); authErr != nil {
		m.lastErr = authErr
		return m.failLocked(authErr)
	}

	m.log.Warn(ctx, "auth bypass engaged, fabricated enrollment unlocked the vault")
	return m.finalizeUnlockLocked(ctx, models.AuthMethodCombined)
}
