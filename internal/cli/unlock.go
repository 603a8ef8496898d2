package cli

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/qrvault/internal/auth"
	"github.com/dmitrijs2005/qrvault/internal/common"
)

// Unlock runs the biometric challenge. When the machine lands in
// qr_pending afterwards, either because the validation window lapsed
// or because the biometric path is closed, it follows up with the QR
// rescan prompt in the same command.
func (a *App) Unlock(ctx context.Context) error {
	fmt.Fprintln(a.out, "Confirm the biometric prompt...")
	res := a.machine.RequestBiometric(ctx)
	if !res.Success {
		a.printAuthError(res.Err)
		if res.State == auth.StateQRPending {
			return a.RescanQR(ctx)
		}
		return nil
	}
	if res.State == auth.StateQRPending {
		fmt.Fprintln(a.out, "QR validation has expired.")
		return a.RescanQR(ctx)
	}
	a.printOutcome(res)
	return nil
}

// RescanQR prompts for the QR payload and validates it against the
// enrollment. Legal while waiting in qr_pending, and as a window
// refresh while unlocked.
func (a *App) RescanQR(ctx context.Context) error {
	raw, err := getSecret(a.out, "Paste the QR payload (input is hidden): ")
	if err != nil {
		return err
	}
	res := a.machine.ValidateQR(ctx, string(raw))
	common.WipeByteArray(raw)
	a.printOutcome(res)
	return nil
}

// Lock closes the vault.
func (a *App) Lock(ctx context.Context) error {
	a.printOutcome(a.machine.Lock(ctx))
	return nil
}
