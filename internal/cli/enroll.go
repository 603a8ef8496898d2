package cli

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/qrvault/internal/auth"
	"github.com/dmitrijs2005/qrvault/internal/common"
)

// getSimpleText, getSecret and getConfirmation are indirections used to
// facilitate testing. They point to interactive input helpers and can
// be swapped in tests.
var getSimpleText = GetSimpleText
var getSecret = GetSecret
var getConfirmation = GetConfirmation

// Enroll runs the two-step enrollment: QR credential first, then the
// biometric confirmation. In biometric-only mode there is no QR step
// and the biometric alone completes it. When biometrics are
// unavailable on the device, the QR factor alone completes the
// enrollment and the vault opens right away.
func (a *App) Enroll(ctx context.Context) error {
	if !a.cfg.BiometricOnly {
		raw, err := getSecret(a.out, "Paste the QR payload (input is hidden): ")
		if err != nil {
			return err
		}
		res := a.machine.EnrollQR(ctx, string(raw))
		common.WipeByteArray(raw)
		if !res.Success {
			a.printAuthError(res.Err)
			return nil
		}
		if res.State == auth.StateUnlocked {
			a.printOutcome(res)
			return nil
		}
		fmt.Fprintln(a.out, "QR credential accepted.")
	}

	fmt.Fprintln(a.out, "Confirm the biometric prompt to finish enrollment...")
	res := a.machine.EnrollBiometric(ctx)
	a.printOutcome(res)
	return nil
}
