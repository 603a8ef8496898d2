package cli

import (
	"context"
	"fmt"
	"time"
)

// Status renders the gate's observable state: enrollment, session,
// failure counter and the QR validation window.
func (a *App) Status(ctx context.Context) error {
	fmt.Fprintf(a.out, "state:     %s\n", a.machine.State())
	fmt.Fprintf(a.out, "enrolled:  %t\n", a.machine.IsEnrolled())

	if e := a.machine.Enrollment(); e != nil {
		fmt.Fprintf(a.out, "qr key:    %s (enrolled %s)\n", e.KeyFingerprint, e.EnrolledAt.Format(time.RFC3339))
	}
	if failures := a.machine.BiometricFailures(); failures > 0 {
		fmt.Fprintf(a.out, "failures:  %d\n", failures)
	}

	if s := a.machine.SessionInfo(); s != nil {
		fmt.Fprintf(a.out, "session:   %s via %s, started %s\n", s.ID, s.Method, s.StartedAt.Format(time.RFC3339))
		if !a.cfg.BiometricOnly {
			fmt.Fprintf(a.out, "qr window: %ds left\n", a.machine.RemainingQRSeconds())
			if a.machine.ExpiryWarning() {
				fmt.Fprintln(a.out, "           rescan soon: the window is about to close")
			}
		}
	}

	if lastErr := a.machine.LastError(); lastErr != nil {
		a.printAuthError(lastErr)
	}
	return nil
}

// ClearError acknowledges the last failure and routes the machine back
// into the flow.
func (a *App) ClearError(ctx context.Context) error {
	a.printOutcome(a.machine.ClearError(ctx))
	return nil
}
