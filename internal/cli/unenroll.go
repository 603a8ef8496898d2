package cli

import (
	"context"
	"fmt"
)

// Unenroll wipes the enrollment after an explicit confirmation. The
// encrypted vault payload stays in the store but becomes unreachable:
// its key derives from the QR device key, which is gone after this.
func (a *App) Unenroll(ctx context.Context) error {
	ok, err := getConfirmation(a.reader, "Remove the enrollment? Stored data becomes permanently unreadable.", a.out)
	if err != nil {
		return err
	}
	if !ok {
		fmt.Fprintln(a.out, "Kept as is.")
		return nil
	}
	a.printOutcome(a.machine.Unenroll(ctx))
	return nil
}
