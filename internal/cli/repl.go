package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the minimal command surface the REPL needs to
// operate. The real App type satisfies this interface; tests can
// provide a lightweight stub.
type execIface interface {
	isUnlocked() bool
	Enroll(ctx context.Context) error
	Unlock(ctx context.Context) error
	RescanQR(ctx context.Context) error
	Lock(ctx context.Context) error
	Status(ctx context.Context) error
	Unenroll(ctx context.Context) error
	ClearError(ctx context.Context) error
	Put(ctx context.Context) error
	Get(ctx context.Context) error
}

// runREPL reads a line from the scanner, parses the first token as the
// command and dispatches to methods on 'a'. Unknown commands are
// reported back to the user. The loop exits on scanner EOF or when the
// user types "exit" or "quit".
//
// Every command maps onto exactly one gate action:
//
//	enroll    — scan a QR credential and confirm the biometric
//	unlock    — biometric challenge, then QR rescan if the window lapsed
//	qr        — rescan the QR credential (qr_pending, or refresh while unlocked)
//	lock      — close the vault
//	status    — show gate state, session and QR window
//	unenroll  — wipe the enrollment (asks for confirmation)
//	clear     — acknowledge the last error
//	put, get  — write/read an entry of the encrypted vault payload
//	exit|quit — leave
//
// Errors returned by command handlers are ignored here; handlers print
// their own failures. That keeps the loop resilient and focused on I/O.
func runREPL(ctx context.Context, a execIface, statusFn func() string, scanner *bufio.Scanner) {
	for {
		printlnFn(fmt.Sprintf("vault [%s] > ", statusFn()))
		if !scanner.Scan() {
			return
		}
		line := scanner.Text()
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd := parts[0]

		switch cmd {
		case "help":
			if a.isUnlocked() {
				printlnFn("Available commands: put, get, qr, lock, status, unenroll, exit")
			} else {
				printlnFn("Available commands: enroll, unlock, qr, status, unenroll, clear, exit")
			}

		case "enroll":
			_ = a.Enroll(ctx)

		case "unlock":
			_ = a.Unlock(ctx)

		case "qr":
			_ = a.RescanQR(ctx)

		case "lock":
			_ = a.Lock(ctx)

		case "status":
			_ = a.Status(ctx)

		case "unenroll":
			_ = a.Unenroll(ctx)

		case "clear":
			_ = a.ClearError(ctx)

		case "put":
			_ = a.Put(ctx)

		case "get":
			_ = a.Get(ctx)

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}
	}
}
