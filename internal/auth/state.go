package auth

// State is the single authoritative auth state. Exactly one is active
// at a time and only the Machine transitions it.
type State string

const (
	// StateInitializing is the boot state before enrollment has been
	// looked up. Re-entered never; Initialize may be retried from it.
	StateInitializing State = "initializing"

	// StateEnrolling means no enrollment exists yet; the device is in
	// the one-time setup flow.
	StateEnrolling State = "enrolling"

	// StateLocked means the vault is enrolled but closed. A biometric
	// pass reopens it while the QR window is still valid.
	StateLocked State = "locked"

	// StateBiometricPending means the gate is waiting for a biometric
	// challenge to complete.
	StateBiometricPending State = "biometric_pending"

	// StateQRPending means a fresh QR credential scan is required
	// before the vault can open.
	StateQRPending State = "qr_pending"

	// StateUnlocked means both factors are satisfied: a session is
	// live and the encryption key is retrievable.
	StateUnlocked State = "unlocked"

	// StateError holds a recoverable failure for the UI to show;
	// ClearError routes back into the flow.
	StateError State = "error"
)
