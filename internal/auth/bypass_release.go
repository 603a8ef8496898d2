//go:build !devgate

package auth

import "context"

// DevBypass always refuses in builds without the devgate tag. The
// bypass is a build-time escape hatch for development, never a runtime
// toggle reachable in shipped binaries.
func (m *Machine) DevBypass(ctx context.Context) Result {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.failLocked(m.newError(CodeBypassDisabled, "auth bypass is compiled out of this build"))
}
