// Package cli is the interactive shell over the auth gate: a small
// REPL whose commands map one to one onto state machine actions, plus
// put/get for the encrypted vault payload itself. All rendering stays
// here; the machine never prints.
package cli
