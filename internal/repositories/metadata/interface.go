// Package metadata persists the gate's durable state as opaque
// key-value entries: enrollment records, the device salt, the last QR
// validation and the encrypted vault payload. Two backends implement
// the same contract; the driver is selected in configuration.
package metadata

import (
	"context"
)

// Repository is the key-value contract every backend satisfies.
// Get returns (nil, nil) when the key does not exist.
type Repository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	List(ctx context.Context) (map[string][]byte, error)
	Clear(ctx context.Context) error
}
