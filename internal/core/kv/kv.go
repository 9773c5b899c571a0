// Package kv defines the persistent key-value contract used for application
// settings such as the preferred AI provider and model.
package kv

import "context"

// KV is the interface for a persistent key-value store. Values are plain
// strings; Get on a missing key returns ("", false, nil) rather than an error
// so callers can treat absence as "use the default".
type KV interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}
