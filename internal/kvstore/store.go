// Package kvstore provides the shared key-value storage a storage origin's
// coordinator instances use to coordinate client activation.
package kvstore

import (
	"context"
)

// Store is a string key-value store shared by every coordinator instance of a
// storage origin. It offers no compare-and-swap: callers resolve races by
// re-reading values.
type Store interface {
	// Get returns the value stored under key. ok is false when the key is absent;
	// that is not an error.
	Get(ctx context.Context, key string) (value string, ok bool, err error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key, value string) error

	// Remove deletes key. Removing an absent key succeeds.
	Remove(ctx context.Context, key string) error

	// Close releases any resources held by the store.
	Close() error
}
