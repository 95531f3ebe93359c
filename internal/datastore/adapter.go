// Package datastore defines the persistence boundary the SDK uses to
// bootstrap and cache downloaded spec payloads outside the network path.
//
// An adapter is a plain keyed byte store. The updater reads the config specs
// key on startup (before any network fetch) and writes fresh payloads back
// after every successful sync, so a restarted process can serve evaluations
// before its first round trip.
package datastore

import (
	"context"
	"errors"
)

// Well-known adapter keys.
const (
	// KeyConfigSpecs stores the most recent download_config_specs payload.
	KeyConfigSpecs = "gatewise/v1/config_specs"
)

// ErrNotFound reports that an adapter holds no value for the requested key.
var ErrNotFound = errors.New("datastore: key not found")

// Adapter is the persistence contract. Implementations must be safe for
// concurrent use; the updater calls Get and Set from its own goroutine while
// Shutdown can arrive from the client's.
type Adapter interface {
	// Get returns the stored value for key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key string, value []byte) error
	// Shutdown releases any underlying resources.
	Shutdown(ctx context.Context) error
}

// Watcher is implemented by adapters that can push updates. The updater
// subscribes instead of polling when the configured adapter supports it.
type Watcher interface {
	// Watch invokes fn with the new value each time key changes, until ctx is
	// cancelled.
	Watch(ctx context.Context, key string, fn func(value []byte)) error
}
