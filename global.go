package gatewise

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/gatewise/gatewise/internal/core"
)

// ErrAlreadyInitialized is returned by Initialize after a successful first
// call.
var ErrAlreadyInitialized = errors.New("gatewise: already initialized")

var (
	globalMu     sync.Mutex
	globalClient atomic.Pointer[Client]
)

// Initialize creates the package-level singleton client. A failed attempt
// leaves the singleton unset, so initialization can be retried; once it
// succeeds, later calls return ErrAlreadyInitialized. Applications that want
// multiple clients or explicit lifecycles should use [NewClient] directly.
func Initialize(ctx context.Context, sdkKey string, opts *Options) error {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalClient.Load() != nil {
		return ErrAlreadyInitialized
	}
	client, err := NewClient(ctx, sdkKey, opts)
	if err != nil {
		return err
	}
	globalClient.Store(client)
	return nil
}

// CheckGate evaluates a gate on the singleton client. Returns false when
// Initialize has not succeeded.
func CheckGate(user User, gate string) bool {
	client := globalClient.Load()
	if client == nil {
		return false
	}
	return client.CheckGate(user, gate)
}

// GetConfig evaluates a config on the singleton client. Returns an empty
// config when Initialize has not succeeded.
func GetConfig(user User, config string) DynamicConfig {
	client := globalClient.Load()
	if client == nil {
		return DynamicConfig{Name: config, Value: map[string]any{}}
	}
	return client.GetConfig(user, config)
}

// GetExperiment evaluates an experiment on the singleton client.
func GetExperiment(user User, experiment string) DynamicConfig {
	client := globalClient.Load()
	if client == nil {
		return DynamicConfig{Name: experiment, Value: map[string]any{}}
	}
	return client.GetExperiment(user, experiment)
}

// GetLayer evaluates a layer on the singleton client.
func GetLayer(user User, layer string) Layer {
	client := globalClient.Load()
	if client == nil {
		return core.NewLayer(layer, "", "", map[string]any{}, "", nil, nil)
	}
	return client.GetLayer(user, layer)
}

// LogEvent queues a custom event on the singleton client. Dropped when
// Initialize has not succeeded.
func LogEvent(user User, eventName string, value any, metadata map[string]string) {
	client := globalClient.Load()
	if client == nil {
		return
	}
	client.LogEvent(user, eventName, value, metadata)
}

// Shutdown stops the singleton client's workers, flushes events, and clears
// the singleton so Initialize may be called again.
func Shutdown(ctx context.Context) error {
	globalMu.Lock()
	defer globalMu.Unlock()

	client := globalClient.Load()
	if client == nil {
		return nil
	}
	globalClient.Store(nil)
	return client.Shutdown(ctx)
}
