package eval

import "sync"

// Overrides lets callers force gate, config, and layer values without
// evaluation. Entries are process-local, last-write-wins, and checked before
// any spec lookup. Mutations can arrive from arbitrary goroutines, so all
// access is lock-guarded.
type Overrides struct {
	mu      sync.RWMutex
	gates   map[string]bool
	configs map[string]map[string]any
	layers  map[string]map[string]any
}

// NewOverrides returns an empty override set.
func NewOverrides() *Overrides {
	return &Overrides{
		gates:   make(map[string]bool),
		configs: make(map[string]map[string]any),
		layers:  make(map[string]map[string]any),
	}
}

// Gate returns the override value for a gate name, if one is set.
func (o *Overrides) Gate(name string) (bool, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	v, ok := o.gates[name]
	return v, ok
}

// SetGate forces a gate to the given value.
func (o *Overrides) SetGate(name string, value bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.gates[name] = value
}

// RemoveGate clears a gate override.
func (o *Overrides) RemoveGate(name string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.gates, name)
}

// Config returns the override value for a config name, if one is set.
func (o *Overrides) Config(name string) (map[string]any, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	v, ok := o.configs[name]
	return v, ok
}

// SetConfig forces a dynamic config to the given value.
func (o *Overrides) SetConfig(name string, value map[string]any) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.configs[name] = value
}

// RemoveConfig clears a config override.
func (o *Overrides) RemoveConfig(name string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.configs, name)
}

// Layer returns the override value for a layer name, if one is set.
func (o *Overrides) Layer(name string) (map[string]any, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	v, ok := o.layers[name]
	return v, ok
}

// SetLayer forces a layer to the given value.
func (o *Overrides) SetLayer(name string, value map[string]any) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.layers[name] = value
}

// RemoveLayer clears a layer override.
func (o *Overrides) RemoveLayer(name string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.layers, name)
}
