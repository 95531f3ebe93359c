// Package store holds the in-memory, versioned snapshot of downloaded specs.
//
// The whole gates/configs/layers view is replaced by a single pointer swap
// when a new snapshot arrives, so evaluation reads never lock and never
// observe a torn update. ID lists are maintained incrementally by an external
// updater and live behind their own lock.
package store

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/gatewise/gatewise/internal/core"
)

type snapshot struct {
	gates             map[string]*core.Spec
	configs           map[string]*core.Spec
	layerConfigs      map[string]*core.Spec
	experimentToLayer map[string]string
	layers            map[string][]string
	syncTime          int64
	reason            core.EvaluationReason
}

var uninitialized = &snapshot{
	gates:             map[string]*core.Spec{},
	configs:           map[string]*core.Spec{},
	layerConfigs:      map[string]*core.Spec{},
	experimentToLayer: map[string]string{},
	layers:            map[string][]string{},
	reason:            core.ReasonUninitialized,
}

// Store is the read contract the evaluator runs against. Safe for concurrent
// readers while a background updater swaps the snapshot.
type Store struct {
	snap     atomic.Pointer[snapshot]
	initTime atomic.Int64

	mu      sync.RWMutex
	idLists map[string]*core.IDList
}

// New returns an empty store reporting ReasonUninitialized until the first
// snapshot is applied.
func New() *Store {
	s := &Store{idLists: make(map[string]*core.IDList)}
	s.snap.Store(uninitialized)
	return s
}

// SetConfigSpecs replaces the entire spec view with the given download,
// tagging subsequent evaluations with source (Network, Bootstrap, or
// DataAdapter). The first successful apply records the init time.
func (s *Store) SetConfigSpecs(specs core.DownloadedSpecs, source core.EvaluationReason) {
	next := &snapshot{
		gates:             specsByName(specs.FeatureGates),
		configs:           specsByName(specs.DynamicConfigs),
		layerConfigs:      specsByName(specs.LayerConfigs),
		experimentToLayer: invertLayers(specs.Layers),
		layers:            specs.Layers,
		syncTime:          specs.Time,
		reason:            source,
	}
	if next.layers == nil {
		next.layers = map[string][]string{}
	}

	s.initTime.CompareAndSwap(0, time.Now().UnixMilli())
	s.snap.Store(next)
	s.reconcileIDLists(specs.IDLists)
}

func specsByName(specs []core.Spec) map[string]*core.Spec {
	byName := make(map[string]*core.Spec, len(specs))
	for i := range specs {
		byName[specs[i].Name] = &specs[i]
	}
	return byName
}

func invertLayers(layers map[string][]string) map[string]string {
	index := make(map[string]string)
	for layer, experiments := range layers {
		for _, experiment := range experiments {
			index[experiment] = layer
		}
	}
	return index
}

// GetGate looks up a feature gate spec. Unknown names return nil.
func (s *Store) GetGate(name string) *core.Spec {
	return s.snap.Load().gates[name]
}

// GetConfig looks up a dynamic config or experiment spec. Unknown names
// return nil.
func (s *Store) GetConfig(name string) *core.Spec {
	return s.snap.Load().configs[name]
}

// GetLayerConfig looks up a layer spec. Unknown names return nil.
func (s *Store) GetLayerConfig(name string) *core.Spec {
	return s.snap.Load().layerConfigs[name]
}

// GetLayerNameForExperiment returns the layer an experiment is allocated
// under, or "" when it is not in any layer.
func (s *Store) GetLayerNameForExperiment(experimentName string) string {
	return s.snap.Load().experimentToLayer[experimentName]
}

// GetExperimentsInLayer lists the experiment names associated with a layer.
func (s *Store) GetExperimentsInLayer(layerName string) []string {
	return s.snap.Load().layers[layerName]
}

// GateNames returns the names of all known gates.
func (s *Store) GateNames() []string {
	snap := s.snap.Load()
	names := make([]string, 0, len(snap.gates))
	for name := range snap.gates {
		names = append(names, name)
	}
	return names
}

// ConfigNames returns the names of all known dynamic configs.
func (s *Store) ConfigNames() []string {
	snap := s.snap.Load()
	names := make([]string, 0, len(snap.configs))
	for name := range snap.configs {
		names = append(names, name)
	}
	return names
}

// EvaluationReason reports the provenance of the current snapshot.
func (s *Store) EvaluationReason() core.EvaluationReason {
	return s.snap.Load().reason
}

// LastUpdateTime is the server timestamp of the current snapshot.
func (s *Store) LastUpdateTime() int64 {
	return s.snap.Load().syncTime
}

// InitTime is when the store first became populated, 0 if it never has.
func (s *Store) InitTime() int64 {
	return s.initTime.Load()
}

// GetIDList returns the named segment list, or nil when unknown.
func (s *Store) GetIDList(name string) *core.IDList {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.idLists[name]
}

// SetIDList installs or replaces a segment list wholesale.
func (s *Store) SetIDList(list *core.IDList) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.idLists[list.Name] = list
}

// UpdateIDList applies an incremental add/remove diff to the named list,
// creating it if needed.
func (s *Store) UpdateIDList(name string, addIDs, removeIDs []string, time int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.idLists[name]
	if list == nil {
		list = &core.IDList{Name: name, IDs: make(map[string]bool)}
		s.idLists[name] = list
	}
	for _, id := range addIDs {
		list.IDs[id] = true
	}
	for _, id := range removeIDs {
		delete(list.IDs, id)
	}
	if time > list.Time {
		list.Time = time
	}
}

// reconcileIDLists registers lists newly referenced by a snapshot and drops
// lists it no longer mentions. Membership contents are left to the external
// updater.
func (s *Store) reconcileIDLists(names map[string]bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for name := range names {
		if s.idLists[name] == nil {
			s.idLists[name] = &core.IDList{Name: name, IDs: make(map[string]bool)}
		}
	}
	for name := range s.idLists {
		if !names[name] {
			delete(s.idLists, name)
		}
	}
}
