// Package updater keeps the spec store current. It seeds the store at
// startup from the fastest available source (data adapter, then bootstrap
// payload, then network) and re-syncs on a fixed interval afterwards.
package updater

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/xeipuuv/gojsonschema"

	"github.com/gatewise/gatewise/internal/core"
	"github.com/gatewise/gatewise/internal/datastore"
	"github.com/gatewise/gatewise/internal/metrics"
	"github.com/gatewise/gatewise/internal/store"
	"github.com/gatewise/gatewise/internal/transport"
)

// specSchema is the structural contract a payload must satisfy before it is
// allowed to replace the live snapshot. A malformed payload from any source
// leaves the previous snapshot serving.
const specSchema = `{
	"type": "object",
	"properties": {
		"feature_gates":   {"type": "array"},
		"dynamic_configs": {"type": "array"},
		"layer_configs":   {"type": "array"},
		"layers":          {"type": "object"},
		"id_lists":        {"type": "object"},
		"time":            {"type": "number"},
		"has_updates":     {"type": "boolean"}
	},
	"required": ["has_updates"]
}`

// ErrInvalidPayload reports a payload that failed schema validation.
var ErrInvalidPayload = errors.New("updater: payload failed schema validation")

// Updater drives the spec store from the network and the data adapter.
type Updater struct {
	store     *store.Store
	transport *transport.Client
	adapter   datastore.Adapter
	bootstrap []byte
	interval  time.Duration
	log       *slog.Logger
	metrics   *metrics.Metrics
	schema    *gojsonschema.Schema
}

// Config assembles an Updater's collaborators. Transport, Adapter, and
// Bootstrap are each optional; at least one source must be present for the
// store to ever initialize.
type Config struct {
	Store     *store.Store
	Transport *transport.Client
	Adapter   datastore.Adapter
	Bootstrap []byte
	Interval  time.Duration
	Logger    *slog.Logger
	Metrics   *metrics.Metrics
}

// New creates an Updater. The schema is compiled once here; compilation
// cannot fail for a constant document, so any error is a programming bug.
func New(cfg Config) (*Updater, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(specSchema))
	if err != nil {
		return nil, fmt.Errorf("compile spec schema: %w", err)
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &Updater{
		store:     cfg.Store,
		transport: cfg.Transport,
		adapter:   cfg.Adapter,
		bootstrap: cfg.Bootstrap,
		interval:  interval,
		log:       cfg.Logger,
		metrics:   cfg.Metrics,
		schema:    schema,
	}, nil
}

// Bootstrap seeds the store before the first poll: the data adapter wins if
// it has a payload, then an explicit bootstrap payload, then one synchronous
// network fetch. Failures fall through to the next source; an error is
// returned only when every configured source failed.
func (u *Updater) Bootstrap(ctx context.Context) error {
	if u.adapter != nil {
		raw, err := u.adapter.Get(ctx, datastore.KeyConfigSpecs)
		if err == nil {
			if err := u.apply(raw, core.ReasonDataAdapter); err == nil {
				u.log.Info("specs bootstrapped from data adapter")
				return nil
			} else {
				u.log.Warn("data adapter payload rejected", "error", err)
			}
		} else if !errors.Is(err, datastore.ErrNotFound) {
			u.log.Warn("data adapter read failed", "error", err)
		}
	}

	if len(u.bootstrap) > 0 {
		if err := u.apply(u.bootstrap, core.ReasonBootstrap); err == nil {
			u.log.Info("specs bootstrapped from provided payload")
			return nil
		} else {
			u.log.Warn("bootstrap payload rejected", "error", err)
		}
	}

	if u.transport != nil {
		if err := u.syncFromNetwork(ctx); err != nil {
			return fmt.Errorf("initial spec sync: %w", err)
		}
		return nil
	}

	return errors.New("updater: no spec source produced a payload")
}

// Run polls the network on the configured interval until ctx is cancelled.
// When the adapter can push updates it is watched concurrently, so file-backed
// deployments without network access stay current too.
func (u *Updater) Run(ctx context.Context) {
	if watcher, ok := u.adapter.(datastore.Watcher); ok {
		go u.watchAdapter(ctx, watcher)
	}
	if u.transport == nil {
		<-ctx.Done()
		return
	}

	ticker := time.NewTicker(u.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := u.syncFromNetwork(ctx); err != nil && ctx.Err() == nil {
				u.log.Error("spec sync failed", "error", err)
			}
		}
	}
}

func (u *Updater) watchAdapter(ctx context.Context, watcher datastore.Watcher) {
	err := watcher.Watch(ctx, datastore.KeyConfigSpecs, func(value []byte) {
		if err := u.apply(value, core.ReasonDataAdapter); err != nil {
			u.log.Warn("watched adapter payload rejected", "error", err)
		}
	})
	if err != nil && ctx.Err() == nil {
		u.log.Error("adapter watch stopped", "error", err)
	}
}

func (u *Updater) syncFromNetwork(ctx context.Context) error {
	start := time.Now()
	raw, err := u.transport.DownloadConfigSpecs(ctx, u.store.LastUpdateTime())
	if u.metrics != nil {
		u.metrics.RecordSync("network", err, time.Since(start))
	}
	if err != nil {
		return err
	}

	if err := u.apply(raw, core.ReasonNetwork); err != nil {
		if errors.Is(err, errNoUpdates) {
			return nil
		}
		return err
	}

	if u.adapter != nil {
		if err := u.adapter.Set(ctx, datastore.KeyConfigSpecs, raw); err != nil {
			u.log.Warn("data adapter write failed", "error", err)
		}
	}
	return nil
}

var errNoUpdates = errors.New("updater: payload carries no updates")

// apply validates, decodes, and installs one payload.
func (u *Updater) apply(raw []byte, reason core.EvaluationReason) error {
	result, err := u.schema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return fmt.Errorf("validate payload: %w", err)
	}
	if !result.Valid() {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, result.Errors())
	}

	specs, err := core.ParseDownloadedSpecs(raw)
	if err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	if !specs.HasUpdates {
		return errNoUpdates
	}

	u.store.SetConfigSpecs(specs, reason)
	u.log.Debug("spec snapshot applied",
		"reason", reason,
		"sync_time", specs.Time,
		"gates", len(specs.FeatureGates),
		"configs", len(specs.DynamicConfigs),
		"layers", len(specs.LayerConfigs))
	return nil
}
