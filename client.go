package gatewise

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gatewise/gatewise/internal/core"
	"github.com/gatewise/gatewise/internal/datastore"
	"github.com/gatewise/gatewise/internal/eval"
	"github.com/gatewise/gatewise/internal/events"
	"github.com/gatewise/gatewise/internal/logging"
	"github.com/gatewise/gatewise/internal/metrics"
	"github.com/gatewise/gatewise/internal/store"
	"github.com/gatewise/gatewise/internal/tracing"
	"github.com/gatewise/gatewise/internal/transport"
	"github.com/gatewise/gatewise/internal/updater"
)

// Client is the SDK entry point. One Client per process is the intended
// shape; every method is safe for concurrent use.
type Client struct {
	opts      *Options
	store     *store.Store
	evaluator *eval.Evaluator
	events    *events.Logger
	updater   *updater.Updater
	metrics   *metrics.Metrics
	adapter   datastore.Adapter

	traceShutdown func(context.Context) error
	cancel        context.CancelFunc
	wg            sync.WaitGroup
}

// NewClient initializes the SDK: it seeds the spec store (data adapter, then
// bootstrap payload, then one synchronous network fetch) and starts the
// background sync and event delivery workers. A nil opts uses defaults.
//
// In local mode a failed seed is tolerated; otherwise initialization errors
// are returned and no workers are started.
func NewClient(ctx context.Context, sdkKey string, opts *Options) (*Client, error) {
	if opts == nil {
		opts = &Options{}
	}
	opts = opts.withDefaults()

	if sdkKey == "" && !opts.LocalMode {
		return nil, errors.New("gatewise: sdk key is required outside local mode")
	}

	log := logging.New(opts.LogLevel)
	m := metrics.New()
	st := store.New()

	// Opt-in via OTEL_EXPORTER_OTLP_ENDPOINT; without it Init returns a no-op
	// shutdown. A broken exporter setup must never take the host down.
	traceShutdown, err := tracing.Init(ctx)
	if err != nil {
		log.Warn("tracing disabled: exporter setup failed", "error", err)
		traceShutdown = nil
	}

	var tc *transport.Client
	if !opts.LocalMode {
		tc = transport.New(sdkKey, opts.APIURL, opts.RequestTimeout, log)
	}

	var adapter datastore.Adapter
	if opts.DataAdapter != nil {
		adapter = opts.DataAdapter
	}
	if pg, ok := adapter.(*datastore.PostgresAdapter); ok {
		metrics.RegisterPoolMetrics(m.Registry, pg.Pool())
	}

	upd, err := updater.New(updater.Config{
		Store:     st,
		Transport: tc,
		Adapter:   adapter,
		Bootstrap: opts.BootstrapValues,
		Interval:  opts.PollInterval,
		Logger:    log,
		Metrics:   m,
	})
	if err != nil {
		return nil, err
	}

	if tc != nil || adapter != nil || len(opts.BootstrapValues) > 0 {
		if err := upd.Bootstrap(ctx); err != nil {
			if !opts.LocalMode {
				return nil, err
			}
			log.Warn("local mode: spec seed failed, evaluations report Uninitialized", "error", err)
		}
	}

	c := &Client{
		opts:      opts,
		store:     st,
		evaluator: eval.New(st, eval.WithLogger(log)),
		events: events.New(events.Config{
			Transport:     tc,
			Logger:        log,
			Metrics:       m,
			MaxQueue:      opts.EventQueueSize,
			FlushInterval: opts.EventFlushInterval,
		}),
		updater:       upd,
		metrics:       m,
		adapter:       adapter,
		traceShutdown: traceShutdown,
	}

	runCtx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.wg.Add(2)
	go func() {
		defer c.wg.Done()
		c.updater.Run(runCtx)
	}()
	go func() {
		defer c.wg.Done()
		c.events.Run(runCtx)
	}()
	return c, nil
}

// Shutdown stops background workers, flushes buffered events and pending
// trace spans, and releases the data adapter.
func (c *Client) Shutdown(ctx context.Context) error {
	c.cancel()

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	var errs []error
	if c.traceShutdown != nil {
		if err := c.traceShutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if c.adapter != nil {
		if err := c.adapter.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// CheckGate evaluates a feature gate and logs an exposure.
func (c *Client) CheckGate(user User, gate string) bool {
	return c.checkGate(user, gate, true)
}

// CheckGateWithExposureLoggingDisabled evaluates a gate without logging.
// Pair with [Client.LogGateExposure] for deferred manual exposure.
func (c *Client) CheckGateWithExposureLoggingDisabled(user User, gate string) bool {
	return c.checkGate(user, gate, false)
}

func (c *Client) checkGate(user User, gate string, logExposure bool) bool {
	res := c.evalGate(user, gate)
	if logExposure {
		c.events.LogGateExposure(&user, gate, res, false)
	}
	return res.BoolValue
}

// GetFeatureGate evaluates a gate and returns the detailed result.
func (c *Client) GetFeatureGate(user User, gate string) FeatureGate {
	res := c.evalGate(user, gate)
	c.events.LogGateExposure(&user, gate, res, false)
	return FeatureGate{
		Name:              gate,
		Value:             res.BoolValue,
		RuleID:            res.RuleID,
		GroupName:         res.GroupName,
		IDType:            res.IDType,
		EvaluationDetails: res.EvaluationDetails,
	}
}

// LogGateExposure manually logs a gate exposure for the current evaluation
// state, for callers that checked with exposure logging disabled.
func (c *Client) LogGateExposure(user User, gate string) {
	res := c.evalGate(user, gate)
	c.events.LogGateExposure(&user, gate, res, true)
}

// GetConfig evaluates a dynamic config and logs an exposure.
func (c *Client) GetConfig(user User, config string) DynamicConfig {
	return c.getConfig(user, config, true, false)
}

// GetConfigWithExposureLoggingDisabled evaluates a config without logging.
func (c *Client) GetConfigWithExposureLoggingDisabled(user User, config string) DynamicConfig {
	return c.getConfig(user, config, false, false)
}

// GetExperiment evaluates an experiment. Experiments are configs whose
// group assignment is sticky by bucketing; the returned value carries the
// assigned group's parameters.
func (c *Client) GetExperiment(user User, experiment string) DynamicConfig {
	return c.getConfig(user, experiment, true, false)
}

// GetExperimentWithExposureLoggingDisabled evaluates an experiment without
// logging.
func (c *Client) GetExperimentWithExposureLoggingDisabled(user User, experiment string) DynamicConfig {
	return c.getConfig(user, experiment, false, false)
}

// LogConfigExposure manually logs a config exposure.
func (c *Client) LogConfigExposure(user User, config string) {
	c.getConfig(user, config, true, true)
}

func (c *Client) getConfig(user User, name string, logExposure, isManual bool) DynamicConfig {
	start := time.Now()
	res := c.evaluator.GetConfig(&user, name)
	c.metrics.RecordEvaluation("config", string(res.EvaluationDetails.Reason), time.Since(start))

	if logExposure {
		c.events.LogConfigExposure(&user, name, res, isManual)
	}
	return DynamicConfig{
		Name:              name,
		Value:             core.JSONMap(res.JSONValue),
		RuleID:            res.RuleID,
		GroupName:         res.GroupName,
		IDType:            res.IDType,
		IsExperimentGroup: res.IsExperimentGroup,
		EvaluationDetails: res.EvaluationDetails,
	}
}

// GetLayer evaluates a layer. Exposures are logged lazily, per parameter
// actually read from the returned Layer.
func (c *Client) GetLayer(user User, layer string) Layer {
	return c.getLayer(user, layer, true)
}

// GetLayerWithExposureLoggingDisabled evaluates a layer with parameter reads
// left unlogged.
func (c *Client) GetLayerWithExposureLoggingDisabled(user User, layer string) Layer {
	return c.getLayer(user, layer, false)
}

// LogLayerExposure manually logs a layer exposure for one parameter.
func (c *Client) LogLayerExposure(user User, layer, parameter string) {
	res := c.evalLayer(user, layer)
	c.events.LogLayerExposure(&user, layer, parameter, res, true)
}

func (c *Client) getLayer(user User, name string, logExposure bool) Layer {
	res := c.evalLayer(user, name)

	var onExposure func(string)
	if logExposure {
		// Capture the user by value: the Layer may outlive the caller's copy.
		loggedUser := user
		onExposure = func(parameter string) {
			c.events.LogLayerExposure(&loggedUser, name, parameter, res, false)
		}
	}
	return core.NewLayer(
		name,
		res.RuleID,
		res.GroupName,
		core.JSONMap(res.JSONValue),
		res.ConfigDelegate,
		res.ExplicitParameters,
		onExposure,
	)
}

func (c *Client) evalGate(user User, gate string) core.ConfigEvaluation {
	start := time.Now()
	res := c.evaluator.CheckGate(&user, gate)
	c.metrics.RecordEvaluation("gate", string(res.EvaluationDetails.Reason), time.Since(start))
	return res
}

func (c *Client) evalLayer(user User, layer string) core.ConfigEvaluation {
	start := time.Now()
	res := c.evaluator.GetLayer(&user, layer)
	c.metrics.RecordEvaluation("layer", string(res.EvaluationDetails.Reason), time.Since(start))
	return res
}

// LogEvent queues a custom application event.
func (c *Client) LogEvent(user User, eventName string, value any, metadata map[string]string) {
	c.events.LogEvent(&user, eventName, value, metadata)
}

// OverrideGate forces a gate's value for all users until removed.
func (c *Client) OverrideGate(gate string, value bool) {
	c.evaluator.Overrides().SetGate(gate, value)
}

// RemoveGateOverride clears a gate override.
func (c *Client) RemoveGateOverride(gate string) {
	c.evaluator.Overrides().RemoveGate(gate)
}

// OverrideConfig forces a config's value for all users until removed.
func (c *Client) OverrideConfig(config string, value map[string]any) {
	c.evaluator.Overrides().SetConfig(config, value)
}

// RemoveConfigOverride clears a config override.
func (c *Client) RemoveConfigOverride(config string) {
	c.evaluator.Overrides().RemoveConfig(config)
}

// OverrideLayer forces a layer's value for all users until removed.
func (c *Client) OverrideLayer(layer string, value map[string]any) {
	c.evaluator.Overrides().SetLayer(layer, value)
}

// RemoveLayerOverride clears a layer override.
func (c *Client) RemoveLayerOverride(layer string) {
	c.evaluator.Overrides().RemoveLayer(layer)
}

// GetExperimentsInLayer lists the experiments allocated under a layer.
func (c *Client) GetExperimentsInLayer(layer string) []string {
	return c.store.GetExperimentsInLayer(layer)
}

// GetVariants summarizes an experiment's group allocation: group name to its
// value and percentage share.
func (c *Client) GetVariants(experiment string) map[string]map[string]any {
	return c.evaluator.GetVariants(experiment)
}

// MetricsHandler serves the SDK's Prometheus registry, for applications that
// want to mount it on their own mux.
func (c *Client) MetricsHandler() http.Handler {
	return c.metrics.Handler()
}

// FlushEvents forces immediate delivery of all buffered events.
func (c *Client) FlushEvents(ctx context.Context) {
	c.events.Flush(ctx)
}
