// Package events buffers exposure and custom events and delivers them in
// batches. Exposures are deduplicated over a short window so hot gates do not
// flood the event endpoint with identical records.
package events

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gatewise/gatewise/internal/core"
	"github.com/gatewise/gatewise/internal/metrics"
	"github.com/gatewise/gatewise/internal/transport"
)

// Exposure event names, consumed by the analytics backend.
const (
	GateExposureEventName   = "gatewise::gate_exposure"
	ConfigExposureEventName = "gatewise::config_exposure"
	LayerExposureEventName  = "gatewise::layer_exposure"
)

const (
	defaultMaxQueue      = 1000
	defaultFlushInterval = time.Minute
	dedupeWindow         = time.Minute
)

// Event is one queued analytics record. Field names are a wire contract.
type Event struct {
	EventName          string                   `json:"eventName"`
	User               core.User                `json:"user"`
	Value              any                      `json:"value,omitempty"`
	Metadata           map[string]string        `json:"metadata,omitempty"`
	SecondaryExposures []core.SecondaryExposure `json:"secondaryExposures"`
	Time               int64                    `json:"time"`
}

// Logger buffers events and flushes them on a timer or when the queue fills.
type Logger struct {
	transport *transport.Client
	log       *slog.Logger
	metrics   *metrics.Metrics
	sessionID string

	maxQueue      int
	flushInterval time.Duration

	mu       sync.Mutex
	queue    []Event
	seen     map[string]time.Time
	lastCull time.Time
}

// Config assembles a Logger. Zero values fall back to production defaults.
type Config struct {
	Transport     *transport.Client
	Logger        *slog.Logger
	Metrics       *metrics.Metrics
	MaxQueue      int
	FlushInterval time.Duration
}

// New creates an event logger. It does not start flushing until Run is
// called.
func New(cfg Config) *Logger {
	maxQueue := cfg.MaxQueue
	if maxQueue <= 0 {
		maxQueue = defaultMaxQueue
	}
	flushInterval := cfg.FlushInterval
	if flushInterval <= 0 {
		flushInterval = defaultFlushInterval
	}
	return &Logger{
		transport:     cfg.Transport,
		log:           cfg.Logger,
		metrics:       cfg.Metrics,
		sessionID:     uuid.NewString(),
		maxQueue:      maxQueue,
		flushInterval: flushInterval,
		seen:          make(map[string]time.Time),
		lastCull:      time.Now(),
	}
}

// Run flushes on the configured interval until ctx is cancelled, then drains
// the queue one last time.
func (l *Logger) Run(ctx context.Context) {
	ticker := time.NewTicker(l.flushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			l.Flush(context.WithoutCancel(ctx))
			return
		case <-ticker.C:
			l.Flush(ctx)
		}
	}
}

// LogGateExposure queues a gate exposure event.
func (l *Logger) LogGateExposure(user *core.User, gate string, eval core.ConfigEvaluation, isManual bool) {
	value := strconv.FormatBool(eval.BoolValue)
	if !l.shouldLog(strings.Join([]string{gate, eval.RuleID, value, user.UserID}, "|")) {
		return
	}
	metadata := map[string]string{
		"gate":      gate,
		"gateValue": value,
		"ruleID":    eval.RuleID,
	}
	l.enqueue(l.exposureEvent(GateExposureEventName, user, metadata, eval.SecondaryExposures, eval.EvaluationDetails, isManual))
}

// LogConfigExposure queues a dynamic config or experiment exposure event.
func (l *Logger) LogConfigExposure(user *core.User, config string, eval core.ConfigEvaluation, isManual bool) {
	if !l.shouldLog(strings.Join([]string{config, eval.RuleID, user.UserID}, "|")) {
		return
	}
	metadata := map[string]string{
		"config": config,
		"ruleID": eval.RuleID,
	}
	l.enqueue(l.exposureEvent(ConfigExposureEventName, user, metadata, eval.SecondaryExposures, eval.EvaluationDetails, isManual))
}

// LogLayerExposure queues a layer parameter exposure. The allocated
// experiment is attributed only when the parameter was explicitly claimed by
// the delegate; implicit parameters report the undelegated exposure set.
func (l *Logger) LogLayerExposure(user *core.User, layer, parameter string, eval core.ConfigEvaluation, isManual bool) {
	explicit := false
	for _, p := range eval.ExplicitParameters {
		if p == parameter {
			explicit = true
			break
		}
	}
	allocated := ""
	exposures := eval.UndelegatedSecondaryExposures
	if explicit {
		allocated = eval.ConfigDelegate
		exposures = eval.SecondaryExposures
	}

	if !l.shouldLog(strings.Join([]string{layer, eval.RuleID, allocated, parameter, user.UserID}, "|")) {
		return
	}
	metadata := map[string]string{
		"config":              layer,
		"ruleID":              eval.RuleID,
		"parameterName":       parameter,
		"allocatedExperiment": allocated,
		"isExplicitParameter": strconv.FormatBool(explicit),
	}
	l.enqueue(l.exposureEvent(LayerExposureEventName, user, metadata, exposures, eval.EvaluationDetails, isManual))
}

// LogEvent queues a custom application event. Custom events are never
// deduplicated.
func (l *Logger) LogEvent(user *core.User, eventName string, value any, metadata map[string]string) {
	l.enqueue(Event{
		EventName: eventName,
		User:      user.LoggingCopy(),
		Value:     value,
		Metadata:  metadata,
		Time:      time.Now().UnixMilli(),
	})
}

func (l *Logger) exposureEvent(name string, user *core.User, metadata map[string]string, exposures []core.SecondaryExposure, details core.EvaluationDetails, isManual bool) Event {
	for k, v := range details.ToMap() {
		metadata[k] = v
	}
	if isManual {
		metadata["isManualExposure"] = "true"
	}
	if exposures == nil {
		exposures = []core.SecondaryExposure{}
	}
	return Event{
		EventName:          name,
		User:               user.LoggingCopy(),
		Metadata:           metadata,
		SecondaryExposures: exposures,
		Time:               time.Now().UnixMilli(),
	}
}

// shouldLog applies the dedupe window to an exposure key. The seen set is
// culled lazily so it cannot grow without bound.
func (l *Logger) shouldLog(key string) bool {
	now := time.Now()
	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastCull) > dedupeWindow {
		for k, at := range l.seen {
			if now.Sub(at) > dedupeWindow {
				delete(l.seen, k)
			}
		}
		l.lastCull = now
	}

	if at, ok := l.seen[key]; ok && now.Sub(at) <= dedupeWindow {
		if l.metrics != nil {
			l.metrics.RecordEvent("deduped", 1)
		}
		return false
	}
	l.seen[key] = now
	return true
}

func (l *Logger) enqueue(event Event) {
	l.mu.Lock()
	if len(l.queue) >= l.maxQueue {
		// Drop oldest-first pressure onto the caller side instead: the event
		// is discarded and counted, the queue is left intact for the flusher.
		l.mu.Unlock()
		if l.metrics != nil {
			l.metrics.RecordEvent("dropped", 1)
		}
		return
	}
	l.queue = append(l.queue, event)
	depth := len(l.queue)
	l.mu.Unlock()

	if l.metrics != nil {
		l.metrics.RecordEvent("queued", 1)
		l.metrics.SetEventQueueDepth(depth)
	}
	if depth >= l.maxQueue {
		go l.Flush(context.Background())
	}
}

// Flush delivers all queued events in one batch. Failed batches are dropped
// after transport retries are exhausted; exposure delivery is best effort.
func (l *Logger) Flush(ctx context.Context) {
	l.mu.Lock()
	batch := l.queue
	l.queue = nil
	l.mu.Unlock()

	if l.metrics != nil {
		l.metrics.SetEventQueueDepth(0)
	}
	if len(batch) == 0 || l.transport == nil {
		return
	}

	payload := map[string]any{
		"events": batch,
		"sdkInfo": map[string]string{
			"sessionID": l.sessionID,
		},
	}
	if err := l.transport.LogEvents(ctx, payload); err != nil {
		l.log.Error("event batch delivery failed", "error", err, "events", len(batch))
		if l.metrics != nil {
			l.metrics.RecordEvent("dropped", len(batch))
		}
		return
	}
	if l.metrics != nil {
		l.metrics.RecordEvent("flushed", len(batch))
	}
}

// QueueDepth reports the current number of buffered events.
func (l *Logger) QueueDepth() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}
