package gatewise

import (
	"context"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/gatewise/gatewise/internal/datastore"
)

// Options configures a [Client]. The zero value is usable: every field falls
// back to its production default, and [OptionsFromEnv] fills the same fields
// from GATEWISE_* environment variables instead.
type Options struct {
	// APIURL overrides the API base URL.
	APIURL string `env:"GATEWISE_API_URL"`
	// PollInterval is how often the spec store re-syncs from the network.
	PollInterval time.Duration `env:"GATEWISE_POLL_INTERVAL" envDefault:"10s"`
	// RequestTimeout bounds each API round trip.
	RequestTimeout time.Duration `env:"GATEWISE_REQUEST_TIMEOUT" envDefault:"10s"`
	// EventFlushInterval is how often buffered events are delivered.
	EventFlushInterval time.Duration `env:"GATEWISE_EVENT_FLUSH_INTERVAL" envDefault:"60s"`
	// EventQueueSize caps the number of buffered events.
	EventQueueSize int `env:"GATEWISE_EVENT_QUEUE_SIZE" envDefault:"1000"`
	// LogLevel sets the SDK logger's minimum level (debug, info, warn, error).
	LogLevel string `env:"GATEWISE_LOG_LEVEL" envDefault:"info"`
	// LocalMode disables all network traffic. Evaluations run against the
	// bootstrap payload, the data adapter, and local overrides only.
	LocalMode bool `env:"GATEWISE_LOCAL_MODE"`

	// BootstrapValues is an optional download_config_specs payload used to
	// seed the store before any network or adapter read.
	BootstrapValues []byte `env:"-"`
	// DataAdapter persists spec payloads across restarts. See
	// [NewPostgresDataAdapter], [NewRedisDataAdapter], [NewFileDataAdapter].
	DataAdapter DataAdapter `env:"-"`
}

// OptionsFromEnv builds Options from GATEWISE_* environment variables.
func OptionsFromEnv() (*Options, error) {
	opts := &Options{}
	if err := env.Parse(opts); err != nil {
		return nil, fmt.Errorf("parse options from environment: %w", err)
	}
	return opts, nil
}

func (o *Options) withDefaults() *Options {
	out := *o
	if out.PollInterval <= 0 {
		out.PollInterval = 10 * time.Second
	}
	if out.RequestTimeout <= 0 {
		out.RequestTimeout = 10 * time.Second
	}
	if out.EventFlushInterval <= 0 {
		out.EventFlushInterval = time.Minute
	}
	if out.EventQueueSize <= 0 {
		out.EventQueueSize = 1000
	}
	return &out
}

// DataAdapter is the persistence contract for spec payloads. Implementations
// must be safe for concurrent use. Get returns [ErrAdapterValueNotFound] when
// no value exists for a key.
type DataAdapter interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Shutdown(ctx context.Context) error
}

// ErrAdapterValueNotFound is the sentinel a [DataAdapter] returns for a
// missing key.
var ErrAdapterValueNotFound = datastore.ErrNotFound

// NewPostgresDataAdapter connects to PostgreSQL, applies the SDK's schema
// migrations, and returns an adapter storing spec payloads in a keyed table.
func NewPostgresDataAdapter(ctx context.Context, connString string) (DataAdapter, error) {
	return datastore.Connect(ctx, connString)
}

// NewRedisDataAdapter connects to Redis (redis://... URL) and returns an
// adapter storing spec payloads as string keys.
func NewRedisDataAdapter(ctx context.Context, url string) (DataAdapter, error) {
	return datastore.ConnectRedis(ctx, datastore.RedisConfig{
		ConnectionURL:  url,
		RetryAttempts:  3,
		RetryInterval:  5 * time.Second,
		ConnectTimeout: 30 * time.Second,
	})
}

// NewFileDataAdapter returns an adapter storing spec payloads as files under
// dir. File changes made by other processes are picked up live.
func NewFileDataAdapter(dir string) (DataAdapter, error) {
	return datastore.NewFileAdapter(dir)
}
