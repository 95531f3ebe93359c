package updater

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gatewise/gatewise/internal/core"
	"github.com/gatewise/gatewise/internal/datastore"
	"github.com/gatewise/gatewise/internal/store"
	"github.com/gatewise/gatewise/internal/transport"
)

const validPayload = `{
	"feature_gates": [{"name": "g1", "type": "feature_gate", "salt": "s", "enabled": true, "rules": []}],
	"dynamic_configs": [],
	"layer_configs": [],
	"layers": {},
	"id_lists": {},
	"time": 1000,
	"has_updates": true
}`

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newUpdater(t *testing.T, cfg Config) *Updater {
	t.Helper()
	cfg.Logger = discardLogger()
	u, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return u
}

func specServer(t *testing.T, payload string) *transport.Client {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(payload))
	}))
	t.Cleanup(server.Close)
	return transport.New("k", server.URL, time.Second, discardLogger())
}

func TestBootstrapPrefersDataAdapter(t *testing.T) {
	adapter, err := datastore.NewFileAdapter(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileAdapter: %v", err)
	}
	ctx := context.Background()
	if err := adapter.Set(ctx, datastore.KeyConfigSpecs, []byte(validPayload)); err != nil {
		t.Fatalf("seed adapter: %v", err)
	}

	st := store.New()
	u := newUpdater(t, Config{
		Store:     st,
		Adapter:   adapter,
		Bootstrap: []byte(`{"has_updates": true, "time": 5, "feature_gates": []}`),
	})

	if err := u.Bootstrap(ctx); err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	if st.EvaluationReason() != core.ReasonDataAdapter {
		t.Errorf("reason = %q, want %q", st.EvaluationReason(), core.ReasonDataAdapter)
	}
	if st.GetGate("g1") == nil {
		t.Error("adapter payload not applied")
	}
}

func TestBootstrapFallsBackToPayload(t *testing.T) {
	st := store.New()
	u := newUpdater(t, Config{
		Store:     st,
		Bootstrap: []byte(validPayload),
	})

	if err := u.Bootstrap(context.Background()); err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	if st.EvaluationReason() != core.ReasonBootstrap {
		t.Errorf("reason = %q, want %q", st.EvaluationReason(), core.ReasonBootstrap)
	}
}

func TestBootstrapFromNetworkWritesBackToAdapter(t *testing.T) {
	adapter, err := datastore.NewFileAdapter(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileAdapter: %v", err)
	}
	st := store.New()
	u := newUpdater(t, Config{
		Store:     st,
		Transport: specServer(t, validPayload),
		Adapter:   adapter,
	})

	ctx := context.Background()
	if err := u.Bootstrap(ctx); err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	if st.EvaluationReason() != core.ReasonNetwork {
		t.Errorf("reason = %q, want %q", st.EvaluationReason(), core.ReasonNetwork)
	}

	cached, err := adapter.Get(ctx, datastore.KeyConfigSpecs)
	if err != nil {
		t.Fatalf("adapter should hold the synced payload: %v", err)
	}
	if string(cached) != validPayload {
		t.Error("adapter payload does not match network payload")
	}
}

func TestInvalidPayloadRejected(t *testing.T) {
	st := store.New()
	u := newUpdater(t, Config{
		Store:     st,
		Bootstrap: []byte(`{"feature_gates": "not-an-array", "has_updates": true}`),
	})

	if err := u.Bootstrap(context.Background()); err == nil {
		t.Fatal("expected bootstrap to fail on invalid payload")
	}
	if st.EvaluationReason() != core.ReasonUninitialized {
		t.Errorf("reason = %q, want store untouched", st.EvaluationReason())
	}
}

func TestNoUpdatesKeepsSnapshot(t *testing.T) {
	st := store.New()
	u := newUpdater(t, Config{
		Store:     st,
		Transport: specServer(t, `{"has_updates": false}`),
		Bootstrap: []byte(validPayload),
	})

	ctx := context.Background()
	if err := u.Bootstrap(ctx); err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	before := st.LastUpdateTime()

	if err := u.syncFromNetwork(ctx); err != nil {
		t.Fatalf("syncFromNetwork: %v", err)
	}
	if st.LastUpdateTime() != before {
		t.Error("no-update response must not disturb the snapshot")
	}
	if st.EvaluationReason() != core.ReasonBootstrap {
		t.Errorf("reason = %q, want unchanged %q", st.EvaluationReason(), core.ReasonBootstrap)
	}
}
