package gatewise

import (
	"context"
	"errors"
	"testing"
)

// The singleton lifecycle is order-sensitive, so one test walks the whole
// sequence: failed init, retry, duplicate init, shutdown, re-init.
func TestInitializeLifecycle(t *testing.T) {
	ctx := context.Background()
	user := User{UserID: "u-1"}

	// A missing sdk key outside local mode fails, and the failure must not
	// consume the singleton slot.
	if err := Initialize(ctx, "", &Options{}); err == nil {
		t.Fatal("expected error for empty sdk key outside local mode")
	} else if errors.Is(err, ErrAlreadyInitialized) {
		t.Fatal("failed Initialize must not report ErrAlreadyInitialized")
	}
	if CheckGate(user, "always_on") {
		t.Error("gate checks must fail closed before a successful Initialize")
	}

	// Retrying after a failure works.
	if err := Initialize(ctx, "", &Options{
		LocalMode:       true,
		BootstrapValues: []byte(bootstrapPayload),
	}); err != nil {
		t.Fatalf("retry after failed Initialize: %v", err)
	}
	if !CheckGate(user, "always_on") {
		t.Error("always_on should pass after Initialize")
	}
	if got := GetExperiment(user, "checkout_exp").GetString("button", ""); got != "green" {
		t.Errorf("button = %q, want green", got)
	}

	if err := Initialize(ctx, "", &Options{LocalMode: true}); !errors.Is(err, ErrAlreadyInitialized) {
		t.Fatalf("second Initialize: err = %v, want ErrAlreadyInitialized", err)
	}

	// Shutdown releases the singleton so a host can initialize again.
	if err := Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if CheckGate(user, "always_on") {
		t.Error("gate checks must fail closed after Shutdown")
	}
	if err := Initialize(ctx, "", &Options{
		LocalMode:       true,
		BootstrapValues: []byte(bootstrapPayload),
	}); err != nil {
		t.Fatalf("re-Initialize after Shutdown: %v", err)
	}
	if err := Shutdown(ctx); err != nil {
		t.Fatalf("final Shutdown: %v", err)
	}
}
