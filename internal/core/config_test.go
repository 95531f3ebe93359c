package core

import (
	"reflect"
	"testing"
)

func TestDynamicConfigGetters(t *testing.T) {
	cfg := DynamicConfig{
		Name: "checkout",
		Value: map[string]any{
			"title":    "Checkout",
			"enabled":  true,
			"price":    12.5,
			"retries":  float64(3),
			"variants": []any{"a", "b"},
			"nested":   map[string]any{"k": "v"},
		},
	}

	if got := cfg.GetString("title", ""); got != "Checkout" {
		t.Errorf("GetString = %q", got)
	}
	if got := cfg.GetString("missing", "fb"); got != "fb" {
		t.Errorf("GetString fallback = %q", got)
	}
	if got := cfg.GetString("enabled", "fb"); got != "fb" {
		t.Error("type mismatch must fall back")
	}
	if !cfg.GetBool("enabled", false) {
		t.Error("GetBool = false")
	}
	if got := cfg.GetFloat64("price", 0); got != 12.5 {
		t.Errorf("GetFloat64 = %v", got)
	}
	if got := cfg.GetInt("retries", 0); got != 3 {
		t.Errorf("GetInt = %d", got)
	}
	if got := cfg.GetSlice("variants", nil); !reflect.DeepEqual(got, []any{"a", "b"}) {
		t.Errorf("GetSlice = %v", got)
	}
	if got := cfg.GetMap("nested", nil); !reflect.DeepEqual(got, map[string]any{"k": "v"}) {
		t.Errorf("GetMap = %v", got)
	}
}

func TestLayerParameterReadsReportExposure(t *testing.T) {
	var seen []string
	layer := NewLayer("ui_layer", "rule_1", "Control",
		map[string]any{"density": "cozy", "rows": float64(4)},
		"checkout_exp", []string{"density"},
		func(param string) { seen = append(seen, param) })

	if got := layer.GetString("density", ""); got != "cozy" {
		t.Errorf("GetString = %q", got)
	}
	if got := layer.GetInt("rows", 0); got != 4 {
		t.Errorf("GetInt = %d", got)
	}
	// Missing parameters never fire an exposure.
	if got := layer.GetBool("missing", true); !got {
		t.Error("fallback not returned")
	}

	if want := []string{"density", "rows"}; !reflect.DeepEqual(seen, want) {
		t.Errorf("exposed parameters = %v, want %v", seen, want)
	}
}

func TestLayerNilExposureCallback(t *testing.T) {
	layer := NewLayer("l", "", "", map[string]any{"k": "v"}, "", nil, nil)
	if got := layer.GetString("k", ""); got != "v" {
		t.Errorf("GetString = %q", got)
	}
}
