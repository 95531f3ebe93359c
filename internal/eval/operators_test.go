package eval

import (
	"testing"
	"time"
)

func TestLooseEqual(t *testing.T) {
	tests := []struct {
		name string
		a, b any
		want bool
	}{
		{"both nil", nil, nil, true},
		{"nil vs value", nil, "x", false},
		{"equal strings", "abc", "abc", true},
		{"case differs", "abc", "ABC", false},
		{"string vs number", "1", float64(1), false},
		{"int vs float", 1, float64(1), true},
		{"float forms", float64(2), float32(2), true},
		{"bools", true, true, true},
		{"bool vs number", true, float64(1), false},
		{"slices", []any{"a", float64(1)}, []any{"a", float64(1)}, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := looseEqual(tc.a, tc.b); got != tc.want {
				t.Errorf("looseEqual(%v, %v) = %v, want %v", tc.a, tc.b, got, tc.want)
			}
		})
	}
}

func TestToString(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  string
		ok    bool
	}{
		{"string", "x", "x", true},
		{"whole float", float64(3), "3", true},
		{"fractional float", 3.5, "3.5", true},
		{"bool", true, "true", true},
		{"int", 42, "42", true},
		{"nil", nil, "", false},
		{"map", map[string]any{}, "", false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := toString(tc.value)
			if got != tc.want || ok != tc.ok {
				t.Errorf("toString(%v) = (%q, %v), want (%q, %v)", tc.value, got, ok, tc.want, tc.ok)
			}
		})
	}
}

func TestVersionCompareComponents(t *testing.T) {
	tests := []struct {
		v1, v2 string
		want   int
	}{
		{"1.2.3", "1.2.3", 0},
		{"1.2.3", "1.2", 1},
		{"1.2", "1.2.0", 0},
		{"1.10", "1.9", 1},
		{"0.9.9", "1.0.0", -1},
		{"2", "1.999.999", 1},
	}
	for _, tc := range tests {
		got, err := versionCompare(tc.v1, tc.v2)
		if err != nil {
			t.Fatalf("versionCompare(%q, %q): %v", tc.v1, tc.v2, err)
		}
		if got != tc.want {
			t.Errorf("versionCompare(%q, %q) = %d, want %d", tc.v1, tc.v2, got, tc.want)
		}
	}

	if _, err := versionCompare("1.x.3", "1.2.3"); err == nil {
		t.Error("non-numeric component should error")
	}
}

func TestStripPrerelease(t *testing.T) {
	if got := stripPrerelease("1.2.3-beta.4"); got != "1.2.3" {
		t.Errorf("got %q, want %q", got, "1.2.3")
	}
	if got := stripPrerelease("1.2.3"); got != "1.2.3" {
		t.Errorf("got %q, want %q", got, "1.2.3")
	}
}

func TestEpochToTimeUnits(t *testing.T) {
	// 10 digits reads as seconds, 13 as milliseconds; both name the same
	// instant here.
	sec := epochToTime(1700000000)
	ms := epochToTime(1700000000000)
	if !sec.Equal(ms) {
		t.Errorf("second and millisecond epochs disagree: %v vs %v", sec, ms)
	}
	if sec.Year() != 2023 {
		t.Errorf("year = %d, want 2023", sec.Year())
	}
}

func TestParseTimeISO(t *testing.T) {
	got, ok, err := parseTime("2024-06-01T12:30:00Z")
	if err != nil || !ok {
		t.Fatalf("parseTime: ok=%v err=%v", ok, err)
	}
	want := time.Date(2024, 6, 1, 12, 30, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("got %v, want %v", got, want)
	}

	if _, _, err := parseTime("yesterday-ish"); err == nil {
		t.Error("unparseable string should error")
	}
}

func TestSameDay(t *testing.T) {
	a := time.Date(2024, 6, 1, 0, 1, 0, 0, time.UTC)
	b := time.Date(2024, 6, 1, 23, 59, 0, 0, time.UTC)
	c := time.Date(2024, 6, 2, 0, 0, 1, 0, time.UTC)
	if !sameDay(a, b) {
		t.Error("same calendar day should match")
	}
	if sameDay(b, c) {
		t.Error("adjacent days should not match")
	}
}

func TestMatchStringInArray(t *testing.T) {
	tests := []struct {
		name   string
		value  any
		target any
		cmp    func(a, b string) bool
		want   bool
	}{
		{"fold match", "Hello", []any{"hello"}, equalsIgnoreCase, true},
		{"exact mismatch", "Hello", []any{"hello"}, equalsExact, false},
		{"single target", "hello", "hello", equalsIgnoreCase, true},
		{"prefix fold", "HelloWorld", []any{"hello"}, startsWithAnyCase, true},
		{"suffix fold", "HelloWorld", []any{"WORLD"}, endsWithAnyCase, true},
		{"contains fold", "say HELLO now", []any{"hello"}, containsAnyCase, true},
		{"numeric value", float64(7), []any{"7"}, equalsExact, true},
		{"nil value", nil, []any{"x"}, equalsIgnoreCase, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := matchStringInArray(tc.value, tc.target, tc.cmp); got != tc.want {
				t.Errorf("got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestArrayContains(t *testing.T) {
	haystack := []any{"a", float64(2), true}
	if !arrayContainsAny(haystack, []any{"z", float64(2)}) {
		t.Error("expected any-match on 2")
	}
	if arrayContainsAny(haystack, []any{"z", "2"}) {
		t.Error("string \"2\" must not match number 2")
	}
	if !arrayContainsAll(haystack, []any{"a", true}) {
		t.Error("expected all-match")
	}
	if arrayContainsAll(haystack, []any{"a", "missing"}) {
		t.Error("missing element should fail all-match")
	}
}
