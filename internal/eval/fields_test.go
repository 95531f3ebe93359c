package eval

import (
	"testing"

	"github.com/gatewise/gatewise/internal/core"
)

func TestUserFieldResolution(t *testing.T) {
	user := &core.User{
		UserID:     "u-1",
		Email:      "dev@example.com",
		AppVersion: "1.2.3",
		Custom: map[string]any{
			"plan":  "pro",
			"seats": float64(4),
		},
		PrivateAttributes: map[string]any{
			"email":  "private@example.com",
			"secret": "hush",
		},
	}

	tests := []struct {
		name  string
		field string
		want  any
	}{
		{"canonical", "email", "dev@example.com"},
		{"canonical alias case", "EMAIL", "dev@example.com"},
		{"userid alias", "user_id", "u-1"},
		{"app version alias", "app_version", "1.2.3"},
		{"custom", "plan", "pro"},
		{"custom number", "seats", float64(4)},
		{"private fallback", "secret", "hush"},
		{"absent", "nope", nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := userField(user, tc.field); got != tc.want {
				t.Errorf("userField(%q) = %v, want %v", tc.field, got, tc.want)
			}
		})
	}
}

// An empty canonical field falls through to custom and private maps, but an
// empty string found nowhere resolves to nil, not "".
func TestUserFieldEmptyStringFallback(t *testing.T) {
	user := &core.User{
		UserID: "u-1",
		Custom: map[string]any{"email": "custom@example.com"},
	}
	if got := userField(user, "email"); got != "custom@example.com" {
		t.Errorf("empty canonical email should fall back to custom, got %v", got)
	}

	bare := &core.User{UserID: "u-1"}
	if got := userField(bare, "email"); got != nil {
		t.Errorf("missing email should resolve to nil, got %v", got)
	}
}

func TestUnitID(t *testing.T) {
	user := &core.User{
		UserID:    "u-1",
		CustomIDs: map[string]string{"orgID": "org-9", "deviceid": "d-3"},
	}

	tests := []struct {
		idType string
		want   string
	}{
		{"", "u-1"},
		{"userID", "u-1"},
		{"USERID", "u-1"},
		{"orgID", "org-9"},
		{"DeviceID", "d-3"},
		{"unknown", ""},
	}
	for _, tc := range tests {
		if got := user.UnitID(tc.idType); got != tc.want {
			t.Errorf("UnitID(%q) = %q, want %q", tc.idType, got, tc.want)
		}
	}
}

func TestEnvironmentField(t *testing.T) {
	user := &core.User{Environment: map[string]string{"tier": "staging"}}
	if got := environmentField(user, "Tier"); got != "staging" {
		t.Errorf("got %v, want staging", got)
	}
	if got := environmentField(&core.User{}, "tier"); got != nil {
		t.Errorf("got %v, want nil", got)
	}
}
