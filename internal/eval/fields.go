package eval

import (
	"strings"

	"github.com/gatewise/gatewise/internal/core"
)

// userField extracts a named attribute from the user record. Canonical
// fields match case-insensitively under their common aliases; anything else
// falls back to the custom map, then the private attributes (exact key
// first, then lowercased). Returns nil when the field is nowhere present;
// callers must treat nil distinctly from the empty string.
func userField(user *core.User, field string) any {
	value := canonicalField(user, field)
	if value == nil {
		value = canonicalField(user, strings.ToLower(field))
	}

	if isMissing(value) && user.Custom != nil {
		if v, ok := user.Custom[field]; ok {
			value = v
		} else if v, ok := user.Custom[strings.ToLower(field)]; ok {
			value = v
		}
	}
	if isMissing(value) && user.PrivateAttributes != nil {
		if v, ok := user.PrivateAttributes[field]; ok {
			value = v
		} else if v, ok := user.PrivateAttributes[strings.ToLower(field)]; ok {
			value = v
		}
	}

	return value
}

func canonicalField(user *core.User, field string) any {
	var v string
	switch field {
	case "userid", "user_id", "userID", "userId":
		v = user.UserID
	case "email":
		v = user.Email
	case "ip", "ipaddress", "ip_address":
		v = user.IP
	case "useragent", "user_agent", "userAgent":
		v = user.UserAgent
	case "country":
		v = user.Country
	case "locale":
		v = user.Locale
	case "appversion", "app_version", "appVersion":
		v = user.AppVersion
	default:
		return nil
	}
	if v == "" {
		return nil
	}
	return v
}

func isMissing(value any) bool {
	if value == nil {
		return true
	}
	s, ok := value.(string)
	return ok && s == ""
}

// environmentField reads a tier tag off the user's environment, with a
// lowercased-key fallback.
func environmentField(user *core.User, field string) any {
	if user.Environment == nil {
		return nil
	}
	if v, ok := user.Environment[field]; ok {
		return v
	}
	if v, ok := user.Environment[strings.ToLower(field)]; ok {
		return v
	}
	return nil
}
