package core

import "strings"

// User is the record evaluations run against. UserID or at least one custom
// ID is expected; without either, every bucketing decision hashes the empty
// string and all users land in the same bucket.
//
// PrivateAttributes participate in evaluation but are stripped from every
// logged copy of the user.
type User struct {
	UserID            string            `json:"userID"`
	CustomIDs         map[string]string `json:"customIDs,omitempty"`
	Email             string            `json:"email,omitempty"`
	IP                string            `json:"ip,omitempty"`
	UserAgent         string            `json:"userAgent,omitempty"`
	Country           string            `json:"country,omitempty"`
	Locale            string            `json:"locale,omitempty"`
	AppVersion        string            `json:"appVersion,omitempty"`
	Custom            map[string]any    `json:"custom,omitempty"`
	PrivateAttributes map[string]any    `json:"privateAttributes,omitempty"`
	Environment       map[string]string `json:"statsigEnvironment,omitempty"`
}

// UnitID resolves the unit identifier for the given idType: the userID for
// an empty or "userid" (any case) idType, otherwise the matching custom ID
// (exact key first, then lowercased).
func (u *User) UnitID(idType string) string {
	if idType == "" || strings.EqualFold(idType, DefaultIDType) {
		return u.UserID
	}
	if u.CustomIDs == nil {
		return ""
	}
	if v, ok := u.CustomIDs[idType]; ok {
		return v
	}
	return u.CustomIDs[strings.ToLower(idType)]
}

// LoggingCopy returns a copy of the user safe to serialize into log events.
// PrivateAttributes are never carried over.
func (u *User) LoggingCopy() User {
	cp := *u
	cp.PrivateAttributes = nil
	return cp
}
