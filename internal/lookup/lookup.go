// Package lookup supplies the pure lookup collaborators consumed by
// IP_BASED and UA_BASED conditions: IP-to-country resolution and user-agent
// parsing. Both defaults are immutable after construction and safe for
// concurrent use.
package lookup

import (
	"strings"
	"sync"

	"github.com/statsig-io/ip3country-go/pkg/countrylookup"
	"github.com/ua-parser/uap-go/uaparser"
)

// User-agent fields a UA_BASED condition may target.
const (
	FieldOSName         = "os_name"
	FieldOSVersion      = "os_version"
	FieldBrowserName    = "browser_name"
	FieldBrowserVersion = "browser_version"
)

// CountryFunc maps an IP address to an ISO country code. ok is false when
// the address cannot be resolved.
type CountryFunc func(ip string) (country string, ok bool)

// UserAgentFunc extracts a named field from a raw user-agent string. ok is
// false when the field is not recognized or cannot be derived.
type UserAgentFunc func(userAgent, field string) (value string, ok bool)

var (
	countryOnce sync.Once
	countryDB   *countrylookup.CountryLookup
)

// Country resolves IPs against the embedded ip3country table. The table is
// loaded once, on first use.
func Country(ip string) (string, bool) {
	countryOnce.Do(func() {
		countryDB = countrylookup.New()
	})
	return countryDB.LookupIp(ip)
}

var (
	uaOnce   sync.Once
	uaParser *uaparser.Parser
)

// UserAgent parses ua with the embedded uap-core ruleset and returns the
// requested field. Version fields are "major.minor.patch" with "0" filling
// missing components.
func UserAgent(ua, field string) (string, bool) {
	uaOnce.Do(func() {
		uaParser = uaparser.NewFromSaved()
	})

	switch normalizeField(field) {
	case FieldOSName:
		return uaParser.ParseOs(ua).Family, true
	case FieldOSVersion:
		os := uaParser.ParseOs(ua)
		return joinVersion(os.Major, os.Minor, os.Patch), true
	case FieldBrowserName:
		return uaParser.ParseUserAgent(ua).Family, true
	case FieldBrowserVersion:
		agent := uaParser.ParseUserAgent(ua)
		return joinVersion(agent.Major, agent.Minor, agent.Patch), true
	}
	return "", false
}

func normalizeField(field string) string {
	switch strings.ToLower(field) {
	case "os_name", "osname":
		return FieldOSName
	case "os_version", "osversion":
		return FieldOSVersion
	case "browser_name", "browsername":
		return FieldBrowserName
	case "browser_version", "browserversion":
		return FieldBrowserVersion
	}
	return ""
}

func joinVersion(major, minor, patch string) string {
	return strings.Join([]string{orZero(major), orZero(minor), orZero(patch)}, ".")
}

func orZero(part string) string {
	if strings.TrimSpace(part) == "" {
		return "0"
	}
	return part
}
