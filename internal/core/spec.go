// Package core defines the data model shared by the evaluation engine and the
// public API: downloaded spec definitions, users, and evaluation results.
//
// JSON field names on these types mirror the download_config_specs payload
// and the exposure wire contract; they are consumed by other systems and must
// not be renamed.
package core

import "encoding/json"

// Spec entity classifications for dynamic configs.
const (
	EntityDynamicConfig = "dynamic_config"
	EntityExperiment    = "experiment"
	EntityLayer         = "layer"
	EntitySegment       = "segment"
	EntityHoldout       = "holdout"
)

// Spec types.
const (
	TypeFeatureGate   = "feature_gate"
	TypeDynamicConfig = "dynamic_config"
)

// Well-known rule IDs surfaced in evaluation results.
const (
	RuleIDDefault  = "default"
	RuleIDDisabled = "disabled"
)

// DefaultIDType is the user identifier dimension used when a spec or rule
// does not name one.
const DefaultIDType = "userID"

// Spec is a single gate, dynamic config, experiment, or layer definition as
// downloaded from the spec server. Specs are replaced wholesale on every
// sync; they are never mutated field by field.
type Spec struct {
	Name               string         `json:"name"`
	Type               string         `json:"type"`
	Entity             string         `json:"entity"`
	Salt               string         `json:"salt"`
	Enabled            bool           `json:"enabled"`
	DefaultValue       any            `json:"defaultValue"`
	Rules              []Rule         `json:"rules"`
	IDType             string         `json:"idType"`
	ExplicitParameters []string       `json:"explicitParameters"`
	IsActive           bool           `json:"isActive"`
	HasSharedParams    bool           `json:"hasSharedParams"`
	TargetAppIDs       []string       `json:"targetAppIDs,omitempty"`
	Version            int64          `json:"version,omitempty"`
}

// Rule is an ordered AND-combination of conditions plus a return value and
// rollout percentage. Rules within a spec evaluate strictly in declaration
// order; the first rule whose conditions all pass terminates iteration.
type Rule struct {
	Name              string      `json:"name"`
	GroupName         string      `json:"groupName"`
	PassPercentage    float64     `json:"passPercentage"`
	ReturnValue       any         `json:"returnValue"`
	ID                string      `json:"id"`
	Salt              string      `json:"salt"`
	Conditions        []Condition `json:"conditions"`
	IDType            string      `json:"idType"`
	ConfigDelegate    string      `json:"configDelegate,omitempty"`
	IsExperimentGroup bool        `json:"isExperimentGroup,omitempty"`
}

// BucketSalt returns the salt used in the percentage rollout hash, falling
// back to the rule ID when no explicit salt was provided.
func (r Rule) BucketSalt() string {
	if r.Salt != "" {
		return r.Salt
	}
	return r.ID
}

// Condition is a single predicate over a user or environment attribute.
// Type is matched case-insensitively.
type Condition struct {
	Type             string         `json:"type"`
	TargetValue      any            `json:"targetValue"`
	Operator         string         `json:"operator"`
	Field            string         `json:"field"`
	AdditionalValues map[string]any `json:"additionalValues"`
	IDType           string         `json:"idType"`
}

// DownloadedSpecs is the deserialized form of a download_config_specs
// payload. The evaluator never parses JSON itself; it consumes this
// already-typed snapshot.
type DownloadedSpecs struct {
	DynamicConfigs []Spec              `json:"dynamic_configs"`
	FeatureGates   []Spec              `json:"feature_gates"`
	LayerConfigs   []Spec              `json:"layer_configs"`
	Layers         map[string][]string `json:"layers"`
	IDLists        map[string]bool     `json:"id_lists"`
	Time           int64               `json:"time"`
	HasUpdates     bool                `json:"has_updates"`
}

// ParseDownloadedSpecs decodes a raw download_config_specs payload.
func ParseDownloadedSpecs(raw []byte) (DownloadedSpecs, error) {
	var specs DownloadedSpecs
	if err := json.Unmarshal(raw, &specs); err != nil {
		return DownloadedSpecs{}, err
	}
	return specs, nil
}

// IDList is a set-membership oracle for one segment list, maintained by an
// external updater. Keys are the first 8 characters of the base64-encoded
// SHA-256 of each member value.
type IDList struct {
	Name string
	IDs  map[string]bool
	Time int64
}

// Contains reports whether the hashed prefix is a member of the list.
func (l *IDList) Contains(hashPrefix string) bool {
	if l == nil {
		return false
	}
	return l.IDs[hashPrefix]
}
