package core

import (
	"strings"
	"time"
)

// EvaluationReason describes the provenance of an evaluation result.
type EvaluationReason string

// Evaluation reasons, from most to least trustworthy.
const (
	ReasonNetwork       EvaluationReason = "Network"
	ReasonBootstrap     EvaluationReason = "Bootstrap"
	ReasonDataAdapter   EvaluationReason = "DataAdapter"
	ReasonLocalOverride EvaluationReason = "LocalOverride"
	ReasonPersisted     EvaluationReason = "Persisted"
	ReasonDefault       EvaluationReason = "Default"
	ReasonUnrecognized  EvaluationReason = "Unrecognized"
	ReasonUninitialized EvaluationReason = "Uninitialized"
	ReasonUnsupported   EvaluationReason = "Unsupported"
)

// EvaluationDetails records why and when a result can be trusted. It is
// attached to every evaluation and serialized as exposure metadata.
type EvaluationDetails struct {
	ConfigSyncTime int64            `json:"configSyncTime"`
	InitTime       int64            `json:"initTime"`
	ServerTime     int64            `json:"serverTime"`
	Reason         EvaluationReason `json:"reason"`
}

// NewEvaluationDetails stamps details with the current wall clock.
func NewEvaluationDetails(configSyncTime, initTime int64, reason EvaluationReason) EvaluationDetails {
	return EvaluationDetails{
		ConfigSyncTime: configSyncTime,
		InitTime:       initTime,
		ServerTime:     time.Now().UnixMilli(),
		Reason:         reason,
	}
}

// ToMap flattens details into the string map shape the exposure pipeline
// serializes. Field names are a wire contract.
func (d EvaluationDetails) ToMap() map[string]string {
	return map[string]string{
		"reason":         string(d.Reason),
		"configSyncTime": formatInt(d.ConfigSyncTime),
		"initTime":       formatInt(d.InitTime),
		"serverTime":     formatInt(d.ServerTime),
	}
}

// SecondaryExposure is the audit record of a nested gate check performed
// while evaluating another spec. Field names are a wire contract with the
// analytics backend.
type SecondaryExposure struct {
	Gate      string `json:"gate"`
	GateValue string `json:"gateValue"`
	RuleID    string `json:"ruleID"`
}

// ConfigEvaluation is the evaluator's output. Each evaluation, including
// nested and delegate evaluations, produces its own instance; callers merge
// exposure lists explicitly and never share results.
type ConfigEvaluation struct {
	BoolValue                     bool
	JSONValue                     any
	RuleID                        string
	GroupName                     string
	SecondaryExposures            []SecondaryExposure
	UndelegatedSecondaryExposures []SecondaryExposure
	ExplicitParameters            []string
	ConfigDelegate                string
	EvaluationDetails             EvaluationDetails
	IsExperimentGroup             bool
	IsActive                      bool
	IDType                        string

	// isDelegate marks results produced while following a layer's config
	// delegate so exposure accounting can split the two lists.
	isDelegate bool
}

// MarkDelegate flags the evaluation as running under a layer delegate.
// Exposures added after this point no longer accumulate into the
// undelegated list.
func (e *ConfigEvaluation) MarkDelegate() {
	e.isDelegate = true
}

// AddSecondaryExposure appends an exposure record, mirroring it into the
// undelegated list unless the evaluation is running under a delegate.
func (e *ConfigEvaluation) AddSecondaryExposure(exp SecondaryExposure) {
	e.SecondaryExposures = append(e.SecondaryExposures, exp)
	if !e.isDelegate {
		e.UndelegatedSecondaryExposures = append(e.UndelegatedSecondaryExposures, exp)
	}
}

// CleanExposures deduplicates an exposure list and drops synthetic segment
// entries, preserving first-seen order.
func CleanExposures(exposures []SecondaryExposure) []SecondaryExposure {
	cleaned := make([]SecondaryExposure, 0, len(exposures))
	seen := make(map[SecondaryExposure]struct{}, len(exposures))
	for _, exp := range exposures {
		if strings.HasPrefix(exp.Gate, "segment:") {
			continue
		}
		if _, ok := seen[exp]; ok {
			continue
		}
		seen[exp] = struct{}{}
		cleaned = append(cleaned, exp)
	}
	return cleaned
}
