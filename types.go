// Package gatewise is a server-side feature flag and experimentation SDK.
// It downloads rule definitions in the background and evaluates feature
// gates, dynamic configs, experiments, and layers locally, in-process, with
// no network call on the evaluation path.
//
// Typical use:
//
//	client, err := gatewise.NewClient(ctx, os.Getenv("GATEWISE_SDK_KEY"), nil)
//	if err != nil { ... }
//	defer client.Shutdown(ctx)
//
//	if client.CheckGate(gatewise.User{UserID: "u-1"}, "new_checkout") {
//		// gated path
//	}
package gatewise

import "github.com/gatewise/gatewise/internal/core"

// User is the record evaluations run against. PrivateAttributes participate
// in rule matching but are stripped from every logged event.
type User = core.User

// FeatureGate is the detailed result of a gate check.
type FeatureGate = core.FeatureGate

// DynamicConfig is the result of a config or experiment lookup, with typed
// parameter accessors.
type DynamicConfig = core.DynamicConfig

// Layer is the result of a layer lookup. Reading a parameter records a layer
// exposure attributed to that parameter.
type Layer = core.Layer

// EvaluationDetails records the provenance and freshness of a result.
type EvaluationDetails = core.EvaluationDetails

// EvaluationReason classifies where a result came from.
type EvaluationReason = core.EvaluationReason

// Evaluation reasons.
const (
	ReasonNetwork       = core.ReasonNetwork
	ReasonBootstrap     = core.ReasonBootstrap
	ReasonDataAdapter   = core.ReasonDataAdapter
	ReasonLocalOverride = core.ReasonLocalOverride
	ReasonUninitialized = core.ReasonUninitialized
	ReasonUnrecognized  = core.ReasonUnrecognized
	ReasonUnsupported   = core.ReasonUnsupported
)
