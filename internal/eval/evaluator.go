// Package eval implements the rule evaluation engine: given a spec snapshot
// and a user record it answers gate, config, and layer questions through
// deterministic, hash-based bucketing, with no network calls.
//
// The evaluator is stateless and reentrant. Every call reads the store
// snapshot current at entry and produces a fresh result; the only mutable
// state is the override set, which carries its own lock.
package eval

import (
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/gatewise/gatewise/internal/core"
	"github.com/gatewise/gatewise/internal/hashing"
	"github.com/gatewise/gatewise/internal/lookup"
	"github.com/gatewise/gatewise/internal/store"
)

// maxNestedDepth bounds recursion through gate conditions and layer
// delegates. Well-formed spec data is a DAG, but nothing in the wire format
// forbids a cycle, so the engine fails closed instead of overflowing the
// stack.
const maxNestedDepth = 10

// Evaluator answers gate/config/layer questions against a spec store.
type Evaluator struct {
	store     *store.Store
	overrides *Overrides
	log       *slog.Logger
	country   lookup.CountryFunc
	userAgent lookup.UserAgentFunc
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithLogger sets the logger used for the evaluation error channel.
func WithLogger(log *slog.Logger) Option {
	return func(e *Evaluator) { e.log = log }
}

// WithCountryLookup replaces the IP-to-country collaborator.
func WithCountryLookup(fn lookup.CountryFunc) Option {
	return func(e *Evaluator) { e.country = fn }
}

// WithUserAgentLookup replaces the user-agent parsing collaborator.
func WithUserAgentLookup(fn lookup.UserAgentFunc) Option {
	return func(e *Evaluator) { e.userAgent = fn }
}

// New creates an Evaluator reading from st.
func New(st *store.Store, opts ...Option) *Evaluator {
	e := &Evaluator{
		store:     st,
		overrides: NewOverrides(),
		log:       slog.Default(),
		country:   lookup.Country,
		userAgent: lookup.UserAgent,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Overrides exposes the local override set checked before every evaluation.
func (e *Evaluator) Overrides() *Overrides {
	return e.overrides
}

// CheckGate evaluates the named feature gate for the user.
func (e *Evaluator) CheckGate(user *core.User, name string) core.ConfigEvaluation {
	if value, ok := e.overrides.Gate(name); ok {
		return core.ConfigEvaluation{
			BoolValue:         value,
			JSONValue:         value,
			EvaluationDetails: e.details(core.ReasonLocalOverride),
		}
	}
	if e.uninitialized() {
		return e.uninitializedEvaluation()
	}

	spec := e.store.GetGate(name)
	if spec == nil {
		return e.unrecognizedEvaluation()
	}

	var evaluation core.ConfigEvaluation
	e.evaluateSpec(user, spec, &evaluation, 0)
	e.finalize(&evaluation)
	return evaluation
}

// GetConfig evaluates the named dynamic config or experiment for the user.
func (e *Evaluator) GetConfig(user *core.User, name string) core.ConfigEvaluation {
	if value, ok := e.overrides.Config(name); ok {
		return core.ConfigEvaluation{
			JSONValue:         value,
			EvaluationDetails: e.details(core.ReasonLocalOverride),
		}
	}
	if e.uninitialized() {
		return e.uninitializedEvaluation()
	}

	spec := e.store.GetConfig(name)
	if spec == nil {
		return e.unrecognizedEvaluation()
	}

	var evaluation core.ConfigEvaluation
	e.evaluateSpec(user, spec, &evaluation, 0)
	e.finalize(&evaluation)
	return evaluation
}

// GetLayer evaluates the named layer for the user, following any allocated
// experiment delegate.
func (e *Evaluator) GetLayer(user *core.User, name string) core.ConfigEvaluation {
	if value, ok := e.overrides.Layer(name); ok {
		return core.ConfigEvaluation{
			JSONValue:         value,
			EvaluationDetails: e.details(core.ReasonLocalOverride),
		}
	}
	if e.uninitialized() {
		return e.uninitializedEvaluation()
	}

	spec := e.store.GetLayerConfig(name)
	if spec == nil {
		return e.unrecognizedEvaluation()
	}

	var evaluation core.ConfigEvaluation
	e.evaluateSpec(user, spec, &evaluation, 0)
	e.finalize(&evaluation)
	return evaluation
}

// GetVariants summarizes an experiment's group allocation from its
// USER_BUCKET rules: group name to value and percent share.
func (e *Evaluator) GetVariants(configName string) map[string]map[string]any {
	variants := make(map[string]map[string]any)
	spec := e.store.GetConfig(configName)
	if spec == nil {
		return variants
	}

	previousAllocation := 0.0
	for _, rule := range spec.Rules {
		if len(rule.Conditions) == 0 {
			continue
		}
		cond := rule.Conditions[0]
		percent := 0.0
		if strings.EqualFold(cond.Type, "user_bucket") {
			if target, ok := toNumber(cond.TargetValue); ok {
				percent = (target - previousAllocation) / 1000.0
				previousAllocation = target
			}
		}
		if rule.GroupName != "" {
			variants[rule.GroupName] = map[string]any{
				"value":   rule.ReturnValue,
				"percent": percent,
			}
		}
	}
	return variants
}

func (e *Evaluator) uninitialized() bool {
	return e.store.EvaluationReason() == core.ReasonUninitialized
}

func (e *Evaluator) uninitializedEvaluation() core.ConfigEvaluation {
	return core.ConfigEvaluation{
		EvaluationDetails: core.NewEvaluationDetails(0, 0, core.ReasonUninitialized),
	}
}

func (e *Evaluator) unrecognizedEvaluation() core.ConfigEvaluation {
	return core.ConfigEvaluation{
		EvaluationDetails: e.details(core.ReasonUnrecognized),
	}
}

func (e *Evaluator) details(reason core.EvaluationReason) core.EvaluationDetails {
	if reason == core.ReasonUninitialized {
		return core.NewEvaluationDetails(0, 0, reason)
	}
	return core.NewEvaluationDetails(e.store.LastUpdateTime(), e.store.InitTime(), reason)
}

// finalize cleans both exposure lists once, at the outermost call. Delegate
// and nested evaluations share the accumulating lists and are not cleaned
// individually.
func (e *Evaluator) finalize(evaluation *core.ConfigEvaluation) {
	evaluation.SecondaryExposures = core.CleanExposures(evaluation.SecondaryExposures)
	evaluation.UndelegatedSecondaryExposures = core.CleanExposures(evaluation.UndelegatedSecondaryExposures)
}

// evaluateSpec runs the spec's rules in declaration order against the user,
// filling evaluation in place. The first rule whose conditions all pass
// terminates iteration, whatever the percentage outcome.
func (e *Evaluator) evaluateSpec(user *core.User, spec *core.Spec, evaluation *core.ConfigEvaluation, depth int) {
	if depth > maxNestedDepth {
		e.log.Error("max nested evaluation depth exceeded, failing closed; spec graph may contain a cycle",
			"spec", spec.Name)
		evaluation.BoolValue = false
		evaluation.JSONValue = nil
		evaluation.RuleID = ""
		evaluation.EvaluationDetails = e.details(core.ReasonUnrecognized)
		return
	}

	evaluation.EvaluationDetails = e.details(e.store.EvaluationReason())
	evaluation.IDType = spec.IDType
	evaluation.IsActive = spec.IsActive

	if !spec.Enabled {
		evaluation.BoolValue = false
		evaluation.JSONValue = spec.DefaultValue
		evaluation.RuleID = core.RuleIDDisabled
		return
	}

	for i := range spec.Rules {
		rule := &spec.Rules[i]
		if unsupported := e.evaluateRule(user, rule, evaluation, depth); unsupported {
			evaluation.EvaluationDetails = e.details(core.ReasonUnsupported)
			evaluation.BoolValue = false
			return
		}
		if !evaluation.BoolValue {
			continue
		}

		if e.evaluateDelegate(user, rule, evaluation, depth) {
			return
		}

		pass := e.passesPercentage(user, spec, rule)
		if !pass {
			evaluation.JSONValue = spec.DefaultValue
		}
		evaluation.BoolValue = pass
		evaluation.IsExperimentGroup = rule.IsExperimentGroup
		return
	}

	evaluation.BoolValue = false
	evaluation.JSONValue = spec.DefaultValue
	evaluation.RuleID = core.RuleIDDefault
	evaluation.GroupName = ""
}

// evaluateRule evaluates every condition of the rule (logical AND). It does
// not stop at the first failing condition: exposures keep accumulating. The
// returned flag is true when a condition was unsupported, which aborts the
// whole spec evaluation.
func (e *Evaluator) evaluateRule(user *core.User, rule *core.Rule, evaluation *core.ConfigEvaluation, depth int) bool {
	pass := true
	for i := range rule.Conditions {
		result := e.evaluateCondition(user, &rule.Conditions[i], evaluation, depth)
		if result.unsupported {
			return true
		}
		if !result.pass {
			pass = false
		}
	}

	evaluation.BoolValue = pass
	evaluation.JSONValue = rule.ReturnValue
	evaluation.RuleID = rule.ID
	evaluation.GroupName = rule.GroupName
	evaluation.IsExperimentGroup = rule.IsExperimentGroup
	return false
}

// evaluateDelegate follows a layer rule's config delegate, if any. The
// delegate's exposures merge after the accumulated list, while the
// undelegated list stays frozen at the pre-delegate state.
func (e *Evaluator) evaluateDelegate(user *core.User, rule *core.Rule, evaluation *core.ConfigEvaluation, depth int) bool {
	if rule.ConfigDelegate == "" {
		return false
	}
	delegate := e.store.GetConfig(rule.ConfigDelegate)
	if delegate == nil {
		return false
	}

	evaluation.MarkDelegate()
	e.evaluateSpec(user, delegate, evaluation, depth+1)

	evaluation.ConfigDelegate = rule.ConfigDelegate
	evaluation.ExplicitParameters = delegate.ExplicitParameters
	if evaluation.ExplicitParameters == nil {
		evaluation.ExplicitParameters = []string{}
	}
	evaluation.EvaluationDetails = e.details(e.store.EvaluationReason())
	return true
}

// passesPercentage applies the rollout hash for a rule whose conditions
// passed. Same inputs always land in the same bucket, so the outcome is
// monotonic in the pass percentage.
func (e *Evaluator) passesPercentage(user *core.User, spec *core.Spec, rule *core.Rule) bool {
	if rule.PassPercentage <= 0 {
		return false
	}
	if rule.PassPercentage >= 100 {
		return true
	}
	unitID := user.UnitID(rule.IDType)
	bucket := hashing.BucketHash(spec.Salt+"."+rule.BucketSalt()+"."+unitID) % 10000
	return bucket < uint64(rule.PassPercentage*100)
}

type conditionResult struct {
	pass        bool
	unsupported bool
}

// evaluateCondition resolves the condition's value source, then applies its
// operator. Unrecognized condition types and operators report unsupported:
// with no network authority to defer to, the engine fails closed and says
// so, rather than silently granting access.
func (e *Evaluator) evaluateCondition(user *core.User, cond *core.Condition, evaluation *core.ConfigEvaluation, depth int) conditionResult {
	var value any

	switch strings.ToLower(cond.Type) {
	case "public":
		return conditionResult{pass: true}

	case "pass_gate", "fail_gate":
		return e.evaluateGateCondition(user, cond, evaluation, depth)

	case "ip_based":
		value = userField(user, cond.Field)
		if value == nil && e.country != nil {
			if ip, ok := userField(user, "ip").(string); ok && ip != "" {
				if country, ok := e.country(ip); ok {
					value = country
				}
			}
		}

	case "ua_based":
		value = userField(user, cond.Field)
		if value == nil && e.userAgent != nil {
			if ua, ok := userField(user, "userAgent").(string); ok && ua != "" {
				if derived, ok := e.userAgent(ua, cond.Field); ok {
					value = derived
				}
			}
		}

	case "user_field":
		value = userField(user, cond.Field)

	case "current_time":
		value = strconv.FormatInt(time.Now().UnixMilli(), 10)

	case "environment_field":
		value = environmentField(user, cond.Field)

	case "user_bucket":
		salt, _ := toString(cond.AdditionalValues["salt"])
		unitID := user.UnitID(cond.IDType)
		value = float64(hashing.BucketHash(salt+"."+unitID) % 1000)

	case "unit_id":
		if unitID := user.UnitID(cond.IDType); unitID != "" {
			value = unitID
		}

	default:
		e.log.Error("unrecognized condition type", "type", cond.Type)
		return conditionResult{unsupported: true}
	}

	return e.applyOperator(value, cond)
}

// evaluateGateCondition recursively checks another gate, inverting the
// outcome for fail_gate, and always records a secondary exposure for the
// nested check.
func (e *Evaluator) evaluateGateCondition(user *core.User, cond *core.Condition, evaluation *core.ConfigEvaluation, depth int) conditionResult {
	gateName, _ := toString(cond.TargetValue)
	nested := e.nestedGate(user, gateName, depth+1)
	if nested.EvaluationDetails.Reason == core.ReasonUnsupported {
		return conditionResult{unsupported: true}
	}

	for _, exposure := range nested.SecondaryExposures {
		evaluation.AddSecondaryExposure(exposure)
	}
	evaluation.AddSecondaryExposure(core.SecondaryExposure{
		Gate:      gateName,
		GateValue: strconv.FormatBool(nested.BoolValue),
		RuleID:    nested.RuleID,
	})

	pass := nested.BoolValue
	if strings.EqualFold(cond.Type, "fail_gate") {
		pass = !pass
	}
	return conditionResult{pass: pass}
}

// nestedGate evaluates a gate referenced from a condition. Overrides apply
// to nested checks exactly as they do to top-level ones.
func (e *Evaluator) nestedGate(user *core.User, name string, depth int) core.ConfigEvaluation {
	if value, ok := e.overrides.Gate(name); ok {
		return core.ConfigEvaluation{
			BoolValue:         value,
			JSONValue:         value,
			EvaluationDetails: e.details(core.ReasonLocalOverride),
		}
	}
	spec := e.store.GetGate(name)
	if spec == nil {
		return e.unrecognizedEvaluation()
	}

	var nested core.ConfigEvaluation
	e.evaluateSpec(user, spec, &nested, depth)
	return nested
}

// applyOperator compares the resolved value against the condition's target.
// Coercion failures and parse errors fail closed to false; only an
// unrecognized operator reports unsupported.
func (e *Evaluator) applyOperator(value any, cond *core.Condition) conditionResult {
	target := cond.TargetValue

	switch cond.Operator {
	case "gt":
		return conditionResult{pass: compareNumbers(value, target, func(a, b float64) bool { return a > b })}
	case "gte":
		return conditionResult{pass: compareNumbers(value, target, func(a, b float64) bool { return a >= b })}
	case "lt":
		return conditionResult{pass: compareNumbers(value, target, func(a, b float64) bool { return a < b })}
	case "lte":
		return conditionResult{pass: compareNumbers(value, target, func(a, b float64) bool { return a <= b })}

	case "version_gt":
		return conditionResult{pass: e.versionCompare(value, target, func(r int) bool { return r > 0 })}
	case "version_gte":
		return conditionResult{pass: e.versionCompare(value, target, func(r int) bool { return r >= 0 })}
	case "version_lt":
		return conditionResult{pass: e.versionCompare(value, target, func(r int) bool { return r < 0 })}
	case "version_lte":
		return conditionResult{pass: e.versionCompare(value, target, func(r int) bool { return r <= 0 })}
	case "version_eq":
		return conditionResult{pass: e.versionCompare(value, target, func(r int) bool { return r == 0 })}
	case "version_neq":
		return conditionResult{pass: e.versionCompare(value, target, func(r int) bool { return r != 0 })}

	case "any":
		return conditionResult{pass: matchStringInArray(value, target, equalsIgnoreCase)}
	case "none":
		return conditionResult{pass: !matchStringInArray(value, target, equalsIgnoreCase)}
	case "any_case_sensitive":
		return conditionResult{pass: matchStringInArray(value, target, equalsExact)}
	case "none_case_sensitive":
		return conditionResult{pass: !matchStringInArray(value, target, equalsExact)}

	case "str_starts_with_any":
		return conditionResult{pass: matchStringInArray(value, target, startsWithAnyCase)}
	case "str_ends_with_any":
		return conditionResult{pass: matchStringInArray(value, target, endsWithAnyCase)}
	case "str_contains_any":
		return conditionResult{pass: matchStringInArray(value, target, containsAnyCase)}
	case "str_contains_none":
		return conditionResult{pass: !matchStringInArray(value, target, containsAnyCase)}

	case "str_matches":
		matched, err := matchesRegex(value, target)
		if err != nil {
			e.log.Warn("str_matches pattern failed to compile", "error", err)
		}
		return conditionResult{pass: matched}

	case "eq":
		return conditionResult{pass: looseEqual(value, target)}
	case "neq":
		return conditionResult{pass: !looseEqual(value, target)}

	case "before":
		return conditionResult{pass: e.dateCompare(value, target, func(a, b time.Time) bool { return a.Before(b) })}
	case "after":
		return conditionResult{pass: e.dateCompare(value, target, func(a, b time.Time) bool { return a.After(b) })}
	case "on":
		return conditionResult{pass: e.dateCompare(value, target, sameDay)}

	case "in_segment_list":
		return conditionResult{pass: e.inSegmentList(value, target)}
	case "not_in_segment_list":
		return conditionResult{pass: !e.inSegmentList(value, target)}

	case "array_contains_any", "array_contains_none":
		values, vok := value.([]any)
		targets, tok := target.([]any)
		if !vok || !tok {
			return conditionResult{pass: false}
		}
		contains := arrayContainsAny(values, targets)
		if cond.Operator == "array_contains_none" {
			contains = !contains
		}
		return conditionResult{pass: contains}

	case "array_contains_all", "not_array_contains_all":
		values, vok := value.([]any)
		targets, tok := toSlice(target)
		if !vok || !tok {
			return conditionResult{pass: false}
		}
		contains := arrayContainsAll(values, targets)
		if cond.Operator == "not_array_contains_all" {
			contains = !contains
		}
		return conditionResult{pass: contains}
	}

	e.log.Error("unrecognized condition operator", "operator", cond.Operator)
	return conditionResult{unsupported: true}
}

func (e *Evaluator) versionCompare(value, target any, cmp func(result int) bool) bool {
	pass, err := compareVersions(value, target, cmp)
	if err != nil {
		e.log.Warn("unparseable version string in condition", "error", err)
		return false
	}
	return pass
}

func (e *Evaluator) dateCompare(value, target any, cmp func(a, b time.Time) bool) bool {
	pass, err := compareDates(value, target, cmp)
	if err != nil {
		e.log.Warn("unparseable date in condition", "error", err)
		return false
	}
	return pass
}

// inSegmentList hashes the candidate value and checks the first 8 characters
// of its base64 digest against the named id list.
func (e *Evaluator) inSegmentList(value, target any) bool {
	listName, ok := toString(target)
	if !ok {
		return false
	}
	list := e.store.GetIDList(listName)
	str, ok := toString(value)
	if list == nil || !ok {
		return false
	}
	return list.Contains(hashing.SHA256Base64(str)[:8])
}
