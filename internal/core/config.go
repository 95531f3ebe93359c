package core

// FeatureGate is the caller-facing answer to a gate check.
type FeatureGate struct {
	Name              string
	Value             bool
	RuleID            string
	GroupName         string
	IDType            string
	EvaluationDetails EvaluationDetails
}

// DynamicConfig is the caller-facing answer to a config or experiment
// lookup, with typed accessors over the JSON value.
type DynamicConfig struct {
	Name              string
	Value             map[string]any
	RuleID            string
	GroupName         string
	IDType            string
	IsExperimentGroup bool
	EvaluationDetails EvaluationDetails
}

// GetString returns the string at key, or fallback when absent or not a
// string.
func (c DynamicConfig) GetString(key, fallback string) string {
	if v, ok := c.Value[key].(string); ok {
		return v
	}
	return fallback
}

// GetBool returns the boolean at key, or fallback when absent or not a
// boolean.
func (c DynamicConfig) GetBool(key string, fallback bool) bool {
	if v, ok := c.Value[key].(bool); ok {
		return v
	}
	return fallback
}

// GetFloat64 returns the number at key, or fallback when absent or not
// numeric.
func (c DynamicConfig) GetFloat64(key string, fallback float64) float64 {
	if v, ok := c.Value[key].(float64); ok {
		return v
	}
	return fallback
}

// GetInt returns the number at key truncated to an int, or fallback.
func (c DynamicConfig) GetInt(key string, fallback int) int {
	if v, ok := c.Value[key].(float64); ok {
		return int(v)
	}
	return fallback
}

// GetSlice returns the array at key, or fallback when absent or not an
// array.
func (c DynamicConfig) GetSlice(key string, fallback []any) []any {
	if v, ok := c.Value[key].([]any); ok {
		return v
	}
	return fallback
}

// GetMap returns the object at key, or fallback when absent or not an
// object.
func (c DynamicConfig) GetMap(key string, fallback map[string]any) map[string]any {
	if v, ok := c.Value[key].(map[string]any); ok {
		return v
	}
	return fallback
}

// Layer is the caller-facing view of a layer evaluation. Parameter reads
// report an exposure through onExposure so layer exposures are attributed to
// the parameters actually used.
type Layer struct {
	Name                string
	RuleID              string
	GroupName           string
	Value               map[string]any
	AllocatedExperiment string
	ExplicitParameters  []string

	onExposure func(parameterName string)
}

// NewLayer builds a Layer whose parameter reads invoke onExposure with the
// parameter name. onExposure may be nil.
func NewLayer(name, ruleID, groupName string, value map[string]any, allocatedExperiment string, explicitParameters []string, onExposure func(string)) Layer {
	return Layer{
		Name:                name,
		RuleID:              ruleID,
		GroupName:           groupName,
		Value:               value,
		AllocatedExperiment: allocatedExperiment,
		ExplicitParameters:  explicitParameters,
		onExposure:          onExposure,
	}
}

func (l Layer) get(key string) (any, bool) {
	v, ok := l.Value[key]
	if ok && l.onExposure != nil {
		l.onExposure(key)
	}
	return v, ok
}

// GetString returns the string parameter at key, or fallback.
func (l Layer) GetString(key, fallback string) string {
	if v, ok := l.get(key); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return fallback
}

// GetBool returns the boolean parameter at key, or fallback.
func (l Layer) GetBool(key string, fallback bool) bool {
	if v, ok := l.get(key); ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return fallback
}

// GetFloat64 returns the numeric parameter at key, or fallback.
func (l Layer) GetFloat64(key string, fallback float64) float64 {
	if v, ok := l.get(key); ok {
		if f, ok := v.(float64); ok {
			return f
		}
	}
	return fallback
}

// GetInt returns the numeric parameter at key truncated to an int, or
// fallback.
func (l Layer) GetInt(key string, fallback int) int {
	if v, ok := l.get(key); ok {
		if f, ok := v.(float64); ok {
			return int(f)
		}
	}
	return fallback
}

// GetSlice returns the array parameter at key, or fallback.
func (l Layer) GetSlice(key string, fallback []any) []any {
	if v, ok := l.get(key); ok {
		if s, ok := v.([]any); ok {
			return s
		}
	}
	return fallback
}

// GetMap returns the object parameter at key, or fallback.
func (l Layer) GetMap(key string, fallback map[string]any) map[string]any {
	if v, ok := l.get(key); ok {
		if m, ok := v.(map[string]any); ok {
			return m
		}
	}
	return fallback
}
