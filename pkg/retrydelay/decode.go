package retrydelay

import (
	"fmt"
	"time"
)

// FromMap decodes a Config from an untyped map, the shape callers get when
// wiring retry delays from loosely-typed config sources (e.g. decoded
// JSON). Duration fields accept either a
// string parseable by time.ParseDuration or a numeric count of
// nanoseconds.
//
//	{
//	  "backoff": {"kind": "fixed|linear|exponential", "delay": "100ms",
//	              "base": "100ms", "increment": "50ms", "multiplier": 2.0,
//	              "max": "30s"},
//	  "jitter":  {"kind": "none|full|equal|decorrelated",
//	              "max": "30s", "multiplier": 2.0}
//	}
func FromMap(m map[string]any) (Config, error) {
	var cfg Config

	backoffRaw, ok := m["backoff"]
	if !ok {
		return cfg, invalidArg("backoff", "required")
	}
	backoffMap, ok := backoffRaw.(map[string]any)
	if !ok {
		return cfg, invalidArg("backoff", "must be an object")
	}
	backoff, err := backoffFromMap(backoffMap)
	if err != nil {
		return cfg, err
	}
	cfg.Backoff = backoff

	cfg.Jitter = NoJitter()
	if jitterRaw, ok := m["jitter"]; ok && jitterRaw != nil {
		jitterMap, ok := jitterRaw.(map[string]any)
		if !ok {
			return cfg, invalidArg("jitter", "must be an object")
		}
		jitter, err := jitterFromMap(jitterMap)
		if err != nil {
			return cfg, err
		}
		cfg.Jitter = jitter
	}

	return cfg, cfg.Validate()
}

func backoffFromMap(m map[string]any) (Backoff, error) {
	kind, _ := m["kind"].(string)
	switch kind {
	case "fixed":
		d, err := decodeDuration(m, "delay")
		if err != nil {
			return Backoff{}, err
		}
		return Fixed(d), nil
	case "linear":
		base, err := decodeDuration(m, "base")
		if err != nil {
			return Backoff{}, err
		}
		incr, err := decodeDuration(m, "increment")
		if err != nil {
			return Backoff{}, err
		}
		max, err := decodeDuration(m, "max")
		if err != nil {
			return Backoff{}, err
		}
		return Linear(base, incr, max), nil
	case "exponential":
		base, err := decodeDuration(m, "base")
		if err != nil {
			return Backoff{}, err
		}
		mul, err := decodeFloat(m, "multiplier")
		if err != nil {
			return Backoff{}, err
		}
		max, err := decodeDuration(m, "max")
		if err != nil {
			return Backoff{}, err
		}
		return Exponential(base, mul, max), nil
	default:
		return Backoff{}, invalidArg("backoff.kind", fmt.Sprintf("unknown kind %q", kind))
	}
}

func jitterFromMap(m map[string]any) (Jitter, error) {
	kind, _ := m["kind"].(string)
	switch kind {
	case "none", "":
		return NoJitter(), nil
	case "full":
		return FullJitter(), nil
	case "equal":
		return EqualJitter(), nil
	case "decorrelated":
		max, err := decodeDuration(m, "max")
		if err != nil {
			return Jitter{}, err
		}
		mul, err := decodeFloat(m, "multiplier")
		if err != nil {
			return Jitter{}, err
		}
		return DecorrelatedJitter(max, mul), nil
	default:
		return Jitter{}, invalidArg("jitter.kind", fmt.Sprintf("unknown kind %q", kind))
	}
}

func decodeDuration(m map[string]any, key string) (time.Duration, error) {
	raw, ok := m[key]
	if !ok {
		return 0, invalidArg(key, "required")
	}
	switch v := raw.(type) {
	case string:
		d, err := time.ParseDuration(v)
		if err != nil {
			return 0, invalidArg(key, fmt.Sprintf("invalid duration: %v", err))
		}
		return d, nil
	case time.Duration:
		return v, nil
	case float64:
		return time.Duration(v), nil
	case int:
		return time.Duration(v), nil
	default:
		return 0, invalidArg(key, "must be a duration string or numeric nanoseconds")
	}
}

func decodeFloat(m map[string]any, key string) (float64, error) {
	raw, ok := m[key]
	if !ok {
		return 0, invalidArg(key, "required")
	}
	switch v := raw.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	default:
		return 0, invalidArg(key, "must be a number")
	}
}
