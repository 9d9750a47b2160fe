package dag

import "fmt"

// ConfigError reports a structural problem in a graph's configuration: a
// duplicate node id (recorded at Add time), an unknown node passed to
// Connect, or a cycle, fan-rule violation, edge-type mismatch, dangling
// dead-letter target or disconnected node found by Finalize. A transform
// node handed an item of an unexpected dynamic type also reports a
// ConfigError, at run time.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string { return fmt.Sprintf("dag: %s", e.Reason) }

func configErrorf(format string, args ...any) error {
	return &ConfigError{Reason: fmt.Sprintf(format, args...)}
}
