package flowengine

import "fmt"

// FlowError means the current tick found no fallback for the set of
// failed nodes and the flow instance is terminally failed. It is
// distinct from a transient storage/broker error (which the engine
// never wraps — it simply returns it unchanged so the broker retries
// the tick against unmodified state).
type FlowError struct {
	FlowName string
	Failed   []string
}

func (e *FlowError) Error() string {
	return fmt.Sprintf("flowengine: flow %q has no fallback for failed nodes %v", e.FlowName, e.Failed)
}

// ConfigError means the flow registry itself is invalid for the
// requested operation: unknown flow, no start edges, or a fallback
// reference to an undefined node. Unlike FlowError, this is a static
// mistake in the flow definition, not a runtime failure — it is never
// retried.
type ConfigError struct {
	FlowName string
	Reason   string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("flowengine: flow %q misconfigured: %s", e.FlowName, e.Reason)
}
