package compiler

import "gopkg.in/yaml.v3"

// Document is the on-disk YAML shape of one flow definition. It
// mirrors Selinon's YAML flow configuration closely enough to keep
// the mental model familiar, but is intentionally smaller: this repo
// compiles one Document per flow name rather than one global
// multi-flow config file.
type Document struct {
	Flow string `yaml:"flow"`

	// Nodes declares every task/subflow name this flow's edges may
	// reference, and which storage adapter each one's result is read
	// back through when a later condition expression needs it.
	Nodes []NodeDoc `yaml:"nodes"`

	// Edges is the flow's edge table. An edge with an empty "from" is
	// a start edge (flowengine.Edge.IsStart).
	Edges []EdgeDoc `yaml:"edges"`

	Propagation PropagationDoc `yaml:"propagation"`

	// Failures declares the failure tree: each entry names a set of
	// node names (in any order; the compiler sorts them) and either a "fallback" node list to start, or
	// "drop: true" to consume the failure and start nothing.
	Failures []FailureDoc `yaml:"failures"`
}

type NodeDoc struct {
	Name    string `yaml:"name"`
	Kind    string `yaml:"kind"` // "task" | "subflow"
	Storage string `yaml:"storage"`
}

type EdgeDoc struct {
	From      []string `yaml:"from"`
	To        []string `yaml:"to"`
	Condition string   `yaml:"condition"`
}

type PropagationDoc struct {
	NodeArgs PropagationSwitch `yaml:"node_args"`
	Parent   PropagationSwitch `yaml:"parent"`
	Finished PropagationSwitch `yaml:"finished"`
	Nowait   []string          `yaml:"nowait"`
}

// PropagationSwitch decodes either `true` (propagate for every node)
// or a list of node names (propagate only for those), matching
// Selinon's Config.propagate_node_args / propagate_parent /
// propagate_finished, which accept the same two shapes.
type PropagationSwitch struct {
	All   bool
	Nodes []string
}

func (p *PropagationSwitch) UnmarshalYAML(value *yaml.Node) error {
	var asBool bool
	if err := value.Decode(&asBool); err == nil {
		p.All = asBool
		return nil
	}
	var asList []string
	if err := value.Decode(&asList); err != nil {
		return err
	}
	p.Nodes = asList
	return nil
}

type FailureDoc struct {
	Nodes    []string `yaml:"nodes"`
	Fallback []string `yaml:"fallback"`
	Drop     bool     `yaml:"drop"`
}
