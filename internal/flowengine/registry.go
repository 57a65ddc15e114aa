package flowengine

import "sort"

// Propagation describes how a per-flow propagation switch is
// configured: off for everyone, on for everyone, or on only for the
// named nodes. Mirrors Selinon's Config.propagate_node_args /
// propagate_parent / propagate_finished, which are each either
// missing, `True`, or a list of node names.
type Propagation struct {
	All   bool
	Nodes map[string]bool
}

func (p Propagation) enabledFor(nodeName string) bool {
	if p.All {
		return true
	}
	return p.Nodes[nodeName]
}

// FlowConfig is the compiled, per-flow configuration a Registry holds:
// which nodes propagate node_args/parent/finished-subflow-results
// across a subflow boundary, and which nodes are "fire and forget"
// (nowait) once started.
type FlowConfig struct {
	PropagateNodeArgs Propagation
	PropagateParent   Propagation
	PropagateFinished Propagation
	NowaitNodes       map[string]bool
}

// Registry is the immutable, compiled view of every flow definition a
// process knows about — the Go analogue of Selinon's module-level
// `Config` class, but held as an explicit value instead of a
// singleton (see REDESIGN FLAGS in SPEC_FULL.md).
type Registry struct {
	nodes       map[string]Node
	edgeTables  map[string][]Edge
	flowConfigs map[string]FlowConfig
	failures    FailureTree
}

func NewRegistry() *Registry {
	return &Registry{
		nodes:       map[string]Node{},
		edgeTables:  map[string][]Edge{},
		flowConfigs: map[string]FlowConfig{},
		failures:    FailureTree{},
	}
}

func (r *Registry) AddNode(n Node) { r.nodes[n.Name] = n }

func (r *Registry) SetEdgeTable(flowName string, edges []Edge) { r.edgeTables[flowName] = edges }

func (r *Registry) SetFlowConfig(flowName string, cfg FlowConfig) { r.flowConfigs[flowName] = cfg }

func (r *Registry) SetFailureTree(flowName string, tree map[string]*FailureNode) {
	r.failures[flowName] = tree
}

func (r *Registry) Node(name string) (Node, bool) {
	n, ok := r.nodes[name]
	return n, ok
}

func (r *Registry) IsSubflow(name string) bool {
	n, ok := r.nodes[name]
	return ok && n.IsSubflow()
}

func (r *Registry) EdgeTable(flowName string) []Edge { return r.edgeTables[flowName] }

func (r *Registry) FlowConfig(flowName string) FlowConfig { return r.flowConfigs[flowName] }

func (r *Registry) FailureNodeRoot(flowName string) map[string]*FailureNode {
	return r.failures[flowName]
}

func (r *Registry) HasFlow(flowName string) bool {
	_, ok := r.edgeTables[flowName]
	return ok
}

// FlowNames lists every flow the registry holds an edge table for,
// sorted for stable CLI/log output.
func (r *Registry) FlowNames() []string {
	names := make([]string, 0, len(r.edgeTables))
	for name := range r.edgeTables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
