package compiler

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/flowmesh/flowmesh/internal/condition"
	"github.com/flowmesh/flowmesh/internal/flowengine"
)

// CompileFile reads and compiles a single flow document into a fresh
// Registry holding only that flow.
func CompileFile(path string) (*flowengine.Registry, error) {
	doc, err := loadDocument(path)
	if err != nil {
		return nil, err
	}
	reg := flowengine.NewRegistry()
	if err := addDocument(reg, doc); err != nil {
		return nil, fmt.Errorf("compiler: %s: %w", path, err)
	}
	return reg, nil
}

// CompileDir compiles every *.yaml/*.yml file in dir into one shared
// Registry, the way a deployment would load its whole flow catalog at
// startup. Grounded on configloader.Loader's read-then-yaml.Unmarshal
// shape, extended to a directory walk since a Registry spans many
// flow documents rather than one config file.
func CompileDir(dir string) (*flowengine.Registry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("compiler: read dir %s: %w", dir, err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := filepath.Ext(e.Name())
		if ext == ".yaml" || ext == ".yml" {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	reg := flowengine.NewRegistry()
	for _, name := range names {
		path := filepath.Join(dir, name)
		doc, err := loadDocument(path)
		if err != nil {
			return nil, err
		}
		if err := addDocument(reg, doc); err != nil {
			return nil, fmt.Errorf("compiler: %s: %w", path, err)
		}
	}
	return reg, nil
}

func loadDocument(path string) (Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Document{}, fmt.Errorf("compiler: read %s: %w", path, err)
	}
	var doc Document
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return Document{}, fmt.Errorf("compiler: parse %s: %w", path, err)
	}
	return doc, nil
}

func addDocument(reg *flowengine.Registry, doc Document) error {
	if doc.Flow == "" {
		return fmt.Errorf("missing top-level \"flow\" name")
	}

	storageOf := map[string]string{}
	for _, n := range doc.Nodes {
		kind := flowengine.NodeTask
		switch n.Kind {
		case "", "task":
			kind = flowengine.NodeTask
		case "subflow":
			kind = flowengine.NodeSubflow
		default:
			return fmt.Errorf("node %q: unknown kind %q", n.Name, n.Kind)
		}
		reg.AddNode(flowengine.Node{Name: n.Name, Kind: kind})
		if n.Storage != "" {
			storageOf[n.Name] = n.Storage
		}
	}

	edges, err := compileEdges(doc, storageOf)
	if err != nil {
		return err
	}
	reg.SetEdgeTable(doc.Flow, edges)

	reg.SetFlowConfig(doc.Flow, compilePropagation(doc.Propagation))

	tree, err := compileFailureTree(doc.Failures)
	if err != nil {
		return err
	}
	reg.SetFailureTree(doc.Flow, tree)

	return nil
}

func compileEdges(doc Document, storageOf map[string]string) ([]flowengine.Edge, error) {
	edges := make([]flowengine.Edge, 0, len(doc.Edges))
	for i, ed := range doc.Edges {
		var pred condition.Predicate
		if ed.Condition == "" {
			pred = condition.Always
		} else {
			var err error
			pred, err = condition.Compile(ed.Condition, edgeStorageOf(ed, storageOf))
			if err != nil {
				return nil, fmt.Errorf("edge[%d]: %w", i, err)
			}
		}
		edges = append(edges, flowengine.Edge{From: ed.From, To: ed.To, Condition: pred})
	}
	return edges, nil
}

// edgeStorageOf narrows the flow-wide node->storage map down to just
// the upstream names this edge's "from" set actually names, which is
// the set of results condition.Compile's predicate reads from storage
// before each evaluation.
func edgeStorageOf(ed EdgeDoc, storageOf map[string]string) map[string]string {
	out := map[string]string{}
	for _, name := range ed.From {
		if s, ok := storageOf[name]; ok {
			out[name] = s
		}
	}
	return out
}

func compilePropagation(doc PropagationDoc) flowengine.FlowConfig {
	toSwitch := func(s PropagationSwitch) flowengine.Propagation {
		if s.All {
			return flowengine.Propagation{All: true}
		}
		nodes := map[string]bool{}
		for _, n := range s.Nodes {
			nodes[n] = true
		}
		return flowengine.Propagation{Nodes: nodes}
	}

	nowait := map[string]bool{}
	for _, n := range doc.Nowait {
		nowait[n] = true
	}

	return flowengine.FlowConfig{
		PropagateNodeArgs: toSwitch(doc.NodeArgs),
		PropagateParent:   toSwitch(doc.Parent),
		PropagateFinished: toSwitch(doc.Finished),
		NowaitNodes:       nowait,
	}
}

// compileFailureTree builds the trie runFallback descends: each
// FailureDoc names a (not-necessarily-sorted) set of node names, which
// is sorted here once so the runtime descent — which always sorts
// s.failedNodes's keys the same way — finds the same path.
func compileFailureTree(docs []FailureDoc) (map[string]*flowengine.FailureNode, error) {
	root := map[string]*flowengine.FailureNode{}

	for i, fd := range docs {
		if len(fd.Nodes) == 0 {
			return nil, fmt.Errorf("failures[%d]: empty node list", i)
		}
		if !fd.Drop && len(fd.Fallback) == 0 {
			return nil, fmt.Errorf("failures[%d]: neither fallback nor drop set", i)
		}

		combo := append([]string(nil), fd.Nodes...)
		sort.Strings(combo)

		node, ok := root[combo[0]]
		if !ok {
			node = &flowengine.FailureNode{Next: map[string]*flowengine.FailureNode{}}
			root[combo[0]] = node
		}
		for _, name := range combo[1:] {
			next, ok := node.Next[name]
			if !ok {
				next = &flowengine.FailureNode{Next: map[string]*flowengine.FailureNode{}}
				node.Next[name] = next
			}
			node = next
		}

		node.Drop = fd.Drop
		node.Fallback = fd.Fallback
	}

	return root, nil
}
