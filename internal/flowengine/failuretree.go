package flowengine

// FailureNode is one node of the failure tree (a trie over sorted
// failed-node-name combinations). Reached by descending `Next` one
// failed node name at a time, in alphabetical order, matching
// celeriac/systemState.py's `_run_fallback`:
//
//	failure_node = reduce(lambda n, c: n['next'][c[0]], combination[1:], failures[combination[0][0]])
//
// Fallback holds the node names to start when this exact combination
// of failures occurs. Drop, when true, means "this combination is a
// recognized, deliberate dead end" (Python's `fallback: True`): no
// node is started, but the failure is still consumed so a shorter
// sub-combination isn't tried against the same failed ids.
type FailureNode struct {
	Fallback []string
	Drop     bool
	Next     map[string]*FailureNode
}

// FailureTree maps each flow name to its root failure node set, keyed
// by the first (alphabetically) failed node name of a combination.
type FailureTree map[string]map[string]*FailureNode
