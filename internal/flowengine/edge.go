package flowengine

import "github.com/flowmesh/flowmesh/internal/condition"

// Edge is one entry of a flow's edge table: a set of upstream node
// names ("from"), a sequence of downstream node names to schedule
// ("to") once all of "from" have finished and the condition holds,
// and the condition predicate itself. An edge with an empty From set
// is a start edge.
type Edge struct {
	From      []string
	To        []string
	Condition condition.Predicate
}

func (e Edge) IsStart() bool { return len(e.From) == 0 }

func (e Edge) involves(nodeName string) bool {
	for _, n := range e.From {
		if n == nodeName {
			return true
		}
	}
	return false
}
