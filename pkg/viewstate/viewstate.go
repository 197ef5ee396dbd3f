// Package viewstate tracks which parts of a breakdown tree a consumer has
// expanded. The tree itself is never touched: state is keyed by node id and
// evolved by a pure reducer.
package viewstate

import "github.com/bizhealth/bizhealth/pkg/breakdown"

// State is the expansion state for one category tree.
type State struct {
	// Active is the id of the single exclusively expanded first-level node.
	Active string `json:"active,omitempty"`
	// Focus is the node whose calculation is being inspected. It may be at
	// any depth below the active node.
	Focus string `json:"focus,omitempty"`
}

// Action is an event applied by Reduce.
type Action interface {
	isAction()
}

// Activate expands one first-level node and collapses its siblings.
type Activate struct{ ID string }

// Toggle activates ID, or deactivates it when it is already active.
type Toggle struct{ ID string }

// Focus selects a node for calculation inspection. Focusing a node outside
// the active branch activates that branch.
type Focus struct{ ID string }

// Deactivate collapses the active node.
type Deactivate struct{}

// Reset returns to the initial state.
type Reset struct{}

func (Activate) isAction()   {}
func (Toggle) isAction()     {}
func (Focus) isAction()      {}
func (Deactivate) isAction() {}
func (Reset) isAction()      {}

// Reduce applies a to s against tree and returns the next state. Unknown ids
// and actions leave the state unchanged.
func Reduce(tree *breakdown.Node, s State, a Action) State {
	switch a := a.(type) {
	case Activate:
		if !isFirstLevel(tree, a.ID) {
			return s
		}
		if s.Active == a.ID {
			return s
		}
		return State{Active: a.ID}
	case Toggle:
		if s.Active == a.ID {
			return State{}
		}
		return Reduce(tree, s, Activate(a))
	case Focus:
		branch := firstLevelAncestor(tree, a.ID)
		if branch == "" {
			return s
		}
		return State{Active: branch, Focus: a.ID}
	case Deactivate, Reset:
		return State{}
	}
	return s
}

// Expanded reports whether id should be rendered with its children visible.
// The root is always expanded. A first-level node is expanded only while
// active, and deeper nodes follow their first-level ancestor.
func Expanded(tree *breakdown.Node, s State, id string) bool {
	if tree == nil {
		return false
	}
	if id == tree.ID {
		return true
	}
	branch := firstLevelAncestor(tree, id)
	return branch != "" && branch == s.Active
}

// Dimmed reports whether id is a first-level sibling of the active node.
func Dimmed(tree *breakdown.Node, s State, id string) bool {
	return s.Active != "" && id != s.Active && isFirstLevel(tree, id)
}

// Visible returns the ids that should be drawn for s, in tree order.
func Visible(tree *breakdown.Node, s State) []string {
	if tree == nil {
		return nil
	}
	var ids []string
	breakdown.Walk(tree, func(n, _ *breakdown.Node) bool {
		ids = append(ids, n.ID)
		return Expanded(tree, s, n.ID)
	})
	return ids
}

func isFirstLevel(tree *breakdown.Node, id string) bool {
	if tree == nil {
		return false
	}
	for _, c := range tree.Children {
		if c.ID == id {
			return true
		}
	}
	return false
}

// firstLevelAncestor returns the id of the root child containing id (which
// may be that child itself), or "" when id is the root or absent.
func firstLevelAncestor(tree *breakdown.Node, id string) string {
	if tree == nil {
		return ""
	}
	for i := range tree.Children {
		c := &tree.Children[i]
		if breakdown.Find(c, id) != nil {
			return c.ID
		}
	}
	return ""
}
