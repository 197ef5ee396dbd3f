// Package breakdown defines the explainable score tree that justifies a
// category score down to leaf-level calculations.
//
// Trees are plain values. Nothing in this package tracks expansion or
// selection; see package viewstate for that.
package breakdown

import (
	"errors"
	"fmt"
)

// Node is one scoreable element of a breakdown tree.
type Node struct {
	ID                     string  `json:"id"`
	Name                   string  `json:"name"`
	Score                  float64 `json:"score"`
	MaxScore               float64 `json:"max_score"`
	Contribution           float64 `json:"contribution"` // percent of the parent's max score
	Level                  int     `json:"level"`
	Description            string  `json:"description,omitempty"`
	CalculationValue       string  `json:"calculation_value,omitempty"`
	CalculationDescription string  `json:"calculation_description,omitempty"`
	IsCalculationDriver    bool    `json:"is_calculation_driver"`
	Children               []Node  `json:"children,omitempty"`
}

// Band returns the derived performance band for the node.
func (n Node) Band() Band {
	return BandFor(n.Score, n.MaxScore)
}

// IsLeaf reports whether the node has no children.
func (n Node) IsLeaf() bool {
	return len(n.Children) == 0
}

// Root builds a level-0 category node. Children are re-levelled and their
// contribution is recomputed against the root budget.
func Root(id, name, description string, score, maxScore float64, children ...Node) Node {
	n := Node{
		ID:           id,
		Name:         name,
		Score:        score,
		MaxScore:     maxScore,
		Contribution: 100,
		Description:  description,
	}
	n.Children = adopt(n, children)
	return n
}

// Branch builds an intermediate node whose score is explained by its children.
func Branch(id, name, description string, score, maxScore float64, children ...Node) Node {
	n := Node{
		ID:          id,
		Name:        name,
		Score:       score,
		MaxScore:    maxScore,
		Description: description,
	}
	n.Children = children
	return n
}

// Leaf builds a calculation driver. The calculation description is always
// derived from c so it cannot drift from the reported score.
func Leaf(id, name, description string, c Calc) Node {
	return Node{
		ID:                     id,
		Name:                   name,
		Score:                  c.Score,
		MaxScore:               c.Max,
		Description:            description,
		CalculationValue:       c.Value,
		CalculationDescription: c.String(),
		IsCalculationDriver:    true,
	}
}

// adopt sets level and contribution on children relative to parent, recursively.
func adopt(parent Node, children []Node) []Node {
	if len(children) == 0 {
		return nil
	}
	out := make([]Node, len(children))
	for i, c := range children {
		c.Level = parent.Level + 1
		c.Contribution = 0
		if parent.MaxScore > 0 {
			c.Contribution = roundTo(c.MaxScore/parent.MaxScore*100, 2)
		}
		c.Children = adopt(c, c.Children)
		out[i] = c
	}
	return out
}

// Walk visits n and its descendants depth-first, pre-order. The parent of the
// root is nil. Returning false from fn stops descent into that node's children.
func Walk(n *Node, fn func(node, parent *Node) bool) {
	walk(n, nil, fn)
}

func walk(n, parent *Node, fn func(node, parent *Node) bool) {
	if !fn(n, parent) {
		return
	}
	for i := range n.Children {
		walk(&n.Children[i], n, fn)
	}
}

// Find returns the node with the given id, or nil.
func Find(root *Node, id string) *Node {
	var found *Node
	Walk(root, func(n, _ *Node) bool {
		if found != nil {
			return false
		}
		if n.ID == id {
			found = n
			return false
		}
		return true
	})
	return found
}

// Parent returns the parent of the node with the given id, or nil for the
// root or an unknown id.
func Parent(root *Node, id string) *Node {
	var parent *Node
	Walk(root, func(n, p *Node) bool {
		if n.ID == id {
			parent = p
			return false
		}
		return parent == nil
	})
	return parent
}

// Leaves returns every calculation driver under root, in presentation order.
func Leaves(root *Node) []Node {
	var out []Node
	Walk(root, func(n, _ *Node) bool {
		if n.IsLeaf() {
			out = append(out, *n)
		}
		return true
	})
	return out
}

// ErrInvalidTree is wrapped by every Validate failure.
var ErrInvalidTree = errors.New("invalid breakdown tree")

// Validate checks the structural invariants of a tree:
//   - 0 <= score <= max score on every node
//   - levels increase by exactly one per generation
//   - a child's max score never exceeds its parent's
//   - every node is a branch or a calculation driver with a description
func Validate(root Node) error {
	var err error
	Walk(&root, func(n, p *Node) bool {
		if err != nil {
			return false
		}
		switch {
		case n.Score < 0:
			err = fmt.Errorf("%w: %s has negative score %v", ErrInvalidTree, n.ID, n.Score)
		case n.Score > n.MaxScore+1e-9:
			err = fmt.Errorf("%w: %s score %v exceeds max %v", ErrInvalidTree, n.ID, n.Score, n.MaxScore)
		case p != nil && n.Level != p.Level+1:
			err = fmt.Errorf("%w: %s has level %d under level %d", ErrInvalidTree, n.ID, n.Level, p.Level)
		case p != nil && n.MaxScore > p.MaxScore:
			err = fmt.Errorf("%w: %s max %v exceeds parent budget %v", ErrInvalidTree, n.ID, n.MaxScore, p.MaxScore)
		case n.IsLeaf() && (!n.IsCalculationDriver || n.CalculationDescription == ""):
			err = fmt.Errorf("%w: %s is neither a branch nor a calculation driver", ErrInvalidTree, n.ID)
		}
		return err == nil
	})
	return err
}
