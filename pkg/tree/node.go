// Package tree provides a hierarchical observable store: nodes held in a
// parent/children tree plus a flat id lookup, with synchronous change
// notifications that derived views consume to stay consistent.
package tree

import (
	"fmt"
	"strings"
)

// Node is an addressable entry in a Store. Its id is fixed for the node's
// lifetime; the parent pointer is a back-reference used for traversal only,
// ownership flows strictly from parent to children.
type Node[K comparable, V any] struct {
	id       K
	Value    V
	parent   *Node[K, V]
	children []*Node[K, V]
}

// NewNode creates a detached node ready to be added to a Store.
func NewNode[K comparable, V any](id K, value V) *Node[K, V] {
	return &Node[K, V]{id: id, Value: value}
}

// ID returns the node identifier.
func (n *Node[K, V]) ID() K {
	return n.id
}

// Parent returns the parent node, or nil for a root or detached node.
func (n *Node[K, V]) Parent() *Node[K, V] {
	return n.parent
}

// IsRoot reports whether the node has no parent.
func (n *Node[K, V]) IsRoot() bool {
	return n.parent == nil
}

// Children returns a copy of the ordered child list.
func (n *Node[K, V]) Children() []*Node[K, V] {
	out := make([]*Node[K, V], len(n.children))
	copy(out, n.children)
	return out
}

// ChildCount returns the number of direct children.
func (n *Node[K, V]) ChildCount() int {
	return len(n.children)
}

// Depth returns the number of ancestors above the node.
func (n *Node[K, V]) Depth() int {
	depth := 0
	for p := n.parent; p != nil; p = p.parent {
		depth++
	}
	return depth
}

// HasAncestor reports whether id names the node itself or one of its ancestors.
func (n *Node[K, V]) HasAncestor(id K) bool {
	for p := n; p != nil; p = p.parent {
		if p.id == id {
			return true
		}
	}
	return false
}

// Walk visits the node and its descendants depth-first in child order.
// Returning false from fn skips the visited node's children.
func (n *Node[K, V]) Walk(fn func(*Node[K, V]) bool) {
	stack := []*Node[K, V]{n}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !fn(cur) {
			continue
		}
		for i := len(cur.children) - 1; i >= 0; i-- {
			stack = append(stack, cur.children[i])
		}
	}
}

// Size returns the number of nodes in the subtree rooted at n.
func (n *Node[K, V]) Size() int {
	size := 0
	n.Walk(func(*Node[K, V]) bool {
		size++
		return true
	})
	return size
}

// String renders the value when it is a fmt.Stringer, otherwise the value and id.
func (n *Node[K, V]) String() string {
	if s, ok := any(n.Value).(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("%v (%v)", n.Value, n.id)
}

func (n *Node[K, V]) indexOfChild(child *Node[K, V]) int {
	for i, c := range n.children {
		if c == child {
			return i
		}
	}
	return -1
}

func (n *Node[K, V]) removeChildAt(i int) {
	copy(n.children[i:], n.children[i+1:])
	n.children[len(n.children)-1] = nil
	n.children = n.children[:len(n.children)-1]
}

type formatFrame[K comparable, V any] struct {
	node  *Node[K, V]
	depth int
}

// Format writes the subtrees rooted at nodes, one line per node, indenting
// three spaces per level.
func Format[K comparable, V any](nodes []*Node[K, V]) string {
	var sb strings.Builder
	stack := make([]formatFrame[K, V], 0, len(nodes))
	for i := len(nodes) - 1; i >= 0; i-- {
		stack = append(stack, formatFrame[K, V]{nodes[i], 0})
	}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		sb.WriteString(strings.Repeat("   ", f.depth))
		sb.WriteString(" └ ")
		sb.WriteString(f.node.String())
		sb.WriteByte('\n')
		for i := len(f.node.children) - 1; i >= 0; i-- {
			stack = append(stack, formatFrame[K, V]{f.node.children[i], f.depth + 1})
		}
	}
	return sb.String()
}
