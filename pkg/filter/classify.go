// Package filter maintains derived trees that show only the nodes of a
// source matching a predicate, kept consistent with the source through its
// change events.
package filter

import "github.com/gtgtree/gtgtree/pkg/tree"

// Visibility is the outcome of classifying a node against a predicate.
type Visibility int

const (
	// FullMatch: the node and every ancestor match.
	FullMatch Visibility = iota
	// MatchViaAncestor: the node matches but some ancestor does not.
	MatchViaAncestor
	// NoMatch: the node itself does not match.
	NoMatch
)

func (v Visibility) String() string {
	switch v {
	case FullMatch:
		return "full"
	case MatchViaAncestor:
		return "via-ancestor"
	case NoMatch:
		return "none"
	default:
		return "unknown"
	}
}

// Predicate decides whether a node matches. A nil Predicate matches everything.
type Predicate[K comparable, V any] func(*tree.Node[K, V]) bool

// Classify reports how n relates to pred, walking the ancestor chain.
func Classify[K comparable, V any](n *tree.Node[K, V], pred Predicate[K, V]) Visibility {
	if pred == nil {
		return FullMatch
	}
	if !pred(n) {
		return NoMatch
	}
	for p := n.Parent(); p != nil; p = p.Parent() {
		if !pred(p) {
			return MatchViaAncestor
		}
	}
	return FullMatch
}

// childVisibility derives a child's classification from its parent's.
func childVisibility[K comparable, V any](child *tree.Node[K, V], parent Visibility, pred Predicate[K, V]) Visibility {
	if pred == nil {
		return FullMatch
	}
	if !pred(child) {
		return NoMatch
	}
	if parent == FullMatch {
		return FullMatch
	}
	return MatchViaAncestor
}

// Included reports whether a node with visibility v appears in a view with
// the given blocking policy.
func Included(v Visibility, blocking bool) bool {
	if v == FullMatch {
		return true
	}
	return !blocking && v == MatchViaAncestor
}
