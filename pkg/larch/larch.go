// Package larch is an in-memory tree with multi-parent nodes addressed by
// string id. Observers register callbacks that receive a node id and one
// root-to-node path per notification.
package larch

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
)

var (
	ErrNodeExists   = errors.New("larch: node already exists")
	ErrNodeNotFound = errors.New("larch: node not found")
	ErrCycle        = errors.New("larch: relationship would create a cycle")
)

// Signal names a callback channel.
type Signal string

const (
	NodeAdded    Signal = "node-added-inview"
	NodeDeleted  Signal = "node-deleted-inview"
	NodeModified Signal = "node-modified-inview"
)

// Callback receives the node id and one path from a root to the node.
type Callback func(id string, path []string)

type entry[V any] struct {
	value    V
	parents  []string
	children []string
}

type registration struct {
	handle int
	signal Signal
	fn     Callback
}

type notice struct {
	signal Signal
	id     string
	path   []string
}

// Tree holds the nodes. It is not safe for concurrent use.
type Tree[V any] struct {
	nodes  map[string]*entry[V]
	roots  []string
	cbs    []registration
	handle int
	logger *slog.Logger
}

// New creates an empty tree.
func New[V any](logger *slog.Logger) *Tree[V] {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tree[V]{
		nodes:  make(map[string]*entry[V]),
		logger: logger.With("component", "larch"),
	}
}

// Register subscribes fn to signal and returns a handle for Deregister.
func (t *Tree[V]) Register(signal Signal, fn Callback) int {
	t.handle++
	t.cbs = append(t.cbs, registration{handle: t.handle, signal: signal, fn: fn})
	return t.handle
}

// Deregister removes a callback.
func (t *Tree[V]) Deregister(handle int) {
	t.cbs = slices.DeleteFunc(t.cbs, func(r registration) bool { return r.handle == handle })
}

func (t *Tree[V]) notify(ns []notice) {
	for _, n := range ns {
		cbs := slices.Clone(t.cbs)
		for _, r := range cbs {
			if r.signal == n.signal {
				r.fn(n.id, slices.Clone(n.path))
			}
		}
	}
}

func (t *Tree[V]) notices(signal Signal, id string) []notice {
	var out []notice
	for _, p := range t.Paths(id) {
		out = append(out, notice{signal: signal, id: id, path: p})
	}
	return out
}

// AddNode inserts a node, as a root when parentID is empty.
func (t *Tree[V]) AddNode(id string, value V, parentID string) error {
	if _, ok := t.nodes[id]; ok {
		return fmt.Errorf("add %s: %w", id, ErrNodeExists)
	}
	if parentID != "" {
		if _, ok := t.nodes[parentID]; !ok {
			return fmt.Errorf("add %s under %s: %w", id, parentID, ErrNodeNotFound)
		}
	}
	t.nodes[id] = &entry[V]{value: value}
	if parentID == "" {
		t.roots = append(t.roots, id)
	} else {
		t.link(id, parentID)
	}
	t.logger.Debug("add node", "id", id, "parent", parentID)
	t.notify(t.notices(NodeAdded, id))
	return nil
}

// DelNode removes a node. With recursive set every descendant goes too;
// otherwise children lose this parent and orphans become roots.
func (t *Tree[V]) DelNode(id string, recursive bool) error {
	if _, ok := t.nodes[id]; !ok {
		return fmt.Errorf("delete %s: %w", id, ErrNodeNotFound)
	}

	doomed := []string{id}
	if recursive {
		doomed = t.descendants(id)
	}
	var ns []notice
	for i := len(doomed) - 1; i >= 0; i-- {
		ns = append(ns, t.notices(NodeDeleted, doomed[i])...)
	}

	var orphans []string
	for _, d := range doomed {
		de, ok := t.nodes[d]
		if !ok {
			continue
		}
		for _, p := range slices.Clone(de.parents) {
			t.unlink(d, p)
		}
		for _, c := range slices.Clone(de.children) {
			t.unlink(c, d)
			if cur, ok := t.nodes[c]; ok && len(cur.parents) == 0 && !slices.Contains(doomed, c) {
				t.roots = append(t.roots, c)
				orphans = append(orphans, c)
			}
		}
		t.roots = slices.DeleteFunc(t.roots, func(r string) bool { return r == d })
		delete(t.nodes, d)
	}
	for _, o := range orphans {
		ns = append(ns, t.notices(NodeAdded, o)...)
	}
	t.logger.Debug("delete node", "id", id, "recursive", recursive, "removed", len(doomed))
	t.notify(ns)
	return nil
}

// AddParent links id under parentID in addition to its current parents.
func (t *Tree[V]) AddParent(id, parentID string) error {
	e, ok := t.nodes[id]
	if !ok {
		return fmt.Errorf("add parent %s to %s: %w", parentID, id, ErrNodeNotFound)
	}
	if _, ok := t.nodes[parentID]; !ok {
		return fmt.Errorf("add parent %s to %s: %w", parentID, id, ErrNodeNotFound)
	}
	if slices.Contains(e.parents, parentID) {
		return nil
	}
	if id == parentID || t.isAncestor(id, parentID) {
		return fmt.Errorf("add parent %s to %s: %w", parentID, id, ErrCycle)
	}

	var ns []notice
	if len(e.parents) == 0 {
		ns = append(ns, notice{signal: NodeDeleted, id: id, path: []string{id}})
	}
	t.link(id, parentID)
	for _, p := range t.Paths(parentID) {
		ns = append(ns, notice{signal: NodeAdded, id: id, path: append(p, id)})
	}
	t.logger.Debug("add parent", "id", id, "parent", parentID)
	t.notify(ns)
	return nil
}

// RemoveParent unlinks id from parentID. A node left without parents
// becomes a root.
func (t *Tree[V]) RemoveParent(id, parentID string) error {
	e, ok := t.nodes[id]
	if !ok || !slices.Contains(e.parents, parentID) {
		return fmt.Errorf("remove parent %s from %s: %w", parentID, id, ErrNodeNotFound)
	}

	var ns []notice
	for _, p := range t.Paths(parentID) {
		ns = append(ns, notice{signal: NodeDeleted, id: id, path: append(p, id)})
	}
	t.unlink(id, parentID)
	if len(e.parents) == 0 {
		t.roots = append(t.roots, id)
		ns = append(ns, notice{signal: NodeAdded, id: id, path: []string{id}})
	}
	t.logger.Debug("remove parent", "id", id, "parent", parentID)
	t.notify(ns)
	return nil
}

// ModifyNode announces a change to the node on every path.
func (t *Tree[V]) ModifyNode(id string) error {
	if _, ok := t.nodes[id]; !ok {
		return fmt.Errorf("modify %s: %w", id, ErrNodeNotFound)
	}
	t.notify(t.notices(NodeModified, id))
	return nil
}

// CurrentState replays NodeAdded for every node, parents before children.
func (t *Tree[V]) CurrentState() {
	var ns []notice
	stack := make([][]string, 0, len(t.roots))
	for i := len(t.roots) - 1; i >= 0; i-- {
		stack = append(stack, []string{t.roots[i]})
	}
	for len(stack) > 0 {
		path := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		id := path[len(path)-1]
		ns = append(ns, notice{signal: NodeAdded, id: id, path: path})
		children := t.nodes[id].children
		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, append(slices.Clone(path), children[i]))
		}
	}
	t.notify(ns)
}

// Has reports whether id exists.
func (t *Tree[V]) Has(id string) bool {
	_, ok := t.nodes[id]
	return ok
}

// Get returns the value stored for id.
func (t *Tree[V]) Get(id string) (V, bool) {
	e, ok := t.nodes[id]
	if !ok {
		var zero V
		return zero, false
	}
	return e.value, true
}

// Parents returns the parent ids of id in link order.
func (t *Tree[V]) Parents(id string) []string {
	if e, ok := t.nodes[id]; ok {
		return slices.Clone(e.parents)
	}
	return nil
}

// Children returns the child ids of id in link order.
func (t *Tree[V]) Children(id string) []string {
	if e, ok := t.nodes[id]; ok {
		return slices.Clone(e.children)
	}
	return nil
}

// Roots returns the ids of parentless nodes.
func (t *Tree[V]) Roots() []string {
	return slices.Clone(t.roots)
}

// Len returns the number of nodes.
func (t *Tree[V]) Len() int {
	return len(t.nodes)
}

// Paths returns every root-to-node path for id, first parents first.
func (t *Tree[V]) Paths(id string) [][]string {
	if _, ok := t.nodes[id]; !ok {
		return nil
	}
	var out [][]string
	stack := [][]string{{id}}
	for len(stack) > 0 {
		partial := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		parents := t.nodes[partial[0]].parents
		if len(parents) == 0 {
			out = append(out, partial)
			continue
		}
		for i := len(parents) - 1; i >= 0; i-- {
			stack = append(stack, append([]string{parents[i]}, partial...))
		}
	}
	return out
}

// isAncestor reports whether anc is reachable upwards from id.
func (t *Tree[V]) isAncestor(anc, id string) bool {
	stack := []string{id}
	seen := map[string]bool{}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if cur == anc {
			return true
		}
		if seen[cur] {
			continue
		}
		seen[cur] = true
		stack = append(stack, t.nodes[cur].parents...)
	}
	return false
}

// descendants lists id and everything below it in preorder, once each.
func (t *Tree[V]) descendants(id string) []string {
	var out []string
	seen := map[string]bool{}
	stack := []string{id}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[cur] {
			continue
		}
		seen[cur] = true
		out = append(out, cur)
		children := t.nodes[cur].children
		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, children[i])
		}
	}
	return out
}

func (t *Tree[V]) link(id, parentID string) {
	e := t.nodes[id]
	if len(e.parents) == 0 {
		t.roots = slices.DeleteFunc(t.roots, func(r string) bool { return r == id })
	}
	e.parents = append(e.parents, parentID)
	p := t.nodes[parentID]
	p.children = append(p.children, id)
}

func (t *Tree[V]) unlink(id, parentID string) {
	if e, ok := t.nodes[id]; ok {
		e.parents = slices.DeleteFunc(e.parents, func(p string) bool { return p == parentID })
	}
	if p, ok := t.nodes[parentID]; ok {
		p.children = slices.DeleteFunc(p.children, func(c string) bool { return c == id })
	}
}
