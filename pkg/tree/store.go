package tree

import (
	"fmt"
	"log/slog"
	"slices"
)

// Option configures a Store.
type Option func(*options)

type options struct {
	logger *slog.Logger
	name   string
}

// WithLogger sets the logger used for debug tracing of mutations.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithName labels the store in log output.
func WithName(name string) Option {
	return func(o *options) {
		o.name = name
	}
}

// Store owns a set of nodes: a flat id lookup and an ordered root list.
// Every mutation notifies subscribers synchronously, in subscription order,
// before returning.
//
// A Store is not safe for concurrent use. Confine each store (and the views
// built on it) to one goroutine, or route all mutations through one.
type Store[K comparable, V any] struct {
	lookup map[K]*Node[K, V]
	roots  []*Node[K, V]

	subs    []*subscriber[K, V]
	nextSub uint64
	holding int
	queue   []Event[K, V]

	logger *slog.Logger
	name   string
}

// NewStore creates an empty store.
func NewStore[K comparable, V any](opts ...Option) *Store[K, V] {
	o := options{logger: slog.Default(), name: "store"}
	for _, opt := range opts {
		opt(&o)
	}
	return &Store[K, V]{
		lookup: make(map[K]*Node[K, V]),
		logger: o.logger.With("store", o.name),
		name:   o.name,
	}
}

// Name returns the store label.
func (s *Store[K, V]) Name() string {
	return s.name
}

// Add registers a detached node as a new root and emits EventAdded.
func (s *Store[K, V]) Add(n *Node[K, V]) error {
	return s.AddAt(n, -1)
}

// AddAt is Add with the node placed at index in the root list. A negative
// or out of range index appends.
func (s *Store[K, V]) AddAt(n *Node[K, V], index int) error {
	if err := s.checkAddable(n); err != nil {
		return err
	}
	s.add(n, index)
	return nil
}

// AddChild registers a detached node and immediately attaches it under
// parentID. Observers see EventAdded followed by the reparenting pair
// (intermediate EventRemoved, EventParentChanged).
func (s *Store[K, V]) AddChild(n *Node[K, V], parentID K) error {
	return s.AddChildAt(n, parentID, -1)
}

// AddChildAt is AddChild with the node placed at index among the parent's
// children.
func (s *Store[K, V]) AddChildAt(n *Node[K, V], parentID K, index int) error {
	if err := s.checkAddable(n); err != nil {
		return err
	}
	parent, ok := s.lookup[parentID]
	if !ok {
		return fmt.Errorf("add %v under %v: parent %w", n.id, parentID, ErrNotFound)
	}
	s.add(n, -1)
	s.attach(n, parent, index)
	return nil
}

func (s *Store[K, V]) checkAddable(n *Node[K, V]) error {
	if n == nil {
		return fmt.Errorf("add nil node: %w", ErrInvalidRelationship)
	}
	if _, exists := s.lookup[n.id]; exists {
		s.logger.Warn("failed to add node, already added", "id", n.id)
		return fmt.Errorf("add %v: %w", n.id, ErrDuplicateID)
	}
	if n.parent != nil || len(n.children) > 0 {
		return fmt.Errorf("add %v: node is not detached: %w", n.id, ErrInvalidRelationship)
	}
	return nil
}

func (s *Store[K, V]) add(n *Node[K, V], index int) {
	s.roots = insertAt(s.roots, n, index)
	s.lookup[n.id] = n
	s.logger.Debug("add", "id", n.id)
	s.emit(Event[K, V]{Kind: EventAdded, Node: n, ID: n.id})
}

// Remove deletes the node and its whole subtree from the lookup. Only the
// subtree root is announced; the removed subtree stays linked internally so
// observers can walk it.
func (s *Store[K, V]) Remove(id K) error {
	n, ok := s.lookup[id]
	if !ok {
		return fmt.Errorf("remove %v: %w", id, ErrNotFound)
	}

	var position uint
	wasRoot := n.parent == nil
	if wasRoot {
		idx := s.rootIndex(n)
		position = uint(idx)
		s.removeRootAt(idx)
	} else {
		parent := n.parent
		parent.removeChildAt(parent.indexOfChild(n))
		n.parent = nil
	}

	n.Walk(func(d *Node[K, V]) bool {
		delete(s.lookup, d.id)
		return true
	})

	s.logger.Debug("remove", "id", id, "was_root", wasRoot, "position", position)
	s.emit(Event[K, V]{
		Kind:     EventRemoved,
		Node:     n,
		ID:       id,
		Position: position,
		WasRoot:  wasRoot,
	})
	return nil
}

// Parent attaches a root node under parentID. Observers see an intermediate
// EventRemoved for the root slot, then EventParentChanged.
//
// A node that already has a parent must be unparented first; attaching a
// node under itself or one of its descendants is rejected.
func (s *Store[K, V]) Parent(id, parentID K) error {
	return s.ParentAt(id, parentID, -1)
}

// ParentAt is Parent with the node placed at index among the parent's
// children.
func (s *Store[K, V]) ParentAt(id, parentID K, index int) error {
	n, ok := s.lookup[id]
	if !ok {
		return fmt.Errorf("parent %v: %w", id, ErrNotFound)
	}
	parent, ok := s.lookup[parentID]
	if !ok {
		return fmt.Errorf("parent %v under %v: parent %w", id, parentID, ErrNotFound)
	}
	if n.parent != nil {
		return fmt.Errorf("parent %v under %v: already a child of %v: %w", id, parentID, n.parent.id, ErrInvalidRelationship)
	}
	if parent.HasAncestor(id) {
		return fmt.Errorf("parent %v under %v: would create a cycle: %w", id, parentID, ErrInvalidRelationship)
	}
	s.attach(n, parent, index)
	return nil
}

func (s *Store[K, V]) attach(n, parent *Node[K, V], index int) {
	idx := s.rootIndex(n)
	s.removeRootAt(idx)
	s.emit(Event[K, V]{
		Kind:         EventRemoved,
		Node:         n,
		ID:           n.id,
		Position:     uint(idx),
		WasRoot:      true,
		Intermediate: true,
	})

	parent.children = insertAt(parent.children, n, index)
	n.parent = parent
	s.logger.Debug("parent", "id", n.id, "parent", parent.id)
	s.emit(Event[K, V]{Kind: EventParentChanged, Node: n, Parent: parent, ID: n.id})
}

// Unparent detaches id from parentID and appends it to the root list.
// Observers see EventAdded followed by EventParentRemoved.
func (s *Store[K, V]) Unparent(id, parentID K) error {
	return s.UnparentAt(id, parentID, -1)
}

// UnparentAt is Unparent with the node placed at index in the root list.
func (s *Store[K, V]) UnparentAt(id, parentID K, index int) error {
	parent, ok := s.lookup[parentID]
	if !ok {
		return fmt.Errorf("unparent %v from %v: parent %w", id, parentID, ErrNotFound)
	}
	n, ok := s.lookup[id]
	if !ok {
		return fmt.Errorf("unparent %v from %v: %w", id, parentID, ErrNotFound)
	}
	if n.parent != parent {
		return fmt.Errorf("unparent %v from %v: not a child: %w: %w", id, parentID, ErrInvalidRelationship, ErrNotFound)
	}

	parent.removeChildAt(parent.indexOfChild(n))
	n.parent = nil
	s.roots = insertAt(s.roots, n, index)
	s.logger.Debug("unparent", "id", id, "parent", parentID)
	s.emit(Event[K, V]{Kind: EventAdded, Node: n, ID: id})
	s.emit(Event[K, V]{Kind: EventParentRemoved, Node: n, Parent: parent, ID: id})
	return nil
}

// MoveRoot repositions a root within the root list. index counts positions
// with the node already taken out. Observers see an intermediate
// EventRemoved followed by EventAdded.
func (s *Store[K, V]) MoveRoot(id K, index int) error {
	n, ok := s.lookup[id]
	if !ok {
		return fmt.Errorf("move %v: %w", id, ErrNotFound)
	}
	if n.parent != nil {
		return fmt.Errorf("move %v: child of %v, not a root: %w", id, n.parent.id, ErrInvalidRelationship)
	}
	idx := s.rootIndex(n)
	s.removeRootAt(idx)
	s.roots = insertAt(s.roots, n, index)
	s.logger.Debug("move", "id", id, "from", idx, "to", index)
	s.emit(Event[K, V]{
		Kind:         EventRemoved,
		Node:         n,
		ID:           id,
		Position:     uint(idx),
		WasRoot:      true,
		Intermediate: true,
	})
	s.emit(Event[K, V]{Kind: EventAdded, Node: n, ID: id})
	return nil
}

// Index returns the position of a node among its siblings: the parent's
// children, or the root list.
func (s *Store[K, V]) Index(id K) (int, error) {
	n, ok := s.lookup[id]
	if !ok {
		return 0, fmt.Errorf("index %v: %w", id, ErrNotFound)
	}
	if n.parent != nil {
		return n.parent.indexOfChild(n), nil
	}
	return s.rootIndex(n), nil
}

// Touch announces that the node's value changed.
func (s *Store[K, V]) Touch(id K) error {
	n, ok := s.lookup[id]
	if !ok {
		return fmt.Errorf("touch %v: %w", id, ErrNotFound)
	}
	s.emit(Event[K, V]{Kind: EventModified, Node: n, ID: id})
	return nil
}

// Clear removes every root subtree, announcing each removal.
func (s *Store[K, V]) Clear() {
	for len(s.roots) > 0 {
		_ = s.Remove(s.roots[0].id)
	}
}

// Get returns the node for id.
func (s *Store[K, V]) Get(id K) (*Node[K, V], error) {
	n, ok := s.lookup[id]
	if !ok {
		return nil, fmt.Errorf("get %v: %w", id, ErrNotFound)
	}
	return n, nil
}

// Has reports whether id is live in the store.
func (s *Store[K, V]) Has(id K) bool {
	_, ok := s.lookup[id]
	return ok
}

// Count returns the number of roots, or of all nodes.
func (s *Store[K, V]) Count(rootsOnly bool) int {
	if rootsOnly {
		return len(s.roots)
	}
	return len(s.lookup)
}

// Roots returns a copy of the ordered root list.
func (s *Store[K, V]) Roots() []*Node[K, V] {
	out := make([]*Node[K, V], len(s.roots))
	copy(out, s.roots)
	return out
}

// Walk visits every node depth-first, roots in order.
func (s *Store[K, V]) Walk(fn func(*Node[K, V]) bool) {
	for _, r := range s.Roots() {
		r.Walk(fn)
	}
}

// String renders the store as an indented tree.
func (s *Store[K, V]) String() string {
	return Format(s.roots)
}

// Subscribe registers h for every subsequent event.
func (s *Store[K, V]) Subscribe(h Handler[K, V]) *Subscription {
	s.nextSub++
	sub := &subscriber[K, V]{id: s.nextSub, fn: h, active: true}
	s.subs = append(s.subs, sub)
	return &Subscription{cancel: func() {
		sub.active = false
		for i, cur := range s.subs {
			if cur == sub {
				s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
				break
			}
		}
	}}
}

// Batch runs fn and holds every event it triggers until fn returns, then
// delivers them in order. Nested batches flush once, at the outermost level.
func (s *Store[K, V]) Batch(fn func()) {
	s.holding++
	defer func() {
		s.holding--
		if s.holding == 0 {
			s.flush()
		}
	}()
	fn()
}

func (s *Store[K, V]) emit(ev Event[K, V]) {
	if s.holding > 0 {
		s.queue = append(s.queue, ev)
		return
	}
	s.deliver(ev)
}

func (s *Store[K, V]) flush() {
	for len(s.queue) > 0 {
		pending := s.queue
		s.queue = nil
		for _, ev := range pending {
			s.deliver(ev)
		}
	}
}

func (s *Store[K, V]) deliver(ev Event[K, V]) {
	subs := make([]*subscriber[K, V], len(s.subs))
	copy(subs, s.subs)
	for _, sub := range subs {
		if sub.active {
			sub.fn(ev)
		}
	}
}

func (s *Store[K, V]) rootIndex(n *Node[K, V]) int {
	for i, r := range s.roots {
		if r == n {
			return i
		}
	}
	return -1
}

func (s *Store[K, V]) removeRootAt(i int) {
	copy(s.roots[i:], s.roots[i+1:])
	s.roots[len(s.roots)-1] = nil
	s.roots = s.roots[:len(s.roots)-1]
}

// insertAt places n at index, appending when index is out of range.
func insertAt[K comparable, V any](list []*Node[K, V], n *Node[K, V], index int) []*Node[K, V] {
	if index < 0 || index >= len(list) {
		return append(list, n)
	}
	return slices.Insert(list, index, n)
}
