package filter

import (
	"log/slog"
	"slices"

	"github.com/google/uuid"

	"github.com/gtgtree/gtgtree/pkg/tree"
)

// Option configures a View.
type Option func(*viewOptions)

type viewOptions struct {
	logger *slog.Logger
	name   string
	newID  func() uuid.UUID
}

// WithLogger sets the logger for the view and its derived store.
func WithLogger(logger *slog.Logger) Option {
	return func(o *viewOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithName labels the view in log output.
func WithName(name string) Option {
	return func(o *viewOptions) {
		o.name = name
	}
}

// View is a derived tree holding one proxy node per source node that passes
// the inclusion policy. Each proxy wraps its source node as its value and
// has its own id.
//
// With blocking set, only FullMatch nodes appear, nested exactly as in the
// source. Without it, MatchViaAncestor nodes appear as well, attached to
// their nearest included ancestor or promoted to roots.
//
// A View is itself a tree.Source, so views can be stacked.
type View[K comparable, V any] struct {
	source    tree.Source[K, V]
	store     *tree.Store[uuid.UUID, *tree.Node[K, V]]
	predicate Predicate[K, V]
	blocking  bool
	proxies   map[K]*tree.Node[uuid.UUID, *tree.Node[K, V]]
	sub       *tree.Subscription
	logger    *slog.Logger
	newID     func() uuid.UUID
	stale     bool
}

// New builds a view over source and subscribes to it. A nil predicate
// matches everything.
func New[K comparable, V any](source tree.Source[K, V], predicate Predicate[K, V], blocking bool, opts ...Option) *View[K, V] {
	o := viewOptions{logger: slog.Default(), name: "filter", newID: uuid.New}
	for _, opt := range opts {
		opt(&o)
	}
	v := &View[K, V]{
		source:    source,
		store:     tree.NewStore[uuid.UUID, *tree.Node[K, V]](tree.WithLogger(o.logger), tree.WithName(o.name)),
		predicate: predicate,
		blocking:  blocking,
		proxies:   make(map[K]*tree.Node[uuid.UUID, *tree.Node[K, V]]),
		logger:    o.logger.With("view", o.name),
		newID:     o.newID,
	}
	v.Resync()
	v.sub = source.Subscribe(v.handle)
	return v
}

// Close stops following the source. The derived tree is left as it was.
func (v *View[K, V]) Close() {
	v.sub.Unsubscribe()
}

// Predicate returns the current predicate.
func (v *View[K, V]) Predicate() Predicate[K, V] {
	return v.predicate
}

// SetPredicate replaces the predicate and rebuilds the view.
func (v *View[K, V]) SetPredicate(p Predicate[K, V]) {
	v.predicate = p
	v.Resync()
}

// Blocking reports the inclusion policy.
func (v *View[K, V]) Blocking() bool {
	return v.blocking
}

// SetBlocking switches the inclusion policy and rebuilds the view.
func (v *View[K, V]) SetBlocking(blocking bool) {
	v.blocking = blocking
	v.Resync()
}

// Resync discards every proxy and rebuilds the view from the source roots.
func (v *View[K, V]) Resync() {
	v.store.Batch(v.resync)
}

func (v *View[K, V]) resync() {
	v.store.Clear()
	v.proxies = make(map[K]*tree.Node[uuid.UUID, *tree.Node[K, V]])
	v.stale = false

	var stack []syncFrame[K, V]
	roots := v.source.Roots()
	for i := len(roots) - 1; i >= 0; i-- {
		stack = append(stack, syncFrame[K, V]{node: roots[i], vis: Classify(roots[i], v.predicate)})
	}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		anchor := f.anchor
		if Included(f.vis, v.blocking) {
			anchor = v.insert(f.node, f.anchor, -1)
		} else if v.blocking {
			// Nothing below a blocked node can be a full match.
			continue
		}
		children := f.node.Children()
		for i := len(children) - 1; i >= 0; i-- {
			c := children[i]
			stack = append(stack, syncFrame[K, V]{node: c, vis: childVisibility(c, f.vis, v.predicate), anchor: anchor})
		}
	}
	v.logger.Debug("resync", "proxies", len(v.proxies), "blocking", v.blocking)
}

// insert creates the proxy for n at index under anchor, or among the roots.
func (v *View[K, V]) insert(n *tree.Node[K, V], anchor *tree.Node[uuid.UUID, *tree.Node[K, V]], index int) *tree.Node[uuid.UUID, *tree.Node[K, V]] {
	p := tree.NewNode(v.newID(), n)
	var err error
	if anchor == nil {
		err = v.store.AddAt(p, index)
	} else {
		err = v.store.AddChildAt(p, anchor.ID(), index)
	}
	if err != nil {
		v.invalidate("insert", n.ID(), err)
		return anchor
	}
	v.proxies[n.ID()] = p
	return p
}

func (v *View[K, V]) handle(ev tree.Event[K, V]) {
	v.store.Batch(func() {
		switch ev.Kind {
		case tree.EventRemoved:
			if ev.Intermediate {
				// The node is relocating; the event that follows places its proxy.
				return
			}
			v.drop(ev.Node)
		case tree.EventAdded, tree.EventParentChanged, tree.EventParentRemoved, tree.EventModified:
			v.reconcile(ev.Node)
		}
		if v.stale {
			v.resync()
		}
	})
}

// drop removes the proxies of a removed source subtree.
func (v *View[K, V]) drop(n *tree.Node[K, V]) {
	if n == nil {
		return
	}
	n.Walk(func(d *tree.Node[K, V]) bool {
		if p, ok := v.proxies[d.ID()]; ok {
			if v.store.Has(p.ID()) {
				if err := v.store.Remove(p.ID()); err != nil {
					v.invalidate("drop", d.ID(), err)
				}
			}
			delete(v.proxies, d.ID())
		}
		return true
	})
}

type syncFrame[K comparable, V any] struct {
	node   *tree.Node[K, V]
	vis    Visibility
	anchor *tree.Node[uuid.UUID, *tree.Node[K, V]]
}

type planFrame[K comparable, V any] struct {
	node   *tree.Node[K, V]
	vis    Visibility
	anchor *tree.Node[K, V]
}

type placement[K comparable, V any] struct {
	node     *tree.Node[K, V]
	included bool
	anchor   *tree.Node[K, V]
}

// reconcile brings the proxies of n's subtree in line with the inclusion
// policy and n's current position in the source.
func (v *View[K, V]) reconcile(n *tree.Node[K, V]) {
	if n == nil || !v.source.Has(n.ID()) {
		return
	}

	vis, anchor := v.locate(n)
	plan := v.plan(n, vis, anchor)

	// Children before parents: an excluded proxy hands its remaining
	// (included) children to the root list before it goes.
	for i := len(plan) - 1; i >= 0; i-- {
		step := plan[i]
		p, ok := v.proxies[step.node.ID()]
		if step.included || !ok {
			continue
		}
		for _, c := range p.Children() {
			if err := v.store.Unparent(c.ID(), p.ID()); err != nil {
				v.invalidate("release", step.node.ID(), err)
			}
		}
		if err := v.store.Remove(p.ID()); err != nil {
			v.invalidate("exclude", step.node.ID(), err)
		}
		delete(v.proxies, step.node.ID())
	}

	// Parents before children, each proxy placed after its closest earlier
	// sibling so the order matches a resync.
	order := make(siblingOrder[K, V])
	var touched []*tree.Node[K, V]
	for _, step := range plan {
		if !step.included {
			continue
		}
		var want *tree.Node[uuid.UUID, *tree.Node[K, V]]
		if step.anchor != nil {
			var ok bool
			if want, ok = v.proxies[step.anchor.ID()]; !ok {
				v.invalidate("anchor", step.node.ID(), tree.ErrNotFound)
				continue
			}
		}
		if !slices.Contains(touched, step.anchor) {
			touched = append(touched, step.anchor)
		}
		p, ok := v.proxies[step.node.ID()]
		if !ok {
			v.insert(step.node, want, v.target(order, step, want, nil))
			continue
		}
		index := v.target(order, step, want, p)
		cur := p.Parent()
		if cur == want {
			if at, err := v.store.Index(p.ID()); err == nil && at == index {
				continue
			}
		}
		if err := v.move(p, cur, want, index); err != nil {
			v.invalidate("move", step.node.ID(), err)
		}
	}

	// Placement trusts earlier siblings to be in order already, which does
	// not hold while a batch of source events is still being delivered.
	for _, anchor := range touched {
		if v.stale {
			return
		}
		v.arrange(order, anchor)
	}
}

// arrange reorders the proxies under anchor's proxy (the roots when anchor
// is nil) into source order. Proxies that belong elsewhere go last, in
// their current order, until their own events move them.
func (v *View[K, V]) arrange(order siblingOrder[K, V], anchor *tree.Node[K, V]) {
	var want *tree.Node[uuid.UUID, *tree.Node[K, V]]
	current := v.store.Roots()
	if anchor != nil {
		var ok bool
		if want, ok = v.proxies[anchor.ID()]; !ok {
			v.invalidate("arrange", anchor.ID(), tree.ErrNotFound)
			return
		}
		current = want.Children()
	}

	pending := make(map[*tree.Node[uuid.UUID, *tree.Node[K, V]]]bool, len(current))
	for _, p := range current {
		pending[p] = true
	}
	desired := make([]*tree.Node[uuid.UUID, *tree.Node[K, V]], 0, len(current))
	for _, n := range v.siblings(order, anchor) {
		if p, ok := v.proxies[n.ID()]; ok && pending[p] {
			desired = append(desired, p)
			delete(pending, p)
		}
	}
	for _, p := range current {
		if pending[p] {
			desired = append(desired, p)
		}
	}

	for i, p := range desired {
		at, err := v.store.Index(p.ID())
		if err != nil {
			v.invalidate("arrange", p.Value.ID(), err)
			return
		}
		if at == i {
			continue
		}
		if err := v.move(p, want, want, i); err != nil {
			v.invalidate("arrange", p.Value.ID(), err)
			return
		}
	}
}

// move relocates p from cur to index under want; nil means the root list.
func (v *View[K, V]) move(p, cur, want *tree.Node[uuid.UUID, *tree.Node[K, V]], index int) error {
	switch {
	case cur == nil && want == nil:
		return v.store.MoveRoot(p.ID(), index)
	case cur == nil:
		return v.store.ParentAt(p.ID(), want.ID(), index)
	case want == nil:
		return v.store.UnparentAt(p.ID(), cur.ID(), index)
	}
	if err := v.store.Unparent(p.ID(), cur.ID()); err != nil {
		return err
	}
	return v.store.ParentAt(p.ID(), want.ID(), index)
}

// siblingOrder caches, per anchor (nil for the roots), the source nodes that
// belong directly under that anchor's proxy, in source preorder.
type siblingOrder[K comparable, V any] map[*tree.Node[K, V]][]*tree.Node[K, V]

// target returns the index for step's proxy among want's children, counted
// without p itself: right after the closest earlier sibling already under
// want, or first when there is none.
func (v *View[K, V]) target(order siblingOrder[K, V], step placement[K, V], want, p *tree.Node[uuid.UUID, *tree.Node[K, V]]) int {
	sibs := v.siblings(order, step.anchor)
	i := slices.Index(sibs, step.node)
	if i < 0 {
		return -1
	}
	for j := i - 1; j >= 0; j-- {
		q, ok := v.proxies[sibs[j].ID()]
		if !ok || q == p || q.Parent() != want || !v.store.Has(q.ID()) {
			continue
		}
		at, err := v.store.Index(q.ID())
		if err != nil {
			continue
		}
		if p != nil && p.Parent() == want {
			if pi, err := v.store.Index(p.ID()); err == nil && pi < at {
				at--
			}
		}
		return at + 1
	}
	return 0
}

func (v *View[K, V]) siblings(order siblingOrder[K, V], anchor *tree.Node[K, V]) []*tree.Node[K, V] {
	sibs, ok := order[anchor]
	if !ok {
		sibs = v.viewChildren(anchor)
		order[anchor] = sibs
	}
	return sibs
}

// viewChildren lists, in source preorder, the included nodes whose nearest
// included ancestor is anchor, or that have none when anchor is nil.
func (v *View[K, V]) viewChildren(anchor *tree.Node[K, V]) []*tree.Node[K, V] {
	var stack []planFrame[K, V]
	if anchor == nil {
		roots := v.source.Roots()
		for i := len(roots) - 1; i >= 0; i-- {
			stack = append(stack, planFrame[K, V]{node: roots[i], vis: Classify(roots[i], v.predicate)})
		}
	} else {
		vis, _ := v.locate(anchor)
		children := anchor.Children()
		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, planFrame[K, V]{node: children[i], vis: childVisibility(children[i], vis, v.predicate)})
		}
	}

	var out []*tree.Node[K, V]
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if Included(f.vis, v.blocking) {
			out = append(out, f.node)
			continue
		}
		if v.blocking {
			continue
		}
		children := f.node.Children()
		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, planFrame[K, V]{node: children[i], vis: childVisibility(children[i], f.vis, v.predicate)})
		}
	}
	return out
}

// locate classifies n and finds its nearest included ancestor.
func (v *View[K, V]) locate(n *tree.Node[K, V]) (Visibility, *tree.Node[K, V]) {
	var chain []*tree.Node[K, V]
	for p := n.Parent(); p != nil; p = p.Parent() {
		chain = append(chain, p)
	}
	var anchor *tree.Node[K, V]
	vis := FullMatch
	for i := len(chain) - 1; i >= 0; i-- {
		a := chain[i]
		if i == len(chain)-1 {
			vis = Classify(a, v.predicate)
		} else {
			vis = childVisibility(a, vis, v.predicate)
		}
		if Included(vis, v.blocking) {
			anchor = a
		}
	}
	if len(chain) == 0 {
		return Classify(n, v.predicate), nil
	}
	return childVisibility(n, vis, v.predicate), anchor
}

// plan lists n's subtree in preorder with each node's desired state.
func (v *View[K, V]) plan(n *tree.Node[K, V], vis Visibility, anchor *tree.Node[K, V]) []placement[K, V] {
	var out []placement[K, V]
	stack := []planFrame[K, V]{{node: n, vis: vis, anchor: anchor}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		included := Included(f.vis, v.blocking)
		out = append(out, placement[K, V]{node: f.node, included: included, anchor: f.anchor})
		next := f.anchor
		if included {
			next = f.node
		}
		children := f.node.Children()
		for i := len(children) - 1; i >= 0; i-- {
			c := children[i]
			stack = append(stack, planFrame[K, V]{node: c, vis: childVisibility(c, f.vis, v.predicate), anchor: next})
		}
	}
	return out
}

func (v *View[K, V]) invalidate(op string, id K, err error) {
	v.logger.Debug("incremental update failed, scheduling resync", "op", op, "id", id, "error", err)
	v.stale = true
}

// ProxyFor returns the proxy standing for the source node id.
func (v *View[K, V]) ProxyFor(id K) (*tree.Node[uuid.UUID, *tree.Node[K, V]], bool) {
	p, ok := v.proxies[id]
	return p, ok
}

// Subscribe registers h for the view's own events.
func (v *View[K, V]) Subscribe(h tree.Handler[uuid.UUID, *tree.Node[K, V]]) *tree.Subscription {
	return v.store.Subscribe(h)
}

// Roots returns the root proxies in order.
func (v *View[K, V]) Roots() []*tree.Node[uuid.UUID, *tree.Node[K, V]] {
	return v.store.Roots()
}

// Get returns the proxy with the given proxy id.
func (v *View[K, V]) Get(id uuid.UUID) (*tree.Node[uuid.UUID, *tree.Node[K, V]], error) {
	return v.store.Get(id)
}

// Has reports whether a proxy id is live in the view.
func (v *View[K, V]) Has(id uuid.UUID) bool {
	return v.store.Has(id)
}

// Count returns the number of root proxies, or of all proxies.
func (v *View[K, V]) Count(rootsOnly bool) int {
	return v.store.Count(rootsOnly)
}

// Walk visits every proxy depth-first.
func (v *View[K, V]) Walk(fn func(*tree.Node[uuid.UUID, *tree.Node[K, V]]) bool) {
	v.store.Walk(fn)
}

// String renders the view as an indented tree.
func (v *View[K, V]) String() string {
	return v.store.String()
}
