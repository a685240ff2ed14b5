package adapter

import (
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/gtgtree/gtgtree/pkg/larch"
	"github.com/gtgtree/gtgtree/pkg/tree"
)

// Entry is the value of a ViewStore proxy: the larch node id and its value.
type Entry[V any] struct {
	NodeID string
	Value  V
}

func (e *Entry[V]) String() string {
	if s, ok := any(e.Value).(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("%v (%s)", e.Value, e.NodeID)
}

// ViewStore presents a larch tree as a single-parent tree store. A node
// with several parents is shown once, under the first of its paths.
type ViewStore[V any] struct {
	src     *larch.Tree[V]
	store   *tree.Store[uuid.UUID, *Entry[V]]
	proxies map[string]*tree.Node[uuid.UUID, *Entry[V]]
	ids     map[string]uuid.UUID
	handles []int
	logger  *slog.Logger
}

// NewViewStore registers for src callbacks and replays its current state.
func NewViewStore[V any](src *larch.Tree[V], opts ...Option) *ViewStore[V] {
	o := buildOptions(opts)
	vs := &ViewStore[V]{
		src:     src,
		store:   tree.NewStore[uuid.UUID, *Entry[V]](tree.WithLogger(o.logger), tree.WithName("larch-view")),
		proxies: make(map[string]*tree.Node[uuid.UUID, *Entry[V]]),
		ids:     make(map[string]uuid.UUID),
		logger:  o.logger.With("adapter", "viewstore"),
	}
	vs.handles = []int{
		src.Register(larch.NodeAdded, vs.onAdded),
		src.Register(larch.NodeDeleted, vs.onDeleted),
		src.Register(larch.NodeModified, vs.onModified),
	}
	src.CurrentState()
	return vs
}

// Close deregisters from the larch tree.
func (vs *ViewStore[V]) Close() {
	for _, h := range vs.handles {
		vs.src.Deregister(h)
	}
	vs.handles = nil
}

func (vs *ViewStore[V]) onAdded(id string, path []string) {
	vs.store.Batch(func() {
		if _, ok := vs.proxies[id]; ok {
			return
		}
		var parent *tree.Node[uuid.UUID, *Entry[V]]
		if len(path) > 1 {
			p, ok := vs.proxies[path[len(path)-2]]
			if !ok {
				// Shown once the parent itself arrives.
				return
			}
			parent = p
		}
		vs.addProxy(id, parent)
	})
}

func (vs *ViewStore[V]) onDeleted(id string, path []string) {
	vs.store.Batch(func() {
		p, ok := vs.proxies[id]
		if !ok || !vs.shownAt(p, path) {
			return
		}
		vs.removeProxy(p)
	})
}

func (vs *ViewStore[V]) onModified(id string, _ []string) {
	vs.store.Batch(func() {
		p, ok := vs.proxies[id]
		if !ok {
			// Updates may race with deletion; a missed update is harmless.
			vs.logger.Debug("modified node not shown", "id", id)
			return
		}
		parent := p.Parent()
		vs.removeProxy(p)
		if _, ok := vs.proxies[id]; !ok && vs.src.Has(id) {
			vs.addProxy(id, parent)
		}
	})
}

func (vs *ViewStore[V]) shownAt(p *tree.Node[uuid.UUID, *Entry[V]], path []string) bool {
	if len(path) < 2 {
		return p.Parent() == nil
	}
	return p.Parent() != nil && p.Parent().Value.NodeID == path[len(path)-2]
}

type pendingProxy[V any] struct {
	id     string
	parent *tree.Node[uuid.UUID, *Entry[V]]
}

// addProxy shows id under parent together with every larch descendant not
// already shown.
func (vs *ViewStore[V]) addProxy(id string, parent *tree.Node[uuid.UUID, *Entry[V]]) {
	stack := []pendingProxy[V]{{id, parent}}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, ok := vs.proxies[cur.id]; ok {
			continue
		}
		value, ok := vs.src.Get(cur.id)
		if !ok {
			continue
		}
		pid, ok := vs.ids[cur.id]
		if !ok {
			pid = uuid.New()
			vs.ids[cur.id] = pid
		}
		n := tree.NewNode(pid, &Entry[V]{NodeID: cur.id, Value: value})
		var err error
		if cur.parent == nil {
			err = vs.store.Add(n)
		} else {
			err = vs.store.AddChild(n, cur.parent.ID())
		}
		if err != nil {
			vs.logger.Warn("failed to show larch node", "id", cur.id, "error", err)
			continue
		}
		vs.proxies[cur.id] = n
		children := vs.src.Children(cur.id)
		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, pendingProxy[V]{children[i], n})
		}
	}
}

// removeProxy drops p and its proxy subtree, then shows again any node in
// that subtree that still exists in the larch tree at its first path.
func (vs *ViewStore[V]) removeProxy(p *tree.Node[uuid.UUID, *Entry[V]]) {
	if err := vs.store.Remove(p.ID()); err != nil {
		vs.logger.Warn("failed to remove proxy", "id", p.Value.NodeID, "error", err)
		return
	}
	var gone []string
	p.Walk(func(d *tree.Node[uuid.UUID, *Entry[V]]) bool {
		delete(vs.proxies, d.Value.NodeID)
		gone = append(gone, d.Value.NodeID)
		return true
	})
	for _, id := range gone {
		if !vs.src.Has(id) {
			delete(vs.ids, id)
			continue
		}
		if _, ok := vs.proxies[id]; ok {
			continue
		}
		paths := vs.src.Paths(id)
		if len(paths) == 0 {
			continue
		}
		path := paths[0]
		if len(path) == 1 {
			vs.addProxy(id, nil)
		} else if parent, ok := vs.proxies[path[len(path)-2]]; ok {
			vs.addProxy(id, parent)
		}
	}
}

// ProxyFor returns the proxy showing the larch node id.
func (vs *ViewStore[V]) ProxyFor(id string) (*tree.Node[uuid.UUID, *Entry[V]], bool) {
	p, ok := vs.proxies[id]
	return p, ok
}

// Subscribe registers h for the view store's own events.
func (vs *ViewStore[V]) Subscribe(h tree.Handler[uuid.UUID, *Entry[V]]) *tree.Subscription {
	return vs.store.Subscribe(h)
}

// Roots returns the top-level proxies.
func (vs *ViewStore[V]) Roots() []*tree.Node[uuid.UUID, *Entry[V]] {
	return vs.store.Roots()
}

// Get returns the proxy with the given id.
func (vs *ViewStore[V]) Get(id uuid.UUID) (*tree.Node[uuid.UUID, *Entry[V]], error) {
	return vs.store.Get(id)
}

// Has reports whether a proxy with the given id exists.
func (vs *ViewStore[V]) Has(id uuid.UUID) bool {
	return vs.store.Has(id)
}

// Count returns the number of proxies, or only the top-level ones.
func (vs *ViewStore[V]) Count(rootsOnly bool) int {
	return vs.store.Count(rootsOnly)
}

// String renders the proxies as an indented tree.
func (vs *ViewStore[V]) String() string {
	return vs.store.String()
}
