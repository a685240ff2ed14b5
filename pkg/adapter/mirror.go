// Package adapter bridges tree stores and larch trees in both directions.
package adapter

import (
	"fmt"
	"log/slog"

	"github.com/gtgtree/gtgtree/pkg/larch"
	"github.com/gtgtree/gtgtree/pkg/tree"
)

// Option configures an adapter.
type Option func(*options)

type options struct {
	logger *slog.Logger
}

// WithLogger sets the adapter logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Mirror keeps a larch tree in step with a tree source. Larch nodes are
// keyed by the string form of the source ids and hold the source nodes.
type Mirror[K comparable, V any] struct {
	dst    *larch.Tree[*tree.Node[K, V]]
	sub    *tree.Subscription
	logger *slog.Logger
}

// NewMirror copies the current contents of source into dst and follows
// every later change.
func NewMirror[K comparable, V any](source tree.Source[K, V], dst *larch.Tree[*tree.Node[K, V]], opts ...Option) (*Mirror[K, V], error) {
	o := buildOptions(opts)
	m := &Mirror[K, V]{dst: dst, logger: o.logger.With("adapter", "mirror")}

	for _, r := range source.Roots() {
		var err error
		r.Walk(func(n *tree.Node[K, V]) bool {
			if err != nil {
				return false
			}
			parent := ""
			if p := n.Parent(); p != nil {
				parent = key(p.ID())
			}
			err = dst.AddNode(key(n.ID()), n, parent)
			return err == nil
		})
		if err != nil {
			return nil, fmt.Errorf("mirror initial state: %w", err)
		}
	}
	m.sub = source.Subscribe(m.Handle)
	return m, nil
}

// Close stops following the source.
func (m *Mirror[K, V]) Close() {
	m.sub.Unsubscribe()
}

func key[K comparable](id K) string {
	return fmt.Sprint(id)
}

// Handle applies one source event. Re-registration is idempotent and a node
// keeps a single parent, so the events of one move may arrive in any order.
func (m *Mirror[K, V]) Handle(ev tree.Event[K, V]) {
	id := key(ev.ID)
	switch ev.Kind {
	case tree.EventAdded:
		// parent-removed and added for the same move may arrive in either order.
		if !m.dst.Has(id) {
			m.check(m.dst.AddNode(id, ev.Node, ""))
		}
	case tree.EventRemoved:
		if ev.Intermediate {
			return
		}
		if m.dst.Has(id) {
			m.check(m.dst.DelNode(id, true))
		}
	case tree.EventParentChanged:
		pid := key(ev.Parent.ID())
		if !m.dst.Has(pid) {
			m.check(m.dst.AddNode(pid, ev.Parent, ""))
		}
		if !m.dst.Has(id) {
			m.check(m.dst.AddNode(id, ev.Node, pid))
			return
		}
		for _, p := range m.dst.Parents(id) {
			if p != pid {
				m.check(m.dst.RemoveParent(id, p))
			}
		}
		m.check(m.dst.AddParent(id, pid))
	case tree.EventParentRemoved:
		pid := key(ev.Parent.ID())
		for _, p := range m.dst.Parents(id) {
			if p == pid {
				m.check(m.dst.RemoveParent(id, pid))
			}
		}
	case tree.EventModified:
		if m.dst.Has(id) {
			m.check(m.dst.ModifyNode(id))
		}
	}
}

func (m *Mirror[K, V]) check(err error) {
	if err != nil {
		m.logger.Debug("mirror update skipped", "error", err)
	}
}
