package tree

import "sync"

// EventKind enumerates the change notifications a Source emits.
type EventKind int

const (
	// EventAdded: Node became a root (new, or unparented).
	EventAdded EventKind = iota
	// EventRemoved: ID left the root list or the store. Intermediate marks a
	// reparenting or repositioning step rather than a deletion.
	EventRemoved
	// EventParentChanged: Node was attached under Parent.
	EventParentChanged
	// EventParentRemoved: Node was detached from Parent.
	EventParentRemoved
	// EventModified: Node's value changed in a way observers may care about.
	EventModified
)

func (k EventKind) String() string {
	switch k {
	case EventAdded:
		return "added"
	case EventRemoved:
		return "removed"
	case EventParentChanged:
		return "parent-change"
	case EventParentRemoved:
		return "parent-removed"
	case EventModified:
		return "modified"
	default:
		return "unknown"
	}
}

// Event is a single change notification.
//
// For EventRemoved, ID is always set and Node is the removed node (its
// detached subtree stays intact for observers). Position is the index the
// node held in the root list when WasRoot is true; otherwise it is 0 and
// carries no meaning.
type Event[K comparable, V any] struct {
	Kind         EventKind
	Node         *Node[K, V]
	Parent       *Node[K, V]
	ID           K
	Position     uint
	WasRoot      bool
	Intermediate bool
}

// Handler receives events synchronously on the mutating goroutine.
type Handler[K comparable, V any] func(Event[K, V])

// Subscription is the token returned by Subscribe.
type Subscription struct {
	once   sync.Once
	cancel func()
}

// Unsubscribe stops delivery to the handler. It is safe to call more than
// once and from inside a handler.
func (s *Subscription) Unsubscribe() {
	if s == nil {
		return
	}
	s.once.Do(s.cancel)
}

// Source is the read side shared by stores and derived views.
type Source[K comparable, V any] interface {
	Subscribe(h Handler[K, V]) *Subscription
	Roots() []*Node[K, V]
	Get(id K) (*Node[K, V], error)
	Has(id K) bool
}

type subscriber[K comparable, V any] struct {
	id     uint64
	fn     Handler[K, V]
	active bool
}
