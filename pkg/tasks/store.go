// Package tasks specializes the tree store for task payloads: creation,
// status changes that ripple through the hierarchy, and flat queries.
package tasks

import (
	"cmp"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/gtgtree/gtgtree/pkg/model"
	"github.com/gtgtree/gtgtree/pkg/tree"
)

// Node is a task tree node.
type Node = tree.Node[uuid.UUID, *model.Task]

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger for the store and its tree.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// Store is a task tree. The embedded tree store provides the structural
// operations and the event stream.
type Store struct {
	*tree.Store[uuid.UUID, *model.Task]
	now    func() time.Time
	logger *slog.Logger
}

// NewStore creates an empty task store.
func NewStore(opts ...Option) *Store {
	s := &Store{now: time.Now, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	s.Store = tree.NewStore[uuid.UUID, *model.Task](tree.WithLogger(s.logger), tree.WithName("tasks"))
	return s
}

// Now returns the store clock's current time.
func (s *Store) Now() time.Time {
	return s.now()
}

// New creates a root task with a fresh id.
func (s *Store) New(title string) (*Node, error) {
	n := tree.NewNode(uuid.New(), model.NewTask(uuid.Nil, title, s.now()))
	n.Value.ID = n.ID()
	if err := s.Add(n); err != nil {
		return nil, err
	}
	return n, nil
}

// NewChild creates a task under parent.
func (s *Store) NewChild(title string, parent uuid.UUID) (*Node, error) {
	n := tree.NewNode(uuid.New(), model.NewTask(uuid.Nil, title, s.now()))
	n.Value.ID = n.ID()
	if err := s.AddChild(n, parent); err != nil {
		return nil, err
	}
	return n, nil
}

// AddTask inserts an existing task as a root.
func (s *Store) AddTask(t *model.Task) (*Node, error) {
	n := tree.NewNode(t.ID, t)
	if err := s.Add(n); err != nil {
		return nil, err
	}
	return n, nil
}

// AddChild registers n under parentID. The parent is announced as modified
// too: predicates such as Actionable look at a task's children.
func (s *Store) AddChild(n *Node, parentID uuid.UUID) error {
	if err := s.Store.AddChild(n, parentID); err != nil {
		return err
	}
	return s.Touch(parentID)
}

// Parent attaches id under parentID and announces the parent.
func (s *Store) Parent(id, parentID uuid.UUID) error {
	if err := s.Store.Parent(id, parentID); err != nil {
		return err
	}
	return s.Touch(parentID)
}

// Unparent detaches id from parentID and announces the former parent.
func (s *Store) Unparent(id, parentID uuid.UUID) error {
	if err := s.Store.Unparent(id, parentID); err != nil {
		return err
	}
	return s.Touch(parentID)
}

// Remove deletes id and its subtree, then announces the former parent.
func (s *Store) Remove(id uuid.UUID) error {
	n, err := s.Get(id)
	if err != nil {
		return err
	}
	parent := n.Parent()
	if err := s.Store.Remove(id); err != nil {
		return err
	}
	if parent == nil {
		return nil
	}
	return s.Touch(parent.ID())
}

// Task returns the payload for id.
func (s *Store) Task(id uuid.UUID) (*model.Task, error) {
	n, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	return n.Value, nil
}

// Update applies fn to the task and announces the change.
func (s *Store) Update(id uuid.UUID, fn func(*model.Task)) error {
	n, err := s.Get(id)
	if err != nil {
		return err
	}
	fn(n.Value)
	n.Value.Touch(s.now())
	return s.Touch(id)
}

// SetStatus changes the status of id. Reactivating a task reactivates its
// ancestors; with propagate set every descendant takes the same status.
// The parent of every changed task is announced as well.
func (s *Store) SetStatus(id uuid.UUID, status model.Status, propagate bool) error {
	if !status.IsValid() {
		return fmt.Errorf("set status of %s: invalid status %q", id, status)
	}
	n, err := s.Get(id)
	if err != nil {
		return err
	}

	changed := []*Node{n}
	if status == model.StatusActive {
		for p := n.Parent(); p != nil; p = p.Parent() {
			if p.Value.Status != model.StatusActive {
				changed = append(changed, p)
			}
		}
	}
	if propagate {
		for _, c := range n.Children() {
			c.Walk(func(d *Node) bool {
				changed = append(changed, d)
				return true
			})
		}
	}

	now := s.now()
	for _, c := range changed {
		setStatus(c.Value, status, now)
	}
	s.logger.Debug("set status", "id", id, "status", status, "changed", len(changed))

	touched := changed
	for _, c := range changed {
		if p := c.Parent(); p != nil && !slices.Contains(touched, p) {
			touched = append(touched, p)
		}
	}
	return s.touchAll(touched)
}

// ToggleStatus flips an active task to done and anything else back to
// active, then applies the result the way SetStatus does.
func (s *Store) ToggleStatus(id uuid.UUID, propagate bool) error {
	t, err := s.Task(id)
	if err != nil {
		return err
	}
	next := model.StatusActive
	if t.Status == model.StatusActive {
		next = model.StatusDone
	}
	return s.SetStatus(id, next, propagate)
}

// Dismiss dismisses the task and its descendants.
func (s *Store) Dismiss(id uuid.UUID) error {
	return s.SetStatus(id, model.StatusDismissed, true)
}

func setStatus(t *model.Task, status model.Status, now time.Time) {
	if t.Status == status {
		return
	}
	t.Status = status
	if status.IsClosed() {
		closed := now
		t.Closed = &closed
	} else {
		t.Closed = nil
	}
	t.Touch(now)
}

func (s *Store) touchAll(nodes []*Node) error {
	for _, n := range nodes {
		if err := s.Touch(n.ID()); err != nil {
			return err
		}
	}
	return nil
}

// Filter returns every node matching pred in depth-first order.
func (s *Store) Filter(pred func(*Node) bool) []*Node {
	var out []*Node
	s.Walk(func(n *Node) bool {
		if pred == nil || pred(n) {
			out = append(out, n)
		}
		return true
	})
	return out
}

// Active returns active tasks.
func (s *Store) Active() []*Node { return s.Filter(IsActive) }

// Closed returns done and dismissed tasks.
func (s *Store) Closed() []*Node { return s.Filter(IsClosed) }

// Actionable returns tasks that can be worked on now.
func (s *Store) Actionable() []*Node { return s.Filter(Actionable(s.now())) }

// WithStatus returns tasks in the given status.
func (s *Store) WithStatus(status model.Status) []*Node { return s.Filter(HasStatus(status)) }

// Tagged returns tasks carrying every one of tags.
func (s *Store) Tagged(tags ...string) []*Node { return s.Filter(HasTags(tags...)) }

// Subtasks returns every task that has a parent.
func (s *Store) Subtasks() []*Node {
	return s.Filter(func(n *Node) bool { return !n.IsRoot() })
}

// SortKey selects the task attribute Sort orders by.
type SortKey string

const (
	ByAdded    SortKey = "added"
	ByModified SortKey = "modified"
	ByTitle    SortKey = "title"
	ByDue      SortKey = "due"
)

// Sort orders nodes in place, stably. Tasks without a due date sort last
// under ByDue.
func Sort(nodes []*Node, key SortKey, reverse bool) {
	cmpFn := func(a, b *Node) int {
		x, y := a.Value, b.Value
		switch key {
		case ByTitle:
			return cmp.Compare(strings.ToLower(x.Title), strings.ToLower(y.Title))
		case ByModified:
			return x.Modified.Compare(y.Modified)
		case ByDue:
			switch {
			case x.Due == nil && y.Due == nil:
				return 0
			case x.Due == nil:
				return 1
			case y.Due == nil:
				return -1
			}
			return x.Due.Compare(*y.Due)
		default:
			return x.Added.Compare(y.Added)
		}
	}
	slices.SortStableFunc(nodes, func(a, b *Node) int {
		if reverse {
			return cmpFn(b, a)
		}
		return cmpFn(a, b)
	})
}
