// Package export publishes the rendered task tree: a JSON snapshot for
// scripts, and an HTTP handler that serves the latest snapshot while a
// watcher keeps replacing it.
package export

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/gtgtree/gtgtree/pkg/model"
	"github.com/gtgtree/gtgtree/pkg/tree"
)

// Node is one task in a snapshot, with its visible children.
type Node struct {
	ID       string       `json:"id"`
	Title    string       `json:"title"`
	Status   model.Status `json:"status"`
	Tags     []string     `json:"tags,omitempty"`
	Due      *time.Time   `json:"due,omitempty"`
	Children []*Node      `json:"children,omitempty"`
}

// Snapshot is a point-in-time copy of a tree. It shares nothing with the
// store it came from, so it can be read from any goroutine.
type Snapshot struct {
	Generated time.Time `json:"generated"`
	Shown     int       `json:"shown"`
	Total     int       `json:"total"`
	Text      string    `json:"-"`
	Roots     []*Node   `json:"roots"`
}

// Build copies the subtrees under roots. task extracts the payload from a
// node value; total is the size of the unfiltered store.
func Build[K comparable, V any](roots []*tree.Node[K, V], task func(V) *model.Task, total int, now time.Time) *Snapshot {
	s := &Snapshot{Generated: now, Total: total, Roots: make([]*Node, 0, len(roots))}
	var stack []buildFrame[K, V]
	for i := len(roots) - 1; i >= 0; i-- {
		stack = append(stack, buildFrame[K, V]{node: roots[i]})
	}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		t := task(f.node.Value)
		out := &Node{
			ID:     t.ID.String(),
			Title:  t.Title,
			Status: t.Status,
			Tags:   slices.Clone(t.Tags),
		}
		if t.Due != nil {
			due := *t.Due
			out.Due = &due
		}
		if f.parent == nil {
			s.Roots = append(s.Roots, out)
		} else {
			f.parent.Children = append(f.parent.Children, out)
		}
		s.Shown++

		children := f.node.Children()
		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, buildFrame[K, V]{node: children[i], parent: out})
		}
	}
	return s
}

type buildFrame[K comparable, V any] struct {
	node   *tree.Node[K, V]
	parent *Node
}

// WriteJSON writes s as indented JSON.
func WriteJSON(w io.Writer, s *Snapshot) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s); err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return nil
}
