package loader

import (
	"fmt"
	"slices"

	"github.com/google/uuid"

	"github.com/gtgtree/gtgtree/pkg/model"
)

// RecordTree is one task record and the records reachable from it through
// subtask ids.
type RecordTree struct {
	Root        *model.Record
	Descendants []*model.Record // depth-first, in subtask order
	members     map[string]bool
}

// Subtree selects rootID and its descendants from records. rootID may be
// given in any uuid spelling. Subtask ids with no matching record, and ids
// already reached through another parent, are skipped.
func Subtree(rootID string, records []model.Record) (*RecordTree, error) {
	if id, err := uuid.Parse(rootID); err == nil {
		rootID = id.String()
	}
	byID := make(map[string]*model.Record, len(records))
	for i := range records {
		byID[records[i].ID] = &records[i]
	}
	root, ok := byID[rootID]
	if !ok {
		return nil, fmt.Errorf("subtree of %s: task not found", rootID)
	}

	t := &RecordTree{Root: root, members: make(map[string]bool)}
	stack := []*model.Record{root}
	for len(stack) > 0 {
		rec := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if t.members[rec.ID] {
			continue
		}
		t.members[rec.ID] = true
		if rec != root {
			t.Descendants = append(t.Descendants, rec)
		}
		for i := len(rec.Subtasks) - 1; i >= 0; i-- {
			if sub, ok := byID[rec.Subtasks[i]]; ok && !t.members[sub.ID] {
				stack = append(stack, sub)
			}
		}
	}
	return t, nil
}

// Has reports whether id belongs to the subtree.
func (t *RecordTree) Has(id string) bool {
	return t.members[id]
}

// Len is the number of records in the subtree, root included.
func (t *RecordTree) Len() int {
	return 1 + len(t.Descendants)
}

// Records returns copies of the root and its descendants. Subtask ids with
// no record in the subtree are dropped so the copies load on their own.
func (t *RecordTree) Records() []model.Record {
	out := make([]model.Record, 0, t.Len())
	for _, rec := range append([]*model.Record{t.Root}, t.Descendants...) {
		c := *rec
		c.Subtasks = slices.DeleteFunc(slices.Clone(rec.Subtasks), func(id string) bool { return !t.members[id] })
		if len(c.Subtasks) == 0 {
			c.Subtasks = nil
		}
		out = append(out, c)
	}
	return out
}
