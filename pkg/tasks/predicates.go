package tasks

import (
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sahilm/fuzzy"

	"github.com/gtgtree/gtgtree/pkg/filter"
	"github.com/gtgtree/gtgtree/pkg/model"
)

// Predicate selects task nodes; it plugs directly into a filter.View.
type Predicate = filter.Predicate[uuid.UUID, *model.Task]

// IsActive matches active tasks.
func IsActive(n *Node) bool {
	return n.Value.Status == model.StatusActive
}

// IsClosed matches done and dismissed tasks.
func IsClosed(n *Node) bool {
	return n.Value.Status.IsClosed()
}

// HasStatus matches tasks in status.
func HasStatus(status model.Status) Predicate {
	return func(n *Node) bool {
		return n.Value.Status == status
	}
}

// HasTags matches tasks carrying all of tags. No tags matches everything.
func HasTags(tags ...string) Predicate {
	return func(n *Node) bool {
		for _, tag := range tags {
			if !n.Value.HasTag(tag) {
				return false
			}
		}
		return true
	}
}

// TitleContains matches titles containing sub, ignoring case.
func TitleContains(sub string) Predicate {
	sub = strings.ToLower(sub)
	return func(n *Node) bool {
		return strings.Contains(strings.ToLower(n.Value.Title), sub)
	}
}

// FuzzyTitle matches titles containing the pattern's characters in order.
func FuzzyTitle(pattern string) Predicate {
	return func(n *Node) bool {
		if pattern == "" {
			return true
		}
		return len(fuzzy.Find(pattern, []string{n.Value.Title})) > 0
	}
}

// Actionable matches active tasks that are not deferred to someday, whose
// start date has passed and that have no active children.
func Actionable(now time.Time) Predicate {
	return func(n *Node) bool {
		t := n.Value
		if t.Status != model.StatusActive || t.Someday || !t.CanStart(now) {
			return false
		}
		return !slices.ContainsFunc(n.Children(), IsActive)
	}
}

// All combines predicates; nil entries are ignored.
func All(preds ...Predicate) Predicate {
	preds = slices.DeleteFunc(preds, func(p Predicate) bool { return p == nil })
	if len(preds) == 0 {
		return nil
	}
	return func(n *Node) bool {
		for _, p := range preds {
			if !p(n) {
				return false
			}
		}
		return true
	}
}
