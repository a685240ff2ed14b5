package model

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

// UntitledTitle is shown for tasks whose title is empty after trimming
const UntitledTitle = "(no title)"

// ExcerptLength is the maximum number of runes in an excerpt
const ExcerptLength = 80

var subtaskRef = regexp.MustCompile(`\{!.+!\}`)

// Task is the payload carried by each node of a task tree
type Task struct {
	ID       uuid.UUID
	Title    string
	Status   Status
	Tags     []string
	Content  string
	Added    time.Time
	Modified time.Time
	Due      *time.Time
	Someday  bool
	Start    *time.Time
	Closed   *time.Time
}

// NewTask creates an active task with a normalized title
func NewTask(id uuid.UUID, title string, now time.Time) *Task {
	return &Task{
		ID:       id,
		Title:    NormalizeTitle(title),
		Status:   StatusActive,
		Added:    now,
		Modified: now,
	}
}

// NormalizeTitle trims tabs and newlines and substitutes UntitledTitle for
// an empty result.
func NormalizeTitle(title string) string {
	title = strings.Trim(title, "\t\n")
	if title == "" {
		return UntitledTitle
	}
	return title
}

// SetTitle replaces the title, normalizing it
func (t *Task) SetTitle(title string) {
	t.Title = NormalizeTitle(title)
}

func (t *Task) String() string {
	return fmt.Sprintf("Task: %s (%s)", t.Title, t.ID)
}

// HasTag reports whether the task carries tag (case-sensitive, without '@')
func (t *Task) HasTag(tag string) bool {
	return slices.Contains(t.Tags, strings.TrimPrefix(tag, "@"))
}

// Excerpt returns the first non-blank content line with tags and subtask
// references removed, cut to ExcerptLength runes.
func (t *Task) Excerpt() string {
	if t.Content == "" {
		return ""
	}
	txt := strings.TrimSpace(t.Content)
	for _, tag := range t.Tags {
		txt = strings.ReplaceAll(txt, "@"+tag+", ", "")
		txt = strings.ReplaceAll(txt, "@"+tag+",", "")
		txt = strings.ReplaceAll(txt, "@"+tag, "")
	}
	txt = subtaskRef.ReplaceAllString(txt, "")

	var first string
	for _, line := range strings.Split(txt, "\n") {
		if line != "" {
			first = line
			break
		}
	}
	if runes := []rune(first); len(runes) > ExcerptLength {
		first = string(runes[:ExcerptLength])
	}
	return first + "…"
}

// CanStart reports whether the start date, if any, has been reached
func (t *Task) CanStart(now time.Time) bool {
	return t.Start == nil || !t.Start.After(now)
}

// Touch records a modification
func (t *Task) Touch(now time.Time) {
	t.Modified = now
}

// Clone creates a deep copy of the task
func (t Task) Clone() Task {
	clone := t
	if t.Tags != nil {
		clone.Tags = slices.Clone(t.Tags)
	}
	if t.Due != nil {
		v := *t.Due
		clone.Due = &v
	}
	if t.Start != nil {
		v := *t.Start
		clone.Start = &v
	}
	if t.Closed != nil {
		v := *t.Closed
		clone.Closed = &v
	}
	return clone
}

// Validate checks if the task data is logically valid
func (t *Task) Validate() error {
	if t.ID == uuid.Nil {
		return fmt.Errorf("task ID cannot be empty")
	}
	if !t.Status.IsValid() {
		return fmt.Errorf("invalid status: %s", t.Status)
	}
	if !t.Modified.IsZero() && !t.Added.IsZero() && t.Modified.Before(t.Added) {
		return fmt.Errorf("modified (%v) cannot be before added (%v)", t.Modified, t.Added)
	}
	if t.Status.IsClosed() && t.Closed == nil {
		return fmt.Errorf("task %s is %s without a closed date", t.ID, t.Status)
	}
	return nil
}

// Status represents the lifecycle state of a task
type Status string

const (
	StatusActive    Status = "active"
	StatusDone      Status = "done"
	StatusDismissed Status = "dismissed"
)

// IsValid returns true if the status is a recognized value
func (s Status) IsValid() bool {
	switch s {
	case StatusActive, StatusDone, StatusDismissed:
		return true
	}
	return false
}

// IsClosed returns true for done and dismissed tasks
func (s Status) IsClosed() bool {
	return s == StatusDone || s == StatusDismissed
}

// IsOpen returns true if the task is active
func (s Status) IsOpen() bool {
	return s == StatusActive
}
