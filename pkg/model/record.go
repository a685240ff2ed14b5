package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Record is the serialized form of a task. Children are referenced by id.
type Record struct {
	ID       string     `json:"id"`
	Title    string     `json:"title"`
	Status   Status     `json:"status"`
	Tags     []string   `json:"tags,omitempty"`
	Content  string     `json:"content,omitempty"`
	Added    time.Time  `json:"added"`
	Modified time.Time  `json:"modified"`
	Due      *time.Time `json:"due,omitempty"`
	Someday  bool       `json:"someday,omitempty"`
	Start    *time.Time `json:"start,omitempty"`
	Closed   *time.Time `json:"closed,omitempty"`
	Subtasks []string   `json:"subtasks,omitempty"`
}

// ToRecord serializes the task with the given child ids
func (t *Task) ToRecord(subtasks []string) Record {
	c := t.Clone()
	return Record{
		ID:       c.ID.String(),
		Title:    c.Title,
		Status:   c.Status,
		Tags:     c.Tags,
		Content:  c.Content,
		Added:    c.Added,
		Modified: c.Modified,
		Due:      c.Due,
		Someday:  c.Someday,
		Start:    c.Start,
		Closed:   c.Closed,
		Subtasks: subtasks,
	}
}

// Task builds a validated task from the record. A missing status means
// active; a closed task without a closed date takes its modified date.
func (r Record) Task() (*Task, error) {
	id, err := uuid.Parse(r.ID)
	if err != nil {
		return nil, fmt.Errorf("task id %q: %w", r.ID, err)
	}
	t := Task{
		ID:       id,
		Title:    NormalizeTitle(r.Title),
		Status:   r.Status,
		Tags:     r.Tags,
		Content:  r.Content,
		Added:    r.Added,
		Modified: r.Modified,
		Due:      r.Due,
		Someday:  r.Someday,
		Start:    r.Start,
		Closed:   r.Closed,
	}
	if t.Status == "" {
		t.Status = StatusActive
	}
	if t.Status.IsClosed() && t.Closed == nil {
		closed := t.Modified
		t.Closed = &closed
	}
	t = t.Clone()
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &t, nil
}
