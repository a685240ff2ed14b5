package model

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestNormalizeTitle(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Buy milk", "Buy milk"},
		{"\tBuy milk\n", "Buy milk"},
		{"  spaced  ", "  spaced  "},
		{"\n\t", UntitledTitle},
		{"", UntitledTitle},
	}
	for _, tt := range tests {
		if got := NormalizeTitle(tt.in); got != tt.want {
			t.Errorf("NormalizeTitle(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTaskString(t *testing.T) {
	id := uuid.MustParse("6c1a7b0e-0000-4000-8000-000000000001")
	task := NewTask(id, "1", time.Now())
	want := "Task: 1 (6c1a7b0e-0000-4000-8000-000000000001)"
	if got := task.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestExcerpt(t *testing.T) {
	task := &Task{Tags: []string{"home", "errand"}}
	if got := task.Excerpt(); got != "" {
		t.Errorf("empty content excerpt = %q", got)
	}

	task.Content = "\n\n@home, pick up {!sub-id!}parcel\nsecond line"
	if got, want := task.Excerpt(), "pick up parcel…"; got != want {
		t.Errorf("Excerpt() = %q, want %q", got, want)
	}

	task.Content = strings.Repeat("é", 100)
	got := []rune(task.Excerpt())
	if len(got) != ExcerptLength+1 {
		t.Errorf("long excerpt has %d runes, want %d", len(got), ExcerptLength+1)
	}
}

func TestCloneIsDeep(t *testing.T) {
	due := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	orig := Task{ID: uuid.New(), Tags: []string{"a"}, Due: &due}
	clone := orig.Clone()
	clone.Tags[0] = "b"
	*clone.Due = due.Add(time.Hour)
	if orig.Tags[0] != "a" || !orig.Due.Equal(due) {
		t.Fatalf("clone shares state with original: %+v", orig)
	}
}

func TestValidate(t *testing.T) {
	now := time.Now()
	valid := NewTask(uuid.New(), "x", now)
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid task rejected: %v", err)
	}

	cases := map[string]func(*Task){
		"nil id":         func(t *Task) { t.ID = uuid.Nil },
		"bad status":     func(t *Task) { t.Status = "paused" },
		"time travel":    func(t *Task) { t.Modified = t.Added.Add(-time.Hour) },
		"closed no date": func(t *Task) { t.Status = StatusDone },
	}
	for name, mutate := range cases {
		task := valid.Clone()
		mutate(&task)
		if err := task.Validate(); err == nil {
			t.Errorf("%s: expected validation error", name)
		}
	}
}

func TestRecordRoundTrip(t *testing.T) {
	now := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	task := NewTask(uuid.New(), "parent", now)
	task.Tags = []string{"work"}
	rec := task.ToRecord([]string{"child"})
	if rec.Subtasks[0] != "child" || rec.Status != StatusActive {
		t.Fatalf("unexpected record: %+v", rec)
	}

	back, err := rec.Task()
	if err != nil {
		t.Fatalf("Task(): %v", err)
	}
	if back.ID != task.ID || back.Title != "parent" || !back.HasTag("@work") {
		t.Errorf("round trip mismatch: %+v", back)
	}
}

func TestRecordDefaults(t *testing.T) {
	now := time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC)
	rec := Record{ID: uuid.NewString(), Status: StatusDone, Added: now, Modified: now}
	task, err := rec.Task()
	if err != nil {
		t.Fatalf("Task(): %v", err)
	}
	if task.Title != UntitledTitle {
		t.Errorf("title = %q", task.Title)
	}
	if task.Closed == nil || !task.Closed.Equal(now) {
		t.Errorf("closed date not defaulted: %v", task.Closed)
	}

	if _, err := (Record{ID: "not-a-uuid"}).Task(); err == nil {
		t.Error("expected error for malformed id")
	}
}
