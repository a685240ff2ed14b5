package loader_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/gtgtree/gtgtree/pkg/loader"
	"github.com/gtgtree/gtgtree/pkg/model"
	"github.com/gtgtree/gtgtree/pkg/tasks"
	"github.com/gtgtree/gtgtree/pkg/tree"
)

const (
	rootID  = "11111111-1111-4111-8111-111111111111"
	childID = "22222222-2222-4222-8222-222222222222"
	leafID  = "33333333-3333-4333-8333-333333333333"
	loneID  = "44444444-4444-4444-8444-444444444444"
)

func writeFile(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tasks.jsonl")
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func fixture(t *testing.T) string {
	return writeFile(t,
		`{"id":"`+rootID+`","title":"root","status":"active","subtasks":["`+childID+`"]}`,
		`{"id":"`+childID+`","title":"child","status":"active","subtasks":["`+leafID+`"]}`,
		``,
		`{"id":"`+leafID+`","title":"leaf","status":"done","modified":"2026-01-02T00:00:00Z","added":"2026-01-01T00:00:00Z"}`,
		`not json at all`,
		`{"id":"`+loneID+`","title":"\tlone\n"}`,
	)
}

func TestLoadRecordsFromFile(t *testing.T) {
	records, err := loader.LoadRecordsFromFile(fixture(t))
	if err != nil {
		t.Fatalf("LoadRecordsFromFile: %v", err)
	}
	if len(records) != 4 {
		t.Fatalf("expected 4 records (malformed line skipped), got %d", len(records))
	}
	if records[0].Subtasks[0] != childID {
		t.Errorf("subtasks not decoded: %+v", records[0])
	}
}

func TestLoadRecordsMissingFile(t *testing.T) {
	_, err := loader.LoadRecordsFromFile(filepath.Join(t.TempDir(), "tasks.jsonl"))
	if !errors.Is(err, os.ErrNotExist) || !strings.Contains(err.Error(), "no tasks found") {
		t.Fatalf("expected missing-file error, got %v", err)
	}
}

func TestPopulate(t *testing.T) {
	records, err := loader.LoadRecordsFromFile(fixture(t))
	if err != nil {
		t.Fatal(err)
	}
	store := tasks.NewStore()
	if err := loader.Populate(store, records); err != nil {
		t.Fatalf("Populate: %v", err)
	}

	if store.Count(false) != 4 || store.Count(true) != 2 {
		t.Fatalf("counts = %d/%d, want 4/2", store.Count(false), store.Count(true))
	}
	leaf, err := store.Get(uuid.MustParse(leafID))
	if err != nil {
		t.Fatal(err)
	}
	if leaf.Depth() != 2 || leaf.Parent().ID().String() != childID {
		t.Errorf("leaf misplaced: depth %d", leaf.Depth())
	}
	if leaf.Value.Closed == nil {
		t.Error("closed date not defaulted for done task")
	}
	lone, _ := store.Task(uuid.MustParse(loneID))
	if lone.Title != "lone" {
		t.Errorf("title not normalized: %q", lone.Title)
	}
}

func TestPopulateReportsBadLinks(t *testing.T) {
	records := []model.Record{
		{ID: rootID, Title: "root", Subtasks: []string{childID, "bogus", loneID}},
		{ID: childID, Title: "child", Subtasks: []string{rootID}},
		{ID: "also-bogus"},
	}
	store := tasks.NewStore()
	err := loader.Populate(store, records)
	if err == nil {
		t.Fatal("expected joined error")
	}
	if !errors.Is(err, tree.ErrNotFound) || !errors.Is(err, tree.ErrInvalidRelationship) {
		t.Errorf("missing wrapped sentinel in %v", err)
	}
	if store.Count(false) != 2 {
		t.Errorf("valid records should still load, got %d", store.Count(false))
	}
}

func TestSaveRoundTrip(t *testing.T) {
	store := tasks.NewStore(tasks.WithClock(func() time.Time {
		return time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)
	}))
	root, err := store.New("root")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := store.NewChild("child", root.ID()); err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(t.TempDir(), "nested", "tasks.jsonl")
	if err := loader.SaveToFile(store, path); err != nil {
		t.Fatalf("SaveToFile: %v", err)
	}
	records, err := loader.LoadRecordsFromFile(path)
	if err != nil {
		t.Fatal(err)
	}
	again := tasks.NewStore()
	if err := loader.Populate(again, records); err != nil {
		t.Fatalf("Populate: %v", err)
	}
	if again.String() != store.String() {
		t.Errorf("round trip mismatch:\n%s\nvs\n%s", again.String(), store.String())
	}
}

func TestSubtree(t *testing.T) {
	records, err := loader.LoadRecordsFromFile(fixture(t))
	if err != nil {
		t.Fatal(err)
	}
	sub, err := loader.Subtree(strings.ToUpper(childID), records)
	if err != nil {
		t.Fatal(err)
	}
	if sub.Len() != 2 || sub.Root.ID != childID || sub.Descendants[0].ID != leafID {
		t.Errorf("unexpected subtree: %+v", sub)
	}
	if !sub.Has(leafID) || sub.Has(rootID) {
		t.Error("membership does not match the subtree")
	}
	if got := sub.Records(); got[0].ID != childID || got[0].Subtasks[0] != leafID {
		t.Errorf("Records()[0] = %+v", got[0])
	}
	if _, err := loader.Subtree("missing", records); err == nil {
		t.Error("expected error for unknown root")
	}
}

func TestSubtreeRecordsLoadOnTheirOwn(t *testing.T) {
	records := []model.Record{
		{ID: rootID, Title: "root", Subtasks: []string{childID, loneID, childID}},
		{ID: childID, Title: "child", Subtasks: []string{leafID, "gone"}},
		{ID: leafID, Title: "leaf"},
		{ID: loneID, Title: "lone"},
	}
	sub, err := loader.Subtree(rootID, records)
	if err != nil {
		t.Fatal(err)
	}
	var ids []string
	for _, d := range sub.Descendants {
		ids = append(ids, d.ID)
	}
	if want := []string{childID, leafID, loneID}; strings.Join(ids, ",") != strings.Join(want, ",") {
		t.Errorf("descendants = %v, want depth-first %v", ids, want)
	}

	child, err := loader.Subtree(childID, records)
	if err != nil {
		t.Fatal(err)
	}
	got := child.Records()
	if len(got[0].Subtasks) != 1 || got[0].Subtasks[0] != leafID {
		t.Errorf("dangling subtask kept: %v", got[0].Subtasks)
	}
	if len(records[1].Subtasks) != 2 {
		t.Error("Records modified its input")
	}

	store := tasks.NewStore()
	if err := loader.Populate(store, got); err != nil {
		t.Fatalf("Populate: %v", err)
	}
	if store.Count(true) != 1 || store.Count(false) != 2 {
		t.Errorf("roots=%d total=%d", store.Count(true), store.Count(false))
	}
}
