package export

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gtgtree/gtgtree/pkg/model"
	"github.com/gtgtree/gtgtree/pkg/tasks"
)

var now = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

func self(t *model.Task) *model.Task { return t }

func sampleSnapshot(t *testing.T) *Snapshot {
	t.Helper()
	s := tasks.NewStore()
	parent, err := s.New("parent")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.NewChild("child", parent.ID()); err != nil {
		t.Fatal(err)
	}
	if _, err := s.New("other"); err != nil {
		t.Fatal(err)
	}
	snap := Build(s.Roots(), self, s.Count(false), now)
	snap.Text = s.String()
	return snap
}

func TestBuild(t *testing.T) {
	snap := sampleSnapshot(t)

	if snap.Shown != 3 || snap.Total != 3 {
		t.Fatalf("shown/total = %d/%d, want 3/3", snap.Shown, snap.Total)
	}
	if len(snap.Roots) != 2 {
		t.Fatalf("expected 2 roots, got %d", len(snap.Roots))
	}
	if snap.Roots[0].Title != "parent" || snap.Roots[1].Title != "other" {
		t.Errorf("unexpected root order: %s, %s", snap.Roots[0].Title, snap.Roots[1].Title)
	}
	if len(snap.Roots[0].Children) != 1 || snap.Roots[0].Children[0].Title != "child" {
		t.Errorf("expected parent to hold child, got %+v", snap.Roots[0].Children)
	}
	if snap.Roots[0].Status != model.StatusActive {
		t.Errorf("expected active status, got %s", snap.Roots[0].Status)
	}
}

func TestWriteJSON(t *testing.T) {
	snap := sampleSnapshot(t)
	var buf bytes.Buffer
	if err := WriteJSON(&buf, snap); err != nil {
		t.Fatalf("WriteJSON failed: %v", err)
	}

	var decoded struct {
		Shown int `json:"shown"`
		Roots []struct {
			Title    string `json:"title"`
			Children []struct {
				Title string `json:"title"`
			} `json:"children"`
		} `json:"roots"`
	}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if decoded.Shown != 3 || len(decoded.Roots) != 2 || decoded.Roots[0].Children[0].Title != "child" {
		t.Errorf("unexpected decoded snapshot: %+v", decoded)
	}
	if strings.Contains(buf.String(), "Text") {
		t.Error("rendered text should not be part of the JSON")
	}
}

func TestServerBeforePublish(t *testing.T) {
	srv := httptest.NewServer(NewServer())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/tree.json")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("expected 503 before publish, got %d", resp.StatusCode)
	}
}

func TestServerServesLatest(t *testing.T) {
	s := NewServer()
	srv := httptest.NewServer(s)
	defer srv.Close()

	snap := sampleSnapshot(t)
	s.Publish(snap)

	resp, err := http.Get(srv.URL + "/")
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if string(body) != snap.Text {
		t.Errorf("text = %q, want %q", body, snap.Text)
	}
	if cc := resp.Header.Get("Cache-Control"); !strings.Contains(cc, "no-store") {
		t.Errorf("expected no-store Cache-Control, got %q", cc)
	}

	s.Publish(&Snapshot{Generated: now, Text: "empty\n"})
	resp, err = http.Get(srv.URL + "/__status__")
	if err != nil {
		t.Fatal(err)
	}
	var status struct {
		Published int `json:"published"`
		Shown     int `json:"shown"`
	}
	err = json.NewDecoder(resp.Body).Decode(&status)
	resp.Body.Close()
	if err != nil {
		t.Fatal(err)
	}
	if status.Published != 2 || status.Shown != 0 {
		t.Errorf("unexpected status: %+v", status)
	}
}

func TestServerRejectsWrites(t *testing.T) {
	srv := httptest.NewServer(NewServer())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/tree.json", "application/json", strings.NewReader("{}"))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", resp.StatusCode)
	}
}

func TestServerUnknownPath(t *testing.T) {
	s := NewServer()
	s.Publish(&Snapshot{})
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}
