// Package loader reads and writes task trees as JSON lines, one record per
// task, children referenced by id.
package loader

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/gtgtree/gtgtree/pkg/model"
	"github.com/gtgtree/gtgtree/pkg/tasks"
)

// LoadRecordsFromFile reads task records from a JSONL file. Malformed lines
// are skipped with a warning.
func LoadRecordsFromFile(path string) ([]model.Record, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("no tasks found at %s: %w", path, os.ErrNotExist)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open tasks file: %w", err)
	}
	defer file.Close()

	var records []model.Record
	scanner := bufio.NewScanner(file)
	// Task content can be long
	const maxCapacity = 1024 * 1024 * 10 // 10MB
	buf := make([]byte, maxCapacity)
	scanner.Buffer(buf, maxCapacity)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var rec model.Record
		if err := json.Unmarshal(line, &rec); err != nil {
			slog.Warn("skipping malformed task record", "path", path, "line", lineNum, "error", err)
			continue
		}
		records = append(records, rec)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading tasks file: %w", err)
	}

	return records, nil
}

// Populate adds every record to the store, then links subtasks to their
// parents. Records that fail validation, and links to unknown or already
// parented tasks, are reported together in the returned error; everything
// else is still loaded.
func Populate(store *tasks.Store, records []model.Record) error {
	var errs []error
	for _, rec := range records {
		t, err := rec.Task()
		if err != nil {
			errs = append(errs, fmt.Errorf("record %s: %w", rec.ID, err))
			continue
		}
		if _, err := store.AddTask(t); err != nil {
			errs = append(errs, err)
		}
	}

	for _, rec := range records {
		parent, err := uuid.Parse(rec.ID)
		if err != nil || !store.Has(parent) {
			continue
		}
		for _, sub := range rec.Subtasks {
			child, err := uuid.Parse(sub)
			if err != nil {
				errs = append(errs, fmt.Errorf("record %s: subtask id %q: %w", rec.ID, sub, err))
				continue
			}
			if err := store.Parent(child, parent); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// Records serializes the store in depth-first order.
func Records(store *tasks.Store) []model.Record {
	var out []model.Record
	store.Walk(func(n *tasks.Node) bool {
		children := n.Children()
		subs := make([]string, 0, len(children))
		for _, c := range children {
			subs = append(subs, c.ID().String())
		}
		if len(subs) == 0 {
			subs = nil
		}
		out = append(out, n.Value.ToRecord(subs))
		return true
	})
	return out
}

// SaveToFile writes the store to path atomically, creating parent
// directories as needed.
func SaveToFile(store *tasks.Store, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create tasks directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tasks-*.jsonl")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	w := bufio.NewWriter(tmp)
	enc := json.NewEncoder(w)
	for _, rec := range Records(store) {
		if err := enc.Encode(rec); err != nil {
			tmp.Close()
			return fmt.Errorf("failed to encode task %s: %w", rec.ID, err)
		}
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write tasks file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close tasks file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace tasks file: %w", err)
	}
	return nil
}
