package taskstore_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"

	"github.com/Shaxina0930/vocalis-app/internal/taskstore"
	"github.com/Shaxina0930/vocalis-app/pkg/types"
)

func TestFileStore_Contract(t *testing.T) {
	t.Parallel()

	s, err := taskstore.OpenFileStore(afero.NewMemMapFs(), "/data/tasks.json")
	if err != nil {
		t.Fatalf("OpenFileStore: %v", err)
	}
	exerciseStore(t, s)
}

func TestFileStore_PersistsAcrossReopen(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	ctx := context.Background()
	date := types.Date{Year: 2026, Month: time.October, Day: 20}

	s, err := taskstore.OpenFileStore(fs, "/data/tasks.json")
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Create(ctx, taskstore.Task{
		ID:    "x1",
		Title: "Call mom",
		Date:  &date,
		Time:  &types.TimeOfDay{Hour: 15},
	}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	reopened, err := taskstore.OpenFileStore(fs, "/data/tasks.json")
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	got, err := reopened.Get(ctx, "x1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Date == nil || *got.Date != date {
		t.Errorf("Date = %v, want %v", got.Date, date)
	}
	if got.Time == nil || got.Time.String() != "15:00" {
		t.Errorf("Time = %v, want 15:00", got.Time)
	}

	raw, err := afero.ReadFile(fs, "/data/tasks.json")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(raw), `"date": "2026-10-20"`) {
		t.Errorf("document does not store ISO date: %s", raw)
	}
}

func TestFileStore_NoTempFilesLeft(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	s, err := taskstore.OpenFileStore(fs, "/data/tasks.json")
	if err != nil {
		t.Fatal(err)
	}
	_ = s.Create(context.Background(), taskstore.Task{ID: "1", Title: "One"})
	_, _ = s.Delete(context.Background(), "1")

	entries, err := afero.ReadDir(fs, "/data")
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "tasks.json" {
		names := make([]string, len(entries))
		for i, e := range entries {
			names[i] = e.Name()
		}
		t.Errorf("dir entries = %v, want [tasks.json]", names)
	}
}

func TestOpenFileStore_Errors(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	if _, err := taskstore.OpenFileStore(fs, ""); err == nil {
		t.Error("empty path: expected error")
	}

	_ = afero.WriteFile(fs, "/bad.json", []byte("{not json"), 0o644)
	if _, err := taskstore.OpenFileStore(fs, "/bad.json"); err == nil {
		t.Error("corrupt document: expected error")
	}

	_ = afero.WriteFile(fs, "/future.json", []byte(`{"version": 99, "tasks": []}`), 0o644)
	if _, err := taskstore.OpenFileStore(fs, "/future.json"); err == nil {
		t.Error("future version: expected error")
	}
}

func TestFileStore_ReadOnlyFsKeepsState(t *testing.T) {
	t.Parallel()

	base := afero.NewMemMapFs()
	_ = afero.WriteFile(base, "/tasks.json", []byte(`{"version":1,"tasks":[{"id":"1","title":"One","description":""}]}`), 0o644)

	s, err := taskstore.OpenFileStore(afero.NewReadOnlyFs(base), "/tasks.json")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Delete(context.Background(), "1"); err == nil {
		t.Fatal("Delete on read-only fs: expected error")
	}
	got, _ := s.List(context.Background())
	if len(got) != 1 {
		t.Errorf("failed commit changed in-memory state: %d tasks", len(got))
	}
}
