package taskstore_test

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/Shaxina0930/vocalis-app/internal/taskstore"
	"github.com/Shaxina0930/vocalis-app/pkg/types"
)

func titles(tasks []taskstore.Task) []string {
	out := make([]string, len(tasks))
	for i, t := range tasks {
		out[i] = t.Title
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// exerciseStore runs the behaviour every Store backend must share.
func exerciseStore(t *testing.T, s taskstore.Store) {
	t.Helper()
	ctx := context.Background()

	for _, task := range []taskstore.Task{
		{ID: "a", Title: "Alpha"},
		{ID: "b", Title: "Bravo"},
		{ID: "c", Title: "Charlie"},
	} {
		if err := s.Create(ctx, task); err != nil {
			t.Fatalf("Create(%s): %v", task.ID, err)
		}
	}

	got, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if want := []string{"Alpha", "Bravo", "Charlie"}; !equalStrings(titles(got), want) {
		t.Fatalf("List = %v, want %v", titles(got), want)
	}

	ok, err := s.Update(ctx, taskstore.Task{ID: "b", Title: "Bravo two"})
	if err != nil || !ok {
		t.Fatalf("Update existing = (%v, %v), want (true, nil)", ok, err)
	}
	ok, err = s.Update(ctx, taskstore.Task{ID: "zz", Title: "Ghost"})
	if err != nil || ok {
		t.Fatalf("Update missing = (%v, %v), want (false, nil)", ok, err)
	}

	task, err := s.Get(ctx, "b")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if task.Title != "Bravo two" {
		t.Errorf("Get title = %q, want %q", task.Title, "Bravo two")
	}
	if _, err := s.Get(ctx, "zz"); !errors.Is(err, taskstore.ErrNotFound) {
		t.Errorf("Get missing err = %v, want ErrNotFound", err)
	}

	ok, err = s.Delete(ctx, "a")
	if err != nil || !ok {
		t.Fatalf("Delete existing = (%v, %v)", ok, err)
	}
	ok, err = s.Delete(ctx, "a")
	if err != nil || ok {
		t.Fatalf("Delete twice = (%v, %v), want (false, nil)", ok, err)
	}

	got, _ = s.List(ctx)
	if want := []string{"Bravo two", "Charlie"}; !equalStrings(titles(got), want) {
		t.Errorf("List after delete = %v, want %v", titles(got), want)
	}

	if err := s.Create(ctx, taskstore.Task{ID: "bad"}); err == nil {
		t.Error("Create without title: expected error")
	}
}

func TestMemStore_Contract(t *testing.T) {
	t.Parallel()
	exerciseStore(t, taskstore.NewMemStore())
}

func TestMemStore_CreateExistingMovesToEnd(t *testing.T) {
	t.Parallel()

	s := taskstore.NewMemStore(
		taskstore.Task{ID: "1", Title: "One"},
		taskstore.Task{ID: "2", Title: "Two"},
	)
	if err := s.Create(context.Background(), taskstore.Task{ID: "1", Title: "One again"}); err != nil {
		t.Fatal(err)
	}
	got, _ := s.List(context.Background())
	if want := []string{"Two", "One again"}; !equalStrings(titles(got), want) {
		t.Errorf("List = %v, want %v", titles(got), want)
	}
}

func TestMemStore_ListIsACopy(t *testing.T) {
	t.Parallel()

	s := taskstore.NewMemStore(taskstore.Task{ID: "1", Title: "One"})
	got, _ := s.List(context.Background())
	got[0].Title = "mutated"
	again, _ := s.List(context.Background())
	if again[0].Title != "One" {
		t.Errorf("List exposed internal state: %q", again[0].Title)
	}
}

func TestMemStore_ConcurrentAccess(t *testing.T) {
	t.Parallel()

	s := taskstore.NewMemStore()
	ctx := context.Background()
	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := strconv.Itoa(i)
			_ = s.Create(ctx, taskstore.Task{ID: id, Title: id})
			_, _ = s.List(ctx)
			_, _ = s.Delete(ctx, id)
		}()
	}
	wg.Wait()
	got, _ := s.List(ctx)
	if len(got) != 0 {
		t.Errorf("len(List) = %d, want 0", len(got))
	}
}

func TestForDate(t *testing.T) {
	t.Parallel()

	day := types.Date{Year: 2026, Month: time.October, Day: 19}
	other := day.AddDays(1)
	tasks := []taskstore.Task{
		{ID: "1", Title: "Untimed", Date: &day},
		{ID: "2", Title: "Late", Date: &day, Time: &types.TimeOfDay{Hour: 18}},
		{ID: "3", Title: "Other day", Date: &other, Time: &types.TimeOfDay{Hour: 7}},
		{ID: "4", Title: "Early", Date: &day, Time: &types.TimeOfDay{Hour: 8, Minute: 30}},
		{ID: "5", Title: "No date"},
	}
	got := taskstore.ForDate(tasks, day)
	if want := []string{"Early", "Late", "Untimed"}; !equalStrings(titles(got), want) {
		t.Errorf("ForDate = %v, want %v", titles(got), want)
	}
}
