package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func openTemp(t *testing.T, limit int) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "sub", "history.db"), limit)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestAddAndRecent(t *testing.T) {
	s := openTemp(t, 0)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i, text := range []string{"first", "second", "third"} {
		_, err := s.Add(ctx, Entry{
			Text:      text,
			Language:  "en",
			Mode:      "cursor",
			Host:      "vscode",
			Duration:  1500 * time.Millisecond,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("Add(%q) error = %v", text, err)
		}
	}

	got, err := s.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Recent() returned %d entries, want 2", len(got))
	}
	if got[0].Text != "third" || got[1].Text != "second" {
		t.Errorf("Recent() order = %q, %q", got[0].Text, got[1].Text)
	}
	if got[0].Duration != 1500*time.Millisecond {
		t.Errorf("Duration = %v, want 1.5s", got[0].Duration)
	}
	if !got[0].CreatedAt.Equal(base.Add(2 * time.Minute)) {
		t.Errorf("CreatedAt = %v", got[0].CreatedAt)
	}
	if got[0].Mode != "cursor" || got[0].Host != "vscode" || got[0].Language != "en" {
		t.Errorf("entry = %+v", got[0])
	}
}

func TestLastEmpty(t *testing.T) {
	s := openTemp(t, 0)
	e, err := s.Last(context.Background())
	if err != nil {
		t.Fatalf("Last() error = %v", err)
	}
	if e != nil {
		t.Errorf("Last() = %+v, want nil", e)
	}
}

func TestLast(t *testing.T) {
	s := openTemp(t, 0)
	ctx := context.Background()
	_, _ = s.Add(ctx, Entry{Text: "old", CreatedAt: time.Now().Add(-time.Hour)})
	_, _ = s.Add(ctx, Entry{Text: "new"})
	e, err := s.Last(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if e == nil || e.Text != "new" {
		t.Errorf("Last() = %+v, want new", e)
	}
}

func TestLimitPrunes(t *testing.T) {
	s := openTemp(t, 3)
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		if _, err := s.Add(ctx, Entry{Text: string(rune('a' + i)), CreatedAt: base.Add(time.Duration(i) * time.Second)}); err != nil {
			t.Fatal(err)
		}
	}
	n, err := s.Count(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Errorf("Count() = %d, want 3", n)
	}
	got, _ := s.Recent(ctx, 10)
	if got[len(got)-1].Text != "c" {
		t.Errorf("oldest kept = %q, want c", got[len(got)-1].Text)
	}
}

func TestSearchAndClear(t *testing.T) {
	s := openTemp(t, 0)
	ctx := context.Background()
	_, _ = s.Add(ctx, Entry{Text: "refactor the parser"})
	_, _ = s.Add(ctx, Entry{Text: "add a unit test"})

	got, err := s.Search(ctx, "parser", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Text != "refactor the parser" {
		t.Errorf("Search() = %+v", got)
	}

	if err := s.Clear(ctx); err != nil {
		t.Fatal(err)
	}
	if n, _ := s.Count(ctx); n != 0 {
		t.Errorf("Count() after Clear = %d", n)
	}
}

func TestReopenPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "h.db")
	s, err := Open(path, 0)
	if err != nil {
		t.Fatal(err)
	}
	_, _ = s.Add(context.Background(), Entry{Text: "kept"})
	s.Close()

	s, err = Open(path, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	e, _ := s.Last(context.Background())
	if e == nil || e.Text != "kept" {
		t.Errorf("Last() after reopen = %+v", e)
	}
}
