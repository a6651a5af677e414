package history

import (
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	// A nested path checks that Open creates missing directories.
	s, err := Open(filepath.Join(t.TempDir(), "state", "history.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestAddAndRecent(t *testing.T) {
	s := openTestStore(t)

	base := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)
	for i, name := range []string{"first.csv", "second.csv", "third.csv"} {
		rec := Record{
			FileName:             name,
			FileSize:             int64(1000 * (i + 1)),
			ItemAccuracy:         0.8 + float64(i)/100,
			SubmissionsRemaining: 4 - i,
			CreatedAt:            base.Add(time.Duration(i) * time.Hour),
		}
		if err := s.Add(rec); err != nil {
			t.Fatalf("Add(%s) error = %v", name, err)
		}
	}

	recs, err := s.Recent(10)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("got %d records, want 3", len(recs))
	}
	// Newest first.
	if recs[0].FileName != "third.csv" || recs[2].FileName != "first.csv" {
		t.Errorf("records out of order: %q, %q, %q", recs[0].FileName, recs[1].FileName, recs[2].FileName)
	}
	if recs[0].ItemAccuracy != 0.82 {
		t.Errorf("ItemAccuracy = %v, want 0.82", recs[0].ItemAccuracy)
	}
	if recs[0].FileSize != 3000 {
		t.Errorf("FileSize = %d, want 3000", recs[0].FileSize)
	}
	if recs[0].SubmissionsRemaining != 2 {
		t.Errorf("SubmissionsRemaining = %d, want 2", recs[0].SubmissionsRemaining)
	}
}

func TestAddFillsDefaults(t *testing.T) {
	s := openTestStore(t)

	if err := s.Add(Record{FileName: "preds.csv", ItemAccuracy: 0.5}); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	recs, err := s.Recent(1)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 1 {
		t.Fatalf("got %d records, want 1", len(recs))
	}
	if recs[0].ID == "" {
		t.Error("ID should be generated")
	}
	if recs[0].CreatedAt.IsZero() {
		t.Error("CreatedAt should be filled in")
	}
}

func TestRecentLimit(t *testing.T) {
	s := openTestStore(t)

	base := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		rec := Record{FileName: "preds.csv", CreatedAt: base.Add(time.Duration(i) * time.Minute)}
		if err := s.Add(rec); err != nil {
			t.Fatal(err)
		}
	}

	recs, err := s.Recent(2)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 2 {
		t.Errorf("got %d records, want 2", len(recs))
	}
}

func TestRecentEmpty(t *testing.T) {
	s := openTestStore(t)
	recs, err := s.Recent(10)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(recs) != 0 {
		t.Errorf("got %d records, want 0", len(recs))
	}
}
