package store

import (
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *ReliabilityStore {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "nested", "reliability.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSaveAndGet(t *testing.T) {
	s := openTestStore(t)

	rec := ReliabilityRecord{
		Name:                "tree_sitter_planner",
		Reliability:         0.85,
		ConsecutiveFailures: 1,
		Quarantined:         false,
	}
	if err := s.Save(rec); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, ok, err := s.Get("tree_sitter_planner")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !ok {
		t.Fatal("Get reported the record absent")
	}
	if got.Reliability != 0.85 || got.ConsecutiveFailures != 1 || got.Quarantined {
		t.Errorf("Get returned %+v", got)
	}
	if got.UpdatedAt.IsZero() {
		t.Error("UpdatedAt not stamped")
	}
}

func TestGetAbsent(t *testing.T) {
	s := openTestStore(t)

	_, ok, err := s.Get("nobody")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if ok {
		t.Error("Get reported a phantom record")
	}
}

func TestSaveUpserts(t *testing.T) {
	s := openTestStore(t)

	if err := s.Save(ReliabilityRecord{Name: "p", Reliability: 0.3}); err != nil {
		t.Fatal(err)
	}
	if err := s.Save(ReliabilityRecord{Name: "p", Reliability: 0.9, Quarantined: true, ConsecutiveFailures: 3}); err != nil {
		t.Fatal(err)
	}

	got, ok, err := s.Get("p")
	if err != nil || !ok {
		t.Fatalf("Get after upsert: ok=%v err=%v", ok, err)
	}
	if got.Reliability != 0.9 || !got.Quarantined || got.ConsecutiveFailures != 3 {
		t.Errorf("upsert did not replace the row: %+v", got)
	}

	all, err := s.All()
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 {
		t.Errorf("All returned %d rows after upsert, want 1", len(all))
	}
}

func TestAllAndDelete(t *testing.T) {
	s := openTestStore(t)

	for _, name := range []string{"alpha", "beta", "gamma"} {
		if err := s.Save(ReliabilityRecord{Name: name, Reliability: 0.5}); err != nil {
			t.Fatal(err)
		}
	}

	all, err := s.All()
	if err != nil {
		t.Fatalf("All failed: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("All returned %d rows, want 3", len(all))
	}
	if _, ok := all["beta"]; !ok {
		t.Error("All missing beta")
	}

	if err := s.Delete("beta"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, ok, _ := s.Get("beta"); ok {
		t.Error("record survived Delete")
	}

	// Deleting an absent row is not an error.
	if err := s.Delete("beta"); err != nil {
		t.Errorf("Delete of absent row failed: %v", err)
	}
}

func TestPersistsAcrossReopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "reliability.db")

	s, err := Open(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Save(ReliabilityRecord{Name: "survivor", Reliability: 0.7}); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	reopened, err := Open(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	defer reopened.Close()

	got, ok, err := reopened.Get("survivor")
	if err != nil || !ok {
		t.Fatalf("record lost across reopen: ok=%v err=%v", ok, err)
	}
	if got.Reliability != 0.7 {
		t.Errorf("Reliability = %v, want 0.7", got.Reliability)
	}
	if reopened.Path() != dbPath {
		t.Errorf("Path() = %q, want %q", reopened.Path(), dbPath)
	}
}
