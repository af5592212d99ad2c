package store

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/seenimoa/dealscope/internal/loader"
)

func sampleDoc(id string) *loader.Document {
	rate := 5.0
	return &loader.Document{
		ID:   id,
		Name: "Deal " + id,
		Property: loader.PropertyDoc{
			Address:       "1 Main St",
			Type:          "single_family",
			PurchasePrice: 300000,
			Units:         1,
		},
		Financing: loader.FinancingDoc{DownPaymentPercent: 25, InterestRate: 6, TermYears: 30},
		Income:    loader.IncomeDoc{MonthlyRent: 2400, VacancyRate: &rate},
		Expenses:  loader.ExpensesDoc{PropertyTax: 3600, Insurance: 1200},
	}
}

// ════════════════════════════════════════════════════════════════════
// Shared contract
// ════════════════════════════════════════════════════════════════════

func testRepository(t *testing.T, repo Repository) {
	t.Helper()

	if _, err := repo.Load("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Load missing: want ErrNotFound, got %v", err)
	}
	if err := repo.Delete("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Delete missing: want ErrNotFound, got %v", err)
	}
	if err := repo.Save(sampleDoc("")); err == nil {
		t.Error("Save without ID: expected error")
	}

	for _, id := range []string{"b-2", "a-1"} {
		if err := repo.Save(sampleDoc(id)); err != nil {
			t.Fatalf("Save %s: %v", id, err)
		}
	}

	doc, err := repo.Load("a-1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if doc.Name != "Deal a-1" || doc.Income.VacancyRate == nil || *doc.Income.VacancyRate != 5 {
		t.Errorf("loaded doc = %+v", doc)
	}

	// The stored copy is independent of the caller's.
	doc.Name = "changed"
	again, _ := repo.Load("a-1")
	if again.Name != "Deal a-1" {
		t.Error("store shares state with callers")
	}

	list, err := repo.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 || list[0].ID != "a-1" || list[1].ID != "b-2" || list[0].Name != "Deal a-1" {
		t.Errorf("List = %+v", list)
	}

	if ok, _ := repo.Exists("b-2"); !ok {
		t.Error("Exists b-2 = false")
	}
	if err := repo.Delete("b-2"); err != nil {
		t.Fatal(err)
	}
	if ok, _ := repo.Exists("b-2"); ok {
		t.Error("b-2 still exists after Delete")
	}
}

func TestMemoryStore(t *testing.T) {
	testRepository(t, NewMemoryStore())
}

func TestFileStore(t *testing.T) {
	s, err := NewFileStore(filepath.Join(t.TempDir(), "deals"))
	if err != nil {
		t.Fatal(err)
	}
	testRepository(t, s)
}

// ════════════════════════════════════════════════════════════════════
// File layout
// ════════════════════════════════════════════════════════════════════

func TestSanitizeID(t *testing.T) {
	tests := []struct{ in, want string }{
		{"deal-1_a", "deal-1_a"},
		{"../etc/passwd", "___etc_passwd"},
		{"Tel Aviv #3", "Tel_Aviv__3"},
	}
	for _, tt := range tests {
		if got := SanitizeID(tt.in); got != tt.want {
			t.Errorf("SanitizeID(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFileStoreMetadataEnvelope(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Save(sampleDoc("Tel Aviv #3")); err != nil {
		t.Fatal(err)
	}

	raw, err := os.ReadFile(filepath.Join(dir, "Tel_Aviv__3.json"))
	if err != nil {
		t.Fatalf("sanitised file missing: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		t.Fatal(err)
	}
	meta, ok := m["_metadata"].(map[string]any)
	if !ok || meta["deal_id"] != "Tel Aviv #3" || meta["version"] != FormatVersion {
		t.Errorf("_metadata = %v", m["_metadata"])
	}
	if m["deal_name"] != "Deal Tel Aviv #3" {
		t.Errorf("document fields not at top level: %v", m)
	}

	// The original ID survives sanitising.
	list, _ := s.List()
	if len(list) != 1 || list[0].ID != "Tel Aviv #3" || list[0].SavedAt.IsZero() {
		t.Errorf("List = %+v", list)
	}
}

func TestFileStoreListSkipsBadFiles(t *testing.T) {
	dir := t.TempDir()
	s, _ := NewFileStore(dir)
	if err := os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{"), 0o644); err != nil {
		t.Fatal(err)
	}
	// A hand-written deal without metadata is listed by its own ID.
	plain, _ := json.Marshal(sampleDoc("hand-made"))
	if err := os.WriteFile(filepath.Join(dir, "x.json"), plain, 0o644); err != nil {
		t.Fatal(err)
	}
	list, err := s.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].ID != "hand-made" {
		t.Errorf("List = %+v", list)
	}
}
