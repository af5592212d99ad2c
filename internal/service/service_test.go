package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/seenimoa/dealscope/internal/analysis"
	"github.com/seenimoa/dealscope/internal/config"
	"github.com/seenimoa/dealscope/internal/deal"
	"github.com/seenimoa/dealscope/internal/loader"
	"github.com/seenimoa/dealscope/internal/store"
	"github.com/seenimoa/dealscope/pkg/models"
)

// ════════════════════════════════════════════════════════════════════
// Test Helpers
// ════════════════════════════════════════════════════════════════════

const dealJSON = `{
  "deal_id": "%s",
  "deal_name": "Oak Ave",
  "property": {"address": "3 Oak Ave", "property_type": "single_family",
    "purchase_price": 250000, "closing_costs": 5000, "num_units": 1},
  "financing": {"down_payment_percent": 20, "interest_rate": 4, "loan_term_years": 30},
  "income": {"monthly_rent_per_unit": 2000, "vacancy_rate_percent": 5},
  "expenses": {"property_tax_annual": 3000, "insurance_annual": 1200,
    "maintenance_percent": 5, "property_management_percent": 8, "capex_reserve_percent": 5}
}`

func doc(t *testing.T, id string) *loader.Document {
	t.Helper()
	d, err := loader.Read(strings.NewReader(fmt.Sprintf(dealJSON, id)), "json")
	if err != nil {
		t.Fatal(err)
	}
	return d
}

func testConfig() config.AnalysisConfig {
	return config.AnalysisConfig{
		HoldingPeriod:    10,
		Profile:          "balanced",
		DiscountRate:     0.10,
		SensitivitySteps: 4,
		Concurrency:      2,
		CacheTTL:         60,
	}
}

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) add(e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *recorder) count(typ string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Type == typ {
			n++
		}
	}
	return n
}

func newService(t *testing.T) (*Service, *recorder) {
	t.Helper()
	svc := New(store.NewMemoryStore(), testConfig())
	rec := &recorder{}
	svc.Subscribe(rec.add)
	return svc, rec
}

// ════════════════════════════════════════════════════════════════════
// Repository
// ════════════════════════════════════════════════════════════════════

func TestSaveLoadDelete(t *testing.T) {
	svc, rec := newService(t)

	d, err := svc.Save(doc(t, "oak"))
	if err != nil {
		t.Fatal(err)
	}
	if d.ID() != "oak" || rec.count(EventDealSaved) != 1 {
		t.Fatalf("id %q, saved events %d", d.ID(), rec.count(EventDealSaved))
	}

	loaded, err := svc.Load("oak")
	if err != nil {
		t.Fatal(err)
	}
	if loaded.NOI() != d.NOI() {
		t.Errorf("NOI %f != %f", loaded.NOI(), d.NOI())
	}

	entries, _ := svc.List()
	if len(entries) != 1 || entries[0].Name != "Oak Ave" {
		t.Errorf("entries = %+v", entries)
	}

	if err := svc.Delete("oak"); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Load("oak"); !IsNotFound(err) {
		t.Errorf("expected not found, got %v", err)
	}
	if err := svc.Delete("oak"); !IsNotFound(err) {
		t.Errorf("second delete: %v", err)
	}
	if rec.count(EventDealDeleted) != 1 {
		t.Error("delete event missing")
	}
}

func TestSaveAssignsID(t *testing.T) {
	svc, _ := newService(t)
	d, err := svc.Save(doc(t, ""))
	if err != nil {
		t.Fatal(err)
	}
	if d.ID() == "" {
		t.Fatal("no ID assigned")
	}
	if _, err := svc.Load(d.ID()); err != nil {
		t.Errorf("stored under assigned ID: %v", err)
	}
}

func TestSaveRejectsInvalid(t *testing.T) {
	svc, rec := newService(t)
	bad := doc(t, "bad")
	bad.Property.PurchasePrice = -1
	if _, err := svc.Save(bad); err == nil {
		t.Fatal("expected validation error")
	}
	if entries, _ := svc.List(); len(entries) != 0 || rec.count(EventDealSaved) != 0 {
		t.Error("invalid deal stored")
	}
}

func TestOpenRepository(t *testing.T) {
	if _, err := OpenRepository(config.StorageConfig{Backend: "memory"}); err != nil {
		t.Error(err)
	}
	if r, err := OpenRepository(config.StorageConfig{Backend: "file", Dir: t.TempDir()}); err != nil || r == nil {
		t.Errorf("file: %v", err)
	}
	if _, err := OpenRepository(config.StorageConfig{Backend: "redis"}); err == nil {
		t.Error("expected error for unknown backend")
	}
}

// ════════════════════════════════════════════════════════════════════
// Analysis
// ════════════════════════════════════════════════════════════════════

func TestOptions(t *testing.T) {
	svc, _ := newService(t)
	rate := 0.08
	opts := svc.Options(nil, Overrides{Profile: "cash_flow", HoldingPeriod: 7, DiscountRate: &rate, Stress: true})
	if opts.Metrics.Profile != "cash_flow" || opts.Metrics.HoldingPeriod != 7 || opts.Metrics.Discount() != 0.08 {
		t.Errorf("metrics options = %+v", opts.Metrics)
	}
	if !opts.Stress || opts.Scenarios {
		t.Error("study flags not carried")
	}
	if opts.Limits.MaxVacancy != 20 || opts.Limits.MaxExpenseIncrease != 10 {
		t.Errorf("limits = %+v", opts.Limits)
	}

	def := svc.Options(nil, Overrides{})
	if def.Metrics.HoldingPeriod != 10 || def.Metrics.Profile != "balanced" {
		t.Errorf("defaults = %+v", def.Metrics)
	}
}

func TestOptionsZeroDiscountRate(t *testing.T) {
	svc, _ := newService(t)
	zero := 0.0
	opts := svc.Options(nil, Overrides{DiscountRate: &zero})
	if opts.Metrics.DiscountRate == nil || opts.Metrics.Discount() != 0 {
		t.Errorf("explicit 0%% discount rate lost: %+v", opts.Metrics)
	}
	if got := svc.Options(nil, Overrides{}).Metrics.Discount(); got != 0.10 {
		t.Errorf("configured rate = %f, want 0.10", got)
	}
}

func TestAnalyzeStoredCaches(t *testing.T) {
	svc, rec := newService(t)
	if _, err := svc.Save(doc(t, "oak")); err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	a1, err := svc.AnalyzeStored(ctx, "oak", Overrides{})
	if err != nil {
		t.Fatal(err)
	}
	a2, err := svc.AnalyzeStored(ctx, "oak", Overrides{})
	if err != nil {
		t.Fatal(err)
	}
	if a1 != a2 {
		t.Error("second analysis should come from the cache")
	}
	if rec.count(EventAnalysisComplete) != 1 {
		t.Errorf("analysis events = %d", rec.count(EventAnalysisComplete))
	}

	a3, err := svc.AnalyzeStored(ctx, "oak", Overrides{Profile: "appreciation"})
	if err != nil {
		t.Fatal(err)
	}
	if a3 == a1 || a3.Metrics.Options.Profile != "appreciation" {
		t.Error("different profile must not share a cache entry")
	}

	// Saving again invalidates the deal's entries.
	if _, err := svc.Save(doc(t, "oak")); err != nil {
		t.Fatal(err)
	}
	a4, err := svc.AnalyzeStored(ctx, "oak", Overrides{})
	if err != nil {
		t.Fatal(err)
	}
	if a4 == a1 {
		t.Error("cache not invalidated on save")
	}

	if _, err := svc.AnalyzeStored(ctx, "missing", Overrides{}); !IsNotFound(err) {
		t.Errorf("missing deal: %v", err)
	}
}

func TestBatch(t *testing.T) {
	svc, rec := newService(t)
	docs := map[string]*loader.Document{"a": doc(t, "a"), "b": doc(t, "b"), "c": doc(t, "c")}
	load := func(src string) (*deal.Deal, error) {
		d, ok := docs[src]
		if !ok {
			return nil, fmt.Errorf("cannot read %s", src)
		}
		return loader.Build(d)
	}

	results := svc.Batch(context.Background(), []string{"a", "broken", "b", "c"}, load, Overrides{HoldingPeriod: 5})
	if len(results) != 4 {
		t.Fatalf("results = %d", len(results))
	}
	for i, want := range []string{"a", "broken", "b", "c"} {
		if results[i].Source != want {
			t.Errorf("results[%d].Source = %q", i, results[i].Source)
		}
	}
	if results[1].Err == nil || results[1].Error == "" {
		t.Error("broken deal should report an error")
	}
	for _, i := range []int{0, 2, 3} {
		r := results[i]
		if r.Err != nil || r.Analysis == nil {
			t.Fatalf("%s: %v", r.Source, r.Err)
		}
		if r.Analysis.ProForma.Horizon() != 5 {
			t.Errorf("%s horizon = %d", r.Source, r.Analysis.ProForma.Horizon())
		}
	}
	if rec.count(EventAnalysisComplete) != 3 {
		t.Errorf("analysis events = %d", rec.count(EventAnalysisComplete))
	}
}

// ════════════════════════════════════════════════════════════════════
// Studies
// ════════════════════════════════════════════════════════════════════

func TestStudies(t *testing.T) {
	svc, _ := newService(t)
	d, err := loader.Build(doc(t, "oak"))
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	sc, err := svc.Scenarios(ctx, d, nil, Overrides{})
	if err != nil || len(sc.Outcomes) != 3 {
		t.Fatalf("scenarios: %v", err)
	}

	st, err := svc.Stress(d)
	if err != nil {
		t.Fatal(err)
	}
	if st.Limits != svc.StressLimits() {
		t.Errorf("limits = %+v", st.Limits)
	}

	g, err := svc.Grid(ctx, d, gridRequest(), Overrides{})
	if err != nil {
		t.Fatal(err)
	}
	if len(g.Values1) != 4 || len(g.Cells) != 4 {
		t.Errorf("grid %dx%d, want configured 4 steps", len(g.Values1), len(g.Cells))
	}
}

func gridRequest() analysis.GridRequest {
	return analysis.GridRequest{
		Var1:   analysis.VarRent,
		Var2:   analysis.VarVacancy,
		Range1: [2]float64{-10, 10},
		Range2: [2]float64{-2, 2},
		Metric: models.MetricCashOnCash,
	}
}

func TestProfiles(t *testing.T) {
	if len(Profiles()) != 3 {
		t.Errorf("profiles = %d", len(Profiles()))
	}
}
