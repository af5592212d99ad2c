// Package service ties deal storage, document loading and the analysis
// engine together for the CLI and the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/seenimoa/dealscope/internal/analysis"
	"github.com/seenimoa/dealscope/internal/config"
	"github.com/seenimoa/dealscope/internal/deal"
	"github.com/seenimoa/dealscope/internal/infra"
	"github.com/seenimoa/dealscope/internal/loader"
	"github.com/seenimoa/dealscope/internal/metrics"
	"github.com/seenimoa/dealscope/internal/store"
)

// Event types published to subscribers.
const (
	EventAnalysisComplete = "analysis_complete"
	EventDealSaved        = "deal_saved"
	EventDealDeleted      = "deal_deleted"
)

// Event is a notification about a deal.
type Event struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data,omitempty"`
}

// Service is the deal application layer. Analyses of stored deals are
// cached per deal, profile and horizon until the deal changes.
type Service struct {
	repo  store.Repository
	cfg   config.AnalysisConfig
	cache *infra.Cache[*analysis.DealAnalysis]

	mu   sync.RWMutex
	subs []func(Event)
}

// New builds a service over a repository.
func New(repo store.Repository, cfg config.AnalysisConfig) *Service {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 4
	}
	return &Service{
		repo:  repo,
		cfg:   cfg,
		cache: infra.NewCache[*analysis.DealAnalysis](time.Duration(cfg.CacheTTL) * time.Second),
	}
}

// OpenRepository returns the store selected by the storage settings.
func OpenRepository(cfg config.StorageConfig) (store.Repository, error) {
	switch cfg.Backend {
	case "memory":
		return store.NewMemoryStore(), nil
	case "", "file":
		return store.NewFileStore(cfg.Dir)
	}
	return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
}

// Subscribe registers fn for every event. Callbacks run synchronously
// and must not block.
func (s *Service) Subscribe(fn func(Event)) {
	s.mu.Lock()
	s.subs = append(s.subs, fn)
	s.mu.Unlock()
}

func (s *Service) publish(e Event) {
	s.mu.RLock()
	subs := s.subs
	s.mu.RUnlock()
	for _, fn := range subs {
		fn(e)
	}
}

// Settings returns the analysis settings in effect.
func (s *Service) Settings() config.AnalysisConfig { return s.cfg }

// ════════════════════════════════════════════════════════════════════
// Options
// ════════════════════════════════════════════════════════════════════

// Overrides are per-request changes to the configured analysis settings.
// Zero values keep the configured default.
type Overrides struct {
	Profile       string   `json:"investor_profile,omitempty"`
	HoldingPeriod int      `json:"holding_period,omitempty"`
	DiscountRate  *float64 `json:"discount_rate,omitempty"`
	Scenarios     bool     `json:"scenarios,omitempty"`
	Stress        bool     `json:"stress,omitempty"`
}

// Options merges overrides into the configured settings. A deal's own
// holding period wins over the configured one when no override is given.
func (s *Service) Options(d *deal.Deal, o Overrides) analysis.Options {
	m := s.cfg.Options()
	if d != nil && d.HoldingPeriod() > 0 {
		m.HoldingPeriod = d.HoldingPeriod()
	}
	if o.HoldingPeriod > 0 {
		m.HoldingPeriod = o.HoldingPeriod
	}
	if o.Profile != "" {
		m.Profile = o.Profile
	}
	if o.DiscountRate != nil {
		m.DiscountRate = metrics.Rate(*o.DiscountRate)
	}
	return analysis.Options{
		Metrics:   m,
		Scenarios: o.Scenarios,
		Stress:    o.Stress,
		Limits:    s.StressLimits(),
	}
}

// StressLimits are the configured stress bounds, falling back to the
// defaults when unset.
func (s *Service) StressLimits() analysis.StressLimits {
	l := analysis.DefaultStressLimits()
	if s.cfg.StressMaxVacancy > 0 {
		l.MaxVacancy = s.cfg.StressMaxVacancy
	}
	if s.cfg.StressMaxExpenseUp > 0 {
		l.MaxExpenseIncrease = s.cfg.StressMaxExpenseUp
	}
	return l
}

// ════════════════════════════════════════════════════════════════════
// Repository
// ════════════════════════════════════════════════════════════════════

// Save validates a document and stores it. A document without an ID is
// given one. The built deal is returned.
func (s *Service) Save(doc *loader.Document) (*deal.Deal, error) {
	d, err := loader.Build(doc)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Save(doc); err != nil {
		return nil, fmt.Errorf("saving deal %s: %w", doc.ID, err)
	}
	s.cache.InvalidatePrefix(cachePrefix(d.ID()))
	slog.Info("deal saved", "deal", d.ID(), "name", d.Name())
	s.publish(Event{Type: EventDealSaved, Data: map[string]any{"deal_id": d.ID(), "deal_name": d.Name()}})
	return d, nil
}

// Document returns a stored document.
func (s *Service) Document(id string) (*loader.Document, error) {
	return s.repo.Load(id)
}

// Load returns a stored deal.
func (s *Service) Load(id string) (*deal.Deal, error) {
	doc, err := s.repo.Load(id)
	if err != nil {
		return nil, err
	}
	d, err := loader.Build(doc)
	if err != nil {
		return nil, fmt.Errorf("stored deal %s: %w", id, err)
	}
	return d, nil
}

// List returns the stored deals ordered by ID.
func (s *Service) List() ([]store.Entry, error) { return s.repo.List() }

// Delete removes a stored deal.
func (s *Service) Delete(id string) error {
	if err := s.repo.Delete(id); err != nil {
		return err
	}
	s.cache.InvalidatePrefix(cachePrefix(id))
	slog.Info("deal deleted", "deal", id)
	s.publish(Event{Type: EventDealDeleted, Data: map[string]any{"deal_id": id}})
	return nil
}

// ════════════════════════════════════════════════════════════════════
// Analysis
// ════════════════════════════════════════════════════════════════════

func cachePrefix(id string) string { return id + "|" }

func cacheKey(id string, opts analysis.Options) string {
	return fmt.Sprintf("%s|%s|%d|%g|%t|%t", id, strings.ToLower(opts.Metrics.Profile),
		opts.Metrics.HoldingPeriod, opts.Metrics.Discount(), opts.Scenarios, opts.Stress)
}

// Analyze runs the full analysis of a deal.
func (s *Service) Analyze(ctx context.Context, d *deal.Deal, opts analysis.Options) (*analysis.DealAnalysis, error) {
	a, err := analysis.Analyze(ctx, d, opts)
	if err != nil {
		return nil, err
	}
	s.publish(Event{Type: EventAnalysisComplete, Data: map[string]any{
		"deal_id":    d.ID(),
		"deal_name":  d.Name(),
		"profile":    a.Metrics.Options.Profile,
		"deal_score": a.Metrics.DealScore.Value,
	}})
	return a, nil
}

// AnalyzeStored analyzes a stored deal, serving repeated requests from
// the cache.
func (s *Service) AnalyzeStored(ctx context.Context, id string, o Overrides) (*analysis.DealAnalysis, error) {
	d, err := s.Load(id)
	if err != nil {
		return nil, err
	}
	opts := s.Options(d, o)
	key := cacheKey(id, opts)
	if a, ok := s.cache.Get(key); ok {
		slog.Debug("analysis cache hit", "deal", id)
		return a, nil
	}
	a, err := s.Analyze(ctx, d, opts)
	if err != nil {
		return nil, err
	}
	s.cache.Set(key, a)
	return a, nil
}

// BatchResult is one deal's outcome in a batch.
type BatchResult struct {
	Source   string                 `json:"source"`
	Analysis *analysis.DealAnalysis `json:"analysis,omitempty"`
	Err      error                  `json:"-"`
	Error    string                 `json:"error,omitempty"`
}

// Batch analyzes several deals at once, at most Concurrency at a time.
// Results keep the input order; a failed deal does not stop the others.
func (s *Service) Batch(ctx context.Context, sources []string, load func(string) (*deal.Deal, error), o Overrides) []BatchResult {
	results := make([]BatchResult, len(sources))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)

	for i, src := range sources {
		g.Go(func() error {
			r := BatchResult{Source: src}
			d, err := load(src)
			if err == nil {
				r.Analysis, err = s.Analyze(gctx, d, s.Options(d, o))
			}
			if err != nil {
				r.Err = err
				r.Error = err.Error()
			}
			results[i] = r
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	slog.Info("batch analyzed", "deals", len(sources), "failed", failed)
	return results
}

// ════════════════════════════════════════════════════════════════════
// Studies
// ════════════════════════════════════════════════════════════════════

// Scenarios runs the preset scenarios, or the given ones.
func (s *Service) Scenarios(ctx context.Context, d *deal.Deal, scenarios []analysis.Scenario, o Overrides) (*analysis.ScenarioReport, error) {
	return analysis.RunScenarios(ctx, d, scenarios, s.Options(d, o).Metrics)
}

// Stress runs the stress test within the configured limits.
func (s *Service) Stress(d *deal.Deal) (*analysis.StressResult, error) {
	return analysis.StressTest(d, s.StressLimits())
}

// Grid runs a two-variable sensitivity study; unset steps, concurrency
// and options come from the configuration.
func (s *Service) Grid(ctx context.Context, d *deal.Deal, req analysis.GridRequest, o Overrides) (*analysis.Grid, error) {
	if req.Steps == 0 {
		req.Steps = s.cfg.SensitivitySteps
	}
	if req.Concurrency == 0 {
		req.Concurrency = s.cfg.Concurrency
	}
	req.Options = s.Options(d, o).Metrics
	return analysis.SensitivityGrid(ctx, d, req)
}

// Sweep runs a one-variable sensitivity study.
func (s *Service) Sweep(ctx context.Context, d *deal.Deal, req analysis.SweepRequest, o Overrides) (*analysis.Sweep, error) {
	if req.Concurrency == 0 {
		req.Concurrency = s.cfg.Concurrency
	}
	req.Options = s.Options(d, o).Metrics
	return analysis.SensitivitySweep(ctx, d, req)
}

// Profiles lists the investor profiles.
func Profiles() []metrics.Strategy { return metrics.BuiltinStrategies() }

// IsNotFound reports whether err means an unknown deal.
func IsNotFound(err error) bool { return errors.Is(err, store.ErrNotFound) }
