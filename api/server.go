// Package api provides the HTTP REST API server for dealscope.
//
// It exposes endpoints for deal analysis, amortization schedules,
// pro-formas, scenario, sensitivity and stress studies, the deal
// repository, and WebSocket event streaming.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/seenimoa/dealscope/internal/analysis"
	"github.com/seenimoa/dealscope/internal/config"
	"github.com/seenimoa/dealscope/internal/deal"
	"github.com/seenimoa/dealscope/internal/loader"
	"github.com/seenimoa/dealscope/internal/mortgage"
	"github.com/seenimoa/dealscope/internal/proforma"
	"github.com/seenimoa/dealscope/internal/report"
	"github.com/seenimoa/dealscope/internal/service"
	"github.com/seenimoa/dealscope/pkg/models"
	"github.com/seenimoa/dealscope/web"
)

// Version is reported by /health; the CLI sets it at startup.
var Version = "dev"

// Server is the HTTP API server.
type Server struct {
	router  chi.Router
	cfg     *config.Config
	svc     *service.Service
	wsHub   *WSHub
	serveUI bool // when true, serve the embedded dashboard at /
}

// NewServer creates a configured API server with all routes and middleware.
// Service events are relayed to WebSocket clients.
func NewServer(cfg *config.Config, svc *service.Service) *Server {
	srv := &Server{
		cfg:     cfg,
		svc:     svc,
		wsHub:   NewWSHub(),
		serveUI: true,
	}
	svc.Subscribe(func(e service.Event) {
		srv.wsHub.Broadcast(WSMessage{Type: e.Type, Data: e.Data})
	})
	srv.router = srv.buildRouter()
	return srv
}

// SetServeUI controls whether the embedded dashboard is served.
// Must be called before ListenAndServe.
func (s *Server) SetServeUI(enabled bool) {
	s.serveUI = enabled
	s.router = s.buildRouter()
}

// Router returns the chi router for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

// Hub returns the WebSocket hub.
func (s *Server) Hub() *WSHub { return s.wsHub }

// ListenAndServe starts the HTTP server with graceful shutdown.
func (s *Server) ListenAndServe(addr string) error {
	httpSrv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go s.wsHub.Run()

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("HTTP server error: %w", err)
	case <-done:
	}
	slog.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return httpSrv.Shutdown(ctx)
}

// buildRouter configures all routes and middleware.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(120 * time.Second))

	origins := []string{"*"}
	if len(s.cfg.API.CORSOrigins) > 0 {
		origins = s.cfg.API.CORSOrigins
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/profiles", s.handleProfiles)

		// Stateless calculations on a posted deal (or a stored one by ID)
		r.Post("/analyze", s.handleAnalyze)
		r.Post("/amortization", s.handleAmortization)
		r.Post("/proforma", s.handleProForma)
		r.Post("/scenarios", s.handleScenarios)
		r.Post("/sensitivity", s.handleSensitivity)
		r.Post("/stress", s.handleStress)

		// Repository
		r.Get("/deals", s.handleListDeals)
		r.Get("/deals/{id}", s.handleGetDeal)
		r.Get("/deals/{id}/analysis", s.handleDealAnalysis)
		r.Group(func(r chi.Router) {
			r.Use(s.requireToken)
			r.Post("/deals", s.handleSaveDeal)
			r.Delete("/deals/{id}", s.handleDeleteDeal)
		})

		// Configuration
		r.Get("/config", s.handleGetConfig)
		r.Get("/config/keys", s.handleGetConfigKeys)

		r.Get("/ws", s.handleWebSocket)
	})

	if s.serveUI {
		s.mountUI(r, web.DistFS())
	}
	return r
}

// mountUI serves the embedded dashboard; unknown paths fall back to
// index.html.
func (s *Server) mountUI(r chi.Router, distFS fs.FS) {
	fileServer := http.FileServerFS(distFS)

	r.Get("/*", func(w http.ResponseWriter, r *http.Request) {
		rPath := strings.TrimPrefix(r.URL.Path, "/")
		if rPath == "" {
			rPath = "index.html"
		}
		f, err := distFS.Open(rPath)
		if err != nil {
			serveIndexHTML(w, distFS)
			return
		}
		f.Close()
		if strings.HasSuffix(rPath, ".html") {
			w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
		}
		fileServer.ServeHTTP(w, r)
	})
}

func serveIndexHTML(w http.ResponseWriter, distFS fs.FS) {
	data, err := fs.ReadFile(distFS, "index.html")
	if err != nil {
		http.Error(w, "web UI not available", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.WriteHeader(http.StatusOK)
	w.Write(data) //nolint:errcheck
}

// requireToken guards write routes with a bearer token when one is
// configured.
func (s *Server) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		want := s.cfg.API.AuthToken
		if want == "" || r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			writeError(w, http.StatusUnauthorized, "missing or invalid Authorization header")
			return
		}
		if strings.TrimPrefix(header, "Bearer ") != want {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ============================================================
// Request / Response types
// ============================================================

// APIResponse is the standard JSON envelope.
type APIResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// DealRequest names a deal either inline or by stored ID, plus optional
// analysis overrides.
type DealRequest struct {
	DealID string           `json:"deal_id,omitempty"`
	Deal   *loader.Document `json:"deal,omitempty"`
	service.Overrides
}

// AnalyzeRequest is the body for POST /api/v1/analyze. Format "html",
// "text" or "pdf" returns a rendered report instead of JSON.
type AnalyzeRequest struct {
	DealRequest
	Format string `json:"format,omitempty"`
}

// AmortizationRequest is the body for POST /api/v1/amortization.
type AmortizationRequest struct {
	DealRequest
	Track  string `json:"track,omitempty"` // case-insensitive partial match
	Yearly bool   `json:"yearly,omitempty"`
}

// AmortizationResponse carries the loan sizing and its schedules.
type AmortizationResponse struct {
	Loan       mortgage.LoanDetails     `json:"loan"`
	Compliance mortgage.Compliance      `json:"compliance"`
	Tracks     []mortgage.TrackSchedule `json:"tracks,omitempty"`
	Combined   []models.Payment         `json:"combined,omitempty"`
	Yearly     []models.YearSummary     `json:"yearly,omitempty"`
	Totals     map[string]float64       `json:"totals"`
}

// ProFormaResponse is the projection with its summary.
type ProFormaResponse struct {
	ProForma *proforma.ProForma `json:"proforma"`
	Summary  proforma.Summary   `json:"summary"`
	Warnings []string           `json:"warnings,omitempty"`
}

// ScenariosRequest is the body for POST /api/v1/scenarios. Without
// scenarios the three presets run.
type ScenariosRequest struct {
	DealRequest
	Scenarios []analysis.Scenario `json:"scenarios,omitempty"`
}

// SensitivityRequest is the body for POST /api/v1/sensitivity. With one
// variable it sweeps; with two it builds a grid.
type SensitivityRequest struct {
	DealRequest
	Variable1 string     `json:"variable1"`
	Variable2 string     `json:"variable2,omitempty"`
	Metric    string     `json:"metric,omitempty"`
	Metrics   []string   `json:"metrics,omitempty"`
	Range1    [2]float64 `json:"range1,omitempty"`
	Range2    [2]float64 `json:"range2,omitempty"`
	Steps     int        `json:"steps,omitempty"`
}

// ProfileInfo describes an investor profile.
type ProfileInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ============================================================
// Handlers
// ============================================================

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data: map[string]any{
			"status":     "ok",
			"version":    Version,
			"time":       time.Now().UTC().Format(time.RFC3339),
			"ws_clients": s.wsHub.ClientCount(),
		},
	})
}

func (s *Server) handleProfiles(w http.ResponseWriter, r *http.Request) {
	var out []ProfileInfo
	for _, p := range service.Profiles() {
		out = append(out, ProfileInfo{Name: p.Name(), Description: p.Description()})
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: out})
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeRequest
	if !decode(w, r, &req) {
		return
	}
	format := strings.ToLower(req.Format)
	if format != "" && format != "json" {
		if _, err := report.ParseFormat(format); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	d, ok := s.resolveDeal(w, req.DealRequest)
	if !ok {
		return
	}
	req.Scenarios, req.Stress = true, true
	a, err := s.svc.Analyze(r.Context(), d, s.svc.Options(d, req.Overrides))
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	if format == "" || format == "json" {
		writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: a})
		return
	}
	s.writeReport(w, a, format)
}

func (s *Server) writeReport(w http.ResponseWriter, a *analysis.DealAnalysis, format string) {
	f, _ := report.ParseFormat(format)
	cfg := report.DefaultReportConfig()
	cfg.Format = f
	cfg.Author = s.cfg.Report.Author
	cfg.PageSize = s.cfg.Report.PageSize
	cfg.Orientation = s.cfg.Report.Orientation

	switch f {
	case report.FormatPDF:
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", a.Summary.ID+".pdf"))
		if err := report.GeneratePDF(a, cfg, w); err != nil {
			slog.Error("pdf report failed", "deal", a.Summary.ID, "error", err)
		}
	case report.FormatHTML:
		out, err := report.GenerateHTML(a, cfg)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(out)) //nolint:errcheck
	default:
		out, err := report.GenerateText(a, cfg)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte(out)) //nolint:errcheck
	}
}

func (s *Server) handleAmortization(w http.ResponseWriter, r *http.Request) {
	var req AmortizationRequest
	if !decode(w, r, &req) {
		return
	}
	d, ok := s.resolveDeal(w, req.DealRequest)
	if !ok {
		return
	}

	sched := d.Schedule()
	resp := AmortizationResponse{
		Loan:       d.LoanDetails(),
		Compliance: d.Financing().Compliance(),
		Totals: map[string]float64{
			"loan_amount":     sched.LoanAmount,
			"monthly_payment": sched.MonthlyPayment,
			"total_interest":  sched.TotalInterest,
			"total_paid":      sched.LoanAmount + sched.TotalInterest,
		},
	}

	tracks := sched.Tracks
	if req.Track != "" {
		tracks = nil
		for _, ts := range sched.Tracks {
			if strings.Contains(strings.ToLower(ts.Name), strings.ToLower(req.Track)) {
				tracks = append(tracks, ts)
			}
		}
		if len(tracks) == 0 {
			writeError(w, http.StatusNotFound, fmt.Sprintf("no track matches %q", req.Track))
			return
		}
	}

	combined := sched.Combined
	if req.Track != "" {
		combined = mortgage.Combine(tracks)
	}
	if req.Yearly {
		resp.Yearly = mortgage.YearlySummary(combined)
	} else {
		resp.Tracks = tracks
		resp.Combined = combined
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: resp})
}

func (s *Server) handleProForma(w http.ResponseWriter, r *http.Request) {
	var req DealRequest
	if !decode(w, r, &req) {
		return
	}
	d, ok := s.resolveDeal(w, req)
	if !ok {
		return
	}
	years := s.svc.Options(d, req.Overrides).Metrics.HoldingPeriod
	res := proforma.Project(d, years)
	if !res.Success {
		writeError(w, http.StatusBadRequest, strings.Join(res.Errors, "; "))
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: ProFormaResponse{
		ProForma: res.Data,
		Summary:  res.Data.Summary(),
		Warnings: res.Warnings,
	}})
}

func (s *Server) handleScenarios(w http.ResponseWriter, r *http.Request) {
	var req ScenariosRequest
	if !decode(w, r, &req) {
		return
	}
	d, ok := s.resolveDeal(w, req.DealRequest)
	if !ok {
		return
	}
	rep, err := s.svc.Scenarios(r.Context(), d, req.Scenarios, req.Overrides)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: map[string]any{
		"report":     rep,
		"comparison": rep.Comparison(),
	}})
}

func (s *Server) handleSensitivity(w http.ResponseWriter, r *http.Request) {
	var req SensitivityRequest
	if !decode(w, r, &req) {
		return
	}
	v1, err := analysis.ParseVariable(req.Variable1)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	d, ok := s.resolveDeal(w, req.DealRequest)
	if !ok {
		return
	}

	if req.Variable2 == "" {
		var mts []models.MetricType
		for _, m := range req.Metrics {
			mt, err := analysis.ParseMetric(m)
			if err != nil {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			mts = append(mts, mt)
		}
		sweep, err := s.svc.Sweep(r.Context(), d, analysis.SweepRequest{
			Variable: v1, Range: req.Range1, Steps: req.Steps, Metrics: mts,
		}, req.Overrides)
		if err != nil {
			writeError(w, statusFor(err), err.Error())
			return
		}
		writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: sweep})
		return
	}

	v2, err := analysis.ParseVariable(req.Variable2)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	metric := models.MetricCashOnCash
	if req.Metric != "" {
		if metric, err = analysis.ParseMetric(req.Metric); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	grid, err := s.svc.Grid(r.Context(), d, analysis.GridRequest{
		Var1: v1, Var2: v2, Range1: req.Range1, Range2: req.Range2, Steps: req.Steps, Metric: metric,
	}, req.Overrides)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: grid})
}

func (s *Server) handleStress(w http.ResponseWriter, r *http.Request) {
	var req DealRequest
	if !decode(w, r, &req) {
		return
	}
	d, ok := s.resolveDeal(w, req)
	if !ok {
		return
	}
	res, err := s.svc.Stress(d)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: res})
}

// ── Repository ──

func (s *Server) handleListDeals(w http.ResponseWriter, r *http.Request) {
	entries, err := s.svc.List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: entries})
}

func (s *Server) handleGetDeal(w http.ResponseWriter, r *http.Request) {
	doc, err := s.svc.Document(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: doc})
}

func (s *Server) handleSaveDeal(w http.ResponseWriter, r *http.Request) {
	var doc loader.Document
	if !decode(w, r, &doc) {
		return
	}
	d, err := s.svc.Save(&doc)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, APIResponse{Success: true, Data: d.Summary()})
}

func (s *Server) handleDeleteDeal(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.svc.Delete(id); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: map[string]string{"deleted": id}})
}

func (s *Server) handleDealAnalysis(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	o := service.Overrides{Profile: q.Get("profile"), Scenarios: true, Stress: true}
	if y := q.Get("years"); y != "" {
		n, err := strconv.Atoi(y)
		if err != nil {
			writeError(w, http.StatusBadRequest, "years must be an integer")
			return
		}
		o.HoldingPeriod = n
	}
	a, err := s.svc.AnalyzeStored(r.Context(), chi.URLParam(r, "id"), o)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	if f := q.Get("format"); f != "" && f != "json" {
		if _, err := report.ParseFormat(f); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.writeReport(w, a, f)
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: a})
}

// ============================================================
// Helpers
// ============================================================

// resolveDeal builds the inline deal or loads the stored one, writing the
// error response itself when it fails.
func (s *Server) resolveDeal(w http.ResponseWriter, req DealRequest) (*deal.Deal, bool) {
	var (
		d   *deal.Deal
		err error
	)
	switch {
	case req.Deal != nil:
		d, err = loader.Build(req.Deal)
	case req.DealID != "":
		d, err = s.svc.Load(req.DealID)
	default:
		writeError(w, http.StatusBadRequest, "deal or deal_id is required")
		return nil, false
	}
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return nil, false
	}
	return d, true
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case service.IsNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, loader.ErrInvalidDocument),
		errors.Is(err, deal.ErrInvalidDeal),
		errors.Is(err, mortgage.ErrInvalidFinancing),
		errors.Is(err, mortgage.ErrInvalidTrack),
		errors.Is(err, mortgage.ErrRegulation),
		errors.Is(err, mortgage.ErrAllocationExceeded):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to write JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, APIResponse{
		Success: false,
		Error:   msg,
	})
}
