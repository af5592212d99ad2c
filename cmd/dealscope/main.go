// dealscope: Israeli multi-track mortgage and rental deal analysis.
//
// Main CLI entrypoint using cobra command framework.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/seenimoa/dealscope/api"
	"github.com/seenimoa/dealscope/internal/config"
	"github.com/seenimoa/dealscope/internal/deal"
	"github.com/seenimoa/dealscope/internal/loader"
	"github.com/seenimoa/dealscope/internal/service"
)

// Build-time variables (set via -ldflags).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Global config
var cfg *config.Config

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "dealscope",
	Short: "dealscope: multi-track mortgage and rental deal analysis",
	Long: `dealscope sizes Israeli multi-track mortgages (prime, fixed, CPI-linked
and variable tracks), projects rental deals year by year and scores them
with cash-flow and return metrics, scenarios, sensitivity and stress tests.

A deal is named either by a JSON/YAML file path or by the ID of a deal
saved with "dealscope deals save".`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// A .env next to the working directory is optional.
		_ = godotenv.Load()

		var err error
		configFile, _ := cmd.Flags().GetString("config")
		if configFile != "" {
			cfg, err = config.LoadFromFile(configFile)
		} else {
			cfg, err = config.Load()
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
			cfg.Logging.Level = lvl
		}
		config.NewLogger(cfg.Logging, os.Stderr)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file path (default: ./config/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level override (debug, info, warn, error)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(amortizationCmd)
	rootCmd.AddCommand(proformaCmd)
	rootCmd.AddCommand(scenariosCmd)
	rootCmd.AddCommand(sensitivityCmd)
	rootCmd.AddCommand(stressCmd)
	rootCmd.AddCommand(dealsCmd)
	rootCmd.AddCommand(batchCmd)
	rootCmd.AddCommand(serveCmd)
}

// --- Version Command ---

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("dealscope %s\n", version)
		fmt.Printf("  commit:  %s\n", commit)
		fmt.Printf("  built:   %s\n", date)
	},
}

// --- Status Command ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show configuration and storage status",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println("═══════════════════════════════════════")
		fmt.Println("  dealscope: System Status")
		fmt.Println("═══════════════════════════════════════")
		fmt.Printf("  Version:       %s (%s)\n", version, commit)
		file := cfg.File
		if file == "" {
			file = "(defaults, no config file found)"
		}
		fmt.Printf("  Config file:   %s\n", file)
		fmt.Println()

		a := cfg.Analysis
		fmt.Println("  Analysis:")
		fmt.Printf("    Profile:        %s\n", a.Profile)
		fmt.Printf("    Holding period: %d years\n", a.HoldingPeriod)
		fmt.Printf("    Discount rate:  %.2f%%\n", a.DiscountRate*100)
		fmt.Printf("    Concurrency:    %d\n", a.Concurrency)
		fmt.Printf("    Cache TTL:      %ds\n", a.CacheTTL)
		fmt.Println()

		fmt.Println("  Storage:")
		fmt.Printf("    Backend:        %s\n", cfg.Storage.Backend)
		if cfg.Storage.Backend != "memory" {
			fmt.Printf("    Directory:      %s\n", cfg.Storage.Dir)
		}
		if svc, err := newService(); err == nil {
			if entries, err := svc.List(); err == nil {
				fmt.Printf("    Saved deals:    %d\n", len(entries))
			}
		}
		fmt.Printf("  API Server:       %s\n", cfg.API.Addr())
		fmt.Println()

		fmt.Println("  Secrets:")
		for _, k := range config.CheckSecrets(cfg) {
			status := "❌ not set"
			if k.IsSet {
				status = fmt.Sprintf("✅ set (%s: %s)", k.Source, k.Masked)
			}
			fmt.Printf("    %-25s %s\n", k.Name+":", status)
		}

		if err := cfg.Validate(); err != nil {
			fmt.Println()
			fmt.Printf("  ⚠️  %v\n", err)
		}
		fmt.Println("═══════════════════════════════════════")
		return nil
	},
}

// --- Serve Command (API Server) ---

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate(); err != nil {
			return err
		}
		if port, _ := cmd.Flags().GetInt("port"); port > 0 {
			cfg.API.Port = port
		}
		svc, err := newService()
		if err != nil {
			return err
		}

		api.Version = version
		srv := api.NewServer(cfg, svc)
		if noUI, _ := cmd.Flags().GetBool("no-ui"); noUI {
			srv.SetServeUI(false)
		}
		fmt.Printf("🌐 Starting dealscope API server on %s\n", cfg.API.Addr())
		slog.Info("api server starting", "addr", cfg.API.Addr(), "storage", cfg.Storage.Backend)
		return srv.ListenAndServe(cfg.API.Addr())
	},
}

func init() {
	serveCmd.Flags().Int("port", 0, "listen port (overrides api.port)")
	serveCmd.Flags().Bool("no-ui", false, "do not serve the embedded dashboard")
}

// ════════════════════════════════════════════════════════════════════
// Shared helpers
// ════════════════════════════════════════════════════════════════════

func newService() (*service.Service, error) {
	repo, err := service.OpenRepository(cfg.Storage)
	if err != nil {
		return nil, err
	}
	return service.New(repo, cfg.Analysis), nil
}

// resolveDeal loads ref as a deal file when it exists on disk, otherwise
// as the ID of a saved deal.
func resolveDeal(svc *service.Service, ref string) (*deal.Deal, error) {
	if _, err := os.Stat(ref); err == nil {
		return loader.Load(ref)
	}
	d, err := svc.Load(ref)
	if service.IsNotFound(err) {
		return nil, fmt.Errorf("%q is neither a deal file nor a saved deal ID", ref)
	}
	return d, err
}

// overridesFromFlags reads the analysis flags shared by several commands.
func overridesFromFlags(cmd *cobra.Command) service.Overrides {
	var o service.Overrides
	o.Profile, _ = cmd.Flags().GetString("profile")
	o.HoldingPeriod, _ = cmd.Flags().GetInt("years")
	if cmd.Flags().Changed("discount-rate") {
		rate, _ := cmd.Flags().GetFloat64("discount-rate")
		o.DiscountRate = &rate
	}
	return o
}

func addAnalysisFlags(cmd *cobra.Command) {
	cmd.Flags().String("profile", "", "investor profile: cash_flow, balanced, appreciation")
	cmd.Flags().Int("years", 0, "holding period in years (default: deal or config)")
	cmd.Flags().Float64("discount-rate", 0, "NPV discount rate as a ratio, e.g. 0.08")
}

// output returns the writer for --out, falling back to fallback and then
// to stdout.
func output(cmd *cobra.Command, fallback string) (io.Writer, func() error, error) {
	path, _ := cmd.Flags().GetString("out")
	if path == "" {
		path = fallback
	}
	if path == "" || path == "-" {
		return os.Stdout, func() error { return nil }, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, err
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, err
	}
	return f, f.Close, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
