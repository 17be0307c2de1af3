package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	stdlog "log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/spf13/cobra"
	"github.com/username/poolcosts/backend/src/config"
	"github.com/username/poolcosts/backend/src/database"
	"github.com/username/poolcosts/backend/src/extraction"
	"github.com/username/poolcosts/backend/src/handlers"
	"github.com/username/poolcosts/backend/src/logger"
	"github.com/username/poolcosts/backend/src/models"
	"github.com/username/poolcosts/backend/src/paperless"
	"github.com/username/poolcosts/backend/src/scheduler"
	"github.com/username/poolcosts/backend/src/security/validation"
	"github.com/username/poolcosts/backend/src/services"
	"golang.org/x/time/rate"
)

const shutdownTimeout = 30 * time.Second

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "poolcosts",
		Short:         "Pool running costs from Paperless invoices",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API and the sync scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "sync",
		Short: "Run one Paperless sync and print the counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(cmd.Context(), cmd.OutOrStdout())
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := loadSettings(os.Stderr); err != nil {
				return err
			}
			db, err := database.Open(config.Cfg.DatabasePath)
			if err != nil {
				return err
			}
			defer db.Close()
			return database.Migrate(db)
		},
	})

	cmd.AddCommand(extractCmd())
	return cmd
}

func extractCmd() *cobra.Command {
	var correspondent, policyPath string
	var withCandidates bool

	cmd := &cobra.Command{
		Use:   "extract [file]",
		Short: "Extract amount and vendor from OCR text (stdin when no file is given)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger.InitLoggerTo(os.Stderr, os.Getenv("LOG_LEVEL"))

			in := cmd.InOrStdin()
			if len(args) == 1 {
				f, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("open %s: %w", args[0], err)
				}
				defer f.Close()
				in = f
			}
			text, err := validation.ReadTextUpload(in, 10*1024*1024)
			if err != nil {
				return err
			}

			extractor, err := newExtractor(policyPath)
			if err != nil {
				return err
			}
			res := extractor.Extract(text, strings.TrimSpace(correspondent))
			out := models.NewExtractResponse(res)
			if withCandidates {
				for _, c := range extractor.Candidates(text) {
					out.Candidates = append(out.Candidates, models.NewCandidateOut(c))
				}
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
	cmd.Flags().StringVar(&correspondent, "correspondent", "", "Trusted vendor name from document metadata")
	cmd.Flags().StringVar(&policyPath, "policy", "", "YAML scoring policy overriding the built-in keywords and weights")
	cmd.Flags().BoolVar(&withCandidates, "candidates", false, "Also print every ranked amount candidate, not just the top five in the trace")
	return cmd
}

// loadSettings loads and validates the configuration, then initialises the logger.
// CLI commands log to stderr so their stdout stays machine readable.
func loadSettings(logTo io.Writer) error {
	config.LoadConfig()
	if logTo == nil {
		logger.InitLogger(config.Cfg.LogLevel)
	} else {
		logger.InitLoggerTo(logTo, config.Cfg.LogLevel)
	}
	if err := config.Cfg.Validate(); err != nil {
		return err
	}
	return nil
}

func newExtractor(policyPath string) (*extraction.Extractor, error) {
	if policyPath == "" {
		return extraction.NewDefault(), nil
	}
	policy, err := extraction.LoadPolicy(policyPath)
	if err != nil {
		return nil, err
	}
	extractor, err := extraction.New(policy)
	if err != nil {
		return nil, err
	}
	logger.L.Info("Extraction policy loaded", "path", policyPath, "keywords", len(extractor.Policy().Keywords))
	return extractor, nil
}

type app struct {
	extractor *extraction.Extractor
	sync      services.SyncService
	invoices  services.InvoiceService
	costs     services.CostService
	export    services.ExportService
}

func newApp(db *sql.DB) (*app, error) {
	extractor, err := newExtractor(config.Cfg.ExtractionPolicyPath)
	if err != nil {
		return nil, err
	}
	validator, err := extraction.NewTraceValidator()
	if err != nil {
		return nil, err
	}
	client, err := paperless.NewClient(paperless.Config{
		BaseURL: config.Cfg.PaperlessBaseURL,
		Token:   config.Cfg.PaperlessToken,
		Timeout: config.Cfg.PaperlessTimeout,
		RPS:     config.Cfg.PaperlessRPS,
	})
	if err != nil {
		return nil, err
	}

	summaryCache := cache.New(config.Cfg.SummaryCacheTTL, services.CacheCleanupInterval)
	costService := services.NewCostService(db, summaryCache)

	return &app{
		extractor: extractor,
		sync: services.NewSyncService(db, client, extractor, validator, costService, services.SyncOptions{
			PoolTagName:  config.Cfg.PoolTagName,
			PageSize:     config.Cfg.SyncPageSize,
			LookbackDays: config.Cfg.SyncLookbackDays,
			Workers:      config.Cfg.SyncWorkers,
		}),
		invoices: services.NewInvoiceService(db, extractor, costService),
		costs:    costService,
		export:   services.NewExportService(costService),
	}, nil
}

func runSync(ctx context.Context, out io.Writer) error {
	if err := loadSettings(os.Stderr); err != nil {
		return err
	}
	db, err := database.Open(config.Cfg.DatabasePath)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := database.Migrate(db); err != nil {
		return err
	}

	a, err := newApp(db)
	if err != nil {
		return err
	}
	if ctx == nil {
		ctx = context.Background()
	}
	result, err := a.sync.Run(ctx)
	if err != nil {
		return err
	}
	return printJSON(out, result)
}

func runServe() error {
	if err := loadSettings(nil); err != nil {
		return err
	}
	logger.L.Info("poolcosts backend server starting...")

	logger.L.Info("Initializing database...", "path", config.Cfg.DatabasePath)
	database.InitDB(config.Cfg.DatabasePath)
	database.RunMigrations()
	defer database.DB.Close()

	a, err := newApp(database.DB)
	if err != nil {
		return err
	}

	sched := scheduler.New(scheduler.Options{
		Enabled:      config.Cfg.SchedulerEnabled,
		Interval:     config.Cfg.SchedulerInterval(),
		RunOnStartup: config.Cfg.SchedulerRunOnStartup,
	}, func(ctx context.Context) error {
		_, err := a.sync.Run(ctx)
		if errors.Is(err, services.ErrSyncInProgress) {
			logger.L.Info("Scheduled sync skipped, a manual run is in progress")
			return nil
		}
		return err
	})
	sched.Start()

	router := handlers.NewRouter(handlers.API{
		Extract:  handlers.NewExtractHandler(a.extractor, config.Cfg.MaxUploadSizeBytes),
		Sync:     handlers.NewSyncHandler(a.sync),
		Invoices: handlers.NewInvoiceHandler(a.invoices),
		Costs:    handlers.NewCostHandler(a.costs, a.export),
	}, handlers.RouterOptions{
		AllowedOrigins: config.Cfg.CORSAllowedOrigins,
		Limiter:        rate.NewLimiter(rate.Every(100*time.Millisecond), 30),
	})

	serverAddr := ":" + config.Cfg.Port
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute, // a sync triggered over HTTP can take a while
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.L.Info("Server starting", "address", serverAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			stdlog.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	logger.L.Info("Shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.L.Error("HTTP server shutdown failed", "error", err)
	}
	if err := sched.Stop(shutdownCtx); err != nil {
		logger.L.Error("Scheduler shutdown failed", "error", err)
	}
	logger.L.Info("Server stopped")
	return nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
