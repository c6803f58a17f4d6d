package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/strategy-pipeline/internal/analysislog"
	"github.com/sells-group/strategy-pipeline/internal/apperr"
	"github.com/sells-group/strategy-pipeline/internal/config"
	"github.com/sells-group/strategy-pipeline/internal/cost"
	"github.com/sells-group/strategy-pipeline/internal/model"
	"github.com/sells-group/strategy-pipeline/internal/pipeline"
	"github.com/sells-group/strategy-pipeline/internal/sources"
)

var servePort int

// analysisSemSize limits concurrent in-flight pipeline runs, mirroring
// the original implementation's webhook concurrency cap.
const analysisSemSize = 20

// buildMux constructs the HTTP handler for the analysis server. It
// returns the router and a drain function that waits for in-flight
// analyses to finish; the caller should invoke drain after the server
// has stopped accepting new requests.
func buildMux(e *env) (http.Handler, func()) {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST"},
	}))

	sem := make(chan struct{}, min(analysisSemSize, e.cfg.Pipeline.MaxConcurrentAnalyses))
	var wg sync.WaitGroup

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := e.store.Ping(req.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "unhealthy", "error": err.Error()})
			return
		}
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})

	r.Handle("/metrics", promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{}))

	r.Post("/analyse", func(w http.ResponseWriter, req *http.Request) {
		var sub model.Submission
		if err := json.NewDecoder(req.Body).Decode(&sub); err != nil {
			http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
			return
		}
		if err := submissionValidator.Struct(sub); err != nil {
			http.Error(w, fmt.Sprintf(`{"error":%q}`, err.Error()), http.StatusBadRequest)
			return
		}

		select {
		case sem <- struct{}{}:
		default:
			http.Error(w, `{"error":"too many concurrent requests"}`, http.StatusServiceUnavailable)
			return
		}

		runID := uuid.New().String()

		wg.Add(1)
		go runAnalysis(e, sub, runID, sem, &wg)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(map[string]any{"status": "accepted", "submission_id": sub.ID, "run_id": runID})
	})

	drain := func() { wg.Wait() }
	return r, drain
}

// runAnalysis runs one pipeline analysis in the background with a fresh,
// detached context so an in-flight run outlives the request that started
// it. Results currently land in the store's warm cache (institutional
// memory) and the structured logs; delivering them to a caller-specified
// webhook is future work, not yet wired to a concrete provider in the
// corpus.
func runAnalysis(e *env, sub model.Submission, runID string, sem chan struct{}, wg *sync.WaitGroup) {
	defer func() { <-sem }()
	defer wg.Done()
	defer func() {
		if r := recover(); r != nil {
			zap.L().Error("analysis panicked", zap.String("run_id", runID), zap.String("company", sub.Company), zap.Any("panic", r), zap.Stack("stack"))
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), analysisTimeoutOrDefault(e.cfg))
	defer cancel()

	deps := pipeline.Deps{
		StageDeps: pipeline.StageDeps{
			LLM:      e.llmClient,
			Research: researchClient(e.cfg.Research),
			Calc:     e.calc,
			Tracker:  cost.NewTracker(),
			Log:      analysislog.New(sub.ID, sub.Company),
			Models:   e.cfg.Models,
		},
		Store:           e.store,
		MultiTier:       e.multiTier,
		StageCache:      e.stageCache,
		Sources:         e.sourceReg,
		SourceBudget:    sources.TierPremium,
		AnalysisTimeout: analysisTimeout(e.cfg),
	}

	report, err := pipeline.Analyse(ctx, deps, sub, true)
	if err != nil {
		var fatal *apperr.FatalPipelineError
		if errors.As(err, &fatal) {
			zap.L().Error("analysis failed fatally", zap.String("run_id", runID), zap.String("company", sub.Company), zap.String("failed_stage", fatal.FailedStage), zap.Error(err))
			return
		}
		zap.L().Error("analysis failed", zap.String("run_id", runID), zap.String("company", sub.Company), zap.Error(err))
		return
	}

	zap.L().Info("analysis complete",
		zap.String("run_id", runID),
		zap.String("company", sub.Company),
		zap.String("quality_tier", report.Metadata.QualityTier),
		zap.Float64("cost_usd", report.Metadata.TotalCostActualUSD),
	)
}

func analysisTimeoutOrDefault(cfg *config.Config) time.Duration {
	if d := analysisTimeout(cfg); d > 0 {
		return d
	}
	return 5 * time.Minute
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server accepting analysis requests",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		e, err := buildEnv(ctx, cfg)
		if err != nil {
			return eris.Wrap(err, "serve: build environment")
		}
		defer e.Close()

		mux, drain := buildMux(e)
		port := resolvePort(servePort, cfg.Server.Port)
		srvErr := startServer(ctx, mux, port)
		drain()
		return srvErr
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// startServer creates and runs the HTTP server with graceful shutdown.
func startServer(ctx context.Context, handler http.Handler, port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		<-ctx.Done()
		zap.L().Info("shutting down server")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer shutdownCancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	zap.L().Info("starting server", zap.Int("port", port))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return eris.Wrap(err, "server listen")
	}

	return nil
}

// resolvePort returns the port flag value if non-zero, otherwise the config default.
func resolvePort(flagPort, configPort int) int {
	if flagPort != 0 {
		return flagPort
	}
	return configPort
}
