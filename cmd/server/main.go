package main

import (
	"context"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"

	"meridian/internal/auth"
	"meridian/internal/config"
	"meridian/internal/handler"
	"meridian/internal/middleware"
	"meridian/internal/repository/postgres"
	"meridian/internal/service/admin"
	"meridian/internal/service/content"
	"meridian/internal/service/content/sourcematerial"
	"meridian/internal/service/content/steps"
	"meridian/internal/service/flow"
	"meridian/internal/service/job"
	"meridian/internal/service/llm"
	"meridian/internal/service/llm/providers/anthropic"
	"meridian/internal/service/llm/providers/lorem"
	"meridian/internal/service/llm/providers/openai"
	"meridian/internal/service/llm/pricing"
	"meridian/internal/service/objectstore"

	domainllm "meridian/internal/domain/services/llm"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()

	logLevel := slog.LevelInfo
	if cfg.Environment == "dev" {
		logLevel = slog.LevelDebug
	}
	logWriter := io.Writer(os.Stdout)
	if cfg.LogDir != "" {
		logFile, lfErr := config.SetupLogFile(cfg.LogDir, cfg.LogMaxFiles)
		if lfErr != nil {
			log.Fatalf("failed to set up log file: %v", lfErr)
		}
		defer logFile.Close()
		logWriter = io.MultiWriter(os.Stdout, logFile)
	}
	logger := slog.New(slog.NewJSONHandler(logWriter, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	logger.Info("server starting", "environment", cfg.Environment, "port", cfg.Port, "table_prefix", cfg.TablePrefix)

	ctx := context.Background()
	pool, err := postgres.CreateConnectionPool(ctx, cfg.SupabaseDBURL)
	if err != nil {
		log.Fatalf("failed to create connection pool: %v", err)
	}
	defer pool.Close()

	tables := postgres.NewTableNames(cfg.TablePrefix)
	repoConfig := &postgres.RepositoryConfig{Pool: pool, Tables: tables, Logger: logger}

	flowRuns := postgres.NewFlowRunRepository(repoConfig)
	flowSteps := postgres.NewFlowStepRunRepository(repoConfig)
	llmRequests := postgres.NewLLMRequestRepository(repoConfig)
	units := postgres.NewUnitRepository(repoConfig)
	lessons := postgres.NewLessonRepository(repoConfig)

	providers, err := buildProviders(cfg, logger)
	if err != nil {
		log.Fatalf("failed to build LLM providers: %v", err)
	}

	prices, err := pricing.NewRegistry()
	if err != nil {
		log.Fatalf("failed to load pricing registry: %v", err)
	}

	retryCfg := llm.DefaultRetryConfig()
	retryCfg.MaxRetries = cfg.LLMMaxRetries
	retryer := llm.NewRetryer(retryCfg)
	cache := llm.NewCache()
	gateway := llm.NewGateway(providers, llmRequests, prices, cache, cfg.LLMCacheEnabled, retryer, logger)

	objects, err := objectstore.NewDiskStore(cfg.ObjectStoreBucket)
	if err != nil {
		log.Fatalf("failed to open object store: %v", err)
	}

	stepRuntime := flow.NewStepRuntime(flowSteps, logger)
	flowRuntime := flow.NewFlowRuntime(flowRuns, flowSteps, llmRequests, stepRuntime, logger)

	base := steps.Base{Gateway: gateway, DefaultModel: cfg.DefaultModel, FastTextModel: cfg.FastTextModel}

	unitFlow := &content.UnitCreationFlow{
		GenerateSourceMaterial: steps.NewGenerateSourceMaterial(base),
		ExtractUnitMetadata:    steps.NewExtractUnitMetadata(base),
		GenerateUnitSummary:    steps.NewGenerateUnitSummary(base),
	}
	lessonFlow := &content.LessonCreationFlow{
		ExtractLessonMetadata:     steps.NewExtractLessonMetadata(base),
		GenerateMisconceptionBank: steps.NewGenerateMisconceptionBank(base),
		GenerateDidacticSnippet:   steps.NewGenerateDidacticSnippet(base),
		GenerateGlossary:          steps.NewGenerateGlossary(base),
		GenerateMCQs:              steps.NewGenerateMCQs(base),
		GenerateShortAnswers:      steps.NewGenerateShortAnswers(base),
		FastLessonMetadata:        steps.NewFastLessonMetadata(base),
	}
	unitArtFlow := &content.UnitArtCreationFlow{
		GenerateUnitArtDescription: steps.NewGenerateUnitArtDescription(base),
		GenerateImage:              steps.NewGenerateImage(base),
		Objects:                    objects,
	}
	unitPodcastFlow := &content.UnitPodcastFlow{
		GeneratePodcastTranscript: steps.NewGeneratePodcastTranscript(base),
		GenerateAudio:             steps.NewGenerateAudio(base),
		Objects:                   objects,
	}
	lessonPodcastFlow := &content.LessonPodcastFlow{
		GeneratePodcastTranscript: steps.NewGeneratePodcastTranscript(base),
		GenerateAudio:             steps.NewGenerateAudio(base),
		Objects:                   objects,
	}

	orchestrator := &content.Orchestrator{
		Runtime:              flowRuntime,
		Units:                units,
		Lessons:              lessons,
		Normalizer:           sourcematerial.NewNormalizer(),
		UnitFlow:             unitFlow,
		LessonFlow:           lessonFlow,
		UnitArt:              unitArtFlow,
		UnitPodcast:          unitPodcastFlow,
		LessonPodcast:        lessonPodcastFlow,
		MaxFanOutConcurrency: cfg.MaxFanOutConcurrency,
		Logger:               logger,
	}

	jobService := &job.Service{
		Orchestrator: orchestrator,
		Units:        units,
		Lessons:      lessons,
		Runtime:      flowRuntime,
		Logger:       logger,
	}
	reconciler := &job.Reconciler{
		Runs:                 flowRuns,
		Units:                units,
		Runtime:              flowRuntime,
		StallTimeoutSeconds:  cfg.StallTimeoutSeconds,
		ReconcileIntervalSec: cfg.ReconcileIntervalSec,
		Logger:               logger,
	}
	reconcilerCtx, cancelReconciler := context.WithCancel(ctx)
	defer cancelReconciler()
	go reconciler.Run(reconcilerCtx)

	readModel := &admin.ReadModel{Runs: flowRuns, Steps: flowSteps, Requests: llmRequests}

	unitHandler := handler.NewUnitHandler(jobService, logger)
	adminHandler := handler.NewAdminHandler(readModel, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})
	mux.HandleFunc("POST /api/v1/units", unitHandler.CreateUnit)
	mux.HandleFunc("GET /api/v1/units/{unit_id}", unitHandler.GetUnit)
	mux.HandleFunc("POST /api/v1/units/{unit_id}/cancel", unitHandler.CancelUnit)
	mux.HandleFunc("GET /api/v1/units/{unit_id}/lessons/{lesson_id}", unitHandler.GetLesson)
	mux.HandleFunc("GET /api/v1/admin/flows", adminHandler.ListFlows)
	mux.HandleFunc("GET /api/v1/admin/flows/{flow_run_id}", adminHandler.GetFlow)
	mux.HandleFunc("GET /api/v1/admin/flows/{flow_run_id}/steps/{step_run_id}", adminHandler.GetStep)
	mux.HandleFunc("GET /api/v1/admin/llm-requests/{request_id}", adminHandler.GetLLMRequest)

	var handlerChain http.Handler = mux
	if cfg.SupabaseJWKSURL != "" && cfg.Environment != "dev" {
		verifier, vErr := auth.NewJWTVerifier(cfg.SupabaseJWKSURL, logger)
		if vErr != nil {
			log.Fatalf("failed to create JWT verifier: %v", vErr)
		}
		defer verifier.Close()
		handlerChain = middleware.Auth(verifier)(handlerChain)
	}
	handlerChain = middleware.Recovery(logger)(handlerChain)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handlerChain,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("server listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server failed: %v", err)
	}
}

// buildProviders wires every LLM provider with credentials configured in
// the environment, falling back to the deterministic lorem provider so the
// Gateway always has at least one provider to route to (spec.md §9
// "Provider substitutability").
func buildProviders(cfg *config.Config, logger *slog.Logger) ([]domainllm.Provider, error) {
	var out []domainllm.Provider

	if cfg.AnthropicAPIKey != "" {
		p, err := anthropic.NewProvider(cfg.AnthropicAPIKey)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
		logger.Info("provider configured", "name", "anthropic")
	}
	if cfg.OpenAIAPIKey != "" {
		p, err := openai.NewProvider(cfg.OpenAIAPIKey)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
		logger.Info("provider configured", "name", "openai")
	}

	out = append(out, lorem.NewProvider())
	logger.Info("provider configured", "name", "lorem")

	return out, nil
}
