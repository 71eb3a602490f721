package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/baibhavbaidya/researchmind-backend/internal/ai"
	"github.com/baibhavbaidya/researchmind-backend/internal/auth"
	"github.com/baibhavbaidya/researchmind-backend/internal/chunker"
	"github.com/baibhavbaidya/researchmind-backend/internal/config"
	"github.com/baibhavbaidya/researchmind-backend/internal/history"
	"github.com/baibhavbaidya/researchmind-backend/internal/index"
	"github.com/baibhavbaidya/researchmind-backend/internal/logger"
	"github.com/baibhavbaidya/researchmind-backend/internal/pipeline"
	"github.com/baibhavbaidya/researchmind-backend/internal/progress"
	"github.com/baibhavbaidya/researchmind-backend/internal/queue"
	"github.com/baibhavbaidya/researchmind-backend/internal/registry"
	"github.com/baibhavbaidya/researchmind-backend/internal/retriever"
	"github.com/baibhavbaidya/researchmind-backend/internal/scheduler"
	"github.com/baibhavbaidya/researchmind-backend/internal/telemetry"
	"github.com/baibhavbaidya/researchmind-backend/internal/websearch"
	"github.com/baibhavbaidya/researchmind-backend/middleware"
	"github.com/baibhavbaidya/researchmind-backend/routes"
	"github.com/baibhavbaidya/researchmind-backend/services"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

const serviceName = "researchmind-backend"

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}
	logger.InitLogger(cfg)

	shutdownTracer, err := telemetry.InitTracer(context.Background(), serviceName, cfg.OTelExporterEndpoint, cfg.GinMode)
	if err != nil {
		logger.Warn("Tracing disabled", "error", err)
		shutdownTracer = func(context.Context) {}
	}
	metrics, err := telemetry.InitMetrics()
	if err != nil {
		log.Fatal("Failed to initialize metrics:", err)
	}

	// Connect to MongoDB
	mongoClient, err := config.ConnectMongoDB(cfg)
	if err != nil {
		log.Fatal("Failed to connect to MongoDB:", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		mongoClient.Disconnect(ctx)
	}()
	db := mongoClient.Database(cfg.DBName)
	indexCtx, cancelIndex := context.WithTimeout(context.Background(), 30*time.Second)
	if err := config.EnsureIndexes(indexCtx, db); err != nil {
		logger.Warn("Failed to ensure MongoDB indexes", "error", err)
	}
	cancelIndex()

	// Redis backs token revocation, rate limiting, the search cache and the
	// upload queue. Without it those degrade instead of stopping startup.
	rdb, err := config.NewRedisClient(cfg)
	if err != nil {
		logger.Warn("Redis unavailable, running without cache, rate limiting and async uploads", "error", err)
	} else {
		defer rdb.Close()
	}

	var revocations auth.RevocationStore
	if rdb != nil {
		revocations = rdb
	}
	verifier, err := auth.NewTokenVerifier(cfg.AccessSecret, revocations)
	if err != nil {
		log.Fatal("Failed to initialize token verifier:", err)
	}

	// Initialize Gemini client
	geminiClient, err := ai.NewGeminiClient(cfg.GeminiAPIKey, cfg.GeminiModel, cfg.GeminiTier)
	if err != nil {
		log.Fatal("Failed to initialize Gemini client:", err)
	}
	defer geminiClient.Close()

	embedder, err := ai.NewEmbedder(context.Background(), cfg)
	if err != nil {
		log.Fatal("Failed to initialize embedder:", err)
	}
	defer embedder.Close()

	web := websearch.NewFallback()
	if cfg.TavilyAPIKey != "" {
		web.Add("tavily", websearch.NewTavily(cfg.TavilyAPIKey, cfg.TavilyURL, cfg.WebSearchTimeout))
	}
	web.Add("duckduckgo", websearch.NewDuckDuckGo(cfg.DuckDuckGoURL, cfg.WebSearchTimeout))
	var searcher websearch.Searcher = web
	if rdb != nil && cfg.WebSearchCacheTTL > 0 {
		searcher = websearch.NewCached(web, rdb, cfg.WebSearchCacheTTL)
	}

	reg := registry.New(registry.Options{
		MaxDocuments: cfg.MaxDocumentsPerUser,
		OnEvict: func(userID string, docs []index.DocumentInfo) {
			logger.Info("Evicted idle index", "user_id", userID, "documents", len(docs))
		},
	})

	r := retriever.New(reg, embedder, searcher, retriever.Config{
		TopK:          cfg.RetrievalTopK,
		WebMaxResults: cfg.WebSearchMaxResults,
		WebTimeout:    cfg.WebSearchTimeout,
		Weights:       retriever.Weights{Vector: cfg.FusionVectorWeight, Lexical: cfg.FusionLexicalWeight},
	})
	pipe := pipeline.New(r, geminiClient, pipeline.Config{
		MaxSources:     cfg.PipelineMaxSources,
		Concurrency:    cfg.SummarizeConcurrency,
		ClaimThreshold: cfg.ClaimAgreementThreshold,
		Observer:       metrics,
	})

	deps := services.Deps{
		Pipeline:  pipe,
		Generator: geminiClient,
		Hub:       progress.NewHub(),
		Registry:  reg,
		Chunker: chunker.New(embedder, chunker.Config{
			MaxBytes:     cfg.MaxFileSize,
			Words:        cfg.ChunkWords,
			OverlapWords: cfg.ChunkOverlapWords,
		}),
		Store:   history.NewStore(db),
		Files:   services.NewFileStorage(cfg.FileStorageDir),
		Revoker: verifier,
		Metrics: metrics,
	}

	var (
		dispatcher  *queue.Dispatcher
		redisOpt    asynq.RedisClientOpt
		asyncUpload = cfg.AsyncUploadEnabled && rdb != nil
	)
	if asyncUpload {
		redisOpt = asynqOptions(rdb.Options())
		dispatcher = queue.NewDispatcher(redisOpt, queue.NewRedisJobStore(rdb))
		defer dispatcher.Close()
		deps.Queue = dispatcher
	}

	svc := services.NewResearchService(deps, services.Options{
		PipelineTimeout: cfg.PipelineTimeout,
		MaxFileSize:     cfg.MaxFileSize,
		MaxDocuments:    cfg.MaxDocumentsPerUser,
		IndexIdleTTL:    cfg.IndexIdleTTL,
	})

	// The worker fills the in-memory registry, so it runs in this process.
	var worker *asynq.Server
	if asyncUpload {
		processor := queue.NewTaskProcessor(svc, queue.NewRedisJobStore(rdb))
		var mux *asynq.ServeMux
		worker, mux = queue.NewWorker(redisOpt, cfg.SummarizeConcurrency, processor)
		if err := worker.Start(mux); err != nil {
			log.Fatal("Failed to start upload worker:", err)
		}
		logger.Info("Upload worker started")
	}

	sched := scheduler.New()
	if err := svc.ScheduleMaintenance(sched, cfg.IndexSweepInterval); err != nil {
		log.Fatal("Failed to schedule maintenance:", err)
	}
	sched.Start()

	// Initialize Gin router
	if cfg.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.TracingMiddleware(serviceName))
	router.Use(middleware.EnrichTrace())
	router.Use(middleware.MetricsMiddleware(metrics))
	router.Use(middleware.CORSMiddlewareWithOrigins(cfg.CORSOrigins))

	limits := routes.Limits{
		MaxFileSize:     cfg.MaxFileSize,
		RateLimitReqs:   cfg.RateLimitReqs,
		RateLimitWindow: time.Duration(cfg.RateLimitWindow) * time.Second,
	}
	if rdb != nil {
		limits.Limiter = rdb
	}
	routes.SetupRouter(router, svc, middleware.NewAuthMiddleware(verifier), limits)

	// Create HTTP server
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("Server starting", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}

	sched.Stop()
	if worker != nil {
		worker.Shutdown()
	}
	svc.Wait()
	shutdownTracer(ctx)

	logger.Info("Server exited")
}

func asynqOptions(opt *redis.Options) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Network:   opt.Network,
		Addr:      opt.Addr,
		Username:  opt.Username,
		Password:  opt.Password,
		DB:        opt.DB,
		TLSConfig: opt.TLSConfig,
	}
}
