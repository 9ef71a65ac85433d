package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"dealerwatch/internal/blob"
	"dealerwatch/internal/config"
	cronrunner "dealerwatch/internal/cron"
	"dealerwatch/internal/db"
	"dealerwatch/internal/fetch"
	"dealerwatch/internal/handler"
	"dealerwatch/internal/logger"
	gormrepository "dealerwatch/internal/repository/gorm"
	"dealerwatch/internal/service"

	_ "dealerwatch/docs"
)

func main() {
	cfgPath := os.Getenv("DW_CONFIG")
	if cfgPath == "" {
		cfgPath = "config/config.yaml"
	}

	envOnly := false
	if envOnlyRaw := os.Getenv("DW_ENV_ONLY"); envOnlyRaw != "" {
		envOnly = strings.EqualFold(envOnlyRaw, "true") || envOnlyRaw == "1"
	}

	cfg, err := config.Load(cfgPath, envOnly)
	if err != nil {
		panic(err)
	}

	logger, err := logger.New(cfg.Log)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	dbConn, err := db.Open(cfg.DB)
	if err != nil {
		logger.Fatal("db open failed", zap.Error(err))
	}
	defer db.Close(dbConn)

	if err := db.SetTimezone(dbConn, cfg.DB.Timezone); err != nil {
		logger.Warn("failed to set timezone", zap.Error(err))
	}
	if err := db.AutoMigrate(dbConn); err != nil {
		logger.Fatal("auto-migrate failed", zap.Error(err))
	}

	store := gormrepository.New(dbConn.Gorm)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	blobStore, err := initBlobStore(ctx, cfg.Blob, logger)
	if err != nil {
		logger.Fatal("blob store init failed", zap.Error(err))
	}

	registry := &service.DealerRegistryService{Store: store, Logger: logger}
	if err := registry.ValidateAll(ctx); err != nil {
		logger.Fatal("dealer template validation failed", zap.Error(err))
	}

	writer := &service.ObservationWriterService{Store: store, Logger: logger}
	reconciler := service.NewReconciler(store, logger)
	soldScan := service.NewSoldScan(store, logger)
	if cfg.SoldScan.AbsentCycles > 0 {
		soldScan.AbsentCycles = cfg.SoldScan.AbsentCycles
	}
	if cfg.SoldScan.TransferWindowDays > 0 {
		soldScan.TransferWindow = time.Duration(cfg.SoldScan.TransferWindowDays) * 24 * time.Hour
	}

	fetchHTTP := &http.Client{Timeout: cfg.Fetch.Timeout}
	fetchClient := fetch.NewClient(fetchHTTP, cfg.Fetch.BaseURL, cfg.Fetch.APIKey)

	orchestrator := &service.ScrapeOrchestratorService{
		Store:          store,
		Fetcher:        fetchClient,
		Blobs:          blobStore,
		Writer:         writer,
		Reconciler:     reconciler,
		SoldScan:       soldScan,
		Logger:         logger,
		MaxConcurrency: cfg.Scrape.MaxConcurrency,
		RPMLimit:       cfg.Scrape.RPMLimit,
		MaxAttempts:    cfg.Scrape.MaxAttempts,
		BackoffBase:    cfg.Fetch.BackoffBase,
		TaskTimeout:    cfg.Scrape.TaskTimeout,
	}
	uploadIngest := &service.UploadIngestService{
		Store:      store,
		Writer:     writer,
		Reconciler: reconciler,
		Logger:     logger,
	}
	queryService := &service.InventoryQueryService{Store: store}

	if strings.EqualFold(cfg.App.Env, "dev") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(corsMiddleware())

	healthHandler := &handler.HealthHandler{DB: dbConn.Gorm}
	healthHandler.Register(engine)
	scrapeHandler := &handler.ScrapeHandler{Repo: store, Orchestrator: orchestrator, Query: queryService}
	scrapeHandler.Register(engine)
	searchHandler := &handler.SearchHandler{Repo: store, Query: queryService}
	searchHandler.Register(engine)
	vinHandler := &handler.VINHandler{Query: queryService}
	vinHandler.Register(engine)
	dealerHandler := &handler.DealerHandler{Repo: store, Registry: registry}
	dealerHandler.Register(engine)
	uploadHandler := &handler.UploadHandler{Repo: store, Ingest: uploadIngest}
	uploadHandler.Register(engine)
	analyticsHandler := &handler.AnalyticsHandler{Repo: store}
	analyticsHandler.Register(engine)

	engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	srv := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: engine,
	}

	cronRunner := cronrunner.New(logger, ctx)
	if cfg.Cron.Enabled && cfg.SoldScan.Enabled {
		_, err := cronRunner.Add(cfg.Cron.SoldScan, func(ctx context.Context) {
			result, err := soldScan.Run(ctx)
			if err != nil {
				logger.Warn("cron sold scan failed", zap.Error(err))
				return
			}
			logger.Info("cron sold scan ok",
				zap.Int("dealers", result.DealersScanned),
				zap.Int("sold", result.MarkedSold),
				zap.Int("missing", result.MarkedMissing),
				zap.Int("transfers", result.MarkedTransfer),
			)
		})
		if err != nil {
			logger.Warn("cron register sold scan failed", zap.Error(err))
		}
	}
	cronRunner.Start()
	defer cronRunner.Stop()

	errCh := make(chan error, 2)

	go func() {
		logger.Info("http server starting", zap.String("addr", cfg.Server.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown requested")
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

func initBlobStore(ctx context.Context, cfg config.BlobConfig, logger *zap.Logger) (blob.Store, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "gcs":
		return blob.NewGCSStore(ctx, cfg.GCSBucket)
	case "", "local":
		return blob.NewLocalStore(cfg.LocalRoot)
	case "none":
		logger.Warn("raw blob storage disabled")
		return nil, nil
	default:
		return nil, errors.New("unknown blob driver: " + cfg.Driver)
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}
