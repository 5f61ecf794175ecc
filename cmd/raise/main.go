package main

import (
	"context"
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

	"github.com/ahricool/raise/internal/analysis"
	"github.com/ahricool/raise/internal/channel"
	"github.com/ahricool/raise/internal/config"
	cronrunner "github.com/ahricool/raise/internal/cron"
	"github.com/ahricool/raise/internal/db"
	"github.com/ahricool/raise/internal/digest"
	"github.com/ahricool/raise/internal/dispatch"
	"github.com/ahricool/raise/internal/handler"
	"github.com/ahricool/raise/internal/intent"
	"github.com/ahricool/raise/internal/ledger"
	"github.com/ahricool/raise/internal/llm"
	"github.com/ahricool/raise/internal/logger"
	"github.com/ahricool/raise/internal/repository"
	gormrepository "github.com/ahricool/raise/internal/repository/gorm"
	"github.com/ahricool/raise/internal/repository/memory"
	"github.com/ahricool/raise/internal/service"

	_ "github.com/ahricool/raise/docs"
)

func main() {
	cfgPath := os.Getenv("RAISE_CONFIG")
	if cfgPath == "" {
		cfgPath = "config/config.yaml"
	}

	envOnly := false
	if envOnlyRaw := os.Getenv("RAISE_ENV_ONLY"); envOnlyRaw != "" {
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

	var (
		dbConn *db.DB
		store  repository.Repository
	)
	if strings.TrimSpace(cfg.DB.DSN) != "" {
		dbConn, err = db.Open(cfg.DB)
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
		store = gormrepository.New(dbConn.Gorm)
	} else {
		logger.Warn("db dsn empty, using in-memory store")
		store = memory.New()
	}

	loc, err := time.LoadLocation(cfg.Schedule.Timezone)
	if err != nil {
		logger.Warn("unknown schedule timezone, using local", zap.String("timezone", cfg.Schedule.Timezone), zap.Error(err))
		loc = time.Local
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	analyzer := analysis.NewClient(&http.Client{Timeout: cfg.Analysis.Timeout}, cfg.Analysis.BaseURL)
	dispatcher := dispatch.New(analyzer, dispatch.Options{
		MaxWorkers:  cfg.Dispatcher.MaxWorkers,
		TaskTimeout: cfg.Dispatcher.TaskTimeout,
		HistorySize: cfg.Dispatcher.HistorySize,
	}, logger)

	telegram, err := channel.NewTelegram(cfg.Telegram, &http.Client{Timeout: cfg.Telegram.Timeout}, logger)
	if err != nil {
		logger.Fatal("telegram init failed", zap.Error(err))
	}
	if !telegram.Configured() {
		logger.Warn("telegram bot token empty, replies and digests are disabled")
	}

	gateways := llm.FromConfig(ctx, cfg.LLM, logger)
	if len(gateways) == 0 {
		logger.Warn("no llm provider configured, chat parsing uses commands and heuristics only")
	}

	settingsSvc := &service.SystemSettingsService{Repo: store}
	watchlistSvc := &service.WatchlistService{Repo: store}
	chatSvc := &service.ChatService{
		Parser: intent.NewParser(gateways, telegram, logger),
		Ledger: &ledger.Reconciler{Repo: store, Logger: logger},
		Sender: telegram,
		Logger: logger,
	}
	digestRunner := &digest.Runner{
		Watchlist:  store,
		Analyzer:   analyzer,
		Sender:     telegram,
		ChatID:     cfg.Telegram.ChatID,
		ReportType: cfg.Schedule.ReportType,
		Location:   loc,
		Logger:     logger,
	}

	digestTriggers := map[digest.Mode]cronrunner.Trigger{}
	for mode, dc := range map[digest.Mode]config.DigestTimeConfig{
		digest.Morning: cfg.Schedule.Morning,
		digest.Noon:    cfg.Schedule.Noon,
		digest.Evening: cfg.Schedule.Evening,
	} {
		trigger, err := cronrunner.ParseTrigger(dc.Time, dc.Weekdays)
		if err != nil {
			logger.Warn("invalid digest time, using default", zap.String("mode", string(mode)), zap.Error(err))
			continue
		}
		digestTriggers[mode] = trigger
	}

	cronRunner := cronrunner.New(loc, logger,
		cronrunner.WithPool(cronrunner.NewPool(cfg.Schedule.PoolSize)),
		cronrunner.WithBaseContext(ctx),
	)
	schedulerSvc := &service.SchedulerService{
		Cron:           cronRunner,
		Dispatcher:     dispatcher,
		Watchlist:      store,
		Digest:         digestRunner,
		Settings:       settingsSvc,
		DigestTriggers: digestTriggers,
		ReportType:     cfg.Schedule.ReportType,
		Logger:         logger,
	}
	enabled, clock := settingsSvc.Schedule(ctx, cfg.Schedule.Enabled, cfg.Schedule.Time)
	if err := schedulerSvc.Start(enabled, clock); err != nil {
		logger.Error("schedule start failed, jobs not registered", zap.String("time", clock), zap.Error(err))
	}
	defer schedulerSvc.Stop()

	if strings.EqualFold(cfg.App.Env, "dev") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(corsMiddleware())

	healthHandler := &handler.HealthHandler{DB: dbConn}
	healthHandler.Register(engine)
	schedulerHandler := &handler.SchedulerHandler{Service: schedulerSvc}
	schedulerHandler.Register(engine)
	watchlistHandler := &handler.WatchlistHandler{Service: watchlistSvc}
	watchlistHandler.Register(engine)
	analysisHandler := &handler.AnalysisHandler{Dispatcher: dispatcher, ReportType: cfg.Schedule.ReportType, Logger: logger}
	analysisHandler.Register(engine)
	telegramHandler := &handler.TelegramHandler{Chat: chatSvc, Secret: cfg.Telegram.WebhookSecret, Logger: logger}
	telegramHandler.Register(engine)
	settingsHandler := &handler.SettingsHandler{Repo: store}
	settingsHandler.Register(engine)

	engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	srv := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: engine,
	}

	errCh := make(chan error, 1)

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
	schedulerSvc.Stop()
	if err := dispatcher.Wait(shutdownCtx); err != nil {
		logger.Warn("analysis tasks still running at exit", zap.Error(err))
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization,X-Telegram-Bot-Api-Secret-Token")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
