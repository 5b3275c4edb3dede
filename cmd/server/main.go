package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Djtrixuk/moltydex-sub000/internal/chain"
	"github.com/Djtrixuk/moltydex-sub000/internal/config"
	"github.com/Djtrixuk/moltydex-sub000/internal/feed"
	"github.com/Djtrixuk/moltydex-sub000/internal/handler"
	"github.com/Djtrixuk/moltydex-sub000/internal/middleware"
	"github.com/Djtrixuk/moltydex-sub000/internal/pkg/logger"
	"github.com/Djtrixuk/moltydex-sub000/internal/repository"
	"github.com/Djtrixuk/moltydex-sub000/internal/service"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger.Init(cfg.Log.Level)

	// 2. Chain access: one handle pool, retried through the executor
	pool := chain.NewPool()
	executor := chain.NewExecutor(pool, cfg.RPC.PrimaryURL, cfg.RPC.FallbackURL, chain.Policy{
		MaxAttempts:    cfg.RPC.MaxAttempts,
		BaseDelay:      time.Duration(cfg.RPC.BaseDelayMs) * time.Millisecond,
		FallbackSwitch: cfg.RPC.FallbackURL != "",
	})
	chainClient := chain.NewClient(executor, time.Duration(cfg.RPC.TimeoutSeconds)*time.Second)

	// 3. Tracking persistence (Redis > Memory, optional Postgres archive)
	var durable repository.TrackingRepo
	if cfg.Redis.Addr != "" {
		rdb, err := repository.NewRedisClient(cfg)
		if err == nil {
			logger.Info("Connected to Redis")
			durable = repository.NewRedisTrackingRepo(rdb, cfg.Redis.WalletListMax, cfg.Redis.GlobalListMax)
		} else {
			logger.Error("Failed to connect to Redis, tracking is volatile only", "error", err)
		}
	}
	volatile := repository.NewMemoryTrackingRepo(cfg.Redis.WalletListMax, cfg.Redis.GlobalListMax)

	var archive service.SwapArchiver
	if cfg.Database.DSN != "" {
		pg, err := repository.NewSwapArchive(cfg)
		if err == nil {
			logger.Info("Connected to PostgreSQL swap archive")
			archive = pg
		} else {
			logger.Error("Failed to connect to Postgres, swaps will not be archived", "error", err)
		}
	}

	tracking := service.NewTrackingService(durable, volatile, archive)

	// 4. Core services
	balances := service.NewBalanceService(chainClient)
	quotes := service.NewQuoteService(pool, cfg.Router.Endpoints, cfg.Router.APIKey,
		cfg.Router.PlatformFeeBps, time.Duration(cfg.Router.TimeoutSeconds)*time.Second)
	tokenCache := service.NewTokenCache(pool, cfg.Router.Endpoints[0], cfg.Router.APIKey,
		time.Duration(cfg.Router.TokenCacheTTL)*time.Second)
	webhooks := service.NewWebhookRegistry()
	hub := feed.NewHub()
	tracking.AddListener(webhooks)
	tracking.AddListener(hub)

	lifecycleCfg := service.LifecycleConfig{
		PollInterval:      time.Duration(cfg.Swap.PollIntervalMs) * time.Millisecond,
		MaxPolls:          cfg.Swap.MaxPolls,
		QuoteRefreshAge:   time.Duration(cfg.Swap.QuoteRefreshSeconds) * time.Second,
		FeeReserve:        cfg.Swap.FeeReserveLamports,
		OptimisticConfirm: cfg.Swap.OptimisticConfirm,
	}

	// 5. Handlers
	balanceHandler := handler.NewBalanceHandler(balances)
	quoteHandler := handler.NewQuoteHandler(quotes, tokenCache)
	swapHandler := handler.NewSwapHandler(quotes, balances, chainClient, tracking, lifecycleCfg)
	trackingHandler := handler.NewTrackingHandler(tracking, webhooks)

	// 6. Router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.MetricsMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok", "service": "moltydex"})
	})
	if cfg.Metrics.Enabled {
		r.GET(cfg.Metrics.Path, gin.WrapH(promhttp.Handler()))
	}

	v1 := r.Group("/v1")
	v1.Use(middleware.AuthMiddleware(cfg))
	v1.Use(middleware.RateLimitMiddleware(cfg))
	{
		v1.GET("/balance", balanceHandler.GetBalance)
		v1.GET("/quote", quoteHandler.GetQuote)
		v1.GET("/tokens", quoteHandler.GetTokens)

		v1.POST("/swaps", swapHandler.Record)
		v1.POST("/swaps/execute", swapHandler.Execute)
		v1.GET("/sessions/:id", swapHandler.Status)
		v1.DELETE("/sessions/:id", swapHandler.Abandon)
		v1.GET("/swaps/recent", trackingHandler.RecentSwaps)

		v1.GET("/wallets/:wallet/swaps", trackingHandler.WalletSwaps)
		v1.GET("/wallets/:wallet/points", trackingHandler.WalletPoints)
		v1.GET("/leaderboard", trackingHandler.Leaderboard)
		v1.GET("/stats", trackingHandler.Stats)

		v1.POST("/webhooks", trackingHandler.RegisterWebhook)
		v1.GET("/webhooks", trackingHandler.ListWebhooks)
		v1.DELETE("/webhooks/:id", trackingHandler.DeleteWebhook)

		v1.GET("/swaps/feed", func(c *gin.Context) {
			hub.Serve(c.Writer, c.Request)
		})
	}

	// 7. Start with graceful shutdown
	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: r,
	}

	go func() {
		logger.Info("moltydex gateway started", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server listen failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	hub.Close()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown: ", err)
	}

	logger.Info("Server exiting")
}
