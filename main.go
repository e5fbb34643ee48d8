package main

import (
	"encoding/json"
	stdlog "log"
	"net/http"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"github.com/mingli/holding-analyzer/backend/src/config"
	"github.com/mingli/holding-analyzer/backend/src/database"
	"github.com/mingli/holding-analyzer/backend/src/handlers"
	"github.com/mingli/holding-analyzer/backend/src/logger"
	"github.com/mingli/holding-analyzer/backend/src/processors"
	"github.com/mingli/holding-analyzer/backend/src/services"
)

var limiter = rate.NewLimiter(rate.Every(100*time.Millisecond), 30)

func rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow() {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
			logger.L.Warn("Rate limit exceeded",
				"method", r.Method,
				"path", r.URL.Path,
				"remoteAddr", r.RemoteAddr)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func enableCORS(next http.Handler) http.Handler {
	allowedOrigins := make(map[string]bool)
	for _, origin := range strings.Split(config.Cfg.CORSAllowedOrigin, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			allowedOrigins[origin] = true
		}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")

		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE, PATCH")
			w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, Authorization, X-Requested-With, If-None-Match")
			w.Header().Set("Access-Control-Expose-Headers", "ETag")
		} else if origin == "" {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		}

		if r.Method == "OPTIONS" {
			logger.L.Debug("Handling OPTIONS preflight request", "path", r.URL.Path, "origin", origin)
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func main() {
	config.LoadConfig()
	logger.InitLogger(config.Cfg.LogLevel)
	logger.L.Info("Holding analyzer backend server starting...")

	logger.L.Info("Initializing database...", "path", config.Cfg.DatabasePath)
	database.InitDB(config.Cfg.DatabasePath)
	logger.L.Info("Database initialized successfully.")

	logger.L.Info("Initializing report cache...")
	reportCache := cache.New(services.DefaultCacheExpiration, services.CacheCleanupInterval)
	logger.L.Info("Report cache initialized.")

	logger.L.Info("Initializing services and handlers...")
	priceService := services.NewPriceService()
	emailService := services.NewEmailService()

	transactionProcessor := processors.NewTransactionProcessor()
	ledgerEngine := processors.NewLedgerEngine()
	dividendProcessor := processors.NewDividendProcessor()
	reconciler := processors.NewPositionReconciler()

	portfolioService := services.NewPortfolioService(
		dividendProcessor, reconciler, priceService,
		reportCache, config.Cfg.PriceCacheTTL,
	)
	importService := services.NewImportService(
		transactionProcessor, ledgerEngine, portfolioService,
	)

	uploadHandler := handlers.NewUploadHandler(importService)
	txHandler := handlers.NewTransactionHandler(importService, portfolioService)
	portfolioHandler := handlers.NewPortfolioHandler(portfolioService)
	dividendHandler := handlers.NewDividendHandler(portfolioService)
	positionHandler := handlers.NewPositionHandler(portfolioService)
	annotationHandler := handlers.NewAnnotationHandler(portfolioService)
	reportHandler := handlers.NewReportHandler(portfolioService, emailService)

	logger.L.Info("Configuring routes...")
	rootMux := http.NewServeMux()
	apiRouter := http.NewServeMux()

	apiRouter.HandleFunc("POST /api/upload", uploadHandler.HandleUpload)
	apiRouter.HandleFunc("POST /api/imports/scan", uploadHandler.HandleScanImports)
	apiRouter.HandleFunc("GET /api/imports", uploadHandler.HandleGetImportRuns)

	apiRouter.HandleFunc("GET /api/transactions", txHandler.HandleGetTransactions)
	apiRouter.HandleFunc("POST /api/transactions", txHandler.HandleAddTransaction)
	apiRouter.HandleFunc("DELETE /api/transactions/{id}", txHandler.HandleDeleteTransaction)
	apiRouter.HandleFunc("DELETE /api/transactions", txHandler.HandleDeleteAllTransactions)

	apiRouter.HandleFunc("GET /api/holdings", portfolioHandler.HandleGetHoldings)
	apiRouter.HandleFunc("GET /api/holdings/value", portfolioHandler.HandleGetHoldingsValue)
	apiRouter.HandleFunc("GET /api/realized-pnl", portfolioHandler.HandleGetRealizedPnL)
	apiRouter.HandleFunc("GET /api/dividends", dividendHandler.HandleGetDividendSummary)

	apiRouter.HandleFunc("GET /api/positions/manual", positionHandler.HandleGetManualPositions)
	apiRouter.HandleFunc("POST /api/positions/manual", positionHandler.HandleUpsertManualPosition)
	apiRouter.HandleFunc("DELETE /api/positions/manual", positionHandler.HandleDeleteManualPosition)
	apiRouter.HandleFunc("POST /api/positions/manual/upload", uploadHandler.HandleImportManualPositions)

	apiRouter.HandleFunc("GET /api/annotations", annotationHandler.HandleGetAnnotations)
	apiRouter.HandleFunc("POST /api/annotations", annotationHandler.HandleUpsertAnnotation)

	apiRouter.HandleFunc("POST /api/reports/email", reportHandler.HandleSendReport)

	rootMux.Handle("/api/", apiRouter)

	rootMux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" && r.Method == http.MethodGet {
			lastScan, _ := services.GetSetting(services.SettingLastScanAt)
			lastRebuild, _ := services.GetSetting(services.SettingLastRebuildAt)
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]string{
				"message":         "Holding analyzer backend is running",
				"last_scan_at":    lastScan,
				"last_rebuild_at": lastRebuild,
			})
		} else {
			if !strings.HasPrefix(r.URL.Path, "/api/") {
				logger.L.Warn("Root level path not found", "method", r.Method, "path", r.URL.Path)
				http.NotFound(w, r)
			}
		}
	})

	logger.L.Info("Applying global middleware...")
	finalHandler := enableCORS(rateLimitMiddleware(rootMux))

	serverAddr := ":" + config.Cfg.Port
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      finalHandler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	logger.L.Info("Server starting", "address", serverAddr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.L.Error("Failed to start server", "error", err)
		stdlog.Fatalf("Failed to start server: %v", err)
	} else if err == http.ErrServerClosed {
		logger.L.Info("Server stopped gracefully.")
	}
}
