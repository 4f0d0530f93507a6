// Command appserver boots the Module Runtime with the tenant-resolver
// demonstration modules wired in: the Identifier & Schema Kernel, a REST
// gateway, a reference plugin, and a cron-driven reconciler.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	"github.com/R3E-Network/modrun/examples/tenantresolver/contosoplugin"
	"github.com/R3E-Network/modrun/examples/tenantresolver/gateway"
	"github.com/R3E-Network/modrun/examples/tenantresolver/kernelmodule"
	"github.com/R3E-Network/modrun/examples/tenantresolver/reconciler"
	"github.com/R3E-Network/modrun/infrastructure/logging"
	"github.com/R3E-Network/modrun/infrastructure/middleware"
	"github.com/R3E-Network/modrun/internal/platform/database"
	"github.com/R3E-Network/modrun/internal/platform/migrations"
	"github.com/R3E-Network/modrun/pkg/config"
	"github.com/R3E-Network/modrun/pkg/logger"
	"github.com/R3E-Network/modrun/pkg/metrics"
	engine "github.com/R3E-Network/modrun/system/core"
)

func main() {
	addr := flag.String("addr", "", "HTTP listen address (defaults to config or :8080)")
	dsn := flag.String("dsn", "", "PostgreSQL DSN (overrides config/env; runs without persistence when empty)")
	runMigrations := flag.Bool("migrate", true, "run embedded database migrations on startup")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	appLog := logger.New(logger.LoggingConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		FilePrefix: cfg.Logging.FilePrefix,
	})
	engineLog := log.New(appLog.WriterLevel(logrus.InfoLevel), "", 0)

	rootCtx := context.Background()

	var sqlxDB *sqlx.DB
	dsnVal := resolveDSN(*dsn, cfg)
	if dsnVal != "" {
		db, err := database.Open(rootCtx, dsnVal)
		if err != nil {
			appLog.Fatalf("connect to postgres: %v", err)
		}
		configurePool(db, cfg)
		if *runMigrations {
			if err := migrations.Apply(rootCtx, db); err != nil {
				appLog.Fatalf("apply migrations: %v", err)
			}
		}
		sqlxDB = sqlx.NewDb(db, cfg.Database.Driver)
		defer sqlxDB.Close()
	} else {
		appLog.Warn("no database DSN configured; tenant resolutions will not be persisted")
	}

	e := engine.New(
		engine.WithLogger(engineLog),
		engine.WithDB(sqlxDB),
	)
	e.SetModuleConfig(cfg.ModuleConfigNode)

	mustRegister(e, kernelmodule.New())
	mustRegister(e, gateway.New())
	mustRegister(e, contosoplugin.New())
	mustRegister(e, reconciler.New())

	if err := e.Bootstrap(rootCtx); err != nil {
		appLog.Fatalf("bootstrap: %v", err)
	}

	ingressLog := logging.New("tenant-resolver-gateway", cfg.Logging.Level, cfg.Logging.Format)
	recovery := middleware.NewRecoveryMiddleware(ingressLog)
	bodyLimit := middleware.NewBodyLimitMiddleware(0)
	securityHeaders := middleware.NewSecurityHeadersMiddleware(middleware.DefaultSecurityHeaders())
	reqLimiter := middleware.NewRateLimiterWithWindow(cfg.Server.RateLimitPerMinute, time.Minute, cfg.Server.RateLimitBurst, ingressLog)

	router := chi.NewRouter()
	router.Use(recovery.Handler, securityHeaders.Handler, bodyLimit.Handler, reqLimiter.Handler)
	router.Handle("/metrics", metrics.Handler())
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	e.MountREST(router)

	listenAddr := determineAddr(*addr, cfg)
	server := &http.Server{Addr: listenAddr, Handler: metrics.InstrumentHandler(router)}

	runCtx, cancelRun := context.WithCancel(rootCtx)
	go func() {
		if err := e.Run(runCtx); err != nil {
			appLog.Errorf("module runtime stopped: %v", err)
		}
	}()

	go func() {
		appLog.Infof("tenant resolver demonstration listening on %s", listenAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLog.Fatalf("http server: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = server.Shutdown(shutdownCtx)
	cancelRun()
	if err := e.Stop(shutdownCtx); err != nil {
		appLog.Errorf("shutdown: %v", err)
	}
}

func mustRegister(e *engine.Engine, m engine.Module) {
	if err := e.Register(m); err != nil {
		log.Fatalf("register module %s: %v", m.Name(), err)
	}
}

func determineAddr(flagAddr string, cfg *config.Config) string {
	addr := strings.TrimSpace(flagAddr)
	if addr != "" {
		return addr
	}
	if cfg != nil {
		host := strings.TrimSpace(cfg.Server.Host)
		port := cfg.Server.Port
		if port != 0 {
			if host == "" {
				host = "0.0.0.0"
			}
			return fmt.Sprintf("%s:%d", host, port)
		}
	}
	return ":8080"
}

func configurePool(db *sql.DB, cfg *config.Config) {
	if cfg == nil {
		return
	}
	if cfg.Database.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	}
	if cfg.Database.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	}
	if cfg.Database.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(time.Duration(cfg.Database.ConnMaxLifetime) * time.Second)
	}
}

func resolveDSN(flagDSN string, cfg *config.Config) string {
	if trimmed := strings.TrimSpace(flagDSN); trimmed != "" {
		return trimmed
	}
	if envDSN := strings.TrimSpace(os.Getenv("DATABASE_URL")); envDSN != "" {
		return envDSN
	}
	if cfg == nil {
		return ""
	}
	if cfg.Database.DSN != "" {
		return strings.TrimSpace(cfg.Database.DSN)
	}
	if cfg.Database.Host != "" && cfg.Database.Name != "" {
		return cfg.Database.ConnectionString()
	}
	return ""
}
