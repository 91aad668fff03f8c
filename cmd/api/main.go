package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	appauth "github.com/phishguard/phishguard/internal/application/auth"
	appscans "github.com/phishguard/phishguard/internal/application/scans"
	"github.com/phishguard/phishguard/internal/config"
	domain "github.com/phishguard/phishguard/internal/domain/scans"
	"github.com/phishguard/phishguard/internal/domain/users"
	"github.com/phishguard/phishguard/internal/infra/classifier"
	mysqlp "github.com/phishguard/phishguard/internal/infra/db/mysql"
	postgresp "github.com/phishguard/phishguard/internal/infra/db/postgres"
	sqlitep "github.com/phishguard/phishguard/internal/infra/db/sqlite"
	"github.com/phishguard/phishguard/internal/infra/httpserver"
	minioStore "github.com/phishguard/phishguard/internal/infra/storage"
	"github.com/phishguard/phishguard/internal/middleware"
)

func main() {
	log := slog.New(slog.NewTextHandler(os.Stdout, nil))

	// path config.yaml
	path := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		path = v
	}

	// load config
	cfg, err := config.Load(path)
	if err != nil {
		log.Error("config load error", "err", err)
		os.Exit(1)
	}

	ctx := context.Background()

	// connect ledger store
	db, ledger, userRepo, err := openStore(ctx, cfg)
	if err != nil {
		log.Error("database connect error", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	// classifier client
	clf := classifier.NewClient(cfg.Classifier.URL, cfg.ClassifierTimeout())

	// optional report store for history export
	var reports domain.ReportStore
	if cfg.Minio.Enabled {
		store, err := minioStore.New(ctx,
			cfg.Minio.Endpoint,
			cfg.Minio.Region,
			cfg.Minio.BucketName,
			cfg.Minio.AccessKey,
			cfg.Minio.SecretKey,
			cfg.Minio.UseSSL,
		)
		if err != nil {
			log.Error("minio init error", "err", err)
			os.Exit(1)
		}
		reports = store
	}

	// init services
	authSvc := &appauth.Service{
		Users:    userRepo,
		Secret:   []byte(cfg.Auth.JWTSecret),
		TokenTTL: cfg.TokenTTL(),
	}
	scanSvc := &appscans.Service{
		Ledger:     ledger,
		Classifier: clf,
		Clock:      appscans.SystemClock{},
		Log:        log,
	}
	history := &appscans.History{
		Ledger:  ledger,
		Reports: reports,
		Clock:   appscans.SystemClock{},
	}

	// init router
	mux := chi.NewRouter()
	mux.Use(middleware.Authenticate(authSvc))
	mux.Use(middleware.Logging(log))
	mux.Use(middleware.MetricsMiddleware)
	mux.Use(middleware.RateLimit(cfg.RateLimit.Capacity, cfg.RateLimit.RefillRate))

	mux.Method(http.MethodGet, "/health", middleware.HealthHandler(map[string]middleware.HealthChecker{
		"database":   &middleware.DatabaseHealthChecker{DB: db},
		"classifier": middleware.CheckerFunc(clf.Check),
	}))
	mux.Get("/metrics", middleware.MetricsHandler)

	mux.Mount("/", httpserver.NewRouter(scanSvc, history, authSvc))

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 45 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// run server
	go func() {
		log.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	// graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	log.Info("shutting down server")

	ctx2, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx2); err != nil {
		log.Error("shutdown error", "err", err)
	}
}

// openStore picks the configured driver and returns the pool plus the
// two repositories bound to it.
func openStore(ctx context.Context, cfg *config.Config) (*sql.DB, domain.Ledger, users.Repository, error) {
	switch cfg.Database.Driver {
	case "mysql":
		db, err := mysqlp.Connect(ctx, cfg.MySQLDSN())
		if err != nil {
			return nil, nil, nil, err
		}
		if err := mysqlp.EnsureSchema(ctx, db); err != nil {
			db.Close()
			return nil, nil, nil, err
		}
		return db, mysqlp.NewLedgerRepository(db), mysqlp.NewUserRepository(db), nil
	case "postgres":
		db, err := postgresp.Connect(ctx, cfg.PostgresDSN())
		if err != nil {
			return nil, nil, nil, err
		}
		if err := postgresp.EnsureSchema(ctx, db); err != nil {
			db.Close()
			return nil, nil, nil, err
		}
		return db, postgresp.NewLedgerRepository(db), postgresp.NewUserRepository(db), nil
	case "sqlite", "":
		db, err := sqlitep.Open(ctx, cfg.Database.Path)
		if err != nil {
			return nil, nil, nil, err
		}
		return db, sqlitep.NewLedgerRepository(db), sqlitep.NewUserRepository(db), nil
	default:
		return nil, nil, nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}
}
