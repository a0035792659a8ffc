package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"go.opentelemetry.io/otel"

	"lens-tracker/internal/api"
	"lens-tracker/internal/auth"
	"lens-tracker/internal/config"
	"lens-tracker/internal/db"
	"lens-tracker/internal/logger"
	"lens-tracker/internal/pgstore"
	"lens-tracker/internal/sheets"
	"lens-tracker/internal/statussync"
	"lens-tracker/internal/tracking"
)

var version = "dev"

func main() {
	port := flag.Int("port", envInt("LENS_PORT", 13380), "HTTP server port")
	driver := flag.String("store", envOrDefault("LENS_STORE", "sqlite"), "status store: sqlite | postgres | memory")
	dsn := flag.String("pg-dsn", os.Getenv("LENS_PG_DSN"), "PostgreSQL DSN for -store=postgres")
	dbPath := flag.String("db", os.Getenv("LENS_DB_PATH"), "SQLite file (config, principals, sqlite store)")
	addPrincipal := flag.String("add-principal", "", "register email:role, print its token and exit")
	flag.Parse()

	logger.Banner(version)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// SQLite always holds config and principals.
	database, err := db.Open(*dbPath)
	if err != nil {
		logger.Error("DB", fmt.Sprintf("Failed to open database: %v", err))
		os.Exit(1)
	}
	defer database.Close()

	tokens := auth.NewTokenStore(database.SqlDB())
	if *addPrincipal != "" {
		if err := registerPrincipal(ctx, tokens, *addPrincipal); err != nil {
			logger.Error("AUTH", err.Error())
			os.Exit(1)
		}
		return
	}

	cfg := database.LoadConfig()
	cfg.Port = *port
	cfg.StoreDriver = *driver
	cfg.PostgresDSN = *dsn
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("CONFIG", err.Error())
		os.Exit(1)
	}

	store, closeStore, err := openStore(ctx, cfg, database)
	if err != nil {
		logger.Error("STORE", err.Error())
		os.Exit(1)
	}
	defer closeStore()

	if seeder, ok := store.(sheets.Seeder); ok {
		if err := seedSheets(ctx, seeder, cfg); err != nil {
			logger.Error("STORE", fmt.Sprintf("Seeding sheets: %v", err))
			os.Exit(1)
		}
	}

	svc, err := tracking.New(store, cfg)
	if err != nil {
		logger.Error("CONFIG", err.Error())
		os.Exit(1)
	}
	loc := svc.Location()
	syncer := statussync.New(store, cfg,
		statussync.OnSynced(svc.Invalidate),
		statussync.WithClock(func() time.Time { return time.Now().In(loc) }),
		statussync.WithMetrics(statussync.NewMetrics(otel.GetMeterProvider())),
		statussync.WithTracerProvider(otel.GetTracerProvider()),
	)
	go syncer.Watch(ctx, time.Duration(cfg.SyncIntervalMinutes)*time.Minute)

	logger.Section("Configuration")
	logger.Stats("Store", cfg.StoreDriver)
	logger.Stats("Canonical log", cfg.CanonicalSheet+"!"+cfg.CanonicalRange)
	logger.Stats("Sync sources", len(cfg.EnabledSources()))
	logger.Stats("Sync window", fmt.Sprintf("%02d:00-%02d:00 %s, every %d min", cfg.SyncStartHour, cfg.SyncEndHour, loc, cfg.SyncIntervalMinutes))

	srv := api.NewServer(cfg, svc, syncer, tokens, database)
	httpSrv := &http.Server{
		Addr:              fmt.Sprintf("127.0.0.1:%d", cfg.Port),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		httpSrv.Shutdown(shutdownCtx)
	}()

	logger.Server(httpSrv.Addr)
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server", fmt.Sprintf("Failed: %v", err))
		os.Exit(1)
	}
	logger.Info("Server", "Stopped")
}

func openStore(ctx context.Context, cfg *config.Config, database *db.DB) (sheets.Store, func(), error) {
	switch cfg.StoreDriver {
	case "sqlite", "":
		return database, func() {}, nil
	case "postgres":
		if cfg.PostgresDSN == "" {
			return nil, nil, fmt.Errorf("-store=postgres needs -pg-dsn or LENS_PG_DSN")
		}
		pg, err := pgstore.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		return pg, pg.Close, nil
	case "memory":
		logger.Warn("STORE", "Using in-memory store; status logs are lost on exit")
		return sheets.NewMemoryStore(), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

func seedSheets(ctx context.Context, s sheets.Seeder, cfg *config.Config) error {
	if err := s.EnsureSheet(ctx, cfg.CanonicalSheet, sheets.CanonicalHeader); err != nil {
		return err
	}
	if err := s.EnsureSheet(ctx, cfg.TransactionSheet, sheets.TransactionHeader); err != nil {
		return err
	}
	for _, src := range cfg.SyncSources {
		if err := s.EnsureSheet(ctx, src.Sheet, sheets.AreaHeader); err != nil {
			return err
		}
	}
	return nil
}

func registerPrincipal(ctx context.Context, tokens *auth.TokenStore, arg string) error {
	email, roleName, ok := strings.Cut(arg, ":")
	if !ok {
		return fmt.Errorf("-add-principal wants email:role, got %q", arg)
	}
	role, err := auth.ParseRole(roleName)
	if err != nil {
		return err
	}
	token, err := tokens.Register(ctx, email, role)
	if err != nil {
		return err
	}
	logger.Success("AUTH", fmt.Sprintf("Registered %s as %s", strings.ToLower(email), role))
	fmt.Println(token)
	return nil
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return defaultVal
}
