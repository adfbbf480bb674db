package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/keyward/keyward-backend/api/routes"
	"github.com/keyward/keyward-backend/internal/alerts"
	"github.com/keyward/keyward-backend/internal/audit"
	"github.com/keyward/keyward-backend/internal/auth"
	"github.com/keyward/keyward-backend/internal/facilities"
	"github.com/keyward/keyward-backend/internal/keys"
	"github.com/keyward/keyward-backend/internal/loans"
	"github.com/keyward/keyward-backend/internal/people"
	"github.com/keyward/keyward-backend/internal/reservations"
	"github.com/keyward/keyward-backend/internal/roles"
	"github.com/keyward/keyward-backend/internal/users"
	"github.com/keyward/keyward-backend/pkg/auth/session"
	"github.com/keyward/keyward-backend/pkg/config"
	"github.com/keyward/keyward-backend/pkg/db"
	"github.com/keyward/keyward-backend/pkg/logger"
	"github.com/keyward/keyward-backend/pkg/metrics"
	"github.com/keyward/keyward-backend/pkg/migrate"
	"github.com/keyward/keyward-backend/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		logg.Error(context.Background(), "failed to create session manager", err)
		os.Exit(1)
	}

	auditor, err := audit.NewRecorder(dbClient.DB(), logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create audit recorder", err)
		os.Exit(1)
	}

	keysRepo := keys.NewRepository(dbClient.DB())
	facilitiesRepo := facilities.NewRepository(dbClient.DB())
	peopleRepo := people.NewRepository(dbClient.DB())
	rolesRepo := roles.NewRepository(dbClient.DB())
	usersRepo := users.NewRepository(dbClient.DB())
	loansRepo := loans.NewRepository(dbClient.DB())
	reservationsRepo := reservations.NewRepository(dbClient.DB())
	alertsRepo := alerts.NewRepository(dbClient.DB())
	auditRepo := audit.NewRepository(dbClient.DB())

	svcs := routes.Services{}

	if svcs.Auth, err = auth.NewService(usersRepo, sessionManager, auditor, cfg.JWT); err != nil {
		logg.Error(context.Background(), "failed to create auth service", err)
		os.Exit(1)
	}
	if svcs.Keys, err = keys.NewService(keysRepo, facilitiesRepo, peopleRepo, dbClient, auditor); err != nil {
		logg.Error(context.Background(), "failed to create key service", err)
		os.Exit(1)
	}
	if svcs.Loans, err = loans.NewService(loansRepo, keysRepo, peopleRepo, dbClient, auditor); err != nil {
		logg.Error(context.Background(), "failed to create loan service", err)
		os.Exit(1)
	}
	if svcs.Reservations, err = reservations.NewService(reservationsRepo, keysRepo, peopleRepo, dbClient, auditor); err != nil {
		logg.Error(context.Background(), "failed to create reservation service", err)
		os.Exit(1)
	}
	if svcs.Facilities, err = facilities.NewService(facilitiesRepo, auditor); err != nil {
		logg.Error(context.Background(), "failed to create facility service", err)
		os.Exit(1)
	}
	if svcs.People, err = people.NewService(peopleRepo, auditor); err != nil {
		logg.Error(context.Background(), "failed to create person service", err)
		os.Exit(1)
	}
	if svcs.Roles, err = roles.NewService(rolesRepo, auditor); err != nil {
		logg.Error(context.Background(), "failed to create role service", err)
		os.Exit(1)
	}
	if svcs.Users, err = users.NewService(usersRepo, peopleRepo, rolesRepo, auditor, cfg.Password); err != nil {
		logg.Error(context.Background(), "failed to create user service", err)
		os.Exit(1)
	}
	if svcs.Alerts, err = alerts.NewService(alertsRepo); err != nil {
		logg.Error(context.Background(), "failed to create alert service", err)
		os.Exit(1)
	}
	if svcs.Audit, err = audit.NewService(auditRepo); err != nil {
		logg.Error(context.Background(), "failed to create audit service", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	httpMetrics := metrics.NewHTTPMetrics(registry)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:    addr,
		Handler: routes.NewRouter(cfg, logg, dbClient, redisClient, sessionManager, registry, httpMetrics, svcs),
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "api server shutdown failed", err)
			os.Exit(1)
		}
		logg.Info(ctx, "api server shut down gracefully")
	}
}
