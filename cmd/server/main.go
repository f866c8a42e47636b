package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"bloodlink/internal/audit"
	"bloodlink/internal/donor"
	"bloodlink/internal/hospital"
	hospitalhandler "bloodlink/internal/hospital/handler"
	hospitalservice "bloodlink/internal/hospital/service"
	jwttoken "bloodlink/internal/jwt_token"
	"bloodlink/internal/notify"
	"bloodlink/internal/platform/config"
	"bloodlink/internal/platform/httpserver"
	"bloodlink/internal/platform/logger"
	"bloodlink/internal/platform/metrics"
	"bloodlink/internal/platform/middleware"
	"bloodlink/internal/platform/postgres"
	platformredis "bloodlink/internal/platform/redis"
	"bloodlink/internal/request"
	requestcache "bloodlink/internal/request/cache"
	requesthandler "bloodlink/internal/request/handler"
	requestservice "bloodlink/internal/request/service"
	"bloodlink/internal/user"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()
	m := metrics.New()

	// Stores: Postgres when configured, in-memory otherwise so the service
	// runs standalone in development.
	var (
		requestStore  request.Store
		donorStore    requestservice.DonorStore
		hospitalStore hospitalStores
		userStore     requestservice.UserDirectory
		auditStore    audit.Store
	)
	if cfg.PostgresURL != "" {
		db, err := postgres.Open(cfg.PostgresURL)
		if err != nil {
			log.Error("postgres connection failed", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		if err := postgres.Migrate(db); err != nil {
			log.Error("postgres migration failed", "error", err)
			os.Exit(1)
		}
		requestStore = request.NewPostgres(db)
		donorStore = donor.NewPostgres(db)
		hospitalStore = hospital.NewPostgres(db)
		userStore = user.NewPostgres(db)
		auditStore = audit.NewPostgres(db)
		log.Info("using postgres storage")
	} else {
		requestStore = request.NewInMemoryStore()
		donorStore = donor.NewInMemoryStore()
		hospitalStore = hospital.NewInMemoryStore()
		userStore = user.NewInMemoryStore()
		auditStore = audit.NewInMemoryStore()
		log.Warn("POSTGRES_URL not set, using in-memory storage")
	}

	var notifier notify.Notifier
	if cfg.SMTP.Configured() {
		notifier = notify.NewSMTPNotifier(cfg.SMTP, log)
	} else {
		notifier = notify.NewLogNotifier(log)
		log.Warn("SMTP not configured, notifications go to the log")
	}

	// Audit events flow through a buffered inbox so transitions never block
	// on the trail.
	inbox := make(chan audit.Event, cfg.AuditBuffer)
	publisher := audit.NewPublisher(inbox, log)
	worker := audit.NewWorker(auditStore, inbox, log)

	opts := []requestservice.Option{
		requestservice.WithAudit(publisher, auditStore),
	}
	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("redis connection failed", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		opts = append(opts, requestservice.WithMatchingCache(
			requestcache.NewMatchingCache(redisClient.Client, cfg.MatchingCacheTTL)))
		log.Info("matching cache enabled", "ttl", cfg.MatchingCacheTTL.String())
	}

	requestSvc := requestservice.New(
		requestStore, donorStore, hospitalStore, userStore, notifier, log, m, opts...)
	inventorySvc := hospitalservice.New(hospitalStore, log, m)

	jwtService := jwttoken.NewJWTService(cfg.JWTSigningKey, "bloodlink", "bloodlink-api")
	validator := jwtValidatorAdapter{svc: jwtService}

	router := chi.NewRouter()
	requesthandler.New(requestSvc, log, m, validator).Register(router)
	hospitalhandler.New(inventorySvc, requestSvc, log, m, validator).Register(router)
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	apiServer := httpserver.New(cfg.Addr, router)

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsServer := httpserver.New(cfg.MetricsAddr, metricsMux)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting bloodlink api", "addr", cfg.Addr)
		if err := apiServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		log.Info("starting metrics endpoint", "addr", cfg.MetricsAddr)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		if err := worker.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := apiServer.Shutdown(shutdownCtx); err != nil {
			log.Error("api shutdown failed", "error", err)
		}
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			log.Error("metrics shutdown failed", "error", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
	log.Info("shutdown complete")
}

// hospitalStores is the union of what the request lifecycle and the inventory
// ledger need from hospital storage.
type hospitalStores interface {
	requestservice.HospitalStore
	hospitalservice.Store
}

// jwtValidatorAdapter narrows the JWT service to the middleware contract.
type jwtValidatorAdapter struct {
	svc *jwttoken.JWTService
}

func (a jwtValidatorAdapter) ValidateToken(tokenString string) (*middleware.JWTClaims, error) {
	claims, err := a.svc.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	return &middleware.JWTClaims{ActorID: claims.ActorID, Role: claims.Role}, nil
}
