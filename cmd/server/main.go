// Command server runs the clinic kiosk backend: sensor ingress, triage,
// queue admission, and the staff/front-desk API.
//
// main wires dependencies and keeps the lifecycle small; business logic
// lives in the internal service packages. Without KIOSK_DATABASE_URL the
// process runs fully in memory, which is how local kiosks are demoed.
package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	authhandler "esperanza/internal/auth/handler"
	"esperanza/internal/auth/lockout"
	authservice "esperanza/internal/auth/service"
	authstore "esperanza/internal/auth/store"
	"esperanza/internal/display"
	"esperanza/internal/events"
	patienthandler "esperanza/internal/patient/handler"
	patientservice "esperanza/internal/patient/service"
	patientstore "esperanza/internal/patient/store"
	"esperanza/internal/platform/config"
	"esperanza/internal/platform/httpserver"
	"esperanza/internal/platform/logger"
	"esperanza/internal/platform/metrics"
	"esperanza/internal/platform/middleware"
	"esperanza/internal/platform/postgres"
	platformredis "esperanza/internal/platform/redis"
	queuehandler "esperanza/internal/queue/handler"
	queueservice "esperanza/internal/queue/service"
	queuestore "esperanza/internal/queue/store"
	vitalshandler "esperanza/internal/vitals/handler"
	vitalsservice "esperanza/internal/vitals/service"
	vitalsstore "esperanza/internal/vitals/store"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New()
	loc := cfg.Location()
	m := metrics.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Stores: postgres when configured, in-memory otherwise.
	var (
		readings vitalsstore.Store  = vitalsstore.NewInMemory()
		entries  queuestore.Store   = queuestore.NewInMemory()
		patients patientstore.Store = patientstore.NewInMemory()
		staff    authstore.Store    = authstore.NewInMemory()
		lockouts lockout.Store      = lockout.NewInMemory()
	)
	var db *sql.DB
	if cfg.DatabaseURL != "" {
		var err error
		db, err = postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Error("postgres connection failed", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		readings = vitalsstore.NewPostgres(db)
		entries = queuestore.NewPostgres(db)
		patients = patientstore.NewPostgres(db)
		staff = authstore.NewPostgres(db)
		lockouts = lockout.NewPostgres(db)
	}

	// Display board: redis when configured, in-process otherwise.
	var board display.Board = display.NewMemoryBoard()
	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("redis connection failed", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		board = display.NewRedisBoard(redisClient)
	}

	// Event stream: kafka when brokers are configured.
	var publisher events.Publisher = events.Nop{}
	if len(cfg.Kafka.Brokers) > 0 {
		kafka, err := events.NewKafka(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			log.Error("kafka connection failed", "error", err)
			os.Exit(1)
		}
		defer kafka.Close()
		publisher = kafka
	}

	lockoutSvc := lockout.New(lockouts, log)
	patientSvc := patientservice.New(patients, lockoutSvc, log, loc)
	registry := &patientRegistry{patients: patientSvc}
	accumulator := vitalsservice.NewAccumulator(readings, registry, log, m, loc)
	queueSvc := queueservice.New(entries, registry, board, publisher, log, m, loc, cfg.AdmissionMaxRetries)

	tokens := authservice.NewTokenService(cfg.JWTSigningKey, cfg.StaffTokenTTL)
	authSvc := authservice.New(staff, tokens, lockoutSvc, log)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTime)
	r.Use(middleware.Recovery(log))
	r.Use(middleware.Logger(log))
	r.Use(middleware.Instrument(m))

	requireStaff := middleware.RequireStaff(tokens, log)
	authhandler.New(authSvc, log).Register(r)
	patienthandler.New(patientSvc, log).Register(r, requireStaff)
	vitalshandler.New(accumulator, log).Register(r, requireStaff)
	queuehandler.New(queueSvc, accumulator, log).Register(r, requireStaff)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if db != nil {
			if err := db.PingContext(r.Context()); err != nil {
				http.Error(w, `{"status":"postgres unavailable"}`, http.StatusServiceUnavailable)
				return
			}
		}
		if redisClient != nil {
			if err := redisClient.Health(r.Context()); err != nil {
				http.Error(w, `{"status":"redis unavailable"}`, http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ready"}`))
	})
	r.Handle("/metrics", promhttp.Handler())

	srv := httpserver.New(cfg.Addr, r)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting kiosk backend", "addr", cfg.Addr, "timezone", cfg.TimezoneName)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}
