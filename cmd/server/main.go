package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"famlink/internal/notification/broker"
	"famlink/internal/notification/handler"
	"famlink/internal/notification/metrics"
	"famlink/internal/notification/service"
	"famlink/internal/notification/store"
	"famlink/internal/platform/config"
	"famlink/internal/platform/httpserver"
	"famlink/internal/platform/logger"
	platformredis "famlink/internal/platform/redis"
	"famlink/internal/platform/token"
	"famlink/pkg/platform/audit"
	auditkafka "famlink/pkg/platform/audit/kafka"
)

// main wires dependencies and owns the process lifecycle. Business logic
// lives in the internal packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	if err := run(cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Durable log: Postgres when configured, in-memory otherwise.
	var st store.Store
	var db *sql.DB
	if cfg.PostgresURL != "" {
		var err error
		db, err = sql.Open("postgres", cfg.PostgresURL)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			return err
		}
		pg := store.NewPostgres(db)
		if err := pg.EnsureSchema(ctx); err != nil {
			return err
		}
		st = pg
		log.Info("using postgres notification store")
	} else {
		st = store.NewInMemory()
		log.Warn("no postgres configured, notifications are not durable across restarts")
	}

	redisClient, err := platformredis.New(cfg.RedisURL)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	// Audit sink: Kafka when brokers are configured, in-process otherwise.
	var emitter audit.Emitter
	if len(cfg.KafkaBrokers) > 0 {
		sink, err := auditkafka.NewSink(ctx, cfg.KafkaBrokers)
		if err != nil {
			return err
		}
		defer sink.Close()
		emitter = sink
		log.Info("audit events routed to kafka", "topic", auditkafka.DefaultTopic)
	} else {
		emitter = audit.NewPublisher(audit.NewInMemoryStore())
	}

	m := metrics.New()
	registry := broker.NewRegistry(log,
		broker.WithLifetime(cfg.ConnLifetime),
		broker.WithMetrics(m),
	)

	svcOpts := []service.Option{
		service.WithAuditEmitter(emitter),
		service.WithMetrics(m),
	}
	if redisClient != nil {
		svcOpts = append(svcOpts, service.WithUnreadCache(
			service.NewRedisUnreadCache(redisClient.Client, log)))
	}
	svc := service.New(st, registry, log, svcOpts...)

	validator := token.NewValidator(cfg.JWTSigningKey)

	router := chi.NewRouter()
	handler.New(svc, registry, validator, log).Register(router)
	router.Handle("/metrics", promhttp.Handler())

	var checks []healthCheck
	if db != nil {
		checks = append(checks, healthCheck{name: "postgres", ping: db.PingContext})
	}
	if redisClient != nil {
		checks = append(checks, healthCheck{name: "redis", ping: redisClient.Health})
	}
	router.Get("/health", healthHandler(checks))

	srv := httpserver.New(cfg.Addr, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting famlink notification server", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		// Tear down live streams before asking the server to drain; an open
		// subscribe handler never goes idle on its own, so Shutdown would
		// otherwise block until the timeout with any subscriber connected.
		registry.CloseAll()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// healthCheck is one backing dependency probed by the health endpoint.
type healthCheck struct {
	name string
	ping func(context.Context) error
}

// healthHandler reports 200 when every configured dependency responds and
// 503 naming the first one that does not.
func healthHandler(checks []healthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		for _, c := range checks {
			if err := c.ping(r.Context()); err != nil {
				http.Error(w, c.name+" unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
	}
}
