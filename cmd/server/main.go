package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/twmb/franz-go/pkg/kgo"
	"golang.org/x/sync/errgroup"

	"visitledger/internal/access"
	collectionhandler "visitledger/internal/collection/handler"
	collectionmetrics "visitledger/internal/collection/metrics"
	collectionmodels "visitledger/internal/collection/models"
	collectionports "visitledger/internal/collection/ports"
	collectionservice "visitledger/internal/collection/service"
	collectionstore "visitledger/internal/collection/store"
	jwttoken "visitledger/internal/jwt_token"
	"visitledger/internal/platform/config"
	"visitledger/internal/platform/httpserver"
	"visitledger/internal/platform/kafka"
	"visitledger/internal/platform/logger"
	"visitledger/internal/platform/metrics"
	"visitledger/internal/platform/postgres"
	"visitledger/internal/platform/redis"
	httptransport "visitledger/internal/transport/http"
	visitcardhandler "visitledger/internal/visitcard/handler"
	visitcardmetrics "visitledger/internal/visitcard/metrics"
	visitcardports "visitledger/internal/visitcard/ports"
	visitcardservice "visitledger/internal/visitcard/service"
	visitcardstore "visitledger/internal/visitcard/store"
	audit "visitledger/pkg/platform/audit"
	kafkapublisher "visitledger/pkg/platform/audit/publishers/kafka"
	auditmemory "visitledger/pkg/platform/audit/store/memory"
	auditpostgres "visitledger/pkg/platform/audit/store/postgres"
	"visitledger/pkg/platform/audit/worker"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// infra holds the optional backing services. Nil fields mean the in-memory
// fallback is in use.
type infra struct {
	db    *sql.DB
	redis *redis.Client
	kafka *kgo.Client
}

func (i *infra) close() {
	if i.kafka != nil {
		i.kafka.Close()
	}
	if i.redis != nil {
		_ = i.redis.Close()
	}
	if i.db != nil {
		_ = i.db.Close()
	}
}

func run() error {
	cfg, err := config.FromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logger.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := connect(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer deps.close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	events := worker.NewWorker(buildSink(cfg, deps), cfg.Events.BufferSize, log)

	ctrl, err := access.New(cfg.Owner)
	if err != nil {
		return fmt.Errorf("access controller: %w", err)
	}
	catalog, err := collectionmodels.NewCatalog(cfg.Collection.Size, cfg.Collection.URITemplate)
	if err != nil {
		return fmt.Errorf("collection catalog: %w", err)
	}

	cardStore, cardTx := buildVisitCardStore(deps)
	cardOpts := []visitcardservice.Option{
		visitcardservice.WithPublisher(events),
		visitcardservice.WithMetrics(visitcardmetrics.New(registry)),
		visitcardservice.WithLogger(log),
	}
	if deps.redis != nil {
		cardOpts = append(cardOpts, visitcardservice.WithCache(visitcardstore.NewRedisCache(deps.redis.Client)))
	}
	cards := visitcardservice.New(ctrl, cardStore, cardTx, cardOpts...)

	ledgerStore, ledgerTx := buildCollectionStore(deps)
	collection := collectionservice.New(ctrl, catalog, ledgerStore, ledgerTx,
		collectionservice.WithPublisher(events),
		collectionservice.WithMetrics(collectionmetrics.New(registry)),
		collectionservice.WithLogger(log),
	)

	tokens := jwttoken.NewJWTService(cfg.JWT.SigningKey, cfg.JWT.Issuer, cfg.JWT.Audience)
	router := httptransport.NewRouter(httptransport.Dependencies{
		Handlers: []httptransport.RouteHandler{
			visitcardhandler.New(cards, cfg.Collection.Gateway, log),
			collectionhandler.New(collection, cfg.Collection.Gateway, log),
		},
		Validator: jwttoken.NewJWTServiceAdapter(tokens),
		Metrics:   metrics.New(registry),
		Gatherer:  registry,
		Health:    healthChecks(deps),
		Logger:    log,
	})
	srv := httpserver.New(cfg.Addr, router, cfg.HTTP)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return events.Run(gctx)
	})
	g.Go(func() error {
		log.Info("starting visitledger", "addr", cfg.Addr, "environment", cfg.Environment, "owner", cfg.Owner.Hex())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		log.Info("shutting down")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("stopped", "events_dropped", events.Dropped(), "events_failed", events.Failed())
	return nil
}

func connect(ctx context.Context, cfg config.Server, log *slog.Logger) (*infra, error) {
	deps := &infra{}
	var err error

	if cfg.Database.URL != "" {
		if deps.db, err = postgres.Open(ctx, cfg.Database); err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		log.Info("using postgres stores")
	} else {
		log.Warn("VISITLEDGER_DATABASE_URL not set, ledger state is in memory")
	}

	if deps.redis, err = redis.New(ctx, cfg.Redis); err != nil {
		deps.close()
		return nil, fmt.Errorf("redis: %w", err)
	}
	if deps.redis != nil {
		log.Info("visit card cache enabled")
	}

	if deps.kafka, err = kafka.New(ctx, cfg.Kafka); err != nil {
		deps.close()
		return nil, fmt.Errorf("kafka: %w", err)
	}
	if deps.kafka != nil {
		log.Info("publishing events to kafka", "topic", cfg.Kafka.Topic)
	}
	return deps, nil
}

// buildSink picks where ledger events end up: Kafka first, then the
// PostgreSQL audit table, then process memory.
func buildSink(cfg config.Server, deps *infra) audit.Publisher {
	switch {
	case deps.kafka != nil:
		return kafkapublisher.New(deps.kafka, cfg.Kafka.Topic)
	case deps.db != nil:
		return auditpostgres.New(deps.db)
	default:
		return auditmemory.NewInMemoryStore()
	}
}

func buildVisitCardStore(deps *infra) (visitcardports.Store, visitcardports.StoreTx) {
	if deps.db != nil {
		s := visitcardstore.NewPostgres(deps.db)
		return s, s
	}
	s := visitcardstore.NewInMemoryStore()
	return s, s
}

func buildCollectionStore(deps *infra) (collectionports.Store, collectionports.StoreTx) {
	if deps.db != nil {
		s := collectionstore.NewPostgres(deps.db)
		return s, s
	}
	s := collectionstore.NewInMemoryStore()
	return s, s
}

func healthChecks(deps *infra) map[string]httptransport.HealthCheck {
	checks := map[string]httptransport.HealthCheck{}
	if deps.db != nil {
		checks["postgres"] = deps.db.PingContext
	}
	if deps.redis != nil {
		checks["redis"] = deps.redis.Health
	}
	if deps.kafka != nil {
		checks["kafka"] = deps.kafka.Ping
	}
	return checks
}
