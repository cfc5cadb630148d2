package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	httpAdapter "github.com/iho/ledgerbook/internal/adapter/http"
	"github.com/iho/ledgerbook/internal/adapter/http/handler"
	postgresRepo "github.com/iho/ledgerbook/internal/adapter/repository/postgres"
	redisRepo "github.com/iho/ledgerbook/internal/adapter/repository/redis"
	"github.com/iho/ledgerbook/internal/infrastructure/config"
	"github.com/iho/ledgerbook/internal/infrastructure/eventpublisher"
	"github.com/iho/ledgerbook/internal/infrastructure/metrics"
	"github.com/iho/ledgerbook/internal/infrastructure/reconciler"
	"github.com/iho/ledgerbook/internal/infrastructure/redis"
	"github.com/iho/ledgerbook/internal/usecase"
)

// app is the wired service: an HTTP handler plus the background workers
// that run next to it.
type app struct {
	handler http.Handler
	workers []func(ctx context.Context) error
	closers []func() error
	logger  zerolog.Logger
}

// Close releases every resource in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn().Err(err).Msg("close failed")
		}
	}
}

func newApp(ctx context.Context, cfg *config.Config, log zerolog.Logger) (_ *app, err error) {
	a := &app{logger: log}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	store, err := openBackend(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, store.close)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	idGen, err := newIDGenerator(cfg.IDFormat)
	if err != nil {
		return nil, err
	}

	publisher, closePublisher, err := newPublisher(cfg, log)
	if err != nil {
		return nil, err
	}
	if closePublisher != nil {
		a.closers = append(a.closers, closePublisher)
	}

	ledgerCfg := usecase.LedgerConfig{
		TxManager:         store.txManager,
		Entries:           store.entries,
		Balances:          store.balances,
		IDGen:             idGen,
		Retrier:           store.retrier,
		Metrics:           m,
		Logger:            &log,
		ConsistentHistory: cfg.HistoryConsistentReads,
	}
	if publisher != nil {
		ledgerCfg.Outbox = store.outbox
	}
	ledgerUC := usecase.NewLedgerUseCase(ledgerCfg)
	reconUC := usecase.NewReconciliationUseCase(store.txManager, store.entries, store.balances)

	checks := store.checks
	routerCfg := httpAdapter.RouterConfig{
		Logger:         log,
		Metrics:        m,
		MetricsHandler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}),
	}

	if cfg.RedisEnabled {
		client, err := redis.NewClient(ctx, cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		a.closers = append(a.closers, client.Close)
		log.Info().Msg("connected to redis")

		routerCfg.IdempotencyStore = redisRepo.NewIdempotencyStore(client)
		routerCfg.IdempotencyTTL = cfg.IdempotencyTTL
		checks = append(checks, handler.Check{
			Name:  "redis",
			Probe: func(ctx context.Context) error { return client.Ping(ctx).Err() },
		})
	}

	routerCfg.LedgerHandler = handler.NewLedgerHandler(ledgerUC, reconUC, cfg.HistoryMaxLimit, log)
	routerCfg.HealthHandler = handler.NewHealthHandler(checks...)
	a.handler = httpAdapter.NewRouter(routerCfg)

	if publisher != nil {
		ep := eventpublisher.NewEventPublisher(eventpublisher.Config{
			OutboxRepo: store.outbox,
			Publisher:  publisher,
			Metrics:    m,
			Logger:     log,
			BatchSize:  cfg.OutboxBatchSize,
			Interval:   cfg.OutboxInterval,
			Retention:  cfg.OutboxRetention,
		})
		a.workers = append(a.workers, ep.Start)
	}

	if cfg.ReconcileInterval > 0 {
		worker := reconciler.NewWorker(reconUC, m, log, cfg.ReconcileInterval)
		a.workers = append(a.workers, worker.Start)
	}

	return a, nil
}

func newIDGenerator(format string) (usecase.IDGenerator, error) {
	switch format {
	case config.IDFormatUUID:
		return postgresRepo.NewUUIDGenerator(), nil
	case config.IDFormatULID:
		return postgresRepo.NewULIDGenerator(), nil
	default:
		return nil, fmt.Errorf("unsupported id format %q", format)
	}
}

// newPublisher builds the configured event publisher. It returns a nil
// publisher when event publishing is disabled.
func newPublisher(cfg *config.Config, log zerolog.Logger) (eventpublisher.Publisher, func() error, error) {
	switch cfg.EventPublisher {
	case config.PublisherNone:
		return nil, nil, nil
	case config.PublisherLog:
		return eventpublisher.NewLogPublisher(log), nil, nil
	case config.PublisherKafka:
		p := eventpublisher.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		return p, p.Close, nil
	case config.PublisherAMQP:
		p, err := eventpublisher.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			return nil, nil, err
		}
		return p, p.Close, nil
	case config.PublisherNATS:
		p, err := eventpublisher.NewNATSPublisher(cfg.NATSURL, cfg.NATSSubject)
		if err != nil {
			return nil, nil, err
		}
		return p, p.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported event publisher %q", cfg.EventPublisher)
	}
}
