package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/warp/giftcert-engine/events"
	"github.com/warp/giftcert-engine/giftcert"
	"github.com/warp/giftcert-engine/giftcert/store"
	"github.com/warp/giftcert-engine/internal/config"
	"github.com/warp/giftcert-engine/store/postgres"
	"github.com/warp/giftcert-engine/store/sqlite"
)

// app is everything a command needs, built once from config.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    giftcert.Store
	service  *giftcert.Service
	registry *prometheus.Registry

	health  func(ctx context.Context) error
	closers []func() error
}

func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger, registry: prometheus.NewRegistry()}
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	if err := a.openStore(ctx); err != nil {
		a.Close()
		return nil, err
	}

	publisher, err := a.buildPublisher(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	codes := giftcert.NewCodeGenerator(a.store)
	codes.Prefix = cfg.Codes.Prefix
	if cfg.Codes.Length > 0 {
		codes.Length = cfg.Codes.Length
	}
	codes.GroupSize = cfg.Codes.GroupSize
	if cfg.Codes.MaxAttempts > 0 {
		codes.MaxAttempts = cfg.Codes.MaxAttempts
	}

	var metrics *giftcert.Metrics
	if cfg.Metrics.Enabled {
		metrics = giftcert.NewMetrics(a.registry)
	}

	a.service, err = giftcert.NewService(giftcert.ServiceConfig{
		Store:           a.store,
		Codes:           codes,
		Publisher:       publisher,
		Metrics:         metrics,
		Logger:          logger,
		DefaultCurrency: cfg.DefaultCurrency,
		QRBaseURL:       cfg.QRBaseURL,
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) openStore(ctx context.Context) error {
	db := a.cfg.Database
	switch db.Driver {
	case config.DriverMemory:
		a.logger.Warn("using in-memory store, data is lost on exit")
		a.store = store.NewMemory()
	case config.DriverSQLite:
		s, err := sqlite.New(ctx, db.DSN)
		if err != nil {
			return fmt.Errorf("failed to initialize sqlite store: %w", err)
		}
		a.store = s
		a.health = s.DB().PingContext
		a.closers = append(a.closers, s.Close)
	case config.DriverPostgres:
		s, err := postgres.New(ctx, db.DSN, postgres.PoolConfig{
			MaxOpenConns:    db.MaxOpenConns,
			MaxIdleConns:    db.MaxIdleConns,
			ConnMaxLifetime: db.ConnMaxLifetime,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize postgres store: %w", err)
		}
		a.store = s
		a.health = s.DB().PingContext
		a.closers = append(a.closers, s.Close)
	default:
		return fmt.Errorf("unknown database driver %q", db.Driver)
	}
	a.logger.Info("store ready", "driver", db.Driver)
	return nil
}

func (a *app) buildPublisher(ctx context.Context) (giftcert.EventPublisher, error) {
	var sinks events.Multi
	for _, name := range a.cfg.Events.Sinks {
		switch strings.ToLower(name) {
		case config.SinkNone:
		case config.SinkLog:
			sinks = append(sinks, events.NewLogPublisher(a.logger.With("component", "events")))
		case config.SinkRedis:
			client, err := events.ConnectRedis(ctx, a.cfg.Events.Redis.URL)
			if err != nil {
				return nil, err
			}
			p := events.NewRedisPublisher(client, a.cfg.Events.Redis.Stream, a.cfg.Events.Redis.MaxLen)
			sinks = append(sinks, p)
			a.closers = append(a.closers, p.Close)
		case config.SinkKafka:
			p, err := events.NewKafkaPublisher(a.cfg.Events.Kafka.Brokers, a.cfg.Events.Kafka.Topic, nil)
			if err != nil {
				return nil, err
			}
			sinks = append(sinks, p)
			a.closers = append(a.closers, p.Close)
		default:
			return nil, fmt.Errorf("unknown event sink %q", name)
		}
	}
	switch len(sinks) {
	case 0:
		return nil, nil
	case 1:
		return sinks[0], nil
	default:
		return sinks, nil
	}
}

// Close releases sinks and the store in reverse order of creation.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
