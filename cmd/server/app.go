package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/warp/attendance-engine/api"
	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/config"
	"github.com/warp/attendance-engine/factory"
	"github.com/warp/attendance-engine/incident"
	"github.com/warp/attendance-engine/otp"
	"github.com/warp/attendance-engine/store/postgres"
	"github.com/warp/attendance-engine/store/sqlite"
)

// backend is what both store packages provide.
type backend interface {
	attendance.Store
	attendance.Directory
	attendance.Catalog
	attendance.AnomalyLog
	api.Backend
	Close() error
}

// app holds the wired dependencies of one command run.
type app struct {
	store     backend
	engine    *attendance.Engine
	catalog   *factory.Factory
	publisher incident.Publisher
	closers   []func() error
}

func newApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*app, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	a := &app{}
	if a.catalog, err = factory.New(); err != nil {
		return nil, err
	}

	if a.store, err = openStore(ctx, cfg); err != nil {
		return nil, err
	}
	a.closers = append(a.closers, a.store.Close)
	logger.Info("store opened", zap.String("driver", cfg.Database.Driver))

	var codes otp.Store = otp.NewMemory()
	if cfg.Redis.URL != "" {
		rdb, err := otp.NewRedis(cfg.Redis.URL, logger)
		if err != nil {
			a.Close()
			return nil, err
		}
		codes = rdb
		a.closers = append(a.closers, rdb.Close)
	}

	a.publisher = incident.NewLogPublisher(logger)
	if cfg.RabbitMQ.URL != "" {
		rabbit, err := incident.NewRabbitMQPublisher(cfg.RabbitMQ.URL, logger)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.publisher = incident.NewBreakerPublisher(rabbit, incident.BreakerConfig{
			MaxRequests:      cfg.Breaker.MaxRequests,
			Interval:         cfg.Breaker.Interval,
			Timeout:          cfg.Breaker.Timeout,
			FailureThreshold: cfg.Breaker.FailureThreshold,
		}, logger)
	}
	a.closers = append(a.closers, a.publisher.Close)

	dispatcher := incident.NewDispatcher(a.publisher,
		incident.WithCodes(codes),
		incident.WithLogger(logger),
	)

	a.engine = attendance.NewEngine(a.store, a.store, a.store,
		attendance.WithAnomalyLog(a.store),
		attendance.WithAnomalyHandler(dispatcher),
		attendance.WithCodeRedeemer(codes),
		attendance.WithLocation(loc),
		attendance.WithLogger(logger),
	)

	if cfg.Catalog.File != "" {
		if err := a.applyCatalogFile(ctx, cfg.Catalog.File); err != nil {
			a.Close()
			return nil, err
		}
		logger.Info("catalog applied", zap.String("file", cfg.Catalog.File))
	}

	return a, nil
}

func openStore(ctx context.Context, cfg *config.Config) (backend, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	switch cfg.Database.Driver {
	case "postgres":
		return postgres.New(ctx, cfg.Database.DSN,
			postgres.WithLocation(loc),
			postgres.WithDefaultTolerances(cfg.Tolerance),
			postgres.WithMaxConns(cfg.Database.MaxConns),
		)
	default:
		if cfg.Database.DSN != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(cfg.Database.DSN), 0o755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
		return sqlite.New(cfg.Database.DSN,
			sqlite.WithLocation(loc),
			sqlite.WithDefaultTolerances(cfg.Tolerance),
		)
	}
}

func (a *app) applyCatalogFile(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read catalog: %w", err)
	}
	return a.applyCatalog(ctx, data)
}

func (a *app) applyCatalog(ctx context.Context, data []byte) error {
	cat, err := a.catalog.Parse(data)
	if err != nil {
		return err
	}
	return factory.Apply(ctx, cat, a.store)
}

// Close releases everything in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && log != nil {
			log.Warn("close failed", zap.Error(err))
		}
	}
}
