package main

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/alexanderjulianmartinez/dsroute/internal/backend/objstore"
	"github.com/alexanderjulianmartinez/dsroute/internal/backend/odp"
	"github.com/alexanderjulianmartinez/dsroute/internal/backend/sqlcat"
	"github.com/alexanderjulianmartinez/dsroute/internal/config"
	"github.com/alexanderjulianmartinez/dsroute/internal/notify/kafka"
	"github.com/alexanderjulianmartinez/dsroute/internal/router"
)

// session is a router plus the resources it holds open.
type session struct {
	router  *router.Router
	closers []func() error
}

func (s *session) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func openSession(ctx context.Context, cfg *config.Config, log *zap.Logger, observers ...router.Observer) (*session, error) {
	s := &session{}
	var b router.Backends

	var client *odp.Client
	if cfg.UsesODP() {
		var err error
		client, err = odp.New(odp.Config{
			BaseURL:   cfg.ODP.BaseURL,
			APIKey:    cfg.ODP.APIKey,
			Timeout:   cfg.ODP.Timeout,
			RateLimit: cfg.ODP.RateLimit,
			RateBurst: cfg.ODP.RateBurst,
		})
		if err != nil {
			return nil, err
		}
	}

	switch cfg.Tabular.Type {
	case "odp":
		b.Schemas, b.Tables = client, client
	default:
		cat, err := sqlcat.Open(ctx, sqlcat.Config{
			Dialect:     cfg.Tabular.Type,
			DSN:         cfg.Tabular.DSN,
			TablePrefix: cfg.Tabular.TablePrefix,
			Timeout:     cfg.Tabular.Timeout,
		})
		if err != nil {
			return nil, fmt.Errorf("open tabular catalog: %w", err)
		}
		s.closers = append(s.closers, cat.Close)
		b.Schemas, b.Tables = cat, cat
	}

	switch cfg.Files.Type {
	case "odp":
		b.Files, b.Objects = client, client
	default:
		store, err := objstore.New(objstore.Config{
			Endpoint:  cfg.Files.Endpoint,
			Region:    cfg.Files.Region,
			AccessKey: cfg.Files.AccessKey,
			SecretKey: cfg.Files.SecretKey,
			Bucket:    cfg.Files.Bucket,
			Prefix:    cfg.Files.Prefix,
			UseSSL:    cfg.Files.UseSSL,
		})
		if err != nil {
			_ = s.Close()
			return nil, err
		}
		b.Files, b.Objects = store, store
	}

	opts := []router.Option{router.WithLogger(log)}
	if len(cfg.Events.Brokers) > 0 {
		pub, err := kafka.New(cfg.Events.Brokers, cfg.Events.Topic, log)
		if err != nil {
			_ = s.Close()
			return nil, err
		}
		s.closers = append(s.closers, pub.Close)
		opts = append(opts, router.WithObserver(pub))
	}
	for _, o := range observers {
		opts = append(opts, router.WithObserver(o))
	}

	r, err := router.New(routerConfig(cfg.Router), b, opts...)
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	s.router = r
	return s, nil
}

func routerConfig(c config.RouterConfig) router.Config {
	return router.Config{
		CacheTTL:  c.CacheTTL,
		CacheSize: c.CacheSize,
		Retry: router.RetryPolicy{
			MaxAttempts:    c.Retry.MaxAttempts,
			InitialBackoff: c.Retry.InitialBackoff,
			MaxBackoff:     c.Retry.MaxBackoff,
			Multiplier:     c.Retry.Multiplier,
			MaxWait:        c.Retry.MaxWait,
		},
	}
}

