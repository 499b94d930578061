// internal/cli/app.go
package cli

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	commonaws "capacity-engine/internal/common/aws"
	"capacity-engine/internal/common/cache"
	"capacity-engine/internal/common/clock"
	"capacity-engine/internal/common/config"
	"capacity-engine/internal/common/database"
	"capacity-engine/internal/common/logger"
	"capacity-engine/internal/common/observability"
	"capacity-engine/internal/common/provider"
	alertcircuit "capacity-engine/internal/workers/capacity/alert-circuit"
	calculatecapacity "capacity-engine/internal/workers/capacity/calculate-capacity"
	reconcileavailability "capacity-engine/internal/workers/capacity/reconcile-availability"
	recorddecision "capacity-engine/internal/workers/capacity/record-decision"
	resolvetechnicians "capacity-engine/internal/workers/capacity/resolve-technicians"
)

const identityCachePrefix = "identity:"

// app is the wired engine shared by every subcommand.
type app struct {
	cfg      *config.Config
	zap      *zap.Logger
	log      logger.Logger
	clock    clock.Clock
	obs      *observability.Observability
	cache    cache.Cache
	provider *provider.Client
	resolver *resolvetechnicians.Handler
	calc     *calculatecapacity.Handler
	recorder *recorddecision.Handler
	alerts   *alertcircuit.Handler

	closers []func() error
}

type buildOptions struct {
	// Server wiring: shared cache backend, audit sinks, alerts, otel metrics.
	Server bool
}

func buildApp(ctx context.Context, cfg *config.Config, zapLog *zap.Logger, opts buildOptions) (*app, error) {
	a := &app{
		cfg:   cfg,
		zap:   zapLog,
		log:   logger.NewZapAdapter(zapLog),
		clock: clock.NewReal(),
		obs:   observability.NewNoop(),
	}

	if opts.Server {
		a.obs = observability.New(cfg.App.Name)
		a.closers = append(a.closers, func() error { a.obs.Shutdown(); return nil })
	}

	if err := a.buildCache(ctx, opts); err != nil {
		a.Close()
		return nil, err
	}

	if opts.Server && cfg.Alerts.Enabled() {
		if err := a.buildAlerts(ctx); err != nil {
			a.Close()
			return nil, err
		}
	}

	var onChange func(provider.Transition)
	if a.alerts != nil {
		onChange = a.alerts.OnStateChange
	}
	a.provider = provider.NewClient(provider.ClientOptions{
		Config:        provider.LoadConfig(cfg.Provider),
		Cache:         a.cache,
		Clock:         a.clock,
		Logger:        a.log,
		OnStateChange: onChange,
	})

	a.resolver = resolvetechnicians.NewHandler(
		resolvetechnicians.LoadConfig(cfg.Capacity), a.provider, cache.Prefixed(a.cache, identityCachePrefix), a.log,
	)

	recCfg, err := reconcileavailability.LoadConfig(cfg.Capacity)
	if err != nil {
		a.Close()
		return nil, err
	}
	calcCfg, err := calculatecapacity.LoadConfig(cfg.Capacity)
	if err != nil {
		a.Close()
		return nil, err
	}

	if opts.Server {
		if err := a.buildAudit(ctx); err != nil {
			a.Close()
			return nil, err
		}
	}

	calcOpts := calculatecapacity.HandlerOptions{
		Config:        calcCfg,
		Provider:      a.provider,
		Resolver:      a.resolver,
		Reconciler:    reconcileavailability.NewHandler(recCfg, a.log),
		Cache:         a.cache,
		Clock:         a.clock,
		Logger:        a.log,
		Observability: a.obs,
	}
	if a.recorder != nil && len(a.recorder.Sinks()) > 0 {
		calcOpts.Recorder = a.recorder
	}
	a.calc = calculatecapacity.NewHandler(calcOpts)

	return a, nil
}

func (a *app) buildCache(ctx context.Context, opts buildOptions) error {
	if !opts.Server || a.cfg.Cache.Backend != "redis" {
		a.cache = cache.NewMemory(a.clock)
		return nil
	}

	rdb := database.NewRedis(a.cfg.Database.Redis)
	err := retryWithBackoff(func() error {
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		return rdb.Ping(pingCtx)
	}, 5, time.Second, a.zap, "Redis connection")
	if err != nil {
		_ = rdb.Close()
		return err
	}
	a.closers = append(a.closers, rdb.Close)
	a.cache = cache.NewRedis(rdb.Client, a.cfg.Cache.KeyPrefix)
	a.zap.Info("Redis cache connected", zap.String("address", a.cfg.Database.Redis.Address))
	return nil
}

func (a *app) buildAudit(ctx context.Context) error {
	a.recorder = recorddecision.NewHandler(recorddecision.LoadConfig(a.cfg.Audit), a.log)

	if a.cfg.Audit.Postgres {
		pg, err := database.NewPostgres(a.cfg.Database.Postgres)
		if err != nil {
			return err
		}
		if err := retryWithBackoff(func() error { return pg.Ping(ctx) }, 5, 2*time.Second, a.zap, "Postgres connection"); err != nil {
			_ = pg.Close()
			return err
		}
		a.closers = append(a.closers, pg.Close)

		sink := recorddecision.NewPostgresSink(pg.DB, a.cfg.Audit.Table)
		if err := sink.EnsureSchema(ctx); err != nil {
			return err
		}
		a.recorder.AddSink("postgres", sink)
	}

	if a.cfg.Audit.Elasticsearch {
		es, err := database.NewElasticsearch(a.cfg.Database.Elasticsearch)
		if err != nil {
			return err
		}
		if err := retryWithBackoff(func() error { return es.Ping(ctx) }, 5, 2*time.Second, a.zap, "Elasticsearch connection"); err != nil {
			return err
		}
		a.recorder.AddSink("elasticsearch", recorddecision.NewElasticsearchSink(es.Client, a.cfg.Audit.Index))
	}

	if sinks := a.recorder.Sinks(); len(sinks) > 0 {
		a.zap.Info("Decision audit enabled", zap.Strings("sinks", sinks))
	}
	return nil
}

func (a *app) buildAlerts(ctx context.Context) error {
	alerts := a.cfg.Alerts

	var snsClient alertcircuit.SNSService
	if alerts.SNS.Enabled {
		c, err := commonaws.NewSNSClient(ctx, alerts.Region)
		if err != nil {
			return fmt.Errorf("load AWS config for SNS: %w", err)
		}
		snsClient = c
	}

	var sesClient alertcircuit.SESService
	if alerts.SES.Enabled {
		c, err := commonaws.NewSESClient(ctx, alerts.Region)
		if err != nil {
			return fmt.Errorf("load AWS config for SES: %w", err)
		}
		sesClient = c
	}

	a.alerts = alertcircuit.NewHandler(
		alertcircuit.LoadConfig(a.cfg.App, alerts), snsClient, sesClient, a.clock, a.log,
	)
	return nil
}

// Close releases connections in reverse order of acquisition.
func (a *app) Close() {
	if a.alerts != nil {
		a.alerts.Wait()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.zap.Warn("close failed", zap.Error(err))
		}
	}
	a.closers = nil
}

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}
