package cli

import (
	"context"
	"sync"

	"github.com/turtacn/rxntd/internal/application/transform"
	"github.com/turtacn/rxntd/internal/config"
	"github.com/turtacn/rxntd/internal/domain/descriptor"
	"github.com/turtacn/rxntd/internal/infrastructure/cache"
	"github.com/turtacn/rxntd/internal/infrastructure/database/postgres"
	"github.com/turtacn/rxntd/internal/infrastructure/database/redis"
	"github.com/turtacn/rxntd/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/rxntd/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/rxntd/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/rxntd/internal/infrastructure/storage/minio"
	"github.com/turtacn/rxntd/pkg/errors"
)

// pipelineOptions selects the optional outputs of a run.
type pipelineOptions struct {
	Postgres bool
	Publish  bool
}

// pipeline is a wired transform service plus the backends it was built
// from. Close releases them in reverse order.
type pipeline struct {
	cfg     *config.Config
	logger  logging.Logger
	svcOpts []transform.Option

	mu      sync.RWMutex
	service transform.Service

	objects minio.ObjectStorageRepository
	redis   *redis.Client
	metrics prometheus.MetricsCollector
	closers []func() error
}

// buildFamilies returns the descriptor families in schema order.
func buildFamilies(cfg *config.Config) ([]descriptor.Family, error) {
	var (
		table *descriptor.PatternTable
		err   error
	)
	if cfg.Pipeline.PatternTable != "" {
		table, err = descriptor.LoadPatternTableFile(cfg.Pipeline.PatternTable)
	} else {
		table, err = descriptor.DefaultPatternTable()
	}
	if err != nil {
		return nil, err
	}
	families := []descriptor.Family{
		descriptor.NewElementalFamily(),
		descriptor.NewTopologicalFamily(),
		descriptor.NewFragmentFamily(table),
	}
	if _, err := descriptor.NewSchema(families...); err != nil {
		return nil, err
	}
	return families, nil
}

func buildPipeline(ctx context.Context, cc *CLIContext, opts pipelineOptions) (p *pipeline, err error) {
	cfg := cc.Config
	log := cc.Logger
	p = &pipeline{cfg: cfg, logger: log}
	defer func() {
		if err != nil {
			p.Close(ctx)
			p = nil
		}
	}()

	families, err := buildFamilies(cfg)
	if err != nil {
		return p, err
	}

	var svcOpts []transform.Option

	if cfg.Metrics.Enabled {
		collector, err := prometheus.NewMetricsCollector(cfg.Metrics.CollectorConfig, log)
		if err != nil {
			return p, err
		}
		p.metrics = collector
		svcOpts = append(svcOpts, transform.WithMetrics(prometheus.NewPipelineMetrics(collector)))
	}

	if cfg.Cache.Redis.Enabled {
		client, err := redis.NewClient(&cfg.Cache.Redis.RedisConfig, log)
		if err != nil {
			return p, err
		}
		p.redis = client
		p.closers = append(p.closers, client.Close)
	}

	if cfg.Cache.Enabled {
		memory := cache.NewMemoryCache(cfg.Cache.MemoryTTL, cfg.Cache.MemoryCleanup)
		var shared cache.Store
		if p.redis != nil {
			shared = redis.NewVectorCache(p.redis, log, redis.WithDefaultTTL(cfg.Cache.VectorTTL))
		}
		svcOpts = append(svcOpts, transform.WithCache(cache.NewLayeredCache(memory, shared, cfg.Cache.MemoryTTL, log)))
	}

	if cfg.Storage.MinIO.Enabled {
		client, err := minio.NewMinIOClient(&cfg.Storage.MinIO.MinIOConfig, log)
		if err != nil {
			return p, err
		}
		p.objects = minio.NewMinIORepository(client, log)
		p.closers = append(p.closers, client.Close)
	}

	if opts.Postgres {
		sink, err := p.buildFeatureSink(ctx)
		if err != nil {
			return p, err
		}
		svcOpts = append(svcOpts, transform.WithRowSink(sink))
	}

	if opts.Publish {
		pub, err := p.buildRunPublisher(ctx)
		if err != nil {
			return p, err
		}
		svcOpts = append(svcOpts, transform.WithRunPublisher(pub))
	}

	p.svcOpts = svcOpts
	p.service = p.newService(families)
	return p, nil
}

func (p *pipeline) newService(families []descriptor.Family) transform.Service {
	return transform.NewService(families, p.logger, &transform.ServiceConfig{
		Concurrency: p.cfg.Worker.Concurrency,
		ItemTimeout: p.cfg.Worker.ItemTimeout,
		CacheTTL:    p.cfg.Cache.VectorTTL,
		SlowPhase:   p.cfg.Worker.SlowPhase,
	}, p.svcOpts...)
}

// Service returns the current transform service. Runs already in flight
// keep the service they started with.
func (p *pipeline) Service() transform.Service {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.service
}

// reloadFamilies rebuilds the service from the pattern table named by cfg.
// The current service stays in place when the table cannot be loaded.
func (p *pipeline) reloadFamilies(cfg *config.Config) error {
	families, err := buildFamilies(cfg)
	if err != nil {
		return err
	}
	svc := p.newService(families)
	p.mu.Lock()
	p.service = svc
	p.mu.Unlock()
	p.logger.Info("descriptor families reloaded",
		logging.String("pattern_table", cfg.Pipeline.PatternTable),
		logging.Int("fragments", len(families[len(families)-1].FeatureNames())))
	return nil
}

func (p *pipeline) buildFeatureSink(ctx context.Context) (*postgres.FeatureSink, error) {
	pg := p.cfg.Database.Postgres
	if !pg.Enabled {
		return nil, errors.New(errors.ErrCodeFeatureDisabled, "--postgres requires database.postgres.enabled")
	}
	if pg.AutoMigrate {
		if err := postgres.RunMigrations(pg.PostgresConfig); err != nil {
			return nil, err
		}
	}
	pool, err := postgres.NewConnectionPool(ctx, pg.PostgresConfig, p.logger)
	if err != nil {
		return nil, err
	}
	p.closers = append(p.closers, func() error {
		pool.Close()
		return nil
	})
	return postgres.NewFeatureSink(pool, p.logger), nil
}

func (p *pipeline) buildRunPublisher(ctx context.Context) (*kafka.RunPublisher, error) {
	k := p.cfg.Messaging.Kafka
	if !k.Enabled {
		return nil, errors.New(errors.ErrCodeFeatureDisabled, "publishing requires messaging.kafka.enabled")
	}
	topics := k.Topics()
	if k.EnsureTopics {
		if err := ensureTopics(ctx, k.Config, p.logger); err != nil {
			return nil, err
		}
	}
	producer, err := kafka.NewProducer(k.ProducerConfig(), p.logger)
	if err != nil {
		return nil, err
	}
	pub := kafka.NewRunPublisher(producer, topics, "rxntd", p.logger)
	p.closers = append(p.closers, pub.Close)
	return pub, nil
}

func ensureTopics(ctx context.Context, k kafka.Config, log logging.Logger) error {
	tm, err := kafka.NewTopicManager(k.Brokers, log)
	if err != nil {
		return err
	}
	defer tm.Close()
	return tm.EnsureTopics(ctx, kafka.DefaultTopics(k.Topics()))
}

// flushMetrics exports the registry to the configured textfile and
// Pushgateway. Export failures are logged, never returned.
func (p *pipeline) flushMetrics(ctx context.Context) {
	if p.metrics == nil {
		return
	}
	m := p.cfg.Metrics
	if m.TextfilePath != "" {
		if err := p.metrics.WriteTextfile(m.TextfilePath); err != nil {
			p.logger.Warn("metrics textfile export failed", logging.Err(err))
		}
	}
	if m.PushGatewayURL != "" {
		if err := p.metrics.Push(context.WithoutCancel(ctx), m.PushGatewayURL, m.PushJob); err != nil {
			p.logger.Warn("metrics push failed", logging.Err(err))
		}
	}
}

// Close flushes metrics and releases every backend.
func (p *pipeline) Close(ctx context.Context) {
	p.flushMetrics(ctx)
	for i := len(p.closers) - 1; i >= 0; i-- {
		if err := p.closers[i](); err != nil {
			p.logger.Warn("close failed", logging.Err(err))
		}
	}
	p.closers = nil
	_ = p.logger.Sync()
}
