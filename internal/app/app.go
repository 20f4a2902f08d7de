// Package app wires configuration into a ready registry: document store,
// cache, geocoder and, when redis is configured, the help desk.
package app

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/goforj/odm"
	"github.com/goforj/odm/cache"
	"github.com/goforj/odm/docstore"
	"github.com/goforj/odm/geo"
	"github.com/goforj/odm/geo/nominatim"
	"github.com/goforj/odm/helpdesk"
	"github.com/goforj/odm/internal/config"
	"github.com/goforj/odm/metrics"
)

// App holds the wired components. Close releases them.
type App struct {
	Config   config.Config
	Logger   *zap.Logger
	Registry *odm.Registry
	DB       docstore.Database
	Cache    *cache.Cache
	Redis    *redis.Client
	Desk     *helpdesk.Desk

	closers []func() error
}

// Option adjusts Bootstrap.
type Option func(*options)

type options struct {
	registerer prometheus.Registerer
	resolver   geo.Resolver
}

// WithMetrics registers cache metrics with reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(o *options) { o.registerer = reg }
}

// WithResolver replaces the configured geocoder.
func WithResolver(r geo.Resolver) Option {
	return func(o *options) { o.resolver = r }
}

// Bootstrap loads the model definitions, connects the store and cache,
// bounds redis memory when redis is used and registers every kind.
func Bootstrap(ctx context.Context, cfg config.Config, logger *zap.Logger, opts ...Option) (_ *App, err error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{Config: cfg, Logger: logger}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	defs, err := odm.LoadDefinitions(cfg.Models)
	if err != nil {
		return nil, err
	}
	if a.DB, err = openDatabase(ctx, cfg.Store); err != nil {
		return nil, fmt.Errorf("app: store: %w", err)
	}
	a.closers = append(a.closers, a.DB.Close)

	store, err := a.openCacheStore(ctx, cfg.Cache)
	if err != nil {
		return nil, fmt.Errorf("app: cache: %w", err)
	}
	a.Cache = cache.NewCacheWithTTL(store, cfg.Cache.TTL)
	if o.registerer != nil {
		a.Cache.WithObserver(metrics.NewCacheObserver(o.registerer))
	}

	resolver := o.resolver
	if resolver == nil {
		if resolver, err = newResolver(cfg.Geocoder); err != nil {
			return nil, fmt.Errorf("app: geocoder: %w", err)
		}
	}
	a.Registry = odm.NewRegistry(
		odm.WithLogger(logger.Named("odm")),
		odm.WithResolver(resolver),
		odm.WithRetryPolicy(geo.RetryPolicy{MaxAttempts: cfg.Geocoder.MaxAttempts, Delay: cfg.Geocoder.Delay}),
		odm.WithCacheTTL(cfg.Cache.TTL),
	)
	if err := a.Registry.InitDefinitions(ctx, defs, a.DB, a.Cache); err != nil {
		return nil, err
	}

	if a.Redis != nil {
		a.Desk, err = helpdesk.New(a.Redis, helpdesk.Config{
			SessionTTL: cfg.Helpdesk.SessionTTL,
			Logger:     logger.Named("helpdesk"),
		})
		if err != nil {
			return nil, err
		}
	}
	logger.Info("odm ready",
		zap.Strings("kinds", a.Registry.Kinds()),
		zap.String("store", cfg.Store.Driver),
		zap.String("cache", string(a.Cache.Driver())))
	return a, nil
}

// Close releases connections in reverse order of creation.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func openDatabase(ctx context.Context, cfg config.Store) (docstore.Database, error) {
	switch cfg.Driver {
	case "memory":
		return docstore.NewMemoryDatabase(), nil
	case "dynamodb":
		return docstore.OpenDynamo(ctx, cfg.Region, cfg.Endpoint, cfg.TablePrefix)
	default:
		return docstore.OpenSQL(ctx, cfg.Driver, cfg.DSN, docstore.WithTablePrefix(cfg.TablePrefix))
	}
}

func (a *App) openCacheStore(ctx context.Context, cfg config.Cache) (cache.Store, error) {
	opts := []cache.StoreOption{
		cache.WithPrefix(cfg.Prefix),
		cache.WithDefaultTTL(cfg.TTL),
	}
	if cfg.Compression != "" {
		opts = append(opts, cache.WithCompression(cache.CompressionCodec(cfg.Compression)))
	}
	if cfg.EncryptionKey != "" {
		key, err := hex.DecodeString(cfg.EncryptionKey)
		if err != nil {
			return nil, fmt.Errorf("encryption key: %w", err)
		}
		opts = append(opts, cache.WithEncryptionKey(key))
	}

	var store cache.Store
	switch cfg.Driver {
	case "null":
		store = cache.NewNullStore(ctx, opts...)
	case "redis":
		redisOpts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("redis url: %w", err)
		}
		a.Redis = redis.NewClient(redisOpts)
		a.closers = append(a.closers, a.Redis.Close)
		if err := cache.ConfigureRedisEviction(ctx, a.Redis, cfg.MaxMemory, cache.EvictionPolicy(cfg.EvictionPolicy)); err != nil {
			return nil, err
		}
		store = cache.NewRedisStore(ctx, a.Redis, opts...)
	case "sql":
		store = cache.NewSQLStore(ctx, cfg.SQLDriver, cfg.SQLDSN, cfg.SQLTable, opts...)
	case "dynamodb":
		opts = append(opts,
			cache.WithDynamoEndpoint(cfg.DynamoEndpoint, cfg.DynamoRegion),
			cache.WithDynamoTable(cfg.DynamoTable))
		store = cache.NewStoreWith(ctx, cache.DriverDynamo, opts...)
	case "nats":
		kv, err := a.openNATSBucket(cfg.NATSURL, cfg.NATSBucket)
		if err != nil {
			return nil, err
		}
		store = cache.NewNATSStore(ctx, kv, opts...)
	default:
		store = cache.NewMemoryStore(ctx, opts...)
	}
	// construction failures surface on first use; ping so Bootstrap fails fast
	if _, _, err := store.Get(ctx, "odm:ping"); err != nil {
		return nil, err
	}
	return store, nil
}

func (a *App) openNATSBucket(url, bucket string) (nats.KeyValue, error) {
	nc, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	a.closers = append(a.closers, func() error { nc.Close(); return nil })
	js, err := nc.JetStream()
	if err != nil {
		return nil, fmt.Errorf("nats jetstream: %w", err)
	}
	kv, err := js.KeyValue(bucket)
	if errors.Is(err, nats.ErrBucketNotFound) {
		kv, err = js.CreateKeyValue(&nats.KeyValueConfig{Bucket: bucket})
	}
	if err != nil {
		return nil, fmt.Errorf("nats bucket %s: %w", bucket, err)
	}
	return kv, nil
}

func newResolver(cfg config.Geocoder) (geo.Resolver, error) {
	if cfg.Provider == "static" {
		points := make(map[string]geo.Point, len(cfg.Static))
		for addr, ll := range cfg.Static {
			p, err := geo.NewPoint(ll[0], ll[1])
			if err != nil {
				return nil, fmt.Errorf("static %q: %w", addr, err)
			}
			points[addr] = p
		}
		return geo.NewStaticResolver(points), nil
	}
	var opts []nominatim.Option
	if cfg.BaseURL != "" {
		opts = append(opts, nominatim.WithBaseURL(cfg.BaseURL))
	}
	return nominatim.New(cfg.UserAgent, opts...)
}
