package cache

import "context"

// NewStore returns a concrete store for the requested driver.
// Caller is responsible for providing any driver-specific dependencies.
// Construction failures are reported by every call on the returned store.
//
// Example: select driver explicitly
//
//	ctx := context.Background()
//	store := cache.NewStore(ctx, cache.StoreConfig{
//		Driver: cache.DriverMemory,
//	})
//	fmt.Println(store.Driver()) // memory
func NewStore(ctx context.Context, cfg StoreConfig) Store {
	cfg = cfg.withDefaults()
	var (
		store Store
		err   error
	)
	switch cfg.Driver {
	case DriverNull:
		store = newNullStore()
	case DriverRedis:
		store = newRedisStore(cfg.RedisClient, cfg.DefaultTTL, cfg.Prefix)
	case DriverSQL:
		store, err = newSQLStore(cfg)
	case DriverDynamo:
		store, err = newDynamoStore(ctx, cfg)
	case DriverNATS:
		store = newNATSStore(cfg.NATSKeyValue, cfg.DefaultTTL, cfg.Prefix, cfg.NATSBucketTTL)
	default:
		store = newMemoryStore(cfg.DefaultTTL, cfg.MemoryCleanupInterval)
	}
	if err != nil {
		return &errorStore{driver: cfg.Driver, err: err}
	}
	zip, err := newCompressor(cfg.Compression)
	if err != nil {
		return &errorStore{driver: cfg.Driver, err: err}
	}
	seal, err := newSealer(cfg.EncryptionKey)
	if err != nil {
		return &errorStore{driver: cfg.Driver, err: err}
	}
	store = wrapStore(store, zip, newSizeLimit(cfg.MaxValueBytes), seal)
	return store
}

// NewStoreWith builds a store using a driver and a set of functional options.
// Required data (e.g., Redis client) must be provided via options when needed.
//
// Example: redis store (options)
//
//	redisClient := redis.NewClient(&redis.Options{Addr: "127.0.0.1:6379"})
//	store := cache.NewStoreWith(ctx, cache.DriverRedis,
//		cache.WithRedisClient(redisClient),
//		cache.WithPrefix("odm"),
//	)
//	fmt.Println(store.Driver()) // redis
func NewStoreWith(ctx context.Context, driver Driver, opts ...StoreOption) Store {
	cfg := StoreConfig{Driver: driver}
	for _, opt := range opts {
		cfg = opt(cfg)
	}
	return NewStore(ctx, cfg)
}

// NewMemoryStore is a convenience for an in-process store with optional overrides.
func NewMemoryStore(ctx context.Context, opts ...StoreOption) Store {
	return NewStoreWith(ctx, DriverMemory, opts...)
}

// NewNullStore returns a store that never holds anything.
func NewNullStore(ctx context.Context, opts ...StoreOption) Store {
	return NewStoreWith(ctx, DriverNull, opts...)
}

// NewRedisStore is a convenience for a redis-backed store. Redis client is required.
//
// Example: redis helper
//
//	redisClient := redis.NewClient(&redis.Options{Addr: "127.0.0.1:6379"})
//	store := cache.NewRedisStore(ctx, redisClient, cache.WithPrefix("odm"))
//	fmt.Println(store.Driver()) // redis
func NewRedisStore(ctx context.Context, client RedisClient, opts ...StoreOption) Store {
	return NewStoreWith(ctx, DriverRedis, append([]StoreOption{WithRedisClient(client)}, opts...)...)
}

// NewSQLStore is a convenience for a database/sql backed store.
func NewSQLStore(ctx context.Context, driverName, dsn, table string, opts ...StoreOption) Store {
	return NewStoreWith(ctx, DriverSQL, append([]StoreOption{WithSQL(driverName, dsn, table)}, opts...)...)
}

// NewDynamoStore is a convenience for a DynamoDB-backed store.
func NewDynamoStore(ctx context.Context, client DynamoAPI, table string, opts ...StoreOption) Store {
	return NewStoreWith(ctx, DriverDynamo, append([]StoreOption{WithDynamoClient(client), WithDynamoTable(table)}, opts...)...)
}

// NewNATSStore is a convenience for a NATS JetStream key-value backed store.
func NewNATSStore(ctx context.Context, kv NATSKeyValue, opts ...StoreOption) Store {
	return NewStoreWith(ctx, DriverNATS, append([]StoreOption{WithNATSKeyValue(kv, false)}, opts...)...)
}
