package cache

import "time"

const (
	defaultCachePrefix           = "odm"
	defaultCacheTTL              = 24 * time.Hour
	defaultMemoryCleanupInterval = 10 * time.Minute
	defaultSQLTable              = "cache_entries"
	defaultDynamoTable           = "odm_cache"
	defaultDynamoRegion          = "us-east-1"
)

// StoreConfig controls how a Store is constructed.
type StoreConfig struct {
	Driver Driver

	// DefaultTTL is used when a call provides ttl <= 0.
	DefaultTTL time.Duration

	// MemoryCleanupInterval controls in-process cache eviction.
	MemoryCleanupInterval time.Duration

	// Prefix namespaces keys on shared backends.
	Prefix string

	// RedisClient is required when DriverRedis is used.
	RedisClient RedisClient

	// SQLDriverName is one of "sqlite", "pgx"/"postgres" or "mysql".
	SQLDriverName string
	SQLDSN        string
	SQLTable      string

	// DynamoClient overrides the client built from DynamoEndpoint/DynamoRegion.
	DynamoClient   DynamoAPI
	DynamoEndpoint string
	DynamoRegion   string
	DynamoTable    string

	// NATSKeyValue is required when DriverNATS is used.
	NATSKeyValue NATSKeyValue
	// NATSBucketTTL trusts the bucket-level TTL instead of per-value envelopes.
	NATSBucketTTL bool

	// Compression and MaxValueBytes shape values before they reach the backend.
	Compression   CompressionCodec
	MaxValueBytes int

	// EncryptionKey enables AES-GCM encryption of values when set.
	EncryptionKey []byte
}

func (c StoreConfig) withDefaults() StoreConfig {
	if c.Driver == "" {
		c.Driver = DriverMemory
	}
	if c.DefaultTTL <= 0 {
		c.DefaultTTL = defaultCacheTTL
	}
	if c.MemoryCleanupInterval <= 0 {
		c.MemoryCleanupInterval = defaultMemoryCleanupInterval
	}
	if c.Prefix == "" {
		c.Prefix = defaultCachePrefix
	}
	if c.SQLTable == "" {
		c.SQLTable = defaultSQLTable
	}
	if c.DynamoTable == "" {
		c.DynamoTable = defaultDynamoTable
	}
	if c.DynamoRegion == "" {
		c.DynamoRegion = defaultDynamoRegion
	}
	if c.Compression == "" {
		c.Compression = CompressionNone
	}
	return c
}
