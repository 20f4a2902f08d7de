// Package config loads the odm command's YAML configuration and applies
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variables consulted by Apply.
const (
	EnvModels       = "ODM_MODELS"
	EnvStoreDriver  = "ODM_STORE_DRIVER"
	EnvStoreDSN     = "ODM_STORE_DSN"
	EnvCacheDriver  = "ODM_CACHE_DRIVER"
	EnvRedisURL     = "ODM_REDIS_URL"
	EnvNATSURL      = "ODM_NATS_URL"
	EnvGeocoderUA   = "ODM_GEOCODER_USER_AGENT"
	EnvDebugLogging = "ODM_DEBUG"
)

// Config is the full application configuration.
type Config struct {
	Models   string   `yaml:"models"`
	Debug    bool     `yaml:"debug"`
	Store    Store    `yaml:"store"`
	Cache    Cache    `yaml:"cache"`
	Geocoder Geocoder `yaml:"geocoder"`
	Helpdesk Helpdesk `yaml:"helpdesk"`
}

// Store selects the document store. Driver is memory, sqlite, pgx, mysql or dynamodb.
type Store struct {
	Driver      string `yaml:"driver"`
	DSN         string `yaml:"dsn"`
	TablePrefix string `yaml:"table_prefix"`
	Region      string `yaml:"region"`
	Endpoint    string `yaml:"endpoint"`
}

// Cache selects the cache backend. Driver is memory, redis, sql, dynamodb, nats or null.
type Cache struct {
	Driver         string        `yaml:"driver"`
	Prefix         string        `yaml:"prefix"`
	TTL            time.Duration `yaml:"ttl"`
	RedisURL       string        `yaml:"redis_url"`
	MaxMemory      string        `yaml:"max_memory"`
	EvictionPolicy string        `yaml:"eviction_policy"`
	SQLDriver      string        `yaml:"sql_driver"`
	SQLDSN         string        `yaml:"sql_dsn"`
	SQLTable       string        `yaml:"sql_table"`
	DynamoTable    string        `yaml:"dynamo_table"`
	DynamoRegion   string        `yaml:"dynamo_region"`
	DynamoEndpoint string        `yaml:"dynamo_endpoint"`
	NATSURL        string        `yaml:"nats_url"`
	NATSBucket     string        `yaml:"nats_bucket"`
	Compression    string        `yaml:"compression"`
	EncryptionKey  string        `yaml:"encryption_key"`
}

// Geocoder selects the address resolver. Provider is nominatim or static.
type Geocoder struct {
	Provider    string        `yaml:"provider"`
	UserAgent   string        `yaml:"user_agent"`
	BaseURL     string        `yaml:"base_url"`
	MaxAttempts int           `yaml:"max_attempts"`
	Delay       time.Duration `yaml:"delay"`
	// Static maps addresses to [lat, lon] for the static provider.
	Static map[string][2]float64 `yaml:"static"`
}

type Helpdesk struct {
	SessionTTL time.Duration `yaml:"session_ttl"`
}

// Default returns the configuration used when no file is given: everything
// in process, geocoding through the public Nominatim instance.
func Default() Config {
	return Config{
		Models: "models.yml",
		Store:  Store{Driver: "memory", TablePrefix: "odm_", Region: "us-east-1"},
		Cache: Cache{
			Driver:         "memory",
			Prefix:         "odm",
			TTL:            24 * time.Hour,
			MaxMemory:      "150mb",
			EvictionPolicy: "volatile-lru",
			NATSBucket:     "odm",
		},
		Geocoder: Geocoder{Provider: "nominatim", UserAgent: "goforj-odm", Delay: time.Second},
		Helpdesk: Helpdesk{SessionTTL: 24 * time.Hour},
	}
}

// Load reads path over Default and applies environment overrides. An empty
// path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	if err := cfg.Apply(os.LookupEnv); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

// Apply overrides fields from the environment, read through lookup.
func (c *Config) Apply(lookup func(string) (string, bool)) error {
	set := func(env string, dst *string) {
		if v, ok := lookup(env); ok && v != "" {
			*dst = v
		}
	}
	set(EnvModels, &c.Models)
	set(EnvStoreDriver, &c.Store.Driver)
	set(EnvStoreDSN, &c.Store.DSN)
	set(EnvCacheDriver, &c.Cache.Driver)
	set(EnvRedisURL, &c.Cache.RedisURL)
	set(EnvNATSURL, &c.Cache.NATSURL)
	set(EnvGeocoderUA, &c.Geocoder.UserAgent)
	if v, ok := lookup(EnvDebugLogging); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("config: %s: %w", EnvDebugLogging, err)
		}
		c.Debug = b
	}
	return nil
}

// Validate checks driver names and the settings each driver needs.
func (c Config) Validate() error {
	switch c.Store.Driver {
	case "memory", "dynamodb":
	case "sqlite", "pgx", "mysql":
		if c.Store.DSN == "" {
			return fmt.Errorf("config: store driver %s needs a dsn", c.Store.Driver)
		}
	default:
		return fmt.Errorf("config: unknown store driver %q", c.Store.Driver)
	}
	switch c.Cache.Driver {
	case "memory", "null", "dynamodb":
	case "redis":
		if c.Cache.RedisURL == "" {
			return errors.New("config: redis cache needs redis_url")
		}
	case "sql":
		if c.Cache.SQLDriver == "" || c.Cache.SQLDSN == "" {
			return errors.New("config: sql cache needs sql_driver and sql_dsn")
		}
	case "nats":
		if c.Cache.NATSURL == "" {
			return errors.New("config: nats cache needs nats_url")
		}
	default:
		return fmt.Errorf("config: unknown cache driver %q", c.Cache.Driver)
	}
	switch c.Geocoder.Provider {
	case "nominatim", "static":
	default:
		return fmt.Errorf("config: unknown geocoder provider %q", c.Geocoder.Provider)
	}
	return nil
}
