package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the full service configuration, read from the environment.
type Config struct {
	Server    Server
	Postgres  PostgresConfig
	Redis     RedisConfig
	Kafka     KafkaConfig
	Geocoder  GeocoderConfig
	Targeting TargetingConfig
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string        `env:"TARGETING_ADDR"   envDefault:":8080"`
	JWTSigningKey   string        `env:"JWT_SIGNING_KEY"  envDefault:"dev-secret-key-change-in-production"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"15s"`
	LogLevel        string        `env:"LOG_LEVEL"        envDefault:"info"`
}

type PostgresConfig struct {
	URL             string        `env:"DATABASE_URL"`
	MaxOpenConns    int           `env:"DATABASE_MAX_OPEN_CONNS"    envDefault:"25"`
	MaxIdleConns    int           `env:"DATABASE_MAX_IDLE_CONNS"    envDefault:"5"`
	ConnMaxLifetime time.Duration `env:"DATABASE_CONN_MAX_LIFETIME" envDefault:"30m"`
}

// RedisConfig configures the optional geocode cache. An empty URL disables it.
type RedisConfig struct {
	URL          string        `env:"REDIS_URL"`
	PoolSize     int           `env:"REDIS_POOL_SIZE"      envDefault:"10"`
	MinIdleConns int           `env:"REDIS_MIN_IDLE_CONNS" envDefault:"2"`
	DialTimeout  time.Duration `env:"REDIS_DIAL_TIMEOUT"   envDefault:"5s"`
	ReadTimeout  time.Duration `env:"REDIS_READ_TIMEOUT"   envDefault:"3s"`
	WriteTimeout time.Duration `env:"REDIS_WRITE_TIMEOUT"  envDefault:"3s"`
	GeocodeTTL   time.Duration `env:"GEOCODE_CACHE_TTL"    envDefault:"24h"`
}

// KafkaConfig configures batch event publication.
type KafkaConfig struct {
	Enabled bool     `env:"KAFKA_ENABLED" envDefault:"false"`
	Brokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`
	Topic   string   `env:"KAFKA_BATCH_TOPIC" envDefault:"invitation-batches"`
}

type GeocoderConfig struct {
	BaseURL          string        `env:"GEOCODER_BASE_URL"          envDefault:"https://api.postcodes.io"`
	Timeout          time.Duration `env:"GEOCODER_TIMEOUT"           envDefault:"5s"`
	FailureThreshold int           `env:"GEOCODER_FAILURE_THRESHOLD" envDefault:"5"`
	SuccessThreshold int           `env:"GEOCODER_SUCCESS_THRESHOLD" envDefault:"1"`
	Cooldown         time.Duration `env:"GEOCODER_COOLDOWN"          envDefault:"30s"`
}

// TargetingConfig bounds the fan-out and timeouts of a targeting run.
type TargetingConfig struct {
	QueryConcurrency   int           `env:"TARGETING_QUERY_CONCURRENCY"   envDefault:"200"`
	CommitConcurrency  int           `env:"TARGETING_COMMIT_CONCURRENCY"  envDefault:"100"`
	StoreCallTimeout   time.Duration `env:"TARGETING_STORE_CALL_TIMEOUT"  envDefault:"5s"`
	MaxFailureRatio    float64       `env:"TARGETING_MAX_FAILURE_RATIO"   envDefault:"0.1"`
	PageSize           int           `env:"TARGETING_PAGE_SIZE"           envDefault:"500"`
	MaxRadiusMiles     float64       `env:"TARGETING_MAX_RADIUS_MILES"    envDefault:"100"`
	RandomiseSelection bool          `env:"TARGETING_RANDOMISE_SELECTION" envDefault:"true"`
}

// Load reads the configuration from the environment.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Targeting.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// PooledTargeting returns the targeting settings with both fan-outs capped
// at the Postgres pool size when a database is configured. A call waiting
// for a pooled connection spends its store call timeout while it waits.
func (c Config) PooledTargeting() TargetingConfig {
	t := c.Targeting
	if c.Postgres.URL == "" || c.Postgres.MaxOpenConns <= 0 {
		return t
	}
	t.QueryConcurrency = min(t.QueryConcurrency, c.Postgres.MaxOpenConns)
	t.CommitConcurrency = min(t.CommitConcurrency, c.Postgres.MaxOpenConns)
	return t
}

func (t TargetingConfig) validate() error {
	if t.QueryConcurrency <= 0 || t.CommitConcurrency <= 0 {
		return fmt.Errorf("targeting concurrency must be positive")
	}
	if t.MaxFailureRatio < 0 || t.MaxFailureRatio > 1 {
		return fmt.Errorf("targeting max failure ratio must be within [0,1], got %v", t.MaxFailureRatio)
	}
	if t.PageSize <= 0 {
		return fmt.Errorf("targeting page size must be positive")
	}
	if t.MaxRadiusMiles <= 0 {
		return fmt.Errorf("targeting max radius must be positive")
	}
	return nil
}
