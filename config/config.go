package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Config is the root application configuration.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Mongo         MongoConfig         `yaml:"mongo"`
	Redis         RedisConfig         `yaml:"redis"`
	Cache         CacheConfig         `yaml:"cache"`
	Places        PlacesConfig        `yaml:"places"`
	Overpass      OverpassConfig      `yaml:"overpass"`
	Search        SearchConfig        `yaml:"search"`
	Auth          AuthConfig          `yaml:"auth"`
	Webhook       WebhookConfig       `yaml:"webhook"`
	Points        PointsConfig        `yaml:"points"`
	Notifications NotificationsConfig `yaml:"notifications"`
	Log           LogConfig           `yaml:"log"`
	CORS          CORSConfig          `yaml:"cors"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr"             env:"SERVER_ADDR"             env-default:":8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout"     env:"SERVER_READ_TIMEOUT"     env-default:"10s"`
	WriteTimeout    time.Duration `yaml:"write_timeout"    env:"SERVER_WRITE_TIMEOUT"    env-default:"30s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SERVER_SHUTDOWN_TIMEOUT" env-default:"10s"`
}

type MongoConfig struct {
	URI            string        `yaml:"uri"             env:"MONGODB_URI"             env-required:"true"`
	Database       string        `yaml:"database"        env:"MONGODB_DATABASE"        env-default:"snapybara"`
	ConnectTimeout time.Duration `yaml:"connect_timeout" env:"MONGODB_CONNECT_TIMEOUT" env-default:"10s"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"     env:"REDIS_ADDR"     env-default:"localhost:6379"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db"       env:"REDIS_DB"       env-default:"0"`
}

// CacheConfig selects the cache backend. Driver is "redis" or "memory".
type CacheConfig struct {
	Driver          string        `yaml:"driver"           env:"CACHE_DRIVER"           env-default:"redis"`
	Prefix          string        `yaml:"prefix"           env:"CACHE_PREFIX"           env-default:"snapybara:"`
	OpTimeout       time.Duration `yaml:"op_timeout"       env:"CACHE_OP_TIMEOUT"       env-default:"250ms"`
	CleanupInterval time.Duration `yaml:"cleanup_interval" env:"CACHE_CLEANUP_INTERVAL" env-default:"10m"`
}

type PlacesConfig struct {
	APIKey   string        `yaml:"api_key"  env:"PLACES_API_KEY"`
	BaseURL  string        `yaml:"base_url" env:"PLACES_BASE_URL" env-default:"https://maps.googleapis.com/maps/api/place"`
	Language string        `yaml:"language" env:"PLACES_LANGUAGE" env-default:"fr"`
	Timeout  time.Duration `yaml:"timeout"  env:"PLACES_TIMEOUT"  env-default:"5s"`
}

// OverpassConfig configures the open map data provider. An empty URL disables it.
type OverpassConfig struct {
	URL     string        `yaml:"url"     env:"OVERPASS_URL"`
	Timeout time.Duration `yaml:"timeout" env:"OVERPASS_TIMEOUT" env-default:"5s"`
	Limit   int           `yaml:"limit"   env:"OVERPASS_LIMIT"   env-default:"50"`
}

type SearchConfig struct {
	DedupeDistance  float64       `yaml:"dedupe_distance"  env:"SEARCH_DEDUPE_DISTANCE"  env-default:"50"`
	LocalLimit      int           `yaml:"local_limit"      env:"SEARCH_LOCAL_LIMIT"      env-default:"200"`
	ExternalTimeout time.Duration `yaml:"external_timeout" env:"SEARCH_EXTERNAL_TIMEOUT" env-default:"5s"`
}

// AuthConfig describes how bearer tokens issued by the identity provider are verified.
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret" env:"AUTH_JWT_SECRET" env-required:"true"`
	Issuer    string `yaml:"issuer"     env:"AUTH_JWT_ISSUER"`
	Audience  string `yaml:"audience"   env:"AUTH_JWT_AUDIENCE"`
}

type WebhookConfig struct {
	Secret string `yaml:"secret" env:"WEBHOOK_SECRET"`
}

type PointsConfig struct {
	RequireModeration bool `yaml:"require_moderation" env:"POINTS_REQUIRE_MODERATION" env-default:"false"`
}

type NotificationsConfig struct {
	Retention     time.Duration `yaml:"retention"      env:"NOTIFICATION_RETENTION"      env-default:"720h"`
	PurgeSchedule string        `yaml:"purge_schedule" env:"NOTIFICATION_PURGE_SCHEDULE" env-default:"@daily"`
}

type LogConfig struct {
	Level  string `yaml:"level"  env:"LOG_LEVEL"  env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"json"`
}

type CORSConfig struct {
	AllowedOrigins string `yaml:"allowed_origins" env:"CORS_ALLOWED_ORIGINS" env-default:"http://localhost:3000,http://localhost:5173"`
}

// Origins splits AllowedOrigins on commas.
func (c CORSConfig) Origins() []string {
	var origins []string
	for _, o := range strings.Split(c.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

// Load reads an optional .env file, then configuration from a YAML file and
// environment variables. Priority: ENV > YAML > defaults.
// The YAML path comes from CONFIG_PATH (fallback "./config.yaml"); a missing
// default file is not an error.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("config: read .env: %w", err)
	}

	var cfg Config

	path := os.Getenv("CONFIG_PATH")
	explicitPath := path != ""
	if !explicitPath {
		path = "./config.yaml"
	}

	if _, err := os.Stat(path); err == nil {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	} else if explicitPath {
		return nil, fmt.Errorf("config: file %s: %w", path, err)
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("config: read env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error

	switch c.Cache.Driver {
	case "redis", "memory":
	default:
		errs = append(errs, fmt.Errorf("cache.driver: unknown driver %q", c.Cache.Driver))
	}
	if c.Cache.OpTimeout <= 0 {
		errs = append(errs, errors.New("cache.op_timeout: must be positive"))
	}
	if c.Places.Timeout <= 0 || c.Places.Timeout > 30*time.Second {
		errs = append(errs, errors.New("places.timeout: must be in (0, 30s]"))
	}
	if c.Search.DedupeDistance < 0 {
		errs = append(errs, errors.New("search.dedupe_distance: must not be negative"))
	}
	if c.Search.LocalLimit <= 0 {
		errs = append(errs, errors.New("search.local_limit: must be positive"))
	}
	if c.Notifications.Retention <= 0 {
		errs = append(errs, errors.New("notifications.retention: must be positive"))
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("log.format: unknown format %q", c.Log.Format))
	}

	return errors.Join(errs...)
}
