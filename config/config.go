package config

import (
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type DatabaseConfig struct {
	Adapter  string `mapstructure:"adapter"`
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Pass     string `mapstructure:"pass"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
	Path     string `mapstructure:"path"`
	Migrate  bool   `mapstructure:"migrate"`
	MaxConns int    `mapstructure:"max_conns"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

func (c RedisConfig) Enabled() bool {
	return len(c.Host) > 0
}

type NatsConfig struct {
	URL  string `mapstructure:"url"`
	User string `mapstructure:"user"`
	Pass string `mapstructure:"pass"`
}

func (c NatsConfig) Enabled() bool {
	return len(c.URL) > 0
}

type InfluxConfig struct {
	URL      string `mapstructure:"url"`
	Database string `mapstructure:"database"`
}

func (c InfluxConfig) Enabled() bool {
	return len(c.URL) > 0
}

type JobsConfig struct {
	ExpireEvery          uint64 `mapstructure:"expire_every"`
	SettlementRetryEvery uint64 `mapstructure:"settlement_retry_every"`
	DepthCacheEvery      uint64 `mapstructure:"depth_cache_every"`
}

type Config struct {
	Env          string         `mapstructure:"env"`
	LogLevel     string         `mapstructure:"log_level"`
	HTTPPort     string         `mapstructure:"http_port"`
	GRPCPort     string         `mapstructure:"grpc_port"`
	JWTPublicKey string         `mapstructure:"jwt_public_key"`
	PolicyPath   string         `mapstructure:"policy_path"`
	Workers      int            `mapstructure:"workers"`
	PriceMaxAge  time.Duration  `mapstructure:"price_max_age"`
	Database     DatabaseConfig `mapstructure:"database"`
	Redis        RedisConfig    `mapstructure:"redis"`
	Nats         NatsConfig     `mapstructure:"nats"`
	InfluxDB     InfluxConfig   `mapstructure:"influxdb"`
	Jobs         JobsConfig     `mapstructure:"jobs"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("http_port", "3000")
	v.SetDefault("grpc_port", "8090")
	v.SetDefault("jwt_public_key", "")
	v.SetDefault("policy_path", "config/policy.yml")
	v.SetDefault("workers", 0)
	v.SetDefault("price_max_age", "15m")

	v.SetDefault("database.adapter", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.pass", "")
	v.SetDefault("database.name", "carbonex_development")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.path", "carbonex.db")
	v.SetDefault("database.migrate", false)
	v.SetDefault("database.max_conns", 20)

	v.SetDefault("redis.host", "")
	v.SetDefault("redis.port", "6379")
	v.SetDefault("redis.username", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("nats.url", "")
	v.SetDefault("nats.user", "")
	v.SetDefault("nats.pass", "")

	v.SetDefault("influxdb.url", "")
	v.SetDefault("influxdb.database", "carbonex")

	v.SetDefault("jobs.expire_every", 5)
	v.SetDefault("jobs.settlement_retry_every", 10)
	v.SetDefault("jobs.depth_cache_every", 1)
}

// Load reads the process configuration. Values come from CARBONEX_* environment
// variables (nested keys joined with "_", e.g. CARBONEX_DATABASE_HOST) layered
// over an optional yaml file.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("carbonex")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if len(path) > 0 {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				return nil, err
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}
