package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 应用配置
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Courier   CourierConfig   `mapstructure:"courier"`
	WhatsApp  WhatsAppConfig  `mapstructure:"whatsapp"`
	Shopify   ShopifyConfig   `mapstructure:"shopify"`
	Credits   CreditsConfig   `mapstructure:"credits"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	Sentry    SentryConfig    `mapstructure:"sentry"`
	Tracing   TracingConfig   `mapstructure:"tracing"`
	Log       LogConfig       `mapstructure:"log"`
	App       AppConfig       `mapstructure:"app"`
}

type ServerConfig struct {
	Port            string        `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // postgres | sqlite
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type JWTConfig struct {
	Secret string `mapstructure:"secret"`
}

// CourierConfig Delhivery 接入配置
type CourierConfig struct {
	Name    string        `mapstructure:"name"`
	BaseURL string        `mapstructure:"base_url"`
	Token   string        `mapstructure:"token"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type WhatsAppConfig struct {
	Enabled          bool          `mapstructure:"enabled"`
	BaseURL          string        `mapstructure:"base_url"`
	PhoneNumberID    string        `mapstructure:"phone_number_id"`
	Token            string        `mapstructure:"token"`
	CustomerTemplate string        `mapstructure:"customer_template"`
	ResellerTemplate string        `mapstructure:"reseller_template"`
	Language         string        `mapstructure:"language"`
	CountryCode      string        `mapstructure:"country_code"`
	Timeout          time.Duration `mapstructure:"timeout"`
}

type ShopifyConfig struct {
	APIVersion string        `mapstructure:"api_version"`
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxBody    int64         `mapstructure:"max_body"`
}

type CreditsConfig struct {
	OrderCost        int64 `mapstructure:"order_cost"`
	NotificationCost int64 `mapstructure:"notification_cost"`
}

type RateLimitConfig struct {
	Backend           string `mapstructure:"backend"` // memory | redis
	RequestsPerMinute int    `mapstructure:"requests_per_minute"`
	Burst             int    `mapstructure:"burst"`
}

type KafkaConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type SentryConfig struct {
	DSN         string `mapstructure:"dsn"`
	Environment string `mapstructure:"environment"`
}

type TracingConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	Endpoint    string  `mapstructure:"endpoint"`
	ServiceName string  `mapstructure:"service_name"`
	SampleRate  float64 `mapstructure:"sample_rate"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json | console
}

type AppConfig struct {
	Timezone       string        `mapstructure:"timezone"`
	SnowflakeNode  int64         `mapstructure:"snowflake_node"`
	TenantCacheTTL time.Duration `mapstructure:"tenant_cache_ttl"`
	Swagger        bool          `mapstructure:"swagger"`
}

// Location 解析业务时区，失败时回退 UTC
func (a AppConfig) Location() *time.Location {
	if a.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(a.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Load 加载配置：config.yaml（可选）+ SHIPDESK_ 前缀环境变量
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetEnvPrefix("SHIPDESK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate 校验启动所需的最小配置
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.JWT.Secret == "" {
		return errors.New("jwt.secret is required")
	}
	if c.Credits.OrderCost < 0 || c.Credits.NotificationCost < 0 {
		return errors.New("credit costs must not be negative")
	}
	switch c.RateLimit.Backend {
	case "memory":
	case "redis":
		if !c.Redis.Enabled {
			return errors.New("ratelimit.backend redis requires redis.enabled")
		}
	default:
		return fmt.Errorf("unsupported ratelimit backend %q", c.RateLimit.Backend)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.dsn", "host=localhost user=postgres password=postgres dbname=shipdesk port=5432 sslmode=disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 30*time.Minute)
	v.SetDefault("database.auto_migrate", true)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)

	v.SetDefault("jwt.secret", "change-me")

	v.SetDefault("courier.name", "delhivery")
	v.SetDefault("courier.base_url", "https://track.delhivery.com")
	v.SetDefault("courier.timeout", 10*time.Second)

	v.SetDefault("whatsapp.enabled", false)
	v.SetDefault("whatsapp.base_url", "https://graph.facebook.com/v19.0")
	v.SetDefault("whatsapp.customer_template", "order_shipped_customer")
	v.SetDefault("whatsapp.reseller_template", "order_shipped_reseller")
	v.SetDefault("whatsapp.language", "en")
	v.SetDefault("whatsapp.country_code", "91")
	v.SetDefault("whatsapp.timeout", 8*time.Second)

	v.SetDefault("shopify.api_version", "2024-01")
	v.SetDefault("shopify.timeout", 8*time.Second)
	v.SetDefault("shopify.max_body", 1<<20)

	v.SetDefault("credits.order_cost", 1)
	v.SetDefault("credits.notification_cost", 0)

	v.SetDefault("ratelimit.backend", "memory")
	v.SetDefault("ratelimit.requests_per_minute", 120)
	v.SetDefault("ratelimit.burst", 20)

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic", "shipdesk.orders")

	v.SetDefault("sentry.environment", "development")

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.endpoint", "localhost:4318")
	v.SetDefault("tracing.service_name", "shipdesk")
	v.SetDefault("tracing.sample_rate", 1.0)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("app.timezone", "Asia/Kolkata")
	v.SetDefault("app.snowflake_node", 1)
	v.SetDefault("app.tenant_cache_ttl", 5*time.Minute)
	v.SetDefault("app.swagger", true)
}
