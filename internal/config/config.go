// Package config loads the process configuration once at startup. Nothing
// below cmd reads the environment directly.
package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/spf13/viper"

	"github.com/xxomega77xx/googlepay/internal/paypal"
	"github.com/xxomega77xx/googlepay/internal/pricing"
)

type Config struct {
	Env             string        `mapstructure:"env"`
	HTTPPort        string        `mapstructure:"http_port"`
	GRPCPort        string        `mapstructure:"grpc_port"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`

	PayPal   PayPalConfig     `mapstructure:"paypal"`
	Log      LogConfig        `mapstructure:"log"`
	Catalog  CatalogConfig    `mapstructure:"catalog"`
	Redis    RedisConfig      `mapstructure:"redis"`
	Kafka    KafkaConfig      `mapstructure:"kafka"`
	Shipping []ShippingOption `mapstructure:"shipping"`
}

type PayPalConfig struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	MerchantID   string `mapstructure:"merchant_id"`
	BaseURL      string `mapstructure:"base_url"`

	Currency   string `mapstructure:"currency"`
	DefaultSKU string `mapstructure:"default_sku"`
	SCAMethod  string `mapstructure:"sca_method"`

	HTTPTimeout     time.Duration `mapstructure:"http_timeout"`
	TokenCache      bool          `mapstructure:"token_cache"`
	TokenMargin     time.Duration `mapstructure:"token_margin"`
	BreakerFailures uint32        `mapstructure:"breaker_failures"`
	BreakerTimeout  time.Duration `mapstructure:"breaker_timeout"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type CatalogConfig struct {
	DBPath string `mapstructure:"db_path"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

// ShippingOption is the config form of pricing.ShippingOption. Shipping
// options can only be set from the config file.
type ShippingOption struct {
	ID       string `mapstructure:"id"`
	Label    string `mapstructure:"label"`
	Amount   string `mapstructure:"amount"`
	Selected bool   `mapstructure:"selected"`
}

var defaults = map[string]any{
	"env":                     "development",
	"http_port":               "8888",
	"grpc_port":               "50060",
	"request_timeout":         30 * time.Second,
	"shutdown_timeout":        10 * time.Second,
	"paypal.base_url":         paypal.SandboxBaseURL,
	"paypal.currency":         "USD",
	"paypal.default_sku":      "checkout-demo",
	"paypal.sca_method":       "SCA_WHEN_REQUIRED",
	"paypal.http_timeout":     15 * time.Second,
	"paypal.token_cache":      true,
	"paypal.token_margin":     paypal.DefaultTokenMargin,
	"paypal.breaker_failures": 5,
	"paypal.breaker_timeout":  30 * time.Second,
	"log.level":               "info",
	"log.format":              "json",
	"catalog.db_path":         "./catalog.db",
	"kafka.topic":             "payments-captured",
}

var envBindings = map[string][]string{
	"env":                     {"APP_ENV", "NODE_ENV"},
	"http_port":               {"HTTP_PORT", "PORT"},
	"grpc_port":               {"GRPC_PORT"},
	"request_timeout":         {"REQUEST_TIMEOUT"},
	"shutdown_timeout":        {"SHUTDOWN_TIMEOUT"},
	"paypal.client_id":        {"PAYPAL_CLIENT_ID"},
	"paypal.client_secret":    {"PAYPAL_CLIENT_SECRET"},
	"paypal.merchant_id":      {"PAYPAL_MERCHANT_ID"},
	"paypal.base_url":         {"PAYPAL_BASE_URL", "BASE_URL"},
	"paypal.currency":         {"PAYPAL_CURRENCY"},
	"paypal.default_sku":      {"PAYPAL_DEFAULT_SKU"},
	"paypal.sca_method":       {"PAYPAL_SCA_METHOD"},
	"paypal.http_timeout":     {"PAYPAL_HTTP_TIMEOUT"},
	"paypal.token_cache":      {"PAYPAL_TOKEN_CACHE"},
	"paypal.token_margin":     {"PAYPAL_TOKEN_MARGIN"},
	"paypal.breaker_failures": {"PAYPAL_BREAKER_FAILURES"},
	"paypal.breaker_timeout":  {"PAYPAL_BREAKER_TIMEOUT"},
	"log.level":               {"LOG_LEVEL"},
	"log.format":              {"LOG_FORMAT"},
	"catalog.db_path":         {"CATALOG_DB_PATH"},
	"redis.addr":              {"REDIS_ADDR"},
	"redis.password":          {"REDIS_PASSWORD"},
	"redis.db":                {"REDIS_DB"},
	"kafka.brokers":           {"KAFKA_BROKERS"},
	"kafka.topic":             {"KAFKA_TOPIC"},
}

// Load reads the environment and, when configFile is not empty, a YAML
// file. Environment values win over the file.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	for key, envs := range envBindings {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return nil, fmt.Errorf("bind env for %s: %w", key, err)
		}
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", configFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}

// Validate fails fast on missing credentials or a malformed provider URL.
func (c *Config) Validate() error {
	if err := c.PayPal.Credentials().Validate(); err != nil {
		return err
	}
	u, err := url.Parse(c.PayPal.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return &paypal.ConfigError{Field: "base_url"}
	}
	if _, err := c.ShippingOptions(); err != nil {
		return err
	}
	return nil
}

func (c PayPalConfig) Credentials() paypal.Credentials {
	return paypal.Credentials{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		MerchantID:   c.MerchantID,
	}
}

// ShippingOptions returns the configured options, or the defaults when the
// config file names none.
func (c *Config) ShippingOptions() ([]pricing.ShippingOption, error) {
	if len(c.Shipping) == 0 {
		return pricing.DefaultShippingOptions(), nil
	}

	out := make([]pricing.ShippingOption, 0, len(c.Shipping))
	selected := 0
	for _, o := range c.Shipping {
		amount, err := pricing.ParseAmount(o.Amount)
		if err != nil {
			return nil, &paypal.ConfigError{Field: fmt.Sprintf("shipping option %q amount", o.ID)}
		}
		if o.ID == "" {
			return nil, &paypal.ConfigError{Field: "shipping option id"}
		}
		if o.Selected {
			selected++
		}
		out = append(out, pricing.ShippingOption{
			ID:       o.ID,
			Label:    o.Label,
			Type:     pricing.ShippingTypeShipping,
			Amount:   amount,
			Selected: o.Selected,
		})
	}
	if selected != 1 {
		return nil, &paypal.ConfigError{Field: "shipping options (exactly one selected)"}
	}
	return out, nil
}
