package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	configFileEnvName = "STOREFRONT_CONFIG_FILE"
	envPrefix         = "STOREFRONT"
	redacted          = "<redacted>"
)

const (
	CartStorePostgres = "postgres"
	CartStoreRedis    = "redis"
)

type consumers struct {
	CartFlaggerGroup  string `mapstructure:"cart_flagger_group"`
	AvailabilityGroup string `mapstructure:"availability_group"`
}

type topics struct {
	CatalogChanges string `mapstructure:"catalog_changes"`
}

type brokerTLS struct {
	CAFile   string `mapstructure:"ca_file"`
	CertFile string `mapstructure:"cert_file"`
	KeyFile  string `mapstructure:"key_file"`
}

// Enabled reports whether a CA file is configured.
func (t brokerTLS) Enabled() bool {
	return t.CAFile != ""
}

type broker struct {
	SeedBrokers        []string  `mapstructure:"seed_brokers"`
	SchemaRegistryURLs []string  `mapstructure:"schema_registry_urls"`
	TLS                brokerTLS `mapstructure:"tls"`
	Topics             topics    `mapstructure:"topics"`
	Consumers          consumers `mapstructure:"consumers"`
}

type redisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Username string        `mapstructure:"username"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	CartTTL  time.Duration `mapstructure:"cart_ttl"`
}

type commerce struct {
	SecretKey         string        `mapstructure:"secret_key"`
	WebhookSecret     string        `mapstructure:"webhook_secret"`
	APIURL            string        `mapstructure:"api_url"`
	Timeout           time.Duration `mapstructure:"timeout"`
	MaxNetworkRetries int64         `mapstructure:"max_network_retries"`
}

type Config struct {
	LogLevel           slog.Level    `mapstructure:"log_level"`
	HTTPServerAddr     string        `mapstructure:"http_server_addr"`
	HTTPHandlerTimeout time.Duration `mapstructure:"http_handler_timeout"`
	BaseURL            string        `mapstructure:"base_url"`
	CartStore          string        `mapstructure:"cart_store"`
	SQLDB              string        `mapstructure:"sql_db"`
	Redis              redisConfig   `mapstructure:"redis"`
	Commerce           commerce      `mapstructure:"commerce"`
	Broker             broker        `mapstructure:"broker"`
}

// secretKeys are expected from the environment rather than the file,
// e.g. STOREFRONT_COMMERCE_SECRET_KEY.
var secretKeys = []string{
	"sql_db",
	"redis.password",
	"commerce.secret_key",
	"commerce.webhook_secret",
}

func Load() Config {
	cfg, err := LoadFile(getConfigFilepath())
	if err != nil {
		die(err)
	}
	return cfg
}

// LoadFile reads the YAML file at path, applies STOREFRONT_ environment
// overrides and validates the result.
func LoadFile(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	for _, key := range secretKeys {
		if err := v.BindEnv(key); err != nil {
			return Config{}, err
		}
	}

	if err := v.ReadInConfig(); err != nil {
		return Config{}, err
	}

	var cfg Config
	err := v.UnmarshalExact(&cfg, viper.DecodeHook(
		mapstructure.ComposeDecodeHookFunc(
			mapstructure.TextUnmarshallerHookFunc(),
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	))
	if err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")
	v.SetDefault("http_server_addr", ":8080")
	v.SetDefault("http_handler_timeout", "10s")
	v.SetDefault("cart_store", CartStorePostgres)
	v.SetDefault("redis.cart_ttl", "720h")
	v.SetDefault("commerce.timeout", "30s")
	v.SetDefault("commerce.max_network_retries", 2)
	v.SetDefault("broker.topics.catalog_changes", "catalog-changes")
	v.SetDefault("broker.consumers.cart_flagger_group", "cart-flagger")
	v.SetDefault("broker.consumers.availability_group", "catalog-availability")
}

func (c Config) Validate() error {
	var errs []error
	required := func(name, value string) {
		if value == "" {
			errs = append(errs, fmt.Errorf("%s: required", name))
		}
	}

	required("base_url", c.BaseURL)
	required("commerce.secret_key", c.Commerce.SecretKey)
	required("commerce.webhook_secret", c.Commerce.WebhookSecret)
	required("broker.topics.catalog_changes", c.Broker.Topics.CatalogChanges)
	required("broker.consumers.cart_flagger_group", c.Broker.Consumers.CartFlaggerGroup)
	required("broker.consumers.availability_group", c.Broker.Consumers.AvailabilityGroup)

	if len(c.Broker.SeedBrokers) == 0 {
		errs = append(errs, errors.New("broker.seed_brokers: required"))
	}
	if len(c.Broker.SchemaRegistryURLs) == 0 {
		errs = append(errs, errors.New("broker.schema_registry_urls: required"))
	}

	switch c.CartStore {
	case CartStorePostgres:
		required("sql_db", c.SQLDB)
	case CartStoreRedis:
		required("redis.addr", c.Redis.Addr)
	default:
		errs = append(errs, fmt.Errorf(
			"cart_store: %q is not one of %q, %q",
			c.CartStore, CartStorePostgres, CartStoreRedis,
		))
	}

	tls := c.Broker.TLS
	if tls.Enabled() && (tls.CertFile == "" || tls.KeyFile == "") {
		errs = append(errs, errors.New("broker.tls: cert_file and key_file required with ca_file"))
	}

	return errors.Join(errs...)
}

func getConfigFilepath() string {
	cmdLine := pflag.NewFlagSet(os.Args[0], pflag.ExitOnError)
	arg := cmdLine.String("config", "/config.yaml", "config file")
	_ = cmdLine.Parse(os.Args[1:])
	env, ok := os.LookupEnv(configFileEnvName)
	if ok {
		return env
	}
	return *arg
}

func die(err error) {
	fmt.Printf("failed to load config file: %v\n", err)
	os.Exit(2)
}

func secret(s string) string {
	if s == "" {
		return ""
	}
	return redacted
}

func (c Config) Print() {
	tamplate := `
	General:
	LogLevel=%q
	HTTPServerAddr=%q
	HTTPHandlerTimeout=%q
	BaseURL=%q
	CartStore=%q
	SQLDB=%q

	Redis:
	Addr=%q
	DB=%d
	CartTTL=%q

	Commerce:
	SecretKey=%q
	WebhookSecret=%q
	APIURL=%q
	Timeout=%q
	MaxNetworkRetries=%d

	BrokerConfig:
	SeedBrokers=%q
	SchemaRegistryURLs=%q
	TLS=%t
	Topics:
		CatalogChanges=%q
	Consumers:
		CartFlaggerGroup=%q
		AvailabilityGroup=%q

`
	fmt.Println("Loaded config:")
	fmt.Printf(
		strings.TrimLeft(tamplate, "\n"),
		c.LogLevel,
		c.HTTPServerAddr,
		c.HTTPHandlerTimeout,
		c.BaseURL,
		c.CartStore,
		secret(c.SQLDB),
		c.Redis.Addr,
		c.Redis.DB,
		c.Redis.CartTTL,
		secret(c.Commerce.SecretKey),
		secret(c.Commerce.WebhookSecret),
		c.Commerce.APIURL,
		c.Commerce.Timeout,
		c.Commerce.MaxNetworkRetries,
		c.Broker.SeedBrokers,
		c.Broker.SchemaRegistryURLs,
		c.Broker.TLS.Enabled(),
		c.Broker.Topics.CatalogChanges,
		c.Broker.Consumers.CartFlaggerGroup,
		c.Broker.Consumers.AvailabilityGroup,
	)
}
