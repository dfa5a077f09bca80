package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kcz17/dumpslow/interval"
	"github.com/spf13/viper"
)

type Config struct {
	Proxying  Proxying  `mapstructure:"proxying" validate:"required"`
	API       API       `mapstructure:"api" validate:"required"`
	Recording Recording `mapstructure:"recording" validate:"required"`
	Store     Store     `mapstructure:"store" validate:"required"`
	Logging   Logging   `mapstructure:"logging" validate:"required"`
	Alerting  Alerting  `mapstructure:"alerting" validate:"required"`
	Views     []View    `mapstructure:"views" validate:"dive"`
}

type Proxying struct {
	FrontendPort *int    `mapstructure:"frontendPort" validate:"required,min=1,max=65535"`
	BackendHost  *string `mapstructure:"backendHost" validate:"required"`
	BackendPort  *int    `mapstructure:"backendPort" validate:"required,min=1,max=65535"`
	MaxConns     *int    `mapstructure:"maxConns" validate:"required,min=1"`
}

type API struct {
	Port *int `mapstructure:"port" validate:"required,min=1,max=65535"`
}

type Recording struct {
	// LongRequestThreshold is in seconds.
	LongRequestThreshold *float64 `mapstructure:"longRequestThreshold" validate:"required,gt=0"`
	// AlertThreshold is in seconds. Alerting is disabled if it is nil.
	AlertThreshold *float64 `mapstructure:"alertThreshold" validate:"omitempty,gt=0"`
	// RetentionWindow is an interval such as "4w".
	RetentionWindow *string `mapstructure:"retentionWindow" validate:"required"`
	// RecentSamples is how many of the latest samples /recent serves.
	RecentSamples *int `mapstructure:"recentSamples" validate:"required,min=1"`
}

type Store struct {
	Driver *string `mapstructure:"driver" validate:"required,oneof=memory redis"`
	Redis  Redis   `mapstructure:"redis" validate:"required"`
}

type Redis struct {
	Addr     *string `mapstructure:"addr" validate:"required"`
	Password *string `mapstructure:"password"`
	DB       *int    `mapstructure:"db" validate:"required,min=0"`
	Key      *string `mapstructure:"key" validate:"required"`
	// Timeout is a Go duration string such as "250ms".
	Timeout *string `mapstructure:"timeout" validate:"required"`
}

type Logging struct {
	Driver   *string  `mapstructure:"driver" validate:"required,oneof=noop stdout influxdb"`
	InfluxDB InfluxDB `mapstructure:"influxdb"`
}

type InfluxDB struct {
	Host   *string `mapstructure:"host"`
	Token  *string `mapstructure:"token"`
	Org    *string `mapstructure:"org"`
	Bucket *string `mapstructure:"bucket"`
}

type Alerting struct {
	Driver  *string `mapstructure:"driver" validate:"required,oneof=log webhook queue"`
	Webhook Webhook `mapstructure:"webhook"`
	// Queue delivers alerts through a Redis-backed queue, using the store's
	// Redis connection settings, to the downstream driver.
	Queue Queue `mapstructure:"queue"`
}

type Webhook struct {
	URL     *string `mapstructure:"url"`
	Timeout *string `mapstructure:"timeout" validate:"required"`
}

type Queue struct {
	Downstream *string `mapstructure:"downstream" validate:"required,oneof=log webhook"`
}

// View maps a path, or every path under it if Prefix is set, to a view name.
type View struct {
	Path   *string `mapstructure:"path" validate:"required"`
	View   *string `mapstructure:"view" validate:"required"`
	Prefix bool    `mapstructure:"prefix"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("Proxying.FrontendPort", 8080)
	v.SetDefault("Proxying.BackendHost", "localhost")
	v.SetDefault("Proxying.BackendPort", 8000)
	v.SetDefault("Proxying.MaxConns", 512)
	v.SetDefault("API.Port", 8079)

	v.SetDefault("Recording.LongRequestThreshold", 1)
	v.SetDefault("Recording.RetentionWindow", "4w")
	v.SetDefault("Recording.RecentSamples", 100)

	v.SetDefault("Store.Driver", "redis")
	v.SetDefault("Store.Redis.Addr", "localhost:6379")
	v.SetDefault("Store.Redis.Password", "")
	v.SetDefault("Store.Redis.DB", 0)
	v.SetDefault("Store.Redis.Key", "dumpslow")
	v.SetDefault("Store.Redis.Timeout", "250ms")

	v.SetDefault("Logging.Driver", "stdout")

	v.SetDefault("Alerting.Driver", "log")
	v.SetDefault("Alerting.Webhook.Timeout", "10s")
	v.SetDefault("Alerting.Queue.Downstream", "log")
}

// Load reads config.yaml from path, or from "." and "/app" if path is empty.
// Environment variables prefixed DUMPSLOW_ override file values, e.g.
// DUMPSLOW_STORE_REDIS_ADDR. A missing config file is only an error when
// path is given explicitly.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("dumpslow")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("/app")
	}
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, fmt.Errorf("error when reading config file: err = %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error occured while reading configuration file: err = %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate checks struct tags and the fields whose validity depends on other
// fields.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		var validationErrors validator.ValidationErrors
		if !errors.As(err, &validationErrors) {
			return fmt.Errorf("unable to validate config: err = %w", err)
		}
		var messages []string
		for _, err := range validationErrors {
			messages = append(messages, "\t"+err.Error())
		}
		return fmt.Errorf("encountered validation errors:\n%s", strings.Join(messages, "\n"))
	}

	if _, err := c.RetentionWindow(); err != nil {
		return fmt.Errorf("invalid recording.retentionWindow: %w", err)
	}
	if _, err := c.RedisTimeout(); err != nil {
		return fmt.Errorf("invalid store.redis.timeout: %w", err)
	}
	if _, err := c.WebhookTimeout(); err != nil {
		return fmt.Errorf("invalid alerting.webhook.timeout: %w", err)
	}
	if *c.Logging.Driver == "influxdb" && (c.Logging.InfluxDB.Host == nil || c.Logging.InfluxDB.Token == nil ||
		c.Logging.InfluxDB.Org == nil || c.Logging.InfluxDB.Bucket == nil) {
		return errors.New("logging.influxdb requires host, token, org and bucket when logging.driver is influxdb")
	}
	if c.UsesWebhook() && (c.Alerting.Webhook.URL == nil || *c.Alerting.Webhook.URL == "") {
		return errors.New("alerting.webhook.url is required when alerts are delivered by webhook")
	}
	if *c.Alerting.Driver == "queue" && *c.Store.Driver != "redis" {
		return errors.New("alerting.driver queue requires store.driver redis")
	}
	return nil
}

func (c *Config) LongRequestThreshold() time.Duration {
	return secondsToDuration(*c.Recording.LongRequestThreshold)
}

// AlertThreshold returns zero when alerting is disabled.
func (c *Config) AlertThreshold() time.Duration {
	if c.Recording.AlertThreshold == nil {
		return 0
	}
	return secondsToDuration(*c.Recording.AlertThreshold)
}

func (c *Config) RetentionWindow() (time.Duration, error) {
	return interval.Parse(*c.Recording.RetentionWindow)
}

func (c *Config) RedisTimeout() (time.Duration, error) {
	return time.ParseDuration(*c.Store.Redis.Timeout)
}

func (c *Config) WebhookTimeout() (time.Duration, error) {
	return time.ParseDuration(*c.Alerting.Webhook.Timeout)
}

// UsesWebhook reports whether alerts are posted to a webhook, either directly
// or downstream of the queue.
func (c *Config) UsesWebhook() bool {
	return *c.Alerting.Driver == "webhook" ||
		(*c.Alerting.Driver == "queue" && *c.Alerting.Queue.Downstream == "webhook")
}

func (c *Config) RedisPassword() string {
	if c.Store.Redis.Password == nil {
		return ""
	}
	return *c.Store.Redis.Password
}

func secondsToDuration(seconds float64) time.Duration {
	return time.Duration(seconds * float64(time.Second))
}

// ReadConfig loads the configuration, exiting the process if it is invalid.
func ReadConfig(path string) *Config {
	config, err := Load(path)
	if err != nil {
		log.Printf("%s\n", err)
		fmt.Println("Check your configuration file and try again.")
		os.Exit(1)
	}
	return config
}
