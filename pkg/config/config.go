package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/harborlight/donations/pkg/types"

	"github.com/spf13/viper"
	"go.uber.org/fx"
)

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

type DBConfig struct {
	DSN string `mapstructure:"dsn"`
}

// StripeConfig is the static fallback for provider credentials. When the
// app_setting table carries stripe keys, those win, so live/test can rotate
// without a redeploy.
type StripeConfig struct {
	Mode          types.StripeMode `mapstructure:"mode"`
	SecretKey     string           `mapstructure:"secret_key"`
	WebhookSecret string           `mapstructure:"webhook_secret"`
}

type MailConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

type AdminConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
}

type Env string

const (
	EnvDev  Env = "dev"
	EnvProd Env = "prod"
)

type Config struct {
	Env      Env          `mapstructure:"env"`
	Server   ServerConfig `mapstructure:"server"`
	Database DBConfig     `mapstructure:"database"`
	// SiteOrigin is the public portal origin. It gates CORS and is the base
	// for checkout redirect and manage-link URLs.
	SiteOrigin string `mapstructure:"site_origin"`
	// Currency applies to custom-amount-only carts and monthly donations;
	// catalog lines carry their own currency.
	Currency    string       `mapstructure:"currency"`
	Stripe      StripeConfig `mapstructure:"stripe"`
	Mail        MailConfig   `mapstructure:"mail"`
	Admin       AdminConfig  `mapstructure:"admin"`
	MetricsAddr string       `mapstructure:"metrics_addr"`
}

func (c *Config) SuccessURL() string {
	return c.SiteOrigin + "/donate/thanks?session_id={CHECKOUT_SESSION_ID}"
}

func (c *Config) CancelURL() string {
	return c.SiteOrigin + "/donate"
}

func (c *Config) ManageURL(rawToken string) string {
	return c.SiteOrigin + "/donate/manage?token=" + rawToken
}

func (c *Config) validate() error {
	if c.SiteOrigin == "" {
		return fmt.Errorf("site_origin is required")
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required")
	}
	if c.Stripe.Mode != "" && !c.Stripe.Mode.Valid() {
		return fmt.Errorf("stripe.mode must be test or live, got %q", c.Stripe.Mode)
	}
	return nil
}

func New() (*Config, error) {
	v := viper.New()
	// Allow overriding config file via env:
	// - APP_CONFIG_FILE: absolute or relative file path (e.g., /etc/app/prod.yaml)
	// - APP_CONFIG_NAME: config base name without extension (default: "config")
	if file := os.Getenv("APP_CONFIG_FILE"); file != "" {
		v.SetConfigFile(file)
	} else {
		cfgName := os.Getenv("APP_CONFIG_NAME")
		if cfgName == "" {
			cfgName = "config"
		}
		v.SetConfigName(cfgName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}
	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("env", "dev")
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8888)
	v.SetDefault("currency", "cad")
	v.SetDefault("stripe.mode", string(types.StripeModeTest))
	v.SetDefault("mail.port", 587)
	v.SetDefault("metrics_addr", ":90")

	if err := v.ReadInConfig(); err != nil {
		_ = err
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := c.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &c, nil
}

var Module = fx.Options(
	fx.Provide(New),
)
