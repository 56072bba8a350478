package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full service configuration.
type Config struct {
	Server        ServerConfig        `yaml:"server" mapstructure:"server"`
	Database      DatabaseConfig      `yaml:"database" mapstructure:"database"`
	Stripe        StripeConfig        `yaml:"stripe" mapstructure:"stripe"`
	Mail          MailConfig          `yaml:"mail" mapstructure:"mail"`
	Notifications NotificationsConfig `yaml:"notifications" mapstructure:"notifications"`
	Site          SiteConfig          `yaml:"site" mapstructure:"site"`
	Log           LogConfig           `yaml:"log" mapstructure:"log"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr" mapstructure:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" mapstructure:"shutdown_timeout"`
}

type DatabaseConfig struct {
	// Driver is "postgres" or "sqlite"
	Driver         string `yaml:"driver" mapstructure:"driver"`
	DSN            string `yaml:"dsn" mapstructure:"dsn"`
	MigrateOnStart bool   `yaml:"migrate_on_start" mapstructure:"migrate_on_start"`
}

type StripeConfig struct {
	EndpointSecret string `yaml:"endpoint_secret" mapstructure:"endpoint_secret"`
}

// MailConfig configures the outbound SMTP relay.
type MailConfig struct {
	Host     string `yaml:"host" mapstructure:"host"`
	Port     int    `yaml:"port" mapstructure:"port"`
	Username string `yaml:"username" mapstructure:"username"`
	Password string `yaml:"password" mapstructure:"password"`
	// From defaults to Username
	From     string `yaml:"from" mapstructure:"from"`
	FromName string `yaml:"from_name" mapstructure:"from_name"`
	// TLS is "mandatory", "opportunistic" or "none"
	TLS     string        `yaml:"tls" mapstructure:"tls"`
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

type NotificationsConfig struct {
	PollInterval  time.Duration `yaml:"poll_interval" mapstructure:"poll_interval"`
	BatchSize     int           `yaml:"batch_size" mapstructure:"batch_size"`
	MaxAttempts   int           `yaml:"max_attempts" mapstructure:"max_attempts"`
	ClaimLease    time.Duration `yaml:"claim_lease" mapstructure:"claim_lease"`
	RatePerSecond float64       `yaml:"rate_per_second" mapstructure:"rate_per_second"`
	Burst         int           `yaml:"burst" mapstructure:"burst"`
}

// SiteConfig holds the storefront details printed in emails and pages.
type SiteConfig struct {
	CompanyName  string `yaml:"company_name" mapstructure:"company_name"`
	WebsiteURL   string `yaml:"website_url" mapstructure:"website_url"`
	SupportEmail string `yaml:"support_email" mapstructure:"support_email"`
}

type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// legacy variable names from the storefront deployment
var envAliases = map[string]string{
	"stripe.endpoint_secret": "STRIPE_ENDPOINT_SECRET",
	"mail.username":          "EMAIL_USER",
	"mail.password":          "EMAIL_PASS",
	"database.dsn":           "DATABASE_URL",
}

// Load reads defaults, then the YAML file at path (if path is not empty), then
// the environment. CHECKOUT_MAIL_HOST overrides mail.host and so on.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("CHECKOUT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range envAliases {
		if err := v.BindEnv(key, "CHECKOUT_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env); err != nil {
			return nil, err
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.Mail.From == "" {
		cfg.Mail.From = cfg.Mail.Username
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8082")
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 15*time.Second)

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.migrate_on_start", false)

	v.SetDefault("stripe.endpoint_secret", "")

	v.SetDefault("mail.host", "smtp.gmail.com")
	v.SetDefault("mail.port", 587)
	v.SetDefault("mail.username", "")
	v.SetDefault("mail.password", "")
	v.SetDefault("mail.from", "")
	v.SetDefault("mail.from_name", "")
	v.SetDefault("mail.tls", "mandatory")
	v.SetDefault("mail.timeout", 15*time.Second)

	v.SetDefault("notifications.poll_interval", 30*time.Second)
	v.SetDefault("notifications.batch_size", 20)
	v.SetDefault("notifications.max_attempts", 5)
	v.SetDefault("notifications.claim_lease", 5*time.Minute)
	v.SetDefault("notifications.rate_per_second", 2.0)
	v.SetDefault("notifications.burst", 5)

	v.SetDefault("site.company_name", "Your Company")
	v.SetDefault("site.website_url", "https://www.yourcompany.com")
	v.SetDefault("site.support_email", "orders@jones.com")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Validate checks what serve needs to start.
func (c *Config) Validate() error {
	var errs []error
	if c.Database.DSN == "" {
		errs = append(errs, errors.New("database.dsn is required"))
	}
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("database.driver %q is not supported", c.Database.Driver))
	}
	if c.Stripe.EndpointSecret == "" {
		errs = append(errs, errors.New("stripe.endpoint_secret is required"))
	}
	if c.Mail.Host == "" || c.Mail.Username == "" || c.Mail.Password == "" {
		errs = append(errs, errors.New("mail.host, mail.username and mail.password are required"))
	}
	switch c.Mail.TLS {
	case "mandatory", "opportunistic", "none":
	default:
		errs = append(errs, fmt.Errorf("mail.tls %q is not supported", c.Mail.TLS))
	}
	if c.Notifications.MaxAttempts < 1 {
		errs = append(errs, errors.New("notifications.max_attempts must be >= 1"))
	}
	return errors.Join(errs...)
}
