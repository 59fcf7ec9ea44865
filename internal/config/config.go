package config

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	_ "time/tzdata"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

var (
	cfg *Config
	mu  sync.RWMutex
)

// Config represents the application configuration
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Ticket     TicketConfig     `mapstructure:"ticket"`
	Webhook    WebhookConfig    `mapstructure:"webhook"`
	Classifier ClassifierConfig `mapstructure:"classifier"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Mailboxes  []MailboxConfig  `mapstructure:"mailboxes"`
}

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Env         string `mapstructure:"env"`
	Timezone    string `mapstructure:"timezone"`
	WatchConfig bool   `mapstructure:"watch_config"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // postgres, mysql, sqlite3
	DSN             string        `mapstructure:"dsn"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Name            string        `mapstructure:"name"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

type RedisConfig struct {
	Host      string `mapstructure:"host"`
	Port      int    `mapstructure:"port"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

type TicketConfig struct {
	NumberPrefix string        `mapstructure:"number_prefix"`
	CounterStore string        `mapstructure:"counter_store"` // database, redis, memory
	ThreadWindow time.Duration `mapstructure:"thread_window"`
	SystemUserID int64         `mapstructure:"system_user_id"`
	BodyLimit    int64         `mapstructure:"body_limit"`
}

type WebhookConfig struct {
	InboundSecret string                `mapstructure:"inbound_secret"`
	Outbound      OutboundWebhookConfig `mapstructure:"outbound"`
}

type OutboundWebhookConfig struct {
	Enabled       bool             `mapstructure:"enabled"`
	Workers       int              `mapstructure:"workers"`
	QueueSize     int              `mapstructure:"queue_size"`
	Timeout       time.Duration    `mapstructure:"timeout"`
	RetryAttempts int              `mapstructure:"retry_attempts"`
	RetryDelay    time.Duration    `mapstructure:"retry_delay"`
	Endpoints     []EndpointConfig `mapstructure:"endpoints"`
}

type EndpointConfig struct {
	URL    string   `mapstructure:"url"`
	Secret string   `mapstructure:"secret"`
	Events []string `mapstructure:"events"`
}

type ClassifierConfig struct {
	RulesFile string `mapstructure:"rules_file"`
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
	Issuer    string `mapstructure:"issuer"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type MailboxConfig struct {
	Name             string        `mapstructure:"name"`
	Type             string        `mapstructure:"type"` // imap, imaps, pop3, pop3s
	Host             string        `mapstructure:"host"`
	Port             int           `mapstructure:"port"`
	Username         string        `mapstructure:"username"`
	Password         string        `mapstructure:"password"`
	Folder           string        `mapstructure:"folder"`
	Schedule         string        `mapstructure:"schedule"`
	DeleteAfterFetch bool          `mapstructure:"delete_after_fetch"`
	DialTimeout      time.Duration `mapstructure:"dial_timeout"`
	Enabled          bool          `mapstructure:"enabled"`
}

// setDefaults registers every scalar key so that AutomaticEnv can override
// it during Unmarshal; viper only consults the environment for known keys.
func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "uxone-helpdesk")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.timezone", "UTC")
	v.SetDefault("app.watch_config", false)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.password", "")
	v.SetDefault("database.auto_migrate", false)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "uxone")
	v.SetDefault("database.user", "uxone")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 30*time.Minute)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.key_prefix", "uxone")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("ticket.number_prefix", "TIPA-HD")
	v.SetDefault("ticket.counter_store", "database")
	v.SetDefault("ticket.thread_window", 30*24*time.Hour)
	v.SetDefault("ticket.body_limit", 128*1024)
	v.SetDefault("ticket.system_user_id", 0)
	v.SetDefault("webhook.inbound_secret", "")
	v.SetDefault("webhook.outbound.enabled", false)
	v.SetDefault("webhook.outbound.workers", 2)
	v.SetDefault("webhook.outbound.queue_size", 256)
	v.SetDefault("webhook.outbound.timeout", 10*time.Second)
	v.SetDefault("webhook.outbound.retry_attempts", 3)
	v.SetDefault("webhook.outbound.retry_delay", 5*time.Second)
	v.SetDefault("auth.issuer", "uxone")
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("classifier.rules_file", "")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

func newViper(configFile string) (*viper.Viper, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("UXONE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile == "" {
		return v, nil
	}
	v.SetConfigFile(configFile)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return v, nil
}

func decode(v *viper.Viper) (*Config, error) {
	c := &Config{}
	if err := v.Unmarshal(c); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	for i := range c.Mailboxes {
		if c.Mailboxes[i].Schedule == "" {
			c.Mailboxes[i].Schedule = "@every 1m"
		}
	}
	return c, nil
}

// Load reads configFile (may be empty for defaults plus environment), stores the result
// as the current configuration and returns it. With app.watch_config the file is watched
// and reloaded; onChange, when non-nil, receives every successfully reloaded config.
func Load(configFile string, onChange func(*Config)) (*Config, error) {
	v, err := newViper(configFile)
	if err != nil {
		return nil, err
	}
	loaded, err := decode(v)
	if err != nil {
		return nil, err
	}

	mu.Lock()
	cfg = loaded
	mu.Unlock()

	if configFile != "" && loaded.App.WatchConfig {
		v.OnConfigChange(func(e fsnotify.Event) {
			next, err := decode(v)
			if err != nil {
				return
			}
			mu.Lock()
			cfg = next
			mu.Unlock()
			if onChange != nil {
				onChange(next)
			}
		})
		v.WatchConfig()
	}
	return loaded, nil
}

// Get returns the current configuration (thread-safe)
func Get() *Config {
	mu.RLock()
	defer mu.RUnlock()
	return cfg
}

// GetDSN returns the driver-specific connection string. An explicit DSN wins.
func (c *DatabaseConfig) GetDSN() (string, error) {
	if c.DSN != "" {
		return c.DSN, nil
	}
	switch c.Driver {
	case "postgres":
		return fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
		), nil
	case "mysql":
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&loc=UTC",
			c.User, c.Password, c.Host, c.Port, c.Name), nil
	case "sqlite3":
		if c.Name == "" {
			return "", errors.New("sqlite3 requires database.name (file path)")
		}
		return fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000", c.Name), nil
	default:
		return "", fmt.Errorf("unsupported database driver %q", c.Driver)
	}
}

// GetRedisAddr returns the Redis server address
func (c *RedisConfig) GetRedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// GetServerAddr returns the server listen address
func (c *ServerConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Location resolves app.timezone, defaulting to UTC.
func (c *AppConfig) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(c.Timezone)
}

// IsProduction returns true if running in production mode
func (c *AppConfig) IsProduction() bool {
	return c.Env == "production"
}
