package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type HTTPConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

type AppConfig struct {
	ServiceName string     `mapstructure:"service_name"`
	Env         string     `mapstructure:"env"`
	LogLevel    string     `mapstructure:"log_level"`
	MetricsPath string     `mapstructure:"metrics_path"`
	HTTP        HTTPConfig `mapstructure:"http"`
}

type DBConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Name     string `mapstructure:"name"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	SSLMode  string `mapstructure:"sslmode"`
}

func (c DBConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode)
}

type KafkaConfig struct {
	Enabled        bool     `mapstructure:"enabled"`
	Brokers        []string `mapstructure:"brokers"`
	LifecycleTopic string   `mapstructure:"lifecycle_topic"`
}

type SchedulerConfig struct {
	TickInterval       time.Duration `mapstructure:"tick_interval"`
	MigrateDelay       time.Duration `mapstructure:"migrate_delay"`
	DeleteDelay        time.Duration `mapstructure:"delete_delay"`
	DeleteCancelWindow time.Duration `mapstructure:"delete_cancel_window"`
}

type LegacyConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type IdentityConfig struct {
	UUIDKey           string `mapstructure:"uuid_key"`
	LocalhostOverride string `mapstructure:"localhost_override"`
}

type MigrationConfig struct {
	OverlayPath string `mapstructure:"overlay_path"`
}

type EventConfig struct {
	Name     string    `mapstructure:"name"`
	StartsAt time.Time `mapstructure:"starts_at"`
	EndsAt   time.Time `mapstructure:"ends_at"`
}

type SocialConfig struct {
	UnlinkURL string        `mapstructure:"unlink_url"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

type Config struct {
	App       AppConfig       `mapstructure:"app"`
	DB        DBConfig        `mapstructure:"db"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Legacy    LegacyConfig    `mapstructure:"legacy"`
	Identity  IdentityConfig  `mapstructure:"identity"`
	Migration MigrationConfig `mapstructure:"migration"`
	Event     EventConfig     `mapstructure:"event"`
	Social    SocialConfig    `mapstructure:"social"`
}

func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("ARKHAM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path == "" {
		path = "config.yaml"
	}

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		_, notFound := err.(viper.ConfigFileNotFoundError)
		if !notFound && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.Identity.UUIDKey == "" {
		return nil, fmt.Errorf("identity.uuid_key must be set (ARKHAM_IDENTITY_UUID_KEY)")
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.service_name", "arkhamd")
	v.SetDefault("app.env", "dev")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.metrics_path", "/metrics")
	v.SetDefault("app.http.host", "0.0.0.0")
	v.SetDefault("app.http.port", 8080)
	v.SetDefault("app.http.read_timeout", "5s")
	v.SetDefault("app.http.write_timeout", "10s")
	v.SetDefault("app.http.idle_timeout", "60s")

	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.name", "arkham")
	v.SetDefault("db.user", "arkham")
	v.SetDefault("db.password", "arkham")
	v.SetDefault("db.sslmode", "disable")

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.lifecycle_topic", "accounts.lifecycle")

	v.SetDefault("scheduler.tick_interval", "30s")
	v.SetDefault("scheduler.migrate_delay", "2m")
	v.SetDefault("scheduler.delete_delay", "5m")
	v.SetDefault("scheduler.delete_cancel_window", "2m")

	v.SetDefault("legacy.base_url", "http://ozzypc-wbid.live.ws.fireteam.net")
	v.SetDefault("legacy.timeout", "30s")

	// AutomaticEnv only feeds Unmarshal for keys viper knows about, so the
	// mandatory key needs an empty default to be settable from the environment.
	v.SetDefault("identity.uuid_key", "")
	v.SetDefault("identity.localhost_override", "127.0.0.1")

	v.SetDefault("migration.overlay_path", "usercfg/persistentmigrationsave.json")

	v.SetDefault("event.name", "")

	v.SetDefault("social.unlink_url", "")
	v.SetDefault("social.timeout", "10s")
}

// Active reports whether the configured leaderboard event window covers t.
func (c EventConfig) Active(t time.Time) bool {
	if c.Name == "" || c.StartsAt.IsZero() || c.EndsAt.IsZero() {
		return false
	}
	return !t.Before(c.StartsAt) && t.Before(c.EndsAt)
}
