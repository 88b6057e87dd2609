package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// Config is the resolved runtime configuration.
type Config struct {
	Port string
	Log  LogConfig

	DB      DBConfig
	Vendor  VendorConfig
	Cache   CacheConfig
	Refresh RefreshConfig
	Alert   AlertConfig

	DefaultConsumption float64
}

type LogConfig struct {
	Level  string
	Format string
}

type DBConfig struct {
	Driver      string // memory, file, sqlite, postgres
	DSN         string
	DataDir     string
	AutoMigrate bool
}

type VendorConfig struct {
	URL     string
	APIKey  string
	Timeout time.Duration
}

type CacheConfig struct {
	MaxAge time.Duration
}

type RefreshConfig struct {
	// Interval is either a number of seconds or a standard cron expression.
	Interval string
}

type AlertConfig struct {
	WebhookURL  string
	WebhookType string
	MinFailures int
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("port", "8000")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("db.driver", "memory")
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.datadir", ".data")
	v.SetDefault("db.automigrate", true)
	v.SetDefault("vendor.url", "")
	v.SetDefault("vendor.apikey", "")
	v.SetDefault("vendor.timeout", "5s")
	v.SetDefault("cache.maxage", "15m")
	v.SetDefault("refresh.interval", "900")
	v.SetDefault("alert.webhookurl", "")
	v.SetDefault("alert.webhooktype", "")
	v.SetDefault("alert.minfailures", 1)
	v.SetDefault("consumption.default", 1333)
}

// legacyEnv maps keys to the bare environment names older deployments use.
var legacyEnv = map[string]string{
	"vendor.url":    "VENDOR_API_URL",
	"vendor.apikey": "VENDOR_API_KEY",
	"db.datadir":    "DATA_DIR",
	"port":          "PORT",
}

// New returns a viper instance with defaults and environment bindings. The
// STROMDEALS_ prefix takes precedence over the legacy names.
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix("stromdeals")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range legacyEnv {
		prefixed := "STROMDEALS_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		_ = v.BindEnv(key, prefixed, env)
	}
	return v
}

// ReadFile loads cfgFile into v, or $HOME/.stromdeals.yaml when cfgFile is
// empty. A missing default file is not an error.
func ReadFile(v *viper.Viper, cfgFile string) error {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		home, err := homedir.Dir()
		if err != nil {
			return fmt.Errorf("resolve home dir: %w", err)
		}
		v.AddConfigPath(home)
		v.SetConfigName(".stromdeals")
		v.SetConfigType("yaml")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile == "" && errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

// Load resolves a Config from v.
func Load(v *viper.Viper) (Config, error) {
	c := Config{
		Port: v.GetString("port"),
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
		DB: DBConfig{
			Driver:      strings.ToLower(v.GetString("db.driver")),
			DSN:         v.GetString("db.dsn"),
			DataDir:     v.GetString("db.datadir"),
			AutoMigrate: v.GetBool("db.automigrate"),
		},
		Vendor: VendorConfig{
			URL:     strings.TrimSpace(v.GetString("vendor.url")),
			APIKey:  v.GetString("vendor.apikey"),
			Timeout: v.GetDuration("vendor.timeout"),
		},
		Cache:   CacheConfig{MaxAge: v.GetDuration("cache.maxage")},
		Refresh: RefreshConfig{Interval: v.GetString("refresh.interval")},
		Alert: AlertConfig{
			WebhookURL:  v.GetString("alert.webhookurl"),
			WebhookType: v.GetString("alert.webhooktype"),
			MinFailures: v.GetInt("alert.minfailures"),
		},
		DefaultConsumption: v.GetFloat64("consumption.default"),
	}

	switch c.DB.Driver {
	case "memory", "file", "sqlite", "postgres":
	default:
		return Config{}, fmt.Errorf("unsupported db.driver %q", c.DB.Driver)
	}
	if c.DB.Driver == "sqlite" && c.DB.DSN == "" {
		c.DB.DSN = filepath.Join(c.DB.DataDir, "stromdeals.db")
	}
	if c.DB.Driver == "postgres" && c.DB.DSN == "" {
		return Config{}, errors.New("db.dsn is required for postgres")
	}
	if c.Vendor.Timeout <= 0 {
		return Config{}, fmt.Errorf("vendor.timeout must be positive, got %s", c.Vendor.Timeout)
	}
	if c.Cache.MaxAge <= 0 {
		return Config{}, fmt.Errorf("cache.maxage must be positive, got %s", c.Cache.MaxAge)
	}
	if c.Alert.MinFailures < 1 {
		c.Alert.MinFailures = 1
	}
	if c.DefaultConsumption < 0 {
		c.DefaultConsumption = 0
	}
	return c, nil
}
