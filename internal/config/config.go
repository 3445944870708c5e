package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// ConfigFileEnv names an optional YAML/TOML/JSON config file.
const ConfigFileEnv = "JETROC_CONFIG"

type Config struct {
	Port           string        `mapstructure:"port"`
	DBDSN          string        `mapstructure:"db_dsn"`
	MediaDir       string        `mapstructure:"media_dir"`
	LogFile        string        `mapstructure:"log_file"`
	LogLevel       string        `mapstructure:"log_level"`
	WhatsAppNumber string        `mapstructure:"whatsapp_number"`
	CatalogMaxAge  time.Duration `mapstructure:"catalog_max_age"`
	RateLimit      int           `mapstructure:"rate_limit"`
	CookieSecure   bool          `mapstructure:"cookie_secure"`
	AdminEmail     string        `mapstructure:"admin_email"`
	AdminPassword  string        `mapstructure:"admin_password"`
}

var defaults = map[string]any{
	"port":            "8080",
	"db_dsn":          "jetroc.db",
	"media_dir":       "./media",
	"log_file":        "",
	"log_level":       "info",
	"whatsapp_number": "2250586905549",
	"catalog_max_age": 5 * time.Minute,
	"rate_limit":      120,
	"cookie_secure":   false,
	"admin_email":     "",
	"admin_password":  "",
}

// flagKeys maps command-line flags to config keys.
var flagKeys = map[string]string{
	"port":      "port",
	"db-dsn":    "db_dsn",
	"media-dir": "media_dir",
	"log-level": "log_level",
}

// RegisterFlags adds the overridable settings to flags.
func RegisterFlags(flags *pflag.FlagSet) {
	flags.String("config", "", "config file (env "+ConfigFileEnv+")")
	flags.String("port", "", "HTTP port")
	flags.String("db-dsn", "", "SQLite DSN")
	flags.String("media-dir", "", "directory for uploaded images")
	flags.String("log-level", "", "debug, info, warn or error")
}

// Load merges, lowest first: defaults, a config file, the environment (a .env
// file fills unset variables) and flags. flags may be nil.
func Load(flags *pflag.FlagSet) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("config: .env: %w", err)
	}

	v := viper.New()
	for k, d := range defaults {
		v.SetDefault(k, d)
	}
	// Keys are matched against their upper-cased env names (PORT, DB_DSN, ...).
	v.AutomaticEnv()

	if file := configFile(flags); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", file, err)
		}
	}

	if flags != nil {
		for flag, key := range flagKeys {
			if f := flags.Lookup(flag); f != nil && f.Changed {
				if err := v.BindPFlag(key, f); err != nil {
					return Config{}, fmt.Errorf("config: flag %s: %w", flag, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: decode: %w", err)
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	switch {
	case c.Port == "":
		return errors.New("config: port is empty")
	case c.DBDSN == "":
		return errors.New("config: db_dsn is empty")
	case c.MediaDir == "":
		return errors.New("config: media_dir is empty")
	case c.RateLimit <= 0:
		return fmt.Errorf("config: rate_limit must be positive, got %d", c.RateLimit)
	case c.CatalogMaxAge < 0:
		return fmt.Errorf("config: catalog_max_age must not be negative, got %s", c.CatalogMaxAge)
	case (c.AdminEmail == "") != (c.AdminPassword == ""):
		return errors.New("config: admin_email and admin_password go together")
	}
	return nil
}

func configFile(flags *pflag.FlagSet) string {
	if flags != nil {
		if f := flags.Lookup("config"); f != nil && f.Value.String() != "" {
			return f.Value.String()
		}
	}
	return os.Getenv(ConfigFileEnv)
}
