// Package config loads the lotbook configuration and builds the process logger.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes the environment variables overriding configuration
// keys, e.g. LOTBOOK_DATABASE_PATH for database.path.
const EnvPrefix = "LOTBOOK"

type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Log      LogConfig      `mapstructure:"log"`
	Defaults DefaultsConfig `mapstructure:"defaults"`
	Feeds    FeedsConfig    `mapstructure:"feeds"`
	Stocks   StocksConfig   `mapstructure:"stocks"`
}

type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // text or json
	File   string `mapstructure:"file"`   // stderr when empty
}

type DefaultsConfig struct {
	Currency string `mapstructure:"currency"`
	User     string `mapstructure:"user"`
}

type FeedsConfig struct {
	Splits FeedConfig `mapstructure:"splits"`
	Bonus  FeedConfig `mapstructure:"bonus"`
	Cache  string     `mapstructure:"cache"` // directory of the daily HTTP cache
}

// FeedConfig locates a corporate action feed.
type FeedConfig struct {
	Source string       `mapstructure:"source"` // file path or http(s) URL, disabled when empty
	Path   string       `mapstructure:"path"`   // JSONPath of the record array
	Fields FieldsConfig `mapstructure:"fields"`
}

// FieldsConfig overrides the JSONPath of record attributes. Empty values
// keep the feed defaults.
type FieldsConfig struct {
	Name   string `mapstructure:"name"`
	Symbol string `mapstructure:"symbol"`
	SID    string `mapstructure:"sid"`
	ISIN   string `mapstructure:"isin"`
	ExDate string `mapstructure:"ex_date"`
	OldFV  string `mapstructure:"old_fv"`
	NewFV  string `mapstructure:"new_fv"`
	Ratio  string `mapstructure:"ratio"`
}

type StocksConfig struct {
	File string `mapstructure:"file"`
}

var defaults = map[string]any{
	"database.path":       "lotbook.db",
	"log.level":           "info",
	"log.format":          "text",
	"log.file":            "",
	"defaults.currency":   "INR",
	"defaults.user":       "",
	"feeds.splits.source": "",
	"feeds.splits.path":   "$",
	"feeds.bonus.source":  "",
	"feeds.bonus.path":    "$",
	"feeds.cache":         "",
	"stocks.file":         "stocks.yaml",
}

func init() {
	// known keys can be overridden from the environment
	for _, feed := range []string{"splits", "bonus"} {
		for _, field := range []string{"name", "symbol", "sid", "isin", "ex_date", "old_fv", "new_fv", "ratio"} {
			defaults["feeds."+feed+".fields."+field] = ""
		}
	}
}

// Load reads the configuration.
//
// Variables from a .env file in the current directory are loaded first,
// without overriding the environment. When file is empty, lotbook.yaml is
// searched in the current directory then in $HOME/.lotbook, and a missing
// file is not an error. LOTBOOK_* variables override file values.
func Load(file string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("cannot load .env: %w", err)
	}

	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("lotbook")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath(filepath.Join("$HOME", ".lotbook"))
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("cannot read configuration: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	cfg.Defaults.Currency = strings.ToUpper(cfg.Defaults.Currency)
	return &cfg, nil
}
