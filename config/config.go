// Package config loads the mcfs settings. Priority, lowest first:
// defaults, config file, MCFS_* environment variables, command line
// flags bound with BindFlag.
package config

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/rstms/mcfs/card"
)

const (
	EnvPrefix = "MCFS"
	// FileName is the config file base name; the extension selects the
	// format (mcfs.toml, mcfs.yaml).
	FileName = "mcfs"
)

// Config holds the resolved settings.
type Config struct {
	Image              string `mapstructure:"image" toml:"image" yaml:"image"`
	Verbose            bool   `mapstructure:"verbose" toml:"verbose" yaml:"verbose"`
	NoColor            bool   `mapstructure:"no_color" toml:"no_color" yaml:"no_color"`
	ECC                bool   `mapstructure:"ecc" toml:"ecc" yaml:"ecc"`
	PageSize           int    `mapstructure:"page_size" toml:"page_size" yaml:"page_size"`
	PagesPerEraseBlock int    `mapstructure:"pages_per_erase_block" toml:"pages_per_erase_block" yaml:"pages_per_erase_block"`
	PagesPerCard       int    `mapstructure:"pages_per_card" toml:"pages_per_card" yaml:"pages_per_card"`
}

// Params returns the geometry used by format.
func (c *Config) Params() card.Params {
	return card.Params{
		WithECC:            c.ECC,
		PageSize:           c.PageSize,
		PagesPerEraseBlock: c.PagesPerEraseBlock,
		PagesPerCard:       c.PagesPerCard,
	}
}

// Loader reads the configuration from fs.
type Loader struct {
	v          *viper.Viper
	homeDir    string
	configPath string
}

// NewLoader returns a Loader. configPath names an explicit config file;
// when empty mcfs.* is searched for in the working directory and then
// in homeDir/.config/mcfs.
func NewLoader(fs afero.Fs, homeDir, configPath string) *Loader {
	v := viper.New()
	v.SetFs(fs)
	defaults := card.DefaultParams()
	v.SetDefault("image", "")
	v.SetDefault("verbose", false)
	v.SetDefault("no_color", false)
	v.SetDefault("ecc", defaults.WithECC)
	v.SetDefault("page_size", defaults.PageSize)
	v.SetDefault("pages_per_erase_block", defaults.PagesPerEraseBlock)
	v.SetDefault("pages_per_card", defaults.PagesPerCard)
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	return &Loader{
		v:          v,
		homeDir:    homeDir,
		configPath: configPath,
	}
}

// BindFlag lets a command line flag override key when it is set.
func (l *Loader) BindFlag(key string, flag *pflag.Flag) error {
	if flag == nil {
		return fmt.Errorf("no flag for config key %s", key)
	}
	return l.v.BindPFlag(key, flag)
}

// Load reads the config file, if any, and returns the merged settings.
func (l *Loader) Load() (*Config, error) {
	if l.configPath != "" {
		l.v.SetConfigFile(l.configPath)
	} else {
		l.v.SetConfigName(FileName)
		l.v.AddConfigPath(".")
		if l.homeDir != "" {
			l.v.AddConfigPath(filepath.Join(l.homeDir, ".config", "mcfs"))
		}
	}
	err := l.v.ReadInConfig()
	var notFound viper.ConfigFileNotFoundError
	if err != nil && !errors.As(err, &notFound) {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}

// ConfigFile returns the config file that was read, or "".
func (l *Loader) ConfigFile() string {
	return l.v.ConfigFileUsed()
}
