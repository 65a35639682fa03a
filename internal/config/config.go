// Package config provides configuration management for glossa using Viper
// for flexible loading from files, environment variables, and command-line
// flags.
//
// The configuration describes where source content lives, where generated
// artifacts go, which locales exist along with their fallback chains, and
// which content groups share one set of locales and dictionaries. The core
// packages only read it; nothing in the resolution pipeline mutates a
// loaded Config.
package config

import (
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"
	"golang.org/x/text/language"

	cerrors "github.com/conneroisu/glossa/internal/errors"
)

// LocalePlaceholder is substituted with a locale name in dictionary path
// templates.
const LocalePlaceholder = "{locale}"

type Config struct {
	Content       ContentConfig  `mapstructure:"content" yaml:"content" json:"content"`
	DefaultLocale string         `mapstructure:"default_locale" yaml:"default_locale" json:"default_locale"`
	Locales       []LocaleConfig `mapstructure:"locales" yaml:"locales" json:"locales"`
	Groups        []GroupConfig  `mapstructure:"groups" yaml:"groups" json:"groups"`
	Template      string         `mapstructure:"template" yaml:"template" json:"template"`
	Cache         CacheConfig    `mapstructure:"cache" yaml:"cache" json:"cache"`
	Log           LogConfig      `mapstructure:"log" yaml:"log" json:"log"`
}

type ContentConfig struct {
	Root          string `mapstructure:"root" yaml:"root" json:"root"`
	Output        string `mapstructure:"output" yaml:"output" json:"output"`
	Assets        string `mapstructure:"assets" yaml:"assets" json:"assets"`
	DeveloperMode bool   `mapstructure:"developer_mode" yaml:"developer_mode" json:"developer_mode"`
	// Workers bounds how many locales of one resource are generated at once.
	Workers int `mapstructure:"workers" yaml:"workers" json:"workers"`
}

// LocaleConfig names one locale and its ordered fallbacks, most specific
// first.
type LocaleConfig struct {
	Name      string   `mapstructure:"name" yaml:"name" json:"name"`
	Fallbacks []string `mapstructure:"fallbacks" yaml:"fallbacks" json:"fallbacks"`
}

// GroupConfig is a content group: documents under Path share Locales and
// the dictionaries found through the Dictionary template.
type GroupConfig struct {
	Name       string                       `mapstructure:"name" yaml:"name" json:"name"`
	Path       string                       `mapstructure:"path" yaml:"path" json:"path"`
	Locales    []string                     `mapstructure:"locales" yaml:"locales" json:"locales"`
	Dictionary string                       `mapstructure:"dictionary" yaml:"dictionary" json:"dictionary"`
	Variables  map[string]string            `mapstructure:"variables" yaml:"variables" json:"variables"`
	Categories map[string]map[string]string `mapstructure:"categories" yaml:"categories" json:"categories"`
}

type CacheConfig struct {
	MaxEntries int           `mapstructure:"max_entries" yaml:"max_entries" json:"max_entries"`
	TTL        time.Duration `mapstructure:"ttl" yaml:"ttl" json:"ttl"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level" json:"level"`
	Format string `mapstructure:"format" yaml:"format" json:"format"`
}

// Load unmarshals v into a Config, applies defaults, canonicalizes locale
// names and validates the result. When v was read from a file, relative
// paths are relative to that file rather than the working directory.
func Load(v *viper.Viper) (*Config, error) {
	if v == nil {
		v = viper.GetViper()
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, cerrors.WrapConfig(err, cerrors.ErrCodeConfigInvalid, "failed to decode configuration")
	}

	applyDefaults(&config)

	if used := v.ConfigFileUsed(); used != "" {
		base := filepath.Dir(used)
		config.Content.Root = resolveAgainst(base, config.Content.Root)
		config.Content.Output = resolveAgainst(base, config.Content.Output)
		config.Content.Assets = resolveAgainst(base, config.Content.Assets)
		if config.Template != "" {
			config.Template = resolveAgainst(base, config.Template)
		}
	}

	if err := config.canonicalize(); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// LoadFile reads a configuration file into a fresh viper instance and loads it.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, cerrors.WrapConfig(err, cerrors.ErrCodeConfigInvalid, "failed to read "+path)
	}
	return Load(v)
}

func resolveAgainst(base, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}

func applyDefaults(config *Config) {
	if config.Content.Root == "" {
		config.Content.Root = "./content"
	}
	if config.Content.Output == "" {
		config.Content.Output = "./.glossa/out"
	}
	if config.Content.Assets == "" {
		config.Content.Assets = "./assets"
	}
	if config.Content.Workers <= 0 {
		config.Content.Workers = runtime.NumCPU()
	}
	if config.DefaultLocale == "" {
		config.DefaultLocale = "en"
	}
	if config.Cache.MaxEntries <= 0 {
		config.Cache.MaxEntries = 512
	}
	if config.Cache.TTL <= 0 {
		config.Cache.TTL = time.Hour
	}
	if config.Log.Level == "" {
		config.Log.Level = "info"
	}
	if config.Log.Format == "" {
		config.Log.Format = "text"
	}

	// The default locale always has a configuration entry.
	found := false
	for _, l := range config.Locales {
		if strings.EqualFold(l.Name, config.DefaultLocale) {
			found = true
			break
		}
	}
	if !found {
		config.Locales = append(config.Locales, LocaleConfig{Name: config.DefaultLocale})
	}
}

// CanonicalLocale returns the BCP 47 canonical form of name.
func CanonicalLocale(name string) (string, error) {
	tag, err := language.Parse(strings.TrimSpace(name))
	if err != nil {
		return "", cerrors.WrapConfig(err, cerrors.ErrCodeConfigInvalid, fmt.Sprintf("invalid locale name %q", name))
	}
	return tag.String(), nil
}

func (c *Config) canonicalize() error {
	var err error
	if c.DefaultLocale, err = CanonicalLocale(c.DefaultLocale); err != nil {
		return err
	}
	for i := range c.Locales {
		l := &c.Locales[i]
		if l.Name, err = CanonicalLocale(l.Name); err != nil {
			return err
		}
		for j, fb := range l.Fallbacks {
			if l.Fallbacks[j], err = CanonicalLocale(fb); err != nil {
				return err
			}
		}
	}
	for i := range c.Groups {
		g := &c.Groups[i]
		for j, name := range g.Locales {
			if g.Locales[j], err = CanonicalLocale(name); err != nil {
				return err
			}
		}
		g.Path = strings.Trim(filepath.ToSlash(g.Path), "/")
	}
	return nil
}
