/*
Copyright © 2025 Benny Powers <web@bennypowers.com>

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program. If not, see <http://www.gnu.org/licenses/>.
*/

// Package config defines the recognized configuration tree (spec §6) and
// loads it from layered TOML/JSON sources with environment overrides via
// spf13/viper, the same way cmd/root.go layers the CLI's own config.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"
)

type ValidationOnFailure string

const (
	OnFailureReport      ValidationOnFailure = "Report"
	OnFailureRollback    ValidationOnFailure = "Rollback"
	OnFailureInteractive ValidationOnFailure = "Interactive"
)

type TLSConfig struct {
	CertFile string `mapstructure:"certFile"`
	KeyFile  string `mapstructure:"keyFile"`
}

type AuthConfig struct {
	Token string `mapstructure:"token"`
}

type ServerConfig struct {
	Host       string      `mapstructure:"host"`
	Port       int         `mapstructure:"port"`
	MaxClients int         `mapstructure:"maxClients"`
	TimeoutMs  int         `mapstructure:"timeoutMs"`
	TLS        *TLSConfig  `mapstructure:"tls"`
	Auth       *AuthConfig `mapstructure:"auth"`
}

type LSPServerConfig struct {
	Extensions            []string       `mapstructure:"extensions"`
	Command               []string       `mapstructure:"command"`
	RootDir               string         `mapstructure:"rootDir"`
	RestartIntervalMs     int            `mapstructure:"restartInterval"`
	InitializationOptions map[string]any `mapstructure:"initializationOptions"`
}

type LSPConfig struct {
	Servers           []LSPServerConfig `mapstructure:"servers"`
	DefaultTimeoutMs  int               `mapstructure:"defaultTimeoutMs"`
	EnablePreload     bool              `mapstructure:"enablePreload"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

type CacheConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	MaxSizeBytes int64  `mapstructure:"maxSizeBytes"`
	TTLSeconds   int    `mapstructure:"ttlSeconds"`
	Persistent   bool   `mapstructure:"persistent"`
	CacheDir     string `mapstructure:"cacheDir"`
}

type GitConfig struct {
	Enabled    bool     `mapstructure:"enabled"`
	Require    bool     `mapstructure:"require"`
	Operations []string `mapstructure:"operations"`
}

type ValidationConfig struct {
	Enabled   bool                `mapstructure:"enabled"`
	Command   string              `mapstructure:"command"`
	OnFailure ValidationOnFailure `mapstructure:"onFailure"`
}

type PluginSelectionConfig struct {
	Priorities       map[string][]string `mapstructure:"priorities"`
	ErrorOnAmbiguity bool                `mapstructure:"errorOnAmbiguity"`
}

type LanguagePluginConfig struct {
	Name       string   `mapstructure:"name"`
	Extensions []string `mapstructure:"extensions"`
}

type LanguagePluginsConfig struct {
	Plugins []LanguagePluginConfig `mapstructure:"plugins"`
}

// Config is the full recognized option tree from spec §6.
type Config struct {
	ProjectDir      string                `mapstructure:"-"`
	ConfigFile      string                `mapstructure:"-"`
	Server          ServerConfig          `mapstructure:"server"`
	LSP             LSPConfig             `mapstructure:"lsp"`
	Logging         LoggingConfig         `mapstructure:"logging"`
	Cache           CacheConfig           `mapstructure:"cache"`
	Git             GitConfig             `mapstructure:"git"`
	Validation      ValidationConfig      `mapstructure:"validation"`
	PluginSelection PluginSelectionConfig `mapstructure:"pluginSelection"`
	LanguagePlugins LanguagePluginsConfig `mapstructure:"languagePlugins"`
}

// Default returns the built-in defaults before any layered source is
// applied.
func Default() *Config {
	cacheDir, err := xdg.CacheFile(filepath.Join("millwright", "cache"))
	if err != nil {
		cacheDir = filepath.Join(os.TempDir(), "millwright-cache")
	}
	return &Config{
		Server: ServerConfig{
			Host:       "127.0.0.1",
			Port:       0,
			MaxClients: 16,
			TimeoutMs:  30_000,
		},
		LSP: LSPConfig{
			DefaultTimeoutMs: 10_000,
			EnablePreload:    false,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Cache: CacheConfig{
			Enabled:      true,
			MaxSizeBytes: 256 * 1024 * 1024,
			TTLSeconds:   86_400,
			Persistent:   true,
			CacheDir:     cacheDir,
		},
		Validation: ValidationConfig{
			OnFailure: OnFailureReport,
		},
		PluginSelection: PluginSelectionConfig{
			ErrorOnAmbiguity: false,
		},
	}
}

// Load layers config sources the way cmd/root.go's initConfig resolves
// project directory and config file path: an explicit configPath wins; a
// profile name selects an overlay section merged on top of the base
// document; environment variables with a "MILLWRIGHT" prefix and "__" as
// the nesting separator override everything.
func Load(projectDir, configPath, profile string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("toml")

	cfg := Default()
	v.SetDefault("server", cfg.Server)
	v.SetDefault("lsp", cfg.LSP)
	v.SetDefault("logging", cfg.Logging)
	v.SetDefault("cache", cfg.Cache)
	v.SetDefault("git", cfg.Git)
	v.SetDefault("validation", cfg.Validation)
	v.SetDefault("pluginSelection", cfg.PluginSelection)

	if configPath == "" {
		configPath = filepath.Join(projectDir, ".config", "millwright.toml")
	}
	if _, err := os.Stat(configPath); err == nil {
		v.SetConfigFile(configPath)
		if strings.HasSuffix(configPath, ".json") {
			v.SetConfigType("json")
		}
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", configPath, err)
		}
	}

	if profile != "" {
		overlay := v.Sub("profiles." + profile)
		if overlay != nil {
			for _, key := range overlay.AllKeys() {
				v.Set(key, overlay.Get(key))
			}
		}
	}

	v.SetEnvPrefix("MILLWRIGHT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "__"))
	v.AutomaticEnv()

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}
	cfg.ProjectDir = projectDir
	cfg.ConfigFile = configPath
	return cfg, nil
}
