// Package config provides configuration helpers and TOML parsing.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// FileConfig represents the TOML configuration file.
type FileConfig struct {
	API   APIConfig   `toml:"api"`
	Cache CacheConfig `toml:"cache"`
	View  ViewConfig  `toml:"view"`
	Log   LogConfig   `toml:"log"`
	Audit AuditConfig `toml:"audit"`
}

// APIConfig maps remote API settings.
type APIConfig struct {
	BaseURL     *string `toml:"base-url"`
	Timeout     *string `toml:"timeout"`
	Concurrency *int    `toml:"concurrency"`
}

// CacheConfig maps list cache settings.
type CacheConfig struct {
	TTL *string `toml:"ttl"`
}

// ViewConfig maps collection view defaults.
type ViewConfig struct {
	PageSize *int `toml:"page-size"`
}

// LogConfig maps logging settings.
type LogConfig struct {
	Level *string `toml:"level"`
	File  *string `toml:"file"`
}

// AuditConfig maps the optional AMQP audit publisher.
type AuditConfig struct {
	AMQPURL  *string `toml:"amqp-url"`
	Exchange *string `toml:"exchange"`
	Queue    *string `toml:"queue"`
}

// LoadConfig reads a TOML config from the given path. Missing file is not an error.
func LoadConfig(path string) (FileConfig, error) {
	if path == "" {
		return FileConfig{}, fmt.Errorf("config path is empty")
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, nil
		}
		return FileConfig{}, fmt.Errorf("failed to stat config: %w", err)
	}
	var cfg FileConfig
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return FileConfig{}, fmt.Errorf("failed to decode config: %w", err)
	}
	return cfg, nil
}
