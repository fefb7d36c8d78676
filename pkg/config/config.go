// Package config loads the site cache configuration from a YAML file.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full service configuration.
type Config struct {
	// Version stamps the generation names, e.g. "v3". Bump it to ship a
	// new deploy.
	Version string `yaml:"version"`

	// Origin is the site origin all origin-form requests resolve against.
	Origin string `yaml:"origin"`

	// SkipWaiting activates a freshly installed generation set immediately
	// instead of waiting for the update prompt.
	SkipWaiting bool `yaml:"skip_waiting"`

	Server struct {
		Port int `yaml:"port"`
	} `yaml:"server"`

	Cache struct {
		// Backend selects the store: "leveldb" (default) or "redis".
		Backend     string `yaml:"backend"`
		RedisAddr   string `yaml:"redis_addr"`
		LevelDBPath string `yaml:"leveldb_path"`

		// APITimeout bounds the API tier's network attempt.
		APITimeout time.Duration `yaml:"api_timeout"`
	} `yaml:"cache"`

	// Precache lists the asset paths staged at install. All or nothing.
	Precache []string `yaml:"precache"`

	Routes struct {
		APIPrefixes []string `yaml:"api_prefixes"`
		CDNPrefixes []string `yaml:"cdn_prefixes"`
	} `yaml:"routes"`

	Relay struct {
		// Enabled mounts the friend-link relay route.
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"relay"`
}

// Load reads and validates a config file, applying defaults.
func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Origin == "" {
		return fmt.Errorf("origin is required")
	}
	if !strings.HasPrefix(c.Origin, "http://") && !strings.HasPrefix(c.Origin, "https://") {
		return fmt.Errorf("origin must be an absolute http(s) URL, got %q", c.Origin)
	}
	c.Origin = strings.TrimRight(c.Origin, "/")

	if c.Version == "" {
		c.Version = "v1"
	}
	// ':' delimits generation names inside storage keys.
	if strings.Contains(c.Version, ":") {
		return fmt.Errorf("version must not contain ':', got %q", c.Version)
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}

	switch c.Cache.Backend {
	case "":
		c.Cache.Backend = "leveldb"
	case "leveldb", "redis":
	default:
		return fmt.Errorf("cache.backend must be leveldb or redis, got %q", c.Cache.Backend)
	}
	if c.Cache.Backend == "redis" && c.Cache.RedisAddr == "" {
		c.Cache.RedisAddr = "localhost:6379"
	}
	if c.Cache.Backend == "leveldb" && c.Cache.LevelDBPath == "" {
		c.Cache.LevelDBPath = "sitecache.db"
	}
	if c.Cache.APITimeout < 0 {
		return fmt.Errorf("cache.api_timeout must not be negative")
	}

	for i, p := range c.Precache {
		if !strings.HasPrefix(p, "/") {
			return fmt.Errorf("precache[%d]: path must start with /, got %q", i, p)
		}
	}

	if c.Relay.Enabled && c.Relay.Path == "" {
		c.Relay.Path = "/api/friend-link"
	}

	return nil
}
