package configs

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/ini.v1"
)

type Config struct {
	Log struct {
		Level string `ini:"level"`
	} `ini:"log"`

	Sources struct {
		GeonodeURL     string `ini:"geonode_url"`
		GeonodeLimit   int    `ini:"geonode_limit"`
		ProxyScanURL   string `ini:"proxyscan_url"`
		ProxyScanLimit int    `ini:"proxyscan_limit"`
		ProxyScanType  string `ini:"proxyscan_type"`
		HTTPFeedURL    string `ini:"http_feed_url"`
		Socks4FeedURL  string `ini:"socks4_feed_url"`
		Socks5FeedURL  string `ini:"socks5_feed_url"`
		TimeoutSeconds int    `ini:"timeout_seconds"`
	} `ini:"sources"`

	Checker struct {
		TargetURL      string `ini:"target_url"`
		TimeoutSeconds int    `ini:"timeout_seconds"`
	} `ini:"checker"`

	GeoIP struct {
		DBPath    string `ini:"db_path"`
		CacheSize int    `ini:"cache_size"`
	} `ini:"geoip"`

	Storage struct {
		DatabaseURL string `ini:"database_url"`
		BatchSize   int    `ini:"batch_size"`
	} `ini:"storage"`

	Metrics struct {
		Addr string `ini:"addr"`
	} `ini:"metrics"`
}

// Default returns the built-in configuration.
func Default() *Config {
	cfg := &Config{}
	cfg.Log.Level = "info"

	cfg.Sources.GeonodeURL = "https://proxylist.geonode.com/api/proxy-list"
	cfg.Sources.GeonodeLimit = 500
	cfg.Sources.ProxyScanURL = "https://www.proxyscan.io/api/proxy"
	cfg.Sources.ProxyScanLimit = 100
	cfg.Sources.HTTPFeedURL = "https://raw.githubusercontent.com/TheSpeedX/PROXY-List/master/http.txt"
	cfg.Sources.Socks4FeedURL = "https://raw.githubusercontent.com/TheSpeedX/PROXY-List/master/socks4.txt"
	cfg.Sources.Socks5FeedURL = "https://raw.githubusercontent.com/TheSpeedX/PROXY-List/master/socks5.txt"
	cfg.Sources.TimeoutSeconds = 30

	cfg.Checker.TargetURL = "https://www.google.com"
	cfg.Checker.TimeoutSeconds = 10

	cfg.GeoIP.CacheSize = 4096
	cfg.Storage.BatchSize = 100
	return cfg
}

// Load builds the configuration from defaults, the optional ini file at
// path, an optional .env file and the environment, in that order.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := ini.MapTo(cfg, path); err != nil {
				return nil, fmt.Errorf("failed to map config file %s: %w", path, err)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to stat config file %s: %w", path, err)
		}
	}

	// Try loading .env, but don't fail if it doesn't exist (e.g. production)
	_ = godotenv.Load()

	overrideFromEnv(&cfg.Storage.DatabaseURL, "DATABASE_URL")
	overrideFromEnv(&cfg.Log.Level, "PROXYFINDER_LOG_LEVEL")
	overrideFromEnv(&cfg.GeoIP.DBPath, "PROXYFINDER_GEOIP_DB")
	overrideFromEnv(&cfg.Metrics.Addr, "PROXYFINDER_METRICS_ADDR")
	overrideFromEnvInt(&cfg.Checker.TimeoutSeconds, "PROXYFINDER_CHECK_TIMEOUT")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the components cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.Sources.TimeoutSeconds <= 0:
		return fmt.Errorf("sources.timeout_seconds must be positive, got %d", c.Sources.TimeoutSeconds)
	case c.Checker.TimeoutSeconds <= 0:
		return fmt.Errorf("checker.timeout_seconds must be positive, got %d", c.Checker.TimeoutSeconds)
	case c.Sources.GeonodeLimit <= 0:
		return fmt.Errorf("sources.geonode_limit must be positive, got %d", c.Sources.GeonodeLimit)
	case c.Sources.ProxyScanLimit <= 0:
		return fmt.Errorf("sources.proxyscan_limit must be positive, got %d", c.Sources.ProxyScanLimit)
	case c.Storage.BatchSize <= 0:
		return fmt.Errorf("storage.batch_size must be positive, got %d", c.Storage.BatchSize)
	case c.Checker.TargetURL == "":
		return errors.New("checker.target_url is not set")
	}
	return nil
}

func (c *Config) SourceTimeout() time.Duration {
	return time.Duration(c.Sources.TimeoutSeconds) * time.Second
}

func (c *Config) CheckTimeout() time.Duration {
	return time.Duration(c.Checker.TimeoutSeconds) * time.Second
}

func overrideFromEnv(target *string, envName string) {
	if v := os.Getenv(envName); v != "" {
		*target = v
	}
}

func overrideFromEnvInt(target *int, envName string) {
	envValue := os.Getenv(envName)
	if envValue != "" {
		if intValue, err := strconv.Atoi(envValue); err == nil {
			*target = intValue
		}
	}
}
