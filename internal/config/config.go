// Package config loads service configuration from a YAML file with
// environment overrides. Env wins over file, file wins over defaults.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	ListenAddr string `yaml:"listen_addr"`
	AuthSecret string `yaml:"auth_secret"`

	RedisAddr string `yaml:"redis_addr"`
	NATSURL   string `yaml:"nats_url"`

	SnapshotDir   string `yaml:"snapshot_dir"`
	CatalogExtras string `yaml:"catalog_extras"`

	ProbeTimeoutSec  int    `yaml:"probe_timeout_sec"`
	ProbeRetries     int    `yaml:"probe_retries"`
	SOAPTimeoutSec   int    `yaml:"soap_timeout_sec"`
	CacheSize        int    `yaml:"cache_size"`
	CacheTTLMinutes  int    `yaml:"cache_ttl_minutes"`
	EventRetries     int    `yaml:"event_retries"`
	FFmpegPath       string `yaml:"ffmpeg_path"`
	FFmpegTimeoutSec int    `yaml:"ffmpeg_timeout_sec"`
}

func defaults() Config {
	return Config{
		ListenAddr:       ":8080",
		AuthSecret:       "dev-secret-do-not-use-in-prod",
		ProbeTimeoutSec:  5,
		ProbeRetries:     3,
		SOAPTimeoutSec:   10,
		CacheSize:        1024,
		CacheTTLMinutes:  60,
		EventRetries:     3,
		FFmpegPath:       "ffmpeg",
		FFmpegTimeoutSec: 30,
	}
}

// Load reads path if it exists, then applies env overrides. A missing file
// is not an error; a malformed one is.
func Load(path string) (Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return cfg, fmt.Errorf("read %s: %w", path, err)
		}
	}

	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	setString(&cfg.ListenAddr, "SNAPSCOUT_LISTEN_ADDR")
	setString(&cfg.AuthSecret, "SNAPSCOUT_AUTH_SECRET")
	setString(&cfg.RedisAddr, "REDIS_ADDR")
	setString(&cfg.NATSURL, "NATS_URL")
	setString(&cfg.SnapshotDir, "SNAPSCOUT_SNAPSHOT_DIR")
	setString(&cfg.CatalogExtras, "SNAPSCOUT_CATALOG_EXTRAS")
	setString(&cfg.FFmpegPath, "SNAPSCOUT_FFMPEG_PATH")
	setInt(&cfg.ProbeTimeoutSec, "SNAPSCOUT_PROBE_TIMEOUT_SEC")
	setInt(&cfg.ProbeRetries, "SNAPSCOUT_PROBE_RETRIES")
	setInt(&cfg.SOAPTimeoutSec, "SNAPSCOUT_SOAP_TIMEOUT_SEC")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func (c Config) ProbeTimeout() time.Duration {
	return time.Duration(c.ProbeTimeoutSec) * time.Second
}

func (c Config) SOAPTimeout() time.Duration {
	return time.Duration(c.SOAPTimeoutSec) * time.Second
}

func (c Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLMinutes) * time.Minute
}

func (c Config) FFmpegTimeout() time.Duration {
	return time.Duration(c.FFmpegTimeoutSec) * time.Second
}
