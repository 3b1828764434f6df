package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port           string  `yaml:"port"`
		RateLimitRPS   float64 `yaml:"rate_limit_rps"`
		RateLimitBurst int     `yaml:"rate_limit_burst"`
	} `yaml:"server"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Leaderboard struct {
		CacheTTL    string `yaml:"cache_ttl"`
		TopN        int    `yaml:"top_n"`
		TopMistakes int    `yaml:"top_mistakes"`
	} `yaml:"leaderboard"`
	Logging Logging `yaml:"logging"`
	Client  Client  `yaml:"client"`
}

// Logging configures the slog handler and optional rotating file output.
type Logging struct {
	Level      string `yaml:"level"`
	Dir        string `yaml:"dir"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// Client configures the player-side commands.
type Client struct {
	RemoteURL      string `yaml:"remote_url"`
	DBPath         string `yaml:"db_path"`
	SubmitTimeout  string `yaml:"submit_timeout"`
	ChallengeSlots int    `yaml:"challenge_slots"`
	LedgerCapacity int    `yaml:"ledger_capacity"`
}

// Load reads YAML config from path. A missing file yields the zero config so
// every command can run on defaults.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}

// IntOr returns v unless it is non-positive.
func IntOr(v, fallback int) int {
	if v <= 0 {
		return fallback
	}
	return v
}
