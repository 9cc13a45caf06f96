package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Storage backends selectable through configuration.
const (
	BackendPostgres = "postgres"
	BackendBolt     = "bolt"
	BackendJSONL    = "jsonl"
)

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	PoolListURL     string
	PollingInterval time.Duration
	UpdateInterval  time.Duration
	HistoryDays     float64
	RPCURL          string
	BlockAPI        string
	PGDSN           string
	BoltPath        string
	Out             string
	MetricsAddr     string
	InsecureTLS     bool
	LogLevel        string
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("COLLECTOR")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("polling-interval", "60s")
	v.SetDefault("update-interval", "1h")
	v.SetDefault("history-days", 0.25)
	v.SetDefault("block-api", "https://blockapi.turtlepay.io/block/header/")
	v.SetDefault("out", "./data")
	v.SetDefault("insecure-tls", true)
	v.SetDefault("log-level", "info")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	pollingInterval, err := getInterval(v, "polling-interval")
	if err != nil {
		return Config{}, err
	}
	updateInterval, err := getInterval(v, "update-interval")
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		PoolListURL:     strings.TrimSpace(v.GetString("pool-list")),
		PollingInterval: pollingInterval,
		UpdateInterval:  updateInterval,
		HistoryDays:     v.GetFloat64("history-days"),
		RPCURL:          v.GetString("rpc"),
		BlockAPI:        v.GetString("block-api"),
		PGDSN:           v.GetString("pg-dsn"),
		BoltPath:        v.GetString("bolt-path"),
		Out:             v.GetString("out"),
		MetricsAddr:     v.GetString("metrics-addr"),
		InsecureTLS:     v.GetBool("insecure-tls"),
		LogLevel:        v.GetString("log-level"),
	}

	return cfg, nil
}

// Validate reports missing or out of range settings.
func (c Config) Validate() error {
	if c.PoolListURL == "" {
		return fmt.Errorf("pool list url is required")
	}
	if c.PollingInterval <= 0 {
		return fmt.Errorf("polling interval must be positive")
	}
	if c.UpdateInterval <= 0 {
		return fmt.Errorf("update interval must be positive")
	}
	if c.HistoryDays <= 0 {
		return fmt.Errorf("history days must be positive")
	}
	return nil
}

// Backend returns the storage backend to use: pg-dsn wins over bolt-path,
// which wins over the JSONL directory.
func (c Config) Backend() string {
	switch {
	case c.PGDSN != "":
		return BackendPostgres
	case c.BoltPath != "":
		return BackendBolt
	default:
		return BackendJSONL
	}
}

// getInterval reads a duration such as "90s", or a bare number of seconds.
func getInterval(v *viper.Viper, key string) (time.Duration, error) {
	switch typed := v.Get(key).(type) {
	case time.Duration:
		return typed, nil
	case int:
		return time.Duration(typed) * time.Second, nil
	case int64:
		return time.Duration(typed) * time.Second, nil
	case float64:
		return time.Duration(typed * float64(time.Second)), nil
	case string:
		typed = strings.TrimSpace(typed)
		if secs, err := strconv.ParseFloat(typed, 64); err == nil {
			return time.Duration(secs * float64(time.Second)), nil
		}
		d, err := time.ParseDuration(typed)
		if err != nil {
			return 0, fmt.Errorf("parse %s: %w", key, err)
		}
		return d, nil
	default:
		return v.GetDuration(key), nil
	}
}
