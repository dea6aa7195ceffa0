package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

type APIConfig struct {
	BaseURL string
	Timeout time.Duration
}

type PollConfig struct {
	Interval    time.Duration
	MaxWait     time.Duration
	SettleDelay time.Duration
}

type HistoryConfig struct {
	PageSize      int
	WatchInterval time.Duration
}

type SessionConfig struct {
	Dir        string
	Passphrase string
}

type AppConfig struct {
	Environment string
	API         APIConfig
	Poll        PollConfig
	History     HistoryConfig
	Session     SessionConfig
}

func Load() (*AppConfig, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".simguard"))
	}

	v.SetEnvPrefix("SIMGUARD")
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	var cfg AppConfig
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.Session.Dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home dir: %w", err)
		}
		cfg.Session.Dir = filepath.Join(home, ".simguard")
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")

	v.SetDefault("api.baseurl", "http://localhost:8000/api/v1")
	v.SetDefault("api.timeout", "30s")

	v.SetDefault("poll.interval", "2s")
	v.SetDefault("poll.maxwait", "10m")
	v.SetDefault("poll.settledelay", "600ms")

	v.SetDefault("history.pagesize", 8)
	v.SetDefault("history.watchinterval", "30s")
}
