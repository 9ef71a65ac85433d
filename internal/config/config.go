package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	DB       DBConfig       `mapstructure:"db"`
	Cron     CronConfig     `mapstructure:"cron"`
	Fetch    FetchConfig    `mapstructure:"fetch"`
	Scrape   ScrapeConfig   `mapstructure:"scrape"`
	Blob     BlobConfig     `mapstructure:"blob"`
	SoldScan SoldScanConfig `mapstructure:"sold_scan"`
}

type AppConfig struct {
	Env string `mapstructure:"env"`
}

type ServerConfig struct {
	HTTPAddr string `mapstructure:"http_addr"`
}

type LogConfig struct {
	Level             string `mapstructure:"level"`
	Encoding          string `mapstructure:"encoding"`
	Development       bool   `mapstructure:"development"`
	Sampling          bool   `mapstructure:"sampling"`
	DisableCaller     bool   `mapstructure:"disable_caller"`
	DisableStacktrace bool   `mapstructure:"disable_stacktrace"`
}

type DBConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	Timezone        string        `mapstructure:"timezone"`
}

type CronConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	SoldScan string `mapstructure:"sold_scan"`
}

type FetchConfig struct {
	BaseURL     string        `mapstructure:"base_url"`
	APIKey      string        `mapstructure:"api_key"`
	Timeout     time.Duration `mapstructure:"timeout"`
	BackoffBase time.Duration `mapstructure:"backoff_base"`
}

type ScrapeConfig struct {
	MaxConcurrency int           `mapstructure:"max_concurrency"`
	RPMLimit       int           `mapstructure:"rpm_limit"`
	MaxAttempts    int           `mapstructure:"max_attempts"`
	TaskTimeout    time.Duration `mapstructure:"task_timeout"`
}

type BlobConfig struct {
	Driver    string `mapstructure:"driver"`
	LocalRoot string `mapstructure:"local_root"`
	GCSBucket string `mapstructure:"gcs_bucket"`
}

type SoldScanConfig struct {
	Enabled            bool          `mapstructure:"enabled"`
	ScanInterval       time.Duration `mapstructure:"scan_interval"`
	AbsentCycles       int           `mapstructure:"absent_cycles"`
	TransferWindowDays int           `mapstructure:"transfer_window_days"`
}

func Load(path string, envOnly bool) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("DW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv()
	v.SetDefault("app.env", "dev")
	v.SetDefault("server.http_addr", ":8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "console")
	v.SetDefault("log.development", true)
	v.SetDefault("log.sampling", false)
	v.SetDefault("log.disable_caller", false)
	v.SetDefault("log.disable_stacktrace", false)
	v.SetDefault("db.max_open_conns", 20)
	v.SetDefault("db.max_idle_conns", 5)
	v.SetDefault("db.conn_max_lifetime", "30m")
	v.SetDefault("db.conn_max_idle_time", "5m")
	v.SetDefault("db.timezone", "UTC")
	v.SetDefault("cron.enabled", true)
	v.SetDefault("cron.sold_scan", "@every 1h")
	v.SetDefault("fetch.base_url", "https://api.firecrawl.dev")
	v.SetDefault("fetch.timeout", "25s")
	v.SetDefault("fetch.backoff_base", "500ms")
	v.SetDefault("scrape.max_concurrency", 5)
	v.SetDefault("scrape.rpm_limit", 100)
	v.SetDefault("scrape.max_attempts", 2)
	v.SetDefault("scrape.task_timeout", "2m")
	v.SetDefault("blob.driver", "local")
	v.SetDefault("blob.local_root", "data/raw_blobs")
	v.SetDefault("sold_scan.enabled", true)
	v.SetDefault("sold_scan.scan_interval", "1h")
	v.SetDefault("sold_scan.absent_cycles", 2)
	v.SetDefault("sold_scan.transfer_window_days", 7)

	if !envOnly {
		if err := v.ReadInConfig(); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}
