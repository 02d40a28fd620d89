package main

import (
	"harvest-backend/lib/restyutil"
	"harvest-backend/lib/sqliteutil"
)

type DatabaseConfig struct {
	// one of "sqlite", "libsql", "postgres" or "none"
	Driver   string                  `json:"driver"`
	Path     string                  `json:"path"`
	Libsql   sqliteutil.LibsqlConfig `json:"libsql"`
	Postgres string                  `json:"postgres_dsn"`
}

type ZomatoConfig struct {
	BaseUrl string                `json:"base_url"`
	Retry   restyutil.RetryPolicy `json:"retry"`
}

type CrawlConfig struct {
	RateLimit float64 `json:"rate_limit"`
	// an empty cache dir keeps the page cache in memory
	CacheDir      string `json:"cache_dir"`
	CacheTtlHours int    `json:"cache_ttl_hours"`
}

type Config struct {
	Port     int            `json:"port"`
	Database DatabaseConfig `json:"database"`
	Zomato   ZomatoConfig   `json:"zomato"`
	Crawl    CrawlConfig    `json:"crawl"`
	// menus are refreshed on this cron spec, empty disables refreshing
	RefreshCron string `json:"refresh_cron"`
}

var defaultConfig = Config{
	Port: 3000,
	Database: DatabaseConfig{
		Driver: "sqlite",
		Path:   "<dev_state>/harvest.db",
	},
	Zomato: ZomatoConfig{
		Retry: restyutil.DefaultRetryPolicy(),
	},
	Crawl: CrawlConfig{
		RateLimit:     1,
		CacheTtlHours: 24,
	},
}
