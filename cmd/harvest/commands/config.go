package commands

import (
	"harvest-backend/lib/browser"
	"harvest-backend/lib/extract"
	"harvest-backend/lib/restyutil"
)

type RedditConfig struct {
	MaxPosts int `json:"max_posts"`
	Workers  int `json:"workers"`
}

type CrawlConfig struct {
	RateLimit     float64 `json:"rate_limit"`
	CacheDir      string  `json:"cache_dir"`
	CacheTtlHours int     `json:"cache_ttl_hours"`
}

type Config struct {
	Browser browser.Options       `json:"browser"`
	Loop    extract.LoopConfig    `json:"loop"`
	Retry   restyutil.RetryPolicy `json:"retry"`
	Reddit  RedditConfig          `json:"reddit"`
	Crawl   CrawlConfig           `json:"crawl"`
	// the json5 file declaring the targets of the extract command
	Targets string `json:"targets"`
}

var defaultConfig = Config{
	Browser: browser.Options{
		Headless:     true,
		UserAgent:    restyutil.DefaultUserAgent,
		WindowWidth:  1920,
		WindowHeight: 1080,
	},
	Loop: extract.LoopConfig{
		PollIntervalMs:     1500,
		StabilityThreshold: extract.DefaultStabilityThreshold,
	},
	Retry: restyutil.DefaultRetryPolicy(),
	Reddit: RedditConfig{
		MaxPosts: 50,
		Workers:  1,
	},
	Crawl: CrawlConfig{
		RateLimit:     1,
		CacheDir:      "<dev_state>/pagecache",
		CacheTtlHours: 24,
	},
	Targets: "targets.json5",
}
