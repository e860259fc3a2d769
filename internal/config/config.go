package config

import (
	"log"
	"os"
	"strconv"
	"time"
)

type Config struct {
	AppPort string

	PostgresDSN string
	RedisAddr   string

	// 调度：cron 表达式决定多久检查一次到期的数据源
	ScrapeTick   string
	ScrapePause  time.Duration
	StartupDelay time.Duration

	FetchTimeout time.Duration
	UserAgent    string

	CleanupCron   string
	RetentionDays int

	SourcesFile    string
	SourceTimezone *time.Location

	BasicAuthUser string
	BasicAuthPass string
}

func Load() *Config {
	cfg := &Config{
		AppPort:        getEnv("APP_PORT", "9000"),
		PostgresDSN:    getEnv("POSTGRES_DSN", "host=localhost user=newshub password=newshub dbname=newshub port=5432 sslmode=disable TimeZone=UTC"),
		RedisAddr:      getEnv("REDIS_ADDR", "localhost:6379"),
		ScrapeTick:     getEnv("SCRAPE_TICK", "@every 1m"),
		ScrapePause:    getDuration("SCRAPE_PAUSE", 5*time.Second),
		StartupDelay:   getDuration("STARTUP_DELAY", 15*time.Second),
		FetchTimeout:   getDuration("FETCH_TIMEOUT", 30*time.Second),
		UserAgent:      getEnv("USER_AGENT", ""),
		CleanupCron:    getEnv("CLEANUP_CRON", "0 2 * * *"),
		RetentionDays:  getInt("RETENTION_DAYS", 180),
		SourcesFile:    getEnv("SOURCES_FILE", "sources.yaml"),
		SourceTimezone: getLocation("SOURCE_TIMEZONE", "America/Lima"),
		BasicAuthUser:  os.Getenv("APP_BASIC_USER"),
		BasicAuthPass:  os.Getenv("APP_BASIC_PASS"),
	}

	log.Printf("config loaded: port=%s tick=%s pause=%s tz=%s", cfg.AppPort, cfg.ScrapeTick, cfg.ScrapePause, cfg.SourceTimezone)
	return cfg
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		log.Printf("warn: invalid %s=%q, using %s", key, v, def)
		return def
	}
	return d
}

func getInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		log.Printf("warn: invalid %s=%q, using %d", key, v, def)
		return def
	}
	return n
}

// getLocation 加载数据源页面日期所用的时区，失败时退回 UTC
func getLocation(key, def string) *time.Location {
	name := getEnv(key, def)
	loc, err := time.LoadLocation(name)
	if err != nil {
		log.Printf("warn: load timezone %s failed: %v, using UTC", name, err)
		return time.UTC
	}
	return loc
}
