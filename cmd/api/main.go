package main

import (
	"context"
	"log"
	"time"

	"github.com/LJTian/NewsHub/internal/api"
	"github.com/LJTian/NewsHub/internal/collector"
	"github.com/LJTian/NewsHub/internal/config"
	"github.com/LJTian/NewsHub/internal/ingest"
	"github.com/LJTian/NewsHub/internal/processor"
	"github.com/LJTian/NewsHub/internal/scheduler"
	"github.com/LJTian/NewsHub/internal/storage"
	"github.com/gin-gonic/gin"
)

func main() {
	cfg := config.Load()

	store, err := storage.NewStore(cfg.PostgresDSN, cfg.RedisAddr)
	if err != nil {
		log.Fatalf("init store failed: %v", err)
	}

	// 确保配置文件中的数据源存在
	seeds, err := config.LoadSources(cfg.SourcesFile)
	if err != nil {
		log.Fatalf("load sources failed: %v", err)
	}
	if err := store.EnsureSeeds(context.Background(), seeds); err != nil {
		log.Fatalf("ensure sources failed: %v", err)
	}

	coord := ingest.NewCoordinator(
		collector.NewCollyFetcher(cfg.UserAgent, cfg.FetchTimeout),
		processor.NewNormalizer(cfg.SourceTimezone),
		store,
	)

	s, err := scheduler.New(scheduler.Options{
		TickSpec:     cfg.ScrapeTick,
		CleanupSpec:  cfg.CleanupCron,
		Pause:        cfg.ScrapePause,
		StartupDelay: cfg.StartupDelay,
		Retention:    time.Duration(cfg.RetentionDays) * 24 * time.Hour,
	}, store, coord)
	if err != nil {
		log.Fatalf("init scheduler failed: %v", err)
	}
	s.Start()
	defer s.Stop()

	// API
	r := gin.Default()
	// 若配置了全局访问密码，则启用 Basic Auth 保护（/health 仍然免认证）
	if cfg.BasicAuthUser != "" && cfg.BasicAuthPass != "" {
		r.Use(api.BasicAuth(cfg.BasicAuthUser, cfg.BasicAuthPass))
	}

	api.NewServer(store, s, coord).RegisterRoutes(r)

	addr := ":" + cfg.AppPort
	log.Printf("starting api server at %s ...", addr)
	if err := r.Run(addr); err != nil {
		log.Fatalf("server exit: %v", err)
	}
}
