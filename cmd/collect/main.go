package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/LJTian/NewsHub/internal/collector"
	"github.com/LJTian/NewsHub/internal/config"
	"github.com/LJTian/NewsHub/internal/ingest"
	"github.com/LJTian/NewsHub/internal/processor"
	"github.com/LJTian/NewsHub/internal/scheduler"
	"github.com/LJTian/NewsHub/internal/storage"
)

// 一个仅执行一次采集任务的命令行入口：适合手动触发采集
func main() {
	source := flag.String("source", "", "only collect the named source")
	flag.Parse()

	cfg := config.Load()

	store, err := storage.NewStore(cfg.PostgresDSN, cfg.RedisAddr)
	if err != nil {
		log.Fatalf("init store failed: %v", err)
	}

	// 确保数据源存在（与 cmd/api 保持一致）
	seeds, err := config.LoadSources(cfg.SourcesFile)
	if err != nil {
		log.Fatalf("load sources failed: %v", err)
	}
	ctx := context.Background()
	if err := store.EnsureSeeds(ctx, seeds); err != nil {
		log.Fatalf("ensure sources failed: %v", err)
	}

	coord := ingest.NewCoordinator(
		collector.NewCollyFetcher(cfg.UserAgent, cfg.FetchTimeout),
		processor.NewNormalizer(cfg.SourceTimezone),
		store,
	)
	s, err := scheduler.New(scheduler.Options{
		TickSpec: cfg.ScrapeTick,
		Pause:    cfg.ScrapePause,
	}, store, coord)
	if err != nil {
		log.Fatalf("init scheduler failed: %v", err)
	}

	// 只执行一轮采集任务后退出
	var reports []scheduler.Report
	if *source != "" {
		rep, err := s.RunOne(ctx, *source)
		if err != nil {
			log.Fatalf("run %s failed: %v", *source, err)
		}
		reports = append(reports, rep)
	} else if reports, err = s.RunAll(ctx); err != nil {
		log.Fatalf("run all failed: %v", err)
	}

	failed := 0
	for _, rep := range reports {
		if rep.Err != nil {
			failed++
		}
		log.Printf("%s: new=%d seen=%d skipped=%d took=%s", rep.Source, rep.NewArticles, rep.Seen, rep.Skipped, rep.Duration.Round(time.Millisecond))
	}
	log.Printf("collect done, sources=%d failed=%d", len(reports), failed)
}
