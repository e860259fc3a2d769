package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/LJTian/NewsHub/internal/collector"
	"github.com/LJTian/NewsHub/internal/ingest"
	"github.com/LJTian/NewsHub/internal/storage"
	"github.com/robfig/cron/v3"
)

var (
	ErrSourceNotFound = storage.ErrSourceNotFound
	ErrSourceInactive = errors.New("source is inactive")
)

// Store 是调度需要的数据源与清理能力
type Store interface {
	ListActiveSources(ctx context.Context) ([]storage.Source, error)
	GetSourceByName(ctx context.Context, name string) (*storage.Source, error)
	RecordScrape(ctx context.Context, sourceID string, success bool, at time.Time) error
	DeactivateOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type Ingester interface {
	Ingest(ctx context.Context, src collector.SourceConfig) (ingest.Result, error)
}

type Options struct {
	TickSpec     string        // 检查到期数据源的 cron 表达式
	CleanupSpec  string        // 清理过期文章的 cron 表达式，空串表示不清理
	Pause        time.Duration // 相邻两个数据源之间的间隔，避免对站点造成压力
	StartupDelay time.Duration
	Retention    time.Duration
}

// Report 是单个数据源一次采集的结果
type Report struct {
	SourceID    string        `json:"sourceId"`
	Source      string        `json:"source"`
	NewArticles int           `json:"newArticles"`
	Seen        int           `json:"seen"`
	Skipped     int           `json:"skipped"`
	Duplicates  int           `json:"duplicates"`
	Duration    time.Duration `json:"duration"`
	Error       string        `json:"error,omitempty"`
	Err         error         `json:"-"`
}

type Scheduler struct {
	cron     *cron.Cron
	store    Store
	ingester Ingester
	opts     Options

	tickMu sync.Mutex

	Now   func() time.Time
	Sleep func(ctx context.Context, d time.Duration) error
}

func New(opts Options, store Store, ing Ingester) (*Scheduler, error) {
	c := cron.New(cron.WithChain(cron.Recover(cron.PrintfLogger(log.Default()))))

	s := &Scheduler{
		cron:     c,
		store:    store,
		ingester: ing,
		opts:     opts,
		Now:      time.Now,
		Sleep:    sleep,
	}

	if _, err := c.AddFunc(opts.TickSpec, func() { s.Tick(context.Background()) }); err != nil {
		return nil, fmt.Errorf("tick spec %q: %w", opts.TickSpec, err)
	}
	if opts.CleanupSpec != "" {
		_, err := c.AddFunc(opts.CleanupSpec, func() {
			if _, err := s.Cleanup(context.Background()); err != nil {
				log.Printf("cleanup error: %v", err)
			}
		})
		if err != nil {
			return nil, fmt.Errorf("cleanup spec %q: %w", opts.CleanupSpec, err)
		}
	}

	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	// 延迟执行首轮采集，避免与服务启动争抢资源
	time.AfterFunc(s.opts.StartupDelay, func() {
		s.Tick(context.Background())
	})
}

// Stop 停止调度，返回的 context 在正在运行的任务结束后完成
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

// Tick 采集所有到期的启用数据源。上一轮未结束时直接跳过本轮
func (s *Scheduler) Tick(ctx context.Context) []Report {
	if !s.tickMu.TryLock() {
		log.Println("previous tick still running, skip")
		return nil
	}
	defer s.tickMu.Unlock()

	sources, err := s.store.ListActiveSources(ctx)
	if err != nil {
		log.Printf("list sources error: %v", err)
		return nil
	}

	now := s.Now()
	var due []collector.SourceConfig
	for _, src := range sources {
		cfg := src.Config()
		if cfg.IsDue(now) {
			due = append(due, cfg)
		}
	}
	if len(due) == 0 {
		return nil
	}

	log.Printf("tick: %d of %d sources due", len(due), len(sources))
	return s.runSources(ctx, due)
}

// RunAll 手动触发：采集所有启用的数据源，不检查是否到期
func (s *Scheduler) RunAll(ctx context.Context) ([]Report, error) {
	sources, err := s.store.ListActiveSources(ctx)
	if err != nil {
		return nil, err
	}
	cfgs := make([]collector.SourceConfig, 0, len(sources))
	for _, src := range sources {
		cfgs = append(cfgs, src.Config())
	}
	return s.runSources(ctx, cfgs), nil
}

// RunOne 手动触发单个数据源
func (s *Scheduler) RunOne(ctx context.Context, name string) (Report, error) {
	src, err := s.store.GetSourceByName(ctx, name)
	if err != nil {
		return Report{}, err
	}
	if !src.Active {
		return Report{}, fmt.Errorf("%w: %s", ErrSourceInactive, name)
	}
	return s.runSource(ctx, src.Config()), nil
}

// Cleanup 软删除超过保留期的文章
func (s *Scheduler) Cleanup(ctx context.Context) (int64, error) {
	if s.opts.Retention <= 0 {
		return 0, nil
	}
	cutoff := s.Now().Add(-s.opts.Retention)
	n, err := s.store.DeactivateOlderThan(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	log.Printf("cleanup done, deactivated=%d before %s", n, cutoff.Format(time.RFC3339))
	return n, nil
}

func (s *Scheduler) runSources(ctx context.Context, sources []collector.SourceConfig) []Report {
	reports := make([]Report, 0, len(sources))
	for i, cfg := range sources {
		if i > 0 && s.opts.Pause > 0 {
			if err := s.Sleep(ctx, s.opts.Pause); err != nil {
				log.Printf("run interrupted: %v", err)
				break
			}
		}
		reports = append(reports, s.runSource(ctx, cfg))
	}
	return reports
}

// runSource 采集一个数据源并记录统计。失败与 panic 都只影响当前数据源
func (s *Scheduler) runSource(ctx context.Context, cfg collector.SourceConfig) (rep Report) {
	rep = Report{SourceID: cfg.ID, Source: cfg.Name}
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			rep.Err = fmt.Errorf("panic: %v", r)
		}
		rep.Duration = time.Since(start)
		if rep.Err != nil {
			rep.Error = rep.Err.Error()
			log.Printf("ingest %s error: %v", cfg.Name, rep.Err)
		}
		if err := s.store.RecordScrape(ctx, cfg.ID, rep.Err == nil, s.Now()); err != nil {
			log.Printf("warn: record scrape %s failed: %v", cfg.Name, err)
		}
	}()

	res, err := s.ingester.Ingest(ctx, cfg)
	rep.NewArticles = len(res.NewArticles)
	rep.Seen = res.Seen
	rep.Skipped = res.Skipped
	rep.Duplicates = res.Duplicates
	rep.Err = err
	return rep
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
