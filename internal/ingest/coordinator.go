package ingest

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/LJTian/NewsHub/internal/collector"
	"github.com/LJTian/NewsHub/internal/processor"
	"github.com/LJTian/NewsHub/internal/storage"
)

// Kind 区分整源失败的原因
type Kind string

const (
	KindTransport Kind = "transport"
	KindParse     Kind = "parse"
	KindEmpty     Kind = "empty"
	KindStore     Kind = "store"
)

// SourceError 表示一次采集整体失败，本次没有写入任何后续文章
type SourceError struct {
	SourceID   string
	SourceName string
	Kind       Kind
	Err        error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("source %s: %s: %v", e.SourceName, e.Kind, e.Err)
}

func (e *SourceError) Unwrap() error { return e.Err }

// Store 是协调器需要的存储能力：按规范化 URL 幂等写入
type Store interface {
	SaveArticle(ctx context.Context, a *storage.Article) (*storage.Article, bool, error)
}

// Result 是一次成功采集的统计
type Result struct {
	Source      collector.SourceConfig
	NewArticles []storage.Article
	Seen        int // 抽取出的候选数
	Skipped     int // 单条抽取失败或校验未通过
	Duplicates  int // 已存在的 URL
}

type Coordinator struct {
	fetcher    collector.Fetcher
	normalizer *processor.Normalizer
	store      Store
}

func NewCoordinator(f collector.Fetcher, n *processor.Normalizer, s Store) *Coordinator {
	return &Coordinator{fetcher: f, normalizer: n, store: s}
}

// Ingest 抓取、抽取、清洗并去重写入一个数据源，只返回本次新写入的文章
func (c *Coordinator) Ingest(ctx context.Context, src collector.SourceConfig) (Result, error) {
	res := Result{Source: src, NewArticles: []storage.Article{}}

	items, err := c.extract(ctx, src, &res)
	if err != nil {
		return res, err
	}

	batch := processor.Process(items)
	res.Duplicates = len(items) - len(batch)

	for _, it := range batch {
		saved, created, err := c.store.SaveArticle(ctx, storage.ArticleFromProcessed(it))
		if err != nil {
			return res, c.fail(src, KindStore, err)
		}
		if !created {
			res.Duplicates++
			continue
		}
		res.NewArticles = append(res.NewArticles, *saved)
	}

	log.Printf("ingest %s: seen=%d new=%d duplicates=%d skipped=%d",
		src.Name, res.Seen, len(res.NewArticles), res.Duplicates, res.Skipped)
	return res, nil
}

// Preview 只抓取与抽取，不写入存储，用于测试数据源配置
func (c *Coordinator) Preview(ctx context.Context, src collector.SourceConfig) ([]processor.ProcessedNews, error) {
	var res Result
	items, err := c.extract(ctx, src, &res)
	if err != nil {
		return nil, err
	}
	return processor.Process(items), nil
}

func (c *Coordinator) extract(ctx context.Context, src collector.SourceConfig, res *Result) ([]processor.ProcessedNews, error) {
	body, err := c.fetcher.Fetch(ctx, src.BaseURL)
	if err != nil {
		return nil, c.fail(src, KindTransport, err)
	}

	seq, err := collector.Extract(src, body)
	if err != nil {
		if errors.Is(err, collector.ErrNoItems) {
			return nil, c.fail(src, KindEmpty, err)
		}
		return nil, c.fail(src, KindParse, err)
	}

	var items []processor.ProcessedNews
	for cand, err := range seq {
		if err != nil {
			log.Printf("warn: %s: skip element: %v", src.Name, err)
			res.Skipped++
			continue
		}
		res.Seen++
		p, err := c.normalizer.Normalize(src, cand)
		if err != nil {
			if !errors.Is(err, processor.ErrInvalidCandidate) {
				log.Printf("warn: %s: skip %q: %v", src.Name, cand.URL, err)
			}
			res.Skipped++
			continue
		}
		items = append(items, p)
	}
	return items, nil
}

func (c *Coordinator) fail(src collector.SourceConfig, kind Kind, err error) error {
	return &SourceError{SourceID: src.ID, SourceName: src.Name, Kind: kind, Err: err}
}
