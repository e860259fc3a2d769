package collector

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"
)

const (
	DefaultUserAgent    = "Mozilla/5.0 (compatible; NewsHubBot/1.0)"
	defaultFetchTimeout = 30 * time.Second
	maxBodyBytes        = 8 << 20 // 8MB，列表页和订阅源都不会超过这个量级
)

// ErrEmptyBody 表示请求成功但响应体为空
var ErrEmptyBody = errors.New("empty response body")

// Candidate 是抽取后、写库前的候选文章，字段均为原始文本
type Candidate struct {
	Title    string
	URL      string
	Summary  string
	ImageURL string
	Author   string
	Category string
	// DateText 为页面上的原始日期文本；订阅源已解析出时间时填 PublishedAt
	DateText    string
	PublishedAt *time.Time
	Strategy    Strategy
}

// Fetcher 抽象网络获取：返回原始字节，网络不可达或超时返回错误
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// CollyFetcher 基于 colly 的抓取实现，每次请求新建一个 collector，互不共享状态
type CollyFetcher struct {
	UserAgent string
	Timeout   time.Duration
	// MaxBodyBytes 为 0 时使用 maxBodyBytes；超出部分被 colly 截断
	MaxBodyBytes int
}

func NewCollyFetcher(userAgent string, timeout time.Duration) *CollyFetcher {
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	return &CollyFetcher{UserAgent: userAgent, Timeout: timeout, MaxBodyBytes: maxBodyBytes}
}

func (f *CollyFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	// colly 不支持中途取消，只能在发起前检查；超时由 SetRequestTimeout 兜底
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	limit := f.MaxBodyBytes
	if limit <= 0 {
		limit = maxBodyBytes
	}

	c := colly.NewCollector(
		colly.UserAgent(f.UserAgent),
		colly.AllowURLRevisit(),
		colly.DetectCharset(),
		colly.MaxBodySize(limit),
	)
	c.SetRequestTimeout(f.Timeout)

	var (
		body   []byte
		status int
	)
	c.OnResponse(func(r *colly.Response) {
		status = r.StatusCode
		body = r.Body
	})
	c.OnError(func(r *colly.Response, err error) {
		if r != nil {
			status = r.StatusCode
		}
	})

	if err := c.Visit(url); err != nil {
		if status >= http.StatusBadRequest {
			return nil, fmt.Errorf("fetch %s: status %d: %w", url, status, err)
		}
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	if len(body) == 0 {
		return nil, fmt.Errorf("fetch %s: %w", url, ErrEmptyBody)
	}
	if len(body) >= limit {
		log.Printf("warn: fetch %s: body truncated at %d bytes", url, limit)
	}
	return body, nil
}
