package processor

import (
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/LJTian/NewsHub/internal/collector"
)

const (
	DefaultAuthor   = "Redacción"
	DefaultCategory = collector.DefaultCategory

	titleMaxRunes   = 500
	summaryMaxRunes = 1000
	shortFieldRunes = 100
	urlMaxRunes     = 1000
)

// ErrInvalidCandidate 表示候选缺少标题或链接，调用方应静默丢弃
var ErrInvalidCandidate = errors.New("candidate has no title or url")

// ProcessedNews 是写入存储层前的统一结构
type ProcessedNews struct {
	ID            string
	Title         string
	URL           string
	Summary       string
	ImageURL      string
	SourceID      string
	SourceName    string
	Author        string
	Category      string
	PublishedAt   time.Time
	DateEstimated bool // 日期无法解析，PublishedAt 退回为采集时间
	RawData       map[string]any
}

// Normalizer 做字段清洗：URL 规范化、文本截断、默认作者/分类、日期解析
type Normalizer struct {
	Location *time.Location
	Now      func() time.Time
}

func NewNormalizer(loc *time.Location) *Normalizer {
	if loc == nil {
		loc = time.UTC
	}
	return &Normalizer{Location: loc, Now: time.Now}
}

func (n *Normalizer) Normalize(src collector.SourceConfig, c collector.Candidate) (ProcessedNews, error) {
	title := truncateRunes(strings.TrimSpace(c.Title), titleMaxRunes)
	if title == "" || strings.TrimSpace(c.URL) == "" {
		return ProcessedNews{}, ErrInvalidCandidate
	}

	base, err := url.Parse(strings.TrimSpace(src.BaseURL))
	if err != nil {
		return ProcessedNews{}, fmt.Errorf("source base url: %w", err)
	}
	link, err := CanonicalURL(base, c.URL)
	if err != nil {
		return ProcessedNews{}, fmt.Errorf("canonical url: %w", err)
	}

	var image string
	if strings.TrimSpace(c.ImageURL) != "" {
		if abs, err := collector.ResolveURL(base, c.ImageURL); err == nil {
			image = truncateRunes(abs, urlMaxRunes)
		}
	}

	author := strings.TrimSpace(c.Author)
	if author == "" {
		author = strings.TrimSpace(src.DefaultAuthor)
	}
	if author == "" {
		author = DefaultAuthor
	}
	category := strings.TrimSpace(c.Category)
	if category == "" {
		category = DefaultCategory
	}

	published, estimated := n.publishedAt(src, c)

	raw := map[string]any{"strategy": string(c.Strategy)}
	if c.DateText != "" {
		raw["raw_date"] = c.DateText
	}

	return ProcessedNews{
		ID:            hashURL(link),
		Title:         title,
		URL:           link,
		Summary:       truncateRunes(strings.TrimSpace(c.Summary), summaryMaxRunes),
		ImageURL:      image,
		SourceID:      src.ID,
		SourceName:    src.Name,
		Author:        truncateRunes(author, shortFieldRunes),
		Category:      truncateRunes(category, shortFieldRunes),
		PublishedAt:   published,
		DateEstimated: estimated,
		RawData:       raw,
	}, nil
}

// publishedAt 按数据源配置的 layout 严格解析；解析不了时退回当前时间，并显式标记
func (n *Normalizer) publishedAt(src collector.SourceConfig, c collector.Candidate) (time.Time, bool) {
	if c.PublishedAt != nil && !c.PublishedAt.IsZero() {
		return *c.PublishedAt, false
	}
	text := strings.TrimSpace(c.DateText)
	if text != "" && src.DateFormat != "" {
		if t, err := time.ParseInLocation(src.DateFormat, text, n.Location); err == nil {
			return t, false
		}
	}
	return n.Now(), true
}

// Process 对一批已清洗的新闻按 URL 去重，保留首次出现的记录
func Process(items []ProcessedNews) []ProcessedNews {
	out := make([]ProcessedNews, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, it := range items {
		if _, ok := seen[it.ID]; ok {
			continue
		}
		seen[it.ID] = struct{}{}
		out = append(out, it)
	}
	return out
}

// CanonicalURL 返回去重用的规范地址：绝对地址、scheme/host 小写、去掉片段
func CanonicalURL(base *url.URL, raw string) (string, error) {
	abs, err := collector.ResolveURL(base, raw)
	if err != nil {
		return "", err
	}
	u, err := url.Parse(abs)
	if err != nil {
		return "", err
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	u.RawFragment = ""
	if u.Path == "" {
		u.Path = "/"
	}
	s := u.String()
	if len([]rune(s)) > urlMaxRunes {
		return "", fmt.Errorf("url longer than %d characters", urlMaxRunes)
	}
	return s, nil
}

func hashURL(url string) string {
	h := sha1.New()
	h.Write([]byte(url))
	return hex.EncodeToString(h.Sum(nil))
}

// truncateRunes 按 rune 截断，保证不超过数据库字段长度
func truncateRunes(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	rs := []rune(s)
	if len(rs) <= limit {
		return s
	}
	return strings.TrimSpace(string(rs[:limit-1])) + "…"
}
