package collector

import (
	"strings"
	"time"
)

// FeedMarker 写在列表选择器里，表示该数据源按 RSS/Atom 解析
const FeedMarker = "RSS_FEED"

// Strategy 表示抽取策略：feed（订阅源）或 markup（HTML 列表页）
type Strategy string

const (
	StrategyFeed   Strategy = "feed"
	StrategyMarkup Strategy = "markup"
)

// Selectors 描述如何从列表页中定位各字段，均为 CSS 选择器，空串表示不抽取
type Selectors struct {
	List     string `json:"list" yaml:"list"`
	Title    string `json:"title" yaml:"title"`
	Summary  string `json:"summary" yaml:"summary"`
	Image    string `json:"image" yaml:"image"`
	Author   string `json:"author" yaml:"author"`
	Date     string `json:"date" yaml:"date"`
	Category string `json:"category" yaml:"category"`
}

// SourceConfig 是抽取与调度所需的数据源视图，与存储模型解耦
type SourceConfig struct {
	ID            string
	Name          string
	BaseURL       string
	Selectors     Selectors
	DateFormat    string // Go time layout
	DefaultAuthor string
	Active        bool
	Interval      time.Duration
	LastScrapedAt *time.Time
}

// Strategy 根据列表选择器标记或 URL 形态判断抽取策略，不依赖持久化的布尔字段
func (s SourceConfig) Strategy() Strategy {
	if strings.TrimSpace(s.Selectors.List) == FeedMarker {
		return StrategyFeed
	}
	u := strings.ToLower(strings.TrimSpace(s.BaseURL))
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		u = u[:i]
	}
	if strings.Contains(u, "/feed/") || strings.HasSuffix(u, "/feed") ||
		strings.HasSuffix(u, ".rss") || strings.HasSuffix(u, ".xml") {
		return StrategyFeed
	}
	return StrategyMarkup
}

// IsDue 判断数据源在 now 时刻是否需要采集；从未采集过的数据源总是到期
func (s SourceConfig) IsDue(now time.Time) bool {
	if s.LastScrapedAt == nil {
		return true
	}
	return now.After(s.LastScrapedAt.Add(s.Interval))
}
