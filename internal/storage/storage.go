package storage

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/LJTian/NewsHub/internal/collector"
	"github.com/LJTian/NewsHub/internal/processor"
	"github.com/redis/go-redis/v9"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var (
	ErrSourceNotFound  = errors.New("source not found")
	ErrArticleNotFound = errors.New("article not found")
	ErrDuplicateSource = errors.New("source name or base url already exists")
)

// Source 描述一个数据源：抓取地址、选择器、采集周期与统计
type Source struct {
	// ID 为稳定标识（UUID），文章通过它关联数据源，改名不影响历史数据
	ID      string `gorm:"primaryKey;size:36" json:"id"`
	Name    string `gorm:"size:100;uniqueIndex" json:"name"`
	BaseURL string `gorm:"size:500;uniqueIndex" json:"baseUrl"`

	Selectors     collector.Selectors `gorm:"embedded;embeddedPrefix:selector_" json:"selectors"`
	DateFormat    string              `gorm:"size:50" json:"dateFormat"`
	DefaultAuthor string              `gorm:"size:100" json:"defaultAuthor"`

	Active          bool       `gorm:"index" json:"active"`
	IntervalMinutes int        `json:"intervalMinutes"`
	LastScrapedAt   *time.Time `json:"lastScrapedAt"`

	SuccessfulScrapes int `json:"successfulScrapes"`
	FailedScrapes     int `json:"failedScrapes"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Config 转成抽取与调度使用的视图
func (s Source) Config() collector.SourceConfig {
	return collector.SourceConfig{
		ID:            s.ID,
		Name:          s.Name,
		BaseURL:       s.BaseURL,
		Selectors:     s.Selectors,
		DateFormat:    s.DateFormat,
		DefaultAuthor: s.DefaultAuthor,
		Active:        s.Active,
		Interval:      time.Duration(s.IntervalMinutes) * time.Minute,
		LastScrapedAt: s.LastScrapedAt,
	}
}

type Article struct {
	ID      string `gorm:"primaryKey;size:40" json:"id"`
	Title   string `gorm:"size:500;not null" json:"title"`
	Summary string `gorm:"size:1000" json:"summary"`
	Content string `gorm:"type:text" json:"content,omitempty"`
	// URL 是规范化后的地址，唯一索引是并发写入时去重的最后一道保障
	URL      string `gorm:"size:1000;uniqueIndex" json:"url"`
	ImageURL string `gorm:"size:1000" json:"imageUrl"`

	SourceID   string `gorm:"size:36;index" json:"sourceId"`
	SourceName string `gorm:"size:100;index" json:"source"`
	Author     string `gorm:"size:100" json:"author"`
	Category   string `gorm:"size:100;index" json:"category"`

	PublishedAt   *time.Time `gorm:"index" json:"publishedAt"`
	DateEstimated bool       `json:"dateEstimated"`

	Active    bool              `gorm:"index" json:"-"`
	ViewCount int               `gorm:"index" json:"viewCount"`
	ExtraData datatypes.JSONMap `gorm:"type:jsonb" json:"extraData"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (a Article) SourceKey() string {
	if a.SourceID != "" {
		return a.SourceID
	}
	return a.SourceName
}

func (a Article) Views() int { return a.ViewCount }

func (a Article) Published() *time.Time { return a.PublishedAt }

type Store struct {
	DB    *gorm.DB
	Redis *redis.Client
	Now   func() time.Time
}

func NewStore(dsn, redisAddr string) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	var rdb *redis.Client
	if redisAddr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr: redisAddr,
		})

		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Printf("warn: redis ping failed: %v", err)
		}
	}

	return NewStoreWithDB(db, rdb)
}

// NewStoreWithDB 使用已打开的连接并完成迁移，rdb 可为空（不使用缓存）
func NewStoreWithDB(db *gorm.DB, rdb *redis.Client) (*Store, error) {
	if err := db.AutoMigrate(&Source{}, &Article{}); err != nil {
		return nil, err
	}
	return &Store{DB: db, Redis: rdb, Now: time.Now}, nil
}

// toValidUTF8 将字符串规范为合法 UTF-8，避免 PostgreSQL invalid byte sequence 错误
func toValidUTF8(s string) string {
	return strings.ToValidUTF8(s, "�")
}

// ArticleFromProcessed 把清洗后的记录转成待入库的文章
func ArticleFromProcessed(p processor.ProcessedNews) *Article {
	published := p.PublishedAt
	return &Article{
		ID:            p.ID,
		Title:         toValidUTF8(p.Title),
		Summary:       toValidUTF8(p.Summary),
		URL:           p.URL,
		ImageURL:      p.ImageURL,
		SourceID:      p.SourceID,
		SourceName:    toValidUTF8(p.SourceName),
		Author:        toValidUTF8(p.Author),
		Category:      toValidUTF8(p.Category),
		PublishedAt:   &published,
		DateEstimated: p.DateEstimated,
		Active:        true,
		ExtraData:     datatypes.JSONMap(p.RawData),
	}
}

func (s *Store) cacheGet(ctx context.Context, key string, dst any) bool {
	if s.Redis == nil {
		return false
	}
	bs, err := s.Redis.Get(ctx, key).Bytes()
	if err != nil {
		return false
	}
	return json.Unmarshal(bs, dst) == nil
}

func (s *Store) cacheSet(ctx context.Context, key string, v any, ttl time.Duration) {
	if s.Redis == nil {
		return
	}
	bs, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := s.Redis.Set(ctx, key, bs, ttl).Err(); err != nil {
		log.Printf("warn: redis set %s failed: %v", key, err)
	}
}
