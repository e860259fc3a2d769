package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/LJTian/NewsHub/internal/ranking"
)

const (
	// 列表缓存 5 分钟，依赖短 TTL 自然过期，不做按 key 通配删除
	listCacheTTL = 5 * time.Minute
	recentWindow = 24 * time.Hour

	DefaultRecentLimit = 30
	DefaultPageSize    = 20
	maxListSize        = 200
	popularPoolSize    = 3 * maxListSize
)

// PopularPage 是热门混排列表的一页
type PopularPage struct {
	Page     int       `json:"page"`
	Size     int       `json:"size"`
	Articles []Article `json:"articles"`
}

// RecentMixed 最近 24 小时入库的文章按来源均衡混排；窗口内没有数据时退回最新的 2*limit 条
func (s *Store) RecentMixed(ctx context.Context, limit int) ([]Article, error) {
	if limit <= 0 || limit > maxListSize {
		limit = DefaultRecentLimit
	}
	cacheKey := fmt.Sprintf("news:recent:%d", limit)

	var cached []Article
	if s.cacheGet(ctx, cacheKey, &cached) {
		return cached, nil
	}

	pool, err := s.RecentActive(ctx, s.now().Add(-recentWindow))
	if err != nil {
		return nil, err
	}
	if len(pool) == 0 {
		if pool, err = s.LatestActive(ctx, 2*limit); err != nil {
			return nil, err
		}
	}

	list := ranking.Diversify(pool, limit)
	if len(list) > 0 {
		s.cacheSet(ctx, cacheKey, list, listCacheTTL)
	}
	return list, nil
}

// PopularMixed 热门混排分页（page 从 0 开始）。
// 候选池固定为浏览量最高的 popularPoolSize 条，逐页混排并从池中移除已展示的文章，
// 因此同一时刻各页之间不会重复，每一页内部都按来源均衡。
func (s *Store) PopularMixed(ctx context.Context, page, size int) (PopularPage, error) {
	if page < 0 {
		page = 0
	}
	if size <= 0 || size > maxListSize {
		size = DefaultPageSize
	}
	out := PopularPage{Page: page, Size: size, Articles: []Article{}}
	cacheKey := fmt.Sprintf("news:popular:%d:%d", page, size)

	if s.cacheGet(ctx, cacheKey, &out) {
		return out, nil
	}

	pool, err := s.MostViewedActive(ctx, popularPoolSize)
	if err != nil {
		return out, err
	}

	for p := 0; p <= page && len(pool) > 0; p++ {
		mixed := ranking.Diversify(pool, size)
		if p == page {
			out.Articles = mixed
			break
		}
		pool = without(pool, mixed)
	}
	if len(out.Articles) > 0 {
		s.cacheSet(ctx, cacheKey, out, listCacheTTL)
	}
	return out, nil
}

func without(pool, picked []Article) []Article {
	drop := make(map[string]struct{}, len(picked))
	for _, a := range picked {
		drop[a.ID] = struct{}{}
	}
	rest := make([]Article, 0, len(pool)-len(picked))
	for _, a := range pool {
		if _, ok := drop[a.ID]; !ok {
			rest = append(rest, a)
		}
	}
	return rest
}

func (s *Store) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}
