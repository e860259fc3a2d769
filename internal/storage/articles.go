package storage

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// 发布时间为空的文章排在最后
const orderPublishedDesc = "published_at DESC NULLS LAST, created_at DESC"

// SaveArticle 以规范化 URL 作为幂等键写入文章。
// 已存在时返回已有记录且 created=false，不修改已有数据（先写者胜）；
// 并发写入同一 URL 时由唯一索引 + ON CONFLICT DO NOTHING 兜底。
func (s *Store) SaveArticle(ctx context.Context, a *Article) (*Article, bool, error) {
	existing, err := s.FindArticleByURL(ctx, a.URL)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}

	if a.CreatedAt.IsZero() {
		a.CreatedAt = s.now()
	}
	res := s.DB.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(a)
	if res.Error != nil {
		return nil, false, res.Error
	}
	if res.RowsAffected == 0 {
		existing, err := s.FindArticleByURL(ctx, a.URL)
		if err != nil {
			return nil, false, err
		}
		if existing != nil {
			return existing, false, nil
		}
		// 主键冲突但 URL 不同：sha1 碰撞几乎不可能，按重复处理
		return a, false, nil
	}
	return a, true, nil
}

// FindArticleByURL 未找到时返回 nil, nil
func (s *Store) FindArticleByURL(ctx context.Context, url string) (*Article, error) {
	a := &Article{}
	err := s.DB.WithContext(ctx).Where("url = ?", url).First(a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (s *Store) GetArticle(ctx context.Context, id string) (*Article, error) {
	a := &Article{}
	err := s.DB.WithContext(ctx).Where("id = ? AND active = ?", id, true).First(a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrArticleNotFound
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

// ViewArticle 浏览量原子加一并返回最新记录
func (s *Store) ViewArticle(ctx context.Context, id string) (*Article, error) {
	res := s.DB.WithContext(ctx).Model(&Article{}).
		Where("id = ? AND active = ?", id, true).
		UpdateColumn("view_count", gorm.Expr("view_count + ?", 1))
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrArticleNotFound
	}
	return s.GetArticle(ctx, id)
}

// RecentActive 返回 since 之后入库的有效文章，按发布时间倒序
func (s *Store) RecentActive(ctx context.Context, since time.Time) ([]Article, error) {
	var list []Article
	err := s.DB.WithContext(ctx).
		Where("active = ? AND created_at >= ?", true, since).
		Order(orderPublishedDesc).
		Find(&list).Error
	return list, err
}

func (s *Store) LatestActive(ctx context.Context, limit int) ([]Article, error) {
	var list []Article
	err := s.DB.WithContext(ctx).
		Where("active = ?", true).
		Order(orderPublishedDesc).
		Limit(limit).
		Find(&list).Error
	return list, err
}

// MostViewedActive 按浏览量倒序，其次发布时间倒序
func (s *Store) MostViewedActive(ctx context.Context, limit int) ([]Article, error) {
	var list []Article
	err := s.DB.WithContext(ctx).
		Where("active = ?", true).
		Order("view_count DESC").
		Order(orderPublishedDesc).
		Limit(limit).
		Find(&list).Error
	return list, err
}

// DeactivateOlderThan 软删除 cutoff 之前入库的文章，返回影响行数
func (s *Store) DeactivateOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res := s.DB.WithContext(ctx).Model(&Article{}).
		Where("active = ? AND created_at < ?", true, cutoff).
		Update("active", false)
	return res.RowsAffected, res.Error
}

type SourceCount struct {
	SourceName string `json:"source"`
	Total      int64  `json:"total"`
}

// CountBySource 统计各来源的有效文章数
func (s *Store) CountBySource(ctx context.Context) ([]SourceCount, error) {
	var rows []SourceCount
	err := s.DB.WithContext(ctx).Model(&Article{}).
		Select("source_name, COUNT(*) AS total").
		Where("active = ?", true).
		Group("source_name").
		Order("total DESC").
		Scan(&rows).Error
	return rows, err
}
