package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/LJTian/NewsHub/internal/config"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const DefaultIntervalMinutes = 30

// EnsureSource 确保某个数据源存在（按名称），已存在时原样返回，不覆盖运行中修改过的配置
func (s *Store) EnsureSource(ctx context.Context, src *Source) (*Source, error) {
	existing := &Source{}
	err := s.DB.WithContext(ctx).Where("name = ?", src.Name).First(existing).Error
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	if err := s.CreateSource(ctx, src); err != nil {
		return nil, err
	}
	return src, nil
}

// EnsureSeeds 启动时确保配置文件中的数据源都存在
func (s *Store) EnsureSeeds(ctx context.Context, seeds []config.SourceSeed) error {
	for _, seed := range seeds {
		_, err := s.EnsureSource(ctx, &Source{
			Name:            seed.Name,
			BaseURL:         seed.BaseURL,
			Selectors:       seed.Selectors,
			DateFormat:      seed.DateFormat,
			DefaultAuthor:   seed.DefaultAuthor,
			IntervalMinutes: seed.IntervalMinutes,
			Active:          seed.IsActive(),
		})
		if err != nil {
			return fmt.Errorf("ensure source %s: %w", seed.Name, err)
		}
	}
	return nil
}

// CreateSource 新建数据源：名称与地址都不能与已有数据源重复（名称忽略大小写）
func (s *Store) CreateSource(ctx context.Context, src *Source) error {
	src.Name = strings.TrimSpace(src.Name)
	src.BaseURL = strings.TrimSpace(src.BaseURL)
	if src.Name == "" || src.BaseURL == "" {
		return errors.New("source name and base url are required")
	}

	var n int64
	if err := s.DB.WithContext(ctx).Model(&Source{}).
		Where("LOWER(name) = ? OR base_url = ?", strings.ToLower(src.Name), src.BaseURL).
		Count(&n).Error; err != nil {
		return err
	}
	if n > 0 {
		return fmt.Errorf("%w: %s", ErrDuplicateSource, src.Name)
	}

	if src.ID == "" {
		src.ID = uuid.NewString()
	}
	if src.IntervalMinutes <= 0 {
		src.IntervalMinutes = DefaultIntervalMinutes
	}
	return s.DB.WithContext(ctx).Create(src).Error
}

func (s *Store) ListSources(ctx context.Context) ([]Source, error) {
	var list []Source
	if err := s.DB.WithContext(ctx).Order("name ASC").Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (s *Store) ListActiveSources(ctx context.Context) ([]Source, error) {
	var list []Source
	if err := s.DB.WithContext(ctx).Where("active = ?", true).Order("name ASC").Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (s *Store) GetSourceByName(ctx context.Context, name string) (*Source, error) {
	src := &Source{}
	err := s.DB.WithContext(ctx).Where("name = ?", name).First(src).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrSourceNotFound, name)
	}
	if err != nil {
		return nil, err
	}
	return src, nil
}

// SetSourceActive 启用/停用数据源（停用为软删除，不会删除数据）
func (s *Store) SetSourceActive(ctx context.Context, name string, active bool) (*Source, error) {
	res := s.DB.WithContext(ctx).Model(&Source{}).Where("name = ?", name).Update("active", active)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("%w: %s", ErrSourceNotFound, name)
	}
	return s.GetSourceByName(ctx, name)
}

// ToggleSource 切换启用状态
func (s *Store) ToggleSource(ctx context.Context, name string) (*Source, error) {
	src, err := s.GetSourceByName(ctx, name)
	if err != nil {
		return nil, err
	}
	return s.SetSourceActive(ctx, name, !src.Active)
}

// RecordScrape 记录一次采集结果。计数用单条 UPDATE 原子自增，不做读改写
func (s *Store) RecordScrape(ctx context.Context, sourceID string, success bool, at time.Time) error {
	col := "failed_scrapes"
	if success {
		col = "successful_scrapes"
	}
	return s.DB.WithContext(ctx).Model(&Source{}).Where("id = ?", sourceID).Updates(map[string]any{
		"last_scraped_at": at,
		col:               gorm.Expr(col+" + ?", 1),
	}).Error
}

func (s *Store) ResetSourceStats(ctx context.Context, name string) error {
	res := s.DB.WithContext(ctx).Model(&Source{}).Where("name = ?", name).Updates(map[string]any{
		"last_scraped_at":    nil,
		"successful_scrapes": 0,
		"failed_scrapes":     0,
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrSourceNotFound, name)
	}
	return nil
}
