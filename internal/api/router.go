package api

import (
	"context"
	"crypto/subtle"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/LJTian/NewsHub/internal/collector"
	"github.com/LJTian/NewsHub/internal/ingest"
	"github.com/LJTian/NewsHub/internal/processor"
	"github.com/LJTian/NewsHub/internal/scheduler"
	"github.com/LJTian/NewsHub/internal/storage"
	"github.com/gin-gonic/gin"
)

// Runner 手动触发采集
type Runner interface {
	RunAll(ctx context.Context) ([]scheduler.Report, error)
	RunOne(ctx context.Context, name string) (scheduler.Report, error)
}

// Previewer 对未保存的数据源配置做一次抓取与抽取
type Previewer interface {
	Preview(ctx context.Context, src collector.SourceConfig) ([]processor.ProcessedNews, error)
}

type Server struct {
	store   *storage.Store
	runner  Runner
	preview Previewer
}

func NewServer(store *storage.Store, runner Runner, preview Previewer) *Server {
	return &Server{store: store, runner: runner, preview: preview}
}

func (s *Server) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", s.health)

	v1 := r.Group("/api/v1")
	{
		v1.GET("/news/recent", s.recentNews)
		v1.GET("/news/popular", s.popularNews)
		v1.GET("/news/stats", s.newsStats)
		v1.GET("/news/:id", s.getNews)

		v1.GET("/sources", s.listSources)
		v1.POST("/sources", s.createSource)
		v1.POST("/sources/test", s.testSource)
		v1.PUT("/sources/:name/toggle", s.toggleSource)
		v1.POST("/sources/:name/reset-stats", s.resetSourceStats)

		v1.POST("/scraping/run-all", s.runAll)
		v1.POST("/scraping/run/:name", s.runOne)
	}
}

func ok(c *gin.Context, status int, data any) {
	c.JSON(status, gin.H{
		"code":    "ok",
		"message": "success",
		"data":    data,
	})
}

func fail(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{
		"code":    code,
		"message": message,
	})
}

func internalError(c *gin.Context, err error) {
	log.Printf("api %s %s error: %v", c.Request.Method, c.FullPath(), err)
	fail(c, http.StatusInternalServerError, "internal_error", "internal server error")
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) recentNews(c *gin.Context) {
	limit := queryInt(c, "limit", storage.DefaultRecentLimit)
	items, err := s.store.RecentMixed(c.Request.Context(), limit)
	if err != nil {
		internalError(c, err)
		return
	}
	ok(c, http.StatusOK, items)
}

func (s *Server) popularNews(c *gin.Context) {
	page := queryInt(c, "page", 0)
	size := queryInt(c, "size", storage.DefaultPageSize)
	out, err := s.store.PopularMixed(c.Request.Context(), page, size)
	if err != nil {
		internalError(c, err)
		return
	}
	ok(c, http.StatusOK, out)
}

func (s *Server) newsStats(c *gin.Context) {
	counts, err := s.store.CountBySource(c.Request.Context())
	if err != nil {
		internalError(c, err)
		return
	}
	ok(c, http.StatusOK, counts)
}

// getNews 返回文章详情并增加浏览量
func (s *Server) getNews(c *gin.Context) {
	a, err := s.store.ViewArticle(c.Request.Context(), c.Param("id"))
	if errors.Is(err, storage.ErrArticleNotFound) {
		fail(c, http.StatusNotFound, "not_found", "article not found")
		return
	}
	if err != nil {
		internalError(c, err)
		return
	}
	ok(c, http.StatusOK, a)
}

func (s *Server) listSources(c *gin.Context) {
	list, err := s.store.ListSources(c.Request.Context())
	if err != nil {
		internalError(c, err)
		return
	}
	ok(c, http.StatusOK, list)
}

// SourceRequest 是新建/测试数据源的请求体
type SourceRequest struct {
	Name            string              `json:"name"`
	BaseURL         string              `json:"baseUrl" binding:"required"`
	Selectors       collector.Selectors `json:"selectors"`
	DateFormat      string              `json:"dateFormat"`
	DefaultAuthor   string              `json:"defaultAuthor"`
	IntervalMinutes int                 `json:"intervalMinutes"`
	Active          *bool               `json:"active"`
}

func (r SourceRequest) toSource() *storage.Source {
	return &storage.Source{
		Name:            strings.TrimSpace(r.Name),
		BaseURL:         strings.TrimSpace(r.BaseURL),
		Selectors:       r.Selectors,
		DateFormat:      r.DateFormat,
		DefaultAuthor:   r.DefaultAuthor,
		IntervalMinutes: r.IntervalMinutes,
		Active:          r.Active == nil || *r.Active,
	}
}

func (s *Server) createSource(c *gin.Context) {
	var req SourceRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Name) == "" {
		fail(c, http.StatusBadRequest, "bad_request", "name and baseUrl are required")
		return
	}
	src := req.toSource()
	err := s.store.CreateSource(c.Request.Context(), src)
	if errors.Is(err, storage.ErrDuplicateSource) {
		fail(c, http.StatusConflict, "conflict", err.Error())
		return
	}
	if err != nil {
		internalError(c, err)
		return
	}
	ok(c, http.StatusCreated, src)
}

// testSource 用请求中的配置试抓一次，不写入数据库
func (s *Server) testSource(c *gin.Context) {
	var req SourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "bad_request", "baseUrl is required")
		return
	}
	src := req.toSource()
	if src.Name == "" {
		src.Name = "preview"
	}

	items, err := s.preview.Preview(c.Request.Context(), src.Config())
	var se *ingest.SourceError
	if errors.As(err, &se) {
		fail(c, http.StatusUnprocessableEntity, string(se.Kind), se.Error())
		return
	}
	if err != nil {
		internalError(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{
		"strategy": src.Config().Strategy(),
		"total":    len(items),
		"items":    items,
	})
}

func (s *Server) toggleSource(c *gin.Context) {
	src, err := s.store.ToggleSource(c.Request.Context(), c.Param("name"))
	if errors.Is(err, storage.ErrSourceNotFound) {
		fail(c, http.StatusNotFound, "not_found", "source not found")
		return
	}
	if err != nil {
		internalError(c, err)
		return
	}
	ok(c, http.StatusOK, src)
}

func (s *Server) resetSourceStats(c *gin.Context) {
	err := s.store.ResetSourceStats(c.Request.Context(), c.Param("name"))
	if errors.Is(err, storage.ErrSourceNotFound) {
		fail(c, http.StatusNotFound, "not_found", "source not found")
		return
	}
	if err != nil {
		internalError(c, err)
		return
	}
	ok(c, http.StatusOK, nil)
}

func (s *Server) runAll(c *gin.Context) {
	reports, err := s.runner.RunAll(c.Request.Context())
	if err != nil {
		internalError(c, err)
		return
	}
	ok(c, http.StatusOK, reports)
}

func (s *Server) runOne(c *gin.Context) {
	rep, err := s.runner.RunOne(c.Request.Context(), c.Param("name"))
	switch {
	case errors.Is(err, scheduler.ErrSourceNotFound):
		fail(c, http.StatusNotFound, "not_found", "source not found")
	case errors.Is(err, scheduler.ErrSourceInactive):
		fail(c, http.StatusConflict, "inactive", err.Error())
	case err != nil:
		internalError(c, err)
	default:
		ok(c, http.StatusOK, rep)
	}
}

func queryInt(c *gin.Context, key string, def int) int {
	n, err := strconv.Atoi(c.DefaultQuery(key, strconv.Itoa(def)))
	if err != nil {
		return def
	}
	return n
}

// BasicAuth 为整个站点增加一个简单的 Basic Auth 访问密码，/health 不做认证，便于健康检查
func BasicAuth(user, pass string) gin.HandlerFunc {
	const realm = "Restricted"
	uBytes := []byte(user)
	pBytes := []byte(pass)

	return func(c *gin.Context) {
		if c.Request.URL.Path == "/health" {
			c.Next()
			return
		}
		u, p, ok := c.Request.BasicAuth()
		if !ok ||
			subtle.ConstantTimeCompare([]byte(u), uBytes) != 1 ||
			subtle.ConstantTimeCompare([]byte(p), pBytes) != 1 {
			c.Header("WWW-Authenticate", `Basic realm="`+realm+`"`)
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		c.Next()
	}
}
