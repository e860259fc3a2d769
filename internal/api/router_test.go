package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/LJTian/NewsHub/internal/collector"
	"github.com/LJTian/NewsHub/internal/ingest"
	"github.com/LJTian/NewsHub/internal/processor"
	"github.com/LJTian/NewsHub/internal/scheduler"
	"github.com/LJTian/NewsHub/internal/storage"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeRunner struct{}

func (fakeRunner) RunAll(ctx context.Context) ([]scheduler.Report, error) {
	return []scheduler.Report{{Source: "Perú21", NewArticles: 3}}, nil
}

func (fakeRunner) RunOne(ctx context.Context, name string) (scheduler.Report, error) {
	switch name {
	case "Peru21":
		return scheduler.Report{Source: name, NewArticles: 1}, nil
	case "Apagada":
		return scheduler.Report{}, fmt.Errorf("%w: %s", scheduler.ErrSourceInactive, name)
	}
	return scheduler.Report{}, fmt.Errorf("%w: %s", scheduler.ErrSourceNotFound, name)
}

type fakePreviewer struct{}

func (fakePreviewer) Preview(ctx context.Context, src collector.SourceConfig) ([]processor.ProcessedNews, error) {
	if strings.Contains(src.BaseURL, "down") {
		return nil, &ingest.SourceError{SourceName: src.Name, Kind: ingest.KindTransport, Err: errors.New("connection refused")}
	}
	return []processor.ProcessedNews{{Title: "Nota", URL: src.BaseURL + "nota"}}, nil
}

func setupRouter(t *testing.T) (*gin.Engine, *storage.Store) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "api.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	store, err := storage.NewStoreWithDB(db, nil)
	require.NoError(t, err)

	r := gin.New()
	NewServer(store, fakeRunner{}, fakePreviewer{}).RegisterRoutes(r)
	return r, store
}

type envelope struct {
	Code    string          `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func do(t *testing.T, r http.Handler, method, path, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var env envelope
	_ = json.Unmarshal(w.Body.Bytes(), &env)
	return w, env
}

func TestHealth(t *testing.T) {
	r, _ := setupRouter(t)
	w, _ := do(t, r, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ok")
}

func TestCreateAndToggleSource(t *testing.T) {
	r, _ := setupRouter(t)

	body := `{"name":"Gestion","baseUrl":"https://gestion.pe/economia","selectors":{"list":".story-item"},"intervalMinutes":45}`
	w, env := do(t, r, http.MethodPost, "/api/v1/sources", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created storage.Source
	require.NoError(t, json.Unmarshal(env.Data, &created))
	assert.NotEmpty(t, created.ID)
	assert.True(t, created.Active)
	assert.Equal(t, ".story-item", created.Selectors.List)

	w, _ = do(t, r, http.MethodPost, "/api/v1/sources", body)
	assert.Equal(t, http.StatusConflict, w.Code)

	w, _ = do(t, r, http.MethodPost, "/api/v1/sources", `{"baseUrl":"https://x.example/"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, env = do(t, r, http.MethodPut, "/api/v1/sources/Gestion/toggle", "")
	require.Equal(t, http.StatusOK, w.Code)
	var toggled storage.Source
	require.NoError(t, json.Unmarshal(env.Data, &toggled))
	assert.False(t, toggled.Active)

	w, _ = do(t, r, http.MethodPut, "/api/v1/sources/nope/toggle", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = do(t, r, http.MethodPost, "/api/v1/sources/Gestion/reset-stats", "")
	assert.Equal(t, http.StatusOK, w.Code)
	w, _ = do(t, r, http.MethodPost, "/api/v1/sources/nope/reset-stats", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, env = do(t, r, http.MethodGet, "/api/v1/sources", "")
	require.Equal(t, http.StatusOK, w.Code)
	var list []storage.Source
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.Len(t, list, 1)
}

func TestNewsViews(t *testing.T) {
	r, store := setupRouter(t)
	ctx := context.Background()
	src := &storage.Source{Name: "Perú21", BaseURL: "https://peru21.pe/feed/", Active: true}
	require.NoError(t, store.CreateSource(ctx, src))

	for i := 0; i < 3; i++ {
		pub := time.Now().Add(-time.Duration(i) * time.Minute)
		_, _, err := store.SaveArticle(ctx, &storage.Article{
			ID:          fmt.Sprintf("id-%d", i),
			Title:       fmt.Sprintf("Nota %d", i),
			URL:         fmt.Sprintf("https://peru21.pe/nota-%d", i),
			SourceID:    src.ID,
			SourceName:  src.Name,
			PublishedAt: &pub,
			Active:      true,
		})
		require.NoError(t, err)
	}

	w, env := do(t, r, http.MethodGet, "/api/v1/news/recent?limit=2", "")
	require.Equal(t, http.StatusOK, w.Code)
	var recent []storage.Article
	require.NoError(t, json.Unmarshal(env.Data, &recent))
	assert.Len(t, recent, 2)

	w, env = do(t, r, http.MethodGet, "/api/v1/news/id-2", "")
	require.Equal(t, http.StatusOK, w.Code)
	var detail storage.Article
	require.NoError(t, json.Unmarshal(env.Data, &detail))
	assert.Equal(t, 1, detail.ViewCount)

	w, env = do(t, r, http.MethodGet, "/api/v1/news/popular?page=0&size=1", "")
	require.Equal(t, http.StatusOK, w.Code)
	var page storage.PopularPage
	require.NoError(t, json.Unmarshal(env.Data, &page))
	require.Len(t, page.Articles, 1)
	assert.Equal(t, "id-2", page.Articles[0].ID)

	w, env = do(t, r, http.MethodGet, "/api/v1/news/stats", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(env.Data), `"total":3`)

	w, _ = do(t, r, http.MethodGet, "/api/v1/news/missing", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestTestSource(t *testing.T) {
	r, _ := setupRouter(t)

	w, env := do(t, r, http.MethodPost, "/api/v1/sources/test", `{"baseUrl":"https://peru21.pe/feed/"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(env.Data), `"strategy":"feed"`)
	assert.Contains(t, string(env.Data), `"total":1`)

	w, env = do(t, r, http.MethodPost, "/api/v1/sources/test", `{"baseUrl":"https://down.example/"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, string(ingest.KindTransport), env.Code)

	w, _ = do(t, r, http.MethodPost, "/api/v1/sources/test", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestScrapingTriggers(t *testing.T) {
	r, _ := setupRouter(t)

	w, env := do(t, r, http.MethodPost, "/api/v1/scraping/run-all", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(env.Data), `"newArticles":3`)

	w, _ = do(t, r, http.MethodPost, "/api/v1/scraping/run/Peru21", "")
	assert.Equal(t, http.StatusOK, w.Code)
	w, _ = do(t, r, http.MethodPost, "/api/v1/scraping/run/Apagada", "")
	assert.Equal(t, http.StatusConflict, w.Code)
	w, _ = do(t, r, http.MethodPost, "/api/v1/scraping/run/nadie", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestBasicAuth(t *testing.T) {
	r := gin.New()
	r.Use(BasicAuth("admin", "secret"))
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/api/v1/sources", func(c *gin.Context) { c.Status(http.StatusOK) })

	w, _ := do(t, r, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = do(t, r, http.MethodGet, "/api/v1/sources", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sources", nil)
	req.SetBasicAuth("admin", "secret")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
