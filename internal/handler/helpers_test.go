package handler

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/render"
	"github.com/novapages/internal/db"
	"github.com/novapages/internal/search"
	"github.com/novapages/internal/service"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type stubHTMLRender struct {
	last *stubHTMLInstance
}

type stubHTMLInstance struct {
	name string
	data interface{}
}

func (r *stubHTMLRender) Instance(name string, data interface{}) render.Render {
	r.last = &stubHTMLInstance{name: name, data: data}
	return r.last
}

func (r *stubHTMLInstance) Render(http.ResponseWriter) error {
	return nil
}

func (r *stubHTMLInstance) WriteContentType(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
}

type searcherStub struct {
	query string
	limit int
	err   error
}

func (s *searcherStub) Search(query string, limit int) (search.Result, error) {
	s.query, s.limit = query, limit
	if s.err != nil {
		return search.Result{}, s.err
	}
	return search.Result{Query: query, Total: 0}, nil
}

func setupHandlerTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:handler-%d?mode=memory&cache=shared", time.Now().UnixNano())
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.Migrate(gdb))
	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return gdb
}

func newTestAPI(t *testing.T, opts Options) (*API, *gorm.DB) {
	t.Helper()
	gdb := setupHandlerTestDB(t)
	if opts.Pages == nil {
		opts.Pages = service.NewPageService(gdb, service.PageServiceOptions{
			BaseSeeds: []service.Seed{{Name: "Docs", URL: "/"}},
		})
	}
	return NewAPI(gdb, opts), gdb
}

func newTestEngine(api *API) (*gin.Engine, *stubHTMLRender) {
	renderer := &stubHTMLRender{}
	r := gin.New()
	r.HTMLRender = renderer
	r.Use(sessions.Sessions("novapages_session", cookie.NewStore([]byte("test-secret"))))
	return r, renderer
}
