package router

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/novapages/internal/db"
	"github.com/novapages/internal/handler"
	"github.com/novapages/internal/metrics"
	"github.com/novapages/internal/service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupRouterTest(t *testing.T, uploadDir string) (*gin.Engine, *service.PageService, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:router-%d?mode=memory&cache=shared", time.Now().UnixNano())
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.Migrate(gdb))
	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			sqlDB.Close()
		}
	})

	recorder := metrics.NewRecorder(prometheus.NewRegistry())
	pages := service.NewPageService(gdb, service.PageServiceOptions{
		Metrics:   recorder,
		BaseSeeds: []service.Seed{{Name: "Docs", URL: "/"}},
	})
	api := handler.NewAPI(gdb, handler.Options{Pages: pages, Metrics: recorder, SiteName: "Docs", UploadDir: uploadDir})

	r := SetupRouter(api, Options{
		SessionSecret: "test-secret",
		UploadDir:     uploadDir,
		UploadURLPath: "/static/uploads",
		Metrics:       recorder.Handler(),
	})
	return r, pages, gdb
}

func TestSetupRouterServesUploads(t *testing.T) {
	uploadDir := t.TempDir()
	fileContent := []byte("hello uploads")
	require.NoError(t, os.WriteFile(filepath.Join(uploadDir, "example.txt"), fileContent, 0o644))

	r, _, _ := setupRouterTest(t, uploadDir)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/static/uploads/example.txt", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, string(fileContent), rr.Body.String())
}

func TestShowPageRendersTemplate(t *testing.T) {
	r, pages, _ := setupRouterTest(t, t.TempDir())
	ctx := context.Background()

	about, err := pages.Create(ctx, service.PageInput{NavTitle: "About", H1: "About us"})
	require.NoError(t, err)
	_, err = pages.Create(ctx, service.PageInput{ParentID: &about.ID, NavTitle: "Team", BrowserTitle: "Our team", Meta: map[string]string{"og:type": "article"}})
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/pages/about/team?utm=x", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	require.Contains(t, body, "<title>Our team</title>")
	require.Contains(t, body, `<link rel="canonical" href="http://example.com/pages/about/team">`)
	require.Contains(t, body, `<a href="about">About us</a>`)
	require.Contains(t, body, "<span>Team</span>")
	require.Contains(t, body, `content="article"`)
}

func TestShowPageMissingReturns404(t *testing.T) {
	r, _, _ := setupRouterTest(t, t.TempDir())

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/pages/nowhere", nil))

	require.Equal(t, http.StatusNotFound, rr.Code)
	require.Contains(t, rr.Body.String(), "Page not found.")
}

func TestMetaEndpoint(t *testing.T) {
	r, _, _ := setupRouterTest(t, t.TempDir())

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/meta?slug=contact&default=Contact", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &payload))
	require.Equal(t, false, payload["found"])
	require.Equal(t, "Contact", payload["page_title"])
	require.Equal(t, "Contact", payload["h1"])

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), `novapages_meta_lookups_total{result="default"} 1`)
}

func TestAdminAPIRequiresLogin(t *testing.T) {
	r, _, gdb := setupRouterTest(t, t.TempDir())
	_, err := db.EnsureUser(gdb, "admin", "secret")
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/admin/api/pages", nil))
	require.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = httptest.NewRecorder()
	login := httptest.NewRequest(http.MethodPost, "/admin/login", strings.NewReader(`{"username":"admin","password":"secret"}`))
	login.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(rr, login)
	require.Equal(t, http.StatusOK, rr.Code)
	cookies := rr.Result().Cookies()
	require.NotEmpty(t, cookies)

	rr = httptest.NewRecorder()
	create := httptest.NewRequest(http.MethodPost, "/admin/api/pages", strings.NewReader(`{"nav_title":"Pricing"}`))
	create.Header.Set("Content-Type", "application/json")
	for _, cookie := range cookies {
		create.AddCookie(cookie)
	}
	r.ServeHTTP(rr, create)
	require.Equal(t, http.StatusCreated, rr.Code)
	require.Contains(t, rr.Body.String(), `"FullPath":"pricing"`)
}

func TestSetupRouterTrustsOnlyConfiguredProxies(t *testing.T) {
	gin.SetMode(gin.TestMode)
	api := handler.NewAPI(nil, handler.Options{Pages: service.NewPageService(nil, service.PageServiceOptions{})})

	for _, tt := range []struct {
		name    string
		proxies []string
		want    string
	}{
		{name: "none configured", proxies: nil, want: "10.0.0.7"},
		{name: "peer trusted", proxies: []string{"10.0.0.0/8"}, want: "198.51.100.4"},
	} {
		t.Run(tt.name, func(t *testing.T) {
			r := SetupRouter(api, Options{TrustedProxies: tt.proxies})
			r.GET("/whoami", func(c *gin.Context) { c.String(http.StatusOK, c.ClientIP()) })

			req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
			req.RemoteAddr = "10.0.0.7:1234"
			req.Header.Set("X-Forwarded-For", "198.51.100.4")
			rr := httptest.NewRecorder()
			r.ServeHTTP(rr, req)

			require.Equal(t, http.StatusOK, rr.Code)
			require.Equal(t, tt.want, rr.Body.String())
		})
	}
}
