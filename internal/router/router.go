package router

import (
	"embed"
	"html/template"
	"net/http"
	"strings"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/novapages/internal/handler"
	"github.com/novapages/internal/logging"
	"go.uber.org/zap"
)

//go:embed templates/*.html
var templateFS embed.FS

// Options 控制路由的外围配置。
type Options struct {
	SessionSecret string
	UploadDir     string
	UploadURLPath string
	Metrics       http.Handler
	Logger        *zap.Logger
	// TrustedProxies 为空时不信任任何代理转发的客户端信息
	TrustedProxies []string
}

// SetupRouter 配置 Gin 引擎和路由
func SetupRouter(api *handler.API, opts Options) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), logging.Middleware(opts.Logger))
	if err := r.SetTrustedProxies(opts.TrustedProxies); err != nil {
		logging.OrNop(opts.Logger).Error("invalid trusted proxies", zap.Strings("proxies", opts.TrustedProxies), zap.Error(err))
		_ = r.SetTrustedProxies(nil)
	}

	// 配置会话中间件
	secret := opts.SessionSecret
	if secret == "" {
		secret = "novapages-dev-secret"
	}
	store := cookie.NewStore([]byte(secret))
	store.Options(sessions.Options{Path: "/", HttpOnly: true, SameSite: http.SameSiteLaxMode})
	r.Use(sessions.Sessions("novapages_session", store))

	// 加载模板并添加自定义函数
	tmpl := template.Must(template.New("").Funcs(template.FuncMap{
		"add": func(a, b int) int {
			return a + b
		},
		"last": func(i, n int) bool {
			return i == n-1
		},
	}).ParseFS(templateFS, "templates/*.html"))
	r.SetHTMLTemplate(tmpl)

	// 静态文件服务
	if opts.UploadDir != "" {
		urlPath := strings.TrimRight(opts.UploadURLPath, "/")
		if urlPath == "" {
			urlPath = "/static/uploads"
		}
		r.Static(urlPath, opts.UploadDir)
	}

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
		})
	})
	if opts.Metrics != nil {
		r.GET("/metrics", gin.WrapH(opts.Metrics))
	}

	// 公开页面
	r.GET("/pages/*path", api.ShowPage)
	r.GET("/search", api.SearchPages)

	public := r.Group("/api")
	{
		public.GET("/pages/*path", api.GetPageJSON)
		public.GET("/meta", api.GetMeta)
		public.GET("/featured", api.ListFeatured)
	}

	// 后台管理路由
	admin := r.Group("/admin")
	{
		admin.POST("/login", api.Login)
		admin.POST("/logout", api.Logout)

		// 需要认证的后台路由
		auth := admin.Group("/api")
		auth.Use(handler.AuthRequired())
		{
			auth.GET("/pages", api.ListPages)
			auth.POST("/pages", api.CreatePage)
			auth.GET("/pages/:id", api.GetPage)
			auth.PUT("/pages/:id", api.UpdatePage)
			auth.DELETE("/pages/:id", api.DeletePage)
			auth.PUT("/pages/:id/blocks", api.ReplaceBlocks)
			auth.POST("/uploads", api.UploadImage)
		}
	}

	return r
}
