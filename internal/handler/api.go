package handler

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/novapages/internal/metrics"
	"github.com/novapages/internal/search"
	"github.com/novapages/internal/service"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Searcher runs full text queries over pages.
type Searcher interface {
	Search(query string, limit int) (search.Result, error)
}

// Options carries the collaborators of an API. Pages is required.
type Options struct {
	Pages     *service.PageService
	Blocks    *service.BlockRenderer
	Search    Searcher
	Metrics   *metrics.Recorder
	Logger    *zap.Logger
	SiteName  string
	UploadDir string
	UploadURL string
	// Proxies decides whether X-Forwarded-Proto is honoured for canonical URLs.
	Proxies *service.ProxyTrust
}

// API bundles shared dependencies for HTTP handlers.
type API struct {
	db        *gorm.DB
	pages     *service.PageService
	blocks    *service.BlockRenderer
	search    Searcher
	metrics   *metrics.Recorder
	logger    *zap.Logger
	siteName  string
	uploadDir string
	uploadURL string
	proxies   *service.ProxyTrust
}

// NewAPI constructs a handler set with shared services.
func NewAPI(gdb *gorm.DB, opts Options) *API {
	pages := opts.Pages
	if pages == nil {
		pages = service.NewPageService(gdb, service.PageServiceOptions{Logger: opts.Logger})
	}
	blocks := opts.Blocks
	if blocks == nil {
		blocks = service.NewBlockRenderer(nil, pages.LargeImageOptions())
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	siteName := strings.TrimSpace(opts.SiteName)
	if siteName == "" {
		siteName = "NovaPages"
	}
	uploadDir := strings.TrimSpace(opts.UploadDir)
	if uploadDir == "" {
		uploadDir = "web/static/uploads"
	}
	uploadURL := strings.TrimRight(strings.TrimSpace(opts.UploadURL), "/")
	if uploadURL == "" {
		uploadURL = "/static/uploads"
	}

	return &API{
		db:        gdb,
		pages:     pages,
		blocks:    blocks,
		search:    opts.Search,
		metrics:   opts.Metrics,
		logger:    logger,
		siteName:  siteName,
		uploadDir: uploadDir,
		uploadURL: uploadURL,
		proxies:   opts.Proxies,
	}
}

func (a *API) renderHTML(c *gin.Context, status int, template string, data gin.H) {
	payload := gin.H{}
	for key, value := range data {
		payload[key] = value
	}
	if _, exists := payload["siteName"]; !exists {
		payload["siteName"] = a.siteName
	}
	c.HTML(status, template, payload)
}
