package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/gin-gonic/gin"
	"github.com/novapages/internal/config"
	"github.com/novapages/internal/db"
	"github.com/novapages/internal/handler"
	"github.com/novapages/internal/imagecdn"
	"github.com/novapages/internal/logging"
	"github.com/novapages/internal/metrics"
	"github.com/novapages/internal/router"
	"github.com/novapages/internal/search"
	"github.com/novapages/internal/service"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// CLI 定义命令行入口，默认执行 serve。
type CLI struct {
	Config string `short:"c" help:"YAML configuration file (overrides CONFIG_FILE)" type:"path"`

	Serve    ServeCmd    `cmd:"" default:"1" help:"Run the HTTP server"`
	Migrate  MigrateCmd  `cmd:"" help:"Apply database migrations and exit"`
	Reindex  ReindexCmd  `cmd:"" help:"Rebuild the search index from active pages"`
	InitUser InitUserCmd `cmd:"" name:"init-user" help:"Create an admin account if it does not exist"`
}

// app 持有各命令共享的依赖。
type app struct {
	cfg    config.AppConfig
	logger *zap.Logger
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("novapages"),
		kong.Description("Hierarchical content pages served over HTTP."),
	)

	if cli.Config != "" {
		os.Setenv("CONFIG_FILE", cli.Config)
	}
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx.FatalIfErrorf(ctx.Run(&app{cfg: cfg, logger: logger}))
}

func (a *app) openDB() (*gorm.DB, error) {
	gdb, err := db.Open(a.cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return gdb, nil
}

// images delivers page images through Cloudinary; uploads served by this
// site are fetched from SiteBaseURL.
func (a *app) images() *imagecdn.Cloudinary {
	return imagecdn.NewCloudinary(a.cfg.CloudinaryCloud).WithOrigin(a.cfg.SiteBaseURL)
}

func (a *app) pageService(gdb *gorm.DB, indexer service.PageIndexer, recorder *metrics.Recorder) *service.PageService {
	return service.NewPageService(gdb, service.PageServiceOptions{
		Images:           a.images(),
		Indexer:          indexer,
		Metrics:          recorder,
		Logger:           a.logger,
		BaseSeeds:        []service.Seed{{Name: a.cfg.SiteName, URL: "/"}},
		LargeImageWidth:  a.cfg.LargeImageWidth,
		LargeImageHeight: a.cfg.LargeImageHeight,
		MaxDepth:         a.cfg.MaxPageDepth,
	})
}

// ServeCmd 启动 HTTP 服务与定时重建索引任务。
type ServeCmd struct{}

func (c *ServeCmd) Run(a *app) error {
	gin.SetMode(a.cfg.GinMode)

	proxies, err := service.NewProxyTrust(a.cfg.TrustedProxies)
	if err != nil {
		return err
	}

	gdb, err := a.openDB()
	if err != nil {
		return err
	}
	if a.cfg.SuperRootUserName != "" {
		created, err := db.EnsureUser(gdb, a.cfg.SuperRootUserName, a.cfg.SuperRootPassword)
		if err != nil {
			return fmt.Errorf("ensure super root user: %w", err)
		}
		if created {
			a.logger.Info("super root user created", zap.String("username", a.cfg.SuperRootUserName))
		}
	}

	indexer, err := search.Open(a.cfg.SearchIndexPath, a.logger)
	if err != nil {
		return err
	}
	defer indexer.Close()

	recorder := metrics.NewRecorder(prometheus.NewRegistry())
	pages := a.pageService(gdb, indexer, recorder)

	scheduler, err := search.NewScheduler(indexer, pages, recorder, a.logger)
	if err != nil {
		return err
	}
	if _, err := scheduler.Schedule(a.cfg.ReindexInterval); err != nil {
		return err
	}
	scheduler.Start()
	defer scheduler.Stop()

	api := handler.NewAPI(gdb, handler.Options{
		Pages:     pages,
		Blocks:    service.NewBlockRenderer(a.images(), pages.LargeImageOptions()),
		Search:    indexer,
		Metrics:   recorder,
		Logger:    a.logger,
		SiteName:  a.cfg.SiteName,
		UploadDir: a.cfg.UploadDir,
		UploadURL: a.cfg.UploadURLPath,
		Proxies:   proxies,
	})
	engine := router.SetupRouter(api, router.Options{
		SessionSecret:  a.cfg.SessionSecret,
		UploadDir:      a.cfg.UploadDir,
		UploadURLPath:  a.cfg.UploadURLPath,
		Metrics:        recorder.Handler(),
		Logger:         a.logger,
		TrustedProxies: a.cfg.TrustedProxies,
	})

	srv := &http.Server{
		Addr:              a.cfg.ListenAddr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("server listening", zap.String("addr", a.cfg.ListenAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("run server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	a.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// MigrateCmd 仅执行数据库迁移。
type MigrateCmd struct{}

func (c *MigrateCmd) Run(a *app) error {
	if _, err := a.openDB(); err != nil {
		return err
	}
	a.logger.Info("database migrated", zap.String("path", a.cfg.DatabasePath))
	return nil
}

// ReindexCmd 立即重建搜索索引。
type ReindexCmd struct{}

func (c *ReindexCmd) Run(a *app) error {
	gdb, err := a.openDB()
	if err != nil {
		return err
	}
	indexer, err := search.Open(a.cfg.SearchIndexPath, a.logger)
	if err != nil {
		return err
	}
	defer indexer.Close()

	pages := a.pageService(gdb, nil, nil)
	scheduler, err := search.NewScheduler(indexer, pages, nil, a.logger)
	if err != nil {
		return err
	}
	defer scheduler.Stop()
	return scheduler.RunOnce(context.Background())
}

// InitUserCmd 创建管理员用户，已存在时不做任何修改。
type InitUserCmd struct {
	Username string `short:"u" help:"Admin username (defaults to SUPER_ROOT_USER_NAME)"`
	Password string `short:"p" help:"Admin password (defaults to SUPER_ROOT_PASSWORD)"`
}

func (c *InitUserCmd) Run(a *app) error {
	username, password := c.Username, c.Password
	if username == "" {
		username = a.cfg.SuperRootUserName
	}
	if password == "" {
		password = a.cfg.SuperRootPassword
	}
	if username == "" || password == "" {
		return errors.New("username and password are required")
	}

	gdb, err := a.openDB()
	if err != nil {
		return err
	}
	created, err := db.EnsureUser(gdb, username, password)
	if err != nil {
		return err
	}
	if created {
		a.logger.Info("admin user created", zap.String("username", username))
	} else {
		a.logger.Info("admin user already exists", zap.String("username", username))
	}
	return nil
}
