package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// AppConfig 汇总运行服务所需的基础配置。
type AppConfig struct {
	ListenAddr        string        `yaml:"listen_addr"`
	Port              string        `yaml:"port"`
	DatabasePath      string        `yaml:"database_path"`
	SessionSecret     string        `yaml:"session_secret"`
	GinMode           string        `yaml:"gin_mode"`
	UploadDir         string        `yaml:"upload_dir"`
	UploadURLPath     string        `yaml:"upload_url_path"`
	SuperRootUserName string        `yaml:"super_root_user_name"`
	SuperRootPassword string        `yaml:"super_root_password"`
	SiteBaseURL       string        `yaml:"site_base_url"`
	SiteName          string        `yaml:"site_name"`
	LargeImageWidth   int           `yaml:"large_image_width"`
	LargeImageHeight  int           `yaml:"large_image_height"`
	CloudinaryCloud   string        `yaml:"cloudinary_cloud_name"`
	SearchIndexPath   string        `yaml:"search_index_path"`
	ReindexInterval   time.Duration `yaml:"reindex_interval"`
	MaxPageDepth      int           `yaml:"max_page_depth"`
	LogLevel          string        `yaml:"log_level"`
	LogFormat         string        `yaml:"log_format"`
	TrustedProxies    []string      `yaml:"trusted_proxies"`
}

// Defaults 返回未读取任何外部来源时的配置。
func Defaults() AppConfig {
	return AppConfig{
		Port:             "8080",
		DatabasePath:     "novapages.db",
		SessionSecret:    "novapages-dev-secret",
		GinMode:          "release",
		UploadDir:        "web/static/uploads",
		UploadURLPath:    "/static/uploads",
		SiteBaseURL:      "http://localhost:8080",
		SiteName:         "Home",
		LargeImageWidth:  1200,
		LargeImageHeight: 630,
		CloudinaryCloud:  "demo",
		SearchIndexPath:  "data/pages.bleve",
		ReindexInterval:  15 * time.Minute,
		MaxPageDepth:     32,
		LogLevel:         "info",
		LogFormat:        "json",
	}
}

// Load 依次读取 .env、CONFIG_FILE 指向的 YAML 文件以及环境变量，后者优先。
func Load() (AppConfig, error) {
	// .env 缺失属于正常情况，已存在的环境变量不会被覆盖
	_ = godotenv.Load()

	cfg := Defaults()
	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		if err := LoadFile(path, &cfg); err != nil {
			return cfg, err
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadFile 将 YAML 文件中的字段覆盖到 cfg 上。
func LoadFile(path string, cfg *AppConfig) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *AppConfig) error {
	setString(&cfg.Port, "PORT")
	setString(&cfg.ListenAddr, "LISTEN_ADDR")
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = fmt.Sprintf(":%s", cfg.Port)
	}

	setString(&cfg.DatabasePath, "DATABASE_PATH")
	setString(&cfg.SessionSecret, "SESSION_SECRET")
	setString(&cfg.GinMode, "GIN_MODE")
	setString(&cfg.UploadDir, "UPLOAD_DIR")
	setString(&cfg.UploadURLPath, "UPLOAD_URL_PATH")
	setString(&cfg.SuperRootUserName, "SUPER_ROOT_USER_NAME")
	setString(&cfg.SuperRootPassword, "SUPER_ROOT_PASSWORD")
	setString(&cfg.SiteBaseURL, "SITE_BASE_URL")
	setString(&cfg.SiteName, "SITE_NAME")
	setString(&cfg.CloudinaryCloud, "CLOUDINARY_CLOUD_NAME")
	setString(&cfg.SearchIndexPath, "SEARCH_INDEX_PATH")
	setString(&cfg.LogLevel, "LOG_LEVEL")
	setString(&cfg.LogFormat, "LOG_FORMAT")
	if raw := strings.TrimSpace(os.Getenv("TRUSTED_PROXIES")); raw != "" {
		cfg.TrustedProxies = splitList(raw)
	}

	if err := setPositiveInt(&cfg.LargeImageWidth, "LARGE_IMAGE_WIDTH"); err != nil {
		return err
	}
	if err := setPositiveInt(&cfg.LargeImageHeight, "LARGE_IMAGE_HEIGHT"); err != nil {
		return err
	}
	if err := setPositiveInt(&cfg.MaxPageDepth, "MAX_PAGE_DEPTH"); err != nil {
		return err
	}

	if raw := strings.TrimSpace(os.Getenv("REINDEX_INTERVAL")); raw != "" {
		interval, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("invalid REINDEX_INTERVAL %q: %w", raw, err)
		}
		cfg.ReindexInterval = interval
	}

	cfg.SiteBaseURL = strings.TrimRight(cfg.SiteBaseURL, "/")
	return nil
}

func setString(dst *string, key string) {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		*dst = value
	}
}

func setPositiveInt(dst *int, key string) error {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return fmt.Errorf("invalid %s %q: must be a positive integer", key, raw)
	}
	*dst = value
	return nil
}

func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
