package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v2"

	"CitationMap/internal/core"
	"CitationMap/internal/platform"
	"CitationMap/internal/platform/scholar"
	"CitationMap/internal/platform/serpapi"
	"CitationMap/pkg/logger"
)

// LogConfig 日志配置
type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
	File  string `mapstructure:"file" yaml:"file"` // 留空输出到 stderr
	Color bool   `mapstructure:"color" yaml:"color"`
}

// DatabaseConfig 断点数据库配置
type DatabaseConfig struct {
	Path string `mapstructure:"path" yaml:"path"` // 数据库文件路径
}

// AppConfig 应用总配置(全局 + 数据源)
type AppConfig struct {
	Log      LogConfig           `mapstructure:"log" yaml:"log"`
	Database DatabaseConfig      `mapstructure:"database" yaml:"database"`
	Cache    core.CacheConfig    `mapstructure:"cache" yaml:"cache"`
	Scholar  scholar.Config      `mapstructure:"scholar" yaml:"scholar"` // Google Scholar 直接抓取
	SerpAPI  serpapi.Config      `mapstructure:"serpapi" yaml:"serpapi"` // 备用通道
	Geocode  core.GeocodeConfig  `mapstructure:"geocode" yaml:"geocode"`
	Pipeline core.PipelineConfig `mapstructure:"pipeline" yaml:"pipeline"`
	Output   core.OutputConfig   `mapstructure:"output" yaml:"output"`
}

// Settings 转换为 core.App 需要的配置
func (c *AppConfig) Settings() core.Settings {
	sch, serp := c.Scholar, c.SerpAPI
	return core.Settings{
		DatabasePath: c.Database.Path,
		Cache:        c.Cache,
		Geocode:      c.Geocode,
		Pipeline:     c.Pipeline,
		Output:       c.Output,
		Platforms: map[string]platform.Config{
			"scholar": &sch,
			"serpapi": &serp,
		},
	}
}

// Validate 校验各个配置段
func (c *AppConfig) Validate() error {
	if err := c.Scholar.Validate(); err != nil {
		return fmt.Errorf("scholar 配置不合法: %w", err)
	}
	if err := c.SerpAPI.Validate(); err != nil {
		return fmt.Errorf("serpapi 配置不合法: %w", err)
	}
	if err := c.Cache.Validate(); err != nil {
		return fmt.Errorf("cache 配置不合法: %w", err)
	}
	if err := c.Geocode.Validate(); err != nil {
		return fmt.Errorf("geocode 配置不合法: %w", err)
	}
	if err := c.Pipeline.Validate(); err != nil {
		return fmt.Errorf("pipeline 配置不合法: %w", err)
	}
	return nil
}

var (
	global     *AppConfig
	once       sync.Once
	globalErr  error
	configPath string // 存储当前使用的配置文件路径
)

// HomeDir ~/.citemap
func HomeDir() string {
	homedir, _ := os.UserHomeDir()
	return filepath.Join(homedir, ".citemap")
}

func setDefaults(v *viper.Viper) {
	home := HomeDir()

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("log.color", true)

	v.SetDefault("database.path", filepath.Join(home, "data", "citemap.db"))

	v.SetDefault("cache.backend", "json")
	v.SetDefault("cache.path", filepath.Join(home, "cache", "geocode_cache.json"))

	sch := scholar.DefaultConfig()
	v.SetDefault("scholar.timeout", sch.Timeout.String())
	v.SetDefault("scholar.proxies", []string{})
	v.SetDefault("scholar.user_agent", sch.UserAgent)
	v.SetDefault("scholar.base_url", sch.BaseURL)
	v.SetDefault("scholar.profile_page_size", sch.ProfilePageSize)
	v.SetDefault("scholar.max_profile_pages", sch.MaxProfilePages)
	v.SetDefault("scholar.max_cite_pages", sch.MaxCitePages)
	v.SetDefault("scholar.first_delay_min", sch.FirstDelayMin)
	v.SetDefault("scholar.first_delay_max", sch.FirstDelayMax)
	v.SetDefault("scholar.page_delay_min", sch.PageDelayMin)
	v.SetDefault("scholar.page_delay_max", sch.PageDelayMax)
	v.SetDefault("scholar.max_retries", sch.MaxRetries)
	v.SetDefault("scholar.retry_base", sch.RetryBase.String())

	serp := serpapi.DefaultConfig()
	v.SetDefault("serpapi.api_key", "")
	v.SetDefault("serpapi.enabled", serp.Enabled)
	v.SetDefault("serpapi.base_url", serp.BaseURL)
	v.SetDefault("serpapi.timeout", serp.Timeout.String())
	v.SetDefault("serpapi.rate_limit_per_second", serp.RateLimitPerSecond)
	v.SetDefault("serpapi.citation_delay", serp.CitationDelay.String())
	v.SetDefault("serpapi.author_delay", serp.AuthorDelay.String())
	v.SetDefault("serpapi.num", serp.Num)
	v.SetDefault("serpapi.max_pages", serp.MaxPages)

	v.SetDefault("geocode.nominatim_url", "")
	v.SetDefault("geocode.google_api_key", "")
	v.SetDefault("geocode.google_base_url", "")
	v.SetDefault("geocode.max_attempts", 3)
	v.SetDefault("geocode.retry_base", "2s")
	v.SetDefault("geocode.flush_every", 10)
	v.SetDefault("geocode.rate", 1.0)
	v.SetDefault("geocode.timeout", "30s")
	v.SetDefault("geocode.proxy", "")

	v.SetDefault("pipeline.strategy", "self-reported")
	v.SetDefault("pipeline.normalize", true)
	v.SetDefault("pipeline.crawl_workers", 1)
	v.SetDefault("pipeline.resolver_workers", 4)
	v.SetDefault("pipeline.geocode_workers", 4)
	v.SetDefault("pipeline.author_delay_min", 1.0)
	v.SetDefault("pipeline.author_delay_max", 5.0)
	v.SetDefault("pipeline.item_timeout", "15m")

	v.SetDefault("output.dir", "output")
	v.SetDefault("output.csv", true)
	v.SetDefault("output.json", false)
	v.SetDefault("output.html", true)
	v.SetDefault("output.colorful", true)
	v.SetDefault("output.print_affiliations", false)
}

// Load 读取配置。可额外传入目录或具体文件路径；没有配置文件时只使用默认值和环境变量
func Load(configPaths ...string) (*AppConfig, string, error) {
	// .env 中的 key 只在环境变量未设置时生效
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warn("读取 .env 失败: %v", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AddConfigPath("./config")
	v.AddConfigPath(".")
	v.AddConfigPath(filepath.Join(HomeDir(), "config"))

	for _, p := range configPaths {
		if p == "" {
			continue
		}
		if strings.HasSuffix(p, ".yaml") || strings.HasSuffix(p, ".yml") {
			v.SetConfigFile(p)
		} else {
			v.AddConfigPath(p)
		}
	}

	v.SetEnvPrefix("CITEMAP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("serpapi.api_key", "CITEMAP_SERPAPI_API_KEY", "SERPAPI_KEY")
	_ = v.BindEnv("geocode.google_api_key", "CITEMAP_GEOCODE_GOOGLE_API_KEY", "GOOGLE_MAPS_API_KEY")

	setDefaults(v)

	used := ""
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, "", fmt.Errorf("读取配置文件失败: %w", err)
		}
	} else {
		used = v.ConfigFileUsed()
	}

	cfg := &AppConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, used, fmt.Errorf("配置解析失败: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, used, err
	}
	return cfg, used, nil
}

// Init 全局只加载一次
func Init(configPaths ...string) (*AppConfig, error) {
	once.Do(func() {
		global, configPath, globalErr = Load(configPaths...)
	})
	return global, globalErr
}

func MustInit(configPaths ...string) *AppConfig {
	cfg, err := Init(configPaths...)
	if err != nil {
		panic(err)
	}
	return cfg
}

func Get() *AppConfig {
	if global == nil {
		_, _ = Init()
	}
	return global
}

// GetConfigPath 当前使用的配置文件，没有时返回空串
func GetConfigPath() string {
	return configPath
}

// ExampleConfig 由默认值生成的示例配置，不包含任何环境变量中的 key
func ExampleConfig() ([]byte, error) {
	v := viper.New()
	setDefaults(v)
	body, err := yaml.Marshal(v.AllSettings())
	if err != nil {
		return nil, err
	}
	header := "# CitationMap 配置文件\n" +
		"# SerpAPI 和 Google Maps 的 key 也可以放在 .env 中: SERPAPI_KEY / GOOGLE_MAPS_API_KEY\n\n"
	return append([]byte(header), body...), nil
}

// CreateExampleConfig 在 path 写入示例配置，已存在时不覆盖
func CreateExampleConfig(path string) error {
	if path == "" {
		path = filepath.Join(HomeDir(), "config", "config.yaml")
	}
	if _, err := os.Stat(path); err == nil {
		logger.Warn("配置文件已存在，请直接编辑: %s", path)
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("检查配置文件时出错: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("创建配置目录失败: %w", err)
	}
	data, err := ExampleConfig()
	if err != nil {
		return fmt.Errorf("生成示例配置失败: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("写入配置文件失败: %w", err)
	}
	logger.Info("已在 %s 中创建配置文件", path)
	return nil
}
