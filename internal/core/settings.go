package core

import (
	"fmt"
	"time"

	"CitationMap/internal/affiliation"
	"CitationMap/internal/platform"
)

// CacheConfig 地理编码缓存
type CacheConfig struct {
	Backend string `mapstructure:"backend" yaml:"backend"` // json 或 sqlite
	Path    string `mapstructure:"path" yaml:"path"`       // json 缓存文件路径
}

// GeocodeConfig 地理编码 provider 与重试
type GeocodeConfig struct {
	NominatimURL  string        `mapstructure:"nominatim_url" yaml:"nominatim_url"`
	GoogleAPIKey  string        `mapstructure:"google_api_key" yaml:"google_api_key"`
	GoogleBaseURL string        `mapstructure:"google_base_url" yaml:"google_base_url"`
	MaxAttempts   int           `mapstructure:"max_attempts" yaml:"max_attempts"`
	RetryBase     time.Duration `mapstructure:"retry_base" yaml:"retry_base"`
	FlushEvery    int           `mapstructure:"flush_every" yaml:"flush_every"`
	Rate          float64       `mapstructure:"rate" yaml:"rate"` // 每秒请求数
	Timeout       time.Duration `mapstructure:"timeout" yaml:"timeout"`
	Proxy         string        `mapstructure:"proxy" yaml:"proxy"` // 只用于 Google Maps
}

// PipelineConfig 各阶段的并发与策略
type PipelineConfig struct {
	Strategy        string        `mapstructure:"strategy" yaml:"strategy"` // verified 或 self-reported
	Normalize       bool          `mapstructure:"normalize" yaml:"normalize"`
	CrawlWorkers    int           `mapstructure:"crawl_workers" yaml:"crawl_workers"`
	ResolverWorkers int           `mapstructure:"resolver_workers" yaml:"resolver_workers"`
	GeocodeWorkers  int           `mapstructure:"geocode_workers" yaml:"geocode_workers"`
	AuthorDelayMin  float64       `mapstructure:"author_delay_min" yaml:"author_delay_min"`
	AuthorDelayMax  float64       `mapstructure:"author_delay_max" yaml:"author_delay_max"`
	ItemTimeout     time.Duration `mapstructure:"item_timeout" yaml:"item_timeout"`
}

// OutputConfig 导出文件
type OutputConfig struct {
	Dir               string `mapstructure:"dir" yaml:"dir"`
	CSV               bool   `mapstructure:"csv" yaml:"csv"`
	JSON              bool   `mapstructure:"json" yaml:"json"`
	HTML              bool   `mapstructure:"html" yaml:"html"`
	Colorful          bool   `mapstructure:"colorful" yaml:"colorful"`
	PrintAffiliations bool   `mapstructure:"print_affiliations" yaml:"print_affiliations"`
}

// Settings 构造 App 所需的全部配置
type Settings struct {
	DatabasePath string
	Cache        CacheConfig
	Geocode      GeocodeConfig
	Pipeline     PipelineConfig
	Output       OutputConfig
	// Platforms 按数据源名字索引，缺省时使用数据源自己的默认配置
	Platforms map[string]platform.Config
}

func (c CacheConfig) Validate() error {
	switch c.Backend {
	case "json":
		if c.Path == "" {
			return fmt.Errorf("json 缓存需要配置 path")
		}
	case "sqlite":
	default:
		return fmt.Errorf("未知的缓存后端: %q", c.Backend)
	}
	return nil
}

func (c GeocodeConfig) Validate() error {
	if c.MaxAttempts <= 0 {
		return fmt.Errorf("invalid max_attempts: %d", c.MaxAttempts)
	}
	if c.RetryBase < 0 || c.FlushEvery < 0 || c.Rate < 0 {
		return fmt.Errorf("retry_base, flush_every 和 rate 不能为负")
	}
	return nil
}

func (c PipelineConfig) Validate() error {
	switch affiliation.Kind(c.Strategy) {
	case affiliation.KindVerified, affiliation.KindSelfReported:
	default:
		return fmt.Errorf("未知的机构解析策略: %q", c.Strategy)
	}
	if c.CrawlWorkers <= 0 || c.ResolverWorkers <= 0 || c.GeocodeWorkers <= 0 {
		return fmt.Errorf("worker 数必须大于 0")
	}
	if c.AuthorDelayMin < 0 || c.AuthorDelayMax < c.AuthorDelayMin {
		return fmt.Errorf("invalid author delay range: %v-%v", c.AuthorDelayMin, c.AuthorDelayMax)
	}
	if c.ItemTimeout < 0 {
		return fmt.Errorf("invalid item_timeout: %v", c.ItemTimeout)
	}
	return nil
}
