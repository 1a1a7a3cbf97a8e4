package scholar

import (
	"fmt"
	"time"

	"CitationMap/internal/platform"
	"CitationMap/internal/throttle"
)

// Config 定义 Google Scholar 直接抓取的配置
type Config struct {
	// HTTP 行为
	Timeout   time.Duration `mapstructure:"timeout" yaml:"timeout"`
	Proxies   []string      `mapstructure:"proxies" yaml:"proxies"` // 轮询使用，"direct" 表示直连
	UserAgent string        `mapstructure:"user_agent" yaml:"user_agent"`

	// 站点与抓取参数
	BaseURL         string `mapstructure:"base_url" yaml:"base_url"`
	ProfilePageSize int    `mapstructure:"profile_page_size" yaml:"profile_page_size"`
	MaxProfilePages int    `mapstructure:"max_profile_pages" yaml:"max_profile_pages"`
	MaxCitePages    int    `mapstructure:"max_cite_pages" yaml:"max_cite_pages"` // 0 表示跟随到最后一页

	// 随机等待（秒）
	FirstDelayMin float64 `mapstructure:"first_delay_min" yaml:"first_delay_min"`
	FirstDelayMax float64 `mapstructure:"first_delay_max" yaml:"first_delay_max"`
	PageDelayMin  float64 `mapstructure:"page_delay_min" yaml:"page_delay_min"`
	PageDelayMax  float64 `mapstructure:"page_delay_max" yaml:"page_delay_max"`

	// 瞬时错误的重试
	MaxRetries int           `mapstructure:"max_retries" yaml:"max_retries"`
	RetryBase  time.Duration `mapstructure:"retry_base" yaml:"retry_base"`
}

// DefaultConfig 返回 Scholar 的默认配置
func DefaultConfig() *Config {
	return &Config{
		Timeout:         30 * time.Second,
		UserAgent:       "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		BaseURL:         "https://scholar.google.com",
		ProfilePageSize: 100,
		MaxProfilePages: 20,
		MaxCitePages:    0,
		FirstDelayMin:   3,
		FirstDelayMax:   8,
		PageDelayMin:    5,
		PageDelayMax:    10,
		MaxRetries:      2,
		RetryBase:       2 * time.Second,
	}
}

// Validate 校验配置
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("nil config")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("invalid timeout: %v", c.Timeout)
	}
	if c.BaseURL == "" {
		return fmt.Errorf("base_url required")
	}
	if c.ProfilePageSize <= 0 || c.ProfilePageSize > 100 {
		return fmt.Errorf("invalid profile_page_size: %d", c.ProfilePageSize)
	}
	if c.MaxProfilePages <= 0 {
		return fmt.Errorf("invalid max_profile_pages: %d", c.MaxProfilePages)
	}
	if c.MaxCitePages < 0 {
		return fmt.Errorf("invalid max_cite_pages: %d", c.MaxCitePages)
	}
	if c.FirstDelayMin < 0 || c.FirstDelayMax < c.FirstDelayMin {
		return fmt.Errorf("invalid first delay range: %v-%v", c.FirstDelayMin, c.FirstDelayMax)
	}
	if c.PageDelayMin < 0 || c.PageDelayMax < c.PageDelayMin {
		return fmt.Errorf("invalid page delay range: %v-%v", c.PageDelayMin, c.PageDelayMax)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("invalid max_retries: %d", c.MaxRetries)
	}
	return nil
}

func (c *Config) firstDelay() throttle.Jitter {
	return throttle.NewJitter(c.FirstDelayMin, c.FirstDelayMax)
}

func (c *Config) pageDelay() throttle.Jitter {
	return throttle.NewJitter(c.PageDelayMin, c.PageDelayMax)
}

// 确保实现 platform.Config 接口
var _ platform.Config = (*Config)(nil)
