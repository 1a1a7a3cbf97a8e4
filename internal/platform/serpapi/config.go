package serpapi

import (
	"fmt"
	"time"

	"CitationMap/internal/platform"
)

// MaxNum SerpAPI 单页结果上限
const MaxNum = 100

const DefaultBaseURL = "https://serpapi.com/search.json"

// Config SerpAPI 备用通道配置
type Config struct {
	APIKey  string `mapstructure:"api_key" yaml:"api_key"`
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`

	Timeout            time.Duration `mapstructure:"timeout" yaml:"timeout"`
	RateLimitPerSecond float64       `mapstructure:"rate_limit_per_second" yaml:"rate_limit_per_second"`
	CitationDelay      time.Duration `mapstructure:"citation_delay" yaml:"citation_delay"`
	AuthorDelay        time.Duration `mapstructure:"author_delay" yaml:"author_delay"`

	Num      int `mapstructure:"num" yaml:"num"`             // 每页结果数，上限 100
	MaxPages int `mapstructure:"max_pages" yaml:"max_pages"` // 每个 group 最多翻几页
}

func DefaultConfig() *Config {
	return &Config{
		Enabled:            true,
		BaseURL:            DefaultBaseURL,
		Timeout:            30 * time.Second,
		RateLimitPerSecond: 1,
		CitationDelay:      2 * time.Second,
		AuthorDelay:        1 * time.Second,
		Num:                MaxNum,
		MaxPages:           5,
	}
}

func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("nil config")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("invalid timeout: %v", c.Timeout)
	}
	if c.Num <= 0 {
		return fmt.Errorf("invalid num: %d", c.Num)
	}
	if c.MaxPages <= 0 {
		return fmt.Errorf("invalid max_pages: %d", c.MaxPages)
	}
	if c.CitationDelay < 0 || c.AuthorDelay < 0 {
		return fmt.Errorf("delays must not be negative")
	}
	return nil
}

// Usable 启用且配置了 key
func (c *Config) Usable() bool {
	return c != nil && c.Enabled && c.APIKey != ""
}

func (c *Config) num() int {
	return min(c.Num, MaxNum)
}

var _ platform.Config = (*Config)(nil)
