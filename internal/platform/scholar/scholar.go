package scholar

import (
	"CitationMap/internal/core"
	"CitationMap/internal/platform"
)

// New 供外部创建 Scholar 数据源实例
func New(config *Config) (platform.Platform, error) {
	return NewAdapter(config)
}

var (
	_ platform.PublicationSource = (*Adapter)(nil)
	_ platform.CitationSource    = (*Adapter)(nil)
	_ platform.AuthorSource      = (*Adapter)(nil)
)

// 在包初始化时注册 Provider
func init() {
	core.MustRegister(core.Provider{
		Name: "scholar",
		New: func(cfg platform.Config) (platform.Platform, error) {
			c, _ := cfg.(*Config)
			if c == nil {
				c = DefaultConfig()
			}
			return New(c)
		},
		DefaultConfig: func() platform.Config { return DefaultConfig() },
	})
}
