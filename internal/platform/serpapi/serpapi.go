package serpapi

import (
	"CitationMap/internal/core"
	"CitationMap/internal/platform"
)

var (
	_ platform.CitationSource      = (*Client)(nil)
	_ platform.AffiliationFallback = (*Client)(nil)
)

func init() {
	core.MustRegister(core.Provider{
		Name: "serpapi",
		New: func(cfg platform.Config) (platform.Platform, error) {
			c, _ := cfg.(*Config)
			if c == nil {
				c = DefaultConfig()
			}
			return NewClient(c)
		},
		DefaultConfig: func() platform.Config { return DefaultConfig() },
	})
}
