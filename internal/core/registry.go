package core

import (
	"fmt"
	"sort"
	"sync"

	"CitationMap/internal/platform"
)

// Provider 数据源工厂，由各数据源包在 init 中注册。
// Name 如 "scholar"、"serpapi"；cfg 为 nil 时使用 DefaultConfig
type Provider struct {
	Name string

	New func(cfg platform.Config) (platform.Platform, error)

	DefaultConfig func() platform.Config
}

var (
	regMu    sync.RWMutex
	registry = map[string]Provider{}
)

func Register(p Provider) error {
	if p.Name == "" {
		return fmt.Errorf("provider 的名字不能为空")
	}
	if p.New == nil || p.DefaultConfig == nil {
		return fmt.Errorf("provider %s 的配置不正确", p.Name)
	}

	regMu.Lock()
	defer regMu.Unlock()
	if _, exists := registry[p.Name]; exists {
		return fmt.Errorf("provider %s 已经注册过了", p.Name)
	}
	registry[p.Name] = p
	return nil
}

func MustRegister(p Provider) {
	if err := Register(p); err != nil {
		panic(err)
	}
}

func Get(name string) (Provider, bool) {
	regMu.RLock()
	defer regMu.RUnlock()
	p, ok := registry[name]
	return p, ok
}

func List() []string {
	regMu.RLock()
	defer regMu.RUnlock()
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// newPlatform 按名字创建实例，cfg 为 nil 时用默认配置
func newPlatform(name string, cfg platform.Config) (platform.Platform, error) {
	prov, ok := Get(name)
	if !ok {
		return nil, fmt.Errorf("未知或未注册的数据源: %s", name)
	}
	if cfg == nil {
		cfg = prov.DefaultConfig()
	}
	plat, err := prov.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("创建数据源 %s 失败: %w", name, err)
	}
	return plat, nil
}
