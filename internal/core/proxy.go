package core

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
)

// DirectConnection 代理列表中表示直连的条目
const DirectConnection = "direct"

// ProxyRotator 轮询代理列表，只在内存中保存状态
type ProxyRotator struct {
	mu      sync.Mutex
	proxies []*url.URL // nil 表示直连
	next    int
}

// NewProxyRotator 空列表等价于只有一个直连条目
func NewProxyRotator(proxies []string) (*ProxyRotator, error) {
	r := &ProxyRotator{}
	for _, p := range proxies {
		p = strings.TrimSpace(p)
		if p == "" || strings.EqualFold(p, DirectConnection) {
			r.proxies = append(r.proxies, nil)
			continue
		}
		u, err := url.Parse(p)
		if err != nil || u.Host == "" {
			return nil, fmt.Errorf("代理地址无效 %q", p)
		}
		r.proxies = append(r.proxies, u)
	}
	if len(r.proxies) == 0 {
		r.proxies = []*url.URL{nil}
	}
	return r, nil
}

// Next 返回下一个出口，nil 为直连
func (r *ProxyRotator) Next() *url.URL {
	r.mu.Lock()
	defer r.mu.Unlock()
	u := r.proxies[r.next]
	r.next = (r.next + 1) % len(r.proxies)
	return u
}

func (r *ProxyRotator) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.proxies)
}

// ProxyFunc 用作 http.Transport.Proxy
func (r *ProxyRotator) ProxyFunc() func(*http.Request) (*url.URL, error) {
	return func(*http.Request) (*url.URL, error) {
		return r.Next(), nil
	}
}
