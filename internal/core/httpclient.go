package core

import (
	"crypto/tls"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"golang.org/x/net/publicsuffix"
)

// NewHTTPClient 创建一个通用的 HTTP 客户端
// - timeoutSec: 超时时间（秒）
// - proxy: 代理地址，例如 "http://127.0.0.1:7890"，留空则不设置代理
func NewHTTPClient(timeoutSec int, proxy string) *http.Client {
	var proxyFunc func(*http.Request) (*url.URL, error)
	if proxy != "" {
		if proxyURL, err := url.Parse(proxy); err == nil {
			proxyFunc = http.ProxyURL(proxyURL)
		}
	}
	return newClient(timeoutSec, proxyFunc)
}

// NewRotatingHTTPClient 每次请求都从 rotator 取下一个出口，rotator 为 nil 时直连
func NewRotatingHTTPClient(timeoutSec int, rotator *ProxyRotator) *http.Client {
	if rotator == nil {
		return newClient(timeoutSec, nil)
	}
	return newClient(timeoutSec, rotator.ProxyFunc())
}

func newClient(timeoutSec int, proxyFunc func(*http.Request) (*url.URL, error)) *http.Client {
	if timeoutSec <= 0 {
		timeoutSec = 30
	}

	tlsConfig := &tls.Config{
		InsecureSkipVerify: false,
		MinVersion:         tls.VersionTLS12,
	}

	transport := &http.Transport{
		TLSClientConfig:       tlsConfig,
		TLSHandshakeTimeout:   30 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		Proxy:                 proxyFunc,
	}

	// 保留 scholar 下发的 cookie
	jar, _ := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})

	return &http.Client{
		Timeout:   time.Duration(timeoutSec) * time.Second,
		Transport: transport,
		Jar:       jar,
	}
}
