package platform

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrUpstreamUnavailable 作者主页无法获取，本次运行没有可处理的数据
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	// ErrBlocked 被反爬拦截或限流，应切换到备用通道，不要原样重试
	ErrBlocked = errors.New("blocked or rate limited")
	// ErrTransient 超时、连接重置等，可以有限次重试
	ErrTransient = errors.New("transient network error")
	// ErrMalformedPage 页面结构无法解析
	ErrMalformedPage = errors.New("malformed upstream page")
)

// HTTPError 非 200 的响应
type HTTPError struct {
	StatusCode int
	URL        string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP error: %d (%s)", e.StatusCode, e.URL)
}

// Unwrap 让 errors.Is 能按状态码归类
func (e *HTTPError) Unwrap() error {
	switch {
	case e.StatusCode == http.StatusForbidden || e.StatusCode == http.StatusTooManyRequests:
		return ErrBlocked
	case e.StatusCode >= 500:
		return ErrTransient
	default:
		return nil
	}
}

func IsBlocked(err error) bool {
	return errors.Is(err, ErrBlocked)
}

func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}

func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUpstreamUnavailable)
}
