// Package throttle 提供出站请求前的随机等待、退避和限流
package throttle

import (
	"context"
	"math/rand"
	"time"

	"golang.org/x/time/rate"
)

// Jitter 在 [Min, Max] 内随机等待，模拟人工访问节奏
type Jitter struct {
	Min time.Duration
	Max time.Duration
}

// NewJitter 以秒为单位构造
func NewJitter(minSec, maxSec float64) Jitter {
	return Jitter{
		Min: time.Duration(minSec * float64(time.Second)),
		Max: time.Duration(maxSec * float64(time.Second)),
	}
}

// Next 下一次等待时长
func (j Jitter) Next() time.Duration {
	if j.Max <= j.Min {
		return j.Min
	}
	return j.Min + time.Duration(rand.Int63n(int64(j.Max-j.Min)))
}

// Wait 随机等待，ctx 取消时立即返回
func (j Jitter) Wait(ctx context.Context) error {
	return Sleep(ctx, j.Next())
}

// Sleep 可取消的 time.Sleep
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Backoff 第 attempt 次重试（从 0 开始）前的等待：base * 2^attempt，上限 max
func Backoff(base, max time.Duration, attempt int) time.Duration {
	if base <= 0 {
		return 0
	}
	d := base << uint(attempt)
	if max > 0 && (d > max || d <= 0) {
		return max
	}
	return d
}

// NewLimiter 每秒 perSecond 次，burst 为 1；perSecond <= 0 表示不限速
func NewLimiter(perSecond float64) *rate.Limiter {
	if perSecond <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Limit(perSecond), 1)
}
