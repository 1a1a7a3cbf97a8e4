package main

import (
	"context"
	"errors"

	"CitationMap/internal/platform"
)

const (
	ExitSuccess     = 0 // 成功
	ExitError       = 1 // 一般错误（参数错误、运行失败）
	ExitConfigError = 2 // 配置文件缺失或不合法
	ExitUpstream    = 3 // 取不到被引作者的论文列表
	ExitInterrupted = 4 // 被中断或超时，已保存部分结果
)

// configError 标记配置阶段的错误
type configError struct{ err error }

func (e configError) Error() string { return e.err.Error() }

func (e configError) Unwrap() error { return e.err }

func exitCode(err error) int {
	var ce configError
	switch {
	case err == nil:
		return ExitSuccess
	case errors.As(err, &ce):
		return ExitConfigError
	case errors.Is(err, platform.ErrUpstreamUnavailable):
		return ExitUpstream
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ExitInterrupted
	default:
		return ExitError
	}
}
