// Package batch 运行有界并发的批处理阶段，并用显式的结果值记录每个条目的成败
package batch

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
)

// Outcome 单个工作项的结果类型
type Outcome int

const (
	Succeeded    Outcome = iota
	SoftFailure          // 局部失败，已记录，不影响兄弟工作项
	FatalFailure         // 该工作项无法产生任何结果
	Skipped              // 取消后未启动
)

func (o Outcome) String() string {
	switch o {
	case Succeeded:
		return "succeeded"
	case SoftFailure:
		return "soft-failure"
	case FatalFailure:
		return "fatal-failure"
	case Skipped:
		return "skipped"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Result 工作项结果
type Result[T any] struct {
	Key     string
	Value   T
	Outcome Outcome
	Err     error
}

func OK[T any](key string, v T) Result[T] {
	return Result[T]{Key: key, Value: v, Outcome: Succeeded}
}

// Soft 部分成功：v 中保留已经拿到的数据
func Soft[T any](key string, v T, err error) Result[T] {
	return Result[T]{Key: key, Value: v, Outcome: SoftFailure, Err: err}
}

func Fatal[T any](key string, err error) Result[T] {
	return Result[T]{Key: key, Outcome: FatalFailure, Err: err}
}

// Options 并发参数
type Options struct {
	Workers     int           // 并发数，<=0 视为 1
	ItemTimeout time.Duration // 单个工作项超时，0 表示不额外限制
}

// Run 用 Workers 个 goroutine 处理 items，结果与 items 下标一一对应。
// ctx 取消后不再启动新的工作项（记为 Skipped），已在运行的工作项不随 ctx 取消，
// 只受 ItemTimeout 约束，这样已经拿到的结果不会丢。
func Run[T, R any](ctx context.Context, items []T, opts Options, fn func(context.Context, T) Result[R]) []Result[R] {
	results := make([]Result[R], len(items))
	workers := opts.Workers
	if workers <= 0 {
		workers = 1
	}

	var g errgroup.Group
	g.SetLimit(workers)

	detached := context.WithoutCancel(ctx)
	for i, item := range items {
		if err := ctx.Err(); err != nil {
			results[i] = Result[R]{Outcome: Skipped, Err: err}
			continue
		}
		i, item := i, item
		g.Go(func() error {
			// 等到空位时 ctx 可能已经取消
			if err := ctx.Err(); err != nil {
				results[i] = Result[R]{Outcome: Skipped, Err: err}
				return nil
			}
			itemCtx := detached
			if opts.ItemTimeout > 0 {
				var cancel context.CancelFunc
				itemCtx, cancel = context.WithTimeout(detached, opts.ItemTimeout)
				defer cancel()
			}
			results[i] = fn(itemCtx, item)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// Summary 一个阶段的统计
type Summary struct {
	Stage    string `json:"stage"`
	Total    int    `json:"total"`
	Resolved int    `json:"resolved"`
	Failed   int    `json:"failed"`
	Skipped  int    `json:"skipped"`
}

func (s Summary) String() string {
	return fmt.Sprintf("%s: total=%d resolved=%d failed=%d skipped=%d", s.Stage, s.Total, s.Resolved, s.Failed, s.Skipped)
}

// Add 合并另一个 Summary 的计数
func (s *Summary) Add(o Summary) {
	s.Total += o.Total
	s.Resolved += o.Resolved
	s.Failed += o.Failed
	s.Skipped += o.Skipped
}

// Summarize 统计结果。SoftFailure 计入 Failed
func Summarize[T any](stage string, results []Result[T]) Summary {
	s := Summary{Stage: stage, Total: len(results)}
	for _, r := range results {
		switch r.Outcome {
		case Succeeded:
			s.Resolved++
		case Skipped:
			s.Skipped++
		default:
			s.Failed++
		}
	}
	return s
}
