package affiliation

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"CitationMap/internal/batch"
	"CitationMap/internal/models"
	"CitationMap/internal/platform"
	"CitationMap/internal/throttle"
	"CitationMap/pkg/logger"
)

// Memo 作者解析结果的记忆，可以跨运行持久化
type Memo interface {
	Lookup(kind Kind, authorID string) (Resolution, bool)
	Store(kind Kind, authorID string, res Resolution) error
}

// MapMemo 进程内的 Memo
type MapMemo struct {
	mu sync.RWMutex
	m  map[string]Resolution
}

func NewMapMemo() *MapMemo {
	return &MapMemo{m: map[string]Resolution{}}
}

func (m *MapMemo) Lookup(kind Kind, authorID string) (Resolution, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.m[string(kind)+"/"+authorID]
	return r, ok
}

func (m *MapMemo) Store(kind Kind, authorID string, res Resolution) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.m[string(kind)+"/"+authorID] = res
	return nil
}

// ResolverOptions Resolver 的可选参数
type ResolverOptions struct {
	Batch    batch.Options
	Delay    throttle.Jitter              // 每次查询作者前的随机等待
	Fallback platform.AffiliationFallback // 主策略失败时使用，可以为 nil
	Memo     Memo                         // nil 时使用进程内 memo
}

// Resolver 对每个不同的作者只查询一次，然后展开到该作者的所有引用记录
type Resolver struct {
	strategy Strategy
	opts     ResolverOptions
	log      *logger.Logger
}

func NewResolver(strategy Strategy, opts ResolverOptions) *Resolver {
	if opts.Memo == nil {
		opts.Memo = NewMapMemo()
	}
	return &Resolver{strategy: strategy, opts: opts, log: logger.WithPrefix("Affiliation")}
}

// Resolve 哨兵作者不发起任何请求，直接以空机构输出。
// 解析失败的作者同样以空机构输出，并计入失败数
func (r *Resolver) Resolve(ctx context.Context, records []models.CitingAuthorRecord) ([]models.AffiliationRecord, batch.Summary) {
	var ids []string
	seen := map[string]struct{}{}
	for _, rec := range records {
		if rec.IsSentinel() {
			continue
		}
		if _, ok := seen[rec.AuthorID]; ok {
			continue
		}
		seen[rec.AuthorID] = struct{}{}
		ids = append(ids, rec.AuthorID)
	}
	r.log.Info("开始解析 %d 位作者的机构（策略: %s）", len(ids), r.strategy.Kind())

	results := batch.Run(ctx, ids, r.opts.Batch, r.resolveAuthor)
	byID := make(map[string]batch.Result[Resolution], len(results))
	for i, res := range results {
		byID[ids[i]] = res
		if res.Outcome == batch.FatalFailure {
			r.log.Warn("作者 %s 机构解析失败: %v", ids[i], res.Err)
		}
	}

	var out []models.AffiliationRecord
	for _, rec := range records {
		if rec.IsSentinel() {
			out = append(out, models.NewAffiliationRecord(rec, "", ""))
			continue
		}
		res := byID[rec.AuthorID]
		if res.Outcome != batch.Succeeded {
			out = append(out, models.NewAffiliationRecord(rec, "", ""))
			continue
		}
		for _, aff := range res.Value.Affiliations {
			out = append(out, models.NewAffiliationRecord(rec, res.Value.Name, aff))
		}
	}

	deduped := Dedup(out)
	summary := batch.Summarize("affiliations", results)
	r.log.Info("%s, 共 %d 条机构记录（去掉 %d 条重复）", summary, len(deduped), len(out)-len(deduped))
	return deduped, summary
}

func (r *Resolver) resolveAuthor(ctx context.Context, authorID string) batch.Result[Resolution] {
	kind := r.strategy.Kind()
	if res, ok := r.opts.Memo.Lookup(kind, authorID); ok {
		return batch.OK(authorID, res)
	}

	if err := r.opts.Delay.Wait(ctx); err != nil {
		return batch.Fatal[Resolution](authorID, err)
	}
	res, err := r.strategy.Resolve(ctx, authorID)
	if err != nil && r.opts.Fallback != nil {
		res, err = r.fromFallback(ctx, authorID, res.Name, err)
	}
	if err != nil {
		return batch.Fatal[Resolution](authorID, err)
	}

	if err := r.opts.Memo.Store(kind, authorID, res); err != nil {
		r.log.Warn("保存作者 %s 的解析结果失败: %v", authorID, err)
	}
	return batch.OK(authorID, res)
}

func (r *Resolver) fromFallback(ctx context.Context, authorID, name string, cause error) (Resolution, error) {
	r.log.Debug("作者 %s 主策略失败，改用备用通道: %v", authorID, cause)
	aff, err := r.opts.Fallback.AuthorAffiliation(ctx, authorID)
	if err != nil {
		return Resolution{}, fmt.Errorf("备用通道也失败: %w", errors.Join(cause, err))
	}
	res := Resolution{Name: name}
	if s, ok := r.strategy.(*SelfReportedStrategy); ok {
		res.Affiliations = s.split(aff)
	} else if aff != "" {
		res.Affiliations = []string{aff}
	}
	return res, nil
}

// Dedup 按 AffiliationRecord.Key 去重，保留首次出现的记录。
// 翻页重叠或同一论文的多个 cites id 都会产生重复
func Dedup(records []models.AffiliationRecord) []models.AffiliationRecord {
	seen := make(map[string]struct{}, len(records))
	out := make([]models.AffiliationRecord, 0, len(records))
	for _, rec := range records {
		k := rec.Key()
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, rec)
	}
	return out
}

// AuthorAffiliation 一对 (作者, 机构)
type AuthorAffiliation struct {
	Author      string
	Affiliation string
}

// ListAffiliations 去重并排序的 (作者, 机构) 列表，跳过空机构
func ListAffiliations(records []models.AffiliationRecord) []AuthorAffiliation {
	seen := map[AuthorAffiliation]struct{}{}
	var out []AuthorAffiliation
	for _, rec := range records {
		if rec.Affiliation == "" || rec.IsSentinel() {
			continue
		}
		p := AuthorAffiliation{Author: rec.AuthorName, Affiliation: rec.Affiliation}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Author != out[j].Author {
			return out[i].Author < out[j].Author
		}
		return out[i].Affiliation < out[j].Affiliation
	})
	return out
}
