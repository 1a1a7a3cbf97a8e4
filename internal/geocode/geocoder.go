package geocode

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"CitationMap/internal/batch"
	"CitationMap/internal/models"
	"CitationMap/internal/throttle"
	"CitationMap/pkg/logger"
)

// Options Geocoder 参数
type Options struct {
	Batch       batch.Options
	MaxAttempts int           // primary provider 的尝试次数
	RetryBase   time.Duration // 第 n 次重试前等待 RetryBase * 2^(n-1)
	FlushEvery  int           // 每新增多少条缓存落盘一次，0 表示只在阶段结束时落盘
}

// Geocoder 先查缓存，未命中时先用尽 primary 的尝试次数，再调用一次 fallback。
// 无论成败结果都写入缓存
type Geocoder struct {
	cache    Cache
	primary  Provider
	fallback Provider
	opts     Options
	log      *logger.Logger

	mu      sync.Mutex
	pending int
}

// New fallback 可以为 nil
func New(cache Cache, primary, fallback Provider, opts Options) *Geocoder {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	return &Geocoder{
		cache:    cache,
		primary:  primary,
		fallback: fallback,
		opts:     opts,
		log:      logger.WithPrefix("Geocode"),
	}
}

// Lookup 查询单个机构。cached 表示命中缓存，没有发起网络请求。
// 所有 provider 都没有结果时返回空结果和 ErrProviderExhausted，空结果同样已写入缓存
func (g *Geocoder) Lookup(ctx context.Context, affiliation string) (res models.GeocodeResult, cached bool, err error) {
	if r, ok := g.cache.Get(affiliation); ok {
		return r, true, nil
	}

	res, err = g.query(ctx, affiliation)
	if err != nil && ctx.Err() != nil {
		// 被取消或超时的查询不能当作确认为空的结果
		return models.EmptyGeocode(affiliation), false, ctx.Err()
	}
	if err != nil {
		res = models.EmptyGeocode(affiliation)
	}
	if perr := g.cache.Put(affiliation, res); perr != nil {
		g.log.Warn("写入缓存失败 %q: %v", affiliation, perr)
	}
	g.maybeFlush()
	return res, false, err
}

func (g *Geocoder) query(ctx context.Context, affiliation string) (models.GeocodeResult, error) {
	var errs []error
	if g.primary != nil {
		for attempt := 0; attempt < g.opts.MaxAttempts; attempt++ {
			if attempt > 0 {
				if err := throttle.Sleep(ctx, throttle.Backoff(g.opts.RetryBase, time.Minute, attempt-1)); err != nil {
					return models.GeocodeResult{}, err
				}
			}
			res, err := g.primary.Geocode(ctx, affiliation)
			if err == nil && res.Located() {
				return res, nil
			}
			if err == nil {
				err = ErrNotFound
			}
			if ctx.Err() != nil {
				return models.GeocodeResult{}, ctx.Err()
			}
			g.log.Debug("%s 第 %d 次查询 %q 失败: %v", g.primary.Name(), attempt+1, affiliation, err)
			errs = append(errs, err)
		}
	}
	if g.fallback != nil {
		res, err := g.fallback.Geocode(ctx, affiliation)
		if err == nil && res.Located() {
			return res, nil
		}
		if err == nil {
			err = ErrNotFound
		}
		errs = append(errs, err)
	}
	return models.GeocodeResult{}, fmt.Errorf("%w: %q: %w", ErrProviderExhausted, affiliation, errors.Join(errs...))
}

func (g *Geocoder) maybeFlush() {
	if g.opts.FlushEvery <= 0 {
		return
	}
	g.mu.Lock()
	g.pending++
	due := g.pending >= g.opts.FlushEvery
	if due {
		g.pending = 0
	}
	g.mu.Unlock()
	if due {
		if err := g.cache.Flush(); err != nil {
			g.log.Warn("缓存落盘失败: %v", err)
		}
	}
}

// Geocode 对所有不同的机构各查询一次，再合并回每条记录。
// 哨兵作者和空机构不查询，以空位置输出
func (g *Geocoder) Geocode(ctx context.Context, records []models.AffiliationRecord) ([]models.CitationInfoRow, batch.Summary) {
	var affs []string
	seen := map[string]struct{}{}
	for _, rec := range records {
		if rec.IsSentinel() || rec.Affiliation == "" {
			continue
		}
		if _, ok := seen[rec.Affiliation]; ok {
			continue
		}
		seen[rec.Affiliation] = struct{}{}
		affs = append(affs, rec.Affiliation)
	}
	g.log.Info("开始为 %d 条记录中的 %d 个不同机构查询坐标", len(records), len(affs))

	hits := 0
	var hitsMu sync.Mutex
	results := batch.Run(ctx, affs, g.opts.Batch, func(ctx context.Context, aff string) batch.Result[models.GeocodeResult] {
		res, cached, err := g.Lookup(ctx, aff)
		if cached {
			hitsMu.Lock()
			hits++
			hitsMu.Unlock()
		}
		switch {
		case err != nil && errors.Is(err, ErrProviderExhausted):
			return batch.Soft(aff, res, err)
		case err != nil:
			return batch.Fatal[models.GeocodeResult](aff, err)
		case !res.Located():
			return batch.Soft(aff, res, ErrNotFound)
		}
		return batch.OK(aff, res)
	})

	byAff := make(map[string]models.GeocodeResult, len(results))
	for i, r := range results {
		if r.Outcome == batch.Succeeded || r.Outcome == batch.SoftFailure {
			byAff[affs[i]] = r.Value
		}
	}
	if err := g.cache.Flush(); err != nil {
		g.log.Error("缓存落盘失败: %v", err)
	}

	rows := make([]models.CitationInfoRow, 0, len(records))
	for _, rec := range records {
		geo, ok := byAff[rec.Affiliation]
		if !ok {
			geo = models.EmptyGeocode(rec.Affiliation)
		}
		rows = append(rows, models.NewCitationInfoRow(rec, geo))
	}

	summary := batch.Summarize("geocode", results)
	g.log.Info("%s, 缓存命中 %d", summary, hits)
	return rows, summary
}
