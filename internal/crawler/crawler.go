// Package crawler 对每个 citation group 抓取引用作者，被拦截或失败时转用备用通道
package crawler

import (
	"context"
	"errors"
	"fmt"

	"CitationMap/internal/batch"
	"CitationMap/internal/models"
	"CitationMap/internal/platform"
	"CitationMap/pkg/logger"
)

// Path 记录一个 group 的数据从哪条通道取得
type Path string

const (
	PathDirect   Path = "direct"
	PathFallback Path = "fallback"
	PathBoth     Path = "direct+fallback"
)

// Task 一个待抓取的 citation group 及其所属论文
type Task struct {
	GroupID    string
	CitedTitle string
	Citation   string
}

// GroupResult 一个 group 的抓取结果
type GroupResult struct {
	Task    Task
	Records []models.CitingAuthorRecord
	Path    Path
}

type Crawler struct {
	direct   platform.CitationSource
	fallback platform.CitationSource
	opts     batch.Options
	log      *logger.Logger

	// OnGroupDone 每个完整成功的 group 在工作 goroutine 中回调一次，需并发安全。
	// 只取得部分结果的 group 不回调，下次运行会重新抓取
	OnGroupDone func(GroupResult)
}

// New fallback 可以为 nil，此时直接抓取失败的 group 只保留已取得的部分
func New(direct, fallback platform.CitationSource, opts batch.Options) *Crawler {
	return &Crawler{
		direct:   direct,
		fallback: fallback,
		opts:     opts,
		log:      logger.WithPrefix("Crawler"),
	}
}

// Crawl 并发抓取所有 group，返回按任务顺序展开的记录
func (c *Crawler) Crawl(ctx context.Context, tasks []Task) ([]models.CitingAuthorRecord, []batch.Result[GroupResult], batch.Summary) {
	c.log.Info("开始抓取 %d 个 citation group", len(tasks))
	results := batch.Run(ctx, tasks, c.opts, c.crawlGroup)

	var records []models.CitingAuthorRecord
	for _, r := range results {
		switch r.Outcome {
		case batch.Succeeded, batch.SoftFailure:
			records = append(records, r.Value.Records...)
		}
		if r.Outcome == batch.SoftFailure || r.Outcome == batch.FatalFailure {
			c.log.Warn("group %s: %s: %v", r.Key, r.Outcome, r.Err)
		}
	}
	summary := batch.Summarize("citing-authors", results)
	c.log.Info("%s, 共 %d 条作者记录", summary, len(records))
	return records, results, summary
}

func (c *Crawler) crawlGroup(ctx context.Context, task Task) batch.Result[GroupResult] {
	entries, err := c.direct.CitingAuthors(ctx, task.GroupID)
	if err == nil {
		return c.done(task, entries, PathDirect, nil)
	}

	if platform.IsBlocked(err) {
		c.log.Warn("group %s 被拦截，切换到备用通道: %v", task.GroupID, err)
	} else {
		c.log.Warn("group %s 直接抓取失败，切换到备用通道: %v", task.GroupID, err)
	}
	if c.fallback == nil {
		if len(entries) > 0 {
			return c.done(task, entries, PathDirect, err)
		}
		return batch.Fatal[GroupResult](task.GroupID, err)
	}

	// 同一 group 只调用一次备用通道，也不再回到直接抓取
	fb, ferr := c.fallback.CitingAuthors(ctx, task.GroupID)
	merged := merge(entries, fb)
	path := PathFallback
	if len(entries) > 0 {
		path = PathBoth
	}
	if ferr != nil {
		joined := fmt.Errorf("备用通道失败: %w", errors.Join(err, ferr))
		if len(merged) == 0 {
			return batch.Fatal[GroupResult](task.GroupID, joined)
		}
		return c.done(task, merged, path, joined)
	}
	return c.done(task, merged, path, nil)
}

func (c *Crawler) done(task Task, entries []models.CitingEntry, path Path, err error) batch.Result[GroupResult] {
	gr := GroupResult{Task: task, Records: toRecords(task, entries), Path: path}
	if err != nil {
		return batch.Soft(task.GroupID, gr, err)
	}
	if c.OnGroupDone != nil {
		c.OnGroupDone(gr)
	}
	return batch.OK(task.GroupID, gr)
}

// merge 追加备用通道中直接抓取没有的条目
func merge(direct, fallback []models.CitingEntry) []models.CitingEntry {
	seen := make(map[string]struct{}, len(direct))
	for _, e := range direct {
		seen[e.Key()] = struct{}{}
	}
	out := append([]models.CitingEntry(nil), direct...)
	for _, e := range fallback {
		if _, ok := seen[e.Key()]; ok {
			continue
		}
		seen[e.Key()] = struct{}{}
		out = append(out, e)
	}
	return out
}

func toRecords(task Task, entries []models.CitingEntry) []models.CitingAuthorRecord {
	records := make([]models.CitingAuthorRecord, 0, len(entries))
	for _, e := range entries {
		id := e.AuthorID
		if id == "" {
			id = models.NoAuthorFound
		}
		records = append(records, models.CitingAuthorRecord{
			AuthorID:           id,
			AuthorName:         e.AuthorName,
			CitingPaperTitle:   e.PaperTitle,
			CitedPaperTitle:    task.CitedTitle,
			SourceCitationText: task.Citation,
		})
	}
	return records
}

// TasksFromPublications 每个 citation group 一个任务
func TasksFromPublications(pubs []models.Publication) []Task {
	var tasks []Task
	for _, p := range pubs {
		for _, id := range p.CitationGroupIDs {
			tasks = append(tasks, Task{GroupID: id, CitedTitle: p.Title, Citation: p.Citation})
		}
	}
	return tasks
}
