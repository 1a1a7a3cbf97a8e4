package core

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	storage "CitationMap/db"
	dbsqlite "CitationMap/db/sqlite"

	"CitationMap/internal/affiliation"
	"CitationMap/internal/batch"
	exporter "CitationMap/internal/core/export"
	csv "CitationMap/internal/core/export/csv"
	"CitationMap/internal/core/export/htmlmap"
	json "CitationMap/internal/core/export/json"
	"CitationMap/internal/crawler"
	"CitationMap/internal/geocode"
	"CitationMap/internal/models"
	"CitationMap/internal/platform"
	"CitationMap/internal/throttle"
	"CitationMap/pkg/logger"
)

// 每个被引作者的输出文件，位于 output.dir/<scholar_id>/ 下
const (
	CSVFileName    = "citation_info.csv"
	JSONFileName   = "citation_info.json"
	MapFileName    = "citation_map.html"
	CitersFileName = "citing_authors.csv"
)

// Components App 依赖的数据源与存储，测试中可以整体替换
type Components struct {
	Store        storage.CheckpointStorage
	Publications platform.PublicationSource
	Citations    platform.CitationSource
	Authors      platform.AuthorSource
	Cache        geocode.Cache
	Primary      geocode.Provider

	// 以下可以为 nil
	CitationFallback    platform.CitationSource
	AffiliationFallback platform.AffiliationFallback
	Secondary           geocode.Provider
}

type App struct {
	c        Components
	settings Settings
	strategy affiliation.Strategy
	geocoder *geocode.Geocoder
	log      *logger.Logger
}

type scholarSource interface {
	platform.PublicationSource
	platform.CitationSource
	platform.AuthorSource
}

// NewApp 按配置创建存储、数据源和地理编码 provider
func NewApp(s Settings) (*App, error) {
	if s.DatabasePath == "" {
		homeDir, _ := os.UserHomeDir()
		s.DatabasePath = filepath.Join(homeDir, ".citemap", "data", "citemap.db")
	}
	sqliteDB, err := dbsqlite.NewSQLiteDB(s.DatabasePath)
	if err != nil {
		return nil, err
	}

	c, err := buildComponents(s, sqliteDB)
	if err != nil {
		sqliteDB.Close()
		return nil, err
	}
	app, err := NewAppWith(s, c)
	if err != nil {
		sqliteDB.Close()
		return nil, err
	}
	return app, nil
}

func buildComponents(s Settings, sqliteDB *dbsqlite.SQLiteDB) (Components, error) {
	log := logger.WithPrefix("App")
	log.Debug("已注册的数据源: %v", List())
	c := Components{Store: sqliteDB}

	plat, err := newPlatform("scholar", s.Platforms["scholar"])
	if err != nil {
		return c, err
	}
	src, ok := plat.(scholarSource)
	if !ok {
		return c, fmt.Errorf("数据源 %s 不支持抓取引用", plat.Name())
	}
	c.Publications, c.Citations, c.Authors = src, src, src

	if fb, err := newPlatform("serpapi", s.Platforms["serpapi"]); err != nil {
		log.Warn("备用通道不可用: %v", err)
	} else if u, ok := fb.(interface{ Usable() bool }); ok && !u.Usable() {
		log.Warn("SerpAPI 未启用或缺少 api key，被拦截的 group 只保留已抓取的部分")
	} else {
		if cs, ok := fb.(platform.CitationSource); ok {
			c.CitationFallback = cs
		}
		if af, ok := fb.(platform.AffiliationFallback); ok {
			c.AffiliationFallback = af
		}
	}

	switch s.Cache.Backend {
	case "sqlite":
		c.Cache = sqliteDB.GeocodeCache()
	case "json", "":
		fc, err := geocode.OpenFileCache(s.Cache.Path)
		if err != nil {
			return c, err
		}
		c.Cache = fc
	default:
		return c, fmt.Errorf("未知的缓存后端: %s", s.Cache.Backend)
	}

	c.Primary = geocode.NewNominatim(s.Geocode.NominatimURL, s.Geocode.Rate)
	if s.Geocode.GoogleAPIKey != "" {
		client := NewHTTPClient(int(s.Geocode.Timeout.Seconds()), s.Geocode.Proxy)
		gm, err := geocode.NewGoogleMaps(s.Geocode.GoogleAPIKey, s.Geocode.GoogleBaseURL, max(1, int(s.Geocode.Rate)), client)
		if err != nil {
			return c, err
		}
		c.Secondary = gm
	} else {
		log.Info("未配置 Google Maps key，只使用 Nominatim")
	}
	return c, nil
}

// NewAppWith 使用给定的组件创建 App
func NewAppWith(s Settings, c Components) (*App, error) {
	if c.Store == nil || c.Publications == nil || c.Citations == nil || c.Authors == nil || c.Cache == nil {
		return nil, errors.New("缺少必需的组件")
	}
	p := s.Pipeline
	strategy, err := affiliation.NewStrategy(affiliation.Kind(p.Strategy), c.Authors, p.Normalize)
	if err != nil {
		return nil, err
	}
	app := &App{
		c:        c,
		settings: s,
		strategy: strategy,
		log:      logger.WithPrefix("App"),
	}
	app.geocoder = geocode.New(c.Cache, c.Primary, c.Secondary, geocode.Options{
		Batch:       app.batchOptions(p.GeocodeWorkers),
		MaxAttempts: s.Geocode.MaxAttempts,
		RetryBase:   s.Geocode.RetryBase,
		FlushEvery:  s.Geocode.FlushEvery,
	})
	return app, nil
}

// Close 缓存落盘并关闭存储
func (a *App) Close() error {
	if a == nil {
		return nil
	}
	var errs []error
	if a.c.Cache != nil {
		errs = append(errs, a.c.Cache.Flush())
	}
	if a.c.Store != nil {
		errs = append(errs, a.c.Store.Close())
	}
	return errors.Join(errs...)
}

type RunOptions struct {
	// Refresh 忽略断点，全部重新抓取
	Refresh bool
}

// Report 一次运行的结果。出错时也会返回已经得到的部分
type Report struct {
	RunID        string
	ScholarID    string
	Rows         []models.CitationInfoRow
	Summaries    []batch.Summary
	Outputs      []string
	Affiliations []affiliation.AuthorAffiliation
}

// Run 对一个被引作者执行完整流程：论文 -> 引用作者 -> 机构 -> 坐标 -> 导出。
// 只有论文列表取不到时整体失败；其余阶段的单项失败只计入汇总
func (a *App) Run(ctx context.Context, scholarID string, opts RunOptions) (*Report, error) {
	a.log.Info("开始处理作者 %s（机构策略: %s）", scholarID, a.strategy.Kind())
	if opts.Refresh {
		if err := a.c.Store.Reset(scholarID); err != nil {
			return nil, fmt.Errorf("清除断点失败: %w", err)
		}
	}
	runID, err := a.c.Store.StartRun(scholarID, a.strategy.Kind())
	if err != nil {
		return nil, fmt.Errorf("记录运行失败: %w", err)
	}

	report := &Report{RunID: runID, ScholarID: scholarID}
	defer func() {
		if err := a.c.Store.FinishRun(runID, report.Summaries); err != nil {
			a.log.Warn("保存运行汇总失败: %v", err)
		}
	}()

	pubs, err := a.publications(ctx, scholarID)
	if err != nil {
		report.Summaries = append(report.Summaries, batch.Summary{Stage: "publications", Total: 1, Failed: 1})
		return report, err
	}
	report.Summaries = append(report.Summaries, batch.Summary{Stage: "publications", Total: len(pubs), Resolved: len(pubs)})

	records, crawlSummary := a.crawl(ctx, scholarID, pubs)
	report.Summaries = append(report.Summaries, crawlSummary)

	affRecords, resolveSummary := a.resolver().Resolve(ctx, records)
	report.Summaries = append(report.Summaries, resolveSummary)

	rows, geoSummary := a.geocoder.Geocode(ctx, affRecords)
	report.Summaries = append(report.Summaries, geoSummary)
	report.Rows = rows

	outputs, exportErr := a.export(scholarID, rows)
	report.Outputs = outputs
	if a.settings.Output.PrintAffiliations {
		report.Affiliations = affiliation.ListAffiliations(affRecords)
	}

	for _, s := range report.Summaries {
		a.log.Info("%s", s)
	}
	if exportErr != nil {
		return report, exportErr
	}
	if err := ctx.Err(); err != nil {
		a.log.Warn("运行被中断，已保存部分结果: %v", err)
		return report, err
	}
	return report, nil
}

// Citers 只执行到爬虫阶段，把原始的引用作者记录写到 outputPath
func (a *App) Citers(ctx context.Context, scholarID, outputPath string) ([]models.CitingAuthorRecord, batch.Summary, error) {
	pubs, err := a.publications(ctx, scholarID)
	if err != nil {
		return nil, batch.Summary{}, err
	}
	records, summary := a.crawl(ctx, scholarID, pubs)

	if outputPath == "" {
		outputPath = filepath.Join(a.settings.Output.Dir, scholarID, CitersFileName)
	}
	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return records, summary, fmt.Errorf("创建输出目录失败: %w", err)
	}
	if err := csv.ExportCitingRecords(records, outputPath); err != nil {
		return records, summary, err
	}
	a.log.Info("已写出 %d 条引用作者记录 -> %s", len(records), outputPath)
	return records, summary, ctx.Err()
}

// Geocode 查询单个机构，结果写入缓存
func (a *App) Geocode(ctx context.Context, affiliationText string) (models.GeocodeResult, bool, error) {
	res, cached, err := a.geocoder.Lookup(ctx, affiliationText)
	if ferr := a.c.Cache.Flush(); ferr != nil {
		a.log.Warn("缓存落盘失败: %v", ferr)
	}
	return res, cached, err
}

func (a *App) maintainer() (geocode.Maintainer, error) {
	m, ok := a.c.Cache.(geocode.Maintainer)
	if !ok {
		return nil, errors.New("当前缓存不支持维护操作")
	}
	return m, nil
}

func (a *App) CacheStats() (geocode.CacheStats, error) {
	m, err := a.maintainer()
	if err != nil {
		return geocode.CacheStats{}, err
	}
	return m.Stats()
}

func (a *App) CacheKeys() ([]string, error) {
	m, err := a.maintainer()
	if err != nil {
		return nil, err
	}
	return m.Keys()
}

// PruneCache 删除确认为空的缓存条目
func (a *App) PruneCache() (int, error) {
	m, err := a.maintainer()
	if err != nil {
		return 0, err
	}
	n, err := m.PruneEmpty()
	if err == nil {
		a.log.Info("已删除 %d 条空缓存", n)
	}
	return n, err
}

// RenderFromCSV 从已导出的 CSV 重新生成地图，不发起任何网络请求
func RenderFromCSV(csvPath, htmlPath string, colorful bool) (int, error) {
	rows, err := csv.ReadFile(csvPath)
	if err != nil {
		return 0, err
	}
	opts := htmlmap.DefaultOptions()
	opts.Colorful = colorful
	if err := htmlmap.NewMapExporter(opts).Export(rows, htmlPath); err != nil {
		return 0, err
	}
	logger.Info("已从 %s 的 %d 条记录生成地图 -> %s", csvPath, len(rows), htmlPath)
	return len(rows), nil
}

func (a *App) publications(ctx context.Context, scholarID string) ([]models.Publication, error) {
	pubs, ok, err := a.c.Store.LoadPublications(scholarID)
	if err != nil {
		a.log.Warn("读取论文断点失败: %v", err)
	} else if ok {
		a.log.Info("使用断点中的 %d 篇论文", len(pubs))
		return pubs, nil
	}

	pubs, err = a.c.Publications.Publications(ctx, scholarID)
	if err != nil {
		if !errors.Is(err, platform.ErrUpstreamUnavailable) {
			err = fmt.Errorf("%w: %w", platform.ErrUpstreamUnavailable, err)
		}
		return nil, fmt.Errorf("获取作者 %s 的论文失败: %w", scholarID, err)
	}
	if err := a.c.Store.SavePublications(scholarID, pubs); err != nil {
		a.log.Warn("保存论文断点失败: %v", err)
	}
	a.log.Info("作者 %s 共有 %d 篇论文", scholarID, len(pubs))
	return pubs, nil
}

// crawl 跳过断点中已完成的 group，其余交给爬虫；记录按 group 在论文中的顺序拼接
func (a *App) crawl(ctx context.Context, scholarID string, pubs []models.Publication) ([]models.CitingAuthorRecord, batch.Summary) {
	tasks := crawler.TasksFromPublications(pubs)
	done, err := a.c.Store.LoadGroups(scholarID)
	if err != nil {
		a.log.Warn("读取 group 断点失败，全部重新抓取: %v", err)
		done = nil
	}

	var pending []crawler.Task
	for _, t := range tasks {
		if _, ok := done[t.GroupID]; !ok {
			pending = append(pending, t)
		}
	}
	reused := len(tasks) - len(pending)
	if reused > 0 {
		a.log.Info("跳过 %d 个已完成的 citation group", reused)
	}

	c := crawler.New(a.c.Citations, a.c.CitationFallback, a.batchOptions(a.settings.Pipeline.CrawlWorkers))
	c.OnGroupDone = func(gr crawler.GroupResult) {
		if err := a.c.Store.SaveGroup(scholarID, gr.Task.GroupID, string(gr.Path), gr.Records); err != nil {
			a.log.Warn("保存 group %s 断点失败: %v", gr.Task.GroupID, err)
		}
	}
	_, results, summary := c.Crawl(ctx, pending)

	crawled := make(map[string][]models.CitingAuthorRecord, len(results))
	for i, r := range results {
		if r.Outcome == batch.Succeeded || r.Outcome == batch.SoftFailure {
			crawled[pending[i].GroupID] = r.Value.Records
		}
	}
	var records []models.CitingAuthorRecord
	for _, t := range tasks {
		if recs, ok := done[t.GroupID]; ok {
			records = append(records, recs...)
			continue
		}
		records = append(records, crawled[t.GroupID]...)
	}

	summary.Total += reused
	summary.Resolved += reused
	return records, summary
}

func (a *App) resolver() *affiliation.Resolver {
	p := a.settings.Pipeline
	return affiliation.NewResolver(a.strategy, affiliation.ResolverOptions{
		Batch:    a.batchOptions(p.ResolverWorkers),
		Delay:    throttle.NewJitter(p.AuthorDelayMin, p.AuthorDelayMax),
		Fallback: a.c.AffiliationFallback,
		Memo:     a.c.Store,
	})
}

func (a *App) batchOptions(workers int) batch.Options {
	return batch.Options{Workers: workers, ItemTimeout: a.settings.Pipeline.ItemTimeout}
}

// export 按配置写出 CSV、JSON 和地图。没有坐标时跳过地图
func (a *App) export(scholarID string, rows []models.CitationInfoRow) ([]string, error) {
	out := a.settings.Output
	dir := filepath.Join(out.Dir, scholarID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("创建输出目录失败: %w", err)
	}

	type target struct {
		name string
		exp  exporter.Exporter
	}
	var targets []target
	if out.CSV {
		targets = append(targets, target{CSVFileName, csv.NewCSVExporter()})
	}
	if out.JSON {
		targets = append(targets, target{JSONFileName, json.NewJSONExporter()})
	}
	if out.HTML {
		opts := htmlmap.DefaultOptions()
		opts.Colorful = out.Colorful
		opts.Title = "Citation Map: " + scholarID
		targets = append(targets, target{MapFileName, htmlmap.NewMapExporter(opts)})
	}

	var written []string
	var errs []error
	for _, t := range targets {
		path := filepath.Join(dir, t.name)
		if err := t.exp.Export(rows, path); err != nil {
			if errors.Is(err, htmlmap.ErrNoCoordinates) {
				a.log.Warn("没有任何带坐标的记录，跳过地图")
				continue
			}
			errs = append(errs, fmt.Errorf("导出 %s 失败: %w", t.name, err))
			continue
		}
		a.log.Info("已导出 %d 条记录 -> %s", len(rows), path)
		written = append(written, path)
	}
	return written, errors.Join(errs...)
}
