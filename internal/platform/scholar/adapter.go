package scholar

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"CitationMap/internal/core"
	"CitationMap/internal/models"
	"CitationMap/internal/platform"
	"CitationMap/internal/throttle"
	"CitationMap/pkg/logger"
)

type Adapter struct {
	config     *Config
	httpClient *http.Client
	log        *logger.Logger
}

func NewAdapter(config *Config) (*Adapter, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	rotator, err := core.NewProxyRotator(config.Proxies)
	if err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	client := core.NewRotatingHTTPClient(int(config.Timeout.Seconds()), rotator)
	return &Adapter{config: config, httpClient: client, log: logger.WithPrefix("Scholar")}, nil
}

func (a *Adapter) Name() string { return "scholar" }

func (a *Adapter) GetConfig() platform.Config { return a.config }

// Publications 分页读取作者主页上的论文列表。第一页取不到视为 ErrUpstreamUnavailable
func (a *Adapter) Publications(ctx context.Context, authorID string) ([]models.Publication, error) {
	var pubs []models.Publication
	firstDelay, pageDelay := a.config.firstDelay(), a.config.pageDelay()

	for p := 0; p < a.config.MaxProfilePages; p++ {
		delay := pageDelay
		if p == 0 {
			delay = firstDelay
		}
		if err := delay.Wait(ctx); err != nil {
			return pubs, err
		}
		u := a.profileURL(authorID, p*a.config.ProfilePageSize)
		a.log.Debug("主页 URL(page=%d): %s", p+1, u)

		html, err := a.request(ctx, u)
		var page ProfilePage
		if err == nil {
			page, err = ParseProfilePage(html)
		}
		if err != nil {
			if p == 0 {
				return nil, fmt.Errorf("%w: 作者 %s: %w", platform.ErrUpstreamUnavailable, authorID, err)
			}
			a.log.Warn("第 %d 页主页请求失败，保留已取得的 %d 篇: %v", p+1, len(pubs), err)
			break
		}
		pubs = append(pubs, page.Publications...)
		if page.Rows < a.config.ProfilePageSize {
			break
		}
	}
	a.log.Info("作者 %s 共 %d 篇论文", authorID, len(pubs))
	return pubs, nil
}

// CitingAuthors 翻页抓取引用 groupID 的论文及作者。
// 中途失败时返回已解析的条目和错误，由调用方决定是否走备用通道
func (a *Adapter) CitingAuthors(ctx context.Context, groupID string) ([]models.CitingEntry, error) {
	if err := a.config.firstDelay().Wait(ctx); err != nil {
		return nil, err
	}
	pageDelay := a.config.pageDelay()

	var entries []models.CitingEntry
	next := a.config.BaseURL + "/scholar?" + url.Values{"cites": {groupID}, "hl": {"en"}}.Encode()
	for page := 1; next != ""; page++ {
		if a.config.MaxCitePages > 0 && page > a.config.MaxCitePages {
			break
		}
		if page > 1 {
			if err := pageDelay.Wait(ctx); err != nil {
				return entries, err
			}
		}
		a.log.Debug("引用页 URL(group=%s, page=%d): %s", groupID, page, next)
		html, err := a.request(ctx, next)
		if err != nil {
			return entries, fmt.Errorf("group %s 第 %d 页: %w", groupID, page, err)
		}
		parsed, err := ParseCitationPage(html, page)
		if err != nil {
			return entries, fmt.Errorf("group %s 第 %d 页: %w", groupID, page, err)
		}
		if parsed.Malformed > 0 {
			a.log.Warn("group %s 第 %d 页有 %d 个结果块无法解析", groupID, page, parsed.Malformed)
		}
		entries = append(entries, parsed.Entries...)
		next = a.absolute(parsed.NextHref)
	}
	return entries, nil
}

// Author 读取作者主页的名字和机构信息
func (a *Adapter) Author(ctx context.Context, authorID string) (platform.AuthorProfile, error) {
	html, err := a.request(ctx, a.profileURL(authorID, 0))
	if err != nil {
		return platform.AuthorProfile{}, fmt.Errorf("作者 %s: %w", authorID, err)
	}
	page, err := ParseProfilePage(html)
	if err != nil {
		return platform.AuthorProfile{}, fmt.Errorf("作者 %s: %w", authorID, err)
	}
	return platform.AuthorProfile{
		ID:             authorID,
		Name:           page.Name,
		Affiliation:    page.Affiliation,
		OrganizationID: page.OrganizationID,
	}, nil
}

// OrganizationName 将已验证的机构 id 解析为官方名称。
// 通常紧跟在 Author 之后调用，请求前同样随机等待
func (a *Adapter) OrganizationName(ctx context.Context, orgID string) (string, error) {
	if err := a.config.firstDelay().Wait(ctx); err != nil {
		return "", err
	}
	u := a.config.BaseURL + "/citations?" + url.Values{"view_op": {"view_org"}, "org": {orgID}, "hl": {"en"}}.Encode()
	html, err := a.request(ctx, u)
	if err != nil {
		return "", fmt.Errorf("机构 %s: %w", orgID, err)
	}
	return ParseOrganizationName(html)
}

func (a *Adapter) profileURL(authorID string, start int) string {
	params := url.Values{}
	params.Set("user", authorID)
	params.Set("hl", "en")
	if start > 0 {
		params.Set("cstart", fmt.Sprintf("%d", start))
	}
	params.Set("pagesize", fmt.Sprintf("%d", a.config.ProfilePageSize))
	return a.config.BaseURL + "/citations?" + params.Encode()
}

func (a *Adapter) absolute(href string) string {
	if href == "" {
		return ""
	}
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	return a.config.BaseURL + href
}

// request 只对瞬时错误做退避重试；被拦截时立即返回 ErrBlocked。
// 重试次数用完后也按 ErrBlocked 处理
func (a *Adapter) request(ctx context.Context, u string) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= a.config.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := throttle.Sleep(ctx, throttle.Backoff(a.config.RetryBase, 30*time.Second, attempt-1)); err != nil {
				return "", err
			}
		}

		body, err := a.fetch(ctx, u)
		if err == nil {
			return body, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if !platform.IsTransient(err) {
			return "", err
		}
		lastErr = err
		a.log.Debug("请求失败(attempt=%d): %v", attempt+1, err)
	}
	return "", fmt.Errorf("%w: 重试 %d 次后放弃: %w", platform.ErrBlocked, a.config.MaxRetries, lastErr)
}

func (a *Adapter) fetch(ctx context.Context, u string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", a.config.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", platform.ErrTransient, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &platform.HTTPError{StatusCode: resp.StatusCode, URL: u}
	}
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return "", err
		}
		return "", fmt.Errorf("%w: %v", platform.ErrTransient, err)
	}
	html := string(b)
	if DetectBlock(html) {
		return "", fmt.Errorf("%w: %s 返回了反爬页面", platform.ErrBlocked, u)
	}
	return html, nil
}
