// Package serpapi 通过 SerpAPI 获取 Google Scholar 数据，作为直接抓取被拦截时的备用通道
package serpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/time/rate"

	"CitationMap/internal/core"
	"CitationMap/internal/models"
	"CitationMap/internal/platform"
	"CitationMap/internal/throttle"
	"CitationMap/pkg/logger"
)

// ErrNotConfigured 未启用或缺少 API key
var ErrNotConfigured = errors.New("serpapi not configured")

// noResults SerpAPI 对空结果返回的 error 文本
const noResults = "hasn't returned any results"

// SearchFunc 执行一次查询并返回 JSON 对象
type SearchFunc func(ctx context.Context, params map[string]string) (map[string]interface{}, error)

// Client 独立限速的 SerpAPI 客户端，与抓取逻辑互不影响
type Client struct {
	config     *Config
	limiter    *rate.Limiter
	httpClient *http.Client
	baseURL    string
	search     SearchFunc
	log        *logger.Logger
}

type Option func(*Client)

// WithSearchFunc 替换底层查询，测试时使用
func WithSearchFunc(f SearchFunc) Option {
	return func(c *Client) { c.search = f }
}

func WithLimiter(l *rate.Limiter) Option {
	return func(c *Client) { c.limiter = l }
}

// WithBaseURL 替换 search.json 的地址，测试时指向 httptest
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func NewClient(config *Config, opts ...Option) (*Client, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	c := &Client{
		config:     config,
		limiter:    throttle.NewLimiter(config.RateLimitPerSecond),
		httpClient: core.NewHTTPClient(int(config.Timeout.Seconds()), ""),
		baseURL:    config.BaseURL,
		log:        logger.WithPrefix("SerpAPI"),
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	c.search = c.httpSearch
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) Name() string { return "serpapi" }

func (c *Client) GetConfig() platform.Config { return c.config }

// Usable 未配置 key 时不应作为备用通道接入
func (c *Client) Usable() bool { return c.config.Usable() }

// CitingAuthors 查询引用 groupID 的论文，按 serpapi_pagination 翻页。
// 没有作者 id 的结果以哨兵作者返回
func (c *Client) CitingAuthors(ctx context.Context, groupID string) ([]models.CitingEntry, error) {
	if !c.config.Usable() {
		return nil, ErrNotConfigured
	}
	c.log.Info("通过 SerpAPI 查询 group %s", groupID)

	var entries []models.CitingEntry
	start := 0
	for page := 0; page < c.config.MaxPages; page++ {
		if err := throttle.Sleep(ctx, c.config.CitationDelay); err != nil {
			return entries, err
		}
		params := map[string]string{
			"engine": "google_scholar",
			"cites":  groupID,
			"num":    strconv.Itoa(c.config.num()),
			"hl":     "en",
		}
		if start > 0 {
			params["start"] = strconv.Itoa(start)
		}
		resp, err := c.do(ctx, params)
		if err != nil {
			return entries, fmt.Errorf("group %s: %w", groupID, err)
		}
		if resp == nil {
			break
		}
		entries = append(entries, extractCitingEntries(resp)...)

		next, ok := nextStart(resp)
		if !ok || next <= start {
			break
		}
		start = next
	}
	c.log.Info("group %s 通过 SerpAPI 得到 %d 条作者记录", groupID, len(entries))
	return entries, nil
}

// AuthorAffiliation 通过作者档案查询机构文本，查不到时返回空串
func (c *Client) AuthorAffiliation(ctx context.Context, authorID string) (string, error) {
	if !c.config.Usable() {
		return "", ErrNotConfigured
	}
	if err := throttle.Sleep(ctx, c.config.AuthorDelay); err != nil {
		return "", err
	}
	resp, err := c.do(ctx, map[string]string{
		"engine":    "google_scholar_author",
		"author_id": authorID,
		"hl":        "en",
	})
	if err != nil {
		return "", fmt.Errorf("作者 %s: %w", authorID, err)
	}
	return extractAffiliation(resp), nil
}

// do 限速后执行查询。空结果返回 nil, nil
func (c *Client) do(ctx context.Context, params map[string]string) (map[string]interface{}, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	resp, err := c.search(ctx, params)
	if err != nil {
		if strings.Contains(err.Error(), noResults) {
			return nil, nil
		}
		return nil, err
	}
	if msg, ok := resp["error"].(string); ok && msg != "" {
		if strings.Contains(msg, noResults) {
			return nil, nil
		}
		return nil, fmt.Errorf("serpapi: %s", msg)
	}
	return resp, nil
}

// httpSearch 请求 search.json。4xx 时 SerpAPI 也会在 body 的 error 字段里给出原因
func (c *Client) httpSearch(ctx context.Context, params map[string]string) (map[string]interface{}, error) {
	q := url.Values{}
	for k, v := range params {
		q.Set(k, v)
	}
	q.Set("api_key", c.config.APIKey)
	q.Set("output", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("创建请求失败: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", platform.ErrTransient, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: 读取响应失败: %v", platform.ErrTransient, err)
	}
	var data map[string]interface{}
	decodeErr := json.Unmarshal(body, &data)

	if resp.StatusCode != http.StatusOK {
		httpErr := &platform.HTTPError{StatusCode: resp.StatusCode, URL: c.baseURL}
		if decodeErr == nil {
			if msg, ok := data["error"].(string); ok && msg != "" {
				if strings.Contains(msg, noResults) {
					return data, nil
				}
				return nil, fmt.Errorf("%w: %s", httpErr, msg)
			}
		}
		return nil, httpErr
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("%w: %v", platform.ErrMalformedPage, decodeErr)
	}
	return data, nil
}

func extractCitingEntries(resp map[string]interface{}) []models.CitingEntry {
	var entries []models.CitingEntry
	results, _ := resp["organic_results"].([]interface{})
	for _, r := range results {
		result, ok := r.(map[string]interface{})
		if !ok {
			continue
		}
		title, _ := result["title"].(string)
		if title == "" {
			title = "Unknown Title"
		}
		info, _ := result["publication_info"].(map[string]interface{})
		authors, _ := info["authors"].([]interface{})

		found := false
		for _, a := range authors {
			author, ok := a.(map[string]interface{})
			if !ok {
				continue
			}
			id, _ := author["author_id"].(string)
			if id == "" {
				continue
			}
			name, _ := author["name"].(string)
			if name == "" {
				name = "Unknown Author"
			}
			entries = append(entries, models.CitingEntry{AuthorID: id, AuthorName: name, PaperTitle: title})
			found = true
		}
		if !found {
			summary, _ := info["summary"].(string)
			name := strings.TrimSpace(strings.SplitN(summary, "-", 2)[0])
			if name == "" {
				name = "Unknown Author"
			}
			entries = append(entries, models.CitingEntry{AuthorID: models.NoAuthorFound, AuthorName: name, PaperTitle: title})
		}
	}
	return entries
}

// extractAffiliation 依次尝试 author 下和顶层的几个字段
func extractAffiliation(resp map[string]interface{}) string {
	keys := []string{"affiliations", "affiliation", "organization", "institution"}
	if author, ok := resp["author"].(map[string]interface{}); ok {
		for _, k := range keys {
			if s, ok := author[k].(string); ok && strings.TrimSpace(s) != "" {
				return strings.TrimSpace(s)
			}
		}
	}
	for _, k := range keys[1:] {
		if s, ok := resp[k].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

func nextStart(resp map[string]interface{}) (int, bool) {
	pagination, _ := resp["serpapi_pagination"].(map[string]interface{})
	next, _ := pagination["next"].(string)
	if next == "" {
		return 0, false
	}
	u, err := url.Parse(next)
	if err != nil {
		return 0, false
	}
	start, err := strconv.Atoi(u.Query().Get("start"))
	if err != nil {
		return 0, false
	}
	return start, true
}
