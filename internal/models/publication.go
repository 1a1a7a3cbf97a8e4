package models

import (
	"fmt"
	"net/url"
	"strings"
)

// NoAuthorFound 无法关联到作者主页时使用的哨兵 author_id
const NoAuthorFound = "No_author_found"

// ProfileURLTemplate 由 author_id 生成公开主页链接
const ProfileURLTemplate = "https://scholar.google.com/citations?user=%s&hl=en"

// Publication 被引作者的一篇论文，抓取后不再修改
type Publication struct {
	Title            string   `json:"title"`
	CitationGroupIDs []string `json:"citation_group_ids"` // 上游的 cites id，一篇论文可能有多个
	Citation         string   `json:"citation"`           // 自由文本的引用信息，只用于溯源
}

// IsSentinelAuthor 判断 author_id 是否为哨兵值
func IsSentinelAuthor(authorID string) bool {
	return authorID == "" || authorID == NoAuthorFound
}

// ProfileLink 返回作者主页链接，哨兵作者返回空串
func ProfileLink(authorID string) string {
	if IsSentinelAuthor(authorID) {
		return ""
	}
	return fmt.Sprintf(ProfileURLTemplate, url.QueryEscape(authorID))
}

// CitingEntry 引用列表中解析出的一条 (作者, 论文) 记录
type CitingEntry struct {
	AuthorID   string `json:"author_id"`
	AuthorName string `json:"author_name"`
	PaperTitle string `json:"paper_title"`
}

// Key 用于合并直接抓取和备用 API 的结果
func (e CitingEntry) Key() string {
	return e.AuthorID + "\x00" + strings.ToLower(strings.TrimSpace(e.PaperTitle))
}
