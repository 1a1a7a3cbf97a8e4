package platform

import (
	"context"

	"CitationMap/internal/models"
)

// Platform 数据源接口，scholar（直接抓取）和 serpapi（付费备用）都需实现
type Platform interface {
	Name() string

	GetConfig() Config
}

type Config interface {
	Validate() error
}

// PublicationSource 获取被引作者的论文列表
type PublicationSource interface {
	// Publications 主页取不到时返回 ErrUpstreamUnavailable
	Publications(ctx context.Context, authorID string) ([]models.Publication, error)
}

// CitationSource 获取引用某个 citation group 的作者条目
type CitationSource interface {
	// CitingAuthors 出错时仍返回出错前已解析的条目
	CitingAuthors(ctx context.Context, groupID string) ([]models.CitingEntry, error)
}

// AuthorProfile 作者主页上能拿到的信息
type AuthorProfile struct {
	ID             string
	Name           string
	Affiliation    string // 自填的机构文本
	OrganizationID string // 经过验证的机构 id，可能为空
}

// AuthorSource 查询作者主页与机构名
type AuthorSource interface {
	Author(ctx context.Context, authorID string) (AuthorProfile, error)
	OrganizationName(ctx context.Context, orgID string) (string, error)
}

// AffiliationFallback 主策略失败时用来补查作者机构
type AffiliationFallback interface {
	AuthorAffiliation(ctx context.Context, authorID string) (string, error)
}
