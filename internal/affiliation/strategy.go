// Package affiliation 解析引用作者的机构，并把自填的机构文本整理成可以地理编码的机构名
package affiliation

import (
	"context"
	"fmt"

	"CitationMap/internal/platform"
)

// Kind 机构解析策略，每次运行选定一种
type Kind string

const (
	// KindVerified 只信任经过验证的机构 id
	KindVerified Kind = "verified"
	// KindSelfReported 使用作者自填的机构文本
	KindSelfReported Kind = "self-reported"
)

// Resolution 一位作者的解析结果，Affiliations 可以为空
type Resolution struct {
	Name         string   `json:"name"`
	Affiliations []string `json:"affiliations"`
}

type Strategy interface {
	Kind() Kind
	Resolve(ctx context.Context, authorID string) (Resolution, error)
}

// NewStrategy 按 kind 构造策略。normalize 只对自填策略生效
func NewStrategy(kind Kind, src platform.AuthorSource, normalize bool) (Strategy, error) {
	switch kind {
	case KindVerified:
		return &VerifiedStrategy{src: src}, nil
	case KindSelfReported, "":
		return &SelfReportedStrategy{src: src, normalize: normalize}, nil
	default:
		return nil, fmt.Errorf("未知的机构解析策略: %s", kind)
	}
}

// VerifiedStrategy 通过机构 id 查询官方名称，没有机构 id 的作者不产生机构
type VerifiedStrategy struct {
	src platform.AuthorSource
}

func (s *VerifiedStrategy) Kind() Kind { return KindVerified }

func (s *VerifiedStrategy) Resolve(ctx context.Context, authorID string) (Resolution, error) {
	prof, err := s.src.Author(ctx, authorID)
	if err != nil {
		return Resolution{}, err
	}
	res := Resolution{Name: prof.Name}
	if prof.OrganizationID == "" {
		return res, nil
	}
	name, err := s.src.OrganizationName(ctx, prof.OrganizationID)
	if err != nil {
		return res, err
	}
	if name != "" {
		res.Affiliations = []string{name}
	}
	return res, nil
}

// SelfReportedStrategy 使用主页上的机构文本
type SelfReportedStrategy struct {
	src       platform.AuthorSource
	normalize bool
}

func (s *SelfReportedStrategy) Kind() Kind { return KindSelfReported }

func (s *SelfReportedStrategy) Resolve(ctx context.Context, authorID string) (Resolution, error) {
	prof, err := s.src.Author(ctx, authorID)
	if err != nil {
		return Resolution{}, err
	}
	return Resolution{Name: prof.Name, Affiliations: s.split(prof.Affiliation)}, nil
}

func (s *SelfReportedStrategy) split(raw string) []string {
	if s.normalize {
		return Normalize(raw)
	}
	if raw == "" {
		return nil
	}
	return []string{raw}
}
